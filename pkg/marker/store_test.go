package marker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeImplementations(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sqlite, err := OpenSQLiteStore(context.Background(), filepath.Join(dir, "markers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(dir, "markers")),
		"sqlite": sqlite,
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			set, err := store.IsSet(ctx, "1001")
			require.NoError(t, err)
			assert.False(t, set, "fresh store has no markers")

			require.NoError(t, store.Clear(ctx, "1001"), "clearing a missing key is a no-op")

			require.NoError(t, store.Set(ctx, "1001"))
			require.NoError(t, store.Set(ctx, "1001"), "set is idempotent")
			require.NoError(t, store.Set(ctx, "1002"))

			set, err = store.IsSet(ctx, "1001")
			require.NoError(t, err)
			assert.True(t, set)

			keys, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"1001", "1002"}, keys)

			require.NoError(t, store.Clear(ctx, "1001"))
			set, err = store.IsSet(ctx, "1001")
			require.NoError(t, err)
			assert.False(t, set)

			set, err = store.IsSet(ctx, "1002")
			require.NoError(t, err)
			assert.True(t, set, "clearing one key leaves the others")
		})
	}
}

func TestFileStore_PathAndContent(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	assert.Equal(t, filepath.Join(dir, "noreg_100000_main.txt"), store.Path("100000_main"))

	require.NoError(t, store.Set(context.Background(), "100000_main"))
	data, err := os.ReadFile(store.Path("100000_main"))
	require.NoError(t, err)
	assert.Equal(t, fileContent, string(data))
}

func TestFileStore_SetLeavesExistingMarkerUntouched(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	path := store.Path("1001")
	require.NoError(t, os.WriteFile(path, []byte("written by an older version"), 0o644))

	require.NoError(t, store.Set(context.Background(), "1001"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "written by an older version", string(data))
}

func TestFileStore_DefaultDir(t *testing.T) {
	assert.Equal(t, "noreg_x.txt", NewFileStore("").Path("x"))
}

func TestSanitizeKey(t *testing.T) {
	tests := map[string]string{
		"100000_main":      "100000_main",
		"1001":             "1001",
		"100000 main":      "100000%20main",
		"../../etc/passwd": "..%2F..%2Fetc%2Fpasswd",
		"a b/c":            "a%20b%2Fc",
		"50%":              "50%25",
		"":                 "%",
		".":                "%2E",
		"..":               "%2E%2E",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeKey(in), "input %q", in)

		back, err := UnsanitizeKey(want)
		require.NoError(t, err)
		assert.Equal(t, in, back, "round trip of %q", in)
	}
}

func TestSanitizeKey_DistinctKeysDistinctNames(t *testing.T) {
	keys := []string{"100000 main", "100000_main", "100000/main", "100000%20main", "", "_", ".", "%2E", ".."}
	seen := map[string]string{}
	for _, k := range keys {
		name := SanitizeKey(k)
		prev, dup := seen[name]
		assert.False(t, dup, "%q and %q share file name %q", prev, k, name)
		seen[name] = k
	}
}

func TestFileStore_SimilarAccountsKeepSeparateMarkers(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	require.NoError(t, store.Set(ctx, "100000 main"))

	set, err := store.IsSet(ctx, "100000_main")
	require.NoError(t, err)
	assert.False(t, set, "a marker for one account must not mark a similar one")

	require.NoError(t, store.Clear(ctx, "100000_main"))
	set, err = store.IsSet(ctx, "100000 main")
	require.NoError(t, err)
	assert.True(t, set, "clearing a similar account leaves the marker in place")
}

func TestStore_ListReturnsAccountIDs(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "100000 main"))
			require.NoError(t, store.Set(ctx, "100000/backup"))

			keys, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"100000 main", "100000/backup"}, keys)
		})
	}
}

func TestFileStore_ListKeepsUndecodableNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noreg_%zz.txt"), []byte("x"), 0o644))

	keys, err := NewFileStore(dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"%zz"}, keys)
}

func TestMemoryStore_Seeded(t *testing.T) {
	store := NewMemoryStore("a", "b")
	keys, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.NoError(t, store.Close())
}
