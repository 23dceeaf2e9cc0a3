package marker

import (
	"context"
	"net/url"
	"strings"
)

// Store is a persistent set of keys. A key is set while a failure
// notification has been sent for the current outage of that account.
type Store interface {
	// IsSet reports whether key is present.
	IsSet(ctx context.Context, key string) (bool, error)
	// Set adds key. Setting an existing key is a no-op.
	Set(ctx context.Context, key string) error
	// Clear removes key. Clearing a missing key is a no-op.
	Clear(ctx context.Context, key string) error
	// List returns the keys currently set, sorted, exactly as they were
	// passed to Set.
	List(ctx context.Context) ([]string, error)
	// Close releases resources held by the store.
	Close() error
}

const upperHex = "0123456789ABCDEF"

// SanitizeKey maps an account identifier to a string that is safe to use as
// a single path element. Bytes outside [A-Za-z0-9._-] are percent-escaped, as
// are the dots of "." and "..", so distinct keys never share a file name.
// The empty key maps to "%".
func SanitizeKey(key string) string {
	if key == "" {
		return "%"
	}
	dotsOnly := key == "." || key == ".."
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isSafeKeyByte(c) && !(dotsOnly && c == '.') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

// UnsanitizeKey reverses SanitizeKey.
func UnsanitizeKey(s string) (string, error) {
	if s == "%" {
		return "", nil
	}
	return url.PathUnescape(s)
}

func isSafeKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '.' || c == '_' || c == '-'
}
