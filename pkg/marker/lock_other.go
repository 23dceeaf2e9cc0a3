//go:build !unix

package marker

// AcquireRunLock is a no-op on platforms without flock.
func AcquireRunLock(string) (RunLock, error) {
	return noopLock{}, nil
}
