package marker

import "errors"

// ErrLocked is returned by AcquireRunLock when another run holds the lock.
var ErrLocked = errors.New("another run holds the lock")

// RunLock is held for the duration of one run.
type RunLock interface {
	Release() error
}

type noopLock struct{}

func (noopLock) Release() error { return nil }

// NoopLock returns a lock that does nothing, for runs with locking disabled.
func NoopLock() RunLock { return noopLock{} }
