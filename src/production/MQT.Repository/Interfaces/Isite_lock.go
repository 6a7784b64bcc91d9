package interfaces

import "context"

// ReleaseFunc gives a held lock back
type ReleaseFunc func(ctx context.Context) error

// SiteLocker serializes updates of one site. Acquire never waits: it returns
// ErrLockHeld when another writer holds the lock.
type SiteLocker interface {
	Acquire(ctx context.Context, siteName string) (ReleaseFunc, error)
}
