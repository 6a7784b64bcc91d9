package implementation

import (
	"context"
	"sync"

	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// MemorySiteLocker is a per-site TryLock for a single API instance
type MemorySiteLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemorySiteLocker() *MemorySiteLocker {
	return &MemorySiteLocker{held: make(map[string]struct{})}
}

func (l *MemorySiteLocker) Acquire(ctx context.Context, siteName string) (interfaces.ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[siteName]; busy {
		return nil, interfaces.ErrLockHeld
	}
	l.held[siteName] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, siteName)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
