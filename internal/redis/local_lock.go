package redisclient

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalLocker is the in-process fallback used when no Redis is configured. It only
// serializes requests inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*doctorLock
}

type doctorLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*doctorLock)}
}

func (l *LocalLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	dl, ok := l.locks[doctorID]
	if !ok {
		dl = &doctorLock{}
		l.locks[doctorID] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	defer func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, doctorID)
		}
		l.mu.Unlock()
	}()

	return fn(ctx)
}
