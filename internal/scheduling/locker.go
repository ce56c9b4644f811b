package scheduling

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Locker serializes booking critical sections per doctor. Bookings against
// different doctors must not block each other.
type Locker interface {
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
}

// LocalLocker is an in-process Locker backed by one channel semaphore per
// doctor. Acquisition is context-aware, so a cancelled session never leaves
// a booking waiter stuck, and release happens on every path.
type LocalLocker struct {
	locks sync.Map // uuid.UUID -> chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	v, _ := l.locks.LoadOrStore(doctorID, make(chan struct{}, 1))
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	return fn(ctx)
}

var _ Locker = (*LocalLocker)(nil)
