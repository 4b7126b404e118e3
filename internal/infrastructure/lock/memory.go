// Package lock provides per-invoice exclusive locks.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
)

// MemoryLocker serializes mutations per invoice inside one process.
// Each id gets a one-slot channel; entries are dropped when nobody holds or
// waits for them, so the map does not grow with the invoice count.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*memoryLock
}

type memoryLock struct {
	slot chan struct{}
	refs int
}

// NewMemoryLocker creates a new in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[uuid.UUID]*memoryLock)}
}

// Acquire waits up to timeout for exclusive access to the invoice
func (l *MemoryLocker) Acquire(ctx context.Context, invoiceID uuid.UUID, timeout time.Duration) (func(), error) {
	entry := l.ref(invoiceID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case entry.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.slot
				l.unref(invoiceID, entry)
			})
		}, nil
	case <-timer.C:
		l.unref(invoiceID, entry)
		return nil, &billing.ResourceBusyError{InvoiceID: invoiceID}
	case <-ctx.Done():
		l.unref(invoiceID, entry)
		return nil, ctx.Err()
	}
}

// Len returns the number of ids currently held or waited on
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *MemoryLocker) ref(id uuid.UUID) *memoryLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &memoryLock{slot: make(chan struct{}, 1)}
		l.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (l *MemoryLocker) unref(id uuid.UUID, entry *memoryLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
}

var _ billing.InvoiceLocker = (*MemoryLocker)(nil)
