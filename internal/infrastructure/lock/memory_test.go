package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_ExclusivePerInvoice(t *testing.T) {
	locker := NewMemoryLocker()
	id := uuid.New()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), id, time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, locker.Len())
}

func TestMemoryLocker_TimeoutReturnsResourceBusy(t *testing.T) {
	locker := NewMemoryLocker()
	id := uuid.New()

	release, err := locker.Acquire(context.Background(), id, time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), id, 20*time.Millisecond)
	var busy *billing.ResourceBusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, id, busy.InvoiceID)

	release()
	release()
	assert.Equal(t, 0, locker.Len())
}

func TestMemoryLocker_DifferentInvoicesDoNotBlock(t *testing.T) {
	locker := NewMemoryLocker()

	r1, err := locker.Acquire(context.Background(), uuid.New(), time.Second)
	require.NoError(t, err)
	defer r1()

	r2, err := locker.Acquire(context.Background(), uuid.New(), 10*time.Millisecond)
	require.NoError(t, err)
	defer r2()

	assert.Equal(t, 2, locker.Len())
}

func TestMemoryLocker_ContextCancelled(t *testing.T) {
	locker := NewMemoryLocker()
	id := uuid.New()
	release, err := locker.Acquire(context.Background(), id, time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, id, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
