package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix     = "billing:lock:invoice:"
	defaultLease         = 30 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes mutations per invoice across service instances.
// The lease bounds how long a crashed holder can block an invoice.
type RedisLocker struct {
	client        redis.UniversalClient
	keyPrefix     string
	lease         time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// RedisLockerConfig holds configuration for RedisLocker
type RedisLockerConfig struct {
	Client        redis.UniversalClient
	KeyPrefix     string
	Lease         time.Duration
	RetryInterval time.Duration
	Logger        *zap.Logger
}

// NewRedisLocker creates a new Redis-backed locker
func NewRedisLocker(cfg RedisLockerConfig) *RedisLocker {
	l := &RedisLocker{
		client:        cfg.Client,
		keyPrefix:     cfg.KeyPrefix,
		lease:         cfg.Lease,
		retryInterval: cfg.RetryInterval,
		logger:        cfg.Logger,
	}
	if l.keyPrefix == "" {
		l.keyPrefix = defaultKeyPrefix
	}
	if l.lease <= 0 {
		l.lease = defaultLease
	}
	if l.retryInterval <= 0 {
		l.retryInterval = defaultRetryInterval
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Acquire retries SET NX until it wins or the timeout passes
func (l *RedisLocker) Acquire(ctx context.Context, invoiceID uuid.UUID, timeout time.Duration) (func(), error) {
	key := l.keyPrefix + invoiceID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire invoice lock: %w", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}
		if time.Now().Add(l.retryInterval).After(deadline) {
			return nil, &billing.ResourceBusyError{InvoiceID: invoiceID}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *RedisLocker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// release must run even if the request context was cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("Failed to release invoice lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
}

var _ billing.InvoiceLocker = (*RedisLocker)(nil)
