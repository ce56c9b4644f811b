package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

// retryInterval is how often a waiter re-attempts SetNX while another
// process holds the doctor's lock.
const retryInterval = 25 * time.Millisecond

// DoctorLocker implements scheduling.Locker with a per-doctor Redis key, so
// booking critical sections stay exclusive across gateway instances. A waiter
// polls SetNX until it acquires the key or its context ends; the TTL bounds
// how long a crashed holder can starve others.
type DoctorLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDoctorLocker(client *redis.Client, ttl time.Duration) *DoctorLocker {
	return &DoctorLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *DoctorLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:doctor:%s", doctorID.String())
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire doctor lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *DoctorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}

var _ scheduling.Locker = (*DoctorLocker)(nil)
