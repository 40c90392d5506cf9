package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/stocklinkhq/stocklink_backend/config"
)

func IntPtr(v int) *int {
	return &v
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

func BoolPtr(b bool) *bool {
	return &b
}

func DereferencePtr[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ObtainStockLock takes a best-effort redis lock for a catalog item. The
// returned release func must be deferred by the caller so the lock spans the
// whole reconciliation, not just the acquisition.
//
// Reliability must not depend on redis: when the locker is unavailable the
// call succeeds with a no-op release, unless REQUIRE_STOCK_LOCK is set.
func ObtainStockLock(ctx context.Context, itemId int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	noop := func() {}

	if locker == nil {
		if config.RequireStockLock() {
			config.LogError(logger, moduleName, functionName, "redis lock not initialized", itemId, errors.New("redis lock is nil"))
			return noop, errors.New("service not ready (redis lock not initialized)")
		}
		return noop, nil
	}

	lockKey := fmt.Sprintf("stockLock:%d", itemId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "could not obtain stock lock", itemId, err)
		return noop, errors.New("could not obtain stock lock for item")
	} else if err != nil {
		if config.RequireStockLock() {
			config.LogError(logger, moduleName, functionName, "error obtaining stock lock", itemId, err)
			return noop, err
		}
		// Degrade to unlocked operation; row locks still protect us.
		return noop, nil
	}

	return func() { _ = lock.Release(ctx) }, nil
}
