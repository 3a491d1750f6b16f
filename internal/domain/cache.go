package domain

import (
	"context"
	"time"
)

// StatusCache keeps the last published SaleStatus so API replicas and
// restarts can answer before the first poll completes.
type StatusCache interface {
	Set(ctx context.Context, contract string, status SaleStatus) error
	Get(ctx context.Context, contract string) (SaleStatus, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
