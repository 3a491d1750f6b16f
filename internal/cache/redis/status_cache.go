package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/presalebot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// StatusCache implements domain.StatusCache. The last status of each
// contract is stored as JSON at "<ns>:sale:<contract>" with a TTL.
type StatusCache struct {
	c   *Client
	ttl time.Duration
}

// NewStatusCache creates a StatusCache. A zero ttl keeps entries forever.
func NewStatusCache(c *Client, ttl time.Duration) *StatusCache {
	return &StatusCache{c: c, ttl: ttl}
}

func statusField(contract string) string {
	return "sale:" + strings.ToLower(contract)
}

// Set stores status for contract.
func (sc *StatusCache) Set(ctx context.Context, contract string, status domain.SaleStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("redis: encode status: %w", err)
	}
	if err := sc.c.rdb.Set(ctx, sc.c.key(statusField(contract)), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set status %s: %w", contract, err)
	}
	return nil
}

// Get returns the cached status for contract or domain.ErrNotFound.
func (sc *StatusCache) Get(ctx context.Context, contract string) (domain.SaleStatus, error) {
	data, err := sc.c.rdb.Get(ctx, sc.c.key(statusField(contract))).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SaleStatus{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SaleStatus{}, fmt.Errorf("redis: get status %s: %w", contract, err)
	}
	var status domain.SaleStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.SaleStatus{}, fmt.Errorf("redis: decode status %s: %w", contract, err)
	}
	return status, nil
}

var _ domain.StatusCache = (*StatusCache)(nil)
