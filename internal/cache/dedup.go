// Package cache provides a redis-backed first-seen guard. Webhook deliveries
// carry no ordering or exactly-once guarantee, so replays are filtered here
// before they reach reconciliation.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Guard struct {
	client      *redis.Client
	serviceName string
}

func NewGuard(addr, serviceName string) *Guard {
	if addr == "" {
		return &Guard{serviceName: serviceName}
	}
	return &Guard{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
	}
}

// MarkOnce records key and reports whether this was its first appearance.
// With no redis configured every delivery counts as first; the state-level
// idempotency in reconciliation still holds.
func (g *Guard) MarkOnce(ctx context.Context, operation, key string, ttl time.Duration) (bool, error) {
	if g.client == nil {
		return true, nil
	}
	return g.client.SetNX(ctx, g.generateKey(operation, key), "1", ttl).Result()
}

// Seen reports whether key was already marked, without marking it. Callers
// that must not swallow retries check here first and mark only after their
// own work succeeded.
func (g *Guard) Seen(ctx context.Context, operation, key string) (bool, error) {
	if g.client == nil {
		return false, nil
	}
	n, err := g.client.Exists(ctx, g.generateKey(operation, key)).Result()
	return n > 0, err
}

func (g *Guard) generateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", g.serviceName, operation, key)
}
