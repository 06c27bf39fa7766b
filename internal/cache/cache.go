// Package cache invalidates the read-side caches other services build from
// order and mandate state. Invalidation is best-effort: a failed delete only
// means a stale read until the next write, never a failed request.
package cache

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func PortfolioKey(clientID string) string {
	return "cache:portfolio:" + clientID
}

func DashboardKey(advisorID string) string {
	return "cache:dashboard:" + advisorID
}

type Invalidator struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewInvalidator wraps a Redis client; nil is allowed and turns every call
// into a no-op, which keeps single-process test setups simple.
func NewInvalidator(client *redis.Client) *Invalidator {
	return &Invalidator{
		client: client,
		logger: log.With().Str("component", "cache_invalidator").Logger(),
	}
}

func (i *Invalidator) Invalidate(ctx context.Context, keys ...string) {
	if i == nil || i.client == nil || len(keys) == 0 {
		return
	}
	if err := i.client.Del(ctx, keys...).Err(); err != nil {
		i.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

// InvalidateFor clears the caches derived from one client's holdings and the
// owning advisor's dashboard.
func (i *Invalidator) InvalidateFor(ctx context.Context, advisorID, clientID string) {
	i.Invalidate(ctx, PortfolioKey(clientID), DashboardKey(advisorID))
}
