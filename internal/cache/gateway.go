package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the uncached result for a tool call.
type ComputeFunc func(ctx context.Context) (any, error)

// Gateway wraps a Store with the cache-aside sequence. Values are stored
// as JSON; both the hit and miss paths return the serialized form so the
// two are indistinguishable to transports.
type Gateway struct {
	store  Store
	logger *slog.Logger
	group  singleflight.Group
}

// NewGateway creates a Gateway over the given store.
func NewGateway(store Store, logger *slog.Logger) *Gateway {
	return &Gateway{store: store, logger: logger}
}

// GetOrCompute runs the cache-aside sequence for one tool call.
//
// Tools with TTL zero bypass the cache entirely. On a hit the cached value
// is returned without invoking compute. On a miss or stale entry, compute
// runs (deduplicated per key via singleflight so a thundering herd on an
// expired hot key computes once), the result is stored, and returned.
// Store errors on either side are logged and treated as misses/no-ops —
// cache unavailability is never a caller-visible error.
func (g *Gateway) GetOrCompute(ctx context.Context, tool string, params map[string]any, compute ComputeFunc) (json.RawMessage, error) {
	ttl := TTL(tool)
	if ttl == 0 {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return marshal(result)
	}

	key := Key(tool, params)

	if val, ok, err := g.store.Get(ctx, key); err != nil {
		g.logger.Warn("cache get failed, falling through to compute", "tool", tool, "error", err)
	} else if ok {
		return val, nil
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		data, err := marshal(result)
		if err != nil {
			return nil, err
		}
		if err := g.store.Set(ctx, key, data, ttl); err != nil {
			g.logger.Warn("cache set failed, serving computed value", "tool", tool, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func marshal(result any) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal result: %w", err)
	}
	return json.RawMessage(data), nil
}
