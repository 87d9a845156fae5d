// Package cache implements the cache-aside layer for read tools.
//
// Keys are a deterministic function of (tool, parameters): nil-valued
// parameters are dropped and the rest are sorted by name, so two calls
// differing only in parameter insertion order hash identically. Each tool
// has a fixed TTL; a TTL of zero means "never cacheable". Backend
// unavailability is never surfaced to callers — the gateway degrades to
// direct computation (fail open).
package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/expokossodo/expogate/internal/model"
)

// Store is the cache backend contract. Implementations must be safe for
// concurrent use. Errors signal backend malfunction; the Gateway treats
// them as misses rather than failing the request.
type Store interface {
	// Get returns the stored value and true on a hit. Expired entries
	// are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases resources (connections, cleanup goroutines).
	Close() error
}

// ttlByTool is the per-tool freshness policy, in seconds.
var ttlByTool = map[string]time.Duration{
	model.ToolGetRoomEventMap: 60 * time.Second,  // hot resource
	model.ToolGetCapacity:     60 * time.Second,  // changes frequently
	model.ToolListEvents:      300 * time.Second, // moderately stable
	model.ToolListRegistrants: 600 * time.Second, // less frequent changes
	model.ToolGetStatistics:   300 * time.Second, // expensive aggregation
	// searchRegistrant and confirmAttendance are absent: never cached.
}

// TTL returns the freshness window for a tool. Zero means bypass.
func TTL(tool string) time.Duration {
	return ttlByTool[tool]
}

// Key builds the deterministic cache key for a tool call. Parameters with
// nil values are excluded; the rest are sorted by name ascending.
func Key(tool string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if value == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("expogate:")
	b.WriteString(tool)
	b.WriteString(":")
	for i, name := range names {
		if i > 0 {
			b.WriteString("&")
		}
		fmt.Fprintf(&b, "%s=%v", name, params[name])
	}
	return b.String()
}
