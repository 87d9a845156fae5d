// Package gateway dispatches tool calls through the shared pipeline:
// authorize, admit, validate, execute. Authentication happens at the
// transport edge; every stage here returns a typed *model.ToolError that
// transports map to their own status space.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/expokossodo/expogate/internal/authz"
	"github.com/expokossodo/expogate/internal/cache"
	"github.com/expokossodo/expogate/internal/kpi"
	"github.com/expokossodo/expogate/internal/model"
	"github.com/expokossodo/expogate/internal/ratelimit"
)

// Store is the subset of the storage layer the gateway reads and writes.
// *storage.DB satisfies it.
type Store interface {
	ListEvents(ctx context.Context, fechaInicio, fechaFin *time.Time, sala, query string) ([]model.EventInfo, error)
	RoomEventMap(ctx context.Context, dia time.Time) ([]model.RoomEventItem, error)
	CapacityByEvent(ctx context.Context, eventoID int64) (model.Capacity, error)
	ListRegistrantsByEvent(ctx context.Context, eventoID int64, page, pageSize int) (int, []model.RegistrantInfo, error)
	ListRegistrantsByDay(ctx context.Context, dia time.Time, sala string, page, pageSize int) (int, []model.RegistrantInfo, error)
	SearchRegistrants(ctx context.Context, query string, campos []string) ([]model.SearchMatch, error)
	UpsertAttendance(ctx context.Context, rec model.AttendanceRecord) (time.Time, error)
	EventExists(ctx context.Context, eventoID int64) (bool, error)
	RegistrantExists(ctx context.Context, registroID int64) (bool, error)
}

// Gateway wires the pipeline stages together.
type Gateway struct {
	store   Store
	limiter *ratelimit.Limiter
	cache   *cache.Gateway
	kpis    *kpi.Engine
	logger  *slog.Logger

	readRule  ratelimit.Rule
	writeRule ratelimit.Rule
}

// New creates a Gateway. readRule and writeRule govern admission for
// read-only and mutating tools respectively.
func New(store Store, limiter *ratelimit.Limiter, cacheGW *cache.Gateway, kpis *kpi.Engine, readRule, writeRule ratelimit.Rule, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:     store,
		limiter:   limiter,
		cache:     cacheGW,
		kpis:      kpis,
		logger:    logger,
		readRule:  readRule,
		writeRule: writeRule,
	}
}

// Dispatch runs one tool call through the pipeline. The returned Result
// carries the rate-limit window state for response headers; it is zero
// when the call failed before admission.
func (g *Gateway) Dispatch(ctx context.Context, p *model.Principal, tool string, params map[string]any) (any, ratelimit.Result, error) {
	if p == nil {
		return nil, ratelimit.Result{}, model.Unauthorized("authentication required")
	}
	if !authz.Allowed(p.Role, tool) {
		return nil, ratelimit.Result{}, model.PermissionDenied(tool, p.Role)
	}

	rule := g.readRule
	if tool == model.ToolConfirmAttendance {
		rule = g.writeRule
	}
	res := g.limiter.Allow(rule, p.ID+":"+tool)
	if !res.Allowed {
		return nil, res, model.RateLimited(res.RetryAfterSeconds())
	}

	out, err := g.handle(ctx, p, tool, params)
	if err != nil {
		return nil, res, err
	}
	return out, res, nil
}

func (g *Gateway) handle(ctx context.Context, p *model.Principal, tool string, params map[string]any) (any, error) {
	switch tool {
	case model.ToolListEvents:
		return g.listEvents(ctx, params)
	case model.ToolListRegistrants:
		return g.listRegistrants(ctx, params)
	case model.ToolGetCapacity:
		return g.getCapacity(ctx, params)
	case model.ToolConfirmAttendance:
		return g.confirmAttendance(ctx, p, params)
	case model.ToolGetStatistics:
		return g.getStatistics(ctx, params)
	case model.ToolSearchRegistrant:
		return g.searchRegistrant(ctx, params)
	case model.ToolGetRoomEventMap:
		return g.getRoomEventMap(ctx, params)
	default:
		return nil, model.Invalid("tool %q is not available", tool)
	}
}

// decode binds loose tool parameters into a typed input. A JSON round
// trip keeps the binding rules identical across transports.
func decode(params map[string]any, dst any) error {
	b, err := json.Marshal(params)
	if err != nil {
		return model.Invalid("invalid parameters: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return model.Invalid("invalid parameters: %v", err)
	}
	return nil
}

// keyParams normalizes a validated input back into the parameter map used
// for cache keys, so equivalent calls share an entry regardless of how the
// transport spelled them.
func keyParams(in any) map[string]any {
	b, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// internalErr logs the cause and returns the caller-safe error. Typed
// pipeline errors pass through untouched.
func (g *Gateway) internalErr(tool string, err error) error {
	var te *model.ToolError
	if errors.As(err, &te) {
		return te
	}
	g.logger.Error("tool execution failed", "tool", tool, "error", err)
	return model.Internal()
}
