package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/expokossodo/expogate/internal/ctxutil"
	"github.com/expokossodo/expogate/internal/gateway"
	"github.com/expokossodo/expogate/internal/model"
	"github.com/expokossodo/expogate/internal/storage"
)

type handlers struct {
	gateway             *gateway.Gateway
	db                  *storage.DB
	logger              *slog.Logger
	version             string
	maxRequestBodyBytes int64
}

// statusForCode maps pipeline error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// HandleToolCall is POST /mcp/tools/{tool}: the single entry point for all
// seven tools.
func (h *handlers) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	tool := r.PathValue("tool")
	principal := ctxutil.PrincipalFromContext(r.Context())

	params := map[string]any{}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "request body too large or unreadable", nil)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "request body must be a JSON object", nil)
			return
		}
	}

	out, res, err := h.gateway.Dispatch(r.Context(), principal, tool, params)
	if res.Limit > 0 {
		for k, v := range res.FormatHeaders() {
			w.Header().Set(k, v)
		}
	}
	if err != nil {
		var te *model.ToolError
		if !errors.As(err, &te) {
			h.logger.Error("tool call failed", "tool", tool, "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "an internal error occurred", nil)
			return
		}
		if te.Code == model.ErrCodeRateLimited {
			w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
		}
		writeError(w, r, statusForCode(te.Code), te.Code, te.Message, te.Details)
		return
	}

	writeJSON(w, r, http.StatusOK, out)
}

// HandleToolsHealth is GET /mcp/tools/health: lists the exposed tools.
func (h *handlers) HandleToolsHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"tools": []string{
			model.ToolListEvents,
			model.ToolListRegistrants,
			model.ToolGetCapacity,
			model.ToolConfirmAttendance,
			model.ToolGetStatistics,
			model.ToolSearchRegistrant,
			model.ToolGetRoomEventMap,
		},
	})
}

// HandleHealth is GET /health.
func (h *handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}
