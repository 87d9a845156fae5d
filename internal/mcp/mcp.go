// Package mcp implements the Model Context Protocol surface of the gateway.
//
// Every tool goes through the same dispatch pipeline as the HTTP API, so
// role checks, admission control, and caching behave identically on both
// transports. The principal is taken from the request context, which the
// HTTP auth middleware populates before the MCP transport sees the call.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/expokossodo/expogate/internal/ctxutil"
	"github.com/expokossodo/expogate/internal/gateway"
	"github.com/expokossodo/expogate/internal/model"
)

// Server wraps the MCP server around the tool gateway.
type Server struct {
	mcpServer *mcpserver.MCPServer
	gateway   *gateway.Gateway
	logger    *slog.Logger
}

// New creates and configures an MCP server with all seven tools registered.
func New(gw *gateway.Gateway, version string, logger *slog.Logger) *Server {
	s := &Server{
		gateway: gw,
		logger:  logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"expogate",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool(model.ToolListEvents,
			mcplib.WithDescription("List conference events, optionally filtered by date range, room, or a free-text query over title and speaker"),
			mcplib.WithString("fechaInicio", mcplib.Description("Range start, YYYY-MM-DD")),
			mcplib.WithString("fechaFin", mcplib.Description("Range end, YYYY-MM-DD")),
			mcplib.WithString("sala", mcplib.Description("Room name filter, case-insensitive substring")),
			mcplib.WithString("query", mcplib.Description("Free-text filter over title and speaker")),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleTool(model.ToolListEvents),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(model.ToolListRegistrants,
			mcplib.WithDescription("List registrants for one event or for one conference day, paginated"),
			mcplib.WithNumber("eventoId", mcplib.Description("Event identifier")),
			mcplib.WithString("dia", mcplib.Description("Conference day, YYYY-MM-DD")),
			mcplib.WithString("sala", mcplib.Description("Room name filter when listing by day")),
			mcplib.WithNumber("page", mcplib.Description("Page number, starting at 1")),
			mcplib.WithNumber("pageSize", mcplib.Description("Rows per page, 1-100")),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleTool(model.ToolListRegistrants),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(model.ToolGetCapacity,
			mcplib.WithDescription("Get capacity figures for one event: total seats, registered, confirmed, attended, and estimated no-shows"),
			mcplib.WithNumber("eventoId", mcplib.Description("Event identifier"), mcplib.Required()),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleTool(model.ToolGetCapacity),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(model.ToolConfirmAttendance,
			mcplib.WithDescription("Record or update a registrant's attendance at an event. Repeating the call updates the existing record."),
			mcplib.WithNumber("registroId", mcplib.Description("Registrant identifier"), mcplib.Required()),
			mcplib.WithNumber("eventoId", mcplib.Description("Event identifier"), mcplib.Required()),
			mcplib.WithString("estado", mcplib.Description("Attendance state: PRESENTE, AUSENTE, or TARDE"), mcplib.Required()),
			mcplib.WithString("observacion", mcplib.Description("Optional note, up to 500 characters")),
			mcplib.WithIdempotentHintAnnotation(true),
		),
		s.handleTool(model.ToolConfirmAttendance),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(model.ToolGetStatistics,
			mcplib.WithDescription("Compute KPIs over a date range: inscritos, confirmados, tasaAsistencia, noShow, leadsPorFuente, eventosMasPopulares"),
			mcplib.WithArray("kpis", mcplib.Description("KPI names to compute"), mcplib.Required(),
				mcplib.Items(map[string]any{"type": "string"})),
			mcplib.WithString("granularidad", mcplib.Description("Aggregation granularity: DIA, EVENTO, or SALA"), mcplib.Required(),
				mcplib.Enum("DIA", "EVENTO", "SALA")),
			mcplib.WithObject("rango", mcplib.Description("Inclusive date range"), mcplib.Required(),
				mcplib.Properties(map[string]any{
					"inicio": map[string]any{"type": "string", "description": "Range start, YYYY-MM-DD"},
					"fin":    map[string]any{"type": "string", "description": "Range end, YYYY-MM-DD"},
				})),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleTool(model.ToolGetStatistics),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(model.ToolSearchRegistrant,
			mcplib.WithDescription("Search registrants by name, email, organization, or document number"),
			mcplib.WithString("query", mcplib.Description("Search text, at least two characters"), mcplib.Required()),
			mcplib.WithArray("campos", mcplib.Description("Fields to search: nombre, email, empresa, doc. Defaults to nombre, email, empresa."),
				mcplib.Items(map[string]any{"type": "string"})),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleTool(model.ToolSearchRegistrant),
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(model.ToolGetRoomEventMap,
			mcplib.WithDescription("Map of rooms to their scheduled events for one conference day"),
			mcplib.WithString("dia", mcplib.Description("Conference day, YYYY-MM-DD"), mcplib.Required()),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleTool(model.ToolGetRoomEventMap),
	)
}

// handleTool adapts one gateway tool into an MCP tool handler. All tools
// share the same shape: arguments pass through to Dispatch untouched, and
// tool errors come back as MCP error results rather than protocol errors.
func (s *Server) handleTool(tool string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		params := request.GetArguments()
		if params == nil {
			params = map[string]any{}
		}

		out, res, err := s.gateway.Dispatch(ctx, ctxutil.PrincipalFromContext(ctx), tool, params)
		if err != nil {
			var toolErr *model.ToolError
			if errors.As(err, &toolErr) {
				return errorResult(toolErr), nil
			}
			s.logger.Error("mcp: tool call failed", "tool", tool, "error", err)
			return errorResult(model.Internal()), nil
		}

		if res.Limit > 0 {
			s.logger.Debug("mcp: tool call admitted",
				"tool", tool,
				"remaining", res.Remaining,
			)
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("mcp: marshal %s result: %w", tool, err)
		}

		return &mcplib.CallToolResult{
			Content: []mcplib.Content{
				mcplib.TextContent{Type: "text", Text: string(data)},
			},
		}, nil
	}
}

func errorResult(toolErr *model.ToolError) *mcplib.CallToolResult {
	data, err := json.Marshal(toolErr)
	if err != nil {
		data = []byte(toolErr.Message)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
		IsError: true,
	}
}
