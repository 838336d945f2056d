package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_sessions",
			mcp.WithDescription("List stored sessions with their status, flagging the live ones"),
		),
		s.handleListSessions,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"session_standings",
			mcp.WithDescription("Live per-student standings (phase, damage, correct answers) for a session"),
			mcp.WithString("session_code", mcp.Required(), mcp.Description("Session code")),
		),
		s.handleSessionStandings,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"recent_results",
			mcp.WithDescription("Most recent finished matches of a session"),
			mcp.WithString("session_code", mcp.Required(), mcp.Description("Session code")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 200")),
		),
		s.handleRecentResults,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"tournament_result",
			mcp.WithDescription("Final tournament winner of a session, if decided"),
			mcp.WithString("session_code", mcp.Required(), mcp.Description("Session code")),
		),
		s.handleTournamentResult,
	)
}

func (s *Server) handleListSessions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return mapDomainError(err), nil
	}
	live := map[string]bool{}
	for _, code := range s.registry.Codes() {
		live[code] = true
	}
	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, map[string]any{
			"session_code": sess.Code,
			"status":       sess.Status,
			"created_at":   sess.CreatedAt,
			"live":         live[sess.Code],
		})
	}
	return toolResult(map[string]any{"sessions": out}), nil
}

func (s *Server) handleSessionStandings(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("session_code")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	sess, err := s.registry.Get(code)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{
		"session_code": code,
		"standings":    sess.Standings(),
	}), nil
}

func (s *Server) handleRecentResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("session_code")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	limit := request.GetInt("limit", defaultPageLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	matches, err := s.store.ListRecentMatches(ctx, code, limit)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{
		"session_code": code,
		"matches":      matches,
	}), nil
}

func (s *Server) handleTournamentResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("session_code")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	result, err := s.store.GetTournamentResult(ctx, code)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(result), nil
}
