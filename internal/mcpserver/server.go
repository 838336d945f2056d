// Package mcpserver exposes read-only inspection tools over MCP so teachers
// and dashboards can query live sessions and stored results without joining
// the websocket protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"quiz-arena/internal/session"
	"quiz-arena/internal/store"
)

type Server struct {
	store    *store.Store
	registry *session.Registry

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(st *store.Store, registry *session.Registry) *Server {
	mcpSrv := server.NewMCPServer(
		"quiz-arena",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		store:      st,
		registry:   registry,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"session://{session_code}/standings",
			"session_standings",
			mcp.WithTemplateDescription("Live standings for a session code"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, "session://") || !strings.HasSuffix(raw, "/standings") {
				return nil, nil
			}
			code := strings.TrimSuffix(strings.TrimPrefix(raw, "session://"), "/standings")
			if code == "" {
				return nil, nil
			}
			sess, err := s.registry.Get(code)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(map[string]any{
				"session_code": code,
				"standings":    sess.Standings(),
			})
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}
