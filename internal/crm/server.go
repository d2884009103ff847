package crm

import (
	"context"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server exposes the CRM store as MCP lookup tools over streamable HTTP.
type Server struct {
	store     *Store
	logger    *slog.Logger
	mcpServer *mcpserver.MCPServer
	httpSrv   *mcpserver.StreamableHTTPServer
}

// NewServer builds the MCP server and registers every tool.
func NewServer(store *Store, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		logger: logger,
		mcpServer: mcpserver.NewMCPServer(
			"fraudwatch-crm",
			"1.0.0",
			mcpserver.WithToolCapabilities(true),
		),
	}
	s.registerTools()
	s.httpSrv = mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
	)
	return s
}

// Start serves MCP over HTTP on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("crm tool server listening", "addr", addr)
	return s.httpSrv.Start(addr)
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
