// ABOUTME: MCP server setup for the periodize training store.
// ABOUTME: Wraps the MCP server with the local store, the signed-in user and an optional sync trigger.
package mcp

import (
	"context"
	"time"

	"github.com/harperreed/periodize/internal/storage"
	"github.com/harperreed/periodize/internal/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Syncer runs one sync pass on demand.
type Syncer interface {
	Sync(ctx context.Context) (*sync.Report, error)
}

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	store     *storage.Store
	userID    string
	syncer    Syncer
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithSyncer enables the sync_now tool.
func WithSyncer(s Syncer) Option {
	return func(srv *Server) { srv.syncer = s }
}

// NewServer creates a new MCP server acting as userID on store.
func NewServer(store *storage.Store, userID string, opts ...Option) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "periodize",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		store:     store,
		userID:    userID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
