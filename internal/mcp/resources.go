// ABOUTME: MCP resource implementations for the training store.
// ABOUTME: Provides periodize://dashboard, periodize://records and periodize://pending resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/periodize/internal/models"
	"github.com/harperreed/periodize/internal/stats"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	dashboardURI = "periodize://dashboard"
	recordsURI   = "periodize://records"
	pendingURI   = "periodize://pending"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         dashboardURI,
		Name:        "Training Dashboard",
		Description: "Counts of plans, sessions by status, exercises, sets and total volume",
		MIMEType:    "application/json",
	}, s.handleDashboardResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         recordsURI,
		Name:        "Personal Records",
		Description: "Best set per exercise with estimated 1RM",
		MIMEType:    "application/json",
	}, s.handleRecordsResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         pendingURI,
		Name:        "Pending Sync",
		Description: "Local changes not yet acknowledged by the remote, per entity",
		MIMEType:    "application/json",
	}, s.handlePendingResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleDashboardResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	now := s.now()
	d, err := stats.BuildDashboard(s.store, s.userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	return jsonResource(dashboardURI, map[string]any{
		"generated_at": now.UTC().Format(time.RFC3339),
		"dashboard":    d,
	})
}

func (s *Server) handleRecordsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	prs, err := stats.PersonalRecords(s.store, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute records: %w", err)
	}
	return jsonResource(recordsURI, map[string]any{"records": prs})
}

func (s *Server) handlePendingResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	counts := map[string]int{}
	total := 0
	for _, kind := range models.Kinds {
		dirty, err := s.store.ListDirty(kind, s.userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending %s: %w", kind.Table(), err)
		}
		counts[kind.Table()] = len(dirty)
		total += len(dirty)
	}
	return jsonResource(pendingURI, map[string]any{"total": total, "by_table": counts})
}
