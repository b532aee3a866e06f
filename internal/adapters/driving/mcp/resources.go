package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for corpus resources.
	uriScheme = "corpus://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Document counts by processing status",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent sync runs, most recent first",
		MIMEType:    "application/json",
	}, s.handleRunsResource)
}

// handleStatsResource returns the document statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Sync == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	stats, err := s.ports.Sync.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return jsonResource(req.Params.URI, stats)
}

// handleRunsResource returns the recent sync runs.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Sync == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	runs, err := s.ports.Sync.RecentRuns(ctx, recentRuns)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return jsonResource(req.Params.URI, runs)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
