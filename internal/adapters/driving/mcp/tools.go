package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// recentRuns is the number of runs reported by sync_status.
const recentRuns = 5

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the question or phrase to search for"`
	K             int      `json:"k,omitempty" jsonschema:"number of chunks to return (default from settings)"`
	ContentWeight *float64 `json:"content_weight,omitempty" jsonschema:"weight of the chunk text similarity"`
	MetaWeight    *float64 `json:"meta_weight,omitempty" jsonschema:"weight of the document summary similarity"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results   []SearchResultOutput `json:"results"`
	Count     int                  `json:"count"`
	NoContext bool                 `json:"no_context"`
	Reason    string               `json:"reason,omitempty"`
}

// SearchResultOutput represents a single ranked chunk.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// SyncStatusInput is the (empty) input schema for the sync_status tool.
type SyncStatusInput struct{}

// SyncStatusOutput is the output schema for the sync_status tool.
type SyncStatusOutput struct {
	Total      int                   `json:"total"`
	TotalSize  int64                 `json:"total_size"`
	ByStatus   map[domain.Status]int `json:"by_status"`
	SyncNeeded bool                  `json:"sync_needed"`
	Running    bool                  `json:"running"`
	RecentRuns []domain.SyncRun      `json:"recent_runs"`
}

// SyncInput is the (empty) input schema for the sync tool.
type SyncInput struct{}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the document corpus and return the most relevant text chunks",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Report document counts by processing status and the latest sync runs",
	}, s.handleSyncStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync",
		Description: "Process every uploaded document into the vector store",
	}, s.handleSync)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	var opts domain.RetrievalOptions
	if input.K > 0 {
		k := input.K
		opts.K = &k
	}
	opts.ContentWeight = input.ContentWeight
	opts.MetaWeight = input.MetaWeight

	resp, err := s.ports.Retrieval.Retrieve(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:   make([]SearchResultOutput, len(resp.Results)),
		Count:     len(resp.Results),
		NoContext: resp.NoContext,
		Reason:    resp.Reason,
	}
	for i, r := range resp.Results {
		output.Results[i] = SearchResultOutput{
			DocumentID: metaString(r.Metadata, "document_id"),
			Filename:   metaString(r.Metadata, "filename"),
			Score:      r.Score,
			Content:    r.Content,
		}
	}
	return nil, output, nil
}

// handleSyncStatus handles the sync_status tool invocation.
func (s *Server) handleSyncStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ SyncStatusInput,
) (*mcp.CallToolResult, SyncStatusOutput, error) {
	if s.ports.Sync == nil {
		return nil, SyncStatusOutput{}, ErrSyncUnavailable
	}

	stats, err := s.ports.Sync.Stats(ctx)
	if err != nil {
		return nil, SyncStatusOutput{}, err
	}
	runs, err := s.ports.Sync.RecentRuns(ctx, recentRuns)
	if err != nil {
		return nil, SyncStatusOutput{}, err
	}
	if runs == nil {
		runs = []domain.SyncRun{}
	}

	return nil, SyncStatusOutput{
		Total:      stats.Total,
		TotalSize:  stats.TotalSize,
		ByStatus:   stats.ByStatus,
		SyncNeeded: stats.SyncNeeded(),
		Running:    s.ports.Sync.Running(),
		RecentRuns: runs,
	}, nil
}

// handleSync handles the sync tool invocation.
func (s *Server) handleSync(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ SyncInput,
) (*mcp.CallToolResult, domain.SyncReport, error) {
	if s.ports.Sync == nil {
		return nil, domain.SyncReport{}, ErrSyncUnavailable
	}
	report, err := s.ports.Sync.Sync(ctx, domain.TriggerMCP)
	if err != nil {
		return nil, domain.SyncReport{}, err
	}
	return nil, *report, nil
}

func metaString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
