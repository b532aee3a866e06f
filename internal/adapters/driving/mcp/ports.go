package mcp

import (
	"github.com/custodia-labs/corpus/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers search queries.
	Retrieval driving.RetrievalService

	// Sync reports and runs document processing. Optional.
	Sync driving.SyncOrchestrator
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
