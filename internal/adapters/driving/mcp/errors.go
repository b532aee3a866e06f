// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants query the document corpus and inspect sync state.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrSyncUnavailable is returned by sync tools when no orchestrator is wired.
var ErrSyncUnavailable = errors.New("mcp: sync is not configured")
