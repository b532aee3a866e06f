// Package httpapi serves the corpus over HTTP: uploads, sync and search,
// with per-client rate limiting on the public routes.
package httpapi

import "errors"

// Errors returned by NewServer when a required port is missing.
var (
	ErrMissingUploadService    = errors.New("httpapi: upload service is required")
	ErrMissingSyncService      = errors.New("httpapi: sync orchestrator is required")
	ErrMissingRetrievalService = errors.New("httpapi: retrieval service is required")
)
