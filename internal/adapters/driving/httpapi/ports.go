package httpapi

import (
	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driving"
)

// SettingsSource provides the current settings.
type SettingsSource interface {
	Snapshot() domain.Settings
}

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Upload    driving.UploadService
	Sync      driving.SyncOrchestrator
	Retrieval driving.RetrievalService

	// Limiter guards the upload and search routes. Optional.
	Limiter driving.RateLimiter

	// Settings bounds upload bodies. Optional; defaults apply when nil.
	Settings SettingsSource
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Upload == nil:
		return ErrMissingUploadService
	case p.Sync == nil:
		return ErrMissingSyncService
	case p.Retrieval == nil:
		return ErrMissingRetrievalService
	}
	return nil
}
