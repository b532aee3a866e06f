package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsValid(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.IsValid(), s.String())
	}
	assert.False(t, Status("original_uploaded").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusUploaded, false},
		{StatusProcessing, false},
		{StatusEmbedded, true},
		{StatusDuplicate, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestDocument_Format(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.PDF", "pdf"},
		{"notes.txt", "txt"},
		{"archive.tar.gz", "gz"},
		{"README", "unknown"},
		{"trailing.", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			doc := Document{Filename: tt.filename}
			assert.Equal(t, tt.want, doc.Format())
		})
	}
}
