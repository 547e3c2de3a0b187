package storage

import (
	"context"
	"errors"

	"github.com/xaenox/doc-analyzer/internal/models"
)

// ErrNotFound is returned when no record exists for a call id
var ErrNotFound = errors.New("analysis record not found")

const (
	// DefaultListLimit applies when the caller passes no limit
	DefaultListLimit = 50
	// MaxListLimit caps any larger limit
	MaxListLimit = 1000
)

// Storage is the analysis journal. Records never contain extracted payloads.
type Storage interface {
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	GetAnalysis(ctx context.Context, callID string) (*models.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
	Close() error
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
