package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/xaenox/doc-analyzer/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	analyses map[string]*models.AnalysisRecord
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		analyses: make(map[string]*models.AnalysisRecord),
	}
}

// SaveAnalysis inserts or replaces the record for rec.CallID
func (s *MemoryStorage) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses[rec.CallID] = copyRecord(rec)
	return nil
}

func (s *MemoryStorage) GetAnalysis(ctx context.Context, callID string) (*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, exists := s.analyses[callID]; exists {
		return copyRecord(rec), nil
	}
	return nil, ErrNotFound
}

// ListAnalyses returns the most recent records first
func (s *MemoryStorage) ListAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AnalysisRecord, 0, len(s.analyses))
	for _, rec := range s.analyses {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func copyRecord(rec *models.AnalysisRecord) *models.AnalysisRecord {
	c := *rec
	if rec.FinishedAt != nil {
		t := *rec.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
