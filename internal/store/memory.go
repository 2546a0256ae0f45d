package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openrisk/margin-engine/internal/crif"
	"github.com/openrisk/margin-engine/internal/model"
	"github.com/openrisk/margin-engine/internal/simm"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*model.Run
	margins []model.MarginRow
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*model.Run),
	}
}

func (s *MemoryStore) CreateRun(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *run
	s.runs[run.ID] = &copy
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	copy := *run
	return &copy, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStore) FinishRun(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	run.Status = status
	run.Error = errMsg
	now := time.Now().UTC()
	run.CompletedAt = &now
	return nil
}

func (s *MemoryStore) InsertMargins(_ context.Context, rows []model.MarginRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.margins = append(s.margins, rows...)
	return nil
}

func (s *MemoryStore) GetMargins(_ context.Context, runID string) ([]model.MarginRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.MarginRow
	for _, row := range s.margins {
		if row.RunID == runID {
			result = append(result, row)
		}
	}
	return result, nil
}

// GetNettingSetSummaries scans the winning rows for the total IM cell of
// each (side, netting set).
func (s *MemoryStore) GetNettingSetSummaries(_ context.Context, runID string) ([]model.NettingSetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []model.NettingSetSummary
	for _, row := range s.margins {
		if row.RunID != runID || !row.Winning {
			continue
		}
		if row.ProductClass != string(crif.ProductClassAll) ||
			row.RiskClass != string(simm.RiskClassAll) ||
			row.MarginType != string(simm.MarginTypeAll) ||
			row.Bucket != simm.BucketAll {
			continue
		}
		summaries = append(summaries, model.NettingSetSummary{
			RunID:        runID,
			Side:         row.Side,
			NettingSetID: row.NettingSetID,
			Regulation:   row.Regulation,
			TotalIM:      row.Margin,
			Currency:     row.Currency,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Side != summaries[j].Side {
			return summaries[i].Side < summaries[j].Side
		}
		return summaries[i].NettingSetID < summaries[j].NettingSetID
	})
	return summaries, nil
}
