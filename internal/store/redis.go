package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openrisk/margin-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateRun(ctx context.Context, run *model.Run) error {
	if err := s.primary.CreateRun(ctx, run); err != nil {
		return err
	}
	s.cacheRun(ctx, run)
	return nil
}

func (s *CachedStore) FinishRun(ctx context.Context, id, status, errMsg string) error {
	if err := s.primary.FinishRun(ctx, id, status, errMsg); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, runKey(id))
	return nil
}

func (s *CachedStore) InsertMargins(ctx context.Context, rows []model.MarginRow) error {
	if err := s.primary.InsertMargins(ctx, rows); err != nil {
		return err
	}
	// Rows of one batch all belong to the same run.
	if len(rows) > 0 {
		s.rdb.Del(ctx, marginsKey(rows[0].RunID), summariesKey(rows[0].RunID))
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err == nil {
		var run model.Run
		if json.Unmarshal(data, &run) == nil {
			return &run, nil
		}
	}

	// Cache miss: read from primary.
	run, err := s.primary.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheRun(ctx, run)
	return run, nil
}

func (s *CachedStore) GetMargins(ctx context.Context, runID string) ([]model.MarginRow, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, marginsKey(runID)).Bytes()
	if err == nil {
		var rows []model.MarginRow
		if json.Unmarshal(data, &rows) == nil {
			return rows, nil
		}
	}

	// Cache miss.
	rows, err := s.primary.GetMargins(ctx, runID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rows); err == nil {
		s.rdb.Set(ctx, marginsKey(runID), data, s.ttl)
	}
	return rows, nil
}

func (s *CachedStore) GetNettingSetSummaries(ctx context.Context, runID string) ([]model.NettingSetSummary, error) {
	data, err := s.rdb.Get(ctx, summariesKey(runID)).Bytes()
	if err == nil {
		var summaries []model.NettingSetSummary
		if json.Unmarshal(data, &summaries) == nil {
			return summaries, nil
		}
	}

	summaries, err := s.primary.GetNettingSetSummaries(ctx, runID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summaries); err == nil {
		s.rdb.Set(ctx, summariesKey(runID), data, s.ttl)
	}
	return summaries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	return s.primary.ListRuns(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRun(ctx context.Context, run *model.Run) {
	if data, err := json.Marshal(run); err == nil {
		s.rdb.Set(ctx, runKey(run.ID), data, s.ttl)
	}
}

func runKey(id string) string        { return fmt.Sprintf("run:%s", id) }
func marginsKey(id string) string    { return fmt.Sprintf("margins:%s", id) }
func summariesKey(id string) string  { return fmt.Sprintf("summaries:%s", id) }
