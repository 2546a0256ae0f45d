// Package store defines the persistence interface for the margin engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/openrisk/margin-engine/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Run lifecycle ---

	// CreateRun persists a new calculation run in the running state.
	CreateRun(ctx context.Context, run *model.Run) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]model.Run, error)

	// FinishRun marks a run completed or failed.
	FinishRun(ctx context.Context, id, status, errMsg string) error

	// --- Immutable margin rows ---

	// InsertMargins appends the result cells of one completed run.
	InsertMargins(ctx context.Context, rows []model.MarginRow) error

	// GetMargins returns all margin rows for a run.
	GetMargins(ctx context.Context, runID string) ([]model.MarginRow, error)

	// --- Summary queries ---

	// GetNettingSetSummaries returns the winning total IM per
	// (side, netting set) from the stored rows.
	GetNettingSetSummaries(ctx context.Context, runID string) ([]model.NettingSetSummary, error)
}
