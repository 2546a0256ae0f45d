package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openrisk/margin-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO simm_runs (id, simm_version, calculation_currency, result_currency, record_count, status, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.SimmVersion, run.CalculationCurrency, run.ResultCurrency,
		run.RecordCount, run.Status, run.Error, run.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run

	err := s.pool.QueryRow(ctx,
		`SELECT id, simm_version, calculation_currency, result_currency,
		        record_count, status, COALESCE(error, ''), created_at, completed_at
		 FROM simm_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.SimmVersion, &run.CalculationCurrency, &run.ResultCurrency,
			&run.RecordCount, &run.Status, &run.Error, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, simm_version, calculation_currency, result_currency,
		        record_count, status, COALESCE(error, ''), created_at, completed_at
		 FROM simm_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		if err := rows.Scan(&run.ID, &run.SimmVersion, &run.CalculationCurrency, &run.ResultCurrency,
			&run.RecordCount, &run.Status, &run.Error, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) FinishRun(ctx context.Context, id, status, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE simm_runs
		 SET status = $2, error = $3, completed_at = NOW()
		 WHERE id = $1`,
		id, status, errMsg,
	)
	return err
}

func (s *PostgresStore) InsertMargins(ctx context.Context, rowsIn []model.MarginRow) error {
	batch := &pgx.Batch{}
	for _, row := range rowsIn {
		batch.Queue(
			`INSERT INTO simm_margins (run_id, side, netting_set_id, regulation,
			                           product_class, risk_class, margin_type, bucket,
			                           margin, currency, winning)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10, $11)`,
			row.RunID, row.Side, row.NettingSetID, row.Regulation,
			row.ProductClass, row.RiskClass, row.MarginType, row.Bucket,
			row.Margin.String(), row.Currency, row.Winning,
		)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) GetMargins(ctx context.Context, runID string) ([]model.MarginRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, side, netting_set_id, regulation,
		        product_class, risk_class, margin_type, bucket,
		        margin::TEXT, currency, winning
		 FROM simm_margins
		 WHERE run_id = $1
		 ORDER BY side, netting_set_id, regulation, product_class, risk_class, margin_type, bucket`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.MarginRow
	for rows.Next() {
		var row model.MarginRow
		var marginS string
		if err := rows.Scan(&row.RunID, &row.Side, &row.NettingSetID, &row.Regulation,
			&row.ProductClass, &row.RiskClass, &row.MarginType, &row.Bucket,
			&marginS, &row.Currency, &row.Winning); err != nil {
			return nil, err
		}
		row.Margin, _ = decimal.NewFromString(marginS)
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *PostgresStore) GetNettingSetSummaries(ctx context.Context, runID string) ([]model.NettingSetSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT side, netting_set_id, regulation, margin::TEXT, currency
		 FROM simm_margins
		 WHERE run_id = $1 AND winning
		   AND product_class = 'All' AND risk_class = 'All'
		   AND margin_type = 'All' AND bucket = 'All'
		 ORDER BY side, netting_set_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.NettingSetSummary
	for rows.Next() {
		var sum model.NettingSetSummary
		var marginS string
		if err := rows.Scan(&sum.Side, &sum.NettingSetID, &sum.Regulation, &marginS, &sum.Currency); err != nil {
			return nil, err
		}
		sum.RunID = runID
		sum.TotalIM, _ = decimal.NewFromString(marginS)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
