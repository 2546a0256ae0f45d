// Package model defines the core domain types shared across the margin engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents one margin calculation over a CRIF file: the inputs that
// shaped it and its lifecycle state.
type Run struct {
	ID                  string     `json:"id" db:"id"`
	SimmVersion         string     `json:"simm_version" db:"simm_version"`
	CalculationCurrency string     `json:"calculation_currency" db:"calculation_currency"`
	ResultCurrency      string     `json:"result_currency" db:"result_currency"`
	RecordCount         int        `json:"record_count" db:"record_count"`
	Status              string     `json:"status" db:"status"`
	Error               string     `json:"error,omitempty" db:"error"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// MarginRow is an immutable record of one cell of the results cube for one
// (side, netting set, regulation). Once a run completes, its rows are never
// modified or deleted.
type MarginRow struct {
	RunID        string          `json:"run_id" db:"run_id"`
	Side         string          `json:"side" db:"side"` // "Call" or "Post"
	NettingSetID string          `json:"netting_set_id" db:"netting_set_id"`
	Regulation   string          `json:"regulation" db:"regulation"`
	ProductClass string          `json:"product_class" db:"product_class"`
	RiskClass    string          `json:"risk_class" db:"risk_class"`
	MarginType   string          `json:"margin_type" db:"margin_type"`
	Bucket       string          `json:"bucket" db:"bucket"`
	Margin       decimal.Decimal `json:"margin" db:"margin"`
	Currency     string          `json:"currency" db:"currency"`
	Winning      bool            `json:"winning" db:"winning"`
}

// NettingSetSummary is the headline view of one netting set within a run:
// the winning regulation and total IM per side.
type NettingSetSummary struct {
	RunID        string          `json:"run_id"`
	Side         string          `json:"side"`
	NettingSetID string          `json:"netting_set_id"`
	Regulation   string          `json:"regulation"`
	TotalIM      decimal.Decimal `json:"total_im"`
	Currency     string          `json:"currency"`
}
