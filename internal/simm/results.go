package simm

import (
	"fmt"
	"sort"

	"github.com/openrisk/margin-engine/internal/crif"
)

// ResultKey addresses one cell of the margin results cube. The All
// wildcards mark aggregates over the corresponding dimension.
type ResultKey struct {
	ProductClass crif.ProductClass `json:"product_class"`
	RiskClass    RiskClass         `json:"risk_class"`
	MarginType   MarginType        `json:"margin_type"`
	Bucket       string            `json:"bucket"`
}

// Results is the sparse margin results cube for one (side, netting set,
// regulation) triple. Cells are only present when the corresponding margin
// was actually calculated, so callers must guard reads with Has.
type Results struct {
	currency string
	cells    map[ResultKey]float64
}

// NewResults creates an empty results cube denominated in ccy.
func NewResults(ccy string) *Results {
	return &Results{currency: ccy, cells: make(map[ResultKey]float64)}
}

// Currency returns the denomination of all cell values.
func (r *Results) Currency() string { return r.currency }

// Add writes a margin into a cell. With overwrite the value replaces any
// existing cell; without it the value accumulates, which is how additional
// margins fold into already-populated aggregates.
func (r *Results) Add(pc crif.ProductClass, rc RiskClass, mt MarginType, bucket string, margin float64, overwrite bool) {
	key := ResultKey{ProductClass: pc, RiskClass: rc, MarginType: mt, Bucket: bucket}
	if v, ok := r.cells[key]; ok && !overwrite {
		r.cells[key] = v + margin
		return
	}
	r.cells[key] = margin
}

// Has reports whether the cell is populated.
func (r *Results) Has(pc crif.ProductClass, rc RiskClass, mt MarginType, bucket string) bool {
	_, ok := r.cells[ResultKey{ProductClass: pc, RiskClass: rc, MarginType: mt, Bucket: bucket}]
	return ok
}

// Get returns the cell value, or zero when the cell is absent.
func (r *Results) Get(pc crif.ProductClass, rc RiskClass, mt MarginType, bucket string) float64 {
	return r.cells[ResultKey{ProductClass: pc, RiskClass: rc, MarginType: mt, Bucket: bucket}]
}

// Len returns the number of populated cells.
func (r *Results) Len() int { return len(r.cells) }

// Convert divides every cell by the USD spot rate for the target currency
// and re-denominates the cube.
func (r *Results) Convert(fxSpot float64, ccy string) error {
	if fxSpot <= 0 {
		return fmt.Errorf("simm: USD spot rate must be positive, got %v", fxSpot)
	}
	for k, v := range r.cells {
		r.cells[k] = v / fxSpot
	}
	r.currency = ccy
	return nil
}

// Entry is one populated cell with its value.
type Entry struct {
	ResultKey
	Margin   float64 `json:"margin"`
	Currency string  `json:"currency"`
}

// Entries returns all populated cells sorted by key, for reporting and
// persistence.
func (r *Results) Entries() []Entry {
	out := make([]Entry, 0, len(r.cells))
	for k, v := range r.cells {
		out = append(out, Entry{ResultKey: k, Margin: v, Currency: r.currency})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ResultKey, out[j].ResultKey
		if a.ProductClass != b.ProductClass {
			return a.ProductClass < b.ProductClass
		}
		if a.RiskClass != b.RiskClass {
			return a.RiskClass < b.RiskClass
		}
		if a.MarginType != b.MarginType {
			return a.MarginType < b.MarginType
		}
		return a.Bucket < b.Bucket
	})
	return out
}
