// Package margin provides the HTTP handlers and business logic for
// submitting CRIF files, running SIMM calculations, and querying results.
//
// Margins cross the API as shopspring/decimal — never float64 for money.
package margin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openrisk/margin-engine/internal/crif"
	"github.com/openrisk/margin-engine/internal/fx"
	"github.com/openrisk/margin-engine/internal/metrics"
	"github.com/openrisk/margin-engine/internal/model"
	"github.com/openrisk/margin-engine/internal/simm"
	"github.com/openrisk/margin-engine/internal/store"
)

// Service handles calculation runs. Each run is independent, so requests
// are not serialized; the store is the only shared state.
type Service struct {
	store    store.Store
	cfg      simm.Configuration
	fxSource fx.Source
	calcCcy  string
	resultCcy string
	wsHub    *WSHub // optional WebSocket hub for run completion broadcasts
}

// NewService creates a new margin service. calcCcy and resultCcy are the
// defaults applied when a request does not name its own currencies.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, cfg simm.Configuration, fxSource fx.Source, calcCcy, resultCcy string, hub *WSHub) *Service {
	return &Service{
		store:     st,
		cfg:       cfg,
		fxSource:  fxSource,
		calcCcy:   calcCcy,
		resultCcy: resultCcy,
		wsHub:     hub,
	}
}

// --- Request/Response types ---

// CalculationRequest is the JSON body for POST /calculations.
type CalculationRequest struct {
	CRIF                 string `json:"crif"` // CRIF file contents, CSV
	CalculationCurrency  string `json:"calculation_currency,omitempty"`
	ResultCurrency       string `json:"result_currency,omitempty"`
	EnforceIMRegulations bool   `json:"enforce_im_regulations"`
	// DetermineWinningRegulations defaults to true when omitted.
	DetermineWinningRegulations *bool `json:"determine_winning_regulations,omitempty"`
}

// CalculationResponse is the JSON body returned from POST /calculations
// and GET /calculations/{runID}.
type CalculationResponse struct {
	Run       model.Run                 `json:"run"`
	Summaries []model.NettingSetSummary `json:"summaries"`
}

// --- HTTP Handlers ---

// CreateCalculation handles POST /api/v1/calculations
// Parses the CRIF, runs the calculation, and persists the results cube.
func (s *Service) CreateCalculation(w http.ResponseWriter, r *http.Request) {
	var req CalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.CRIF) == "" {
		writeError(w, "crif is required", http.StatusBadRequest)
		return
	}

	records, err := crif.ReadCSV(strings.NewReader(req.CRIF))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(records) == 0 {
		writeError(w, "crif contains no records", http.StatusBadRequest)
		return
	}

	calcCcy := req.CalculationCurrency
	if calcCcy == "" {
		calcCcy = s.calcCcy
	}
	resultCcy := req.ResultCurrency
	if resultCcy == "" {
		resultCcy = s.resultCcy
	}

	determineWinning := true
	if req.DetermineWinningRegulations != nil {
		determineWinning = *req.DetermineWinningRegulations
	}

	calc, err := simm.New(s.cfg, simm.Options{
		CalculationCurrency:         calcCcy,
		ResultCurrency:              resultCcy,
		FXSource:                    s.fxSource,
		EnforceIMRegulations:        req.EnforceIMRegulations,
		DetermineWinningRegulations: determineWinning,
	})
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	run := &model.Run{
		ID:                  uuid.New().String(),
		SimmVersion:         s.cfg.Version(),
		CalculationCurrency: calcCcy,
		ResultCurrency:      resultCcy,
		RecordCount:         len(records),
		Status:              model.RunStatusRunning,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		writeError(w, "failed to create run", http.StatusInternalServerError)
		return
	}

	start := time.Now()
	rs, err := calc.Run(ctx, records)
	metrics.CalculationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.store.FinishRun(ctx, run.ID, model.RunStatusFailed, err.Error())
		metrics.CalculationsTotal.WithLabelValues(model.RunStatusFailed).Inc()
		slog.Error("calculation failed", "run_id", run.ID, "err", err)
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	rows := flattenResults(run.ID, rs)
	if err := s.store.InsertMargins(ctx, rows); err != nil {
		s.store.FinishRun(ctx, run.ID, model.RunStatusFailed, err.Error())
		writeError(w, "failed to store margins", http.StatusInternalServerError)
		return
	}
	if err := s.store.FinishRun(ctx, run.ID, model.RunStatusCompleted, ""); err != nil {
		writeError(w, "failed to finish run", http.StatusInternalServerError)
		return
	}

	metrics.CalculationsTotal.WithLabelValues(model.RunStatusCompleted).Inc()
	metrics.CrifRecordsTotal.Add(float64(len(records)))
	metrics.NettingSetsPerRun.Observe(float64(len(rs.NettingSets(simm.SideCall))))

	summaries := summariesOf(run.ID, rs)

	slog.Info("calculation completed",
		"run_id", run.ID,
		"records", len(records),
		"netting_sets", len(rs.NettingSets(simm.SideCall)),
		"result_ccy", rs.ResultCurrency(),
		"duration", time.Since(start).String(),
	)

	// Broadcast headline margins via WebSocket.
	if s.wsHub != nil {
		for _, sum := range summaries {
			s.wsHub.Broadcast(WSMessage{
				Type:         "calculation_completed",
				RunID:        run.ID,
				Side:         sum.Side,
				NettingSetID: sum.NettingSetID,
				Regulation:   sum.Regulation,
				TotalIM:      sum.TotalIM.String(),
				Currency:     sum.Currency,
			})
		}
	}

	completed, err := s.store.GetRun(ctx, run.ID)
	if err != nil {
		completed = run
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CalculationResponse{Run: *completed, Summaries: summaries})
}

// GetCalculation handles GET /api/v1/calculations/{runID}
func (s *Service) GetCalculation(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}

	summaries, err := s.store.GetNettingSetSummaries(r.Context(), runID)
	if err != nil {
		writeError(w, "failed to load summaries", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []model.NettingSetSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CalculationResponse{Run: *run, Summaries: summaries})
}

// GetCalculationMargins handles GET /api/v1/calculations/{runID}/margins
// Returns the stored results cube, optionally filtered by ?side= and
// ?netting_set=.
func (s *Service) GetCalculationMargins(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}

	rows, err := s.store.GetMargins(r.Context(), runID)
	if err != nil {
		writeError(w, "failed to load margins", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []model.MarginRow{}
	}

	if side := r.URL.Query().Get("side"); side != "" {
		rows = filterRows(rows, func(row model.MarginRow) bool { return row.Side == side })
	}
	if ns := r.URL.Query().Get("netting_set"); ns != "" {
		rows = filterRows(rows, func(row model.MarginRow) bool { return row.NettingSetID == ns })
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

// ListCalculations handles GET /api/v1/calculations
func (s *Service) ListCalculations(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// --- Result flattening ---

// flattenResults turns a ResultSet into storable margin rows. Every
// regulation's cube is kept; winning rows are flagged.
func flattenResults(runID string, rs *simm.ResultSet) []model.MarginRow {
	var rows []model.MarginRow
	for _, side := range simm.Sides() {
		for _, nsd := range rs.NettingSets(side) {
			winner, hasWinner := rs.Winning(side, nsd)
			for _, reg := range rs.Regulations(side, nsd) {
				results, ok := rs.Results(side, nsd, reg)
				if !ok {
					continue
				}
				winning := hasWinner && reg == winner
				for _, entry := range results.Entries() {
					rows = append(rows, model.MarginRow{
						RunID:        runID,
						Side:         string(side),
						NettingSetID: nsd.NettingSetID,
						Regulation:   reg,
						ProductClass: string(entry.ProductClass),
						RiskClass:    string(entry.RiskClass),
						MarginType:   string(entry.MarginType),
						Bucket:       entry.Bucket,
						Margin:       decimal.NewFromFloat(entry.Margin),
						Currency:     entry.Currency,
						Winning:      winning,
					})
				}
			}
		}
	}
	return rows
}

// summariesOf extracts the winning total IM per (side, netting set).
func summariesOf(runID string, rs *simm.ResultSet) []model.NettingSetSummary {
	var summaries []model.NettingSetSummary
	for _, side := range simm.Sides() {
		for _, nsd := range rs.NettingSets(side) {
			final, ok := rs.Final(side, nsd)
			if !ok {
				continue
			}
			total := final.Results.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll)
			summaries = append(summaries, model.NettingSetSummary{
				RunID:        runID,
				Side:         string(side),
				NettingSetID: nsd.NettingSetID,
				Regulation:   final.Regulation,
				TotalIM:      decimal.NewFromFloat(total),
				Currency:     final.Results.Currency(),
			})
		}
	}
	return summaries
}

func filterRows(rows []model.MarginRow, keep func(model.MarginRow) bool) []model.MarginRow {
	filtered := make([]model.MarginRow, 0, len(rows))
	for _, row := range rows {
		if keep(row) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
