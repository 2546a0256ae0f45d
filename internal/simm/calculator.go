package simm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/openrisk/margin-engine/internal/crif"
	"github.com/openrisk/margin-engine/internal/fx"
)

// Options configures a Calculator.
type Options struct {
	// CalculationCurrency is the SIMM calculation currency. Required.
	CalculationCurrency string
	// ResultCurrency is the currency final margins are reported in.
	// Defaults to the calculation currency.
	ResultCurrency string
	// FXSource supplies the USD spot rate for result conversion. Only
	// required when the result currency is not USD.
	FXSource fx.Source
	// DetermineWinningRegulations enables selection of the winning
	// regulation per netting set after all margins are calculated.
	DetermineWinningRegulations bool
	// EnforceIMRegulations splits sensitivities by their collect and post
	// regulation strings instead of treating everything as unregulated.
	EnforceIMRegulations bool
	// RegulationPriority breaks ties between regulations with numerically
	// indistinguishable margins; earlier entries win. Defaults to
	// crif.RegulationPriority.
	RegulationPriority []string
	// Workers bounds the number of concurrent margin calculations.
	// Defaults to GOMAXPROCS.
	Workers int
	// Quiet suppresses per-step debug logging.
	Quiet bool
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Calculator runs SIMM calculations. It is stateless across runs and safe
// for concurrent use.
type Calculator struct {
	cfg              Configuration
	calcCcy          string
	resultCcy        string
	fxSource         fx.Source
	determineWinning bool
	enforce          bool
	priority         []string
	workers          int
	quiet            bool
	log              *slog.Logger
}

// New validates the options and builds a Calculator.
func New(cfg Configuration, opts Options) (*Calculator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("simm: configuration is required")
	}
	if !fx.ValidCurrency(opts.CalculationCurrency) {
		return nil, fmt.Errorf("simm: calculation currency %q is not a valid ISO currency code", opts.CalculationCurrency)
	}
	resultCcy := opts.ResultCurrency
	if resultCcy == "" {
		resultCcy = opts.CalculationCurrency
	}
	if !fx.ValidCurrency(resultCcy) {
		return nil, fmt.Errorf("simm: result currency %q is not a valid ISO currency code", resultCcy)
	}
	if resultCcy != "USD" && opts.FXSource == nil {
		return nil, fmt.Errorf("simm: an FX source is required to report margins in %s", resultCcy)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	priority := opts.RegulationPriority
	if len(priority) == 0 {
		priority = crif.RegulationPriority
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		cfg:              cfg,
		calcCcy:          opts.CalculationCurrency,
		resultCcy:        resultCcy,
		fxSource:         opts.FXSource,
		determineWinning: opts.DetermineWinningRegulations,
		enforce:          opts.EnforceIMRegulations,
		priority:         priority,
		workers:          workers,
		quiet:            opts.Quiet,
		log:              logger,
	}, nil
}

// FinalResult pairs the winning regulation of a netting set with the
// results calculated under it.
type FinalResult struct {
	Regulation string
	Results    *Results
}

// ResultSet holds everything a calculation run produced.
type ResultSet struct {
	resultCcy     string
	results       map[Side]map[crif.NettingSetDetails]map[string]*Results
	winning       map[Side]map[crif.NettingSetDetails]string
	final         map[Side]map[crif.NettingSetDetails]FinalResult
	tradeIDs      map[Side]map[crif.NettingSetDetails]map[string]map[string]bool
	finalTradeIDs map[Side][]string
}

// ResultCurrency returns the currency all margins are denominated in.
func (rs *ResultSet) ResultCurrency() string { return rs.resultCcy }

// NettingSets returns the netting sets with results on the given side,
// sorted by key.
func (rs *ResultSet) NettingSets(side Side) []crif.NettingSetDetails {
	var out []crif.NettingSetDetails
	for nsd := range rs.results[side] {
		out = append(out, nsd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Regulations returns the regulations calculated for a netting set on the
// given side, sorted.
func (rs *ResultSet) Regulations(side Side, nsd crif.NettingSetDetails) []string {
	var out []string
	for reg := range rs.results[side][nsd] {
		out = append(out, reg)
	}
	sort.Strings(out)
	return out
}

// Results returns the results cube of one (side, netting set, regulation).
func (rs *ResultSet) Results(side Side, nsd crif.NettingSetDetails, regulation string) (*Results, bool) {
	r, ok := rs.results[side][nsd][regulation]
	return r, ok
}

// Winning returns the winning regulation of a netting set, if determined.
func (rs *ResultSet) Winning(side Side, nsd crif.NettingSetDetails) (string, bool) {
	reg, ok := rs.winning[side][nsd]
	return reg, ok
}

// Final returns the winning regulation and its results for a netting set.
func (rs *ResultSet) Final(side Side, nsd crif.NettingSetDetails) (FinalResult, bool) {
	f, ok := rs.final[side][nsd]
	return f, ok
}

// TradeIDs returns the trades contributing to one (side, netting set,
// regulation), sorted.
func (rs *ResultSet) TradeIDs(side Side, nsd crif.NettingSetDetails, regulation string) []string {
	var out []string
	for id := range rs.tradeIDs[side][nsd][regulation] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FinalTradeIDs returns the trades behind the winning regulations of a
// side, sorted.
func (rs *ResultSet) FinalTradeIDs(side Side) []string {
	out := append([]string(nil), rs.finalTradeIDs[side]...)
	sort.Strings(out)
	return out
}

// task is one unit of calculation work: a (side, netting set, regulation)
// triple with its net sensitivities.
type task struct {
	side Side
	nsd  crif.NettingSetDetails
	reg  string
	net  *crif.NetRecords
}

// Run executes the full calculation over the given CRIF records.
func (c *Calculator) Run(ctx context.Context, records []crif.Record) (*ResultSet, error) {
	rs := &ResultSet{
		resultCcy:     c.resultCcy,
		results:       make(map[Side]map[crif.NettingSetDetails]map[string]*Results),
		winning:       make(map[Side]map[crif.NettingSetDetails]string),
		final:         make(map[Side]map[crif.NettingSetDetails]FinalResult),
		tradeIDs:      make(map[Side]map[crif.NettingSetDetails]map[string]map[string]bool),
		finalTradeIDs: make(map[Side][]string),
	}

	regSens, err := c.split(records, rs)
	if err != nil {
		return nil, err
	}

	tasks := c.collectTasks(regSens)
	if err := c.runTasks(ctx, tasks, rs); err != nil {
		return nil, err
	}

	if err := c.convert(rs); err != nil {
		return nil, err
	}

	if c.determineWinning {
		if err := c.selectWinning(rs); err != nil {
			return nil, err
		}
		c.populateFinal(rs)
	}

	return rs, nil
}

// split filters out Schedule records and distributes the rest over sides,
// netting sets and regulations.
func (c *Calculator) split(records []crif.Record, rs *ResultSet) (map[Side]map[crif.NettingSetDetails]map[string]*crif.NetRecords, error) {
	// First pass: drop Schedule records and track, per netting set,
	// whether any record ever carried collect or post regulations.
	collectEmpty := make(map[crif.NettingSetDetails]bool)
	postEmpty := make(map[crif.NettingSetDetails]bool)
	kept := make([]crif.Record, 0, len(records))
	for _, r := range records {
		if r.IMModel == "Schedule" {
			if !c.quiet && c.determineWinning {
				c.log.Warn("skipping Schedule record", "trade_id", r.TradeID, "trade_type", r.TradeType)
			}
			continue
		}
		if _, ok := collectEmpty[r.NettingSetDetails]; !ok {
			collectEmpty[r.NettingSetDetails] = r.CollectRegulations == ""
		} else if collectEmpty[r.NettingSetDetails] && r.CollectRegulations != "" {
			collectEmpty[r.NettingSetDetails] = false
		}
		if _, ok := postEmpty[r.NettingSetDetails]; !ok {
			postEmpty[r.NettingSetDetails] = r.PostRegulations == ""
		} else if postEmpty[r.NettingSetDetails] && r.PostRegulations != "" {
			postEmpty[r.NettingSetDetails] = false
		}
		kept = append(kept, r)
	}

	regSens := make(map[Side]map[crif.NettingSetDetails]map[string]*crif.NetRecords)
	for _, side := range Sides() {
		regSens[side] = make(map[crif.NettingSetDetails]map[string]*crif.NetRecords)
		rs.tradeIDs[side] = make(map[crif.NettingSetDetails]map[string]map[string]bool)
	}

	for _, r := range kept {
		for _, side := range Sides() {
			c.addRecord(r, side, collectEmpty[r.NettingSetDetails], postEmpty[r.NettingSetDetails], regSens, rs)
		}
	}

	// Where a netting set is subject to both CFTC and SEC, CFTC records
	// also count towards SEC unless the same risk factor is already there.
	for _, side := range Sides() {
		for nsd, byReg := range regSens[side] {
			cftc, hasCFTC := byReg["CFTC"]
			sec, hasSEC := byReg["SEC"]
			if hasCFTC && hasSEC {
				for _, r := range cftc.Records() {
					if !sec.Has(r.Key()) {
						if !c.quiet {
							c.log.Debug("copying CFTC record into SEC records",
								"netting_set", nsd.String(), "trade_id", r.TradeID)
						}
						sec.Add(r)
					}
				}
			}

			// Unspecified sensitivities only stand on their own; once any
			// real regulation applies to the netting set they are dropped.
			if _, ok := byReg[crif.RegulationUnspecified]; ok && len(byReg) > 1 {
				delete(byReg, crif.RegulationUnspecified)
			}
		}
	}

	return regSens, nil
}

// addRecord routes one record to the regulations applicable on one side.
func (c *Calculator) addRecord(r crif.Record, side Side, collectEmpty, postEmpty bool,
	regSens map[Side]map[crif.NettingSetDetails]map[string]*crif.NetRecords, rs *ResultSet) {

	regsString := ""
	if c.enforce {
		if side == SideCall {
			regsString = r.CollectRegulations
		} else {
			regsString = r.PostRegulations
		}
	}

	for _, reg := range crif.ParseRegulations(regsString) {
		if reg == crif.RegulationExcluded {
			continue
		}
		// An Unspecified record is only calculated when the whole netting
		// set never names a regulation on either side.
		if reg == crif.RegulationUnspecified && c.enforce && !(collectEmpty && postEmpty) {
			continue
		}

		nsd := r.NettingSetDetails
		if !r.IsSimmParameter() {
			if rs.tradeIDs[side][nsd] == nil {
				rs.tradeIDs[side][nsd] = make(map[string]map[string]bool)
			}
			if rs.tradeIDs[side][nsd][reg] == nil {
				rs.tradeIDs[side][nsd][reg] = make(map[string]bool)
			}
			rs.tradeIDs[side][nsd][reg][r.TradeID] = true
		}

		if regSens[side][nsd] == nil {
			regSens[side][nsd] = make(map[string]*crif.NetRecords)
		}
		if regSens[side][nsd][reg] == nil {
			regSens[side][nsd][reg] = crif.NewNetRecords()
		}
		clean := r
		clean.CollectRegulations = ""
		clean.PostRegulations = ""
		regSens[side][nsd][reg].Add(clean)
	}
}

// collectTasks enumerates the triples worth calculating: those with actual
// sensitivities, or with a fixed add-on amount that applies regardless.
func (c *Calculator) collectTasks(regSens map[Side]map[crif.NettingSetDetails]map[string]*crif.NetRecords) []task {
	var tasks []task
	for _, side := range Sides() {
		for nsd, byReg := range regSens[side] {
			for reg, net := range byReg {
				if net.HasSensitivities() || net.HasParameter(crif.RiskTypeAddOnFixedAmount) {
					tasks = append(tasks, task{side: side, nsd: nsd, reg: reg, net: net})
				}
			}
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.side != b.side {
			return a.side < b.side
		}
		if a.nsd.String() != b.nsd.String() {
			return a.nsd.String() < b.nsd.String()
		}
		return a.reg < b.reg
	})
	return tasks
}

// runTasks fans the triples out over a bounded worker pool. Each triple is
// independent; results merge under a lock once a worker finishes.
func (c *Calculator) runTasks(ctx context.Context, tasks []task, rs *ResultSet) error {
	workers := c.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers == 0 {
		return nil
	}

	taskCh := make(chan task)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				res, err := c.calculateRegulation(t.side, t.nsd, t.reg, t.net)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("simm: %s margin for netting set [%s] under %s: %w",
							t.side, t.nsd, t.reg, err)
					}
					mu.Unlock()
					continue
				}
				if rs.results[t.side] == nil {
					rs.results[t.side] = make(map[crif.NettingSetDetails]map[string]*Results)
				}
				if rs.results[t.side][t.nsd] == nil {
					rs.results[t.side][t.nsd] = make(map[string]*Results)
				}
				rs.results[t.side][t.nsd][t.reg] = res
				mu.Unlock()
			}
		}()
	}

	for _, t := range tasks {
		select {
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			return ctx.Err()
		case taskCh <- t:
		}
	}
	close(taskCh)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// calculateRegulation runs the full margin hierarchy of one triple.
func (c *Calculator) calculateRegulation(side Side, nsd crif.NettingSetDetails, regulation string, net *crif.NetRecords) (*Results, error) {
	if !c.quiet {
		c.log.Info("calculating margin",
			"side", side, "netting_set", nsd.String(), "regulation", regulation)
	}

	// Margins are always computed in USD and converted at the end.
	results := NewResults("USD")
	sens := net.Sensitivities()

	addMargins := func(pc crif.ProductClass, rc RiskClass, mt MarginType, margins map[string]float64) {
		for bucket, m := range margins {
			results.Add(pc, rc, mt, bucket, m, true)
		}
	}

	var productClasses []crif.ProductClass
	seen := make(map[crif.ProductClass]bool)
	for _, r := range sens {
		if !seen[r.ProductClass] {
			seen[r.ProductClass] = true
			productClasses = append(productClasses, r.ProductClass)
		}
	}
	sort.Slice(productClasses, func(i, j int) bool { return productClasses[i] < productClasses[j] })

	for _, pc := range productClasses {
		// Delta margins.
		margins, applies, err := c.irDeltaMargin(pc, sens)
		if err != nil {
			return nil, err
		}
		if applies {
			addMargins(pc, RiskClassInterestRate, MarginTypeDelta, margins)
		}
		deltaRiskTypes := []struct {
			rc RiskClass
			rt crif.RiskType
		}{
			{RiskClassFX, crif.RiskTypeFX},
			{RiskClassCreditQualifying, crif.RiskTypeCreditQ},
			{RiskClassCreditNonQualifying, crif.RiskTypeCreditNonQ},
			{RiskClassEquity, crif.RiskTypeEquity},
			{RiskClassCommodity, crif.RiskTypeCommodity},
		}
		for _, d := range deltaRiskTypes {
			margins, applies, err := c.margin(pc, d.rt, sens)
			if err != nil {
				return nil, err
			}
			if applies {
				addMargins(pc, d.rc, MarginTypeDelta, margins)
			}
		}

		// Vega margins.
		margins, applies, err = c.irVegaMargin(pc, sens)
		if err != nil {
			return nil, err
		}
		if applies {
			addMargins(pc, RiskClassInterestRate, MarginTypeVega, margins)
		}
		vegaRiskTypes := []struct {
			rc RiskClass
			rt crif.RiskType
		}{
			{RiskClassFX, crif.RiskTypeFXVol},
			{RiskClassCreditQualifying, crif.RiskTypeCreditVol},
			{RiskClassCreditNonQualifying, crif.RiskTypeCreditVolNonQ},
			{RiskClassEquity, crif.RiskTypeEquityVol},
			{RiskClassCommodity, crif.RiskTypeCommodityVol},
		}
		for _, v := range vegaRiskTypes {
			margins, applies, err := c.margin(pc, v.rt, sens)
			if err != nil {
				return nil, err
			}
			if applies {
				addMargins(pc, v.rc, MarginTypeVega, margins)
			}
		}

		// Curvature margins. The credit vol risk types take absolute
		// values per risk factor when forming the net absolute sums.
		margins, applies, err = c.irCurvatureMargin(pc, side, sens)
		if err != nil {
			return nil, err
		}
		if applies {
			addMargins(pc, RiskClassInterestRate, MarginTypeCurvature, margins)
		}
		curvatureRiskTypes := []struct {
			rc       RiskClass
			rt       crif.RiskType
			rfLabels bool
		}{
			{RiskClassFX, crif.RiskTypeFXVol, false},
			{RiskClassCreditQualifying, crif.RiskTypeCreditVol, true},
			{RiskClassCreditNonQualifying, crif.RiskTypeCreditVolNonQ, true},
			{RiskClassEquity, crif.RiskTypeEquityVol, false},
			{RiskClassCommodity, crif.RiskTypeCommodityVol, false},
		}
		for _, cv := range curvatureRiskTypes {
			margins, applies, err := c.curvatureMargin(pc, cv.rt, side, sens, cv.rfLabels)
			if err != nil {
				return nil, err
			}
			if applies {
				addMargins(pc, cv.rc, MarginTypeCurvature, margins)
			}
		}

		// Base correlation arrived in later methodology versions.
		if c.cfg.IsValidRiskType(crif.RiskTypeBaseCorr) {
			margins, applies, err := c.margin(pc, crif.RiskTypeBaseCorr, sens)
			if err != nil {
				return nil, err
			}
			if applies {
				addMargins(pc, RiskClassCreditQualifying, MarginTypeBaseCorr, margins)
			}
		}
	}

	c.populateResults(results)
	if err := c.calcAddMargin(net, results); err != nil {
		return nil, err
	}
	return results, nil
}

// convert re-denominates every results cube from USD into the result
// currency using the single spot rate resultCcy/USD.
func (c *Calculator) convert(rs *ResultSet) error {
	if c.resultCcy == "USD" {
		return nil
	}
	fxSpot, err := c.fxSource.Rate(c.resultCcy, "USD")
	if err != nil {
		return fmt.Errorf("simm: %s/USD rate: %w", c.resultCcy, err)
	}
	if fxSpot <= 0 {
		return fmt.Errorf("simm: %s/USD spot rate must be positive, got %v", c.resultCcy, fxSpot)
	}
	for _, byNsd := range rs.results {
		for _, byReg := range byNsd {
			for _, res := range byReg {
				if err := res.Convert(fxSpot, c.resultCcy); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// selectWinning picks, per netting set and side, the regulation with the
// highest portfolio margin. Ties within floating point noise fall back to
// the priority order.
func (c *Calculator) selectWinning(rs *ResultSet) error {
	for _, side := range Sides() {
		for nsd, byReg := range rs.results[side] {
			winningMargin := math.Inf(-1)
			margins := make(map[string]float64, len(byReg))
			for reg, res := range byReg {
				im := res.Get(crif.ProductClassAll, RiskClassAll, MarginTypeAll, BucketAll)
				margins[reg] = im
				if im > winningMargin {
					winningMargin = im
				}
			}

			var winners []string
			for reg, im := range margins {
				if closeEnough(im, winningMargin) {
					winners = append(winners, reg)
				}
			}
			if len(winners) == 0 {
				return fmt.Errorf("simm: no winning regulation for netting set [%s]", nsd)
			}
			sort.Strings(winners)
			winner := winners[0]
			if len(winners) > 1 {
				best := len(c.priority) + 1
				for _, reg := range winners {
					if idx := c.priorityIndex(reg); idx < best {
						best = idx
						winner = reg
					}
				}
			}

			if rs.winning[side] == nil {
				rs.winning[side] = make(map[crif.NettingSetDetails]string)
			}
			rs.winning[side][nsd] = winner
		}
	}
	return nil
}

func (c *Calculator) priorityIndex(reg string) int {
	for i, r := range c.priority {
		if r == reg {
			return i
		}
	}
	return len(c.priority)
}

// populateFinal fixes the winning results per netting set and collects the
// trades behind them. A netting set whose winning regulation has no results
// gets an empty cube in the result currency.
func (c *Calculator) populateFinal(rs *ResultSet) {
	for _, side := range Sides() {
		seen := make(map[string]bool)
		for nsd, byReg := range rs.results[side] {
			reg, ok := rs.winning[side][nsd]
			if !ok {
				continue
			}
			res, found := byReg[reg]
			if !found {
				res = NewResults(c.resultCcy)
			}
			if rs.final[side] == nil {
				rs.final[side] = make(map[crif.NettingSetDetails]FinalResult)
			}
			rs.final[side][nsd] = FinalResult{Regulation: reg, Results: res}

			for id := range rs.tradeIDs[side][nsd][reg] {
				if !seen[id] {
					seen[id] = true
					rs.finalTradeIDs[side] = append(rs.finalTradeIDs[side], id)
				}
			}
		}
		sort.Strings(rs.finalTradeIDs[side])
	}
}
