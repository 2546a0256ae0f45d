package simm_test

import (
	"context"
	"math"
	"testing"

	"github.com/openrisk/margin-engine/internal/crif"
	"github.com/openrisk/margin-engine/internal/fx"
	"github.com/openrisk/margin-engine/internal/isda"
	"github.com/openrisk/margin-engine/internal/simm"
)

func newCalculator(t *testing.T, opts simm.Options) *simm.Calculator {
	t.Helper()
	cfg, err := isda.NewConfig("2.3")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if opts.CalculationCurrency == "" {
		opts.CalculationCurrency = "USD"
	}
	opts.Quiet = true
	calc, err := simm.New(cfg, opts)
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	return calc
}

func fxRecord(nettingSet, qualifier string, amountUSD float64) crif.Record {
	return crif.Record{
		TradeID:           "t-" + qualifier,
		IMModel:           "SIMM",
		NettingSetDetails: crif.NettingSetDetails{NettingSetID: nettingSet},
		ProductClass:      crif.ProductClassRatesFX,
		RiskType:          crif.RiskTypeFX,
		Qualifier:         qualifier,
		AmountCurrency:    "USD",
		Amount:            amountUSD,
		AmountUSD:         amountUSD,
	}
}

func totalIM(t *testing.T, rs *simm.ResultSet, side simm.Side) float64 {
	t.Helper()
	nsds := rs.NettingSets(side)
	if len(nsds) != 1 {
		t.Fatalf("expected 1 netting set on %s side, got %d", side, len(nsds))
	}
	regs := rs.Regulations(side, nsds[0])
	if len(regs) != 1 {
		t.Fatalf("expected 1 regulation, got %v", regs)
	}
	res, ok := rs.Results(side, nsds[0], regs[0])
	if !ok {
		t.Fatalf("missing results for %s", regs[0])
	}
	return res.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll)
}

// --- End-to-end margin calculations ---

func TestRun_SingleFXDelta(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	cfg, _ := isda.NewConfig("2.3")

	rs, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", 1000)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// A single well-diversified FX sensitivity margins at RW * |amount|.
	rw, err := cfg.Weight(crif.RiskTypeFX, "EUR", "", "", "USD")
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	want := rw * 1000

	got := totalIM(t, rs, simm.SideCall)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("total IM = %v, want %v", got, want)
	}

	// Both sides carry the same delta margin.
	if post := totalIM(t, rs, simm.SidePost); math.Abs(post-want) > 1e-9 {
		t.Errorf("post IM = %v, want %v", post, want)
	}

	// The FX risk class reports per currency, not per bucket.
	nsd := rs.NettingSets(simm.SideCall)[0]
	res, _ := rs.Results(simm.SideCall, nsd, crif.RegulationUnspecified)
	if per := res.Get(crif.ProductClassRatesFX, simm.RiskClassFX, simm.MarginTypeDelta, "EUR"); math.Abs(per-want) > 1e-9 {
		t.Errorf("per-currency FX margin = %v, want %v", per, want)
	}
}

func TestRun_FXDeltaSignIrrelevant(t *testing.T) {
	calc := newCalculator(t, simm.Options{})

	long, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", 1000)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	short, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", -1000)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if math.Abs(totalIM(t, long, simm.SideCall)-totalIM(t, short, simm.SideCall)) > 1e-9 {
		t.Error("delta margin must be direction independent for a single factor")
	}
}

func TestRun_FXCalculationCurrencySkipped(t *testing.T) {
	calc := newCalculator(t, simm.Options{})

	rs, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "USD", 1e6)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := totalIM(t, rs, simm.SideCall); got != 0 {
		t.Errorf("FX sensitivity in the calculation currency must not margin, got %v", got)
	}
}

func TestRun_TwoCurrencyFXDeltaAggregation(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	cfg, _ := isda.NewConfig("2.3")

	rs, err := calc.Run(context.Background(), []crif.Record{
		fxRecord("ns1", "EUR", 1000),
		fxRecord("ns1", "GBP", 1000),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rwEUR, _ := cfg.Weight(crif.RiskTypeFX, "EUR", "", "", "USD")
	rwGBP, _ := cfg.Weight(crif.RiskTypeFX, "GBP", "", "", "USD")
	corr, err := cfg.Correlation(
		simm.CorrelationKey{RiskType: crif.RiskTypeFX, Qualifier: "EUR"},
		simm.CorrelationKey{RiskType: crif.RiskTypeFX, Qualifier: "GBP"}, "USD")
	if err != nil {
		t.Fatalf("correlation: %v", err)
	}
	ws1, ws2 := rwEUR*1000, rwGBP*1000
	want := math.Sqrt(ws1*ws1 + ws2*ws2 + 2*corr*ws1*ws2)

	if got := totalIM(t, rs, simm.SideCall); math.Abs(got-want) > 1e-9 {
		t.Errorf("total IM = %v, want %v", got, want)
	}
}

func TestRun_IRDeltaSingleTenor(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	cfg, _ := isda.NewConfig("2.3")

	rec := crif.Record{
		TradeID:           "t1",
		IMModel:           "SIMM",
		NettingSetDetails: crif.NettingSetDetails{NettingSetID: "ns1"},
		ProductClass:      crif.ProductClassRatesFX,
		RiskType:          crif.RiskTypeIRCurve,
		Qualifier:         "USD",
		Bucket:            "1",
		Label1:            "1y",
		Label2:            "Libor3m",
		AmountCurrency:    "USD",
		Amount:            1000,
		AmountUSD:         1000,
	}

	rs, err := calc.Run(context.Background(), []crif.Record{rec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rw, err := cfg.Weight(crif.RiskTypeIRCurve, "USD", "", "1y", "")
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	want := rw * 1000

	got := totalIM(t, rs, simm.SideCall)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("total IM = %v, want %v", got, want)
	}

	// The interest-rate delta breakdown is per currency.
	nsd := rs.NettingSets(simm.SideCall)[0]
	res, _ := rs.Results(simm.SideCall, nsd, crif.RegulationUnspecified)
	if per := res.Get(crif.ProductClassRatesFX, simm.RiskClassInterestRate, simm.MarginTypeDelta, "USD"); math.Abs(per-want) > 1e-9 {
		t.Errorf("per-currency IR margin = %v, want %v", per, want)
	}
}

func TestRun_FXVolVegaAndCurvature(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	cfg, _ := isda.NewConfig("2.3")

	rec := crif.Record{
		TradeID:           "t1",
		IMModel:           "SIMM",
		NettingSetDetails: crif.NettingSetDetails{NettingSetID: "ns1"},
		ProductClass:      crif.ProductClassRatesFX,
		RiskType:          crif.RiskTypeFXVol,
		Qualifier:         "EURUSD",
		Label1:            "1y",
		AmountCurrency:    "USD",
		Amount:            1000,
		AmountUSD:         1000,
	}

	rs, err := calc.Run(context.Background(), []crif.Record{rec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	nsd := rs.NettingSets(simm.SideCall)[0]
	res, _ := rs.Results(simm.SideCall, nsd, crif.RegulationUnspecified)

	rw, _ := cfg.Weight(crif.RiskTypeFXVol, "EURUSD", "", "1y", "USD")
	sigma, _ := cfg.Sigma(crif.RiskTypeFXVol, "EURUSD", "")
	hvr := cfg.HistoricalVolatilityRatio(crif.RiskTypeFXVol)
	wantVega := math.Abs(rw * (1000 * sigma * hvr))

	gotVega := res.Get(crif.ProductClassRatesFX, simm.RiskClassFX, simm.MarginTypeVega, simm.BucketAll)
	if math.Abs(gotVega-wantVega) > 1e-9 {
		t.Errorf("vega margin = %v, want %v", gotVega, wantVega)
	}

	// Curvature: positive CVR, zero theta, lambda = q^2 - 1.
	sf, _ := cfg.CurvatureWeight(crif.RiskTypeFXVol, "EURUSD", "1y", "USD")
	cvr := sf * ((1000 * 1.0) * sigma)
	q := 2.5758293035489004
	wantCurv := math.Max(cvr+(q*q-1)*math.Abs(cvr), 0)

	gotCurv := res.Get(crif.ProductClassRatesFX, simm.RiskClassFX, simm.MarginTypeCurvature, simm.BucketAll)
	if math.Abs(gotCurv-wantCurv) > 1e-9 {
		t.Errorf("curvature margin = %v, want %v", gotCurv, wantCurv)
	}

	// The total stacks vega and curvature for the lone risk class.
	want := gotVega + gotCurv
	if got := totalIM(t, rs, simm.SideCall); math.Abs(got-want) > 1e-9 {
		t.Errorf("total IM = %v, want %v", got, want)
	}
}

// --- Aggregation properties ---

func equityRecord(nettingSet, qualifier, bucket string, amountUSD float64) crif.Record {
	return crif.Record{
		TradeID:           "t-" + qualifier,
		IMModel:           "SIMM",
		NettingSetDetails: crif.NettingSetDetails{NettingSetID: nettingSet},
		ProductClass:      crif.ProductClassEquity,
		RiskType:          crif.RiskTypeEquity,
		Qualifier:         qualifier,
		Bucket:            bucket,
		AmountCurrency:    "USD",
		Amount:            amountUSD,
		AmountUSD:         amountUSD,
	}
}

func TestRun_ResidualBucketAdditive(t *testing.T) {
	calc := newCalculator(t, simm.Options{})

	bucketed := equityRecord("ns1", "ACME", "1", 1000)
	residual := equityRecord("ns1", "ZENITH", "Residual", 2000)

	only := func(recs ...crif.Record) float64 {
		t.Helper()
		rs, err := calc.Run(context.Background(), recs)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return totalIM(t, rs, simm.SideCall)
	}

	separate := only(bucketed) + only(residual)
	combined := only(bucketed, residual)

	// The Residual bucket never diversifies against the regular buckets.
	if math.Abs(combined-separate) > 1e-9 {
		t.Errorf("combined IM = %v, sum of standalone IMs = %v", combined, separate)
	}
}

func TestRun_ConcentrationRiskMonotonic(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	cfg, _ := isda.NewConfig("2.3")

	// Sweep a single EUR net sensitivity across the concentration
	// threshold; the margin must never decrease.
	amounts := []float64{1e9, 8.4e9, 2e10, 1e11}
	prev := 0.0
	for _, amt := range amounts {
		rs, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", amt)})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		im := totalIM(t, rs, simm.SideCall)
		if im < prev {
			t.Errorf("IM dropped from %v to %v at amount %v", prev, im, amt)
		}
		prev = im
	}

	// Above the threshold the concentration scaling bites: the margin
	// exceeds the unscaled weighted sensitivity.
	rw, _ := cfg.Weight(crif.RiskTypeFX, "EUR", "", "", "USD")
	rs, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", 2e10)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if im := totalIM(t, rs, simm.SideCall); im <= rw*2e10 {
		t.Errorf("concentrated IM = %v, want more than %v", im, rw*2e10)
	}
}

// flatConfig is a minimal methodology with unit weights and zero
// correlations everywhere, for aggregation-shape tests.
type flatConfig struct{}

func (flatConfig) Version() string                        { return "2.3" }
func (flatConfig) IsValidRiskType(crif.RiskType) bool     { return true }
func (flatConfig) CurvatureMarginScaling() float64        { return 1.0 }
func (flatConfig) HistoricalVolatilityRatio(crif.RiskType) float64 { return 1.0 }

func (flatConfig) ProductClasses() []crif.ProductClass {
	return []crif.ProductClass{
		crif.ProductClassRatesFX, crif.ProductClassCredit, crif.ProductClassEquity,
		crif.ProductClassCommodity, crif.ProductClassOther,
		crif.ProductClassAddOnNotionalFactor, crif.ProductClassAddOnFixedAmount,
	}
}

func (flatConfig) RiskClasses() []simm.RiskClass {
	return []simm.RiskClass{
		simm.RiskClassInterestRate, simm.RiskClassCreditQualifying,
		simm.RiskClassCreditNonQualifying, simm.RiskClassEquity,
		simm.RiskClassCommodity, simm.RiskClassFX,
	}
}

func (flatConfig) MarginTypes() []simm.MarginType {
	return []simm.MarginType{
		simm.MarginTypeDelta, simm.MarginTypeVega, simm.MarginTypeCurvature,
		simm.MarginTypeBaseCorr, simm.MarginTypeAdditionalIM,
	}
}

func (flatConfig) Weight(crif.RiskType, string, string, string, string) (float64, error) {
	return 1.0, nil
}

func (flatConfig) Correlation(simm.CorrelationKey, simm.CorrelationKey, string) (float64, error) {
	return 0.0, nil
}

func (flatConfig) BucketCorrelation(crif.RiskType, string, string) (float64, error) {
	return 0.0, nil
}

func (flatConfig) ConcentrationThreshold(crif.RiskType, string, string) float64 {
	return math.Inf(1)
}

func (flatConfig) CurvatureWeight(crif.RiskType, string, string, string) (float64, error) {
	return 0.5, nil
}

func (flatConfig) Sigma(crif.RiskType, string, string) (float64, error) { return 1.0, nil }

func (flatConfig) RiskClassCorrelation(a, b simm.RiskClass) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

func TestRun_ZeroCorrelationSumOfSquares(t *testing.T) {
	calc, err := simm.New(flatConfig{}, simm.Options{CalculationCurrency: "USD", Quiet: true})
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}

	// Unit weights and zero correlations: each bucket margins at its own
	// sensitivity, and buckets combine without diversification terms.
	rs, err := calc.Run(context.Background(), []crif.Record{
		equityRecord("ns1", "ACME", "1", 300),
		equityRecord("ns1", "ZENITH", "2", 400),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := math.Sqrt(300*300 + 400*400)
	if got := totalIM(t, rs, simm.SideCall); math.Abs(got-want) > 1e-9 {
		t.Errorf("total IM = %v, want %v", got, want)
	}
}

// --- Splitter semantics ---

func TestRun_ScheduleRecordsSkipped(t *testing.T) {
	calc := newCalculator(t, simm.Options{})

	rec := fxRecord("ns1", "EUR", 1000)
	rec.IMModel = "Schedule"

	rs, err := calc.Run(context.Background(), []crif.Record{rec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(rs.NettingSets(simm.SideCall)); n != 0 {
		t.Errorf("expected no netting sets from Schedule records, got %d", n)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	rs, err := calc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(rs.NettingSets(simm.SideCall)); n != 0 {
		t.Errorf("expected no netting sets, got %d", n)
	}
}

func TestRun_ExcludedRegulationDropped(t *testing.T) {
	calc := newCalculator(t, simm.Options{EnforceIMRegulations: true})

	rec := fxRecord("ns1", "EUR", 1000)
	rec.CollectRegulations = "Excluded"
	rec.PostRegulations = "Excluded"

	rs, err := calc.Run(context.Background(), []crif.Record{rec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(rs.NettingSets(simm.SideCall)); n != 0 {
		t.Errorf("excluded records must not produce results, got %d netting sets", n)
	}
}

func TestRun_CFTCRecordsCountTowardsSEC(t *testing.T) {
	calc := newCalculator(t, simm.Options{EnforceIMRegulations: true})

	r1 := fxRecord("ns1", "EUR", 1000)
	r1.CollectRegulations = "CFTC"
	r2 := fxRecord("ns1", "GBP", 1000)
	r2.CollectRegulations = "SEC"

	rs, err := calc.Run(context.Background(), []crif.Record{r1, r2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	nsd := rs.NettingSets(simm.SideCall)[0]
	sec, ok := rs.Results(simm.SideCall, nsd, "SEC")
	if !ok {
		t.Fatal("missing SEC results")
	}
	cftc, ok := rs.Results(simm.SideCall, nsd, "CFTC")
	if !ok {
		t.Fatal("missing CFTC results")
	}

	secIM := sec.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll)
	cftcIM := cftc.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll)

	// SEC sees both sensitivities, CFTC only its own.
	if secIM <= cftcIM {
		t.Errorf("SEC margin %v should exceed CFTC margin %v", secIM, cftcIM)
	}
}

// --- Winning regulation ---

func TestRun_WinningRegulationTieBreaksOnPriority(t *testing.T) {
	calc := newCalculator(t, simm.Options{
		EnforceIMRegulations:        true,
		DetermineWinningRegulations: true,
	})

	rec := fxRecord("ns1", "EUR", 1000)
	rec.CollectRegulations = "ESA,CFTC"
	rec.PostRegulations = "ESA,CFTC"

	rs, err := calc.Run(context.Background(), []crif.Record{rec})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	nsd := rs.NettingSets(simm.SideCall)[0]
	winner, ok := rs.Winning(simm.SideCall, nsd)
	if !ok {
		t.Fatal("expected a winning regulation")
	}
	if winner != "ESA" {
		t.Errorf("identical margins must tie-break to ESA, got %s", winner)
	}

	final, ok := rs.Final(simm.SideCall, nsd)
	if !ok {
		t.Fatal("expected final results")
	}
	if final.Regulation != "ESA" {
		t.Errorf("final regulation = %s, want ESA", final.Regulation)
	}
	if ids := rs.FinalTradeIDs(simm.SideCall); len(ids) != 1 || ids[0] != "t-EUR" {
		t.Errorf("unexpected final trade ids: %v", ids)
	}
}

func TestRun_WinningRegulationPicksLargerMargin(t *testing.T) {
	calc := newCalculator(t, simm.Options{
		EnforceIMRegulations:        true,
		DetermineWinningRegulations: true,
	})

	r1 := fxRecord("ns1", "EUR", 1000)
	r1.CollectRegulations = "APRA"
	r1.PostRegulations = "APRA"
	r2 := fxRecord("ns1", "GBP", 5000)
	r2.CollectRegulations = "ESA"
	r2.PostRegulations = "ESA"

	rs, err := calc.Run(context.Background(), []crif.Record{r1, r2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	nsd := rs.NettingSets(simm.SideCall)[0]
	winner, _ := rs.Winning(simm.SideCall, nsd)
	if winner != "ESA" {
		t.Errorf("expected ESA (larger margin) to win, got %s", winner)
	}
}

// --- Additional margins ---

func TestRun_FixedAddOnAmount(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	cfg, _ := isda.NewConfig("2.3")

	addOn := crif.Record{
		IMModel:           "SIMM",
		NettingSetDetails: crif.NettingSetDetails{NettingSetID: "ns1"},
		ProductClass:      crif.ProductClassEmpty,
		RiskType:          crif.RiskTypeAddOnFixedAmount,
		AmountCurrency:    "USD",
		Amount:            500,
		AmountUSD:         500,
	}

	rs, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", 1000), addOn})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rw, _ := cfg.Weight(crif.RiskTypeFX, "EUR", "", "", "USD")
	want := rw*1000 + 500

	if got := totalIM(t, rs, simm.SideCall); math.Abs(got-want) > 1e-9 {
		t.Errorf("total IM = %v, want %v", got, want)
	}

	nsd := rs.NettingSets(simm.SideCall)[0]
	res, _ := rs.Results(simm.SideCall, nsd, crif.RegulationUnspecified)
	if add := res.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAdditionalIM, simm.BucketAll); math.Abs(add-500) > 1e-9 {
		t.Errorf("additional IM = %v, want 500", add)
	}
}

func TestRun_ProductClassMultiplier(t *testing.T) {
	calc := newCalculator(t, simm.Options{})
	cfg, _ := isda.NewConfig("2.3")

	mult := crif.Record{
		IMModel:           "SIMM",
		NettingSetDetails: crif.NettingSetDetails{NettingSetID: "ns1"},
		ProductClass:      crif.ProductClassEmpty,
		RiskType:          crif.RiskTypeProductClassMultiplier,
		Qualifier:         "RatesFX",
		Amount:            1.5,
		AmountUSD:         1.5,
	}

	rs, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", 1000), mult})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rw, _ := cfg.Weight(crif.RiskTypeFX, "EUR", "", "", "USD")
	want := rw * 1000 * 1.5

	if got := totalIM(t, rs, simm.SideCall); math.Abs(got-want) > 1e-9 {
		t.Errorf("total IM = %v, want %v", got, want)
	}
}

func TestRun_NegativeMultiplierRejected(t *testing.T) {
	calc := newCalculator(t, simm.Options{})

	mult := crif.Record{
		IMModel:           "SIMM",
		NettingSetDetails: crif.NettingSetDetails{NettingSetID: "ns1"},
		ProductClass:      crif.ProductClassEmpty,
		RiskType:          crif.RiskTypeProductClassMultiplier,
		Qualifier:         "RatesFX",
		Amount:            -0.5,
		AmountUSD:         -0.5,
	}

	if _, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "EUR", 1000), mult}); err == nil {
		t.Error("expected error for negative product class multiplier")
	}
}

// --- Currency conversion ---

func TestRun_ResultCurrencyConversion(t *testing.T) {
	src := fx.NewStaticSource(map[string]float64{"EURUSD": 1.25})
	calc := newCalculator(t, simm.Options{
		ResultCurrency: "EUR",
		FXSource:       src,
	})
	cfg, _ := isda.NewConfig("2.3")

	rs, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "GBP", 1000)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rw, _ := cfg.Weight(crif.RiskTypeFX, "GBP", "", "", "USD")
	want := rw * 1000 / 1.25

	if got := totalIM(t, rs, simm.SideCall); math.Abs(got-want) > 1e-9 {
		t.Errorf("converted IM = %v, want %v", got, want)
	}

	nsd := rs.NettingSets(simm.SideCall)[0]
	res, _ := rs.Results(simm.SideCall, nsd, crif.RegulationUnspecified)
	if res.Currency() != "EUR" {
		t.Errorf("expected EUR results, got %s", res.Currency())
	}
}

func TestRun_MissingFXRateFails(t *testing.T) {
	calc := newCalculator(t, simm.Options{
		ResultCurrency: "EUR",
		FXSource:       fx.NewStaticSource(nil),
	})

	if _, err := calc.Run(context.Background(), []crif.Record{fxRecord("ns1", "GBP", 1000)}); err == nil {
		t.Error("expected error when the conversion rate is unavailable")
	}
}

// --- Options validation ---

func TestNew_RejectsInvalidCurrencies(t *testing.T) {
	cfg, _ := isda.NewConfig("2.3")

	if _, err := simm.New(cfg, simm.Options{CalculationCurrency: "XXX"}); err == nil {
		t.Error("expected error for invalid calculation currency")
	}
	if _, err := simm.New(cfg, simm.Options{CalculationCurrency: "USD", ResultCurrency: "EUR"}); err == nil {
		t.Error("expected error when result currency needs an FX source")
	}
}
