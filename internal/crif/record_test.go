package crif_test

import (
	"math"
	"testing"

	"github.com/openrisk/margin-engine/internal/crif"
)

func rec(pc crif.ProductClass, rt crif.RiskType, qualifier, bucket, label1 string, amountUSD float64) crif.Record {
	return crif.Record{
		ProductClass:   pc,
		RiskType:       rt,
		Qualifier:      qualifier,
		Bucket:         bucket,
		Label1:         label1,
		AmountCurrency: "USD",
		Amount:         amountUSD,
		AmountUSD:      amountUSD,
	}
}

// --- Netting ---

func TestNetRecords_SameKeyNets(t *testing.T) {
	n := crif.NewNetRecords()
	n.Add(rec(crif.ProductClassRatesFX, crif.RiskTypeFX, "EUR", "", "", 100))
	n.Add(rec(crif.ProductClassRatesFX, crif.RiskTypeFX, "EUR", "", "", -40))

	if n.Len() != 1 {
		t.Fatalf("expected 1 netted record, got %d", n.Len())
	}
	got := n.Records()[0]
	if math.Abs(got.AmountUSD-60) > 1e-12 {
		t.Errorf("expected netted amount_usd=60, got %v", got.AmountUSD)
	}
	if math.Abs(got.Amount-60) > 1e-12 {
		t.Errorf("expected netted amount=60, got %v", got.Amount)
	}
}

func TestNetRecords_DifferentKeysKeptApart(t *testing.T) {
	n := crif.NewNetRecords()
	n.Add(rec(crif.ProductClassRatesFX, crif.RiskTypeFX, "EUR", "", "", 100))
	n.Add(rec(crif.ProductClassRatesFX, crif.RiskTypeFX, "GBP", "", "", 100))
	n.Add(rec(crif.ProductClassEquity, crif.RiskTypeFX, "EUR", "", "", 100))

	if n.Len() != 3 {
		t.Errorf("expected 3 records, got %d", n.Len())
	}
}

func TestNetRecords_MixedCurrencyFallsBackToUSD(t *testing.T) {
	a := rec(crif.ProductClassRatesFX, crif.RiskTypeInflation, "EUR", "", "", 100)
	a.AmountCurrency = "EUR"
	a.Amount = 92
	b := rec(crif.ProductClassRatesFX, crif.RiskTypeInflation, "EUR", "", "", 50)
	b.AmountCurrency = "GBP"
	b.Amount = 40

	n := crif.NewNetRecords()
	n.Add(a)
	n.Add(b)

	if n.Len() != 1 {
		t.Fatalf("records in different native currencies must still net, got %d", n.Len())
	}
	got := n.Records()[0]
	if got.AmountCurrency != "USD" {
		t.Errorf("expected amount currency USD after mixed-currency netting, got %s", got.AmountCurrency)
	}
	if math.Abs(got.Amount-150) > 1e-12 {
		t.Errorf("expected amount to fall back to netted USD amount 150, got %v", got.Amount)
	}
}

func TestNetRecords_SensitivitiesExcludeParameters(t *testing.T) {
	n := crif.NewNetRecords()
	n.Add(rec(crif.ProductClassRatesFX, crif.RiskTypeFX, "EUR", "", "", 100))
	p := rec(crif.ProductClassEmpty, crif.RiskTypeAddOnFixedAmount, "", "", "", 5000)
	n.Add(p)

	if len(n.Sensitivities()) != 1 {
		t.Errorf("expected 1 sensitivity, got %d", len(n.Sensitivities()))
	}
	if !n.HasSensitivities() {
		t.Error("expected HasSensitivities")
	}
	if !n.HasParameter(crif.RiskTypeAddOnFixedAmount) {
		t.Error("expected fixed add-on parameter")
	}
	if n.HasParameter(crif.RiskTypeAddOnNotionalFactor) {
		t.Error("did not expect notional factor parameter")
	}
	if len(n.Parameters(crif.RiskTypeAddOnFixedAmount)) != 1 {
		t.Errorf("expected 1 parameter record, got %d", len(n.Parameters(crif.RiskTypeAddOnFixedAmount)))
	}
}

func TestNetRecords_RecordsSorted(t *testing.T) {
	n := crif.NewNetRecords()
	n.Add(rec(crif.ProductClassRatesFX, crif.RiskTypeFX, "GBP", "", "", 1))
	n.Add(rec(crif.ProductClassRatesFX, crif.RiskTypeFX, "EUR", "", "", 1))
	n.Add(rec(crif.ProductClassCredit, crif.RiskTypeFX, "AUD", "", "", 1))

	recs := n.Records()
	if recs[0].ProductClass != crif.ProductClassCredit {
		t.Errorf("expected Credit first, got %s", recs[0].ProductClass)
	}
	if recs[1].Qualifier != "EUR" || recs[2].Qualifier != "GBP" {
		t.Errorf("expected qualifiers sorted, got %s then %s", recs[1].Qualifier, recs[2].Qualifier)
	}
}

// --- Product classes ---

func TestParseProductClass(t *testing.T) {
	pc, err := crif.ParseProductClass("RatesFX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc != crif.ProductClassRatesFX {
		t.Errorf("expected RatesFX, got %s", pc)
	}

	if _, err := crif.ParseProductClass("Weather"); err == nil {
		t.Error("expected error for unknown product class")
	}
}

func TestIsSimmParameter(t *testing.T) {
	if !rec(crif.ProductClassEmpty, crif.RiskTypeNotional, "t1", "", "", 1e6).IsSimmParameter() {
		t.Error("Notional should be a parameter")
	}
	if rec(crif.ProductClassRatesFX, crif.RiskTypeIRCurve, "USD", "1", "1y", 100).IsSimmParameter() {
		t.Error("Risk_IRCurve should not be a parameter")
	}
}
