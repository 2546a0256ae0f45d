package simm_test

import (
	"math"
	"testing"

	"github.com/openrisk/margin-engine/internal/crif"
	"github.com/openrisk/margin-engine/internal/simm"
)

func TestResults_AddAndGet(t *testing.T) {
	r := simm.NewResults("USD")
	r.Add(crif.ProductClassRatesFX, simm.RiskClassInterestRate, simm.MarginTypeDelta, "1", 100, true)

	if !r.Has(crif.ProductClassRatesFX, simm.RiskClassInterestRate, simm.MarginTypeDelta, "1") {
		t.Fatal("expected cell to be present")
	}
	if got := r.Get(crif.ProductClassRatesFX, simm.RiskClassInterestRate, simm.MarginTypeDelta, "1"); got != 100 {
		t.Errorf("expected 100, got %v", got)
	}
	if got := r.Get(crif.ProductClassRatesFX, simm.RiskClassFX, simm.MarginTypeDelta, "1"); got != 0 {
		t.Errorf("absent cell should read 0, got %v", got)
	}
}

func TestResults_AddAccumulatesWithoutOverwrite(t *testing.T) {
	r := simm.NewResults("USD")
	r.Add(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll, 100, false)
	r.Add(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll, 50, false)

	if got := r.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll); got != 150 {
		t.Errorf("expected accumulated 150, got %v", got)
	}

	r.Add(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll, 30, true)
	if got := r.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll); got != 30 {
		t.Errorf("expected overwrite to 30, got %v", got)
	}
}

func TestResults_Convert(t *testing.T) {
	r := simm.NewResults("USD")
	r.Add(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll, 108, true)

	// EUR/USD spot 1.08: 108 USD = 100 EUR.
	if err := r.Convert(1.08, "EUR"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Currency() != "EUR" {
		t.Errorf("expected currency EUR, got %s", r.Currency())
	}
	got := r.Get(crif.ProductClassAll, simm.RiskClassAll, simm.MarginTypeAll, simm.BucketAll)
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("expected 100 after conversion, got %v", got)
	}
}

func TestResults_ConvertRejectsNonPositiveRate(t *testing.T) {
	r := simm.NewResults("USD")
	if err := r.Convert(0, "EUR"); err == nil {
		t.Error("expected error for zero rate")
	}
	if err := r.Convert(-1, "EUR"); err == nil {
		t.Error("expected error for negative rate")
	}
}

func TestResults_EntriesSorted(t *testing.T) {
	r := simm.NewResults("USD")
	r.Add(crif.ProductClassRatesFX, simm.RiskClassFX, simm.MarginTypeDelta, "EUR", 1, true)
	r.Add(crif.ProductClassCredit, simm.RiskClassCreditQualifying, simm.MarginTypeDelta, "1", 2, true)
	r.Add(crif.ProductClassRatesFX, simm.RiskClassFX, simm.MarginTypeDelta, "All", 3, true)

	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ProductClass != crif.ProductClassCredit {
		t.Errorf("expected Credit first, got %s", entries[0].ProductClass)
	}
	if entries[1].Bucket != "All" || entries[2].Bucket != "EUR" {
		t.Errorf("expected buckets sorted within a class, got %s then %s", entries[1].Bucket, entries[2].Bucket)
	}
	if entries[0].Currency != "USD" {
		t.Errorf("expected USD currency on entries, got %s", entries[0].Currency)
	}
}
