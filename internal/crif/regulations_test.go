package crif_test

import (
	"reflect"
	"testing"

	"github.com/openrisk/margin-engine/internal/crif"
)

func TestParseRegulations_Empty(t *testing.T) {
	got := crif.ParseRegulations("")
	want := []string{crif.RegulationUnspecified}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseRegulations_CommaSeparated(t *testing.T) {
	got := crif.ParseRegulations("ESA, CFTC,SEC")
	want := []string{"ESA", "CFTC", "SEC"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseRegulations_Deduplicates(t *testing.T) {
	got := crif.ParseRegulations("CFTC,CFTC,SEC")
	want := []string{"CFTC", "SEC"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseRegulations_UnknownDropped(t *testing.T) {
	got := crif.ParseRegulations("CFTC,MARS")
	want := []string{"CFTC"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseRegulations_AllUnknownFallsBackToUnspecified(t *testing.T) {
	got := crif.ParseRegulations("MARS,VENUS")
	want := []string{crif.RegulationUnspecified}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseRegulations_ExcludedIsKnown(t *testing.T) {
	got := crif.ParseRegulations("Excluded")
	want := []string{crif.RegulationExcluded}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
