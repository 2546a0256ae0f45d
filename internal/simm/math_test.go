package simm

import (
	"math"
	"testing"
)

func TestCloseEnough(t *testing.T) {
	if !closeEnough(1.0, 1.0) {
		t.Error("identical values must compare equal")
	}
	if !closeEnough(1.0, 1.0+1e-15) {
		t.Error("values within 42 ulps must compare equal")
	}
	if closeEnough(1.0, 1.0+1e-12) {
		t.Error("values outside the tolerance must differ")
	}
	if !closeEnough(0.0, 0.0) {
		t.Error("two zeros must compare equal")
	}
	if closeEnough(0.0, 1e-6) {
		t.Error("zero against a clearly nonzero value must differ")
	}
}

func TestLambda(t *testing.T) {
	// theta = 0: lambda = q^2 - 1 with q the 99.5% normal quantile.
	q := normalQuantile995
	want := q*q - 1
	if got := lambda(0); math.Abs(got-want) > 1e-12 {
		t.Errorf("lambda(0) = %v, want %v", got, want)
	}

	// theta = -1: lambda = 1.
	if got := lambda(-1); math.Abs(got-1) > 1e-12 {
		t.Errorf("lambda(-1) = %v, want 1", got)
	}

	// lambda decreases as theta falls towards -1.
	if lambda(-0.5) >= lambda(0) {
		t.Error("lambda should shrink with more negative theta")
	}
}

func TestClampToBucket(t *testing.T) {
	if got := clampToBucket(5, 3); got != 3 {
		t.Errorf("expected clamp to +3, got %v", got)
	}
	if got := clampToBucket(-5, 3); got != -3 {
		t.Errorf("expected clamp to -3, got %v", got)
	}
	if got := clampToBucket(2, 3); got != 2 {
		t.Errorf("expected passthrough, got %v", got)
	}
}

func TestVersionComparisons(t *testing.T) {
	if !versionAtLeast("2.2", 2, 2) {
		t.Error("2.2 should satisfy at-least 2.2")
	}
	if versionAtLeast("2.1", 2, 2) {
		t.Error("2.1 should not satisfy at-least 2.2")
	}
	if !versionAfter("2.3", 1, 0) {
		t.Error("2.3 should be after 1.0")
	}
	if versionAfter("1.0", 1, 0) {
		t.Error("1.0 should not be after itself")
	}
}
