package domain

import (
	"reflect"
	"testing"
)

func testSample(t *testing.T, cov map[string]float64) *Sample {
	t.Helper()
	s, err := NewSample("core-1", DomainLocal, 0, 15, 20, 1.2, cov, Location{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return s
}

func TestCovariateRegistryFilter(t *testing.T) {
	t.Parallel()
	samples := []*Sample{
		testSample(t, map[string]float64{"clay_pct": 20, "map_mm": 700, "ndvi": 0.6}),
		testSample(t, map[string]float64{"clay_pct": 25, "map_mm": 650}),
		testSample(t, map[string]float64{"clay_pct": 30, "map_mm": 800}),
		testSample(t, map[string]float64{"clay_pct": 18}),
	}

	reg := NewCovariateRegistry(samples)

	if reg.Len() != 3 {
		t.Fatalf("Expected 3 registered covariates, got %d", reg.Len())
	}

	if got := reg.Completeness("clay_pct"); got != 1.0 {
		t.Errorf("Expected clay_pct completeness 1.0, got %v", got)
	}
	if got := reg.Completeness("ndvi"); got != 0.25 {
		t.Errorf("Expected ndvi completeness 0.25, got %v", got)
	}
	if got := reg.Completeness("unknown"); got != 0 {
		t.Errorf("Expected unknown covariate completeness 0, got %v", got)
	}

	// Default threshold keeps covariates present in at least half the samples.
	kept := reg.Filter(0.5)
	want := []string{"clay_pct", "map_mm"}
	if !reflect.DeepEqual(kept, want) {
		t.Errorf("Expected filtered covariates %v, got %v", want, kept)
	}
}

func TestCovariateRegistryStableOrder(t *testing.T) {
	t.Parallel()
	samples := []*Sample{
		testSample(t, map[string]float64{"b": 1, "a": 2, "c": 3}),
	}
	reg := NewCovariateRegistry(samples)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(reg.Names(), want) {
		t.Errorf("Expected sorted names %v, got %v", want, reg.Names())
	}
}

func TestCovariateVector(t *testing.T) {
	t.Parallel()
	rec := &HarmonizedRecord{Covariates: map[string]float64{"a": 1, "b": 2}}

	vec, ok := rec.CovariateVector([]string{"a", "b"})
	if !ok {
		t.Fatal("Expected complete vector")
	}
	if !reflect.DeepEqual(vec, []float64{1, 2}) {
		t.Errorf("Expected [1 2], got %v", vec)
	}

	if _, ok := rec.CovariateVector([]string{"a", "missing"}); ok {
		t.Error("Expected incomplete vector for missing covariate")
	}
}
