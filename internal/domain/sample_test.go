package domain

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestNewSample(t *testing.T) {
	t.Parallel()
	cov := map[string]float64{"clay_pct": 22.5, "map_mm": 800}
	s, err := NewSample("core-1", DomainLocal, 0, 15, 20, 1.2, cov, Location{Latitude: 49.2, Longitude: -123.1})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if s.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	want := 20 * 1.2 * 15 * 0.1
	if math.Abs(s.StockTHa-want) > 1e-9 {
		t.Errorf("Expected derived stock %.4f, got %.4f", want, s.StockTHa)
	}

	// Test invalid depth ordering
	_, err = NewSample("core-1", DomainLocal, 15, 15, 20, 1.2, cov, Location{})
	if err != ErrInvalidDepthOrder {
		t.Errorf("Expected error %v, got %v", ErrInvalidDepthOrder, err)
	}

	// Test invalid domain tag
	_, err = NewSample("core-1", DomainTag("regional"), 0, 15, 20, 1.2, cov, Location{})
	if err != ErrInvalidDomainTag {
		t.Errorf("Expected error %v, got %v", ErrInvalidDomainTag, err)
	}

	// Test empty core ID
	_, err = NewSample("", DomainLocal, 0, 15, 20, 1.2, cov, Location{})
	if err != ErrEmptyCoreID {
		t.Errorf("Expected error %v, got %v", ErrEmptyCoreID, err)
	}

	// Test invalid concentration
	_, err = NewSample("core-1", DomainLocal, 0, 15, -1, 1.2, cov, Location{})
	if err != ErrInvalidConcentration {
		t.Errorf("Expected error %v, got %v", ErrInvalidConcentration, err)
	}

	// Test invalid bulk density
	_, err = NewSample("core-1", DomainLocal, 0, 15, 20, 0, cov, Location{})
	if err != ErrInvalidBulkDensity {
		t.Errorf("Expected error %v, got %v", ErrInvalidBulkDensity, err)
	}
}

func TestIntervalStockTHa(t *testing.T) {
	t.Parallel()
	// 10 g/kg at 1 g/cm3 over 10 cm is 10 t/ha.
	got := IntervalStockTHa(10, 1.0, 10)
	if math.Abs(got-10) > 1e-12 {
		t.Errorf("Expected 10 t/ha, got %v", got)
	}
}

func TestDomainTagValid(t *testing.T) {
	t.Parallel()
	if !DomainLocal.Valid() || !DomainGlobal.Valid() {
		t.Error("Expected known tags to be valid")
	}
	if DomainTag("elsewhere").Valid() {
		t.Error("Expected unknown tag to be invalid")
	}
}
