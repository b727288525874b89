package planning_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rubberfarm/production-engine/planning"
)

// =============================================================================
// PERIOD TYPE PARSING
// =============================================================================

func TestParsePeriodType_Valid(t *testing.T) {
	for _, s := range []string{"MONTH", "QUARTER", "YEAR"} {
		pt, err := planning.ParsePeriodType(s)
		if err != nil {
			t.Errorf("ParsePeriodType(%q): unexpected error %v", s, err)
		}
		if string(pt) != s {
			t.Errorf("ParsePeriodType(%q) = %q", s, pt)
		}
	}
}

func TestParsePeriodType_Invalid(t *testing.T) {
	for _, s := range []string{"", "month", "WEEK", "MONTHLY"} {
		_, err := planning.ParsePeriodType(s)
		if !errors.Is(err, planning.ErrInvalidPeriodType) {
			t.Errorf("ParsePeriodType(%q): expected ErrInvalidPeriodType, got %v", s, err)
		}
	}
}

// =============================================================================
// PERIOD KEY VALIDATION
// =============================================================================

func TestValidateKey(t *testing.T) {
	cases := []struct {
		pt  planning.PeriodType
		key string
		ok  bool
	}{
		{planning.PeriodMonth, "2024-05", true},
		{planning.PeriodMonth, "2024-13", false},
		{planning.PeriodMonth, "2024", false},
		{planning.PeriodMonth, "2024-5", false},
		{planning.PeriodQuarter, "2024-Q1", true},
		{planning.PeriodQuarter, "2024-Q4", true},
		{planning.PeriodQuarter, "2024-Q5", false},
		{planning.PeriodQuarter, "2024-Q0", false},
		{planning.PeriodQuarter, "2024-05", false},
		{planning.PeriodYear, "2024", true},
		{planning.PeriodYear, "2024-05", false},
		{planning.PeriodYear, "24", false},
	}
	for _, c := range cases {
		err := planning.ValidateKey(c.pt, c.key)
		if c.ok && err != nil {
			t.Errorf("ValidateKey(%s, %q): unexpected error %v", c.pt, c.key, err)
		}
		if !c.ok && !errors.Is(err, planning.ErrInvalidPeriodKey) {
			t.Errorf("ValidateKey(%s, %q): expected ErrInvalidPeriodKey, got %v", c.pt, c.key, err)
		}
	}
}

func TestValidateKey_UnknownType(t *testing.T) {
	err := planning.ValidateKey(planning.PeriodType("WEEK"), "2024-W01")
	if !errors.Is(err, planning.ErrInvalidPeriodType) {
		t.Errorf("expected ErrInvalidPeriodType, got %v", err)
	}
}

// =============================================================================
// KEY FORMATTING AND RANGES
// =============================================================================

func TestKeyFor(t *testing.T) {
	may15 := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)

	if got := planning.KeyFor(planning.PeriodMonth, may15); got != "2024-05" {
		t.Errorf("MONTH key = %q", got)
	}
	if got := planning.KeyFor(planning.PeriodQuarter, may15); got != "2024-Q2" {
		t.Errorf("QUARTER key = %q", got)
	}
	if got := planning.KeyFor(planning.PeriodYear, may15); got != "2024" {
		t.Errorf("YEAR key = %q", got)
	}
	if got := planning.MonthKey(may15); got != "2024-05" {
		t.Errorf("MonthKey = %q", got)
	}
}

func TestRange_Month(t *testing.T) {
	start, end, err := planning.Range(planning.PeriodMonth, "2024-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2024 is a leap year
	if start.Day() != 1 || end.Day() != 29 || end.Month() != time.February {
		t.Errorf("2024-02 range = %v .. %v", start, end)
	}
}

func TestRange_Quarter(t *testing.T) {
	start, end, err := planning.Range(planning.PeriodQuarter, "2024-Q2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Month() != time.April || end.Month() != time.June || end.Day() != 30 {
		t.Errorf("2024-Q2 range = %v .. %v", start, end)
	}
}

func TestRange_Year(t *testing.T) {
	start, end, err := planning.Range(planning.PeriodYear, "2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Month() != time.January || end.Month() != time.December || end.Day() != 31 {
		t.Errorf("2024 range = %v .. %v", start, end)
	}
}

func TestContains(t *testing.T) {
	may15 := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)

	if !planning.Contains(planning.PeriodMonth, "2024-05", may15) {
		t.Error("2024-05 should contain May 15")
	}
	if planning.Contains(planning.PeriodMonth, "2024-06", may15) {
		t.Error("2024-06 should not contain May 15")
	}
	if !planning.Contains(planning.PeriodQuarter, "2024-Q2", may15) {
		t.Error("2024-Q2 should contain May 15")
	}
	if !planning.Contains(planning.PeriodYear, "2024", may15) {
		t.Error("2024 should contain May 15")
	}
}

// =============================================================================
// LINEAGE
// =============================================================================

func TestPlanLineage_PlotLevelDiffersFromFarmLevel(t *testing.T) {
	plot := int64(7)
	farmLevel := planning.Plan{FarmID: 1, RubberTypeID: 2, PeriodType: planning.PeriodMonth, PeriodKey: "2024-05"}
	plotLevel := farmLevel
	plotLevel.PlotID = &plot

	if farmLevel.Lineage() == plotLevel.Lineage() {
		t.Error("farm-level and plot-level plans must not share a lineage")
	}

	// Versions never enter the lineage key.
	v2 := farmLevel
	v2.Version = 2
	if farmLevel.Lineage() != v2.Lineage() {
		t.Error("versions of the same plan must share a lineage")
	}
}
