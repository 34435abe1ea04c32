package schedule

import (
	"testing"
	"time"

	"github.com/mwhitver/tablevault/internal/model"
)

func TestValidateCron(t *testing.T) {
	valid := []string{
		"0 2 * * *",
		"*/15 * * * *",
		"30 4 1 * *",
		"0 3 * * 0",
	}
	for _, expr := range valid {
		if err := ValidateCron(expr); err != nil {
			t.Errorf("ValidateCron(%q) = %v, want nil", expr, err)
		}
	}

	invalid := []string{
		"",
		"not a cron",
		"0 2 * *",         // four fields
		"0 2 * * * *",     // six fields
		"61 2 * * *",      // minute out of range
		"@every 1h30m@@@", // malformed descriptor
	}
	for _, expr := range invalid {
		err := ValidateCron(expr)
		if err == nil {
			t.Errorf("ValidateCron(%q) = nil, want error", expr)
			continue
		}
		if !model.IsValidation(err) {
			t.Errorf("ValidateCron(%q): expected ValidationError, got %T", expr, err)
		}
	}
}

func TestNextRunDaily(t *testing.T) {
	lastRun := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	next, err := NextRun("0 2 * * *", lastRun)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2025, 1, 2, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunStrictlyAfter(t *testing.T) {
	// A last run exactly on the boundary must advance to the next period.
	at := time.Date(2025, 6, 15, 2, 0, 0, 0, time.UTC)
	next, err := NextRun("0 2 * * *", at)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2025, 6, 16, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunWeekly(t *testing.T) {
	// 2025-01-01 is a Wednesday; next Sunday 03:00 is 2025-01-05.
	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := NextRun("0 3 * * 0", after)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2025, 1, 5, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}
