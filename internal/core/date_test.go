package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ISO() != "2024-02-29" {
		t.Fatalf("round trip: got %q", d.ISO())
	}

	for _, bad := range []string{"", "2024-13-01", "01/02/2024", "2024-2-9"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2024, 6, 15, 23, 30, 0, 0, time.FixedZone("X", -7*3600))
	d := DateOf(ts)
	// 23:30 at UTC-7 is already June 16 in UTC.
	if d.ISO() != "2024-06-16" {
		t.Fatalf("expected 2024-06-16, got %s", d.ISO())
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, 1, 31)

	if got := d.AddDays(-14).ISO(); got != "2024-01-17" {
		t.Fatalf("AddDays(-14): got %s", got)
	}
	if got := d.AddDays(14).ISO(); got != "2024-02-14" {
		t.Fatalf("AddDays(14): got %s", got)
	}
	if got := NewDate(2024, 12, 1).AddMonths(1).ISO(); got != "2025-01-01" {
		t.Fatalf("AddMonths over year end: got %s", got)
	}
}

func TestDateValidate(t *testing.T) {
	if err := (Date{}).Validate(); err == nil {
		t.Fatal("zero date should not validate")
	}
	if err := NewDate(2024, 3, 1).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
