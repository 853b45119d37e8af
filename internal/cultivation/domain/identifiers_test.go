package domain

import (
	"testing"
	"time"
)

func TestFormatBatchID(t *testing.T) {
	date := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

	if got := FormatBatchID("FPR", date, 1); got != "FPR-15012025-B01" {
		t.Fatalf("unexpected batch id %q", got)
	}
	if got := FormatBatchID("FPR", date, 12); got != "FPR-15012025-B12" {
		t.Fatalf("unexpected batch id %q", got)
	}
}

func TestFormatBagletID(t *testing.T) {
	got := FormatBagletID("FPR-15012025-B01", "OYS-01", "V7", "SUB-A", 5)
	if got != "FPR-15012025-B01-OYS-01-V7-SUB-A-005" {
		t.Fatalf("unexpected baglet id %q", got)
	}
	if seq, ok := BagletSequence(got); !ok || seq != 5 {
		t.Fatalf("expected sequence 5, got %d %v", seq, ok)
	}
}

func TestParseBatchIDRoundTrip(t *testing.T) {
	date := time.Date(2024, time.December, 3, 0, 0, 0, 0, time.UTC)
	id := FormatBatchID("NORTH1", date, 7)

	key, err := ParseBatchID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.FarmID != "NORTH1" || key.Sequence != 7 || !key.PreparedDate.Equal(date) {
		t.Fatalf("unexpected key %+v", key)
	}
}

func TestParseBatchIDRejectsMalformed(t *testing.T) {
	for _, id := range []string{"", "FPR-2025-B01", "FPR-15012025-01", "FPR-32012025-B01", "fpr-15012025-B01", "FPR-15012025-B00"} {
		if _, err := ParseBatchID(id); err == nil {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	late := time.Date(2025, time.January, 15, 23, 30, 0, 0, loc)

	got := DateOnly(late)
	if got != time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected calendar date in source zone, got %v", got)
	}
}
