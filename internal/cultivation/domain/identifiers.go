package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// batchDateLayout is ddmmyyyy.
const batchDateLayout = "02012006"

var batchIDPattern = regexp.MustCompile(`^([A-Z0-9]+)-(\d{8})-B(\d{2,})$`)

// BatchKey is the decoded form of a batch id.
type BatchKey struct {
	FarmID       string
	PreparedDate time.Time
	Sequence     int
}

// FormatBatchID renders {farm}-{ddmmyyyy}-B{seq:02}.
func FormatBatchID(farmID string, preparedDate time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s-B%02d", farmID, preparedDate.Format(batchDateLayout), sequence)
}

// FormatBagletID renders {batch}-{strain}-{vendor}-{substrate}-{seq:03}.
func FormatBagletID(batchID, strainCode, strainVendorID, substrateID string, sequence int) string {
	return fmt.Sprintf("%s-%s-%s-%s-%03d", batchID, strainCode, strainVendorID, substrateID, sequence)
}

// ParseBatchID decodes a batch id produced by FormatBatchID.
func ParseBatchID(id string) (BatchKey, error) {
	m := batchIDPattern.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return BatchKey{}, fmt.Errorf("malformed batch id %q", id)
	}

	date, err := time.Parse(batchDateLayout, m[2])
	if err != nil {
		return BatchKey{}, fmt.Errorf("malformed batch date in %q: %w", id, err)
	}

	seq, err := strconv.Atoi(m[3])
	if err != nil || seq < 1 {
		return BatchKey{}, fmt.Errorf("malformed batch sequence in %q", id)
	}

	return BatchKey{FarmID: m[1], PreparedDate: date, Sequence: seq}, nil
}

// BagletSequence extracts the trailing three-digit sequence of a baglet id.
func BagletSequence(bagletID string) (int, bool) {
	idx := strings.LastIndexByte(bagletID, '-')
	if idx < 0 || len(bagletID)-idx-1 < 3 {
		return 0, false
	}
	seq, err := strconv.Atoi(bagletID[idx+1:])
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}

// DateOnly truncates t to midnight UTC of its calendar date in t's location.
// Prepared dates are calendar days, not instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
