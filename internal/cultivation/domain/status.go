// Package domain holds the pure rules of the cultivation lifecycle: the
// status graph, identifier formats, recipe scaling, metric patches and the
// derived batch status. Nothing here performs I/O.
package domain

import (
	"fmt"
	"strings"
)

// Status is a baglet lifecycle status. The set is closed; values outside the
// declared constants are never produced by ParseStatus.
type Status uint8

const (
	StatusNone Status = iota
	StatusPlanned
	StatusPrepared
	StatusSterilized
	StatusInoculated
	StatusIncubated
	StatusPinned
	StatusHarvested
	StatusRepinned1
	StatusReharvested1
	StatusRepinned2
	StatusReharvested2
	StatusRepinned3
	StatusReharvested3
	StatusRepinned4
	StatusReharvested4
	StatusContaminated
	StatusCRCAnalyzed
	StatusDamaged
	StatusDisposed
	StatusRecycled
	StatusDeleted

	statusCount
)

var statusNames = [statusCount]string{
	StatusNone:         "NONE",
	StatusPlanned:      "PLANNED",
	StatusPrepared:     "PREPARED",
	StatusSterilized:   "STERILIZED",
	StatusInoculated:   "INOCULATED",
	StatusIncubated:    "INCUBATED",
	StatusPinned:       "PINNED",
	StatusHarvested:    "HARVESTED",
	StatusRepinned1:    "REPINNED_1",
	StatusReharvested1: "REHARVESTED_1",
	StatusRepinned2:    "REPINNED_2",
	StatusReharvested2: "REHARVESTED_2",
	StatusRepinned3:    "REPINNED_3",
	StatusReharvested3: "REHARVESTED_3",
	StatusRepinned4:    "REPINNED_4",
	StatusReharvested4: "REHARVESTED_4",
	StatusContaminated: "CONTAMINATED",
	StatusCRCAnalyzed:  "CRC_ANALYZED",
	StatusDamaged:      "DAMAGED",
	StatusDisposed:     "DISPOSED",
	StatusRecycled:     "RECYCLED",
	StatusDeleted:      "DELETED",
}

// InitialStatus is the status every baglet is created in.
const InitialStatus = StatusPlanned

func (s Status) String() string {
	if s.Valid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return s < statusCount
}

// ParseStatus converts the stored/wire name into a Status. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return StatusNone, fmt.Errorf("unknown status %q", raw)
}

// MarshalText encodes the status name for JSON and query binding.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AllStatuses returns every status in declaration order.
func AllStatuses() []Status {
	out := make([]Status, 0, statusCount)
	for s := Status(0); s < statusCount; s++ {
		out = append(out, s)
	}
	return out
}

// AvailableTransitions returns the statuses reachable from s by one edge.
// Terminal statuses return an empty slice. The result is freshly allocated
// on every call, so callers may modify it.
func AvailableTransitions(s Status) []Status {
	switch s {
	case StatusNone:
		return []Status{StatusPlanned}
	case StatusPlanned:
		return []Status{StatusPrepared, StatusDeleted}
	case StatusPrepared:
		return []Status{StatusSterilized, StatusDamaged, StatusDisposed, StatusDeleted}
	case StatusSterilized:
		return []Status{StatusInoculated, StatusDamaged, StatusDisposed, StatusDeleted}
	case StatusInoculated:
		return growing(StatusIncubated)
	case StatusIncubated:
		return growing(StatusPinned)
	case StatusPinned:
		return growing(StatusHarvested)
	case StatusHarvested:
		return growing(StatusRepinned1)
	case StatusRepinned1:
		return growing(StatusReharvested1)
	case StatusReharvested1:
		return growing(StatusRepinned2)
	case StatusRepinned2:
		return growing(StatusReharvested2)
	case StatusReharvested2:
		return growing(StatusRepinned3)
	case StatusRepinned3:
		return growing(StatusReharvested3)
	case StatusReharvested3:
		return growing(StatusRepinned4)
	case StatusRepinned4:
		return growing(StatusReharvested4)
	case StatusReharvested4:
		return []Status{StatusContaminated, StatusDamaged, StatusDisposed, StatusDeleted}
	case StatusContaminated:
		return []Status{StatusCRCAnalyzed, StatusDisposed}
	case StatusCRCAnalyzed:
		return []Status{StatusDisposed}
	case StatusDamaged:
		return []Status{StatusDisposed}
	case StatusDisposed:
		return []Status{StatusRecycled}
	case StatusRecycled, StatusDeleted:
		return []Status{}
	default:
		return []Status{}
	}
}

// growing is the edge set shared by every post-inoculation stage: the next
// stage plus the contamination, damage and escape branches.
func growing(next Status) []Status {
	return []Status{next, StatusContaminated, StatusDamaged, StatusDisposed, StatusDeleted}
}

// ValidateTransition reports whether to is one edge away from from.
func ValidateTransition(from, to Status) bool {
	for _, next := range AvailableTransitions(from) {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s Status) bool {
	return len(AvailableTransitions(s)) == 0
}

// IsPersistable reports whether a baglet row may hold s. NONE only exists as
// the implicit state before creation.
func IsPersistable(s Status) bool {
	return s.Valid() && s != StatusNone
}
