package domain

// InProgress is the projection-only marker for a batch whose baglets hold
// mixed statuses. It is never a baglet status.
const InProgress = "IN_PROGRESS"

// StatusCounts is the number of non-deleted baglets per status.
type StatusCounts map[Status]int

// Total sums every bucket.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// DeriveBatchStatus projects the shared status of a batch's baglets: the
// status name when all of them agree, InProgress when they differ, and NONE
// when there are none.
func DeriveBatchStatus(counts StatusCounts) string {
	var only Status
	distinct := 0
	for s, n := range counts {
		if n <= 0 {
			continue
		}
		distinct++
		only = s
	}
	switch distinct {
	case 0:
		return StatusNone.String()
	case 1:
		return only.String()
	default:
		return InProgress
	}
}

// ByName renders counts keyed by status name for transport.
func (c StatusCounts) ByName() map[string]int {
	out := make(map[string]int, len(c))
	for s, n := range c {
		if n > 0 {
			out[s.String()] = n
		}
	}
	return out
}
