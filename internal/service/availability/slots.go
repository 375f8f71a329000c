package availability

import (
	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/pkg/timerange"
)

// GenerateSlots walks each open range in step increments and emits every start
// whose [start, start+duration) fits inside the range. A slot is available when
// it overlaps none of busy. Ranges are processed independently and concatenated.
func GenerateSlots(open []timerange.Range, step, duration int, busy []timerange.Range) []model.Slot {
	if step <= 0 || duration <= 0 {
		return []model.Slot{}
	}

	slots := []model.Slot{}
	for _, r := range open {
		for start := r.Start; start+duration <= r.End; start += step {
			candidate := timerange.Range{Start: start, End: start + duration}
			slots = append(slots, model.Slot{
				Time:      timerange.FromMinutes(start),
				Available: !HasConflict(candidate, busy),
			})
		}
	}
	return slots
}
