package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/pkg/timerange"
)

// ResolveOpenRanges returns the open clock ranges of date for one professional.
//
// Precedence among the overrides covering date:
//   - any unavailable override closes the day;
//   - otherwise the available override with explicit hours and the narrowest
//     date span replaces business hours (ties: newest CreatedAt, then greatest ID);
//   - available overrides without hours leave business hours in effect.
func ResolveOpenRanges(hours model.BusinessHours, overrides []*model.ScheduleOverride, date time.Time) ([]timerange.Range, error) {
	var candidates []*model.ScheduleOverride
	for _, o := range overrides {
		if !o.Covers(date) {
			continue
		}
		if o.Type == model.OverrideUnavailable {
			return nil, nil
		}
		if o.Type == model.OverrideAvailable && o.HasHours() {
			candidates = append(candidates, o)
		}
	}

	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.SpanDays() != b.SpanDays() {
				return a.SpanDays() < b.SpanDays()
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID.String() > b.ID.String()
		})
		winner := candidates[0]
		r, err := timerange.Parse(*winner.StartClock, *winner.EndClock)
		if err != nil {
			return nil, fmt.Errorf("invalid hours on override %s: %w", winner.ID, err)
		}
		return []timerange.Range{r}, nil
	}

	configured := hours.For(date)
	ranges := make([]timerange.Range, 0, len(configured))
	for _, cr := range configured {
		r, err := timerange.Parse(cr.Start, cr.End)
		if err != nil {
			return nil, fmt.Errorf("invalid business hours for %s: %w", model.WeekdayKey(date.Weekday()), err)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
