package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/pkg/timerange"
)

func override(typ model.OverrideType, from, to time.Time, start, end string) *model.ScheduleOverride {
	o := &model.ScheduleOverride{
		Base:      model.Base{ID: uuid.New(), CreatedAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		StartDate: from,
		EndDate:   to,
		Type:      typ,
	}
	if start != "" {
		o.StartClock, o.EndClock = clock(start), clock(end)
	}
	return o
}

func TestResolveOpenRangesBusinessHours(t *testing.T) {
	hours := model.BusinessHours{"monday": {{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "18:00"}}}

	ranges, err := ResolveOpenRanges(hours, nil, monday)
	require.NoError(t, err)
	assert.Equal(t, []timerange.Range{{Start: 540, End: 720}, {Start: 780, End: 1080}}, ranges)

	ranges, err = ResolveOpenRanges(hours, nil, sunday)
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestResolveOpenRangesUnavailableWins(t *testing.T) {
	hours := weekdayHours("09:00", "18:00")
	overrides := []*model.ScheduleOverride{
		override(model.OverrideAvailable, monday, monday, "10:00", "12:00"),
		override(model.OverrideUnavailable, monday.AddDate(0, 0, -7), monday.AddDate(0, 0, 7), "", ""),
	}

	ranges, err := ResolveOpenRanges(hours, overrides, monday)
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestResolveOpenRangesAvailableReplacesHours(t *testing.T) {
	hours := weekdayHours("09:00", "18:00")
	overrides := []*model.ScheduleOverride{override(model.OverrideAvailable, monday, monday, "12:00", "20:00")}

	ranges, err := ResolveOpenRanges(hours, overrides, monday)
	require.NoError(t, err)
	assert.Equal(t, []timerange.Range{{Start: 720, End: 1200}}, ranges)
}

func TestResolveOpenRangesNarrowestOverrideWins(t *testing.T) {
	week := override(model.OverrideAvailable, monday.AddDate(0, 0, -3), monday.AddDate(0, 0, 3), "08:00", "12:00")
	day := override(model.OverrideAvailable, monday, monday, "14:00", "16:00")

	for _, order := range [][]*model.ScheduleOverride{{week, day}, {day, week}} {
		ranges, err := ResolveOpenRanges(nil, order, monday)
		require.NoError(t, err)
		assert.Equal(t, []timerange.Range{{Start: 840, End: 960}}, ranges)
	}
}

func TestResolveOpenRangesTieBreaksOnNewest(t *testing.T) {
	older := override(model.OverrideAvailable, monday, monday, "08:00", "12:00")
	newer := override(model.OverrideAvailable, monday, monday, "13:00", "15:00")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	ranges, err := ResolveOpenRanges(nil, []*model.ScheduleOverride{older, newer}, monday)
	require.NoError(t, err)
	assert.Equal(t, []timerange.Range{{Start: 780, End: 900}}, ranges)
}

func TestResolveOpenRangesAvailableWithoutHours(t *testing.T) {
	overrides := []*model.ScheduleOverride{override(model.OverrideAvailable, sunday, monday, "", "")}

	ranges, err := ResolveOpenRanges(weekdayHours("09:00", "10:00"), overrides, sunday)
	require.NoError(t, err)
	assert.Empty(t, ranges, "an override without hours does not open a closed day")

	ranges, err = ResolveOpenRanges(weekdayHours("09:00", "10:00"), overrides, monday)
	require.NoError(t, err)
	assert.Equal(t, []timerange.Range{{Start: 540, End: 600}}, ranges)
}

func TestResolveOpenRangesIgnoresNonCoveringOverrides(t *testing.T) {
	overrides := []*model.ScheduleOverride{override(model.OverrideUnavailable, sunday, sunday, "", "")}

	ranges, err := ResolveOpenRanges(weekdayHours("09:00", "10:00"), overrides, monday)
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
}

func TestResolveOpenRangesRejectsMalformedHours(t *testing.T) {
	_, err := ResolveOpenRanges(model.BusinessHours{"monday": {{Start: "18:00", End: "09:00"}}}, nil, monday)
	assert.Error(t, err)
}
