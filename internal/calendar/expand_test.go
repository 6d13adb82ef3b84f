package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workoutcal/internal/model"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func march(loc *time.Location) model.DateRange {
	return model.DateRange{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 3, 31, 23, 59, 59, 0, loc),
	}
}

var testTemplates = []model.WorkoutTemplate{
	{ID: 10, UserID: 1, Name: "Intervals", Kind: "run"},
	{ID: 11, UserID: 1, Name: "Commute", Kind: "ride"},
}

func TestExpandInstances_MergesAndSorts(t *testing.T) {
	loc := berlin(t)
	instances := []model.WorkoutInstance{
		{ID: 1, UserID: 1, TemplateID: 10, Start: time.Date(2024, 3, 4, 0, 0, 0, 0, loc), Rule: "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;COUNT=10"},
		{ID: 2, UserID: 1, TemplateID: 11, Start: time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC), Rule: "FREQ=DAILY;INTERVAL=1;COUNT=3"},
	}

	res, err := ExpandInstances(instances, testTemplates, ExpandConfig{DisplayLocation: loc, Range: march(loc)})
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedInstances)
	assert.Empty(t, res.SkippedInstances)
	require.Len(t, res.Occurrences, 11, "8 weekly in March plus 3 daily")

	first := res.Occurrences[0]
	assert.Equal(t, model.InstanceID(1), first.InstanceID)
	assert.Equal(t, "Intervals", first.TemplateName)
	assert.Equal(t, "run", first.Kind)
	assert.Equal(t, "2024-03-04T00:00:00+01:00", first.InstanceKey)
	assert.Equal(t, loc, first.Start.Location())

	var order []model.InstanceID
	for _, o := range res.Occurrences[:5] {
		order = append(order, o.InstanceID)
	}
	assert.Equal(t, []model.InstanceID{1, 2, 1, 2, 2}, order)
	assert.Equal(t, 8, res.Occurrences[1].Start.Hour(), "07:00 UTC shown in Berlin")

	for i := 1; i < len(res.Occurrences); i++ {
		assert.False(t, res.Occurrences[i].Start.Before(res.Occurrences[i-1].Start))
	}
}

func TestExpandInstances_SkipsBrokenRule(t *testing.T) {
	loc := berlin(t)
	instances := []model.WorkoutInstance{
		{ID: 1, TemplateID: 10, Start: time.Date(2024, 3, 4, 0, 0, 0, 0, loc), Rule: "FREQ=HOURLY;COUNT=2"},
		{ID: 2, TemplateID: 99, Start: time.Date(2024, 3, 4, 0, 0, 0, 0, loc), Rule: "FREQ=DAILY;INTERVAL=1;COUNT=2"},
	}

	res, err := ExpandInstances(instances, testTemplates, ExpandConfig{DisplayLocation: loc, Range: march(loc)})
	require.NoError(t, err)
	assert.Equal(t, []model.InstanceID{1}, res.SkippedInstances)
	require.Len(t, res.Occurrences, 2)
	assert.Empty(t, res.Occurrences[0].TemplateName, "unknown template leaves name empty")
}

func TestExpandInstances_Cap(t *testing.T) {
	loc := berlin(t)
	instances := []model.WorkoutInstance{
		{ID: 3, TemplateID: 10, Start: time.Date(2024, 3, 1, 6, 0, 0, 0, loc), Rule: "FREQ=DAILY;INTERVAL=1;COUNT=100"},
	}

	res, err := ExpandInstances(instances, testTemplates, ExpandConfig{
		DisplayLocation:           loc,
		Range:                     march(loc),
		MaxOccurrencesPerInstance: 5,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 5)
	assert.Equal(t, []model.InstanceID{3}, res.TruncatedInstances)
}

func TestExpandInstances_BadRange(t *testing.T) {
	loc := berlin(t)
	rng := march(loc)

	_, err := ExpandInstances(nil, nil, ExpandConfig{Range: model.DateRange{Start: rng.End, End: rng.Start}})
	assert.Error(t, err)

	_, err = ExpandInstances(nil, nil, ExpandConfig{Range: model.DateRange{Start: rng.Start}})
	assert.Error(t, err)

	res, err := ExpandInstances(nil, nil, ExpandConfig{Range: rng})
	require.NoError(t, err)
	assert.NotNil(t, res.Occurrences)
	assert.Empty(t, res.Occurrences)
}
