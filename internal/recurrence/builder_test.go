package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weeklyParams() Params {
	return Params{
		Frequency: "weekly",
		Interval:  "1",
		Weekdays:  []string{"monday", "wednesday"},
		EndMode:   EndByCount,
		Count:     "10",
		Start:     "2024-03-04",
	}
}

func requireValidation(t *testing.T, err error, field string, target error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, target)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
	assert.Equal(t, field, verr.Field)
}

func TestBuild_Weekly(t *testing.T) {
	s, err := Builder{}.Build(weeklyParams())
	require.NoError(t, err)

	assert.Equal(t, Weekly, s.Frequency())
	assert.Equal(t, 1, s.Interval())
	days, ok := s.Weekdays()
	require.True(t, ok)
	assert.Equal(t, []Weekday{Monday, Wednesday}, days.Days())
	_, ok = s.MonthDay()
	assert.False(t, ok)
	n, ok := s.End().Count()
	require.True(t, ok)
	assert.Equal(t, 10, n)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), s.Start())
}

func TestBuild_WeekdaysAreACaseInsensitiveSet(t *testing.T) {
	p := weeklyParams()
	p.Weekdays = []string{"Wednesday", "MONDAY", "monday", "wed"}

	s, err := Builder{}.Build(p)
	require.NoError(t, err)

	days, _ := s.Weekdays()
	assert.Equal(t, 2, days.Len())
	assert.Equal(t, "MO,WE", days.String())
}

func TestBuild_EmptyWeekdaySet(t *testing.T) {
	p := weeklyParams()
	p.Weekdays = nil

	_, err := Builder{}.Build(p)
	requireValidation(t, err, "weekdays", ErrEmptyWeekdaySet)
}

func TestBuild_UnknownWeekday(t *testing.T) {
	p := weeklyParams()
	p.Weekdays = []string{"monday", "funday"}

	_, err := Builder{}.Build(p)
	requireValidation(t, err, "weekdays", ErrInvalidWeekday)
}

func TestBuild_InvalidInterval(t *testing.T) {
	for _, raw := range []Field{"0", "-2", "abc", "", "1.5"} {
		t.Run(string(raw), func(t *testing.T) {
			p := weeklyParams()
			p.Interval = raw
			_, err := Builder{}.Build(p)
			requireValidation(t, err, "interval", ErrInvalidInterval)
		})
	}
}

func TestBuild_InvalidFrequency(t *testing.T) {
	p := weeklyParams()
	p.Frequency = "yearly"

	_, err := Builder{}.Build(p)
	requireValidation(t, err, "frequency", ErrInvalidFrequency)
}

func TestBuild_Monthly(t *testing.T) {
	p := Params{
		Frequency: "Monthly",
		Interval:  "2",
		Weekdays:  []string{"friday"},
		MonthDay:  "31",
		EndMode:   EndByCount,
		Count:     "3",
		Start:     "2024-01-31",
	}

	s, err := Builder{}.Build(p)
	require.NoError(t, err)

	day, ok := s.MonthDay()
	require.True(t, ok)
	assert.Equal(t, 31, day)
	_, ok = s.Weekdays()
	assert.False(t, ok, "weekday input must not leak into a monthly rule")
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=31;COUNT=3", Serialize(s))
}

func TestBuild_InvalidMonthDay(t *testing.T) {
	for _, raw := range []Field{"0", "32", "x", ""} {
		t.Run(string(raw), func(t *testing.T) {
			p := Params{Frequency: "monthly", Interval: "1", MonthDay: raw, Count: "1", Start: "2024-01-01"}
			_, err := Builder{}.Build(p)
			requireValidation(t, err, "month_day", ErrInvalidMonthDay)
		})
	}
}

func TestBuild_DailyIgnoresWeekdayAndMonthDay(t *testing.T) {
	p := Params{
		Frequency: "daily",
		Interval:  "3",
		Weekdays:  []string{"not-a-day"},
		MonthDay:  "99",
		Count:     "4",
		Start:     "2024-03-01",
	}

	s, err := Builder{}.Build(p)
	require.NoError(t, err)
	assert.Equal(t, "FREQ=DAILY;INTERVAL=3;COUNT=4", Serialize(s))
}

func TestBuild_InvalidCount(t *testing.T) {
	for _, raw := range []Field{"0", "-1", "many", ""} {
		t.Run(string(raw), func(t *testing.T) {
			p := weeklyParams()
			p.Count = raw
			_, err := Builder{}.Build(p)
			requireValidation(t, err, "count", ErrInvalidCount)
		})
	}
}

func TestBuild_UntilInBuilderLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	p := weeklyParams()
	p.EndMode = EndByDate
	p.EndDate = "2024-03-18"

	s, err := Builder{Location: berlin}.Build(p)
	require.NoError(t, err)

	until, ok := s.End().Until()
	require.True(t, ok)
	assert.True(t, until.Equal(time.Date(2024, 3, 18, 0, 0, 0, 0, berlin)))
	assert.Equal(t, berlin, s.Start().Location())
}

func TestBuild_UntilEqualToStartIsAllowed(t *testing.T) {
	p := weeklyParams()
	p.EndMode = EndByDate
	p.EndDate = p.Start

	_, err := Builder{}.Build(p)
	require.NoError(t, err)
}

func TestBuild_EndBeforeStart(t *testing.T) {
	p := weeklyParams()
	p.EndMode = EndByDate
	p.EndDate = "2024-03-03"

	_, err := Builder{}.Build(p)
	requireValidation(t, err, "end_date", ErrEndBeforeStart)
}

func TestBuild_MissingEndDate(t *testing.T) {
	p := weeklyParams()
	p.EndMode = EndByDate
	p.EndDate = "soon"

	_, err := Builder{}.Build(p)
	requireValidation(t, err, "end_date", ErrInvalidEndDate)
}

func TestBuild_MissingStart(t *testing.T) {
	for _, raw := range []string{"", "03/04/2024", "yesterday"} {
		t.Run(raw, func(t *testing.T) {
			p := weeklyParams()
			p.Start = raw
			_, err := Builder{}.Build(p)
			requireValidation(t, err, "start", ErrMissingStart)
		})
	}
}

func TestBuild_RFC3339StartMovesIntoLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	p := weeklyParams()
	p.Start = "2024-03-04T06:30:00Z"

	s, err := Builder{Location: berlin}.Build(p)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Start().Hour())
	assert.Equal(t, berlin, s.Start().Location())
}

func TestBuild_IsDeterministic(t *testing.T) {
	p := weeklyParams()
	a, errA := Builder{}.Build(p)
	b, errB := Builder{}.Build(p)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.True(t, a.Equal(b))

	p.Interval = "0"
	_, errA = Builder{}.Build(p)
	_, errB = Builder{}.Build(p)
	assert.Equal(t, errA, errB)
}

func TestBuilder_ParseDate(t *testing.T) {
	b := Builder{Location: time.FixedZone("UTC+2", 2*60*60)}

	d, ok := b.ParseDate("2024-03-04")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, b.Location), d)

	d, ok = b.ParseDate("2024-03-04T07:30")
	require.True(t, ok)
	assert.Equal(t, 7, d.Hour())

	_, ok = b.ParseDate("04/03/2024")
	assert.False(t, ok)
	_, ok = Builder{}.ParseDate("")
	assert.False(t, ok)

	d, ok = b.ParseDate("2024-03-04T10:00:00.123Z")
	require.True(t, ok)
	assert.Zero(t, d.Nanosecond())
	assert.True(t, d.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
}

func TestBuilder_FractionalSecondsAreDropped(t *testing.T) {
	s, err := Builder{}.Build(Params{
		Frequency: "daily",
		Interval:  "1",
		EndMode:   EndByCount,
		Count:     "3",
		Start:     "2024-03-04T10:00:00.5Z",
	})
	require.NoError(t, err)
	assert.True(t, s.Start().Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, []time.Time{
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC),
	}, All(s))

	s, err = Builder{}.Build(Params{
		Frequency: "daily",
		Interval:  "1",
		EndMode:   EndByDate,
		EndDate:   "2024-03-06T10:00:00.7Z",
		Start:     "2024-03-04T10:00:00.5Z",
	})
	require.NoError(t, err)
	text := Serialize(s)
	assert.Equal(t, "FREQ=DAILY;INTERVAL=1;UNTIL=2024-03-06T10:00:00Z", text)
	back, err := Parse(text, s.Start())
	require.NoError(t, err)
	assert.True(t, back.Equal(s))
	assert.Len(t, All(s), 3)
}

func TestField_UnmarshalJSONAcceptsNumbers(t *testing.T) {
	var f Field
	require.NoError(t, f.UnmarshalJSON([]byte(`12`)))
	assert.Equal(t, Field("12"), f)
	require.NoError(t, f.UnmarshalJSON([]byte(`"7"`)))
	assert.Equal(t, Field("7"), f)
	require.NoError(t, f.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, Field(""), f)
}

func TestDescribe(t *testing.T) {
	p := weeklyParams()
	p.Interval = "2"
	s, err := Builder{}.Build(p)
	require.NoError(t, err)
	assert.Equal(t, "Every 2 weeks on Monday, Wednesday, 10 times", s.Describe())

	s, err = Builder{}.Build(Params{Frequency: "monthly", Interval: "1", MonthDay: "15", EndMode: EndByDate, EndDate: "2024-12-31", Start: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "Every month on day 15, until 2024-12-31", s.Describe())

	s, err = Builder{}.Build(Params{Frequency: "daily", Interval: "1", Count: "1", Start: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "Every day, once", s.Describe())
}
