package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workoutcal/internal/model"
	"workoutcal/internal/schedule"
)

func TestCache_InvalidateOnlyTouchesUser(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set(1, "a", "one-a")
	c.Set(1, "b", "one-b")
	c.Set(12, "a", "twelve-a")

	v, ok := c.Get(1, "a")
	require.True(t, ok)
	assert.Equal(t, "one-a", v)

	c.Invalidate(1)
	_, ok = c.Get(1, "a")
	assert.False(t, ok)
	_, ok = c.Get(1, "b")
	assert.False(t, ok)
	_, ok = c.Get(12, "a")
	assert.True(t, ok, "user 12 shares a prefix digit but not the key")

	c.Flush()
	assert.Zero(t, c.Len())
}

func TestCache_SetIfCurrent(t *testing.T) {
	c := NewCache(time.Minute)

	gen := c.Generation(1)
	other := c.Generation(2)
	c.Invalidate(1)
	assert.False(t, c.SetIfCurrent(1, gen, "a", "stale"))
	_, ok := c.Get(1, "a")
	assert.False(t, ok)
	assert.True(t, c.SetIfCurrent(2, other, "a", "fresh"), "other users are unaffected")

	gen = c.Generation(1)
	assert.True(t, c.SetIfCurrent(1, gen, "a", "fresh"))
	v, ok := c.Get(1, "a")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)

	c.Flush()
	assert.False(t, c.SetIfCurrent(1, gen, "a", "stale"))
	assert.Zero(t, c.Len())
}

func TestCache_Schedule(t *testing.T) {
	c := NewCache(0)
	assert.Error(t, c.Schedule("not a cron line", time.UTC))

	require.NoError(t, c.Schedule("0 0 * * *", time.UTC))
	require.NoError(t, c.Schedule("*/5 * * * *", time.UTC), "rescheduling replaces the old job")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Stop(ctx)
	c.Stop(ctx)
}

type fakeAuth struct{ user model.UserID }

func (a fakeAuth) CurrentUser(context.Context) (model.UserID, bool) {
	return a.user, a.user != 0
}

type countingLister struct {
	templates []model.WorkoutTemplate
	instances []model.WorkoutInstance
	err       error
	calls     int
	onList    func()
}

func (l *countingLister) ListTemplates(context.Context) ([]model.WorkoutTemplate, error) {
	l.calls++
	return l.templates, l.err
}

func (l *countingLister) ListInstances(context.Context, model.DateRange) ([]model.WorkoutInstance, error) {
	if l.onList != nil {
		l.onList()
	}
	return l.instances, l.err
}

func TestFeed_CachesPerUserUntilInvalidated(t *testing.T) {
	loc := berlin(t)
	lister := &countingLister{
		templates: testTemplates,
		instances: []model.WorkoutInstance{
			{ID: 1, UserID: 1, TemplateID: 10, Start: time.Date(2024, 3, 4, 0, 0, 0, 0, loc), Rule: "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;COUNT=10"},
		},
	}
	feed := NewFeed(lister, fakeAuth{user: 1}, NewCache(time.Minute), FeedConfig{DisplayLocation: loc})
	ctx := context.Background()

	res, err := feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 8)

	_, err = feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls)

	feed.Invalidate(1)
	_, err = feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)

	ics, err := feed.ICS(ctx)
	require.NoError(t, err)
	assert.Contains(t, ics, "RRULE:FREQ=WEEKLY")
	assert.Equal(t, loc, feed.Location())
}

func TestFeed_CommitDuringReadIsNotCached(t *testing.T) {
	loc := berlin(t)
	lister := &countingLister{templates: testTemplates}
	feed := NewFeed(lister, fakeAuth{user: 1}, NewCache(time.Minute), FeedConfig{DisplayLocation: loc})
	ctx := context.Background()

	lister.onList = func() { feed.Invalidate(1) }
	_, err := feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	_, err = feed.ICS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)

	lister.onList = nil
	_, err = feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	_, err = feed.ICS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, lister.calls, "results read across an invalidation were dropped")

	_, err = feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	assert.Equal(t, 4, lister.calls)
}

func TestFeed_InvalidateCurrentUsesFeedAuthenticator(t *testing.T) {
	loc := berlin(t)
	lister := &countingLister{templates: testTemplates}
	feed := NewFeed(lister, fakeAuth{user: 1}, NewCache(time.Minute), FeedConfig{DisplayLocation: loc})
	ctx := context.Background()

	_, err := feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	feed.InvalidateCurrent(ctx)
	_, err = feed.Occurrences(ctx, march(loc))
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)

	anon := NewFeed(lister, fakeAuth{}, NewCache(time.Minute), FeedConfig{DisplayLocation: loc})
	anon.InvalidateCurrent(ctx)
}

func TestFeed_Errors(t *testing.T) {
	loc := berlin(t)
	boom := errors.New("boom")

	anon := NewFeed(&countingLister{}, fakeAuth{}, nil, FeedConfig{DisplayLocation: loc})
	_, err := anon.Occurrences(context.Background(), march(loc))
	assert.ErrorIs(t, err, schedule.ErrUnauthenticated)
	_, err = anon.ICS(context.Background())
	assert.ErrorIs(t, err, schedule.ErrUnauthenticated)

	failing := NewFeed(&countingLister{err: boom}, fakeAuth{user: 1}, nil, FeedConfig{DisplayLocation: loc})
	_, err = failing.Occurrences(context.Background(), march(loc))
	assert.ErrorIs(t, err, boom)
}
