package calendar

import (
	"context"
	"fmt"
	"time"

	"workoutcal/internal/model"
	"workoutcal/internal/schedule"
)

// Lister is the read side of schedule.Service.
type Lister interface {
	ListTemplates(ctx context.Context) ([]model.WorkoutTemplate, error)
	ListInstances(ctx context.Context, rng model.DateRange) ([]model.WorkoutInstance, error)
}

// FeedConfig tunes a Feed.
type FeedConfig struct {
	DisplayLocation           *time.Location
	MaxOccurrencesPerInstance int
	Name                      string
}

// Feed serves the calendar view for the current user, caching results.
type Feed struct {
	lister Lister
	auth   schedule.Authenticator
	cache  *Cache
	cfg    FeedConfig
}

// NewFeed wires a Feed. cache may be nil to disable caching.
func NewFeed(lister Lister, auth schedule.Authenticator, cache *Cache, cfg FeedConfig) *Feed {
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	return &Feed{lister: lister, auth: auth, cache: cache, cfg: cfg}
}

// Location is the display timezone.
func (f *Feed) Location() *time.Location { return f.cfg.DisplayLocation }

// Occurrences returns the current user's occurrences within rng.
func (f *Feed) Occurrences(ctx context.Context, rng model.DateRange) (Result, error) {
	user, ok := f.auth.CurrentUser(ctx)
	if !ok {
		return Result{}, schedule.ErrUnauthenticated
	}

	key := fmt.Sprintf("occ|%d|%d", rng.Start.Unix(), rng.End.Unix())
	var gen Generation
	if f.cache != nil {
		if v, hit := f.cache.Get(user, key); hit {
			if res, ok := v.(Result); ok {
				return res, nil
			}
		}
		gen = f.cache.Generation(user)
	}

	templates, err := f.lister.ListTemplates(ctx)
	if err != nil {
		return Result{}, err
	}
	instances, err := f.lister.ListInstances(ctx, rng)
	if err != nil {
		return Result{}, err
	}

	res, err := ExpandInstances(instances, templates, ExpandConfig{
		DisplayLocation:           f.cfg.DisplayLocation,
		Range:                     rng,
		MaxOccurrencesPerInstance: f.cfg.MaxOccurrencesPerInstance,
	})
	if err != nil {
		return Result{}, err
	}
	if f.cache != nil {
		f.cache.SetIfCurrent(user, gen, key, res)
	}
	return res, nil
}

// ICS returns the current user's schedule as an iCalendar document.
func (f *Feed) ICS(ctx context.Context) (string, error) {
	user, ok := f.auth.CurrentUser(ctx)
	if !ok {
		return "", schedule.ErrUnauthenticated
	}

	const key = "ics"
	var gen Generation
	if f.cache != nil {
		if v, hit := f.cache.Get(user, key); hit {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
		gen = f.cache.Generation(user)
	}

	templates, err := f.lister.ListTemplates(ctx)
	if err != nil {
		return "", err
	}
	instances, err := f.lister.ListInstances(ctx, model.DateRange{})
	if err != nil {
		return "", err
	}

	out := ICS(instances, templates, ICSOptions{
		Name:     f.cfg.Name,
		Timezone: ZoneID(f.cfg.DisplayLocation),
	})
	if f.cache != nil {
		f.cache.SetIfCurrent(user, gen, key, out)
	}
	return out, nil
}

// Invalidate drops cached views of user.
func (f *Feed) Invalidate(user model.UserID) {
	if f.cache != nil {
		f.cache.Invalidate(user)
	}
}

// InvalidateCurrent drops cached views of the user behind ctx, called after
// a commit. The user is resolved with the feed's own Authenticator.
func (f *Feed) InvalidateCurrent(ctx context.Context) {
	if user, ok := f.auth.CurrentUser(ctx); ok {
		f.Invalidate(user)
	}
}
