// Package schedule is the boundary between the recurrence engine and the
// outside world: it resolves the current user, stores confirmed schedules
// as serialized rules, and hands stored schedules back to the calendar.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "workoutcal/internal/log"
	"workoutcal/internal/model"
	"workoutcal/internal/observability"
	"workoutcal/internal/recurrence"
)

// ErrUnauthenticated is returned when no user is attached to the request.
var ErrUnauthenticated = errors.New("not logged in")

// Authenticator resolves the user behind a request.
type Authenticator interface {
	CurrentUser(ctx context.Context) (model.UserID, bool)
}

// Store is the persistence collaborator. Template ownership is enforced by
// the store on insert; uniqueness and conflicts are its business too.
type Store interface {
	InsertInstance(ctx context.Context, userID model.UserID, templateID model.TemplateID, start time.Time, rule string) (model.InstanceID, error)
	FetchTemplates(ctx context.Context, userID model.UserID) ([]model.WorkoutTemplate, error)
	FetchInstances(ctx context.Context, userID model.UserID, rng model.DateRange) ([]model.WorkoutInstance, error)
}

// StorageError wraps a store failure unchanged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Service commits and lists workout schedules for the current user.
type Service struct {
	auth  Authenticator
	store Store
}

// NewService constructs a Service.
func NewService(auth Authenticator, store Store) *Service {
	return &Service{auth: auth, store: store}
}

// Commit stores spec for templateID as a new workout instance. start must
// be the spec's own start, to the second. Nothing is retried; a store failure comes back
// as *StorageError.
func (s *Service) Commit(ctx context.Context, templateID model.TemplateID, start time.Time, spec recurrence.Spec) (model.InstanceID, error) {
	userID, ok := s.auth.CurrentUser(ctx)
	if !ok {
		return 0, ErrUnauthenticated
	}

	start = start.Truncate(time.Second)
	switch {
	case start.IsZero():
		return 0, &recurrence.ValidationError{Field: "start", Err: recurrence.ErrMissingStart}
	case !spec.Valid():
		return 0, &recurrence.ValidationError{Field: "frequency", Err: recurrence.ErrInvalidFrequency}
	case !start.Equal(spec.Start()):
		return 0, &recurrence.ValidationError{Field: "start", Err: recurrence.ErrStartMismatch}
	}

	rule := recurrence.Serialize(spec)

	id, err := s.store.InsertInstance(ctx, userID, templateID, start, rule)
	if err != nil {
		observability.RecordCommit(false)
		appLog.Error("schedule commit failed", err,
			"user_id", int64(userID),
			"template_id", int64(templateID),
			"rule", rule,
		)
		return 0, &StorageError{Op: "insert instance", Err: err}
	}

	observability.RecordCommit(true)
	appLog.Info("workout instance committed",
		"user_id", int64(userID),
		"template_id", int64(templateID),
		"instance_id", int64(id),
		"start", start.Format(time.RFC3339),
		"rule", rule,
	)
	return id, nil
}

// ListTemplates returns the current user's workout templates.
func (s *Service) ListTemplates(ctx context.Context) ([]model.WorkoutTemplate, error) {
	userID, ok := s.auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	templates, err := s.store.FetchTemplates(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "fetch templates", Err: err}
	}
	return templates, nil
}

// ListInstances returns the current user's instances that may have
// occurrences inside rng.
func (s *Service) ListInstances(ctx context.Context, rng model.DateRange) ([]model.WorkoutInstance, error) {
	userID, ok := s.auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	instances, err := s.store.FetchInstances(ctx, userID, rng)
	if err != nil {
		return nil, &StorageError{Op: "fetch instances", Err: err}
	}
	return instances, nil
}
