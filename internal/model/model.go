package model

import "time"

// UserID identifies a dashboard account (users.id).
type UserID int64

// TemplateID identifies a row in workout_templates.
type TemplateID int64

// InstanceID identifies a row in workout_instances.
type InstanceID int64

// WorkoutTemplate is a reusable workout definition owned by one user. The
// schedule engine only ever refers to it by ID.
type WorkoutTemplate struct {
	ID     TemplateID `json:"id"`
	UserID UserID     `json:"user_id"`
	Name   string     `json:"name"`
	Kind   string     `json:"kind"`
}

// WorkoutInstance is a confirmed schedule: a template placed on the
// calendar from Start, repeating per Rule (serialized recurrence text).
// Instances are never edited; a changed schedule is a new instance.
type WorkoutInstance struct {
	ID         InstanceID `json:"id"`
	UserID     UserID     `json:"user_id"`
	TemplateID TemplateID `json:"template_id"`
	Start      time.Time  `json:"start"`
	Rule       string     `json:"rule"`
}

// DateRange is a closed time window [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Occurrence is one concrete calendar cell: an instance on a given date,
// in the display timezone.
type Occurrence struct {
	InstanceID   InstanceID
	TemplateID   TemplateID
	TemplateName string
	Kind         string

	// InstanceKey uniquely identifies this occurrence within its
	// instance, derived from the local start time.
	InstanceKey string

	Start time.Time
}
