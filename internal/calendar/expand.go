// Package calendar turns stored workout instances into the calendar view:
// concrete occurrences in a display timezone, an iCalendar export, and a
// response cache in front of both.
package calendar

import (
	"errors"
	"sort"
	"time"

	appLog "workoutcal/internal/log"
	"workoutcal/internal/model"
	"workoutcal/internal/observability"
	"workoutcal/internal/recurrence"
)

const (
	defaultMaxOccurrencesPerInstance = 5000
)

// ExpandConfig controls how instances are expanded.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// Range is the inclusive window; both bounds are required.
	Range model.DateRange

	// MaxOccurrencesPerInstance caps a single instance's contribution. If
	// zero, defaultMaxOccurrencesPerInstance is used.
	MaxOccurrencesPerInstance int
}

// Result wraps the expanded occurrences and what had to be dropped.
type Result struct {
	Occurrences []model.Occurrence
	// TruncatedInstances hit MaxOccurrencesPerInstance.
	TruncatedInstances []model.InstanceID
	// SkippedInstances carry a rule that no longer parses.
	SkippedInstances []model.InstanceID
}

// ExpandInstances expands every instance over cfg.Range and returns the
// occurrences sorted by start. Template name and kind are attached when
// the template is among templates. An instance whose rule fails to parse is
// logged and skipped; the rest of the calendar still renders.
func ExpandInstances(instances []model.WorkoutInstance, templates []model.WorkoutTemplate, cfg ExpandConfig) (Result, error) {
	result := Result{Occurrences: make([]model.Occurrence, 0)}

	if cfg.Range.Start.IsZero() || cfg.Range.End.IsZero() {
		return result, errors.New("expand: range needs both bounds")
	}
	if cfg.Range.End.Before(cfg.Range.Start) {
		return result, errors.New("expand: range end is before range start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerInstance <= 0 {
		cfg.MaxOccurrencesPerInstance = defaultMaxOccurrencesPerInstance
	}

	byID := make(map[model.TemplateID]model.WorkoutTemplate, len(templates))
	for _, tpl := range templates {
		byID[tpl.ID] = tpl
	}

	for _, inst := range instances {
		spec, err := recurrence.Parse(inst.Rule, inst.Start)
		if err != nil {
			observability.RecordRuleParseFailure()
			appLog.Error("expand: stored rule does not parse", err,
				"instance_id", int64(inst.ID),
				"rule", inst.Rule,
			)
			result.SkippedInstances = append(result.SkippedInstances, inst.ID)
			continue
		}

		times := recurrence.Expand(spec, cfg.Range.Start, cfg.Range.End)
		if len(times) > cfg.MaxOccurrencesPerInstance {
			times = times[:cfg.MaxOccurrencesPerInstance]
			result.TruncatedInstances = append(result.TruncatedInstances, inst.ID)
			observability.RecordTruncated()
			appLog.Error("expand: truncated occurrences for instance due to cap",
				errors.New("max occurrences reached"),
				"instance_id", int64(inst.ID),
				"cap", cfg.MaxOccurrencesPerInstance,
			)
		}

		tpl := byID[inst.TemplateID]
		for _, t := range times {
			result.Occurrences = append(result.Occurrences, makeOccurrence(inst, tpl, t, cfg.DisplayLocation))
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		a, b := result.Occurrences[i], result.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.InstanceID < b.InstanceID
	})

	appLog.Debug("expand completed",
		"instances", len(instances),
		"occurrences", len(result.Occurrences),
	)
	return result, nil
}

func makeOccurrence(inst model.WorkoutInstance, tpl model.WorkoutTemplate, start time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	return model.Occurrence{
		InstanceID:   inst.ID,
		TemplateID:   inst.TemplateID,
		TemplateName: tpl.Name,
		Kind:         tpl.Kind,
		// InstanceKey: use start time in RFC3339 as a stable per-occurrence key.
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Start:       startLocal,
	}
}
