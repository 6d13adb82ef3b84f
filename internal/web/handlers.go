package web

import (
	"encoding/json"
	"net/http"
	"time"

	appLog "workoutcal/internal/log"
	"workoutcal/internal/model"
	"workoutcal/internal/recurrence"
)

const (
	defaultPreviewLimit = 10
	maxPreviewLimit     = 366
	maxCalendarDays     = 366
	maxBodyBytes        = 64 << 10
)

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.svc.ListTemplates(r.Context())
	if err != nil {
		writeServiceError(w, err, "could not load templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// instanceDTO is a JSON-friendly view of a stored schedule.
type instanceDTO struct {
	ID          model.InstanceID `json:"id"`
	TemplateID  model.TemplateID `json:"template_id"`
	Start       time.Time        `json:"start"`
	Rule        string           `json:"rule"`
	Description string           `json:"description,omitempty"`
	Ends        *time.Time       `json:"ends,omitempty"`
}

// handleListInstances returns stored schedules.
//
// GET /api/instances?from=2024-03-01&to=2024-03-31
//   - from/to: optional; instances starting after to are left out. from is
//     accepted for symmetry with the calendar but instances are not cut by
//     it, since a series that started earlier may still run.
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var rng model.DateRange
	if v := q.Get("from"); v != "" {
		t, ok := s.builder.ParseDate(v)
		if !ok {
			writeJSON(w, http.StatusUnprocessableEntity, errResp{Error: "from is not a date", Field: "from"})
			return
		}
		rng.Start = t
	}
	if v := q.Get("to"); v != "" {
		t, ok := s.builder.ParseDate(v)
		if !ok {
			writeJSON(w, http.StatusUnprocessableEntity, errResp{Error: "to is not a date", Field: "to"})
			return
		}
		rng.End = t
	}

	instances, err := s.svc.ListInstances(r.Context(), rng)
	if err != nil {
		writeServiceError(w, err, "could not load schedule")
		return
	}

	out := make([]instanceDTO, 0, len(instances))
	for _, inst := range instances {
		dto := instanceDTO{ID: inst.ID, TemplateID: inst.TemplateID, Start: inst.Start, Rule: inst.Rule}
		if spec, err := recurrence.Parse(inst.Rule, inst.Start); err == nil {
			dto.Description = spec.Describe()
			if last, ok := recurrence.Last(spec); ok {
				dto.Ends = &last
			}
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// commitRequest is the "add workout" form submission.
type commitRequest struct {
	TemplateID model.TemplateID  `json:"template_id"`
	Start      string            `json:"start"`
	Params     recurrence.Params `json:"params"`
}

type commitResponse struct {
	ID          model.InstanceID `json:"id"`
	Rule        string           `json:"rule"`
	Description string           `json:"description"`
}

// handleCommit builds a schedule from the submitted form and stores it.
// The top-level start and params.start may each be omitted; the other
// one is used.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TemplateID <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errResp{Error: "template is required", Field: "template_id"})
		return
	}
	switch {
	case req.Params.Start == "":
		req.Params.Start = req.Start
	case req.Start == "":
		req.Start = req.Params.Start
	}

	spec, err := s.builder.Build(req.Params)
	if err != nil {
		writeServiceError(w, err, "could not save")
		return
	}
	start, ok := s.builder.ParseDate(req.Start)
	if !ok {
		writeServiceError(w, &recurrence.ValidationError{Field: "start", Err: recurrence.ErrMissingStart}, "could not save")
		return
	}

	id, err := s.svc.Commit(r.Context(), req.TemplateID, start, spec)
	if err != nil {
		writeServiceError(w, err, "could not save")
		return
	}
	s.feed.InvalidateCurrent(r.Context())

	writeJSON(w, http.StatusCreated, commitResponse{
		ID:          id,
		Rule:        recurrence.Serialize(spec),
		Description: spec.Describe(),
	})
}

type previewRequest struct {
	recurrence.Params
	Limit int `json:"limit"`
}

type previewResponse struct {
	Rule        string      `json:"rule"`
	RFC5545     string      `json:"rfc5545"`
	Description string      `json:"description"`
	Unit        string      `json:"unit"`
	Occurrences []time.Time `json:"occurrences"`
	Total       int         `json:"total"`
	Last        *time.Time  `json:"last,omitempty"`
}

// handlePreview shows what a rule would produce before it is saved: the
// text that would be stored and the first occurrences.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	if limit > maxPreviewLimit {
		limit = maxPreviewLimit
	}

	spec, err := s.builder.Build(req.Params)
	if err != nil {
		writeServiceError(w, err, "could not preview")
		return
	}

	resp := previewResponse{
		Rule:        recurrence.Serialize(spec),
		RFC5545:     spec.RFC5545(),
		Description: spec.Describe(),
		Unit:        spec.Frequency().Unit(),
		Occurrences: recurrence.First(spec, limit),
	}
	all := recurrence.All(spec)
	resp.Total = len(all)
	if len(all) > 0 {
		resp.Last = &all[len(all)-1]
	}
	writeJSON(w, http.StatusOK, resp)
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	Occurrences        []occurrenceDTO    `json:"occurrences"`
	TruncatedInstances []model.InstanceID `json:"truncated_instances,omitempty"`
	SkippedInstances   []model.InstanceID `json:"skipped_instances,omitempty"`
	RangeStart         time.Time          `json:"range_start"`
	RangeEnd           time.Time          `json:"range_end"`
	DisplayTimeZone    string             `json:"display_timezone"`
	WeekStart          string             `json:"week_start"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	InstanceID   model.InstanceID `json:"instance_id"`
	TemplateID   model.TemplateID `json:"template_id"`
	TemplateName string           `json:"template_name"`
	Kind         string           `json:"kind"`
	InstanceKey  string           `json:"instance_key"`
	Start        time.Time        `json:"start"`
}

// handleCalendar returns expanded occurrences of the user's schedules
// within a requested time window.
//
// GET /api/calendar?from=2024-03-04&days=28&backfill=1
//   - from:     first day shown; defaults to the start of the current week
//   - days:     how many days to show (default horizon_days)
//   - backfill: days before from to include (default 0)
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.feed.Location()

	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	if days > maxCalendarDays {
		days = maxCalendarDays
	}
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	var first time.Time
	if v := q.Get("from"); v != "" {
		t, ok := s.builder.ParseDate(v)
		if !ok {
			writeJSON(w, http.StatusUnprocessableEntity, errResp{Error: "from is not a date", Field: "from"})
			return
		}
		first = startOfDay(t)
	} else {
		first = startOfWeek(s.now().In(loc), s.cfg.FirstWeekday())
	}

	rangeStart := first.AddDate(0, 0, -backfill)
	rangeEnd := first.AddDate(0, 0, days).Add(-time.Nanosecond)

	appLog.Debug("api calendar request",
		"days", days,
		"backfill", backfill,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
	)

	res, err := s.feed.Occurrences(r.Context(), model.DateRange{Start: rangeStart, End: rangeEnd})
	if err != nil {
		writeServiceError(w, err, "could not load schedule")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			InstanceID:   occ.InstanceID,
			TemplateID:   occ.TemplateID,
			TemplateName: occ.TemplateName,
			Kind:         occ.Kind,
			InstanceKey:  occ.InstanceKey,
			Start:        occ.Start,
		})
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Occurrences:        dtos,
		TruncatedInstances: res.TruncatedInstances,
		SkippedInstances:   res.SkippedInstances,
		RangeStart:         rangeStart,
		RangeEnd:           rangeEnd,
		DisplayTimeZone:    loc.String(),
		WeekStart:          s.cfg.WeekStart,
	})
}

func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	body, err := s.feed.ICS(r.Context())
	if err != nil {
		writeServiceError(w, err, "could not load schedule")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="workouts.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time, first time.Weekday) time.Time {
	back := (int(t.Weekday()) - int(first) + 7) % 7
	return startOfDay(t).AddDate(0, 0, -back)
}
