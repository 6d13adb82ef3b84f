package calendar

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "workoutcal/internal/log"
	"workoutcal/internal/model"
	"workoutcal/internal/observability"
	"workoutcal/internal/recurrence"
)

const (
	localTimestampFormat = "20060102T150405"

	// zoneHorizon bounds how far past the last occurrence VTIMEZONE
	// transitions are listed.
	zoneHorizon  = 366 * 24 * time.Hour
	maxZoneYears = 50
)

// uidNamespace scopes the deterministic event UIDs of this service.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://workoutcal.local/instances"))

// ICSOptions describes the exported calendar.
type ICSOptions struct {
	Name     string
	Timezone string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// EventUID is the stable iCalendar UID of an instance. Re-exporting the
// same instance yields the same UID so subscribed clients update in place.
func EventUID(id model.InstanceID) string {
	return uuid.NewSHA1(uidNamespace, []byte(strconv.FormatInt(int64(id), 10))).String() + "@workoutcal"
}

// ICS renders instances as an iCalendar feed, one recurring VEVENT each.
// Instances whose rule does not parse are left out.
func ICS(instances []model.WorkoutInstance, templates []model.WorkoutTemplate, opts ICSOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	byID := make(map[model.TemplateID]model.WorkoutTemplate, len(templates))
	for _, tpl := range templates {
		byID[tpl.ID] = tpl
	}

	cal := ical.NewCalendarFor("workoutcal")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	type event struct {
		inst model.WorkoutInstance
		spec recurrence.Spec
	}
	events := make([]event, 0, len(instances))
	zones := make(map[string]*zoneSpan)
	var zoneOrder []string
	for _, inst := range instances {
		spec, err := recurrence.Parse(inst.Rule, inst.Start)
		if err != nil {
			observability.RecordRuleParseFailure()
			appLog.Error("ics: stored rule does not parse", err, "instance_id", int64(inst.ID))
			continue
		}
		events = append(events, event{inst: inst, spec: spec})

		loc := inst.Start.Location()
		if isUTC(loc) {
			continue
		}
		id := ZoneID(loc)
		last, ok := recurrence.Last(spec)
		if !ok {
			last = inst.Start
		}
		if z, ok := zones[id]; ok {
			z.widen(inst.Start, last)
			continue
		}
		zones[id] = &zoneSpan{loc: loc, from: inst.Start, to: last}
		zoneOrder = append(zoneOrder, id)
	}

	for _, id := range zoneOrder {
		addTimezone(cal, id, zones[id])
	}

	for _, e := range events {
		ev := cal.AddEvent(EventUID(e.inst.ID))
		ev.SetDtStampTime(now)
		setStart(ev, e.inst.Start)
		if tpl, ok := byID[e.inst.TemplateID]; ok {
			ev.SetSummary(tpl.Name)
			if tpl.Kind != "" {
				ev.AddCategory(tpl.Kind)
			}
		} else {
			ev.SetSummary("Workout")
		}
		ev.SetDescription(e.spec.Describe())
		ev.AddRrule(e.spec.RFC5545())
	}

	return cal.Serialize(ical.WithNewLineWindows)
}

// ZoneID is the TZID written for loc. time.Local is resolved to its IANA
// name from $TZ or /etc/localtime when possible.
func ZoneID(loc *time.Location) string {
	if loc != time.Local {
		return loc.String()
	}
	if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if target, err := filepath.EvalSymlinks("/etc/localtime"); err == nil {
		if _, name, ok := strings.Cut(target, "zoneinfo/"); ok {
			if _, err := time.LoadLocation(name); err == nil {
				return name
			}
		}
	}
	return loc.String()
}

func isUTC(loc *time.Location) bool {
	return loc == time.UTC || loc.String() == "UTC" || loc.String() == ""
}

// setStart writes DTSTART as local time with TZID so BYDAY matches the
// wall clock the user picked; UTC starts use the Z form.
func setStart(ev *ical.VEvent, t time.Time) {
	if isUTC(t.Location()) {
		ev.SetStartAt(t)
		return
	}
	ev.SetProperty(ical.ComponentPropertyDtStart, t.Format(localTimestampFormat), ical.WithTZID(ZoneID(t.Location())))
}

// zoneSpan is the stretch of time one zone's events cover.
type zoneSpan struct {
	loc      *time.Location
	from, to time.Time
}

func (z *zoneSpan) widen(from, to time.Time) {
	if from.Before(z.from) {
		z.from = from
	}
	if to.After(z.to) {
		z.to = to
	}
}

// addTimezone writes a VTIMEZONE for id listing the offset in force at the
// first event and every transition up to a year past the last one.
func addTimezone(cal *ical.Calendar, id string, z *zoneSpan) {
	tz := cal.AddTimezone(id)

	t := z.from.Add(-24 * time.Hour).In(z.loc)
	end := z.to.Add(zoneHorizon)
	if limit := t.AddDate(maxZoneYears, 0, 0); end.After(limit) {
		end = limit
	}

	name, offset := t.Zone()
	addObservance(tz, t.IsDST(), t.Format(localTimestampFormat), offset, offset, name)
	for {
		_, next := t.ZoneBounds()
		if next.IsZero() || !next.After(t) || next.After(end) {
			return
		}
		t = next.In(z.loc)
		name, to := t.Zone()
		onset := t.UTC().Add(time.Duration(offset) * time.Second)
		addObservance(tz, t.IsDST(), onset.Format(localTimestampFormat), offset, to, name)
		offset = to
	}
}

// addObservance appends a STANDARD or DAYLIGHT block. onset is the local
// time of the change in the offset before it.
func addObservance(tz *ical.VTimezone, dst bool, onset string, from, to int, name string) {
	var cb *ical.ComponentBase
	if dst {
		d := &ical.Daylight{}
		tz.Components = append(tz.Components, d)
		cb = &d.ComponentBase
	} else {
		cb = &tz.AddStandard().ComponentBase
	}
	cb.SetProperty(ical.ComponentPropertyDtStart, onset)
	cb.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), utcOffset(from))
	cb.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), utcOffset(to))
	if name != "" {
		cb.SetProperty(ical.ComponentProperty(ical.PropertyTzname), name)
	}
}

// utcOffset formats seconds east of UTC as an RFC 5545 UTC-OFFSET.
func utcOffset(sec int) string {
	sign := '+'
	if sec < 0 {
		sign = '-'
		sec = -sec
	}
	h, m, s := sec/3600, sec%3600/60, sec%60
	if s != 0 {
		return fmt.Sprintf("%c%02d%02d%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%c%02d%02d", sign, h, m)
}
