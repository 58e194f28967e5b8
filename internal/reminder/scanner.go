package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

// Kind names an entity kind in the sent-log.
type Kind string

const (
	KindTask        Kind = "task"
	KindRoutine     Kind = "routine"
	KindAppointment Kind = "appointment"
)

// Candidate is an entity whose trigger instant lies in the current window.
type Candidate struct {
	Kind     Kind
	EntityID string
	Title    string
	Body     string
	URL      string
	Trigger  time.Time
	Offset   int
}

func (c Candidate) key(owner string) model.SentKey {
	return model.SentKey{OwnerID: owner, Kind: string(c.Kind), EntityID: c.EntityID, Offset: c.Offset}
}

// Scanner produces the candidates of one kind for one user.
type Scanner interface {
	Kind() Kind
	Scan(ctx context.Context, owner string, prefs model.ReminderPreference, now time.Time) ([]Candidate, error)
}

// scanEnv is shared by the three scanners.
type scanEnv struct {
	store  Store
	loc    *time.Location
	tick   time.Duration
	logger *slog.Logger
}

func (e scanEnv) today(now time.Time) Date {
	return DateOf(now.In(e.loc))
}

// eventAt parses a row's date and start time. ok is false when either is
// missing or malformed; the row is then skipped.
func (e scanEnv) eventAt(kind Kind, id int64, date Date, clock string) (time.Time, bool) {
	if strings.TrimSpace(clock) == "" {
		e.logger.Debug("reminder: skipping row without start time", "kind", kind, "id", id)
		return time.Time{}, false
	}
	c, err := ParseClock(clock)
	if err != nil {
		e.logger.Debug("reminder: skipping row with bad start time", "kind", kind, "id", id, "error", err)
		return time.Time{}, false
	}
	return EventInstant(date, c, e.loc), true
}

func (e scanEnv) parseDate(kind Kind, id int64, s string) (Date, bool) {
	if strings.TrimSpace(s) == "" {
		e.logger.Debug("reminder: skipping row without date", "kind", kind, "id", id)
		return Date{}, false
	}
	d, err := ParseDate(s)
	if err != nil {
		e.logger.Debug("reminder: skipping row with bad date", "kind", kind, "id", id, "error", err)
		return Date{}, false
	}
	return d, true
}

// firstMatch returns the first offset whose target falls in w.
func firstMatch(event time.Time, offsets []int, w Window) (int, time.Time, bool) {
	for _, off := range offsets {
		target := Target(event, off)
		if w.Contains(target) {
			return off, target, true
		}
	}
	return 0, time.Time{}, false
}

func entityID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func titleOr(desc, fallback string) string {
	if d := strings.TrimSpace(desc); d != "" {
		return d
	}
	return fallback
}

type TaskScanner struct{ scanEnv }

func (s TaskScanner) Kind() Kind { return KindTask }

func (s TaskScanner) Scan(ctx context.Context, owner string, prefs model.ReminderPreference, now time.Time) ([]Candidate, error) {
	today := s.today(now)
	tasks, err := s.store.DueTasks(ctx, owner, today.AddDays(-1).String(), today.AddDays(1).String())
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}

	offset := LeadOffset(prefs.TasksLeadMinutes)
	w := NewWindow(now, s.tick)
	var out []Candidate
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		d, ok := s.parseDate(KindTask, t.ID, t.DueDate)
		if !ok {
			continue
		}
		event, ok := s.eventAt(KindTask, t.ID, d, t.StartTime)
		if !ok {
			continue
		}
		target := Target(event, offset)
		if !w.Contains(target) {
			continue
		}
		out = append(out, Candidate{
			Kind:     KindTask,
			EntityID: entityID(t.ID),
			Title:    "✅ " + titleOr(t.Description, "Task"),
			Body:     "Task reminder",
			URL:      "/",
			Trigger:  target,
			Offset:   offset,
		})
	}
	return out, nil
}

type RoutineScanner struct{ scanEnv }

func (s RoutineScanner) Kind() Kind { return KindRoutine }

func (s RoutineScanner) Scan(ctx context.Context, owner string, prefs model.ReminderPreference, now time.Time) ([]Candidate, error) {
	if len(prefs.AppointmentOffsets) == 0 {
		return nil, nil
	}
	offsets := make([]int, len(prefs.AppointmentOffsets))
	for i, o := range prefs.AppointmentOffsets {
		offsets[i] = LeadOffset(o)
	}

	routines, err := s.store.ActiveRoutines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("active routines: %w", err)
	}

	today := s.today(now)
	w := NewWindow(now, s.tick)
	var out []Candidate
	for _, r := range routines {
		if !r.Active || !s.runsOn(r, today) {
			continue
		}
		event, ok := s.eventAt(KindRoutine, r.ID, today, r.StartTime)
		if !ok {
			continue
		}
		off, target, ok := firstMatch(event, offsets, w)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Kind:     KindRoutine,
			EntityID: entityID(r.ID),
			Title:    "🔁 " + titleOr(r.Description, "Routine"),
			Body:     "Routine reminder",
			URL:      "/",
			Trigger:  target,
			Offset:   off,
		})
	}
	return out, nil
}

// runsOn applies the date range and weekday filters. Unparsable bounds are
// ignored rather than excluding the routine.
func (s RoutineScanner) runsOn(r model.Routine, today Date) bool {
	if r.EndDate != "" {
		if end, err := ParseDate(r.EndDate); err == nil && end.Before(today) {
			return false
		}
	}
	if r.StartDate != "" {
		if start, err := ParseDate(r.StartDate); err == nil && today.Before(start) {
			return false
		}
	}
	if len(r.DaysOfWeek) == 0 {
		return true
	}
	wd := today.Weekday()
	for _, d := range r.DaysOfWeek {
		if day, ok := ParseWeekday(d); ok && day == wd {
			return true
		}
	}
	return false
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
}

// ParseWeekday accepts English or Spanish day names in any case, or 0-6 with
// 0 as Sunday.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, false
		}
		return time.Weekday(n), true
	}
	wd, ok := weekdayNames[s]
	return wd, ok
}

type AppointmentScanner struct{ scanEnv }

func (s AppointmentScanner) Kind() Kind { return KindAppointment }

func (s AppointmentScanner) Scan(ctx context.Context, owner string, prefs model.ReminderPreference, now time.Time) ([]Candidate, error) {
	if len(prefs.AppointmentOffsets) == 0 {
		return nil, nil
	}

	today := s.today(now)
	appts, err := s.store.AppointmentsBetween(ctx, owner, today.AddDays(-1).String(), today.AddDays(1).String())
	if err != nil {
		return nil, fmt.Errorf("appointments between: %w", err)
	}

	w := NewWindow(now, s.tick)
	var out []Candidate
	for _, a := range appts {
		d, ok := s.parseDate(KindAppointment, a.ID, a.Date)
		if !ok {
			continue
		}
		event, ok := s.eventAt(KindAppointment, a.ID, d, a.StartTime)
		if !ok {
			continue
		}
		off, target, ok := firstMatch(event, prefs.AppointmentOffsets, w)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Kind:     KindAppointment,
			EntityID: entityID(a.ID),
			Title:    "⏰ " + titleOr(a.Description, "Appointment"),
			Body:     "Appointment reminder",
			URL:      "/",
			Trigger:  target,
			Offset:   off,
		})
	}
	return out, nil
}
