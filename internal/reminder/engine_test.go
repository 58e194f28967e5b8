package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/agenda/internal/model"
)

type fakeStore struct {
	mu           sync.Mutex
	prefs        []model.ReminderPreference
	prefsErr     error
	subscribed   []string
	tasks        map[string][]model.Task
	routines     map[string][]model.Routine
	appointments map[string][]model.Appointment
	sent         []model.SentKey
	wasSentErr   error
	recordErr    error
	panicFor     string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:        map[string][]model.Task{},
		routines:     map[string][]model.Routine{},
		appointments: map[string][]model.Appointment{},
	}
}

func (f *fakeStore) ListPreferences(ctx context.Context) ([]model.ReminderPreference, error) {
	return f.prefs, f.prefsErr
}

func (f *fakeStore) ListSubscribedUsers(ctx context.Context) ([]string, error) {
	return f.subscribed, nil
}

func (f *fakeStore) DueTasks(ctx context.Context, owner, from, to string) ([]model.Task, error) {
	if owner == f.panicFor {
		panic("boom")
	}
	var out []model.Task
	for _, t := range f.tasks[owner] {
		if t.DueDate >= from && t.DueDate <= to {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveRoutines(ctx context.Context, owner string) ([]model.Routine, error) {
	return f.routines[owner], nil
}

func (f *fakeStore) AppointmentsBetween(ctx context.Context, owner, from, to string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appointments[owner] {
		if a.Date >= from && a.Date <= to {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) WasSent(ctx context.Context, key model.SentKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wasSentErr != nil {
		return false, f.wasSentErr
	}
	for _, k := range f.sent {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecordSent(ctx context.Context, key model.SentKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.sent = append(f.sent, key)
	return nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	sent    []Notification
	failFor string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.Owner == d.failFor {
		return errors.New("transport down")
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(s Store, d Dispatcher, now *time.Time, opts ...Option) *Engine {
	cfg := Config{
		Tick:            10 * time.Second,
		Location:        time.UTC,
		DefaultTaskLead: model.DefaultTaskLeadMinutes,
	}
	opts = append(opts, WithClock(func() time.Time { return *now }))
	return New(s, d, cfg, discardLogger(), opts...)
}

func at(hour, min, sec int) time.Time {
	return time.Date(2024, 1, 1, hour, min, sec, 0, time.UTC)
}

func TestTaskReminderScenario(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15}}
	store.tasks["u1"] = []model.Task{{ID: 1, OwnerID: "u1", Description: "Standup", DueDate: "2024-01-01", StartTime: "09:00"}}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"target equals now", at(8, 45, 0), 1},
		{"before window", at(8, 44, 49), 0},
		{"target equals window start", at(8, 45, 10), 0},
		{"target inside window", at(8, 45, 9), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.sent = nil
			d := &recordingDispatcher{}
			now := tt.now
			e := newTestEngine(store, d, &now)
			if got := e.Tick(context.Background()); got != tt.want {
				t.Errorf("sent = %d, want %d", got, tt.want)
			}
			if d.count() != tt.want {
				t.Errorf("dispatched = %d, want %d", d.count(), tt.want)
			}
		})
	}
}

func TestPositiveTaskLeadIsCoerced(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: 15}}
	store.tasks["u1"] = []model.Task{{ID: 1, DueDate: "2024-01-01", StartTime: "09:00"}}
	d := &recordingDispatcher{}
	now := at(8, 45, 0)

	newTestEngine(store, d, &now).Tick(context.Background())
	if d.count() != 1 {
		t.Fatalf("dispatched = %d, want 1", d.count())
	}
	if store.sent[0].Offset != -15 {
		t.Errorf("offset = %d, want -15", store.sent[0].Offset)
	}
}

func TestMalformedTaskIsSkipped(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15}}
	store.tasks["u1"] = []model.Task{
		{ID: 1, DueDate: "2024-01-01", StartTime: "bad"},
		{ID: 2, DueDate: "2024-01-01", StartTime: ""},
		{ID: 3, DueDate: "2024-01-01", StartTime: "09:00"},
		{ID: 4, DueDate: "01/01/2024", StartTime: "09:00"},
	}
	d := &recordingDispatcher{}
	now := at(8, 45, 0)

	newTestEngine(store, d, &now).Tick(context.Background())
	if d.count() != 1 {
		t.Fatalf("dispatched = %d, want 1", d.count())
	}
	if store.sent[0].EntityID != "3" {
		t.Errorf("entity = %s, want 3", store.sent[0].EntityID)
	}
}

func TestRoutineOffsetsFireSeparately(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15, AppointmentOffsets: []int{-60, -30}}}
	store.routines["u1"] = []model.Routine{{ID: 7, Description: "Gym", StartTime: "18:00", Active: true}}
	d := &recordingDispatcher{}
	now := at(17, 0, 0)
	e := newTestEngine(store, d, &now)

	if got := e.Tick(context.Background()); got != 1 {
		t.Fatalf("first tick sent = %d, want 1", got)
	}
	if got := store.sent[0]; got.Kind != "routine" || got.Offset != -60 {
		t.Errorf("first key = %+v, want routine/-60", got)
	}

	if got := e.Tick(context.Background()); got != 0 {
		t.Errorf("repeat tick sent = %d, want 0", got)
	}

	now = at(17, 30, 0)
	if got := e.Tick(context.Background()); got != 1 {
		t.Fatalf("second offset sent = %d, want 1", got)
	}
	if got := store.sent[len(store.sent)-1]; got.Offset != -30 {
		t.Errorf("second key offset = %d, want -30", got.Offset)
	}
	if d.count() != 2 {
		t.Errorf("dispatched = %d, want 2", d.count())
	}
}

func TestSingleFirePerEntity(t *testing.T) {
	store := newFakeStore()
	// 30 is coerced to -30 for routines, so both offsets match the same tick.
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", AppointmentOffsets: []int{-30, 30, -30}}}
	store.routines["u1"] = []model.Routine{{ID: 1, StartTime: "18:00", Active: true}}
	store.appointments["u1"] = []model.Appointment{{ID: 2, Date: "2024-01-01", StartTime: "18:00"}}
	d := &recordingDispatcher{}
	now := at(17, 30, 0)

	newTestEngine(store, d, &now).Tick(context.Background())
	if d.count() != 2 {
		t.Errorf("dispatched = %d, want one per entity (2)", d.count())
	}
}

func TestRoutineFilters(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", AppointmentOffsets: []int{-30}}}
	// 2024-01-01 is a Monday.
	store.routines["u1"] = []model.Routine{
		{ID: 1, StartTime: "18:00", Active: true, DaysOfWeek: []string{"Lunes"}},
		{ID: 2, StartTime: "18:00", Active: true, DaysOfWeek: []string{"Martes", "2"}},
		{ID: 3, StartTime: "18:00", Active: true, EndDate: "2023-12-31"},
		{ID: 4, StartTime: "18:00", Active: true, StartDate: "2024-01-02"},
		{ID: 5, StartTime: "18:00", Active: true, EndDate: "2024-01-01", DaysOfWeek: []string{"1"}},
		{ID: 6, StartTime: "18:00", Active: false},
	}
	d := &recordingDispatcher{}
	now := at(17, 30, 0)

	newTestEngine(store, d, &now).Tick(context.Background())

	got := map[string]bool{}
	for _, k := range store.sent {
		got[k.EntityID] = true
	}
	if len(got) != 2 || !got["1"] || !got["5"] {
		t.Errorf("sent routines = %v, want 1 and 5", got)
	}
}

func TestAppointmentPositiveOffset(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", AppointmentOffsets: []int{10}}}
	store.appointments["u1"] = []model.Appointment{{ID: 9, Date: "2024-01-01", StartTime: "10:00"}}
	d := &recordingDispatcher{}
	now := at(10, 10, 0)

	newTestEngine(store, d, &now).Tick(context.Background())
	if d.count() != 1 {
		t.Fatalf("dispatched = %d, want 1", d.count())
	}
	if store.sent[0].Offset != 10 {
		t.Errorf("offset = %d, want 10", store.sent[0].Offset)
	}
}

func TestSubscribedUsersGetDefaults(t *testing.T) {
	store := newFakeStore()
	store.prefsErr = errors.New("prefs table unavailable")
	store.subscribed = []string{"u2"}
	store.tasks["u2"] = []model.Task{{ID: 1, DueDate: "2024-01-01", StartTime: "09:00"}}
	d := &recordingDispatcher{}
	now := at(8, 45, 0)

	newTestEngine(store, d, &now).Tick(context.Background())
	if d.count() != 1 {
		t.Errorf("dispatched = %d, want 1 with default -15 lead", d.count())
	}
}

func TestFailuresAreContainedPerUser(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{
		{OwnerID: "panics", TasksLeadMinutes: -15},
		{OwnerID: "fails", TasksLeadMinutes: -15},
		{OwnerID: "ok", TasksLeadMinutes: -15},
	}
	store.panicFor = "panics"
	for _, u := range []string{"panics", "fails", "ok"} {
		store.tasks[u] = []model.Task{{ID: 1, DueDate: "2024-01-01", StartTime: "09:00"}}
	}
	d := &recordingDispatcher{failFor: "fails"}
	now := at(8, 45, 0)

	sent := newTestEngine(store, d, &now).Tick(context.Background())
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if d.count() != 1 || d.sent[0].Owner != "ok" {
		t.Errorf("dispatched = %+v, want only ok", d.sent)
	}
	// A failed dispatch is still recorded so it is not retried every tick.
	var failedRecorded bool
	for _, k := range store.sent {
		if k.OwnerID == "fails" {
			failedRecorded = true
		}
	}
	if !failedRecorded {
		t.Error("expected failed dispatch to be marked sent")
	}
}

func TestSentLogReadErrorSkips(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15}}
	store.tasks["u1"] = []model.Task{{ID: 1, DueDate: "2024-01-01", StartTime: "09:00"}}
	store.wasSentErr = errors.New("timeout")
	d := &recordingDispatcher{}
	now := at(8, 45, 0)

	newTestEngine(store, d, &now).Tick(context.Background())
	if d.count() != 0 {
		t.Errorf("dispatched = %d, want 0", d.count())
	}
}

func TestSentLogWriteErrorStillCountsAsSent(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15}}
	store.tasks["u1"] = []model.Task{{ID: 1, DueDate: "2024-01-01", StartTime: "09:00"}}
	store.recordErr = errors.New("disk full")
	d := &recordingDispatcher{}
	now := at(8, 45, 0)
	e := newTestEngine(store, d, &now)

	var fired int
	e.OnSent(func(n Notification, c Candidate) { fired++ })

	if sent := e.Tick(context.Background()); sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if d.count() != 1 {
		t.Errorf("dispatched = %d, want 1", d.count())
	}
	if fired != 1 {
		t.Errorf("listener calls = %d, want 1", fired)
	}
	if st := e.Status(); st.LastTickSent != 1 {
		t.Errorf("status last tick sent = %d, want 1", st.LastTickSent)
	}
}

func TestTickWindowIsWholeSeconds(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15}}
	store.tasks["u1"] = []model.Task{{ID: 1, DueDate: "2024-01-01", StartTime: "09:00"}}
	d := &recordingDispatcher{}

	// Target is 08:45:00. A tick at 08:44:50.3 covers (08:44:40, 08:44:50]
	// and the next at 08:45:00.4 covers (08:44:50, 08:45:00].
	now := at(8, 44, 50).Add(300 * time.Millisecond)
	e := newTestEngine(store, d, &now)
	e.Tick(context.Background())
	if d.count() != 0 {
		t.Fatalf("dispatched early: %d", d.count())
	}
	now = at(8, 45, 0).Add(400 * time.Millisecond)
	e.Tick(context.Background())
	if d.count() != 1 {
		t.Errorf("dispatched = %d, want 1", d.count())
	}
	if st := e.Status(); st.LastTickStarted == nil || !st.LastTickStarted.Equal(at(8, 45, 0)) {
		t.Errorf("last tick started = %v, want window end %v", st.LastTickStarted, at(8, 45, 0))
	}
}

func TestLedgerIdempotence(t *testing.T) {
	l := NewLedger(newFakeStore())
	ctx := context.Background()
	key := model.SentKey{OwnerID: "u1", Kind: "task", EntityID: "1", Offset: -15}

	for i := 0; i < 2; i++ {
		ok, err := l.ShouldSend(ctx, key)
		if err != nil || !ok {
			t.Fatalf("check %d = %v, %v; want true", i, ok, err)
		}
	}
	if err := l.MarkSent(ctx, key); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	for i := 0; i < 2; i++ {
		ok, _ := l.ShouldSend(ctx, key)
		if ok {
			t.Errorf("check after mark %d = true, want false", i)
		}
	}
}

type fakeClaimer struct {
	claimed map[model.SentKey]bool
}

func (c *fakeClaimer) Claim(ctx context.Context, key model.SentKey, ttl time.Duration) (bool, error) {
	if c.claimed[key] {
		return false, nil
	}
	c.claimed[key] = true
	return true, nil
}

func TestClaimerBlocksOverlappingSend(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15}}
	store.tasks["u1"] = []model.Task{{ID: 1, DueDate: "2024-01-01", StartTime: "09:00"}}
	claimer := &fakeClaimer{claimed: map[model.SentKey]bool{
		{OwnerID: "u1", Kind: "task", EntityID: "1", Offset: -15}: true,
	}}
	d := &recordingDispatcher{}
	now := at(8, 45, 0)

	newTestEngine(store, d, &now, WithClaimer(claimer)).Tick(context.Background())
	if d.count() != 0 {
		t.Errorf("dispatched = %d, want 0 for a claimed key", d.count())
	}
}

func TestOnSentListener(t *testing.T) {
	store := newFakeStore()
	store.prefs = []model.ReminderPreference{{OwnerID: "u1", TasksLeadMinutes: -15}}
	store.tasks["u1"] = []model.Task{{ID: 1, Description: "Standup", DueDate: "2024-01-01", StartTime: "09:00"}}
	now := at(8, 45, 0)
	e := newTestEngine(store, &recordingDispatcher{}, &now)

	var got []Notification
	e.OnSent(func(n Notification, c Candidate) { got = append(got, n) })
	e.Tick(context.Background())

	if len(got) != 1 {
		t.Fatalf("listener calls = %d, want 1", len(got))
	}
	if got[0].Title != "✅ Standup" || got[0].URL != "/" {
		t.Errorf("notification = %+v", got[0])
	}
}

func TestStartStopStatus(t *testing.T) {
	now := at(8, 0, 0)
	e := newTestEngine(newFakeStore(), &recordingDispatcher{}, &now)

	if e.Status().Running {
		t.Error("expected not running before Start")
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(context.Background()); err == nil {
		t.Error("expected error on second Start")
	}

	st := e.Status()
	if !st.Running {
		t.Error("expected running")
	}
	if st.IntervalSec != 10 {
		t.Errorf("interval = %v, want 10", st.IntervalSec)
	}
	if st.NextRun == nil {
		t.Error("expected next run")
	}

	e.Stop()
	if e.Status().Running {
		t.Error("expected not running after Stop")
	}
	e.Stop()
}
