package reminder

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/robfig/cron/v3"
)

// Config controls one Engine.
type Config struct {
	Tick        time.Duration
	Location    *time.Location
	CallTimeout time.Duration
	// ClaimTTL bounds how long a Claimer holds a key.
	ClaimTTL time.Duration
	// Defaults apply to users with push subscriptions but no stored preference.
	DefaultTaskLead    int
	DefaultApptOffsets []int
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = 10 * time.Second
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 24 * time.Hour
	}
	return c
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithClaimer closes the race between overlapping ticks. Without one, two
// ticks that overlap may both dispatch the same reminder.
func WithClaimer(c Claimer) Option {
	return func(e *Engine) { e.claimer = c }
}

type job struct {
	name  string
	every time.Duration
	fn    func(context.Context)
}

// Engine periodically scans every user's agenda and pushes reminders whose
// trigger falls in the current tick window.
type Engine struct {
	store      Store
	ledger     *Ledger
	dispatcher Dispatcher
	claimer    Claimer
	scanners   []Scanner
	now        func() time.Time
	cfg        Config
	logger     *slog.Logger

	mu        sync.RWMutex
	cron      *cron.Cron
	tickEntry cron.EntryID
	cancel    context.CancelFunc
	runCtx    context.Context
	jobs      []job
	listeners []func(Notification, Candidate)

	lastStart    time.Time
	lastDuration time.Duration
	lastSent     int
	ticks        int64
}

func New(store Store, dispatcher Dispatcher, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	env := scanEnv{store: store, loc: cfg.Location, tick: cfg.Tick, logger: logger}
	e := &Engine{
		store:      store,
		ledger:     NewLedger(store),
		dispatcher: dispatcher,
		scanners: []Scanner{
			AppointmentScanner{env},
			TaskScanner{env},
			RoutineScanner{env},
		},
		now:    time.Now,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnSent registers fn to be called after each successful dispatch.
func (e *Engine) OnSent(fn func(Notification, Candidate)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Every runs fn on a fixed interval alongside the tick. Jobs added after
// Start are scheduled immediately.
func (e *Engine) Every(every time.Duration, name string, fn func(context.Context)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j := job{name: name, every: every, fn: fn}
	e.jobs = append(e.jobs, j)
	if e.cron != nil {
		e.schedule(j)
	}
}

// schedule must be called with mu held and cron set.
func (e *Engine) schedule(j job) {
	ctx := e.runCtx
	e.cron.Schedule(cron.Every(j.every), cron.FuncJob(func() {
		e.logger.Debug("reminder engine: running job", "job", j.name)
		j.fn(ctx)
	}))
}

// Start schedules the tick and the heartbeat. Overlapping ticks are allowed.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		return errors.New("reminder engine already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.runCtx = ctx

	cronLog := cron.PrintfLogger(slog.NewLogLogger(e.logger.Handler(), slog.LevelError))
	e.cron = cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cronLog)))
	e.tickEntry = e.cron.Schedule(cron.Every(e.cfg.Tick), cron.FuncJob(func() { e.Tick(ctx) }))
	e.cron.Schedule(cron.Every(time.Minute), cron.FuncJob(e.heartbeat))
	for _, j := range e.jobs {
		e.schedule(j)
	}
	e.cron.Start()

	e.logger.Info("reminder engine started", "tick", e.cfg.Tick, "location", e.cfg.Location.String())
	return nil
}

// Stop halts scheduling and waits for running jobs to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	c, cancel := e.cron, e.cancel
	e.cron, e.cancel = nil, nil
	e.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	e.logger.Info("reminder engine stopped")
}

func (e *Engine) heartbeat() {
	e.mu.RLock()
	ticks, last := e.ticks, e.lastStart
	e.mu.RUnlock()
	e.logger.Info("reminder engine: alive", "ticks", ticks, "last_tick", last)
}

// Status is a snapshot for the debug endpoint.
type Status struct {
	Running            bool       `json:"running"`
	IntervalSec        float64    `json:"interval_sec"`
	NextRun            *time.Time `json:"next_run"`
	PrevRun            *time.Time `json:"prev_run"`
	LastTickStarted    *time.Time `json:"last_tick_started"`
	LastTickDurationMS int64      `json:"last_tick_duration_ms"`
	LastTickSent       int        `json:"last_tick_sent"`
	Ticks              int64      `json:"ticks"`
	Location           string     `json:"timezone"`
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		Running:            e.cron != nil,
		IntervalSec:        e.cfg.Tick.Seconds(),
		LastTickDurationMS: e.lastDuration.Milliseconds(),
		LastTickSent:       e.lastSent,
		Ticks:              e.ticks,
		Location:           e.cfg.Location.String(),
	}
	if e.cron != nil {
		entry := e.cron.Entry(e.tickEntry)
		st.NextRun = timePtr(entry.Next)
		st.PrevRun = timePtr(entry.Prev)
	}
	st.LastTickStarted = timePtr(e.lastStart)
	return st
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Tick runs one evaluation over every user. Errors are logged and contained
// to the user or entity they occur in.
func (e *Engine) Tick(ctx context.Context) int {
	// Windows end on whole seconds so consecutive cron runs join up.
	started := e.now().UTC()
	now := started.Truncate(time.Second)
	e.mu.Lock()
	e.lastStart = now
	e.ticks++
	e.mu.Unlock()

	sent := 0
	for _, prefs := range e.users(ctx) {
		if ctx.Err() != nil {
			break
		}
		sent += e.runUser(ctx, prefs, now)
	}

	elapsed := e.now().UTC().Sub(started)
	e.mu.Lock()
	e.lastDuration = elapsed
	e.lastSent = sent
	e.mu.Unlock()

	if sent > 0 {
		e.logger.Info("reminder tick complete", "sent", sent, "duration", elapsed)
	} else {
		e.logger.Debug("reminder tick complete", "sent", 0, "duration", elapsed)
	}
	return sent
}

// users returns stored preferences followed by defaults for subscribed users
// without a preference row.
func (e *Engine) users(ctx context.Context) []model.ReminderPreference {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	prefs, err := e.store.ListPreferences(callCtx)
	cancel()
	if err != nil {
		e.logger.Warn("reminder: list preferences failed, using defaults", "error", err)
		prefs = nil
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	subscribed, err := e.store.ListSubscribedUsers(callCtx)
	cancel()
	if err != nil {
		e.logger.Warn("reminder: list subscribed users failed", "error", err)
	}

	seen := make(map[string]bool, len(prefs))
	out := make([]model.ReminderPreference, 0, len(prefs)+len(subscribed))
	for _, p := range prefs {
		if p.OwnerID == "" || seen[p.OwnerID] {
			continue
		}
		seen[p.OwnerID] = true
		out = append(out, p)
	}
	for _, id := range subscribed {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, e.defaults(id))
	}
	return out
}

func (e *Engine) defaults(owner string) model.ReminderPreference {
	offsets := make([]int, len(e.cfg.DefaultApptOffsets))
	copy(offsets, e.cfg.DefaultApptOffsets)
	return model.ReminderPreference{
		OwnerID:            owner,
		TasksLeadMinutes:   e.cfg.DefaultTaskLead,
		AppointmentOffsets: offsets,
	}
}

func (e *Engine) runUser(ctx context.Context, prefs model.ReminderPreference, now time.Time) (sent int) {
	owner := prefs.OwnerID
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("reminder: panic while processing user",
				"user", owner, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	for _, sc := range e.scanners {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		cands, err := sc.Scan(callCtx, owner, prefs, now)
		cancel()
		if err != nil {
			e.logger.Warn("reminder: scan failed", "user", owner, "kind", sc.Kind(), "error", err)
			continue
		}
		for _, c := range cands {
			if e.deliver(ctx, owner, c) {
				sent++
			}
		}
	}
	return sent
}

// deliver dedups, dispatches and records one candidate. The sent-log row is
// written even when dispatch fails so a reminder is pushed at most once.
func (e *Engine) deliver(ctx context.Context, owner string, c Candidate) bool {
	key := c.key(owner)
	log := e.logger.With("user", owner, "kind", c.Kind, "entity_id", c.EntityID, "offset", c.Offset)

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	ok, err := e.ledger.ShouldSend(callCtx, key)
	cancel()
	if err != nil {
		log.Warn("reminder: sent-log check failed, skipping", "error", err)
		return false
	}
	if !ok {
		return false
	}

	if e.claimer != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		claimed, err := e.claimer.Claim(callCtx, key, e.cfg.ClaimTTL)
		cancel()
		if err != nil {
			log.Warn("reminder: claim failed, sending unclaimed", "error", err)
		} else if !claimed {
			log.Debug("reminder: already claimed by another tick")
			return false
		}
	}

	n := Notification{Owner: owner, Title: c.Title, Body: c.Body, URL: c.URL}
	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	dispatchErr := e.dispatcher.Dispatch(callCtx, n)
	cancel()
	if dispatchErr != nil {
		log.Warn("reminder: dispatch failed", "error", dispatchErr)
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	if err := e.ledger.MarkSent(callCtx, key); err != nil {
		log.Warn("reminder: mark sent failed", "error", err)
	}
	cancel()

	if dispatchErr != nil {
		return false
	}
	log.Info("reminder sent", "trigger", c.Trigger)

	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()
	for _, fn := range listeners {
		fn(n, c)
	}
	return true
}
