package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"stockdaily/internal/schedule"
	"stockdaily/pkg/logx"
)

// Task is the unit of work the engine fires. Errors (and panics) are caught
// and logged inside the guarded wrapper; they never reach the polling loop.
type Task func(ctx context.Context) error

// State tracks the engine lifecycle. Running → Stopped is terminal; the
// engine is not restartable after stopping.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// DefaultPollInterval matches the 30-second trigger check cadence of the
// original daemon.
const DefaultPollInterval = 30 * time.Second

// trigger is one registered (day, time) firing point. Owned exclusively by
// the engine; created at registration, never mutated except for next.
type trigger struct {
	day   schedule.Day
	at    schedule.Time
	sched cron.Schedule
	next  time.Time
}

// Engine owns a schedule table, a task callback, the execution guard and the
// run/stop flag.
type Engine struct {
	log   logx.Logger
	table schedule.Table

	parser   cron.Parser
	triggers []*trigger
	task     Task

	// guard is the only shared mutable resource: it is held for exactly the
	// duration of one task invocation and acquired with a non-blocking
	// attempt so the poll loop never waits on it.
	guard sync.Mutex

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once

	poll   time.Duration
	now    func() time.Time
	onTick func(next time.Time)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPollInterval overrides the trigger check cadence.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.poll = d
		}
	}
}

// WithTickHook installs a callback invoked once per polling tick with the
// next scheduled fire time (zero when no trigger is registered). Used by the
// daemon to kick the systemd watchdog.
func WithTickHook(fn func(next time.Time)) Option {
	return func(e *Engine) { e.onTick = fn }
}

// New parses the spec and constructs an idle engine. It fails with the
// parser's errors on a malformed spec; no triggers are registered yet.
//
// spec may be a schedule.Spec, a schedule.Table, or any raw shape accepted
// by schedule.Parse.
func New(spec any, log logx.Logger, opts ...Option) (*Engine, error) {
	var (
		tbl schedule.Table
		err error
	)
	switch v := spec.(type) {
	case schedule.Table:
		tbl = v
	case schedule.Spec:
		tbl, err = v.Table()
	default:
		tbl, err = schedule.Parse(spec)
	}
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	e := &Engine{
		log:    log,
		table:  tbl,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		stopCh: make(chan struct{}),
		poll:   DefaultPollInterval,
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// registration order is fixed so logs stay stable across runs.
var dayOrder = [8]schedule.Day{
	schedule.Every,
	schedule.Monday, schedule.Tuesday, schedule.Wednesday, schedule.Thursday,
	schedule.Friday, schedule.Saturday, schedule.Sunday,
}

// Register stores the task and materializes one trigger per (day, time)
// pair. A registration failure for one trigger is logged and does not abort
// the others. With runImmediately the guarded wrapper runs once
// synchronously before any trigger is due.
func (e *Engine) Register(ctx context.Context, task Task, runImmediately bool) {
	e.task = task
	now := e.now()

	for _, day := range dayOrder {
		for _, at := range e.table[day] {
			expr := cronExpr(day, at)
			sched, err := e.parser.Parse(expr)
			if err != nil {
				e.log.Error("trigger registration failed",
					logx.String("day", day.String()),
					logx.String("at", at.String()),
					logx.Err(err))
				continue
			}
			tr := &trigger{day: day, at: at, sched: sched, next: sched.Next(now)}
			e.triggers = append(e.triggers, tr)
			e.log.Info("trigger registered",
				logx.String("day", day.String()),
				logx.String("at", at.String()),
				logx.Time("next", tr.next))
		}
	}

	if runImmediately {
		e.log.Info("running task once before schedule")
		e.runGuarded(ctx)
	}
}

// cronExpr renders one (day, time) pair as a standard 5-field cron
// expression. Every maps the day-of-week field to "*"; weekdays use the cron
// Sunday=0 convention.
func cronExpr(day schedule.Day, at schedule.Time) string {
	if day == schedule.Every {
		return fmt.Sprintf("%d %d * * *", at.Minute, at.Hour)
	}
	return fmt.Sprintf("%d %d * * %d", at.Minute, at.Hour, int(day.Weekday()))
}

// Run blocks until Stop is called or ctx is cancelled. The Idle → Running
// transition happens once; calling Run again after stopping logs and
// returns immediately.
func (e *Engine) Run(ctx context.Context) {
	if e.stopRequested() {
		// Stop before Run: the loop never starts.
		e.state.Store(int32(StateStopped))
		e.log.Info("scheduler stopped before start")
		return
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		e.log.Warn("scheduler is not restartable", logx.String("state", e.State().String()))
		return
	}

	e.log.Info("scheduler running",
		logx.Int("triggers", len(e.triggers)),
		logx.Time("next_fire", e.nextFire()))

	tick := time.NewTicker(e.poll)
	defer tick.Stop()

loop:
	for {
		if ctx.Err() != nil || e.stopRequested() {
			break
		}

		now := e.now()
		e.firePending(ctx, now)
		e.maybeHeartbeat(now)
		if e.onTick != nil {
			e.onTick(e.nextFire())
		}

		select {
		case <-ctx.Done():
			break loop
		case <-e.stopCh:
			break loop
		case <-tick.C:
		}
	}

	e.state.Store(int32(StateStopped))
	e.log.Info("scheduler stopped")
}

// Stop requests loop exit. Idempotent; observed between polling ticks only,
// so an in-flight task always finishes first.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.log.Info("scheduler stop requested")
	})
}

// State reports the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// NextFire reports the earliest upcoming trigger time, or zero when nothing
// is registered.
func (e *Engine) NextFire() time.Time { return e.nextFire() }

func (e *Engine) stopRequested() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// firePending invokes the guarded wrapper for every due trigger and advances
// its next occurrence.
func (e *Engine) firePending(ctx context.Context, now time.Time) {
	for _, tr := range e.triggers {
		if tr.next.IsZero() || tr.next.After(now) {
			continue
		}
		e.log.Debug("trigger due",
			logx.String("day", tr.day.String()),
			logx.String("at", tr.at.String()))
		e.runGuarded(ctx)
		tr.next = tr.sched.Next(now)
	}
}

// maybeHeartbeat logs once per hour: on the first poll tick after the top of
// the hour it reports the minimum next occurrence across all triggers.
func (e *Engine) maybeHeartbeat(now time.Time) {
	window := int(e.poll / time.Second)
	if window <= 0 {
		return
	}
	if now.Minute() != 0 || now.Second() >= window {
		return
	}
	e.log.Info("scheduler heartbeat", logx.Time("next_fire", e.nextFire()))
}

func (e *Engine) nextFire() time.Time {
	var min time.Time
	for _, tr := range e.triggers {
		if tr.next.IsZero() {
			continue
		}
		if min.IsZero() || tr.next.Before(min) {
			min = tr.next
		}
	}
	return min
}

// runGuarded is the single-flight execution wrapper. It tries a non-blocking
// acquire of the guard: on failure the firing is skipped (not queued); on
// success the task runs with start/completion markers, errors and panics are
// absorbed, and the guard is released unconditionally.
func (e *Engine) runGuarded(ctx context.Context) {
	if !e.guard.TryLock() {
		e.log.Warn("task still running; skipping overlapping trigger")
		return
	}
	defer e.guard.Unlock()

	if e.task == nil {
		return
	}

	start := e.now()
	e.log.Info("task started", logx.Time("at", start))
	err := invoke(ctx, e.task)
	dur := e.now().Sub(start)
	if err != nil {
		e.log.Error("task failed", logx.Err(err), logx.Duration("dur", dur))
		return
	}
	e.log.Info("task completed", logx.Duration("dur", dur))
}

// invoke runs the task, converting a panic into an error so one bad run
// never takes the loop down.
func invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// Run constructs, registers and runs an engine in one call, blocking until
// the context is cancelled or the engine is stopped. It is the convenience
// entry point used by the daemon.
func Run(ctx context.Context, task Task, spec any, runImmediately bool, log logx.Logger, opts ...Option) (*Engine, error) {
	eng, err := New(spec, log, opts...)
	if err != nil {
		return nil, err
	}
	eng.Register(ctx, task, runImmediately)
	eng.Run(ctx)
	return eng, nil
}
