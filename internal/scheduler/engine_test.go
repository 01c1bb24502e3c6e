package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"stockdaily/internal/schedule"
	"stockdaily/pkg/logx"
)

func newTestEngine(t *testing.T, spec any, opts ...Option) *Engine {
	t.Helper()
	e, err := New(spec, logx.Nop(), opts...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return e
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	t.Parallel()
	if _, err := New(map[string][]string{"9": {"09:30"}}, logx.Nop()); err == nil {
		t.Fatal("expected error for day key out of range")
	}
	if _, err := New("24:00", logx.Nop()); err == nil {
		t.Fatal("expected error for malformed time")
	}
	if _, err := New(12.5, logx.Nop()); err == nil {
		t.Fatal("expected error for unsupported spec type")
	}
}

func TestRegisterMaterializesTriggers(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "1-5@09:30,13:30;6-7@10:00")
	e.Register(context.Background(), func(context.Context) error { return nil }, false)
	if got := len(e.triggers); got != 12 {
		t.Fatalf("trigger count = %d, want 12", got)
	}
	if e.NextFire().IsZero() {
		t.Fatal("next fire time should be computed at registration")
	}
}

func TestCronExpr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		day  schedule.Day
		at   schedule.Time
		want string
	}{
		{schedule.Every, schedule.Time{Hour: 9, Minute: 30}, "30 9 * * *"},
		{schedule.Monday, schedule.Time{Hour: 18, Minute: 0}, "0 18 * * 1"},
		{schedule.Saturday, schedule.Time{Hour: 10, Minute: 0}, "0 10 * * 6"},
		{schedule.Sunday, schedule.Time{Hour: 10, Minute: 0}, "0 10 * * 0"},
	}
	for _, tt := range tests {
		if got := cronExpr(tt.day, tt.at); got != tt.want {
			t.Fatalf("cronExpr(%s, %s) = %q, want %q", tt.day, tt.at, got, tt.want)
		}
	}
}

func TestRunImmediatelyInvokesOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	e := newTestEngine(t, "18:00")
	e.Register(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	}, true)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestOverlapSkip(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	e := newTestEngine(t, "18:00")
	e.Register(context.Background(), func(context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}, false)

	done := make(chan struct{})
	go func() {
		e.runGuarded(context.Background())
		close(done)
	}()
	<-started

	// Second firing while the guard is held must be skipped, not queued.
	e.runGuarded(context.Background())
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (overlapping trigger must be skipped)", got)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("guarded run did not finish")
	}
}

func TestGuardReleasedAfterError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	e := newTestEngine(t, "18:00")
	e.Register(context.Background(), func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("boom")
		}
		return nil
	}, false)

	e.runGuarded(context.Background())
	e.runGuarded(context.Background())
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2 (guard must be released after an error)", got)
	}
}

func TestGuardReleasedAfterPanic(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	e := newTestEngine(t, "18:00")
	e.Register(context.Background(), func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, false)

	e.runGuarded(context.Background())
	e.runGuarded(context.Background())
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2 (guard must be released after a panic)", got)
	}
}

func TestFirePendingAdvancesNext(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 9, 30, 5, 0, time.Local) // a Monday
	var calls atomic.Int32

	e := newTestEngine(t, "1@09:30")
	e.now = func() time.Time { return now }
	e.Register(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	}, false)

	// Force the trigger due, then fire.
	e.triggers[0].next = now.Add(-time.Second)
	e.firePending(context.Background(), now)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if !e.triggers[0].next.After(now) {
		t.Fatalf("next = %v, want after %v", e.triggers[0].next, now)
	}

	// Not due again on the next check.
	e.firePending(context.Background(), now)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want still 1", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "18:00", WithPollInterval(time.Millisecond))
	e.Stop()
	e.Stop()

	// Stop before Run: the loop never starts.
	e.Run(context.Background())
	if got := e.State(); got != StateStopped {
		t.Fatalf("state = %s, want stopped", got)
	}
}

func TestRunStopsOnStop(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "18:00", WithPollInterval(time.Millisecond))
	e.Register(context.Background(), func(context.Context) error { return nil }, false)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	e.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after Stop")
	}
	if got := e.State(); got != StateStopped {
		t.Fatalf("state = %s, want stopped", got)
	}

	// Terminal: a second Run returns immediately.
	e.Run(context.Background())
	if got := e.State(); got != StateStopped {
		t.Fatalf("state after re-Run = %s, want stopped", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "18:00", WithPollInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
	if got := e.State(); got != StateStopped {
		t.Fatalf("state = %s, want stopped", got)
	}
}

func TestTickHookReportsNextFire(t *testing.T) {
	t.Parallel()
	got := make(chan time.Time, 1)
	e := newTestEngine(t, "18:00",
		WithPollInterval(time.Millisecond),
		WithTickHook(func(next time.Time) {
			select {
			case got <- next:
			default:
			}
		}))
	e.Register(context.Background(), func(context.Context) error { return nil }, false)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	select {
	case next := <-got:
		if next.IsZero() {
			t.Error("tick hook reported zero next fire time")
		}
	case <-time.After(5 * time.Second):
		t.Error("tick hook never invoked")
	}
	e.Stop()
	<-done
}
