// Package scheduler drives a registered task at the wall-clock moments
// described by a schedule table.
//
// # Model
//
// The engine materializes one trigger per (day, time) pair and runs a single
// polling loop: once per poll interval (30s by default) it fires every due
// trigger, then sleeps. The task executes synchronously on the polling
// goroutine; a slow task therefore delays subsequent trigger checks, which
// the execution guard makes safe rather than merely slow.
//
// # Overlap
//
// At most one task execution runs at a time. A trigger that fires while the
// guard is held is skipped with a warning, never queued or retried. This
// prevents unbounded backlog when a task occasionally overruns its interval.
//
// # Lifecycle
//
// Idle → Running happens once when Run is called; Running → Stopped is
// terminal. Stop is idempotent and cooperative: it is observed between
// polling ticks and never interrupts an in-flight task.
package scheduler
