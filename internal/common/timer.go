// Package common provides shared timing helpers for the pipeline stages.
package common

import (
	"fmt"
	"log/slog"
	"time"
)

// Timer measures a named stage. A stage that runs once per region is timed by
// restarting the timer for every region; Total sums the stopped intervals.
type Timer struct {
	name    string
	start   time.Time
	running bool
	total   time.Duration
	laps    int
}

// NewTimer returns a running timer.
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now(), running: true}
}

// NewIdleTimer returns a timer that starts on the first Restart.
func NewIdleTimer(name string) *Timer {
	return &Timer{name: name}
}

// Restart begins a new interval. An interval still running is discarded.
func (t *Timer) Restart() {
	t.start = time.Now()
	t.running = true
}

// Stop ends the current interval, adds it to the total and returns it.
// Stopping an idle timer returns zero.
func (t *Timer) Stop() time.Duration {
	if !t.running {
		return 0
	}
	d := time.Since(t.start)
	t.running = false
	t.total += d
	t.laps++
	return d
}

// Total returns the sum of all stopped intervals.
func (t *Timer) Total() time.Duration { return t.total }

// Laps returns the number of stopped intervals.
func (t *Timer) Laps() int { return t.laps }

// Name returns the stage name.
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	if t.laps > 1 {
		return fmt.Sprintf("%s: %v (%d laps)", t.name, t.total, t.laps)
	}
	return fmt.Sprintf("%s: %v", t.name, t.total)
}

// LogValue implements slog.LogValuer.
func (t *Timer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("total", t.total),
		slog.Int("laps", t.laps),
	)
}
