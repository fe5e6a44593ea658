// SPDX-FileCopyrightText: 2022 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package health keeps a sliding window of sample failures per sensor and
// decides when a sensor should stop being sampled.
package health

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/schmidtw/imu-board/capability"
	"github.com/schmidtw/imu-board/scheduler"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Config provides the health tracking configuration options.
type Config struct {
	// Window is how far back failures are counted.
	Window time.Duration

	// MaxFailures within Window takes a sensor offline.  Zero never takes a
	// sensor offline.
	MaxFailures int

	// MaxEventCount bounds the failures remembered per sensor.
	MaxEventCount int
}

type Option interface {
	apply(t *Tracker)
}

// Tracker counts failures per sensor role.
type Tracker struct {
	mutex         sync.Mutex
	clock         clock.Clock
	window        time.Duration
	maxFailures   int
	maxEventCount int
	events        map[capability.Capability]*list.List
	offline       map[capability.Capability]bool
	onOffline     func(capability.Capability, int)
}

// New makes a new tracker.  onOffline is called, at most once per role, when a
// role reaches MaxFailures within the window.
func New(cfg Config, onOffline func(capability.Capability, int), opts ...Option) (*Tracker, error) {
	if cfg.Window <= 0 {
		return nil, ErrInvalidParameter
	}
	if cfg.MaxFailures < 0 {
		return nil, ErrInvalidParameter
	}
	if cfg.MaxEventCount < 1 {
		cfg.MaxEventCount = 100
	}
	if cfg.MaxEventCount < cfg.MaxFailures {
		cfg.MaxEventCount = cfg.MaxFailures
	}
	if onOffline == nil {
		onOffline = func(capability.Capability, int) {}
	}

	t := Tracker{
		clock:         clock.New(),
		window:        cfg.Window,
		maxFailures:   cfg.MaxFailures,
		maxEventCount: cfg.MaxEventCount,
		events:        make(map[capability.Capability]*list.List),
		offline:       make(map[capability.Capability]bool),
		onOffline:     onOffline,
	}

	for _, opt := range opts {
		opt.apply(&t)
	}

	return &t, nil
}

// Failure records one failed sample for the role.
func (t *Tracker) Failure(role capability.Capability) {
	t.mutex.Lock()

	events, ok := t.events[role]
	if !ok {
		events = list.New()
		t.events[role] = events
	}

	events.PushFront(t.clock.Now())
	for events.Len() > t.maxEventCount {
		events.Remove(events.Back())
	}

	count := t.failures(role)
	trip := t.maxFailures > 0 && count >= t.maxFailures && !t.offline[role]
	if trip {
		t.offline[role] = true
	}
	t.mutex.Unlock()

	if trip {
		t.onOffline(role, count)
	}
}

// Failures returns the number of failures for the role within the window.
func (t *Tracker) Failures(role capability.Capability) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.failures(role)
}

func (t *Tracker) failures(role capability.Capability) int {
	events, ok := t.events[role]
	if !ok {
		return 0
	}

	until := t.clock.Now().Add(-1 * t.window)

	var count int
	for event := events.Front(); event != nil; event = event.Next() {
		when := event.Value.(time.Time)
		if until.Before(when) {
			count++
		}
	}
	return count
}

// Offline reports if the role was taken offline.
func (t *Tracker) Offline(role capability.Capability) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.offline[role]
}

// Report records the failures of a scheduling round.
func (t *Tracker) Report(round scheduler.Round) {
	for _, r := range round.Results {
		if r.Err != nil {
			t.Failure(r.Role)
		}
	}
}

// UseClock provides a way to set the clock used.  This is used for testing.
func UseClock(c clock.Clock) Option {
	return &clockOption{clk: c}
}

type clockOption struct {
	clk clock.Clock
}

func (c clockOption) apply(t *Tracker) {
	t.clock = c.clk
}
