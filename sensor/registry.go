// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/schmidtw/imu-board/capability"
	"go.uber.org/multierr"
)

var (
	ErrNoFactory     = errors.New("no factory for capability")
	ErrUnknownHandle = errors.New("unknown handle")
)

// Factory builds the handle for one populated capability.  Returning a nil
// Sensor and no error means the capability has no sampled handle (storage).
type Factory func(capability.Capability) (Sensor, error)

// Result is the outcome of one handle's Init or Sample.
type Result struct {
	Role        capability.Capability
	Name        string
	Measurement Measurement
	Err         error
}

type handle struct {
	role   capability.Capability
	sensor Sensor
	ready  bool
	online bool
}

// Registry owns one handle per populated sensor.
type Registry struct {
	m       sync.Mutex
	clock   clock.Clock
	handles []*handle
}

// Option configures a Registry.
type Option interface {
	apply(*Registry)
}

// NewRegistry builds a handle for each capability in the set, in priority
// order.  Nothing touches hardware until Init.
func NewRegistry(caps capability.Set, factory Factory, opts ...Option) (*Registry, error) {
	if factory == nil {
		return nil, ErrNoFactory
	}

	r := Registry{
		clock: clock.New(),
	}

	for _, c := range caps.List() {
		s, err := factory(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		if s == nil {
			continue
		}
		r.handles = append(r.handles, &handle{role: c, sensor: s})
	}

	for _, opt := range opts {
		opt.apply(&r)
	}

	return &r, nil
}

// Init initializes every handle.  A handle that fails is left offline and its
// error is included in the combined result; the others are still initialized.
// What to do about a failure is up to the caller.
func (r *Registry) Init(ctx context.Context) ([]Result, error) {
	r.m.Lock()
	defer r.m.Unlock()

	results := make([]Result, 0, len(r.handles))

	var errs error
	for _, h := range r.handles {
		err := h.sensor.Init(ctx)
		h.ready = err == nil
		h.online = h.ready
		if err != nil {
			err = fmt.Errorf("%s (%s): %w", h.sensor.Name(), h.role, err)
			errs = multierr.Append(errs, err)
		}
		results = append(results, Result{
			Role: h.role,
			Name: h.sensor.Name(),
			Err:  err,
		})
	}

	return results, errs
}

// Round samples every online handle once, in priority order.  A failing handle
// never stops the round; its error is returned in its Result.
func (r *Registry) Round(ctx context.Context) []Result {
	r.m.Lock()
	defer r.m.Unlock()

	results := make([]Result, 0, len(r.handles))
	for _, h := range r.handles {
		if !h.online {
			continue
		}

		m, err := h.sensor.Sample(ctx)
		if err == nil && m.Time.IsZero() {
			m.Time = r.clock.Now()
		}
		results = append(results, Result{
			Role:        h.role,
			Name:        h.sensor.Name(),
			Measurement: m,
			Err:         err,
		})
	}

	return results
}

// SetOnline includes or excludes a handle from future rounds.  A handle that
// never initialized cannot be brought online.
func (r *Registry) SetOnline(role capability.Capability, online bool) error {
	r.m.Lock()
	defer r.m.Unlock()

	for _, h := range r.handles {
		if h.role != role {
			continue
		}
		if online && !h.ready {
			return fmt.Errorf("%s: %w", role, ErrNotInitialized)
		}
		h.online = online
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownHandle, role)
}

// Online returns the roles that are sampled each round.
func (r *Registry) Online() []capability.Capability {
	r.m.Lock()
	defer r.m.Unlock()

	var out []capability.Capability
	for _, h := range r.handles {
		if h.online {
			out = append(out, h.role)
		}
	}
	return out
}

// Roles returns every role with a handle, in sampling order.
func (r *Registry) Roles() []capability.Capability {
	r.m.Lock()
	defer r.m.Unlock()

	out := make([]capability.Capability, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h.role)
	}
	return out
}

// UseClock sets the clock used to timestamp measurements.  This is used for
// testing.
func UseClock(c clock.Clock) Option {
	return &clockOption{clk: c}
}

type clockOption struct {
	clk clock.Clock
}

func (c clockOption) apply(r *Registry) {
	r.clock = c.clk
}
