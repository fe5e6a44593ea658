// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package scheduler drives one sampling round per tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schmidtw/imu-board/sensor"
	"go.uber.org/zap"
)

var (
	ErrTimerFault   = errors.New("timer fault")
	ErrNotStarted   = errors.New("scheduler not started")
	ErrInvalidInput = errors.New("invalid input")

	errAlreadyStarted = errors.New("already started")
)

// State is where the scheduler is in its life.
type State int

const (
	Uninitialized State = iota
	Armed
	Fault
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Armed:
		return "armed"
	case Fault:
		return "fault"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Waiter is the tick source.
type Waiter interface {
	Start(time.Duration) error
	Wait(context.Context, uint64) error
	Ticks() uint64
	Stop()
}

// Sampler samples every online sensor once.
type Sampler interface {
	Round(context.Context) []sensor.Result
}

// Round is what happened during one scheduling round.
type Round struct {
	Number  uint64
	Tick    uint64
	Overrun bool
	Results []sensor.Result
}

// Reporter receives every finished round.
type Reporter interface {
	Report(Round)
}

// Halter is implemented by reporters that want to know when the device enters
// safe halt.
type Halter interface {
	Halted(error)
}

// Config provides the scheduler configuration options.
type Config struct {
	// Period is the tick period.
	Period time.Duration

	// MaxRounds stops Run after this many rounds.  Zero runs until the
	// context is canceled.
	MaxRounds uint64
}

// Scheduler is a single consumer loop: Wait is the only place it blocks and
// nothing else runs in it while waiting.
type Scheduler struct {
	m         sync.Mutex
	cfg       Config
	waiter    Waiter
	sampler   Sampler
	reporters []Reporter
	logger    *zap.Logger
	state     State
	rounds    uint64
}

// New creates a scheduler.
func New(cfg Config, waiter Waiter, sampler Sampler, logger *zap.Logger, reporters ...Reporter) (*Scheduler, error) {
	if waiter == nil || sampler == nil {
		return nil, fmt.Errorf("%w: waiter and sampler are required", ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cfg:       cfg,
		waiter:    waiter,
		sampler:   sampler,
		reporters: reporters,
		logger:    logger,
	}, nil
}

// Start arms the tick source.  If the period cannot be programmed the
// scheduler enters Fault and never runs.
func (s *Scheduler) Start() error {
	s.m.Lock()
	defer s.m.Unlock()

	switch s.state {
	case Armed:
		return errAlreadyStarted
	case Fault:
		return ErrTimerFault
	}

	if err := s.waiter.Start(s.cfg.Period); err != nil {
		s.state = Fault
		s.logger.Error("tick source could not be armed",
			zap.Duration("period", s.cfg.Period),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrTimerFault, err)
	}

	s.state = Armed
	s.logger.Info("tick source armed", zap.Duration("period", s.cfg.Period))
	return nil
}

// Stop disarms the tick source.
func (s *Scheduler) Stop() {
	s.m.Lock()
	defer s.m.Unlock()

	if s.state == Armed {
		s.waiter.Stop()
		s.state = Uninitialized
	}
}

// State returns the present state.
func (s *Scheduler) State() State {
	s.m.Lock()
	defer s.m.Unlock()
	return s.state
}

// Rounds returns the number of completed rounds.
func (s *Scheduler) Rounds() uint64 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.rounds
}

// Run waits for each tick and then samples every sensor once, in order.
// Sensor failures are reported and never end the loop.  Run returns nil when
// the context is canceled or after MaxRounds rounds.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.State() != Armed {
		return ErrNotStarted
	}

	for n := uint64(1); s.cfg.MaxRounds == 0 || n <= s.cfg.MaxRounds; n++ {
		if err := s.waiter.Wait(ctx, 1); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		at := s.waiter.Ticks()
		results := s.sampler.Round(ctx)
		round := Round{
			Number:  n,
			Tick:    at,
			Overrun: s.waiter.Ticks() != at,
			Results: results,
		}

		s.report(round)
	}

	return nil
}

func (s *Scheduler) report(round Round) {
	s.m.Lock()
	s.rounds = round.Number
	s.m.Unlock()

	for _, r := range round.Results {
		if r.Err != nil {
			s.logger.Warn("sample failed",
				zap.String("sensor", r.Name),
				zap.Stringer("role", r.Role),
				zap.Uint64("round", round.Number),
				zap.Error(r.Err))
		}
	}
	if round.Overrun {
		s.logger.Warn("round overran the tick period",
			zap.Uint64("round", round.Number),
			zap.Uint64("tick", round.Tick))
	}

	for _, rep := range s.reporters {
		rep.Report(round)
	}
}

// Halt is the safe halt policy: the fault is reported once and then nothing
// else happens until the context is canceled.
func (s *Scheduler) Halt(ctx context.Context, cause error) {
	s.logger.Error("entering safe halt, no further sampling", zap.Error(cause))

	for _, rep := range s.reporters {
		if h, ok := rep.(Halter); ok {
			h.Halted(cause)
		}
	}

	<-ctx.Done()
}
