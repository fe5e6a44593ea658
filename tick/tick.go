// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package tick provides the periodic tick the sampling loop waits on.  It
// models the board's SysTick: a 24 bit down counter clocked from the core
// clock, raising one interrupt per period.
package tick

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"periph.io/x/conn/v3/physic"
)

var (
	ErrPeriodUnachievable = errors.New("period unachievable")
	ErrNotArmed           = errors.New("timer not armed")
	ErrFault              = errors.New("timer faulted")
	ErrInvalidConfig      = errors.New("invalid timer configuration")

	errAlreadyStarted = errors.New("already started")
)

const (
	// The reload register is 24 bits and must be at least 1.
	reloadMin = 1
	reloadMax = 1<<24 - 1

	DefaultCoreClock = 168 * physic.MegaHertz
)

// State is where the timer is in its life.
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

// Config describes the counter hardware.
type Config struct {
	// CoreClock is the clock feeding the counter.  Defaults to 168MHz.
	CoreClock physic.Frequency

	// Prescaler divides the core clock; 1 or 8.  Defaults to 1.
	Prescaler int
}

// Option configures a Timer.
type Option interface {
	apply(*Timer)
}

// Timer owns the tick counter.  The counter is written only by the tick
// goroutine and read by Wait.
type Timer struct {
	m      sync.Mutex
	cfg    Config
	clock  clock.Clock
	state  State
	period time.Duration
	ticker *clock.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ticks  atomic.Uint64
	last   atomic.Uint64
	notify chan struct{}
}

// New creates a timer in the Uninitialized state.
func New(cfg Config, opts ...Option) (*Timer, error) {
	if cfg.CoreClock == 0 {
		cfg.CoreClock = DefaultCoreClock
	}
	if cfg.Prescaler == 0 {
		cfg.Prescaler = 1
	}
	if cfg.CoreClock < physic.Hertz {
		return nil, fmt.Errorf("%w: core clock %s", ErrInvalidConfig, cfg.CoreClock)
	}
	if cfg.Prescaler != 1 && cfg.Prescaler != 8 {
		return nil, fmt.Errorf("%w: prescaler %d", ErrInvalidConfig, cfg.Prescaler)
	}

	t := Timer{
		cfg:    cfg,
		clock:  clock.New(),
		notify: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt.apply(&t)
	}

	return &t, nil
}

// Reload returns the reload register value needed for the period, or
// ErrPeriodUnachievable if the counter cannot represent it.
func (t *Timer) Reload(period time.Duration) (uint32, error) {
	if period <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrPeriodUnachievable, period)
	}

	hz := uint64(t.cfg.CoreClock / physic.Hertz)
	hi, lo := bits.Mul64(uint64(period.Nanoseconds()), hz)
	div := uint64(t.cfg.Prescaler) * uint64(time.Second)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %s exceeds the counter range", ErrPeriodUnachievable, period)
	}

	counts := lo / div
	if counts < reloadMin+1 {
		return 0, fmt.Errorf("%w: %s is below the counter resolution", ErrPeriodUnachievable, period)
	}
	if counts-1 > reloadMax {
		return 0, fmt.Errorf("%w: %s exceeds the counter range", ErrPeriodUnachievable, period)
	}

	return uint32(counts - 1), nil
}

// Start programs the period and arms the timer with the tick count at zero.
// If the period cannot be programmed the timer enters Fault, which is
// terminal.
func (t *Timer) Start(period time.Duration) error {
	t.m.Lock()
	defer t.m.Unlock()

	switch t.state {
	case Armed:
		return errAlreadyStarted
	case Fault:
		return ErrFault
	}

	if _, err := t.Reload(period); err != nil {
		t.state = Fault
		return err
	}

	t.period = period
	t.ticks.Store(0)
	t.last.Store(0)
	t.ticker = t.clock.Ticker(period)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go t.interrupt(ctx, t.ticker)

	t.state = Armed
	return nil
}

// Stop disarms the timer.  A faulted timer stays faulted.
func (t *Timer) Stop() {
	t.m.Lock()
	defer t.m.Unlock()

	if t.state != Armed {
		return
	}

	t.cancel()
	t.wg.Wait()
	t.ticker.Stop()
	t.cancel = nil
	t.state = Uninitialized
}

// State returns the present state.
func (t *Timer) State() State {
	t.m.Lock()
	defer t.m.Unlock()
	return t.state
}

// Period returns the programmed period.
func (t *Timer) Period() time.Duration {
	t.m.Lock()
	defer t.m.Unlock()
	return t.period
}

// Ticks returns the number of ticks since Start.
func (t *Timer) Ticks() uint64 {
	return t.ticks.Load()
}

// Wait blocks until the tick count has advanced by n since the last Wait
// returned, or since Start for the first call.  If those ticks already
// elapsed Wait returns at once, so a round that ran long is followed by a
// late round rather than a skipped one.  Any further missed ticks are not
// caught up: the mark moves to the present count on return.  The context is
// the only way out early.
func (t *Timer) Wait(ctx context.Context, n uint64) error {
	if t.State() != Armed {
		return ErrNotArmed
	}

	target := t.last.Load() + n
	for t.ticks.Load() < target {
		select {
		case <-t.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.last.Store(t.ticks.Load())
	return nil
}

// interrupt is the only writer of the tick counter.
func (t *Timer) interrupt(ctx context.Context, ticker *clock.Ticker) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.ticks.Inc()
			select {
			case t.notify <- struct{}{}:
			default:
			}
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

func (c clockOption) apply(t *Timer) {
	t.clock = c.clk
}
