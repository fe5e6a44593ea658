// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package tick

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

const (
	settle = time.Second
	poll   = time.Millisecond
)

// advance moves the mock clock one period forward and waits for the tick to
// be counted.
func advance(t *testing.T, tm *Timer, mclock *clock.Mock) {
	t.Helper()

	before := tm.Ticks()
	mclock.Add(tm.Period())
	require.Eventually(t, func() bool { return tm.Ticks() == before+1 }, settle, poll)
}

func TestNew(t *testing.T) {
	tests := []struct {
		description string
		cfg         Config
		expectErr   error
	}{
		{
			description: "defaults",
		}, {
			description: "divide by 8",
			cfg:         Config{CoreClock: 16 * physic.MegaHertz, Prescaler: 8},
		}, {
			description: "unsupported prescaler",
			cfg:         Config{Prescaler: 4},
			expectErr:   ErrInvalidConfig,
		}, {
			description: "clock below 1Hz",
			cfg:         Config{CoreClock: physic.MilliHertz},
			expectErr:   ErrInvalidConfig,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)

			tm, err := New(tc.cfg)
			if tc.expectErr != nil {
				assert.ErrorIs(err, tc.expectErr)
				assert.Nil(tm)
				return
			}

			assert.NoError(err)
			assert.Equal(Uninitialized, tm.State())
		})
	}
}

func TestReload(t *testing.T) {
	tests := []struct {
		description string
		cfg         Config
		period      time.Duration
		expect      uint32
		expectErr   error
	}{
		{
			description: "1ms at 168MHz",
			period:      time.Millisecond,
			expect:      167_999,
		}, {
			description: "99ms at 168MHz",
			period:      99 * time.Millisecond,
			expect:      16_631_999,
		}, {
			description: "100ms at 168MHz is too long",
			period:      100 * time.Millisecond,
			expectErr:   ErrPeriodUnachievable,
		}, {
			description: "400ms at 168MHz is too long",
			period:      400 * time.Millisecond,
			expectErr:   ErrPeriodUnachievable,
		}, {
			description: "400ms at 168MHz/8",
			cfg:         Config{Prescaler: 8},
			period:      400 * time.Millisecond,
			expect:      8_399_999,
		}, {
			description: "an hour overflows the arithmetic",
			period:      time.Hour,
			expectErr:   ErrPeriodUnachievable,
		}, {
			description: "below the resolution",
			period:      time.Nanosecond,
			expectErr:   ErrPeriodUnachievable,
		}, {
			description: "zero",
			expectErr:   ErrPeriodUnachievable,
		}, {
			description: "negative",
			period:      -time.Second,
			expectErr:   ErrPeriodUnachievable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			tm, err := New(tc.cfg)
			require.NoError(err)

			reload, err := tm.Reload(tc.period)
			if tc.expectErr != nil {
				assert.ErrorIs(err, tc.expectErr)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.expect, reload)
		})
	}
}

func TestStartFault(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tm, err := New(Config{})
	require.NoError(err)

	assert.ErrorIs(tm.Wait(context.Background(), 1), ErrNotArmed)

	err = tm.Start(400 * time.Millisecond)
	assert.ErrorIs(err, ErrPeriodUnachievable)
	assert.Equal(Fault, tm.State())

	// Fault is terminal.
	assert.ErrorIs(tm.Wait(context.Background(), 1), ErrNotArmed)
	assert.ErrorIs(tm.Start(10*time.Millisecond), ErrFault)
	tm.Stop()
	assert.Equal(Fault, tm.State())
}

func TestWait(t *testing.T) {
	tests := []struct {
		description string
		waits       int
	}{
		{description: "one round", waits: 1},
		{description: "several rounds", waits: 5},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mclock := clock.NewMock()
			tm, err := New(Config{Prescaler: 8}, UseClock(mclock))
			require.NoError(err)
			require.NoError(tm.Start(400 * time.Millisecond))
			defer tm.Stop()

			assert.Equal(Armed, tm.State())
			assert.ErrorIs(tm.Start(400*time.Millisecond), errAlreadyStarted)

			done := make(chan uint64, tc.waits)
			go func() {
				for i := 0; i < tc.waits; i++ {
					if err := tm.Wait(context.Background(), 1); err != nil {
						close(done)
						return
					}
					done <- tm.Ticks()
				}
			}()

			for i := 1; i <= tc.waits; i++ {
				advance(t, tm, mclock)
				got := <-done
				assert.Equal(uint64(i), got)
			}
			assert.Equal(uint64(tc.waits), tm.Ticks())
		})
	}
}

func TestWaitNeverEarly(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mclock := clock.NewMock()
	tm, err := New(Config{}, UseClock(mclock))
	require.NoError(err)
	require.NoError(tm.Start(10 * time.Millisecond))
	defer tm.Stop()

	done := make(chan error, 1)
	go func() {
		done <- tm.Wait(context.Background(), 3)
	}()

	for i := 0; i < 2; i++ {
		advance(t, tm, mclock)
		select {
		case <-done:
			assert.Fail("returned before the target tick")
		case <-time.After(10 * time.Millisecond):
		}
	}

	advance(t, tm, mclock)
	assert.NoError(<-done)
	assert.Equal(uint64(3), tm.Ticks())
}

func TestWaitAfterOverrun(t *testing.T) {
	tests := []struct {
		description string
		missed      int
		expectTick  uint64
	}{
		{
			description: "one boundary passed while sampling",
			missed:      1,
			expectTick:  2,
		}, {
			description: "several boundaries passed while sampling",
			missed:      3,
			expectTick:  4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mclock := clock.NewMock()
			tm, err := New(Config{}, UseClock(mclock))
			require.NoError(err)
			require.NoError(tm.Start(10 * time.Millisecond))
			defer tm.Stop()

			advance(t, tm, mclock)
			require.NoError(tm.Wait(context.Background(), 1))

			// Boundaries go by while nobody waits, like a round that ran long.
			for i := 0; i < tc.missed; i++ {
				advance(t, tm, mclock)
			}

			// The late round runs at once.
			ctx, cancel := context.WithTimeout(context.Background(), settle)
			defer cancel()
			assert.NoError(tm.Wait(ctx, 1))
			assert.Equal(tc.expectTick, tm.Ticks())

			// The rest of the missed boundaries are not caught up.
			short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancelShort()
			assert.ErrorIs(tm.Wait(short, 1), context.DeadlineExceeded)

			done := make(chan error, 1)
			go func() {
				done <- tm.Wait(context.Background(), 1)
			}()

			advance(t, tm, mclock)
			assert.NoError(<-done)
			assert.Equal(tc.expectTick+1, tm.Ticks())
		})
	}
}

func TestWaitCanceled(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mclock := clock.NewMock()
	tm, err := New(Config{}, UseClock(mclock))
	require.NoError(err)
	require.NoError(tm.Start(10 * time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(tm.Wait(ctx, 1), context.Canceled)

	// Zero ticks never blocks.
	assert.NoError(tm.Wait(context.Background(), 0))

	tm.Stop()
	assert.Equal(Uninitialized, tm.State())
	assert.ErrorIs(tm.Wait(context.Background(), 1), ErrNotArmed)

	// A stopped timer can be started again with the count reset.
	require.NoError(tm.Start(20 * time.Millisecond))
	assert.Equal(uint64(0), tm.Ticks())
	assert.Equal(20*time.Millisecond, tm.Period())
	tm.Stop()
}
