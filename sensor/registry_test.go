// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/schmidtw/imu-board/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var errUnknown = errors.New("unknown")

// mocksFor returns a factory that hands out one mockSensor per capability and
// the map of what was built.
func mocksFor() (Factory, map[capability.Capability]*mockSensor) {
	built := make(map[capability.Capability]*mockSensor)
	return func(c capability.Capability) (Sensor, error) {
		if c == capability.SDIOStorage {
			return nil, nil
		}
		m := &mockSensor{name: c.String()}
		built[c] = m
		return m, nil
	}, built
}

func TestNewRegistry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	_, err := NewRegistry(capability.Variants["r2"], nil)
	assert.ErrorIs(err, ErrNoFactory)

	_, err = NewRegistry(capability.Variants["r2"], func(capability.Capability) (Sensor, error) {
		return nil, errUnknown
	})
	assert.ErrorIs(err, errUnknown)

	factory, built := mocksFor()
	r, err := NewRegistry(capability.Variants["r2"], factory)
	require.NoError(err)
	require.NotNil(r)

	assert.Len(built, 5)
	assert.Equal([]capability.Capability{
		capability.GyroPrimary,
		capability.GyroSecondary,
		capability.MagAccelPrimary,
		capability.MagAccelSecondary,
		capability.TemperatureSensor,
	}, r.Roles())

	// Nothing is online before Init.
	assert.Empty(r.Online())
}

func TestInit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	caps := capability.NewSet(
		capability.GyroPrimary,
		capability.MagAccelPrimary,
		capability.TemperatureSensor,
	)
	factory, built := mocksFor()
	r, err := NewRegistry(caps, factory)
	require.NoError(err)

	built[capability.GyroPrimary].On("Init", mock.Anything).Return(nil).Once()
	built[capability.MagAccelPrimary].On("Init", mock.Anything).Return(ErrDeviceNotResponding).Once()
	built[capability.TemperatureSensor].On("Init", mock.Anything).Return(ErrBusUnavailable).Once()

	results, err := r.Init(context.Background())
	assert.ErrorIs(err, ErrDeviceNotResponding)
	assert.ErrorIs(err, ErrBusUnavailable)
	assert.Len(multierr.Errors(err), 2)

	require.Len(results, 3)
	assert.NoError(results[0].Err)
	assert.ErrorIs(results[1].Err, ErrDeviceNotResponding)
	assert.ErrorIs(results[2].Err, ErrBusUnavailable)

	assert.Equal([]capability.Capability{capability.GyroPrimary}, r.Online())

	assert.ErrorIs(r.SetOnline(capability.MagAccelPrimary, true), ErrNotInitialized)
	assert.ErrorIs(r.SetOnline(capability.GyroSecondary, true), ErrUnknownHandle)
	assert.NoError(r.SetOnline(capability.GyroPrimary, false))
	assert.Empty(r.Online())
	assert.NoError(r.SetOnline(capability.GyroPrimary, true))
	assert.Equal([]capability.Capability{capability.GyroPrimary}, r.Online())

	for _, m := range built {
		m.AssertExpectations(t)
	}
}

func TestRound(t *testing.T) {
	mclock := clock.NewMock()
	mclock.Add(time.Hour)
	stamped := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		description string
		failing     map[capability.Capability]error
		offline     []capability.Capability
		expectRoles []capability.Capability
	}{
		{
			description: "all succeed",
			expectRoles: []capability.Capability{
				capability.GyroPrimary,
				capability.GyroSecondary,
				capability.MagAccelPrimary,
				capability.TemperatureSensor,
			},
		}, {
			description: "one handle stops responding mid round",
			failing: map[capability.Capability]error{
				capability.GyroSecondary: ErrDeviceNotResponding,
			},
			expectRoles: []capability.Capability{
				capability.GyroPrimary,
				capability.GyroSecondary,
				capability.MagAccelPrimary,
				capability.TemperatureSensor,
			},
		}, {
			description: "first and last fail",
			failing: map[capability.Capability]error{
				capability.GyroPrimary:       ErrDeviceNotResponding,
				capability.TemperatureSensor: errUnknown,
			},
			expectRoles: []capability.Capability{
				capability.GyroPrimary,
				capability.GyroSecondary,
				capability.MagAccelPrimary,
				capability.TemperatureSensor,
			},
		}, {
			description: "offline handles are skipped",
			offline:     []capability.Capability{capability.MagAccelPrimary},
			expectRoles: []capability.Capability{
				capability.GyroPrimary,
				capability.GyroSecondary,
				capability.TemperatureSensor,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			caps := capability.NewSet(
				capability.GyroPrimary,
				capability.GyroSecondary,
				capability.MagAccelPrimary,
				capability.TemperatureSensor,
				capability.SDIOStorage,
			)
			factory, built := mocksFor()
			r, err := NewRegistry(caps, factory, UseClock(mclock))
			require.NoError(err)

			for c, m := range built {
				m.On("Init", mock.Anything).Return(nil).Once()
				if e, ok := tc.failing[c]; ok {
					m.On("Sample", mock.Anything).Return(Measurement{}, e).Once()
					continue
				}
				// The temperature sensor stamps its own time.
				when := time.Time{}
				if c == capability.TemperatureSensor {
					when = stamped
				}
				m.On("Sample", mock.Anything).Return(Measurement{
					Time:        when,
					AngularRate: &Vector3{X: 1},
				}, nil).Maybe()
			}

			_, err = r.Init(context.Background())
			require.NoError(err)
			for _, c := range tc.offline {
				require.NoError(r.SetOnline(c, false))
			}

			results := r.Round(context.Background())
			require.Len(results, len(tc.expectRoles))

			for i, res := range results {
				assert.Equal(tc.expectRoles[i], res.Role)
				assert.Equal(res.Role.String(), res.Name)

				if e, ok := tc.failing[res.Role]; ok {
					assert.ErrorIs(res.Err, e)
					continue
				}
				assert.NoError(res.Err)
				if res.Role == capability.TemperatureSensor {
					assert.Equal(stamped, res.Measurement.Time)
				} else {
					assert.Equal(mclock.Now(), res.Measurement.Time)
				}
			}

			for _, m := range built {
				m.AssertExpectations(t)
			}
		})
	}
}
