// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"testing"

	"github.com/schmidtw/imu-board/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// every returns each of the 2^n capability combinations.
func every() []capability.Set {
	all := capability.All()
	out := make([]capability.Set, 0, 1<<len(all))
	for mask := 0; mask < 1<<len(all); mask++ {
		var s capability.Set
		for i, c := range all {
			if mask&(1<<i) != 0 {
				s = s.With(c)
			}
		}
		out = append(out, s)
	}
	return out
}

func TestResolveTruthTable(t *testing.T) {
	routes := DefaultRoutes()

	for _, caps := range every() {
		t.Run(caps.String(), func(t *testing.T) {
			assert := assert.New(t)

			reqs := Resolve(caps, routes)

			for _, id := range IDs() {
				var want bool
				for c, via := range routes {
					if via == id && caps.Has(c) {
						want = true
					}
				}
				assert.Equal(want, reqs.Required(id), id.String())
			}

			assert.True(reqs.Equal(Resolve(caps, routes)))
			assert.Equal(reqs.String(), Resolve(caps, routes).String())
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		description string
		caps        capability.Set
		routes      Routes
		enabled     []ID
		users       map[ID][]capability.Capability
	}{
		{
			description: "nothing populated",
			routes:      DefaultRoutes(),
		}, {
			description: "temperature, primary mag/accel and primary gyro",
			caps: capability.NewSet(
				capability.TemperatureSensor,
				capability.MagAccelPrimary,
				capability.GyroPrimary,
			),
			routes:  DefaultRoutes(),
			enabled: []ID{I2C1, SPI1},
			users: map[ID][]capability.Capability{
				I2C1: {capability.MagAccelPrimary, capability.TemperatureSensor},
				SPI1: {capability.GyroPrimary},
			},
		}, {
			description: "revision 2 board",
			caps:        capability.Variants["r2"],
			routes:      DefaultRoutes(),
			enabled:     []ID{I2C1, I2C2, SPI1, SDIO},
			users: map[ID][]capability.Capability{
				SPI1: {capability.GyroPrimary, capability.GyroSecondary},
				I2C3: nil,
				SPI2: nil,
			},
		}, {
			description: "unrouted capability is not wired",
			caps:        capability.NewSet(capability.TemperatureSensor),
			routes:      Routes{},
		}, {
			description: "rerouted secondary mag/accel",
			caps:        capability.NewSet(capability.MagAccelSecondary),
			routes:      DefaultRoutes().With(Routes{capability.MagAccelSecondary: I2C3}),
			enabled:     []ID{I2C3},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)

			reqs := Resolve(tc.caps, tc.routes)
			assert.Equal(tc.enabled, reqs.Enabled())

			for id, users := range tc.users {
				assert.Equal(users, reqs.Users(id), id.String())
			}
		})
	}
}

func TestRoutesValidate(t *testing.T) {
	tests := []struct {
		description string
		routes      Routes
		expectErr   error
	}{
		{
			description: "default routes",
			routes:      DefaultRoutes(),
		}, {
			description: "gyro over i2c",
			routes:      Routes{capability.GyroPrimary: I2C2},
		}, {
			description: "temperature over spi",
			routes:      Routes{capability.TemperatureSensor: SPI2},
			expectErr:   ErrInvalidRoute,
		}, {
			description: "sdio over i2c",
			routes:      Routes{capability.SDIOStorage: I2C3},
			expectErr:   ErrInvalidRoute,
		}, {
			description: "unknown bus",
			routes:      Routes{capability.MagAccelPrimary: ID(99)},
			expectErr:   ErrInvalidRoute,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)

			err := tc.routes.Validate()
			if tc.expectErr == nil {
				assert.NoError(err)
				return
			}
			assert.ErrorIs(err, tc.expectErr)
		})
	}
}

func TestParseID(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	for _, id := range IDs() {
		b, err := id.MarshalText()
		require.NoError(err)

		var got ID
		require.NoError(got.UnmarshalText(b))
		assert.Equal(id, got)
	}

	id, err := ParseID(" SPI1 ")
	assert.NoError(err)
	assert.Equal(SPI1, id)
	assert.Equal(KindSPI, id.Kind())

	_, err = ParseID("can0")
	assert.ErrorIs(err, ErrUnknownBus)

	_, err = ID(99).MarshalText()
	assert.ErrorIs(err, ErrUnknownBus)
}
