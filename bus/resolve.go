// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"fmt"
	"strings"

	"github.com/schmidtw/imu-board/capability"
)

// Routes maps each capability to the bus that carries it.  Several
// capabilities may share one bus; a capability is never on two buses.
type Routes map[capability.Capability]ID

// DefaultRoutes is the wiring of the revision 2 board.
func DefaultRoutes() Routes {
	return Routes{
		capability.TemperatureSensor: I2C1,
		capability.MagAccelPrimary:   I2C1,
		capability.MagAccelSecondary: I2C2,
		capability.GyroPrimary:       SPI1,
		capability.GyroSecondary:     SPI1,
		capability.SDIOStorage:       SDIO,
	}
}

// supported lists the bus kinds each chip family can be wired to.
var supported = map[capability.Capability][]Kind{
	capability.GyroPrimary:       {KindSPI, KindI2C},
	capability.GyroSecondary:     {KindSPI, KindI2C},
	capability.MagAccelPrimary:   {KindI2C},
	capability.MagAccelSecondary: {KindI2C},
	capability.TemperatureSensor: {KindI2C},
	capability.SDIOStorage:       {KindSDIO},
}

// With returns a copy of the routes with the overrides applied.
func (r Routes) With(overrides Routes) Routes {
	out := make(Routes, len(r)+len(overrides))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Validate checks that every route names a known bus of a kind the
// capability can use.
func (r Routes) Validate() error {
	for _, c := range capability.All() {
		id, ok := r[c]
		if !ok {
			continue
		}
		if !id.valid() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidRoute, c, id)
		}

		var fits bool
		for _, k := range supported[c] {
			if k == id.Kind() {
				fits = true
			}
		}
		if !fits {
			return fmt.Errorf("%w: %s cannot use %s bus %s", ErrInvalidRoute, c, id.Kind(), id)
		}
	}
	return nil
}

// Requirements is the derived set of buses that must be enabled.
type Requirements struct {
	required [idCount]bool
	users    [idCount][]capability.Capability
}

// Resolve computes which buses are required by the capabilities present.  A
// bus is required if any present capability is routed to it.  Capabilities
// without a route are treated as not wired.
func Resolve(caps capability.Set, routes Routes) Requirements {
	var r Requirements
	for _, c := range caps.List() {
		id, ok := routes[c]
		if !ok || !id.valid() {
			continue
		}
		r.required[id] = true
		r.users[id] = append(r.users[id], c)
	}
	return r
}

// Required reports if the bus must be enabled.
func (r Requirements) Required(id ID) bool {
	return id.valid() && r.required[id]
}

// Users returns the capabilities that need the bus, in priority order.
func (r Requirements) Users(id ID) []capability.Capability {
	if !id.valid() {
		return nil
	}
	return append([]capability.Capability(nil), r.users[id]...)
}

// Enabled returns the required buses in ID order.
func (r Requirements) Enabled() []ID {
	var out []ID
	for id := ID(0); id < idCount; id++ {
		if r.required[id] {
			out = append(out, id)
		}
	}
	return out
}

// Equal reports if both requirement sets enable the same buses.
func (r Requirements) Equal(o Requirements) bool {
	return r.required == o.required
}

func (r Requirements) String() string {
	parts := make([]string, 0, idCount)
	for id := ID(0); id < idCount; id++ {
		parts = append(parts, fmt.Sprintf("%s=%t", id, r.required[id]))
	}
	return strings.Join(parts, " ")
}
