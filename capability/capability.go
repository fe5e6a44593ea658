// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package capability declares which sensors and peripherals populate a board.
package capability

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrUnknownVariant    = errors.New("unknown board variant")
)

// Capability is one kind of physically populated sensor or peripheral.
type Capability int

// The order of the constants is the priority order used everywhere a set is
// walked.
const (
	GyroPrimary Capability = iota
	GyroSecondary
	MagAccelPrimary
	MagAccelSecondary
	TemperatureSensor
	SDIOStorage

	count
)

var names = [count]string{
	GyroPrimary:       "gyro_primary",
	GyroSecondary:     "gyro_secondary",
	MagAccelPrimary:   "mag_accel_primary",
	MagAccelSecondary: "mag_accel_secondary",
	TemperatureSensor: "temperature",
	SDIOStorage:       "sdio",
}

// All returns every known capability in priority order.
func All() []Capability {
	out := make([]Capability, 0, count)
	for c := Capability(0); c < count; c++ {
		out = append(out, c)
	}
	return out
}

// Parse converts a capability name into a Capability.
func Parse(s string) (Capability, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for c := Capability(0); c < count; c++ {
		if names[c] == want {
			return c, nil
		}
	}

	return 0, fmt.Errorf("%w: '%s' valid: %s", ErrUnknownCapability, s, strings.Join(names[:], ", "))
}

func (c Capability) valid() bool {
	return c >= 0 && c < count
}

func (c Capability) String() string {
	if !c.valid() {
		return fmt.Sprintf("capability(%d)", int(c))
	}
	return names[c]
}

func (c Capability) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCapability, int(c))
	}
	return []byte(names[c]), nil
}

func (c *Capability) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Set is an immutable set of capabilities.  The zero value is the empty set,
// meaning nothing is populated.
type Set struct {
	present [count]bool
}

// NewSet returns a set containing the capabilities listed.  Invalid values are
// ignored.
func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		if c.valid() {
			s.present[c] = true
		}
	}
	return s
}

// Has reports if the capability is present.
func (s Set) Has(c Capability) bool {
	return c.valid() && s.present[c]
}

// With returns a copy of the set that includes c.
func (s Set) With(c Capability) Set {
	if c.valid() {
		s.present[c] = true
	}
	return s
}

// Without returns a copy of the set that excludes c.
func (s Set) Without(c Capability) Set {
	if c.valid() {
		s.present[c] = false
	}
	return s
}

// List returns the present capabilities in priority order.
func (s Set) List() []Capability {
	var out []Capability
	for c := Capability(0); c < count; c++ {
		if s.present[c] {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of present capabilities.
func (s Set) Len() int {
	return len(s.List())
}

func (s Set) String() string {
	list := s.List()
	parts := make([]string, 0, len(list))
	for _, c := range list {
		parts = append(parts, c.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Variants are the board revisions known to build.
var Variants = map[string]Set{
	// Revision 2 hardware: everything populated.
	"r2": NewSet(
		TemperatureSensor,
		GyroPrimary,
		GyroSecondary,
		MagAccelPrimary,
		MagAccelSecondary,
		SDIOStorage,
	),

	// The reduced board used for the reference documentation.
	"reference": NewSet(
		TemperatureSensor,
		GyroPrimary,
		MagAccelPrimary,
		MagAccelSecondary,
	),
}

// Variant looks up a named board variant.
func Variant(name string) (Set, error) {
	s, ok := Variants[strings.ToLower(name)]
	if !ok {
		return Set{}, fmt.Errorf("%w: '%s'", ErrUnknownVariant, name)
	}
	return s, nil
}
