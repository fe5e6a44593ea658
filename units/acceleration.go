// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package units

import (
	"fmt"
	"strconv"
	"strings"
)

const standardGravity = 9.80665

// Acceleration is a measurement of acceleration stored as a float64 in g.
type Acceleration float64

// ParseAcceleration sets the acceleration based on the string provided.  Both
// a number and units are required.
func ParseAcceleration(s string) (Acceleration, error) {
	list := []struct {
		suffix string
		accel  float64
	}{
		{suffix: "m/s2", accel: 1.0 / standardGravity},
		{suffix: "m/s^2", accel: 1.0 / standardGravity},
		{suffix: "mg", accel: 0.001},
		{suffix: "g", accel: 1.0},
	}

	known := make([]string, 0, len(list))

	for _, unit := range list {

		if strings.HasSuffix(strings.ToLower(s), unit.suffix) {
			s = s[:len(s)-len(unit.suffix)]

			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return 0.0, fmt.Errorf("%w: '%s' %v", ErrInvalidUnit, s, err)
			}
			return Acceleration(n * unit.accel), nil
		}
		known = append(known, unit.suffix)
	}

	return 0.0, fmt.Errorf("%w: unknown unit for '%s' valid: %s",
		ErrInvalidUnit, s, strings.Join(known, ", "))
}

// MetersPerSecondSquared returns the acceleration as a floating point in m/s².
func (a Acceleration) MetersPerSecondSquared() float64 {
	return float64(a) * standardGravity
}

// String returns the acceleration formatted as a string in g.
func (a Acceleration) String() string {
	return fmt.Sprintf("%.3fg", a)
}

func (a *Acceleration) UnmarshalText(b []byte) (err error) {
	*a, err = ParseAcceleration(string(b))
	return err
}
