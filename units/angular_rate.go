// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const degreesInRadian = 180.0 / math.Pi

// AngularRate is a measurement of rotation stored as a float64 in degrees per
// second.
type AngularRate float64

// ParseAngularRate sets the angular rate based on the string provided.  Both a
// number and units are required.
func ParseAngularRate(s string) (AngularRate, error) {
	list := []struct {
		suffix string
		rate   float64
	}{
		{suffix: "rad/s", rate: degreesInRadian},
		{suffix: "rads", rate: degreesInRadian},
		{suffix: "rpm", rate: 6.0},
		{suffix: "dps", rate: 1.0},
		{suffix: "deg/s", rate: 1.0},
	}

	known := make([]string, 0, len(list))

	for _, unit := range list {

		if strings.HasSuffix(strings.ToLower(s), unit.suffix) {
			s = s[:len(s)-len(unit.suffix)]

			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return 0.0, fmt.Errorf("%w: '%s' %v", ErrInvalidUnit, s, err)
			}
			return AngularRate(n * unit.rate), nil
		}
		known = append(known, unit.suffix)
	}

	return 0.0, fmt.Errorf("%w: unknown unit for '%s' valid: %s",
		ErrInvalidUnit, s, strings.Join(known, ", "))
}

// RadiansPerSecond returns the angular rate as a floating point in rad/s.
func (a AngularRate) RadiansPerSecond() float64 {
	return float64(a) / degreesInRadian
}

// String returns the angular rate formatted as a string in dps.
func (a AngularRate) String() string {
	return fmt.Sprintf("%.3fdps", a)
}

func (a *AngularRate) UnmarshalText(b []byte) (err error) {
	*a, err = ParseAngularRate(string(b))
	return err
}
