// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"fmt"

	"github.com/schmidtw/imu-board/capability"
	"go.uber.org/multierr"
)

// Rule declares two requirements that share physical pins and so can never be
// enabled together.
type Rule struct {
	A ID
	B ID
}

func (r Rule) String() string {
	return r.A.String() + "/" + r.B.String()
}

// DefaultRules are the pin collisions of the revision 2 board.
func DefaultRules() []Rule {
	return []Rule{
		{A: I2C3, B: SDIO},
	}
}

// ConflictError names the two colliding requirements.
type ConflictError struct {
	A ID
	B ID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s and %s cannot be used at the same time", e.A, e.B)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Validate applies every rule to the requirements.  Each violated rule adds one
// *ConflictError, in rule order.  A nil result means the requirements are safe
// to enable without further checks.
func Validate(reqs Requirements, rules []Rule) error {
	var err error
	for _, rule := range rules {
		if reqs.Required(rule.A) && reqs.Required(rule.B) {
			err = multierr.Append(err, &ConflictError{A: rule.A, B: rule.B})
		}
	}
	return err
}

// Conflicts splits a Validate error into the individual conflicts.
func Conflicts(err error) []*ConflictError {
	var out []*ConflictError
	for _, e := range multierr.Errors(err) {
		if ce, ok := e.(*ConflictError); ok {
			out = append(out, ce)
		}
	}
	return out
}

// Check validates the routes, resolves the requirements and applies the rules.
// It is the gate every configuration passes before any hardware is touched.
func Check(caps capability.Set, routes Routes, rules []Rule) (Requirements, error) {
	if err := routes.Validate(); err != nil {
		return Requirements{}, err
	}

	reqs := Resolve(caps, routes)
	if err := Validate(reqs, rules); err != nil {
		return Requirements{}, err
	}
	return reqs, nil
}
