// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package sensor holds the handles for the populated sensors and samples them
// in a fixed order.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schmidtw/imu-board/bus"
	"periph.io/x/conn/v3/physic"
)

var (
	ErrDeviceNotResponding = errors.New("device not responding")
	ErrNotInitialized      = errors.New("not initialized")
	ErrOffline             = errors.New("offline")

	// ErrBusUnavailable is returned when a handle needs a bus that was never
	// enabled.
	ErrBusUnavailable = bus.ErrBusUnavailable
)

// Sensor is the contract every chip family driver implements.
type Sensor interface {
	// Name identifies the device in logs and metrics.
	Name() string

	// Init establishes communication with the device over its bus.
	Init(context.Context) error

	// Sample performs one synchronous read.
	Sample(context.Context) (Measurement, error)
}

// Vector3 is a 3-axis reading.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

// Measurement is the result of one sample.  Only the quantities the device
// measures are set.
type Measurement struct {
	Time          time.Time           `json:"time"`
	AngularRate   *Vector3            `json:"angular_rate,omitempty"`   // degrees per second
	Acceleration  *Vector3            `json:"acceleration,omitempty"`   // g
	MagneticField *Vector3            `json:"magnetic_field,omitempty"` // gauss
	Temperature   *physic.Temperature `json:"temperature,omitempty"`
}

// NotResponding wraps err as ErrDeviceNotResponding for the named device.
func NotResponding(name string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotResponding, name)
	}
	return fmt.Errorf("%w: %s: %v", ErrDeviceNotResponding, name, err)
}
