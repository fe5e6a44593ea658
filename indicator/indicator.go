// SPDX-FileCopyrightText: 2022 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package indicator drives the board status LEDs.
package indicator

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/schmidtw/imu-board/bus"
	"github.com/schmidtw/imu-board/scheduler"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/tca95xx"
)

var (
	ErrUnknownPin = errors.New("unknown pin")

	errAlreadyStarted = errors.New("already started")
)

// Config names the LED pins.  An empty name means the LED is not fitted.
type Config struct {
	Heartbeat string
	Error     string
	Fault     string

	// Expander takes the pins from a TCA9534 I/O expander instead of the host
	// GPIO.  The pin names are then the expander bit numbers, "0" to "7".
	Expander *Expander
}

// Expander locates the I/O expander.
type Expander struct {
	Bus     bus.ID
	Address uint16
}

// I2CProvider hands out enabled I2C buses.
type I2CProvider interface {
	I2C(bus.ID) (i2c.Bus, error)
}

type pinWrapper interface {
	ByName(string) gpio.PinIO
	Expander(i2c.Bus, uint16) ([][]tca95xx.Pin, io.Closer, error)
}

// Indicator shows the heartbeat, sensor error and fault states.
type Indicator struct {
	m         sync.Mutex
	config    Config
	ioWrapper pinWrapper
	started   bool

	heartbeat gpio.PinOut
	sensorErr gpio.PinOut
	fault     gpio.PinOut
	closer    io.Closer
	beat      gpio.Level
}

func New(c Config) *Indicator {
	return &Indicator{
		config:    c,
		ioWrapper: &hwWrapper{},
	}
}

// Start finds the pins and turns every LED off.
func (ind *Indicator) Start(buses I2CProvider) error {
	ind.m.Lock()
	defer ind.m.Unlock()

	if ind.started {
		return errAlreadyStarted
	}

	lookup := ind.ioWrapper.ByName
	if ind.config.Expander != nil {
		b, err := buses.I2C(ind.config.Expander.Bus)
		if err != nil {
			return err
		}

		pins, closer, err := ind.ioWrapper.Expander(b, ind.config.Expander.Address)
		if err != nil {
			return err
		}
		ind.closer = closer
		lookup = expanderLookup(pins)
	}

	var err error
	if ind.heartbeat, err = find(lookup, ind.config.Heartbeat); err == nil {
		if ind.sensorErr, err = find(lookup, ind.config.Error); err == nil {
			ind.fault, err = find(lookup, ind.config.Fault)
		}
	}
	if err != nil {
		_ = ind.close()
		return err
	}

	ind.started = true
	ind.set(ind.heartbeat, gpio.Low)
	ind.set(ind.sensorErr, gpio.Low)
	ind.set(ind.fault, gpio.Low)

	return nil
}

// Stop turns every LED off and releases the expander.
func (ind *Indicator) Stop() error {
	ind.m.Lock()
	defer ind.m.Unlock()

	if !ind.started {
		return nil
	}

	ind.set(ind.heartbeat, gpio.Low)
	ind.set(ind.sensorErr, gpio.Low)
	ind.set(ind.fault, gpio.Low)
	ind.started = false

	return ind.close()
}

// Report toggles the heartbeat and shows whether any sample failed.
func (ind *Indicator) Report(round scheduler.Round) {
	ind.m.Lock()
	defer ind.m.Unlock()

	if !ind.started {
		return
	}

	ind.beat = !ind.beat
	ind.set(ind.heartbeat, ind.beat)

	failed := gpio.Low
	for _, r := range round.Results {
		if r.Err != nil {
			failed = gpio.High
			break
		}
	}
	ind.set(ind.sensorErr, failed)
}

// Halted lights the fault LED and stops the heartbeat.
func (ind *Indicator) Halted(error) {
	ind.m.Lock()
	defer ind.m.Unlock()

	if !ind.started {
		return
	}

	ind.set(ind.heartbeat, gpio.Low)
	ind.set(ind.fault, gpio.High)
}

func (ind *Indicator) set(p gpio.PinOut, l gpio.Level) {
	if p != nil {
		// An LED that cannot be driven is not worth failing over.
		_ = p.Out(l)
	}
}

func (ind *Indicator) close() (err error) {
	if ind.closer != nil {
		err = ind.closer.Close()
		ind.closer = nil
	}
	ind.heartbeat, ind.sensorErr, ind.fault = nil, nil, nil
	return err
}

func find(lookup func(string) gpio.PinIO, name string) (gpio.PinOut, error) {
	if name == "" {
		return nil, nil
	}

	p := lookup(name)
	if p == nil {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownPin, name)
	}
	return p, nil
}

func expanderLookup(pins [][]tca95xx.Pin) func(string) gpio.PinIO {
	return func(name string) gpio.PinIO {
		n, err := strconv.Atoi(name)
		if err != nil || len(pins) == 0 || n < 0 || n >= len(pins[0]) {
			return nil
		}
		return pins[0][n]
	}
}
