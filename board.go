// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/schmidtw/imu-board/bus"
	"github.com/schmidtw/imu-board/capability"
	"github.com/schmidtw/imu-board/sensor"
	"github.com/schmidtw/imu-board/sensor/l3gd20"
	"github.com/schmidtw/imu-board/sensor/lsm303"
	"github.com/schmidtw/imu-board/sensor/stts751"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"
)

var (
	errNoRoute     = errors.New("no route")
	errAddressUsed = errors.New("address already in use")
)

// plan is the checked board description: what is populated and which buses
// that enables.
type plan struct {
	caps   capability.Set
	routes bus.Routes
	rules  []bus.Rule
	reqs   bus.Requirements
}

func newPlan(b Board) (plan, error) {
	var p plan

	if len(b.Capabilities) > 0 {
		p.caps = capability.NewSet(b.Capabilities...)
	} else {
		caps, err := capability.Variant(b.Variant)
		if err != nil {
			return plan{}, err
		}
		p.caps = caps
	}

	p.routes = bus.DefaultRoutes().With(b.Routes)
	p.rules = append(bus.DefaultRules(), b.Rules...)

	for _, c := range p.caps.List() {
		if _, ok := p.routes[c]; !ok {
			return plan{}, fmt.Errorf("%w: %s", errNoRoute, c)
		}
	}

	reqs, err := bus.Check(p.caps, p.routes, p.rules)
	if err != nil {
		return plan{}, err
	}
	p.reqs = reqs

	return p, nil
}

// busProvider hands out the enabled buses.
type busProvider interface {
	I2C(bus.ID) (i2c.Bus, error)
	SPI(bus.ID, int) (spi.Port, error)
}

type claim struct {
	id   bus.ID
	addr int
}

// newFactory builds the sensor for each populated capability.  Nothing is
// opened here; the buses are reached when the sensor is initialized.
func newFactory(cfg Sensors, routes bus.Routes, buses busProvider) sensor.Factory {
	claims := make(map[claim]capability.Capability)

	take := func(c capability.Capability, id bus.ID, addrs ...int) error {
		for _, addr := range addrs {
			k := claim{id: id, addr: addr}
			if owner, ok := claims[k]; ok {
				return fmt.Errorf("%w: %s 0x%02x is used by %s", errAddressUsed, id, addr, owner)
			}
			claims[k] = c
		}
		return nil
	}

	i2cOf := func(id bus.ID) func() (i2c.Bus, error) {
		return func() (i2c.Bus, error) {
			return buses.I2C(id)
		}
	}

	return func(c capability.Capability) (sensor.Sensor, error) {
		id, ok := routes[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errNoRoute, c)
		}

		switch c {
		case capability.GyroPrimary, capability.GyroSecondary:
			opts := l3gd20.Opts{
				Range:     cfg.GyroRange,
				Frequency: cfg.GyroFrequency,
			}

			if id.Kind() == bus.KindSPI {
				cs := cfg.GyroPrimarySelect
				if c == capability.GyroSecondary {
					cs = cfg.GyroSecondarySelect
				}
				// chip selects live in their own space, apart from i2c addresses
				if err := take(c, id, -1-cs); err != nil {
					return nil, err
				}
				port := func() (spi.Port, error) {
					return buses.SPI(id, cs)
				}
				d, err := l3gd20.New(c.String(), port, opts)
				if err != nil {
					return nil, err
				}
				return d, nil
			}

			addr := cfg.GyroPrimaryAddress
			if c == capability.GyroSecondary {
				addr = cfg.GyroSecondaryAddress
			}
			if err := take(c, id, int(addr)); err != nil {
				return nil, err
			}
			d, err := l3gd20.NewI2C(c.String(), i2cOf(id), addr, opts)
			if err != nil {
				return nil, err
			}
			return d, nil

		case capability.MagAccelPrimary, capability.MagAccelSecondary:
			if err := take(c, id, lsm303.AccelAddress, lsm303.MagAddress); err != nil {
				return nil, err
			}
			d, err := lsm303.New(c.String(), i2cOf(id), lsm303.Opts{Range: cfg.AccelRange})
			if err != nil {
				return nil, err
			}
			return d, nil

		case capability.TemperatureSensor:
			addr := cfg.TemperatureAddress
			if addr == 0 {
				addr = stts751.DefaultAddress
			}
			if err := take(c, id, int(addr)); err != nil {
				return nil, err
			}
			return stts751.New(c.String(), i2cOf(id), addr), nil
		}

		// SDIO storage is a bus requirement only.
		return nil, nil
	}
}
