// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package stts751 is the handle for the ST STTS751 temperature sensor on I2C.
package stts751

import (
	"context"
	"fmt"
	"sync"

	"github.com/schmidtw/imu-board/sensor"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	DefaultAddress = 0x48

	regTempHigh       = 0x00
	regTempLow        = 0x02
	regConfig         = 0x03
	regManufacturerID = 0xfe

	manufacturerST = 0x53

	config12Bit = 0x0c
)

// Dev is one temperature sensor.
type Dev struct {
	m    sync.Mutex
	name string
	bus  func() (i2c.Bus, error)
	addr uint16
	dev  *i2c.Dev
}

// New creates the handle.  An address of 0 selects DefaultAddress.
func New(name string, bus func() (i2c.Bus, error), addr uint16) *Dev {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &Dev{
		name: name,
		bus:  bus,
		addr: addr,
	}
}

func (d *Dev) Name() string {
	return d.name
}

func (d *Dev) String() string {
	return "STTS751{" + d.name + "}"
}

// Init checks the manufacturer and selects 12 bit resolution.
func (d *Dev) Init(ctx context.Context) error {
	d.m.Lock()
	defer d.m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := d.bus()
	if err != nil {
		return err
	}

	dev := &i2c.Dev{Bus: b, Addr: d.addr}

	id := make([]byte, 1)
	if err := dev.Tx([]byte{regManufacturerID}, id); err != nil {
		return sensor.NotResponding(d.name, err)
	}
	if id[0] != manufacturerST {
		return sensor.NotResponding(d.name, fmt.Errorf("unexpected manufacturer 0x%02x", id[0]))
	}

	if err := dev.Tx([]byte{regConfig, config12Bit}, nil); err != nil {
		return sensor.NotResponding(d.name, err)
	}

	d.dev = dev
	return nil
}

// Sample reads the temperature.
func (d *Dev) Sample(ctx context.Context) (sensor.Measurement, error) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.dev == nil {
		return sensor.Measurement{}, sensor.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return sensor.Measurement{}, err
	}

	hi := make([]byte, 1)
	if err := d.dev.Tx([]byte{regTempHigh}, hi); err != nil {
		return sensor.Measurement{}, sensor.NotResponding(d.name, err)
	}
	lo := make([]byte, 1)
	if err := d.dev.Tx([]byte{regTempLow}, lo); err != nil {
		return sensor.Measurement{}, sensor.NotResponding(d.name, err)
	}

	// signed whole degrees in the high byte, 1/256ths in the low byte
	raw := int64(int8(hi[0]))<<8 | int64(lo[0])
	temp := physic.ZeroCelsius + physic.Temperature(raw)*physic.Kelvin/256

	return sensor.Measurement{Temperature: &temp}, nil
}
