// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package l3gd20 is the handle for the ST L3GD20 3-axis gyroscope on SPI or
// I2C.
package l3gd20

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/schmidtw/imu-board/sensor"
	"github.com/schmidtw/imu-board/units"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	// DefaultAddress is the I2C address with SDO pulled high.
	DefaultAddress = 0x6b

	regWhoAmI = 0x0f
	regCtrl1  = 0x20
	regCtrl4  = 0x23
	regOutX   = 0x28

	flagRead = 0x80
	flagInc  = 0x40

	// on I2C the register auto increment flag is the msb
	flagI2CInc = 0x80

	idL3GD20  = 0xd4
	idL3GD20H = 0xd7

	ctrl1PowerXYZ = 0x0f
)

var ErrInvalidRange = errors.New("invalid range")

// full scale selection and sensitivity in mdps/LSB
var ranges = []struct {
	max         units.AngularRate
	fs          byte
	sensitivity float64
}{
	{max: 250, fs: 0x00, sensitivity: 8.75},
	{max: 500, fs: 0x10, sensitivity: 17.5},
	{max: 2000, fs: 0x20, sensitivity: 70.0},
}

// Opts configures the gyroscope.
type Opts struct {
	// Range is the full scale; 250dps, 500dps or 2000dps.  Defaults to 250dps.
	Range units.AngularRate

	// Frequency is the SPI clock.  Defaults to 5MHz.  Not used on I2C.
	Frequency physic.Frequency
}

// transport is the register framing of the bus the gyroscope sits on.
type transport interface {
	read(reg byte, n int) ([]byte, error)
	write(reg, v byte) error
}

type spiTransport struct {
	c conn.Conn
}

func (t spiTransport) read(reg byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = reg | flagRead
	if n > 1 {
		w[0] |= flagInc
	}
	r := make([]byte, n+1)
	if err := t.c.Tx(w, r); err != nil {
		return nil, err
	}
	return r[1:], nil
}

func (t spiTransport) write(reg, v byte) error {
	return t.c.Tx([]byte{reg, v}, nil)
}

type i2cTransport struct {
	d *i2c.Dev
}

func (t i2cTransport) read(reg byte, n int) ([]byte, error) {
	w := []byte{reg}
	if n > 1 {
		w[0] |= flagI2CInc
	}
	r := make([]byte, n)
	if err := t.d.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (t i2cTransport) write(reg, v byte) error {
	return t.d.Tx([]byte{reg, v}, nil)
}

// Dev is one gyroscope.
type Dev struct {
	m           sync.Mutex
	name        string
	connect     func() (transport, error)
	opts        Opts
	fs          byte
	sensitivity float64
	t           transport
}

// New creates the handle for a gyroscope on SPI.  port is called during Init
// to reach the bus.
func New(name string, port func() (spi.Port, error), opts Opts) (*Dev, error) {
	d, err := newDev(name, opts)
	if err != nil {
		return nil, err
	}

	d.connect = func() (transport, error) {
		p, err := port()
		if err != nil {
			return nil, err
		}
		c, err := p.Connect(d.opts.Frequency, spi.Mode3, 8)
		if err != nil {
			return nil, sensor.NotResponding(d.name, err)
		}
		return spiTransport{c: c}, nil
	}
	return d, nil
}

// NewI2C creates the handle for a gyroscope on I2C.  bus is called during
// Init to reach the bus.  A zero addr means DefaultAddress.
func NewI2C(name string, bus func() (i2c.Bus, error), addr uint16, opts Opts) (*Dev, error) {
	d, err := newDev(name, opts)
	if err != nil {
		return nil, err
	}
	if addr == 0 {
		addr = DefaultAddress
	}

	d.connect = func() (transport, error) {
		b, err := bus()
		if err != nil {
			return nil, err
		}
		return i2cTransport{d: &i2c.Dev{Bus: b, Addr: addr}}, nil
	}
	return d, nil
}

func newDev(name string, opts Opts) (*Dev, error) {
	if opts.Range == 0 {
		opts.Range = 250
	}
	if opts.Frequency == 0 {
		opts.Frequency = 5 * physic.MegaHertz
	}

	d := Dev{
		name: name,
		opts: opts,
	}
	for _, r := range ranges {
		if r.max == opts.Range {
			d.fs = r.fs
			d.sensitivity = r.sensitivity
			return &d, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidRange, opts.Range)
}

func (d *Dev) Name() string {
	return d.name
}

func (d *Dev) String() string {
	return "L3GD20{" + d.name + "}"
}

// Init checks the device identity and powers on all three axes.
func (d *Dev) Init(ctx context.Context) error {
	d.m.Lock()
	defer d.m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t, err := d.connect()
	if err != nil {
		return err
	}

	id, err := t.read(regWhoAmI, 1)
	if err != nil {
		return sensor.NotResponding(d.name, err)
	}
	if id[0] != idL3GD20 && id[0] != idL3GD20H {
		return sensor.NotResponding(d.name, fmt.Errorf("unexpected id 0x%02x", id[0]))
	}

	if err := t.write(regCtrl4, d.fs); err != nil {
		return sensor.NotResponding(d.name, err)
	}
	if err := t.write(regCtrl1, ctrl1PowerXYZ); err != nil {
		return sensor.NotResponding(d.name, err)
	}

	d.t = t
	return nil
}

// Sample reads the angular rate of all three axes in dps.
func (d *Dev) Sample(ctx context.Context) (sensor.Measurement, error) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.t == nil {
		return sensor.Measurement{}, sensor.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return sensor.Measurement{}, err
	}

	r, err := d.t.read(regOutX, 6)
	if err != nil {
		return sensor.Measurement{}, sensor.NotResponding(d.name, err)
	}

	scale := d.sensitivity / 1000.0
	v := sensor.Vector3{
		X: float64(int16(binary.LittleEndian.Uint16(r[0:2]))) * scale,
		Y: float64(int16(binary.LittleEndian.Uint16(r[2:4]))) * scale,
		Z: float64(int16(binary.LittleEndian.Uint16(r[4:6]))) * scale,
	}

	return sensor.Measurement{AngularRate: &v}, nil
}
