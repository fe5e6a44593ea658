// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package lsm303 is the handle for the ST LSM303DLHC accelerometer and
// magnetometer pair on I2C.
package lsm303

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/schmidtw/imu-board/sensor"
	"github.com/schmidtw/imu-board/units"
	"periph.io/x/conn/v3/i2c"
)

const (
	AccelAddress = 0x19
	MagAddress   = 0x1e

	regCtrl1A = 0x20
	regCtrl4A = 0x23
	regOutXA  = 0x28
	autoInc   = 0x80

	regCRAM  = 0x00
	regCRBM  = 0x01
	regMRM   = 0x02
	regOutXM = 0x03
	regIRAM  = 0x0a

	idIRAM = 0x48 // 'H'

	ctrl1A100HzXYZ = 0x57
	ctrl4AHighRes  = 0x08
	craM30Hz       = 0x14
	crbM1300mGauss = 0x20
	mrMContinuous  = 0x00

	// LSB/gauss at ±1.3 gauss
	gainXY = 1100.0
	gainZ  = 980.0
)

var ErrInvalidRange = errors.New("invalid range")

// full scale selection and sensitivity in mg/LSB (12 bit, high resolution)
var ranges = []struct {
	max         units.Acceleration
	fs          byte
	sensitivity float64
}{
	{max: 2, fs: 0x00, sensitivity: 1},
	{max: 4, fs: 0x10, sensitivity: 2},
	{max: 8, fs: 0x20, sensitivity: 4},
	{max: 16, fs: 0x30, sensitivity: 12},
}

// Opts configures the pair.
type Opts struct {
	// Range is the accelerometer full scale; 2g, 4g, 8g or 16g.  Defaults to 2g.
	Range units.Acceleration

	// AccelAddress and MagAddress default to the fixed chip addresses.
	AccelAddress uint16
	MagAddress   uint16
}

// Dev is one LSM303 package.
type Dev struct {
	m           sync.Mutex
	name        string
	bus         func() (i2c.Bus, error)
	fs          byte
	sensitivity float64
	accel       *i2c.Dev
	mag         *i2c.Dev
	opts        Opts
}

// New creates the handle.  bus is called during Init to reach the bus.
func New(name string, bus func() (i2c.Bus, error), opts Opts) (*Dev, error) {
	if opts.Range == 0 {
		opts.Range = 2
	}
	if opts.AccelAddress == 0 {
		opts.AccelAddress = AccelAddress
	}
	if opts.MagAddress == 0 {
		opts.MagAddress = MagAddress
	}

	d := Dev{
		name: name,
		bus:  bus,
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
	return "LSM303{" + d.name + "}"
}

// Init checks the magnetometer identity and starts continuous conversion on
// both halves.
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

	accel := &i2c.Dev{Bus: b, Addr: d.opts.AccelAddress}
	mag := &i2c.Dev{Bus: b, Addr: d.opts.MagAddress}

	id := make([]byte, 1)
	if err := mag.Tx([]byte{regIRAM}, id); err != nil {
		return sensor.NotResponding(d.name, err)
	}
	if id[0] != idIRAM {
		return sensor.NotResponding(d.name, fmt.Errorf("unexpected id 0x%02x", id[0]))
	}

	writes := []struct {
		dev *i2c.Dev
		w   []byte
	}{
		{dev: accel, w: []byte{regCtrl1A, ctrl1A100HzXYZ}},
		{dev: accel, w: []byte{regCtrl4A, d.fs | ctrl4AHighRes}},
		{dev: mag, w: []byte{regCRAM, craM30Hz}},
		{dev: mag, w: []byte{regCRBM, crbM1300mGauss}},
		{dev: mag, w: []byte{regMRM, mrMContinuous}},
	}
	for _, wr := range writes {
		if err := wr.dev.Tx(wr.w, nil); err != nil {
			return sensor.NotResponding(d.name, err)
		}
	}

	d.accel = accel
	d.mag = mag
	return nil
}

// Sample reads acceleration in g and the magnetic field in gauss.
func (d *Dev) Sample(ctx context.Context) (sensor.Measurement, error) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.accel == nil {
		return sensor.Measurement{}, sensor.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return sensor.Measurement{}, err
	}

	r := make([]byte, 6)
	if err := d.accel.Tx([]byte{regOutXA | autoInc}, r); err != nil {
		return sensor.Measurement{}, sensor.NotResponding(d.name, err)
	}

	// left justified 12 bit values
	scale := d.sensitivity / 1000.0
	accel := sensor.Vector3{
		X: float64(int16(binary.LittleEndian.Uint16(r[0:2]))>>4) * scale,
		Y: float64(int16(binary.LittleEndian.Uint16(r[2:4]))>>4) * scale,
		Z: float64(int16(binary.LittleEndian.Uint16(r[4:6]))>>4) * scale,
	}

	if err := d.mag.Tx([]byte{regOutXM}, r); err != nil {
		return sensor.Measurement{}, sensor.NotResponding(d.name, err)
	}

	// big endian, in X, Z, Y order
	mag := sensor.Vector3{
		X: float64(int16(binary.BigEndian.Uint16(r[0:2]))) / gainXY,
		Z: float64(int16(binary.BigEndian.Uint16(r[2:4]))) / gainZ,
		Y: float64(int16(binary.BigEndian.Uint16(r[4:6]))) / gainXY,
	}

	return sensor.Measurement{
		Acceleration:  &accel,
		MagneticField: &mag,
	}, nil
}
