// SPDX-FileCopyrightText: 2022 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package indicator

import (
	"io"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/tca95xx"
)

type hwWrapper struct{}

func (hwWrapper) ByName(name string) gpio.PinIO {
	return gpioreg.ByName(name)
}

func (hwWrapper) Expander(b i2c.Bus, addr uint16) ([][]tca95xx.Pin, io.Closer, error) {
	dev, err := tca95xx.New(b, tca95xx.TCA9534, addr)
	if err != nil {
		return nil, nil, err
	}

	return dev.Pins, dev, nil
}
