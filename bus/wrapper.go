// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// hwOpener reaches the host drivers registered with periph.  host.Init() must
// have been called first.
type hwOpener struct{}

func (hwOpener) OpenI2C(name string) (i2c.BusCloser, error) {
	return i2creg.Open(name)
}

func (hwOpener) OpenSPI(name string) (spi.PortCloser, error) {
	return spireg.Open(name)
}
