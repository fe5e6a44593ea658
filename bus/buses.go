// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"
)

var errAlreadyOpen = errors.New("already open")

// DefaultPorts maps the board buses onto the host names periph registers.
func DefaultPorts() map[ID]string {
	return map[ID]string{
		I2C1: "/dev/i2c-1",
		I2C2: "/dev/i2c-2",
		I2C3: "/dev/i2c-3",
		SPI1: "SPI0",
		SPI2: "SPI1",
	}
}

type opener interface {
	OpenI2C(string) (i2c.BusCloser, error)
	OpenSPI(string) (spi.PortCloser, error)
}

// Buses owns the buses enabled by a set of requirements.  Nothing is opened for
// a bus that is not required, and asking for one yields ErrBusUnavailable.
type Buses struct {
	m      sync.Mutex
	reqs   Requirements
	ports  map[ID]string
	opener opener
	open   bool
	i2c    map[ID]i2c.BusCloser
	spi    map[string]spi.PortCloser
}

// New prepares the buses.  ports names the host device behind each bus; for SPI
// buses it is the prefix to which the chip select number is appended.
func New(reqs Requirements, ports map[ID]string) *Buses {
	if ports == nil {
		ports = DefaultPorts()
	}
	return &Buses{
		reqs:   reqs,
		ports:  ports,
		opener: &hwOpener{},
		i2c:    make(map[ID]i2c.BusCloser),
		spi:    make(map[string]spi.PortCloser),
	}
}

// Open enables every required I2C bus.  SPI ports are opened per chip select
// the first time a device asks for them.
func (b *Buses) Open() error {
	b.m.Lock()
	defer b.m.Unlock()

	if b.open {
		return errAlreadyOpen
	}

	for _, id := range b.reqs.Enabled() {
		if id.Kind() != KindI2C {
			continue
		}
		name, ok := b.ports[id]
		if !ok {
			b.closeAll()
			return fmt.Errorf("%w: no port configured for %s", ErrBusUnavailable, id)
		}
		bus, err := b.opener.OpenI2C(name)
		if err != nil {
			b.closeAll()
			return fmt.Errorf("%w: %s (%s): %v", ErrBusUnavailable, id, name, err)
		}
		b.i2c[id] = bus
	}

	b.open = true
	return nil
}

// Enabled reports if the bus was required.
func (b *Buses) Enabled(id ID) bool {
	return b.reqs.Required(id)
}

// I2C returns the opened I2C bus.
func (b *Buses) I2C(id ID) (i2c.Bus, error) {
	b.m.Lock()
	defer b.m.Unlock()

	if id.Kind() != KindI2C || !b.reqs.Required(id) {
		return nil, fmt.Errorf("%w: %s is not enabled", ErrBusUnavailable, id)
	}

	bus, ok := b.i2c[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not open", ErrBusUnavailable, id)
	}
	return bus, nil
}

// SPI returns the port for a chip select on an enabled SPI bus.
func (b *Buses) SPI(id ID, cs int) (spi.Port, error) {
	b.m.Lock()
	defer b.m.Unlock()

	if id.Kind() != KindSPI || !b.reqs.Required(id) {
		return nil, fmt.Errorf("%w: %s is not enabled", ErrBusUnavailable, id)
	}
	if !b.open {
		return nil, fmt.Errorf("%w: %s is not open", ErrBusUnavailable, id)
	}

	prefix, ok := b.ports[id]
	if !ok {
		return nil, fmt.Errorf("%w: no port configured for %s", ErrBusUnavailable, id)
	}

	name := fmt.Sprintf("%s.%d", prefix, cs)
	if p, ok := b.spi[name]; ok {
		return p, nil
	}

	p, err := b.opener.OpenSPI(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrBusUnavailable, id, name, err)
	}
	b.spi[name] = p
	return p, nil
}

// Close releases everything opened, returning the first error seen.
func (b *Buses) Close() error {
	b.m.Lock()
	defer b.m.Unlock()

	err := b.closeAll()
	b.open = false
	return err
}

func (b *Buses) closeAll() (err error) {
	for id, bus := range b.i2c {
		if e := bus.Close(); e != nil && err == nil {
			err = e
		}
		delete(b.i2c, id)
	}
	for name, p := range b.spi {
		if e := p.Close(); e != nil && err == nil {
			err = e
		}
		delete(b.spi, name)
	}
	return err
}
