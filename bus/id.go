// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package bus derives which shared buses a board needs, rejects impossible
// combinations and opens the buses that remain.
package bus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownBus     = errors.New("unknown bus")
	ErrInvalidRoute   = errors.New("invalid route")
	ErrConflict       = errors.New("bus conflict")
	ErrBusUnavailable = errors.New("bus unavailable")
)

// Kind is the transport family of a bus.
type Kind int

const (
	KindI2C Kind = iota
	KindSPI
	KindSDIO
)

func (k Kind) String() string {
	switch k {
	case KindI2C:
		return "i2c"
	case KindSPI:
		return "spi"
	case KindSDIO:
		return "sdio"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ID names one shared bus, or pin set, on the board.
type ID int

const (
	I2C1 ID = iota // bus A: temperature + primary mag/accel
	I2C2           // bus B: secondary mag/accel
	I2C3           // bus C: reserved, shares pins with SDIO
	SPI1           // bus D: both gyroscopes
	SPI2           // bus E: unused
	SDIO

	idCount
)

var ids = [idCount]struct {
	name string
	kind Kind
}{
	I2C1: {name: "i2c1", kind: KindI2C},
	I2C2: {name: "i2c2", kind: KindI2C},
	I2C3: {name: "i2c3", kind: KindI2C},
	SPI1: {name: "spi1", kind: KindSPI},
	SPI2: {name: "spi2", kind: KindSPI},
	SDIO: {name: "sdio", kind: KindSDIO},
}

// IDs returns every bus in a stable order.
func IDs() []ID {
	out := make([]ID, 0, idCount)
	for id := ID(0); id < idCount; id++ {
		out = append(out, id)
	}
	return out
}

// ParseID converts a bus name into an ID.
func ParseID(s string) (ID, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	known := make([]string, 0, idCount)
	for id := ID(0); id < idCount; id++ {
		if ids[id].name == want {
			return id, nil
		}
		known = append(known, ids[id].name)
	}

	return 0, fmt.Errorf("%w: '%s' valid: %s", ErrUnknownBus, s, strings.Join(known, ", "))
}

func (id ID) valid() bool {
	return id >= 0 && id < idCount
}

// Kind returns the transport family of the bus.
func (id ID) Kind() Kind {
	if !id.valid() {
		return Kind(-1)
	}
	return ids[id].kind
}

func (id ID) String() string {
	if !id.valid() {
		return fmt.Sprintf("bus(%d)", int(id))
	}
	return ids[id].name
}

func (id ID) MarshalText() ([]byte, error) {
	if !id.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBus, int(id))
	}
	return []byte(ids[id].name), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	v, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
