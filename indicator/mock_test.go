// SPDX-FileCopyrightText: 2022 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package indicator

import (
	"io"
	"time"

	"github.com/schmidtw/imu-board/bus"
	"github.com/stretchr/testify/mock"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/tca95xx"
)

type mockWrapper struct {
	mock.Mock
}

func (m *mockWrapper) ByName(name string) gpio.PinIO {
	a := m.Called(name)
	if p, ok := a.Get(0).(gpio.PinIO); ok {
		return p
	}
	return nil
}

func (m *mockWrapper) Expander(b i2c.Bus, addr uint16) ([][]tca95xx.Pin, io.Closer, error) {
	a := m.Called(b, addr)
	pins, _ := a.Get(0).([][]tca95xx.Pin)
	closer, _ := a.Get(1).(io.Closer)
	return pins, closer, a.Error(2)
}

type mockCloser struct {
	mock.Mock
}

func (m *mockCloser) Close() error {
	a := m.Called()
	return a.Error(0)
}

type mockBuses struct {
	mock.Mock
}

func (m *mockBuses) I2C(id bus.ID) (i2c.Bus, error) {
	a := m.Called(id)
	b, _ := a.Get(0).(i2c.Bus)
	return b, a.Error(1)
}

// Mocking tca95xx.Pin

type mockPinIO struct {
	mock.Mock
}

func (m *mockPinIO) Name() string {
	a := m.Called()
	return a.String(0)
}

func (m *mockPinIO) String() string {
	a := m.Called()
	return a.String(0)
}

func (m *mockPinIO) Number() int {
	a := m.Called()
	return a.Int(0)
}

func (m *mockPinIO) Function() string {
	a := m.Called()
	return a.String(0)
}

func (m *mockPinIO) In(pull gpio.Pull, edge gpio.Edge) error {
	a := m.Called(pull, edge)
	return a.Error(0)
}

func (m *mockPinIO) Read() gpio.Level {
	a := m.Called()
	return a.Get(0).(gpio.Level)
}

func (m *mockPinIO) WaitForEdge(timeout time.Duration) bool {
	a := m.Called(timeout)
	return a.Bool(0)
}

func (m *mockPinIO) Pull() gpio.Pull {
	a := m.Called()
	return a.Get(0).(gpio.Pull)
}

func (m *mockPinIO) DefaultPull() gpio.Pull {
	a := m.Called()
	return a.Get(0).(gpio.Pull)
}

func (m *mockPinIO) Out(l gpio.Level) error {
	a := m.Called(l)
	return a.Error(0)
}

func (m *mockPinIO) PWM(duty gpio.Duty, f physic.Frequency) error {
	a := m.Called(duty, f)
	return a.Error(0)
}

func (m *mockPinIO) SetPolarityInverted(p bool) error {
	a := m.Called(p)
	return a.Error(0)
}

func (m *mockPinIO) IsPolarityInverted() (bool, error) {
	a := m.Called()
	return a.Bool(0), a.Error(1)
}

func (m *mockPinIO) Halt() error {
	a := m.Called()
	return a.Error(0)
}
