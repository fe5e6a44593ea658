// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockSensor struct {
	mock.Mock
	name string
}

func (m *mockSensor) Name() string {
	return m.name
}

func (m *mockSensor) Init(ctx context.Context) error {
	a := m.Called(ctx)
	return a.Error(0)
}

func (m *mockSensor) Sample(ctx context.Context) (Measurement, error) {
	a := m.Called(ctx)
	return a.Get(0).(Measurement), a.Error(1)
}
