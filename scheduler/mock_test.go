// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/schmidtw/imu-board/sensor"
	"github.com/stretchr/testify/mock"
)

type mockWaiter struct {
	mock.Mock
}

func (m *mockWaiter) Start(period time.Duration) error {
	a := m.Called(period)
	return a.Error(0)
}

func (m *mockWaiter) Wait(ctx context.Context, n uint64) error {
	a := m.Called(ctx, n)
	return a.Error(0)
}

func (m *mockWaiter) Ticks() uint64 {
	a := m.Called()
	return a.Get(0).(uint64)
}

func (m *mockWaiter) Stop() {
	m.Called()
}

type mockSampler struct {
	mock.Mock
}

func (m *mockSampler) Round(ctx context.Context) []sensor.Result {
	a := m.Called(ctx)
	return a.Get(0).([]sensor.Result)
}

type recorder struct {
	m      sync.Mutex
	rounds []Round
	halted []error
}

func (r *recorder) Report(round Round) {
	r.m.Lock()
	defer r.m.Unlock()
	r.rounds = append(r.rounds, round)
}

func (r *recorder) Halted(err error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.halted = append(r.halted, err)
}
