// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package status keeps the latest round and serves it over http.
package status

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/schmidtw/imu-board/bus"
	"github.com/schmidtw/imu-board/capability"
	"github.com/schmidtw/imu-board/scheduler"
	"github.com/schmidtw/imu-board/sensor"
	"periph.io/x/conn/v3/physic"
)

// Reading is one sensor's part of a round.
type Reading struct {
	Role          string          `json:"role"`
	Name          string          `json:"name"`
	Time          *time.Time      `json:"time,omitempty"`
	AngularRate   *sensor.Vector3 `json:"angular_rate_dps,omitempty"`
	Acceleration  *sensor.Vector3 `json:"acceleration_g,omitempty"`
	MagneticField *sensor.Vector3 `json:"magnetic_field_gauss,omitempty"`
	Temperature   *float64        `json:"temperature_celsius,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Snapshot is what /status returns.
type Snapshot struct {
	State        string    `json:"state"`
	Capabilities []string  `json:"capabilities"`
	Buses        []string  `json:"buses"`
	Round        uint64    `json:"round"`
	Tick         uint64    `json:"tick"`
	Overrun      bool      `json:"overrun"`
	Overruns     uint64    `json:"overruns"`
	Halted       string    `json:"halted,omitempty"`
	Sensors      []Reading `json:"sensors"`
}

// Status is a scheduler.Reporter and scheduler.Halter.
type Status struct {
	m        sync.Mutex
	snapshot Snapshot
}

// New creates the status for a board with the given capabilities and buses.
func New(caps capability.Set, reqs bus.Requirements) *Status {
	s := Status{
		snapshot: Snapshot{
			State:        scheduler.Uninitialized.String(),
			Capabilities: []string{},
			Buses:        []string{},
			Sensors:      []Reading{},
		},
	}

	for _, c := range caps.List() {
		s.snapshot.Capabilities = append(s.snapshot.Capabilities, c.String())
	}
	for _, id := range reqs.Enabled() {
		s.snapshot.Buses = append(s.snapshot.Buses, id.String())
	}

	return &s
}

// SetState records the scheduler state.
func (s *Status) SetState(state scheduler.State) {
	s.m.Lock()
	defer s.m.Unlock()

	s.snapshot.State = state.String()
}

// Report keeps the round.
func (s *Status) Report(round scheduler.Round) {
	readings := make([]Reading, 0, len(round.Results))
	for _, r := range round.Results {
		readings = append(readings, toReading(r))
	}

	s.m.Lock()
	defer s.m.Unlock()

	s.snapshot.State = scheduler.Armed.String()
	s.snapshot.Round = round.Number
	s.snapshot.Tick = round.Tick
	s.snapshot.Overrun = round.Overrun
	if round.Overrun {
		s.snapshot.Overruns++
	}
	s.snapshot.Sensors = readings
}

// Halted records the fault.
func (s *Status) Halted(err error) {
	s.m.Lock()
	defer s.m.Unlock()

	s.snapshot.State = scheduler.Fault.String()
	if err != nil {
		s.snapshot.Halted = err.Error()
	}
}

// Snapshot returns a copy of the present status.
func (s *Status) Snapshot() Snapshot {
	s.m.Lock()
	defer s.m.Unlock()

	snap := s.snapshot
	snap.Capabilities = append([]string{}, s.snapshot.Capabilities...)
	snap.Buses = append([]string{}, s.snapshot.Buses...)
	snap.Sensors = append([]Reading{}, s.snapshot.Sensors...)
	return snap
}

func toReading(r sensor.Result) Reading {
	out := Reading{
		Role: r.Role.String(),
		Name: r.Name,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		return out
	}

	m := r.Measurement
	if !m.Time.IsZero() {
		when := m.Time
		out.Time = &when
	}
	out.AngularRate = m.AngularRate
	out.Acceleration = m.Acceleration
	out.MagneticField = m.MagneticField
	if m.Temperature != nil {
		c := float64(*m.Temperature-physic.ZeroCelsius) / float64(physic.Kelvin)
		out.Temperature = &c
	}
	return out
}

//go:embed index.gohtml
var index string

var indexTemplate = template.Must(template.New("index").Parse(index))

// Handler serves the JSON snapshot on statusPath and a small page that polls
// it on "/".  An empty statusPath means "/status"; when it is "/" only the
// JSON is served.
func (s *Status) Handler(statusPath string, refresh time.Duration) http.Handler {
	if statusPath == "" {
		statusPath = "/status"
	}

	mux := http.NewServeMux()

	mux.HandleFunc(statusPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	})

	if statusPath == "/" {
		return mux
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		snap := s.Snapshot()
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_ = indexTemplate.Execute(w, struct {
			Title         string
			Capabilities  []string
			Buses         []string
			StatusPath    string
			RefreshMillis int64
		}{
			Title:         "imu-board",
			Capabilities:  snap.Capabilities,
			Buses:         snap.Buses,
			StatusPath:    statusPath,
			RefreshMillis: refresh.Milliseconds(),
		})
	})

	return mux
}
