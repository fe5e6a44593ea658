// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports the sampling rounds as prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schmidtw/imu-board/scheduler"
	"github.com/schmidtw/imu-board/sensor"
	"periph.io/x/conn/v3/physic"
)

// Opts configures the metrics.
type Opts struct {
	// The Namespace of the metrics.
	Namespace string
}

// Metrics is a scheduler.Reporter and scheduler.Halter.
type Metrics struct {
	registry *prometheus.Registry

	rounds       prometheus.Counter
	overruns     prometheus.Counter
	lastRound    prometheus.Gauge
	state        prometheus.Gauge
	sampleErrors *prometheus.CounterVec
	angularRate  *prometheus.GaugeVec
	acceleration *prometheus.GaugeVec
	magnetic     *prometheus.GaugeVec
	temperature  *prometheus.GaugeVec
}

func New(opts Opts) *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: "scheduler",
			Name:      "rounds_total",
			Help:      "Completed sampling rounds.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: "scheduler",
			Name:      "overruns_total",
			Help:      "Rounds that took longer than the tick period.",
		}),
		lastRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: "scheduler",
			Name:      "last_round_timestamp_seconds",
			Help:      "Unix time the last round finished.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: "scheduler",
			Name:      "state",
			Help:      "Scheduler state (0 = uninitialized, 1 = armed, 2 = fault).",
		}),
		sampleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: "sensor",
			Name:      "sample_errors_total",
			Help:      "Failed samples per sensor.",
		}, []string{"role", "sensor"}),
		angularRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: "sensor",
			Name:      "angular_rate_dps",
			Help:      "Last angular rate in degrees per second.",
		}, []string{"role", "axis"}),
		acceleration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: "sensor",
			Name:      "acceleration_g",
			Help:      "Last acceleration in g.",
		}, []string{"role", "axis"}),
		magnetic: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: "sensor",
			Name:      "magnetic_field_gauss",
			Help:      "Last magnetic field in gauss.",
		}, []string{"role", "axis"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: "sensor",
			Name:      "temperature_celsius",
			Help:      "Last temperature in degrees celsius.",
		}, []string{"role"}),
	}

	m.registry.MustRegister(
		m.rounds,
		m.overruns,
		m.lastRound,
		m.state,
		m.sampleErrors,
		m.angularRate,
		m.acceleration,
		m.magnetic,
		m.temperature,
	)

	return &m
}

// Handler serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetState records the scheduler state.
func (m *Metrics) SetState(s scheduler.State) {
	m.state.Set(float64(s))
}

// Report records a finished round.
func (m *Metrics) Report(round scheduler.Round) {
	m.rounds.Inc()
	if round.Overrun {
		m.overruns.Inc()
	}
	m.state.Set(float64(scheduler.Armed))

	var last time.Time
	for _, r := range round.Results {
		role := r.Role.String()
		if r.Err != nil {
			m.sampleErrors.WithLabelValues(role, r.Name).Inc()
			continue
		}

		if r.Measurement.Time.After(last) {
			last = r.Measurement.Time
		}
		setVector(m.angularRate, role, r.Measurement.AngularRate)
		setVector(m.acceleration, role, r.Measurement.Acceleration)
		setVector(m.magnetic, role, r.Measurement.MagneticField)
		if t := r.Measurement.Temperature; t != nil {
			m.temperature.WithLabelValues(role).Set(float64(*t-physic.ZeroCelsius) / float64(physic.Kelvin))
		}
	}

	if !last.IsZero() {
		m.lastRound.Set(float64(last.UnixNano()) / float64(time.Second))
	}
}

// Halted records the fault.
func (m *Metrics) Halted(error) {
	m.state.Set(float64(scheduler.Fault))
}

func setVector(g *prometheus.GaugeVec, role string, v *sensor.Vector3) {
	if v == nil {
		return
	}
	g.WithLabelValues(role, "x").Set(v.X)
	g.WithLabelValues(role, "y").Set(v.Y)
	g.WithLabelValues(role, "z").Set(v.Z)
}
