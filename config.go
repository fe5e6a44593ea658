// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/goschtalt/casemapper"
	"github.com/goschtalt/goschtalt"
	"github.com/mitchellh/mapstructure"
	"github.com/schmidtw/imu-board/bus"
	"github.com/schmidtw/imu-board/capability"
	"github.com/schmidtw/imu-board/health"
	"github.com/schmidtw/imu-board/httpserver"
	"github.com/schmidtw/imu-board/indicator"
	"github.com/schmidtw/imu-board/metrics"
	"github.com/schmidtw/imu-board/sensor/stts751"
	"github.com/schmidtw/imu-board/tick"
	"github.com/schmidtw/imu-board/units"
	"github.com/xmidt-org/sallust"
	"periph.io/x/conn/v3/physic"

	_ "github.com/goschtalt/yaml-decoder"
	_ "github.com/goschtalt/yaml-encoder"
)

// Config is the whole application configuration.
type Config struct {
	Logger    sallust.Config
	Board     Board
	Sensors   Sensors
	Tick      Tick
	Health    health.Config
	Indicator indicator.Config
	Metrics   metrics.Opts
	Server    httpserver.Config
}

// Board describes what is populated and how it is wired.
type Board struct {
	// Variant is one of the shipped board variants.
	Variant string

	// Capabilities replaces the variant's capabilities when not empty.
	Capabilities []capability.Capability

	// Routes overrides the default capability to bus routing.
	Routes bus.Routes

	// Ports overrides the host device behind each bus.
	Ports map[bus.ID]string

	// Rules adds mutual exclusion rules to the built in ones.
	Rules []bus.Rule

	// RequireAllSensors makes any sensor failing to initialize fatal.
	// Otherwise the sensor is left offline and the rest keep sampling.
	RequireAllSensors bool
}

// Sensors configures the sensor drivers.
type Sensors struct {
	GyroRange     units.AngularRate
	GyroFrequency physic.Frequency

	// The chip selects of the gyroscopes when they sit on SPI.
	GyroPrimarySelect   int
	GyroSecondarySelect int

	// The addresses of the gyroscopes when they sit on I2C.
	GyroPrimaryAddress   uint16
	GyroSecondaryAddress uint16

	AccelRange units.Acceleration

	TemperatureAddress uint16
}

// Tick configures the periodic tick.
type Tick struct {
	Period    time.Duration
	CoreClock physic.Frequency
	Prescaler int

	// MaxRounds stops the application after this many rounds.  Zero runs
	// forever.
	MaxRounds uint64
}

var defaultConfig = Config{
	Logger: sallust.Config{
		Level:            "info",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	},
	Board: Board{
		Variant: "r2",
	},
	Sensors: Sensors{
		GyroRange:            250,
		GyroFrequency:        5 * physic.MegaHertz,
		GyroPrimarySelect:    0,
		GyroSecondarySelect:  1,
		GyroPrimaryAddress:   0x6b,
		GyroSecondaryAddress: 0x6a,
		AccelRange:           2,
		TemperatureAddress:   stts751.DefaultAddress,
	},
	Tick: Tick{
		Period:    400 * time.Millisecond,
		CoreClock: tick.DefaultCoreClock,
		Prescaler: 8,
	},
	Health: health.Config{
		Window:        time.Minute,
		MaxFailures:   20,
		MaxEventCount: 100,
	},
	Metrics: metrics.Opts{
		Namespace: "imu",
	},
	Server: httpserver.Config{
		Address:           ":9090",
		MetricsPath:       "/metrics",
		StatusPath:        "/status",
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
	},
}

// frequencyHook lets frequencies be written as "168MHz".
func frequencyHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(physic.Frequency(0)) {
		return data, nil
	}

	var f physic.Frequency
	if err := f.Set(data.(string)); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		frequencyHook,
	)
}

// newGoschtalt assembles the configuration from the built in defaults and the
// files given, later files overriding earlier ones.
func newGoschtalt(files ...string) (*goschtalt.Config, error) {
	opts := []goschtalt.Option{
		goschtalt.AutoCompile(),
		goschtalt.DefaultUnmarshalOptions(
			casemapper.ConfigStoredAs("two_words"),
			goschtalt.DecodeHook(decodeHook()),
		),
		goschtalt.DefaultValueOptions(casemapper.ConfigStoredAs("two_words")),
		goschtalt.AddValue("built-in", goschtalt.Root, defaultConfig, goschtalt.AsDefault()),
	}

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goschtalt.AddFiles(os.DirFS(filepath.Dir(abs)), filepath.Base(abs)))
	}

	return goschtalt.New(opts...)
}

func loadConfig(gs *goschtalt.Config) (Config, error) {
	cfg, err := goschtalt.Unmarshal[Config](gs, goschtalt.Root)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Server.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
