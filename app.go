// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/schmidtw/imu-board/bus"
	"github.com/schmidtw/imu-board/capability"
	"github.com/schmidtw/imu-board/health"
	"github.com/schmidtw/imu-board/httpserver"
	"github.com/schmidtw/imu-board/indicator"
	"github.com/schmidtw/imu-board/metrics"
	"github.com/schmidtw/imu-board/scheduler"
	"github.com/schmidtw/imu-board/sensor"
	"github.com/schmidtw/imu-board/status"
	"github.com/schmidtw/imu-board/tick"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"periph.io/x/host/v3"
)

// newApp wires the application together.  Nothing touches hardware until the
// application is started.
func newApp(cfg Config) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			newPlanFromConfig,
			provideBuses,
			provideRegistry,
			provideTimer,
			provideIndicator,
			provideMetrics,
			provideStatus,
			provideHealth,
			provideScheduler,
			provideRoutes,
			func(c Config) httpserver.Config {
				return c.Server
			},
			httpserver.New,
		),
		fx.Invoke(
			func(*http.Server) {},
			startLoop,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

func provideLogger(cfg Config) (*zap.Logger, error) {
	return cfg.Logger.Build()
}

func newPlanFromConfig(cfg Config, log *zap.Logger) (plan, error) {
	p, err := newPlan(cfg.Board)
	if err != nil {
		for _, c := range bus.Conflicts(err) {
			log.Error("bus conflict", zap.Stringer("a", c.A), zap.Stringer("b", c.B))
		}
		return plan{}, err
	}

	log.Info("board",
		zap.Stringer("capabilities", p.caps),
		zap.Stringer("buses", p.reqs))
	return p, nil
}

func provideBuses(lc fx.Lifecycle, p plan, cfg Config, log *zap.Logger) (*bus.Buses, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	ports := bus.DefaultPorts()
	for id, name := range cfg.Board.Ports {
		ports[id] = name
	}

	b := bus.New(p.reqs, ports)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("opening buses", zap.Stringer("buses", p.reqs))
			return b.Open()
		},
		OnStop: func(context.Context) error {
			log.Info("closing buses")
			return b.Close()
		},
	})

	return b, nil
}

func provideRegistry(p plan, cfg Config, b *bus.Buses) (*sensor.Registry, error) {
	return sensor.NewRegistry(p.caps, newFactory(cfg.Sensors, p.routes, b))
}

func provideTimer(cfg Config) (*tick.Timer, error) {
	return tick.New(tick.Config{
		CoreClock: cfg.Tick.CoreClock,
		Prescaler: cfg.Tick.Prescaler,
	})
}

func provideIndicator(lc fx.Lifecycle, cfg Config, b *bus.Buses, log *zap.Logger) *indicator.Indicator {
	ind := indicator.New(cfg.Indicator)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// The board runs fine without its LEDs.
			if err := ind.Start(b); err != nil {
				log.Warn("status LEDs unavailable", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return ind.Stop()
		},
	})
	return ind
}

func provideMetrics(cfg Config) *metrics.Metrics {
	return metrics.New(cfg.Metrics)
}

func provideStatus(p plan) *status.Status {
	return status.New(p.caps, p.reqs)
}

func provideHealth(cfg Config, reg *sensor.Registry, log *zap.Logger) (*health.Tracker, error) {
	return health.New(cfg.Health, func(role capability.Capability, failures int) {
		log.Warn("taking sensor offline",
			zap.Stringer("role", role),
			zap.Int("failures", failures),
			zap.Duration("window", cfg.Health.Window))
		if err := reg.SetOnline(role, false); err != nil {
			log.Error("unable to take sensor offline", zap.Stringer("role", role), zap.Error(err))
		}
	})
}

type schedulerIn struct {
	fx.In

	Config    Config
	Timer     *tick.Timer
	Registry  *sensor.Registry
	Logger    *zap.Logger
	Indicator *indicator.Indicator
	Metrics   *metrics.Metrics
	Status    *status.Status
	Health    *health.Tracker
}

func provideScheduler(in schedulerIn) (*scheduler.Scheduler, error) {
	return scheduler.New(
		scheduler.Config{
			Period:    in.Config.Tick.Period,
			MaxRounds: in.Config.Tick.MaxRounds,
		},
		in.Timer,
		in.Registry,
		in.Logger,
		in.Indicator,
		in.Metrics,
		in.Status,
		in.Health,
	)
}

func provideRoutes(cfg Config, m *metrics.Metrics, st *status.Status) httpserver.Routes {
	return httpserver.Routes{
		Metrics: m.Handler(),
		Status:  st.Handler(cfg.Server.StatusPath, time.Second),
	}
}

type loopIn struct {
	fx.In

	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     Config
	Logger     *zap.Logger
	Registry   *sensor.Registry
	Scheduler  *scheduler.Scheduler
	Metrics    *metrics.Metrics
	Status     *status.Status
}

func startLoop(in loopIn) {
	l := &loop{
		log:        in.Logger,
		registry:   in.Registry,
		sched:      in.Scheduler,
		requireAll: in.Config.Board.RequireAllSensors,
		shutdowner: in.Shutdowner,
		states:     []stateSetter{in.Metrics, in.Status},
	}

	in.LC.Append(fx.Hook{
		OnStart: l.start,
		OnStop:  l.stop,
	})
}

type stateSetter interface {
	SetState(scheduler.State)
}

// loop runs the scheduler between application start and stop.
type loop struct {
	log        *zap.Logger
	registry   *sensor.Registry
	sched      *scheduler.Scheduler
	requireAll bool
	shutdowner fx.Shutdowner
	states     []stateSetter

	cancel context.CancelFunc
	done   chan struct{}
}

func (l *loop) setState(s scheduler.State) {
	for _, ss := range l.states {
		ss.SetState(s)
	}
}

func (l *loop) start(ctx context.Context) error {
	results, err := l.registry.Init(ctx)
	for _, r := range results {
		if r.Err != nil {
			l.log.Error("sensor failed to initialize, left offline",
				zap.String("sensor", r.Name),
				zap.Stringer("role", r.Role),
				zap.Error(r.Err))
			continue
		}
		l.log.Info("sensor ready", zap.String("sensor", r.Name), zap.Stringer("role", r.Role))
	}
	if err != nil && l.requireAll {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	if err := l.sched.Start(); err != nil {
		l.setState(scheduler.Fault)
		go func() {
			defer close(l.done)
			l.sched.Halt(runCtx, err)
		}()
		return nil
	}
	l.setState(scheduler.Armed)

	go func() {
		defer close(l.done)

		err := l.sched.Run(runCtx)
		if runCtx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Error("sampling stopped", zap.Error(err))
		} else {
			l.log.Info("sampling finished", zap.Uint64("rounds", l.sched.Rounds()))
		}
		_ = l.shutdowner.Shutdown()
	}()

	return nil
}

func (l *loop) stop(ctx context.Context) error {
	if l.cancel != nil {
		l.cancel()
		select {
		case <-l.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.sched.Stop()
	if l.sched.State() != scheduler.Fault {
		l.setState(scheduler.Uninitialized)
	}
	return nil
}
