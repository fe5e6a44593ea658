// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goschtalt/goschtalt"
	"github.com/schmidtw/imu-board/bus"
	"github.com/schmidtw/imu-board/tick"
)

const applicationName = "imu-board"

// CLI is the command line.
type CLI struct {
	Files []string `optional:"" short:"f" type:"existingfile" help:"Configuration files to apply, in order."`

	Run      runCmd      `cmd:"" default:"1" help:"Sample the sensors until stopped."`
	Validate validateCmd `cmd:"" help:"Check the board configuration without touching any hardware."`
	Config   configCmd   `cmd:"" help:"Show the effective configuration."`
}

type globals struct {
	cli *CLI
	out io.Writer
}

func (g *globals) config() (*goschtalt.Config, Config, error) {
	gs, err := newGoschtalt(g.cli.Files...)
	if err != nil {
		return nil, Config{}, err
	}

	cfg, err := loadConfig(gs)
	if err != nil {
		return nil, Config{}, err
	}
	return gs, cfg, nil
}

type runCmd struct{}

func (runCmd) Run(g *globals) error {
	_, cfg, err := g.config()
	if err != nil {
		return err
	}

	app := newApp(cfg)
	if err := app.Err(); err != nil {
		return err
	}

	app.Run()
	return nil
}

type validateCmd struct{}

// Run performs the same checks as startup: the bus plan, the conflict rules
// and whether the tick period can be programmed.
func (validateCmd) Run(g *globals) error {
	_, cfg, err := g.config()
	if err != nil {
		return err
	}

	p, err := newPlan(cfg.Board)
	if err != nil {
		for _, c := range bus.Conflicts(err) {
			fmt.Fprintf(g.out, "conflict: %s\n", c)
		}
		return err
	}

	fmt.Fprintf(g.out, "capabilities: %s\n", p.caps)
	fmt.Fprintf(g.out, "buses: %s\n", p.reqs)

	t, err := tick.New(tick.Config{
		CoreClock: cfg.Tick.CoreClock,
		Prescaler: cfg.Tick.Prescaler,
	})
	if err != nil {
		return err
	}

	reload, err := t.Reload(cfg.Tick.Period)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out, "tick: %s reload %d\n", cfg.Tick.Period, reload)

	return nil
}

type configCmd struct{}

func (configCmd) Run(g *globals) error {
	gs, _, err := g.config()
	if err != nil {
		return err
	}

	b, err := gs.Marshal(goschtalt.FormatAs("yml"))
	if err != nil {
		return err
	}

	_, err = g.out.Write(b)
	return err
}

func run(args []string, out io.Writer) error {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Name(applicationName),
		kong.Description("IMU board sampling service."),
		kong.UsageOnError(),
		kong.Writers(out, out),
	)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return ctx.Run(&globals{cli: &cli, out: out})
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
