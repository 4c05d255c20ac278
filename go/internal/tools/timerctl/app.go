package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/mcdev12/focustimer/go/internal/config"
	"github.com/mcdev12/focustimer/go/internal/timer"
)

const description = `timerctl drives the shared focus timer. Without --server every
invocation is its own timer context attached to the configured state store,
so it converges with any other context using the same slot.`

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "server, s",
		Usage: "control a running focus timer server at this URL instead of the local slot",
	},
	cli.StringFlag{
		Name:  "driver, d",
		Usage: "state store driver (memory, file, sqlite, postgres, nats)",
	},
	cli.StringFlag{
		Name:  "key, k",
		Usage: "state store key",
	},
	cli.StringFlag{
		Name:  "dir",
		Usage: "directory of the file driver",
	},
	cli.StringFlag{
		Name:  "sqlite-path",
		Usage: "database file of the sqlite driver",
	},
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "timerctl"
	app.HelpName = "timerctl"
	app.Usage = "control the focus timer"
	app.UsageText = "timerctl [global options] <command> [arguments...]"
	app.Description = description
	app.Writer = out
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		{
			Name:    "status",
			Aliases: []string{"st"},
			Usage:   "print the current timer state",
			Action:  withSession(printStatus),
		},
		{
			Name:   "start",
			Usage:  "start or resume the countdown",
			Action: withSession(doAction("start")),
		},
		{
			Name:   "pause",
			Usage:  "pause the countdown",
			Action: withSession(doAction("pause")),
		},
		{
			Name:   "toggle",
			Usage:  "pause if running, otherwise start",
			Action: withSession(doAction("toggle")),
		},
		{
			Name:   "reset",
			Usage:  "reload the active mode's full duration",
			Action: withSession(doAction("reset")),
		},
		{
			Name:      "mode",
			Usage:     "switch to the mode with the given minutes",
			ArgsUsage: "<minutes>",
			Action:    withSession(selectMode),
		},
		{
			Name:   "modes",
			Usage:  "list the selectable modes",
			Action: withSession(listModes),
		},
		{
			Name:  "watch",
			Usage: "show a progress bar until the timer expires",
			Flags: []cli.Flag{
				cli.DurationFlag{
					Name:  "interval, i",
					Usage: "refresh interval",
					Value: timer.DefaultConfig().TickInterval,
				},
			},
			Action: withSession(watch),
		},
	}
	return app
}

type sessionAction func(ctx context.Context, c *cli.Context, s session) error

// withSession opens the session named by the global flags around action.
func withSession(action sessionAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx := context.Background()
		s, err := openSession(ctx, c)
		if err != nil {
			return err
		}
		defer s.Close()
		return action(ctx, c, s)
	}
}

func openSession(ctx context.Context, c *cli.Context) (session, error) {
	if url := c.GlobalString("server"); url != "" {
		return openRemote(url), nil
	}
	cfg, err := config.Load(afero.NewOsFs())
	if err != nil {
		return nil, err
	}
	applyFlags(c, &cfg)
	return openLocal(ctx, cfg)
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if v := c.GlobalString("driver"); v != "" {
		cfg.Store.Driver = v
	}
	if v := c.GlobalString("key"); v != "" {
		cfg.Store.Key = v
	}
	if v := c.GlobalString("dir"); v != "" {
		cfg.Store.File.Dir = v
	}
	if v := c.GlobalString("sqlite-path"); v != "" {
		cfg.Store.SQLite.Path = v
	}
}

func printStatus(ctx context.Context, c *cli.Context, s session) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	printSnapshot(c.App.Writer, snap)
	return nil
}

func doAction(action string) sessionAction {
	return func(ctx context.Context, c *cli.Context, s session) error {
		snap, err := s.Do(ctx, action)
		if err != nil {
			return err
		}
		printSnapshot(c.App.Writer, snap)
		return nil
	}
}

func selectMode(ctx context.Context, c *cli.Context, s session) error {
	if c.NArg() != 1 {
		return errors.New("mode takes exactly one argument: <minutes>")
	}
	minutes, err := strconv.Atoi(c.Args().First())
	if err != nil || minutes <= 0 {
		return fmt.Errorf("invalid minutes %q", c.Args().First())
	}
	snap, err := s.SelectMode(ctx, minutes)
	if err != nil {
		return err
	}
	printSnapshot(c.App.Writer, snap)
	return nil
}

func listModes(ctx context.Context, c *cli.Context, s session) error {
	modes, err := s.Modes(ctx)
	if err != nil {
		return err
	}
	for _, m := range modes {
		marker := " "
		if m.Active {
			marker = "*"
		}
		fmt.Fprintf(c.App.Writer, "%s %3d min  %s\n", marker, m.Minutes, m.Name)
	}
	return nil
}

func printSnapshot(w io.Writer, snap timer.Snapshot) {
	fmt.Fprintf(w, "%-8s %s  (%d min mode)\n", snap.Status, snap.Display, snap.ActiveMinutes)
}
