// Command tradingbots runs the bots installed in this repository against the
// settings file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rob-Hitchens/trading-bots/bots"
	"github.com/rob-Hitchens/trading-bots/config"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/store"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Errorln(log.Global, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tradingbots",
		Usage: "run cryptocurrency trading bots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "settings.yml",
				Usage:   "path to the settings file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "execute a bot once or on an interval loop",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "bot",
						Aliases:  []string{"b"},
						Usage:    "label of the bot to run",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "loop",
						Usage: "keep running on a fixed interval",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Value: 5 * time.Minute,
						Usage: "loop interval",
					},
				},
				Action: runBot,
			},
			{
				Name:  "abort",
				Usage: "run a bot's abort routine without executing it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "bot",
						Aliases:  []string{"b"},
						Usage:    "label of the bot to abort",
						Required: true,
					},
				},
				Action: abortBot,
			},
			{
				Name:   "list",
				Usage:  "list the installed bots",
				Action: listBots,
			},
		},
	}
}

// environment builds the shared bot environment from the settings file
func environment(c *cli.Context) (*bots.Env, func(), error) {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(settings.Storage)
	if err != nil {
		return nil, nil, err
	}
	env := &bots.Env{Settings: settings, Store: st, Logger: log.BotSys}
	return env, func() { st.Close() }, nil
}

func runBot(c *cli.Context) error {
	reg, err := installedBots()
	if err != nil {
		return err
	}
	env, cleanup, err := environment(c)
	if err != nil {
		return err
	}
	defer cleanup()

	bot, err := reg.New(c.String("bot"), env)
	if err != nil {
		return err
	}
	runner := bots.NewRunner(bot, env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool("loop") {
		return runner.Loop(ctx, c.Duration("interval"))
	}
	return runner.RunOnce(ctx)
}

func abortBot(c *cli.Context) error {
	reg, err := installedBots()
	if err != nil {
		return err
	}
	env, cleanup, err := environment(c)
	if err != nil {
		return err
	}
	defer cleanup()

	bot, err := reg.New(c.String("bot"), env)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Warnf(log.BotSys, "Aborting bot %s", bot.Label())
	return bot.Abort(ctx)
}

func listBots(c *cli.Context) error {
	reg, err := installedBots()
	if err != nil {
		return err
	}
	for _, label := range reg.Labels() {
		fmt.Fprintln(c.App.Writer, label)
	}
	return nil
}
