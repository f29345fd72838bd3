// Package bots runs trading strategies. A strategy implements Bot, a Runner
// executes it once or on an interval loop, and a Registry maps bot labels to
// their factories for the command line entry point.
package bots

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"github.com/rob-Hitchens/trading-bots/config"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/store"
)

// Registry errors
var (
	ErrAlreadyRegistered = errors.New("bot label already registered")
	ErrUnknownBot        = errors.New("no bot registered with label")
)

// Env carries the process-wide dependencies a bot builds itself from
type Env struct {
	Settings *config.Settings
	Store    *store.Store
	Logger   *log.SubLogger
}

// DryRun reports whether trading side effects are disabled
func (e *Env) DryRun() bool {
	return e.Settings == nil || e.Settings.DryRun
}

// Timeout returns the per-request client timeout from the settings
func (e *Env) Timeout() time.Duration {
	if e.Settings == nil {
		return 0
	}
	return e.Settings.Timeout()
}

func (e *Env) logger() *log.SubLogger {
	if e.Logger == nil {
		return log.BotSys
	}
	return e.Logger
}

// Bot is the contract a trading strategy implements. Algorithm holds the
// strategy logic, Abort unwinds open state after a failed run and PostExecute
// always runs after a run ends.
type Bot interface {
	Label() string
	Algorithm(ctx context.Context) error
	Abort(ctx context.Context) error
	PostExecute(ctx context.Context) error
}

// Factory builds a configured bot from the environment
type Factory func(env *Env) (Bot, error)

// Registry maps bot labels to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty bot registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a bot factory under label
func (r *Registry) Register(label string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[label]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, "%q", label)
	}
	r.factories[label] = f
	return nil
}

// New builds the bot registered under label
func (r *Registry) New(label string, env *Env) (Bot, error) {
	r.mu.RLock()
	f, ok := r.factories[label]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBot, "%q", label)
	}
	bot, err := f(env)
	if err != nil {
		return nil, errors.Wrapf(err, "building bot %q", label)
	}
	return bot, nil
}

// Labels returns the registered bot labels sorted alphabetically
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.factories))
	for label := range r.factories {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Runner executes a bot, framing each run with a generated run id and
// duration logging
type Runner struct {
	bot    Bot
	logger *log.SubLogger
	dryRun bool
}

// NewRunner returns a runner for the bot in the environment
func NewRunner(bot Bot, env *Env) *Runner {
	return &Runner{bot: bot, logger: env.logger(), dryRun: env.DryRun()}
}

// RunOnce executes a single bot run. A failed Algorithm triggers Abort, and
// PostExecute runs regardless of the outcome.
func (r *Runner) RunOnce(ctx context.Context) (err error) {
	runID := uuid.Must(uuid.NewV4())
	start := time.Now()
	log.Infof(r.logger, "Starting %s run %s: %s",
		r.bot.Label(), runID, start.UTC().Format(time.RFC3339))
	if r.dryRun {
		log.Warnf(r.logger, "Dry run!")
	}

	defer func() {
		log.Infof(r.logger, "Run time: %.4f seconds", time.Since(start).Seconds())
		log.Infof(r.logger, "Ending %s run %s", r.bot.Label(), runID)
		if postErr := r.bot.PostExecute(ctx); postErr != nil {
			log.Errorf(r.logger, "Post execution failed: %v", postErr)
			if err == nil {
				err = errors.Wrapf(postErr, "%s run %s post execution", r.bot.Label(), runID)
			}
		}
	}()

	if err := r.bot.Algorithm(ctx); err != nil {
		log.Errorf(r.logger, "Bot entered an invalid state: %v", err)
		if abortErr := r.bot.Abort(ctx); abortErr != nil {
			log.Errorf(r.logger, "Failed to abort: %v", abortErr)
		}
		return errors.Wrapf(err, "%s run %s", r.bot.Label(), runID)
	}
	return nil
}

// Loop executes the bot on a fixed interval until the context is cancelled
// or a run fails. The first run starts immediately.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := r.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
