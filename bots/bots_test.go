package bots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rob-Hitchens/trading-bots/config"
)

type fakeBot struct {
	algorithmErr error
	postErr      error
	runs         int
	aborts       int
	posts        int
}

func (b *fakeBot) Label() string { return "Fake" }

func (b *fakeBot) Algorithm(context.Context) error {
	b.runs++
	return b.algorithmErr
}

func (b *fakeBot) Abort(context.Context) error {
	b.aborts++
	return nil
}

func (b *fakeBot) PostExecute(context.Context) error {
	b.posts++
	return b.postErr
}

func TestRunOnce(t *testing.T) {
	bot := &fakeBot{}
	runner := NewRunner(bot, &Env{})

	require.NoError(t, runner.RunOnce(context.Background()))
	assert.Equal(t, 1, bot.runs)
	assert.Zero(t, bot.aborts)
	assert.Equal(t, 1, bot.posts, "post execution must always run")
}

func TestRunOnceAbortsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	bot := &fakeBot{algorithmErr: boom}
	runner := NewRunner(bot, &Env{})

	err := runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, bot.aborts)
	assert.Equal(t, 1, bot.posts, "post execution must run after a failed run")
}

func TestRunOnceReportsPostExecuteFailure(t *testing.T) {
	boom := errors.New("post boom")
	bot := &fakeBot{postErr: boom}
	runner := NewRunner(bot, &Env{})

	assert.ErrorIs(t, runner.RunOnce(context.Background()), boom)
}

func TestLoopStopsOnCancel(t *testing.T) {
	bot := &fakeBot{}
	runner := NewRunner(bot, &Env{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runner.Loop(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, bot.runs, "the first run starts before the interval wait")
}

func TestLoopStopsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	bot := &fakeBot{algorithmErr: boom}
	runner := NewRunner(bot, &Env{})

	err := runner.Loop(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, bot.runs)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("Fake", func(*Env) (Bot, error) {
		return &fakeBot{}, nil
	}))
	require.NoError(t, reg.Register("Other", func(*Env) (Bot, error) {
		return &fakeBot{}, nil
	}))

	assert.ErrorIs(t, reg.Register("Fake", nil), ErrAlreadyRegistered)
	assert.Equal(t, []string{"Fake", "Other"}, reg.Labels())

	bot, err := reg.New("Fake", &Env{})
	require.NoError(t, err)
	assert.Equal(t, "Fake", bot.Label())

	_, err = reg.New("Missing", &Env{})
	assert.ErrorIs(t, err, ErrUnknownBot)
}

func TestEnvDefaults(t *testing.T) {
	env := &Env{}
	assert.True(t, env.DryRun(), "an empty environment must stay safe")
	assert.Zero(t, env.Timeout())

	env.Settings = &config.Settings{DryRun: false, TimeoutSeconds: 30}
	assert.False(t, env.DryRun())
	assert.Equal(t, 30*time.Second, env.Timeout())
}
