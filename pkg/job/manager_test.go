package job

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_NilPool(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil)
	require.ErrorIs(t, err, ErrPoolRequired)
	require.ErrorIs(t, Migrate(context.Background(), nil, nil), ErrPoolRequired)
}

func TestParseCronSchedule(t *testing.T) {
	t.Parallel()

	valid := []string{"* * * * *", "0 * * * *", "0 0 * * 0", "*/15 * * * *", "30 14 * * *"}
	for _, expr := range valid {
		t.Run(expr, func(t *testing.T) {
			t.Parallel()

			schedule, err := parseCronSchedule(expr)
			require.NoError(t, err)
			now := time.Now()
			assert.True(t, schedule.Next(now).After(now))
		})
	}

	invalid := []struct {
		name string
		expr string
	}{
		{name: "empty", expr: ""},
		{name: "too few fields", expr: "* * *"},
		{name: "seconds field", expr: "* * * * * *"},
		{name: "invalid minute", expr: "60 * * * *"},
		{name: "invalid weekday", expr: "* * * * 8"},
		{name: "garbage", expr: "hourly please"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseCronSchedule(tt.expr)
			require.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}

	t.Run("hourly schedule fires on the hour", func(t *testing.T) {
		t.Parallel()

		schedule, err := parseCronSchedule("0 * * * *")
		require.NoError(t, err)

		base := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
		next := schedule.Next(base)
		assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), next)
		assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), schedule.Next(next))
	})
}

type countingTask struct {
	name  string
	calls int
	err   error
}

func (t *countingTask) Name() string     { return t.name }
func (t *countingTask) Schedule() string { return "0 * * * *" }
func (t *countingTask) Handle(context.Context) error {
	t.calls++
	return t.err
}

func TestManagerRun(t *testing.T) {
	t.Parallel()

	ok := &countingTask{name: "ok"}
	failing := &countingTask{name: "failing", err: errors.New("store down")}

	cfg := &config{}
	WithScheduledTask(ok)(cfg)
	WithScheduledTask(failing)(cfg)
	require.Len(t, cfg.tasks, 2)

	m := &Manager{
		tasks:  map[string]func(context.Context) error{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, task := range cfg.tasks {
		m.tasks[task.name] = task.handler
	}

	require.NoError(t, m.run(t.Context(), "ok", 1))
	assert.Equal(t, 1, ok.calls)

	err := m.run(t.Context(), "failing", 2)
	require.ErrorIs(t, err, failing.err)
	assert.Equal(t, 1, failing.calls)

	require.ErrorIs(t, m.run(t.Context(), "missing", 1), ErrUnknownTask)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	cfg := &config{maxWorkers: defaultMaxWorkers}
	WithMaxWorkers(0)(cfg)
	assert.Equal(t, defaultMaxWorkers, cfg.maxWorkers)
	WithMaxWorkers(3)(cfg)
	assert.Equal(t, 3, cfg.maxWorkers)

	WithLogger(nil)(cfg)
	assert.Nil(t, cfg.logger)

	WithRunOnStart(true)(cfg)
	assert.True(t, cfg.runOnStart)
}

func TestHealthcheckNotStarted(t *testing.T) {
	t.Parallel()

	m := &Manager{}
	require.ErrorIs(t, m.Healthcheck()(t.Context()), ErrHealthcheckFailed)
	require.ErrorIs(t, m.Stop(t.Context()), ErrNotStarted)
}
