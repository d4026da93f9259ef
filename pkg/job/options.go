package job

import (
	"context"
	"log/slog"
)

type config struct {
	logger     *slog.Logger
	tasks      []scheduledTask
	maxWorkers int
	runOnStart bool
}

type scheduledTask struct {
	handler  func(context.Context) error
	name     string
	schedule string
}

// ScheduledTask is a unit of periodic work. Schedule returns a 5-field cron
// expression (minute hour day month weekday).
type ScheduledTask interface {
	Name() string
	Schedule() string
	Handle(ctx context.Context) error
}

// Option configures the job manager.
type Option func(*config)

// WithScheduledTask registers a periodic task.
//
//	job.WithScheduledTask(visit.NewPurgeTask(store, "0 * * * *", log))
func WithScheduledTask(task ScheduledTask) Option {
	return func(c *config) {
		c.tasks = append(c.tasks, scheduledTask{
			name:     task.Name(),
			schedule: task.Schedule(),
			handler:  task.Handle,
		})
	}
}

// WithLogger sets the logger for job processing.
// If not set, a noop logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers bounds concurrent task execution. Defaults to 10.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// WithRunOnStart also runs every task once when the manager starts.
func WithRunOnStart(run bool) Option {
	return func(c *config) {
		c.runOnStart = run
	}
}
