package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

const defaultMaxWorkers = 10

// Manager runs scheduled maintenance tasks, such as the visit purge, on
// River. Periodic jobs are only enqueued by the elected leader, so running
// several app instances against one database runs each task once.
type Manager struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	tasks  map[string]func(context.Context) error
	logger *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager validates the task schedules and creates the River client.
// The River schema must exist; see Migrate.
func NewManager(pool *pgxpool.Pool, opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	cfg := &config{
		logger:     slog.New(slog.DiscardHandler),
		maxWorkers: defaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tasks := make(map[string]func(context.Context) error, len(cfg.tasks))
	periodic := make([]*river.PeriodicJob, 0, len(cfg.tasks))
	for _, t := range cfg.tasks {
		if _, dup := tasks[t.name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.name)
		}
		schedule, err := parseCronSchedule(t.schedule)
		if err != nil {
			return nil, err
		}
		tasks[t.name] = t.handler

		name := t.name
		periodic = append(periodic, river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) {
				return scheduledArgs{Task: name}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: cfg.runOnStart},
		))
	}

	m := &Manager{
		pool:   pool,
		tasks:  tasks,
		logger: cfg.logger,
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &scheduledWorker{manager: m})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: cfg.maxWorkers}},
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job: create client: %w", err)
	}
	m.client = client
	return m, nil
}

// Start begins running scheduled tasks.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("job: start client: %w", err)
	}

	m.started = true
	m.logger.Info("job manager started", slog.Int("tasks", len(m.tasks)))
	return nil
}

// Stop waits for running tasks to finish and stops the client.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("job: stop client: %w", err)
	}

	m.started = false
	m.logger.Info("job manager stopped")
	return nil
}

// StartFunc adapts Start for gearshift.StartupHook.
func (m *Manager) StartFunc() func(context.Context) error {
	return m.Start
}

// ShutdownFunc adapts Stop for gearshift.ShutdownHook.
func (m *Manager) ShutdownFunc() func(context.Context) error {
	return m.Stop
}

// run executes the named task.
func (m *Manager) run(ctx context.Context, name string, attempt int) error {
	handler, ok := m.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	m.logger.DebugContext(ctx, "running scheduled task",
		slog.String("task", name),
		slog.Int("attempt", attempt),
	)
	if err := handler(ctx); err != nil {
		m.logger.ErrorContext(ctx, "scheduled task failed",
			slog.String("task", name),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

// scheduledArgs is the River payload of every periodic job.
type scheduledArgs struct {
	Task string `json:"task"`
}

func (scheduledArgs) Kind() string { return "gearshift:scheduled" }

type scheduledWorker struct {
	river.WorkerDefaults[scheduledArgs]
	manager *Manager
}

func (w *scheduledWorker) Work(ctx context.Context, job *river.Job[scheduledArgs]) error {
	return w.manager.run(ctx, job.Args.Task, job.Attempt)
}
