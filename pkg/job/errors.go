package job

import "errors"

var (
	// ErrUnknownTask is returned when a job names a task that is not registered.
	ErrUnknownTask = errors.New("job: unknown task")

	ErrAlreadyStarted = errors.New("job: already started")
	ErrNotStarted     = errors.New("job: not started")

	// ErrPoolRequired is returned when creating a manager without a database pool.
	ErrPoolRequired = errors.New("job: pool is required")

	// ErrInvalidSchedule wraps a cron expression that cannot be parsed.
	ErrInvalidSchedule = errors.New("job: invalid cron schedule")

	// ErrDuplicateTask is returned when two scheduled tasks share a name.
	ErrDuplicateTask = errors.New("job: duplicate task name")

	ErrMigrate           = errors.New("job: migration failed")
	ErrHealthcheckFailed = errors.New("job: healthcheck failed")
)
