package visit

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPurgeSchedule runs the purge at the top of every hour.
const DefaultPurgeSchedule = "0 * * * *"

// PurgeTask deletes expired visits on a cron schedule. It satisfies the
// scheduled task contract of the job package.
type PurgeTask struct {
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	schedule string
}

// NewPurgeTask creates a purge task for store. An empty schedule falls back
// to DefaultPurgeSchedule.
func NewPurgeTask(store Store, schedule string, logger *slog.Logger) *PurgeTask {
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PurgeTask{store: store, schedule: schedule, logger: logger, now: time.Now}
}

func (t *PurgeTask) Name() string     { return "visit_purge" }
func (t *PurgeTask) Schedule() string { return t.schedule }

func (t *PurgeTask) Handle(ctx context.Context) error {
	n, err := t.store.PurgeExpired(ctx, t.now())
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.InfoContext(ctx, "purged expired visits", slog.Int64("count", n))
	}
	return nil
}
