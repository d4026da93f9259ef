package identity

import (
	"context"
	"log/slog"
	"time"
)

// DefaultLinkPurgeSchedule runs the purge at a quarter past every hour, after
// the visit purge.
const DefaultLinkPurgeSchedule = "15 * * * *"

// LinkPurger deletes visit links whose visit is gone.
type LinkPurger interface {
	PurgeStaleLinks(ctx context.Context, linkedBefore, now time.Time) (int64, error)
}

// LinkPurgeTask removes visit links left behind by expired visits. A link
// younger than maxAge is always kept, since its visit may not be flushed yet.
// It satisfies the scheduled task contract of the job package.
type LinkPurgeTask struct {
	store    LinkPurger
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
	now      func() time.Time
}

// NewLinkPurgeTask creates the task. maxAge is normally the visit timeout.
func NewLinkPurgeTask(store LinkPurger, schedule string, maxAge time.Duration, logger *slog.Logger) *LinkPurgeTask {
	if schedule == "" {
		schedule = DefaultLinkPurgeSchedule
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LinkPurgeTask{store: store, maxAge: maxAge, schedule: schedule, logger: logger, now: time.Now}
}

func (t *LinkPurgeTask) Name() string     { return "identity_link_purge" }
func (t *LinkPurgeTask) Schedule() string { return t.schedule }

func (t *LinkPurgeTask) Handle(ctx context.Context) error {
	now := t.now()
	n, err := t.store.PurgeStaleLinks(ctx, now.Add(-t.maxAge), now)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.InfoContext(ctx, "purged stale visit links", slog.Int64("count", n))
	}
	return nil
}
