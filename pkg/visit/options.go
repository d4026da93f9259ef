package visit

import (
	"log/slog"
	"time"
)

// Defaults for the visit manager.
const (
	DefaultTimeout       = 20 * time.Minute
	DefaultFlushInterval = 30 * time.Second
	DefaultFlushTimeout  = 10 * time.Second
	DefaultQueueSize     = 4096
	DefaultMaxPending    = 100_000
)

type options struct {
	logger       *slog.Logger
	now          func() time.Time
	timeout      time.Duration
	interval     time.Duration
	flushTimeout time.Duration
	queueSize    int
	maxPending   int
}

func defaultOptions() *options {
	return &options{
		logger:       slog.New(slog.DiscardHandler),
		now:          time.Now,
		timeout:      DefaultTimeout,
		interval:     DefaultFlushInterval,
		flushTimeout: DefaultFlushTimeout,
		queueSize:    DefaultQueueSize,
		maxPending:   DefaultMaxPending,
	}
}

// Option configures a Manager.
type Option func(*options)

// WithTimeout sets how long a visit stays alive without activity.
// Default: 20 minutes.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithFlushInterval sets how often pending expiry updates are written.
// Default: 30 seconds.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithFlushTimeout bounds a single flush call to the store.
// Default: 10 seconds.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

// WithQueueSize sets the capacity of the update channel between request
// handlers and the flush loop. Updates beyond it are dropped.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithMaxPending caps how many distinct keys the flush loop keeps,
// including updates carried over from failed flushes.
func WithMaxPending(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPending = n
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
