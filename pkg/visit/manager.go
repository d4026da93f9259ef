package visit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gearshift/gearshift/pkg/metrics"
)

type update struct {
	expiry time.Time
	key    string
}

// Manager creates and looks up visits and keeps their expiry fresh.
//
// Expiry refreshes never touch the store on the request path. They are sent
// over a buffered channel to a single flush goroutine which owns the pending
// map and writes it in bulk every flush interval.
type Manager struct {
	store   Store
	opts    *options
	updates chan update
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	mu       sync.Mutex
	started  bool
}

// NewManager creates a visit manager backed by store.
// Call Start to launch the flush loop.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Manager{
		store:   store,
		opts:    o,
		updates: make(chan update, o.queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Timeout returns the idle timeout applied to visits.
func (m *Manager) Timeout() time.Duration {
	return m.opts.timeout
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}

// Start creates the storage model and launches the flush loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	if err := m.store.CreateModel(ctx); err != nil {
		return errors.Join(ErrCreateModel, err)
	}

	m.started = true
	go m.loop()

	m.opts.logger.Info("visit manager started",
		slog.Duration("timeout", m.opts.timeout),
		slog.Duration("flush_interval", m.opts.interval),
	)
	return nil
}

// Shutdown stops the flush loop after a final flush and waits for it to
// exit. If ctx expires first, the failure is logged and ErrShutdownTimeout
// is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	if !started {
		return nil
	}

	m.stopOnce.Do(func() { close(m.stop) })

	select {
	case <-m.done:
		m.opts.logger.Info("visit manager stopped")
		return nil
	case <-ctx.Done():
		m.opts.logger.Error("visit manager failed to shut down", slog.Any("error", ctx.Err()))
		return errors.Join(ErrShutdownTimeout, ctx.Err())
	}
}

// StartFunc returns a startup hook for the manager.
func (m *Manager) StartFunc() func(context.Context) error {
	return m.Start
}

// ShutdownFunc returns a shutdown hook for the manager.
func (m *Manager) ShutdownFunc() func(context.Context) error {
	return m.Shutdown
}

// NewVisitWithKey persists a new visit under key and returns it with
// IsNew set.
func (m *Manager) NewVisitWithKey(ctx context.Context, key string) (*Visit, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	now := m.opts.now()
	rec := Record{Key: key, Created: now, Expiry: now.Add(m.opts.timeout)}
	if err := m.store.NewVisit(ctx, rec); err != nil {
		return nil, err
	}
	metrics.VisitCreated()

	return &Visit{Key: key, Expiry: rec.Expiry, IsNew: true}, nil
}

// VisitForKey returns the live visit stored under key and queues an expiry
// refresh for it. A missing or expired visit yields (nil, nil).
func (m *Manager) VisitForKey(ctx context.Context, key string) (*Visit, error) {
	if key == "" {
		return nil, nil
	}

	rec, err := m.store.Lookup(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := m.opts.now()
	if rec.Expired(now) {
		return nil, nil
	}

	expiry := now.Add(m.opts.timeout)
	m.UpdateVisit(key, expiry)

	return &Visit{Key: key, Expiry: expiry}, nil
}

// UpdateVisit queues an expiry refresh. It never blocks: when the queue is
// full the update is dropped, which only shortens the visit's life.
func (m *Manager) UpdateVisit(key string, expiry time.Time) {
	select {
	case m.updates <- update{key: key, expiry: expiry}:
	default:
		metrics.VisitUpdateDropped()
		m.opts.logger.Warn("visit update queue full, dropping update", slog.String("visit_key", key))
	}
}

// Healthcheck reports whether the flush loop is running.
func (m *Manager) Healthcheck() func(context.Context) error {
	return func(context.Context) error {
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()

		if !started {
			return errors.Join(ErrHealthcheck, errors.New("flush loop not started"))
		}
		select {
		case <-m.done:
			return errors.Join(ErrHealthcheck, errors.New("flush loop stopped"))
		default:
			return nil
		}
	}
}

func (m *Manager) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.opts.interval)
	defer ticker.Stop()

	pending := make(map[string]time.Time)

	for {
		select {
		case u := <-m.updates:
			m.merge(pending, u.key, u.expiry)
			metrics.SetVisitPending(len(pending))

		case <-ticker.C:
			pending = m.flush(pending)

		case <-m.stop:
		drain:
			for {
				select {
				case u := <-m.updates:
					m.merge(pending, u.key, u.expiry)
				default:
					break drain
				}
			}
			if rest := m.flush(pending); len(rest) > 0 {
				m.opts.logger.Error("visit updates lost on shutdown", slog.Int("count", len(rest)))
			}
			return
		}
	}
}

// merge keeps the latest expiry per key. New keys beyond maxPending are
// dropped.
func (m *Manager) merge(pending map[string]time.Time, key string, expiry time.Time) {
	if cur, ok := pending[key]; ok {
		if expiry.After(cur) {
			pending[key] = expiry
		}
		return
	}
	if len(pending) >= m.opts.maxPending {
		metrics.VisitUpdateDropped()
		m.opts.logger.Warn("visit pending map full, dropping update", slog.String("visit_key", key))
		return
	}
	pending[key] = expiry
}

// flush writes batch to the store and returns the map to keep collecting
// into. On failure the batch is carried over so the next tick retries it.
func (m *Manager) flush(batch map[string]time.Time) map[string]time.Time {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.flushTimeout)
	defer cancel()

	start := time.Now()
	err := m.store.UpdateQueuedVisits(ctx, batch)
	elapsed := time.Since(start)

	if err != nil {
		metrics.VisitFlush("error", elapsed)
		m.opts.logger.Error("failed to flush visit updates",
			slog.Int("count", len(batch)),
			slog.Any("error", err),
		)
		metrics.SetVisitPending(len(batch))
		return batch
	}

	metrics.VisitFlush("ok", elapsed)
	m.opts.logger.Debug("flushed visit updates", slog.Int("count", len(batch)))
	metrics.SetVisitPending(0)
	return make(map[string]time.Time)
}
