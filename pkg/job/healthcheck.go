package job

import (
	"context"
	"errors"
)

var errNotStarted = errors.New("manager not started")

// Healthcheck reports whether the manager is running and its database is
// reachable. Compatible with health.CheckFunc.
//
//	gearshift.WithReadinessCheck("jobs", jobs.Healthcheck())
func (m *Manager) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()

		if !started {
			return errors.Join(ErrHealthcheckFailed, errNotStarted)
		}
		if err := m.pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
