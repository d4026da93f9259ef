// Package health serves the liveness and readiness endpoints.
//
// Readiness runs the registered [Checks] concurrently under one timeout. The
// service registers its PostgreSQL pool, Redis client, the visit manager's
// flush loop and the job manager:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//		"postgres": db.Healthcheck(pool),
//		"redis":    redis.Healthcheck(client),
//		"visits":   visits.Healthcheck(),
//	}))
package health
