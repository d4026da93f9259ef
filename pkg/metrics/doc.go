// Package metrics exposes Prometheus collectors for visit tracking, identity
// resolution and authorization.
//
// Collectors live on a dedicated Registry rather than the global default one.
// Mount Handler on the metrics path:
//
//	r.Mount("/metrics", metrics.Handler())
package metrics
