// Package visit tracks browser sessions ("visits") independently of
// authentication.
//
// A Manager creates visits, looks them up by key and keeps their expiry
// fresh. Expiry refreshes are queued on a channel and written to the Store
// in bulk by a single background goroutine, so the request path never waits
// on storage for them:
//
//	store := visit.NewMemoryStore()
//	mgr, err := visit.NewManager(store,
//	    visit.WithTimeout(20*time.Minute),
//	    visit.WithFlushInterval(30*time.Second),
//	)
//	if err := mgr.Start(ctx); err != nil { ... }
//	defer mgr.Shutdown(ctx)
//
//	v, err := mgr.VisitForKey(ctx, key) // nil when missing or expired
//	if v == nil {
//	    key, _ = visit.NewKey(r.RemoteAddr)
//	    v, err = mgr.NewVisitWithKey(ctx, key)
//	}
//
// When a flush fails the batch is logged, counted and retried on the next
// tick. Expiry is a hint that only moves forward, so several processes
// sharing one store may flush independently.
//
// Stores are available for memory, PostgreSQL and Redis. NewRegistry binds
// them to backend kinds for configuration driven selection.
package visit
