// Package backend provides the typed storage selection shared by the visit
// and identity packages.
//
// A Kind names a storage engine (memory, postgres, redis). A Registry maps
// kinds to factories that build a concrete store from the shared connections
// held in Deps:
//
//	reg := backend.NewRegistry[visit.Store]()
//	reg.Register(backend.Memory, func(backend.Deps) (visit.Store, error) {
//	    return visit.NewMemoryStore(), nil
//	})
//
//	kind, err := backend.Parse(cfg.Visit.Backend)
//	store, err := reg.Open(kind, backend.Deps{Pool: pool})
package backend
