// Package logger builds the service's [log/slog] logger.
//
// [New] picks a JSON or text handler at the configured level and, when
// SENTRY_DSN is set, fans records out to Sentry as well. [ContextExtractor]
// functions pull request-scoped values such as the request ID, visit key or
// user name out of the context and attach them to every record:
//
//	log := logger.New(cfg.Log,
//		middlewares.RequestIDExtractor(),
//		gearshift.VisitKeyExtractor(),
//		gearshift.UserNameExtractor(),
//	)
package logger
