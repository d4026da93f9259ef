// Package job runs scheduled maintenance tasks on River, a Postgres-backed
// job queue. Cron expressions are parsed with robfig/cron.
//
// The only built-in task is the visit purge, which deletes visits whose
// expiry has passed:
//
//	if err := job.Migrate(ctx, pool, log); err != nil {
//	    return err
//	}
//	jobs, err := job.NewManager(pool,
//	    job.WithLogger(log),
//	    job.WithScheduledTask(visit.NewPurgeTask(store, cfg.Visit.PurgeSchedule, log)),
//	)
//	if err != nil {
//	    return err
//	}
//
//	app.Run(addr,
//	    gearshift.StartupHook(jobs.StartFunc()),
//	    gearshift.ShutdownHook(jobs.ShutdownFunc()),
//	)
//
// Only the elected River leader enqueues periodic jobs, so several
// instances sharing a database run each task once per tick.
package job
