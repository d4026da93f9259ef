package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/gearshift/gearshift"
	"github.com/gearshift/gearshift/handlers"
	"github.com/gearshift/gearshift/middlewares"
	"github.com/gearshift/gearshift/pkg/backend"
	"github.com/gearshift/gearshift/pkg/config"
	"github.com/gearshift/gearshift/pkg/db"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/job"
	"github.com/gearshift/gearshift/pkg/metrics"
	"github.com/gearshift/gearshift/pkg/oauth"
	"github.com/gearshift/gearshift/pkg/redis"
	"github.com/gearshift/gearshift/pkg/visit"
)

// server is the wired application plus the resources it owns.
type server struct {
	app        *gearshift.App
	runOptions []gearshift.RunOption
	// closers release connections when startup fails before Run.
	closers []func(context.Context) error
}

func (s *server) close(ctx context.Context) error {
	var errs []error
	for _, fn := range slices.Backward(s.closers) {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// own registers fn both as a shutdown hook and as an early-failure closer.
func (s *server) own(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
	s.runOptions = append(s.runOptions, gearshift.ShutdownHook(fn))
}

// build connects the configured backends and assembles the app. The
// returned server is never nil so that partial resources can be closed.
func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*server, error) {
	srv := &server{}
	deps := backend.Deps{Logger: log}
	var checks []gearshift.HealthOption

	kinds := cfg.Backends()
	if slices.Contains(kinds, backend.Postgres) {
		pool, err := db.Connect(ctx, cfg.Database)
		if err != nil {
			return srv, fmt.Errorf("connect postgres: %w", err)
		}
		srv.own(db.Shutdown(pool))
		deps.Pool = pool
		checks = append(checks, gearshift.WithReadinessCheck("postgres", db.Healthcheck(pool)))
	}
	if slices.Contains(kinds, backend.Redis) {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return srv, fmt.Errorf("connect redis: %w", err)
		}
		srv.own(redis.Shutdown(client))
		deps.Redis = client
		checks = append(checks, gearshift.WithReadinessCheck("redis", redis.Healthcheck(client)))
	}

	opts := []gearshift.Option{
		gearshift.WithCustomLogger(log),
		gearshift.WithMiddleware(
			middlewares.Recover(),
			middlewares.RequestID(),
		),
	}
	if cfg.Cookie.Secret != "" {
		opts = append(opts, gearshift.WithCookieOptions(
			gearshift.WithCookieSecret(cfg.Cookie.Secret),
			gearshift.WithCookieSecure(cfg.Visit.CookieSecure),
		))
	}

	if cfg.Metrics.Enabled {
		opts = append(opts, gearshift.WithUntrackedRoute(cfg.Metrics.Path, metrics.Handler()))
	}

	var (
		routes []gearshift.Handler
		tasks  []job.ScheduledTask
	)

	if cfg.Visit.Enabled {
		visits, err := openVisits(cfg, deps, log)
		if err != nil {
			return srv, err
		}
		opts = append(opts, gearshift.WithVisits(visits,
			gearshift.WithVisitSources(cfg.Visit.Sources...),
			gearshift.WithVisitCookieName(cfg.Visit.CookieName),
			gearshift.WithVisitCookiePath(cfg.Visit.CookiePath),
			gearshift.WithVisitCookieDomain(cfg.Visit.CookieDomain),
			gearshift.WithVisitCookieSecure(cfg.Visit.CookieSecure),
			gearshift.WithVisitCookiePermanent(cfg.Visit.CookiePermanent),
			gearshift.WithVisitFormName(cfg.Visit.FormName),
		))
		checks = append(checks, gearshift.WithReadinessCheck("visits", visits.Healthcheck()))

		if cfg.VisitBackend() == backend.Postgres {
			tasks = append(tasks, visit.NewPurgeTask(visits.Store(), cfg.Visit.PurgeSchedule, log))
		}
	}

	if cfg.Identity.Enabled {
		store, err := identity.NewRegistry(identity.WithLinkTTL(cfg.Visit.Timeout)).Open(cfg.IdentityBackend(), deps)
		if err != nil {
			return srv, fmt.Errorf("open identity store: %w", err)
		}
		// Stale links can only be matched against visits in the same database.
		if purger, ok := store.(identity.LinkPurger); ok && cfg.VisitBackend() == backend.Postgres {
			tasks = append(tasks, identity.NewLinkPurgeTask(purger, "", cfg.Visit.Timeout, log))
		}

		resolver, err := openIdentity(ctx, cfg.Identity, store, log)
		if err != nil {
			return srv, err
		}
		opts = append(opts, gearshift.WithIdentity(resolver,
			gearshift.WithFailureURL(cfg.Identity.FailureURL),
			gearshift.WithExternalRedirect(cfg.Identity.ForceExternalRedirect),
		))

		providers, err := oauthProviders(cfg.OAuth)
		if err != nil {
			return srv, err
		}
		if providers.Len() > 0 && cfg.Cookie.Secret == "" {
			log.Warn("oauth providers configured without COOKIE_SECRET, oauth login disabled")
			providers = oauth.NewRegistry()
		}

		routes = append(routes,
			handlers.NewLogin(
				handlers.WithLoginPath(cfg.Identity.FailureURL),
				handlers.WithLoginFormFields(cfg.Identity.FormUserName, cfg.Identity.FormPassword, cfg.Identity.FormSubmit),
				handlers.WithOAuthLinks(providers.Names()...),
			),
			whoami{},
		)
		if providers.Len() > 0 {
			routes = append(routes, handlers.NewOAuth(providers))
		}
	}

	if deps.Pool != nil && len(tasks) > 0 {
		jobs, err := scheduleTasks(ctx, deps.Pool, tasks, log)
		if err != nil {
			return srv, err
		}
		srv.runOptions = append(srv.runOptions, gearshift.StartupHook(jobs.StartFunc()))
		srv.own(jobs.ShutdownFunc())
		checks = append(checks, gearshift.WithReadinessCheck("jobs", jobs.Healthcheck()))
	}

	opts = append(opts,
		gearshift.WithHandlers(routes...),
		gearshift.WithHealthChecks(checks...),
	)
	srv.app = gearshift.New(opts...)
	return srv, nil
}

func openVisits(cfg config.Config, deps backend.Deps, log *slog.Logger) (*visit.Manager, error) {
	store, err := visit.NewRegistry().Open(cfg.VisitBackend(), deps)
	if err != nil {
		return nil, fmt.Errorf("open visit store: %w", err)
	}
	visits, err := visit.NewManager(store,
		visit.WithTimeout(cfg.Visit.Timeout),
		visit.WithFlushInterval(cfg.Visit.FlushInterval),
		visit.WithLogger(log.With(slog.String("component", "visit"))),
	)
	if err != nil {
		return nil, fmt.Errorf("create visit manager: %w", err)
	}
	return visits, nil
}

// scheduleTasks runs the periodic purges on river, which needs postgres.
func scheduleTasks(ctx context.Context, pool *pgxpool.Pool, tasks []job.ScheduledTask, log *slog.Logger) (*job.Manager, error) {
	if err := job.Migrate(ctx, pool, log); err != nil {
		return nil, err
	}
	opts := []job.Option{job.WithLogger(log.With(slog.String("component", "job")))}
	for _, t := range tasks {
		opts = append(opts, job.WithScheduledTask(t))
	}
	jobs, err := job.NewManager(pool, opts...)
	if err != nil {
		return nil, fmt.Errorf("create job manager: %w", err)
	}
	return jobs, nil
}

func openIdentity(ctx context.Context, cfg config.IdentityConfig, store identity.Store, log *slog.Logger) (*identity.Resolver, error) {
	hasher, err := identity.NewHasher(cfg.Algorithm())
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}

	popts := []identity.ProviderOption{
		identity.WithHasher(hasher),
		identity.WithProviderLogger(log.With(slog.String("component", "identity"))),
	}
	if cfg.FoldUserNames {
		popts = append(popts, identity.WithUserNameFolding(identity.FoldCase))
	}
	sp, err := identity.NewStoreProvider(store, popts...)
	if err != nil {
		return nil, fmt.Errorf("create identity provider: %w", err)
	}

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, sp, cfg.SeedFile); err != nil {
			return nil, err
		}
		log.Info("identity seed applied", slog.String("file", cfg.SeedFile))
	}

	var provider identity.Provider = sp
	if cfg.CacheTTL > 0 {
		provider = identity.NewCachedProvider(sp, cfg.CacheTTL)
	}

	ropts := []identity.ResolverOption{
		identity.WithSources(cfg.ResolverSources()...),
		identity.WithFormFields(cfg.FormUserName, cfg.FormPassword, cfg.FormSubmit),
		identity.WithResolverLogger(log.With(slog.String("component", "identity"))),
	}
	if cfg.LoginRate > 0 {
		ropts = append(ropts, identity.WithLoginThrottle(rate.Limit(cfg.LoginRate), cfg.LoginBurst))
	}
	resolver, err := identity.NewResolver(provider, ropts...)
	if err != nil {
		return nil, fmt.Errorf("create identity resolver: %w", err)
	}
	return resolver, nil
}

func applySeed(ctx context.Context, p *identity.StoreProvider, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open identity seed: %w", err)
	}
	defer f.Close()

	seed, err := identity.LoadSeed(f)
	if err != nil {
		return fmt.Errorf("load identity seed: %w", err)
	}
	if err := p.CreateProviderModel(ctx); err != nil {
		return fmt.Errorf("create identity model: %w", err)
	}
	return p.ApplySeed(ctx, seed)
}

func oauthProviders(cfg config.OAuthConfig) (*oauth.Registry, error) {
	var providers []oauth.Provider
	if cfg.Google.Enabled() {
		p, err := oauth.NewGoogleProvider(cfg.Google)
		if err != nil {
			return nil, fmt.Errorf("google oauth: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.GitHub.Enabled() {
		p, err := oauth.NewGitHubProvider(cfg.GitHub)
		if err != nil {
			return nil, fmt.Errorf("github oauth: %w", err)
		}
		providers = append(providers, p)
	}
	return oauth.NewRegistry(providers...), nil
}
