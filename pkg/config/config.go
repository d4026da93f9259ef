package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/gearshift/gearshift/pkg/backend"
	"github.com/gearshift/gearshift/pkg/db"
	"github.com/gearshift/gearshift/pkg/identity"
	"github.com/gearshift/gearshift/pkg/logger"
	"github.com/gearshift/gearshift/pkg/oauth"
	"github.com/gearshift/gearshift/pkg/redis"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig
	Log      logger.Config
	Visit    VisitConfig    `envPrefix:"VISIT_"`
	Identity IdentityConfig `envPrefix:"IDENTITY_"`
	Cookie   CookieConfig
	Database db.Config
	Redis    redis.Config
	OAuth    OAuthConfig
	Metrics  MetricsConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `env:"ADDRESS" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// VisitConfig configures visit tracking.
type VisitConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"true"`
	Backend         string        `env:"BACKEND" envDefault:"memory"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"20m"`
	FlushInterval   time.Duration `env:"FLUSH_INTERVAL" envDefault:"30s"`
	Sources         []string      `env:"SOURCE" envSeparator:"," envDefault:"cookie"`
	CookieName      string        `env:"COOKIE_NAME" envDefault:"tg-visit"`
	CookiePath      string        `env:"COOKIE_PATH" envDefault:"/"`
	CookieDomain    string        `env:"COOKIE_DOMAIN"`
	CookieSecure    bool          `env:"COOKIE_SECURE"`
	CookiePermanent bool          `env:"COOKIE_PERMANENT"`
	FormName        string        `env:"FORM_NAME" envDefault:"tg_visit"`
	PurgeSchedule   string        `env:"PURGE_SCHEDULE" envDefault:"0 * * * *"`
}

// IdentityConfig configures identity resolution and the user store.
type IdentityConfig struct {
	Enabled               bool          `env:"ENABLED"`
	Backend               string        `env:"BACKEND" envDefault:"memory"`
	Sources               []string      `env:"SOURCE" envSeparator:"," envDefault:"form,http_auth,visit"`
	EncryptionAlgorithm   string        `env:"ENCRYPTION_ALGORITHM" envDefault:"bcrypt"`
	FailureURL            string        `env:"FAILURE_URL" envDefault:"/login"`
	ForceExternalRedirect bool          `env:"FORCE_EXTERNAL_REDIRECT"`
	FormUserName          string        `env:"FORM_USER_NAME" envDefault:"user_name"`
	FormPassword          string        `env:"FORM_PASSWORD" envDefault:"password"`
	FormSubmit            string        `env:"FORM_SUBMIT" envDefault:"login"`
	SeedFile              string        `env:"SEED_FILE"`
	FoldUserNames         bool          `env:"FOLD_USER_NAMES"`
	LoginRate             float64       `env:"LOGIN_RATE"`
	LoginBurst            int           `env:"LOGIN_BURST" envDefault:"5"`
	CacheTTL              time.Duration `env:"CACHE_TTL"`
}

// CookieConfig holds the secret for signed and encrypted cookies.
type CookieConfig struct {
	Secret string `env:"COOKIE_SECRET"`
}

// OAuthConfig holds the optional third-party login providers.
type OAuthConfig struct {
	Google oauth.GoogleConfig
	GitHub oauth.GitHubConfig
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Load reads a .env file when one exists, parses the process environment
// and returns a sanitized, validated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, errors.Join(ErrLoadEnvFile, err)
		}
	}
	return parse(env.Options{})
}

// FromEnvironment builds a Config from the given variables instead of the
// process environment.
func FromEnvironment(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Join(ErrParse, err)
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Sanitize trims values and restores defaults that were set to blanks.
func (c *Config) Sanitize() {
	c.Server.Address = strings.TrimSpace(c.Server.Address)
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	c.Visit.Backend = strings.ToLower(strings.TrimSpace(c.Visit.Backend))
	c.Visit.Sources = cleanList(c.Visit.Sources)
	c.Visit.CookieDomain = strings.TrimSpace(c.Visit.CookieDomain)
	c.Visit.PurgeSchedule = strings.TrimSpace(c.Visit.PurgeSchedule)

	c.Identity.Backend = strings.ToLower(strings.TrimSpace(c.Identity.Backend))
	c.Identity.Sources = cleanList(c.Identity.Sources)
	c.Identity.EncryptionAlgorithm = strings.ToLower(strings.TrimSpace(c.Identity.EncryptionAlgorithm))
	c.Identity.FailureURL = strings.TrimSpace(c.Identity.FailureURL)
	c.Identity.SeedFile = strings.TrimSpace(c.Identity.SeedFile)

	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = "/" + c.Metrics.Path
	}
}

// Validate reports configuration that cannot work at runtime.
func (c Config) Validate() error {
	var errs []error

	if c.Visit.Enabled {
		if _, err := backend.Parse(c.Visit.Backend); err != nil {
			errs = append(errs, fmt.Errorf("%w: visit: %w", ErrUnknownBackend, err))
		}
		if c.Visit.Timeout <= 0 {
			errs = append(errs, ErrInvalidVisitTimeout)
		}
		if strings.EqualFold(c.Visit.CookieDomain, "localhost") {
			errs = append(errs, ErrLocalhostCookieDomain)
		}
	}

	if c.Identity.Enabled {
		if !c.Visit.Enabled {
			errs = append(errs, ErrIdentityWithoutVisits)
		}
		if _, err := backend.Parse(c.Identity.Backend); err != nil {
			errs = append(errs, fmt.Errorf("%w: identity: %w", ErrUnknownBackend, err))
		}
		if c.Identity.LoginRate < 0 {
			errs = append(errs, ErrInvalidLoginRate)
		}
	}

	if c.Cookie.Secret != "" && len(c.Cookie.Secret) < 32 {
		errs = append(errs, ErrCookieSecretTooShort)
	}

	kinds := c.Backends()
	if slices.Contains(kinds, backend.Postgres) && c.Database.ConnectionString == "" {
		errs = append(errs, ErrDatabaseURLRequired)
	}
	if slices.Contains(kinds, backend.Redis) && c.Redis.URL == "" {
		errs = append(errs, ErrRedisURLRequired)
	}

	return errors.Join(errs...)
}

// VisitBackend returns the parsed visit storage kind. It is only
// meaningful on a validated Config.
func (c Config) VisitBackend() backend.Kind {
	k, _ := backend.Parse(c.Visit.Backend)
	return k
}

// IdentityBackend returns the parsed identity storage kind. It is only
// meaningful on a validated Config.
func (c Config) IdentityBackend() backend.Kind {
	k, _ := backend.Parse(c.Identity.Backend)
	return k
}

// Backends lists the storage kinds the enabled features need, without
// duplicates.
func (c Config) Backends() []backend.Kind {
	var out []backend.Kind
	if c.Visit.Enabled {
		if k := c.VisitBackend(); k != "" {
			out = append(out, k)
		}
	}
	if c.Identity.Enabled {
		if k := c.IdentityBackend(); k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// Algorithm returns the password algorithm for stored users.
func (c IdentityConfig) Algorithm() identity.Algorithm {
	return identity.Algorithm(c.EncryptionAlgorithm)
}

// ResolverSources converts the configured source names.
func (c IdentityConfig) ResolverSources() []identity.Source {
	out := make([]identity.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, identity.Source(s))
	}
	return out
}

func cleanList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
