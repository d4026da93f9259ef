package visit

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearshift/gearshift/pkg/db"
)

// MigrationsTable is the goose version table used by the visit schema.
const MigrationsTable = "gearshift_visit_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps visits in the gearshift_visits table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a visit store on top of pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// CreateModel applies the embedded migrations.
func (s *PostgresStore) CreateModel(ctx context.Context) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return db.Migrate(ctx, s.pool, sub, MigrationsTable, s.logger)
}

func (s *PostgresStore) NewVisit(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO gearshift_visits (visit_key, created, expiry) VALUES ($1, $2, $3)`,
		rec.Key, rec.Created, rec.Expiry,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrKeyExists
	}
	return err
}

func (s *PostgresStore) Lookup(ctx context.Context, key string) (*Record, error) {
	rec := Record{Key: key}
	err := s.pool.QueryRow(ctx,
		`SELECT created, expiry FROM gearshift_visits WHERE visit_key = $1`, key,
	).Scan(&rec.Created, &rec.Expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateQueuedVisits sends all updates in one batch. An expiry only moves
// forward, so concurrent flushes from several processes are harmless.
func (s *PostgresStore) UpdateQueuedVisits(ctx context.Context, updates map[string]time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for key, expiry := range updates {
		batch.Queue(
			`UPDATE gearshift_visits SET expiry = $2 WHERE visit_key = $1 AND expiry < $2`,
			key, expiry,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	for range updates {
		if _, err := br.Exec(); err != nil {
			return errors.Join(err, br.Close())
		}
	}
	return br.Close()
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM gearshift_visits WHERE expiry < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)
