package identity

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gearshift/gearshift/pkg/db"
)

// MigrationsTable is the goose version table used by the identity schema.
const MigrationsTable = "gearshift_identity_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

const (
	selectUserColumns = `SELECT id, user_name, display_name, email, password, created FROM gearshift_users`

	selectUserGroups = `
SELECT g.id, g.group_name,
       COALESCE(array_agg(gp.permission_name ORDER BY gp.permission_name)
                FILTER (WHERE gp.permission_name IS NOT NULL), '{}')
FROM gearshift_user_groups ug
JOIN gearshift_groups g ON g.id = ug.group_id
LEFT JOIN gearshift_group_permissions gp ON gp.group_id = g.id
WHERE ug.user_id = $1
GROUP BY g.id, g.group_name
ORDER BY g.group_name`

	upsertGroup = `
INSERT INTO gearshift_groups (id, group_name) VALUES ($1, $2)
ON CONFLICT (group_name) DO UPDATE SET group_name = EXCLUDED.group_name
RETURNING id`
)

// PostgresStore keeps identities in the gearshift_users family of tables.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresStore creates an identity store on top of pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresStore{pool: pool, logger: logger, now: time.Now}
}

// CreateModel applies the embedded migrations.
func (s *PostgresStore) CreateModel(ctx context.Context) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return db.Migrate(ctx, s.pool, sub, MigrationsTable, s.logger)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	if err := prepareUser(u, s.now); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO gearshift_users (id, user_name, display_name, email, password, created)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.UserName, u.DisplayName, u.Email, u.Password, u.Created,
	)
	if isPgCode(err, pgerrcode.UniqueViolation) {
		return ErrUserExists
	}
	return err
}

func (s *PostgresStore) UserByName(ctx context.Context, userName string) (*User, error) {
	return s.loadUser(ctx, selectUserColumns+` WHERE user_name = $1`, userName)
}

func (s *PostgresStore) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.loadUser(ctx, selectUserColumns+` WHERE id = $1`, id)
}

func (s *PostgresStore) UserByForeignID(ctx context.Context, siteID, foreignID string) (*User, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM gearshift_foreign_users WHERE site_id = $1 AND foreign_id = $2`,
		siteID, foreignID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

func (s *PostgresStore) loadUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.UserName, &u.DisplayName, &u.Email, &u.Password, &u.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, selectUserGroups, u.ID)
	if err != nil {
		return nil, err
	}
	u.Groups, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Group, error) {
		var g Group
		err := row.Scan(&g.ID, &g.Name, &g.Permissions)
		return g, err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) AddUserToGroup(ctx context.Context, userID uuid.UUID, groupName string) error {
	if groupName == "" {
		return ErrEmptyGroupName
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		groupID, err := ensureGroup(ctx, tx, groupName)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO gearshift_user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, groupID,
		)
		return err
	})
	if isPgCode(err, pgerrcode.ForeignKeyViolation) {
		return ErrUserNotFound
	}
	return err
}

func (s *PostgresStore) GrantPermission(ctx context.Context, groupName, permission string) error {
	if groupName == "" {
		return ErrEmptyGroupName
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		groupID, err := ensureGroup(ctx, tx, groupName)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO gearshift_group_permissions (group_id, permission_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			groupID, permission,
		)
		return err
	})
}

func ensureGroup(ctx context.Context, tx pgx.Tx, name string) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	err = tx.QueryRow(ctx, upsertGroup, id, name).Scan(&id)
	return id, err
}

func (s *PostgresStore) LinkForeignUser(ctx context.Context, siteID, foreignID string, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO gearshift_foreign_users (site_id, foreign_id, user_id) VALUES ($1, $2, $3)
		 ON CONFLICT (site_id, foreign_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 WHERE gearshift_foreign_users.user_id = EXCLUDED.user_id`,
		siteID, foreignID, userID,
	)
	if isPgCode(err, pgerrcode.ForeignKeyViolation) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrForeignUserExists
	}
	return nil
}

func (s *PostgresStore) LinkVisit(ctx context.Context, visitKey string, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO gearshift_visit_identity (visit_key, user_id, linked_at) VALUES ($1, $2, $3)
		 ON CONFLICT (visit_key) DO UPDATE SET user_id = EXCLUDED.user_id, linked_at = EXCLUDED.linked_at`,
		visitKey, userID, s.now(),
	)
	if isPgCode(err, pgerrcode.ForeignKeyViolation) {
		return ErrUserNotFound
	}
	return err
}

func (s *PostgresStore) UnlinkVisit(ctx context.Context, visitKey string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM gearshift_visit_identity WHERE visit_key = $1`, visitKey)
	return err
}

func (s *PostgresStore) UserIDForVisit(ctx context.Context, visitKey string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM gearshift_visit_identity WHERE visit_key = $1`, visitKey,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotLinked
	}
	return id, err
}

// PurgeStaleLinks deletes links made before linkedBefore whose visit is
// gone or expired at now. It needs the visit table in the same database.
func (s *PostgresStore) PurgeStaleLinks(ctx context.Context, linkedBefore, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
DELETE FROM gearshift_visit_identity vi
WHERE vi.linked_at < $1
  AND NOT EXISTS (
    SELECT 1 FROM gearshift_visits v
    WHERE v.visit_key = vi.visit_key AND v.expiry >= $2
  )`, linkedBefore, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

var _ Store = (*PostgresStore)(nil)
