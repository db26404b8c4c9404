package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rankauskaite/fittrack/users"
)

// Store implements users.Repo on top of PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ users.Repo = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, username, password_hash, role, date_joined, refresh_token, refresh_token_exp`

func (s *Store) Upsert(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, role, date_joined)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role
	`, user.ID, user.Username, user.PasswordHash, string(user.Role), user.DateJoined)
	if err != nil {
		return errors.Wrap(err, "postgres.Store.Upsert")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return errors.Wrap(err, "postgres.Store.Delete")
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *Store) GetByID(ctx context.Context, id string) (*users.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetByRefreshToken(ctx context.Context, token string) (*users.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token)
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY username OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.Store.List")
	}
	defer rows.Close()

	var all []*users.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.Store.List scan")
		}
		all = append(all, user)
	}
	return all, rows.Err()
}

func (s *Store) SetRefreshToken(ctx context.Context, userID string, token *string, exp *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET refresh_token = $1, refresh_token_exp = $2 WHERE id = $3
	`, token, exp, userID)
	if err != nil {
		return errors.Wrap(err, "postgres.Store.SetRefreshToken")
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

// RotateRefreshToken is a single-row compare-and-set: the update only lands
// if the stored value still equals the one the caller presented, which keeps
// two concurrent rotations from both succeeding.
func (s *Store) RotateRefreshToken(ctx context.Context, userID, current, next string, exp time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET refresh_token = $1, refresh_token_exp = $2
		WHERE id = $3 AND refresh_token = $4
	`, next, exp, userID, current)
	if err != nil {
		return errors.Wrap(err, "postgres.Store.RotateRefreshToken")
	}
	if tag.RowsAffected() == 0 {
		return users.ErrStaleRefreshToken
	}
	return nil
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (*users.User, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "postgres.Store.getOne")
	}
	return user, nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		user users.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&role,
		&user.DateJoined,
		&user.RefreshToken,
		&user.RefreshTokenExp,
	); err != nil {
		return nil, err
	}
	user.Role = users.RoleType(role)
	return &user, nil
}
