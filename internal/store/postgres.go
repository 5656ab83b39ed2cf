package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by
	// the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("conflict")
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// optional turns blank input into NULL.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

const userColumns = `id, email, password_hash, openrouter_api_key, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING `+userColumns, email, passwordHash)
	if isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

// UpdateAPIKey stores the user's completion credential; nil clears it.
func (s *PostgresStore) UpdateAPIKey(ctx context.Context, userID int64, apiKey *string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET openrouter_api_key = $1, updated_at = NOW() WHERE id = $2`, apiKey, userID)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `
		SELECT u.id, u.email, u.password_hash, u.openrouter_api_key, u.created_at, u.updated_at
		FROM refresh_sessions r
		JOIN users u ON u.id = r.user_id
		WHERE r.token_hash = $1 AND r.revoked_at IS NULL AND r.expires_at > NOW()
	`, tokenHash)
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at = NOW() WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
