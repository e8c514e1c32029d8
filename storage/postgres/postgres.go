// Package postgres implements storage.Repository backed by PostgreSQL.
//
// Users live in the users table and vault entries in the passwords table.
// Every binary value (verifier, salt, nonces, ciphertexts) is stored as
// base64 text. Each entry ciphertext has its own nonce column.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/ironkeep/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, user *storage.UserRecord) error {
	if err := user.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, master_password_hash, salt, totp_secret, kdf_iterations, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Username, user.VerifierHash, user.Salt, user.TOTPSecret,
		user.KDFIterations, user.CreatedAt, user.UpdatedAt)
	if isDuplicateKeyError(err) {
		return fmt.Errorf("username %q: %w", user.Username, storage.ErrAlreadyExists)
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*storage.UserRecord, error) {
	var u storage.UserRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, master_password_hash, salt, totp_secret, kdf_iterations, created_at, updated_at
		 FROM users WHERE username = $1`,
		username).Scan(
		&u.ID, &u.Username, &u.VerifierHash, &u.Salt, &u.TOTPSecret,
		&u.KDFIterations, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

const entryColumns = `id, user_id, title, username, username_nonce, encrypted_password, nonce,
	encrypted_note, note_nonce, created_at, updated_at`

func (s *Store) CreateEntry(ctx context.Context, entry *storage.EntryRecord) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	c := columnsOf(entry)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO passwords (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.UserID, entry.Title,
		c.username, c.usernameNonce, c.password, c.passwordNonce, c.note, c.noteNonce,
		entry.CreatedAt, entry.UpdatedAt)
	switch {
	case isDuplicateKeyError(err):
		return fmt.Errorf("entry %s: %w", entry.ID, storage.ErrAlreadyExists)
	case isForeignKeyViolation(err):
		return fmt.Errorf("user %s: %w", entry.UserID, storage.ErrNotFound)
	}
	return err
}

func (s *Store) GetEntry(ctx context.Context, userID, entryID string) (*storage.EntryRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM passwords WHERE user_id = $1 AND id = $2`,
		userID, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, userID string) ([]*storage.EntryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM passwords WHERE user_id = $1 ORDER BY title, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*storage.EntryRecord{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Collation order may differ from byte order; normalize to match the other backends.
	storage.SortEntries(entries)
	return entries, nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry *storage.EntryRecord) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return updateEntry(ctx, s.pool, entry)
}

func (s *Store) DeleteEntry(ctx context.Context, userID, entryID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM passwords WHERE user_id = $1 AND id = $2`, userID, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	return nil
}

// Rotate rewrites the user row and every given entry in one transaction.
func (s *Store) Rotate(ctx context.Context, user *storage.UserRecord, entries []*storage.EntryRecord) error {
	if err := user.Validate(); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE users SET master_password_hash = $3, salt = $4, totp_secret = $5,
		        kdf_iterations = $6, updated_at = $7
		 WHERE id = $1 AND username = $2`,
		user.ID, user.Username, user.VerifierHash, user.Salt, user.TOTPSecret,
		user.KDFIterations, user.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrNotFound)
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		if e.UserID != user.ID {
			return fmt.Errorf("entry %s: %w", e.ID, storage.ErrNotFound)
		}
		if err := updateEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// execer abstracts both *pgxpool.Pool and pgx.Tx for shared statements.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateEntry(ctx context.Context, db execer, entry *storage.EntryRecord) error {
	c := columnsOf(entry)
	tag, err := db.Exec(ctx,
		`UPDATE passwords SET title = $3, username = $4, username_nonce = $5,
		        encrypted_password = $6, nonce = $7, encrypted_note = $8, note_nonce = $9,
		        updated_at = $10
		 WHERE user_id = $1 AND id = $2`,
		entry.UserID, entry.ID, entry.Title,
		c.username, c.usernameNonce, c.password, c.passwordNonce, c.note, c.noteNonce,
		entry.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", entry.ID, storage.ErrNotFound)
	}
	return nil
}

type entryColumnValues struct {
	username, usernameNonce string
	password, passwordNonce string
	note, noteNonce         string
}

func columnsOf(e *storage.EntryRecord) entryColumnValues {
	var c entryColumnValues
	c.usernameNonce, c.username = e.Username.Columns()
	c.passwordNonce, c.password = e.Password.Columns()
	c.noteNonce, c.note = e.Note.Columns()
	return c
}

func scanEntry(row pgx.Row) (*storage.EntryRecord, error) {
	var (
		e storage.EntryRecord
		c entryColumnValues
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title,
		&c.username, &c.usernameNonce, &c.password, &c.passwordNonce, &c.note, &c.noteNonce,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if e.Username, err = storage.EnvelopeFromColumns(c.usernameNonce, c.username); err != nil {
		return nil, fmt.Errorf("entry %s username: %w", e.ID, err)
	}
	if e.Password, err = storage.EnvelopeFromColumns(c.passwordNonce, c.password); err != nil {
		return nil, fmt.Errorf("entry %s password: %w", e.ID, err)
	}
	if e.Note, err = storage.EnvelopeFromColumns(c.noteNonce, c.note); err != nil {
		return nil, fmt.Errorf("entry %s note: %w", e.ID, err)
	}
	return &e, nil
}

// isDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation detects referential integrity violations (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
