package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironkeep/storage"
	"github.com/jmcleod/ironkeep/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("IRONKEEP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("IRONKEEP_TEST_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("could not connect to postgres: %v", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("could not ensure schema: %v", err)
	}

	// Clean tables for test isolation.
	pool.Exec(ctx, "DELETE FROM passwords") //nolint:errcheck
	pool.Exec(ctx, "DELETE FROM users")     //nolint:errcheck

	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM passwords") //nolint:errcheck
		pool.Exec(ctx, "DELETE FROM users")     //nolint:errcheck
		pool.Close()
	})
	return NewRepository(pool)
}

func TestPostgresStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		return newTestStore(t)
	})
}

func TestPostgresStorage_EnsureSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, EnsureSchema(context.Background(), s.pool))
	require.NoError(t, EnsureSchema(context.Background(), s.pool))
}

func TestPostgresStorage_SeparateNonceColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := storagetest.NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, user))
	entry := storagetest.NewEntry(user.ID, "Example", 1)
	require.NoError(t, s.CreateEntry(ctx, entry))

	var usernameNonce, passwordNonce, noteNonce string
	err := s.pool.QueryRow(ctx,
		`SELECT username_nonce, nonce, note_nonce FROM passwords WHERE id = $1`, entry.ID).
		Scan(&usernameNonce, &passwordNonce, &noteNonce)
	require.NoError(t, err)
	assert.NotEqual(t, usernameNonce, passwordNonce)
	assert.NotEqual(t, passwordNonce, noteNonce)
}
