// Package storagetest holds a conformance suite shared by every
// storage.Repository implementation.
package storagetest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironkeep/internal/uuid"
	"github.com/jmcleod/ironkeep/storage"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) storage.Repository

// NewUser returns a user record with plausible credential material.
func NewUser(username string) *storage.UserRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &storage.UserRecord{
		ID:            uuid.New(),
		Username:      username,
		VerifierHash:  "dmVyaWZpZXItdmVyaWZpZXItdmVyaWZpZXItMzI=",
		Salt:          "c2FsdHNhbHRzYWx0c2FsdA==",
		TOTPSecret:    "bm9uY2Vub25jZW5vY2lwaGVydGV4dGNpcGhlcnRleHQ=",
		KDFIterations: 600_000,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewEntry returns an entry owned by userID whose envelopes are filled with
// the given marker byte.
func NewEntry(userID, title string, marker byte) *storage.EntryRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	env := func(b byte) storage.Envelope {
		return storage.Envelope{
			Nonce:      bytes.Repeat([]byte{b}, 12),
			Ciphertext: bytes.Repeat([]byte{b}, 24),
		}
	}
	return &storage.EntryRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Username:  env(marker),
		Password:  env(marker + 1),
		Note:      env(marker + 2),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Run exercises the full Repository contract against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateAndGetUser", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		user := NewUser("alice")
		require.NoError(t, repo.CreateUser(ctx, user))

		got, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.VerifierHash, got.VerifierHash)
		assert.Equal(t, user.Salt, got.Salt)
		assert.Equal(t, user.TOTPSecret, got.TOTPSecret)
		assert.Equal(t, user.KDFIterations, got.KDFIterations)
	})

	t.Run("UsernamesAreCaseSensitive", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.CreateUser(ctx, NewUser("alice")))
		_, err := repo.GetUserByUsername(ctx, "Alice")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, repo.CreateUser(ctx, NewUser("Alice")))
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.CreateUser(ctx, NewUser("alice")))
		err := repo.CreateUser(ctx, NewUser("alice"))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetUserByUsername(context.Background(), "nobody")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("EntryCRUD", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		user := NewUser("alice")
		require.NoError(t, repo.CreateUser(ctx, user))

		entry := NewEntry(user.ID, "Example", 1)
		require.NoError(t, repo.CreateEntry(ctx, entry))

		got, err := repo.GetEntry(ctx, user.ID, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.Title, got.Title)
		assert.Equal(t, entry.Username, got.Username)
		assert.Equal(t, entry.Password, got.Password)
		assert.Equal(t, entry.Note, got.Note)

		got.Title = "Renamed"
		got.Password = NewEntry(user.ID, "x", 9).Password
		require.NoError(t, repo.UpdateEntry(ctx, got))

		updated, err := repo.GetEntry(ctx, user.ID, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, got.Password, updated.Password)

		require.NoError(t, repo.DeleteEntry(ctx, user.ID, entry.ID))
		_, err = repo.GetEntry(ctx, user.ID, entry.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteEntry(ctx, user.ID, entry.ID), storage.ErrNotFound)
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		user := NewUser("alice")
		require.NoError(t, repo.CreateUser(ctx, user))
		entry := NewEntry(user.ID, "Example", 1)
		require.NoError(t, repo.CreateEntry(ctx, entry))

		got, err := repo.GetEntry(ctx, user.ID, entry.ID)
		require.NoError(t, err)
		got.Password.Ciphertext[0] ^= 0xFF

		again, err := repo.GetEntry(ctx, user.ID, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.Password, again.Password)
	})

	t.Run("ListEntriesOrderedByTitle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		user := NewUser("alice")
		require.NoError(t, repo.CreateUser(ctx, user))

		for i, title := range []string{"zeta", "alpha", "mu"} {
			require.NoError(t, repo.CreateEntry(ctx, NewEntry(user.ID, title, byte(i*3))))
		}
		entries, err := repo.ListEntries(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "alpha", entries[0].Title)
		assert.Equal(t, "mu", entries[1].Title)
		assert.Equal(t, "zeta", entries[2].Title)

		empty, err := repo.ListEntries(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("EntriesAreScopedByUser", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		alice := NewUser("alice")
		bob := NewUser("bob")
		require.NoError(t, repo.CreateUser(ctx, alice))
		require.NoError(t, repo.CreateUser(ctx, bob))

		entry := NewEntry(alice.ID, "alice-only", 1)
		require.NoError(t, repo.CreateEntry(ctx, entry))

		_, err := repo.GetEntry(ctx, bob.ID, entry.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		stolen := entry.Clone()
		stolen.UserID = bob.ID
		assert.ErrorIs(t, repo.UpdateEntry(ctx, stolen), storage.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteEntry(ctx, bob.ID, entry.ID), storage.ErrNotFound)

		list, err := repo.ListEntries(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = repo.GetEntry(ctx, alice.ID, entry.ID)
		assert.NoError(t, err)
	})

	t.Run("Rotate", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		user := NewUser("alice")
		require.NoError(t, repo.CreateUser(ctx, user))
		e1 := NewEntry(user.ID, "one", 1)
		e2 := NewEntry(user.ID, "two", 4)
		require.NoError(t, repo.CreateEntry(ctx, e1))
		require.NoError(t, repo.CreateEntry(ctx, e2))

		rotated := user.Clone()
		rotated.Salt = "bmV3c2FsdG5ld3NhbHQxMg=="
		rotated.VerifierHash = "bmV3LXZlcmlmaWVy"
		r1 := e1.Clone()
		r1.Password = NewEntry(user.ID, "x", 20).Password
		r2 := e2.Clone()
		r2.Note = NewEntry(user.ID, "x", 30).Note
		require.NoError(t, repo.Rotate(ctx, rotated, []*storage.EntryRecord{r1, r2}))

		got, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, rotated.Salt, got.Salt)
		assert.Equal(t, rotated.VerifierHash, got.VerifierHash)

		g1, err := repo.GetEntry(ctx, user.ID, e1.ID)
		require.NoError(t, err)
		assert.Equal(t, r1.Password, g1.Password)
		g2, err := repo.GetEntry(ctx, user.ID, e2.ID)
		require.NoError(t, err)
		assert.Equal(t, r2.Note, g2.Note)
	})

	t.Run("RotateIsAtomic", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		user := NewUser("alice")
		require.NoError(t, repo.CreateUser(ctx, user))
		e1 := NewEntry(user.ID, "one", 1)
		require.NoError(t, repo.CreateEntry(ctx, e1))

		rotated := user.Clone()
		rotated.Salt = "bmV3c2FsdG5ld3NhbHQxMg=="
		r1 := e1.Clone()
		r1.Password = NewEntry(user.ID, "x", 20).Password
		missing := NewEntry(user.ID, "never stored", 40)

		err := repo.Rotate(ctx, rotated, []*storage.EntryRecord{r1, missing})
		require.ErrorIs(t, err, storage.ErrNotFound)

		got, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.Salt, got.Salt, "user must be unchanged after failed rotation")
		g1, err := repo.GetEntry(ctx, user.ID, e1.ID)
		require.NoError(t, err)
		assert.Equal(t, e1.Password, g1.Password, "entry must be unchanged after failed rotation")
	})
}
