// Package storage provides the persistence abstraction for user credentials
// and encrypted vault entries.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a user or entry does not exist, or exists
	// but belongs to a different user.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a username or record ID is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// Repository stores user credentials and their vault entries. Every entry
// operation is scoped by user ID. Implementations must be safe for
// concurrent use.
type Repository interface {
	CreateUser(ctx context.Context, user *UserRecord) error
	GetUserByUsername(ctx context.Context, username string) (*UserRecord, error)

	CreateEntry(ctx context.Context, entry *EntryRecord) error
	GetEntry(ctx context.Context, userID, entryID string) (*EntryRecord, error)
	// ListEntries returns the user's entries ordered by title.
	ListEntries(ctx context.Context, userID string) ([]*EntryRecord, error)
	UpdateEntry(ctx context.Context, entry *EntryRecord) error
	DeleteEntry(ctx context.Context, userID, entryID string) error

	// Rotate atomically replaces the user record and every given entry. It is
	// used when the master password changes and all ciphertexts are rewritten.
	// Either all writes land or none do.
	Rotate(ctx context.Context, user *UserRecord, entries []*EntryRecord) error
}
