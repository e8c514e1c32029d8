// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmcleod/ironkeep/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu        sync.RWMutex
	users     map[string]*storage.UserRecord             // by user ID
	usernames map[string]string                          // username -> user ID
	entries   map[string]map[string]*storage.EntryRecord // user ID -> entry ID -> entry
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{
		users:     make(map[string]*storage.UserRecord),
		usernames: make(map[string]string),
		entries:   make(map[string]map[string]*storage.EntryRecord),
	}
}

func (r *Repository) CreateUser(_ context.Context, user *storage.UserRecord) error {
	if err := user.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.usernames[user.Username]; ok {
		return fmt.Errorf("username %q: %w", user.Username, storage.ErrAlreadyExists)
	}
	if _, ok := r.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrAlreadyExists)
	}
	r.users[user.ID] = user.Clone()
	r.usernames[user.Username] = user.ID
	return nil
}

func (r *Repository) GetUserByUsername(_ context.Context, username string) (*storage.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.usernames[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, storage.ErrNotFound)
	}
	return r.users[id].Clone(), nil
}

func (r *Repository) CreateEntry(_ context.Context, entry *storage.EntryRecord) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[entry.UserID]; !ok {
		return fmt.Errorf("user %s: %w", entry.UserID, storage.ErrNotFound)
	}
	userEntries, ok := r.entries[entry.UserID]
	if !ok {
		userEntries = make(map[string]*storage.EntryRecord)
		r.entries[entry.UserID] = userEntries
	}
	if _, ok := userEntries[entry.ID]; ok {
		return fmt.Errorf("entry %s: %w", entry.ID, storage.ErrAlreadyExists)
	}
	userEntries[entry.ID] = entry.Clone()
	return nil
}

func (r *Repository) GetEntry(_ context.Context, userID, entryID string) (*storage.EntryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.getEntryLocked(userID, entryID)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

func (r *Repository) getEntryLocked(userID, entryID string) (*storage.EntryRecord, error) {
	e, ok := r.entries[userID][entryID]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	return e, nil
}

func (r *Repository) ListEntries(_ context.Context, userID string) ([]*storage.EntryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*storage.EntryRecord, 0, len(r.entries[userID]))
	for _, e := range r.entries[userID] {
		out = append(out, e.Clone())
	}
	storage.SortEntries(out)
	return out, nil
}

func (r *Repository) UpdateEntry(_ context.Context, entry *storage.EntryRecord) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateEntryLocked(entry)
}

func (r *Repository) updateEntryLocked(entry *storage.EntryRecord) error {
	existing, err := r.getEntryLocked(entry.UserID, entry.ID)
	if err != nil {
		return err
	}
	updated := entry.Clone()
	updated.CreatedAt = existing.CreatedAt
	r.entries[entry.UserID][entry.ID] = updated
	return nil
}

func (r *Repository) DeleteEntry(_ context.Context, userID, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.getEntryLocked(userID, entryID); err != nil {
		return err
	}
	delete(r.entries[userID], entryID)
	return nil
}

// Rotate replaces the user and entries under one lock. On error every
// change is rolled back from a snapshot.
func (r *Repository) Rotate(_ context.Context, user *storage.UserRecord, entries []*storage.EntryRecord) error {
	if err := user.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrNotFound)
	}
	if existing.Username != user.Username {
		return fmt.Errorf("rotate cannot rename user %s", user.ID)
	}

	userSnapshot := existing.Clone()
	entrySnapshot := r.snapshotEntries(user.ID)

	r.users[user.ID] = user.Clone()
	for _, e := range entries {
		err := e.Validate()
		if err == nil && e.UserID != user.ID {
			err = fmt.Errorf("entry %s: %w", e.ID, storage.ErrNotFound)
		}
		if err == nil {
			err = r.updateEntryLocked(e)
		}
		if err != nil {
			r.users[user.ID] = userSnapshot
			r.entries[user.ID] = entrySnapshot
			return err
		}
	}
	return nil
}

func (r *Repository) snapshotEntries(userID string) map[string]*storage.EntryRecord {
	cp := make(map[string]*storage.EntryRecord, len(r.entries[userID]))
	for k, v := range r.entries[userID] {
		cp[k] = v.Clone()
	}
	return cp
}
