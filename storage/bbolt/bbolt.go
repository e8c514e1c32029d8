// Package bbolt provides a BBolt-backed storage repository. It is the
// default local backend: a single file holding every user and entry.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/ironkeep/storage"
)

var (
	bucketUsers     = []byte("users")
	bucketUsernames = []byte("usernames")
	bucketEntries   = []byte("entries")
)

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(_ context.Context, user *storage.UserRecord) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		users, err := tx.CreateBucketIfNotExists(bucketUsers)
		if err != nil {
			return err
		}
		names, err := tx.CreateBucketIfNotExists(bucketUsernames)
		if err != nil {
			return err
		}
		if names.Get([]byte(user.Username)) != nil {
			return fmt.Errorf("username %q: %w", user.Username, storage.ErrAlreadyExists)
		}
		if users.Get([]byte(user.ID)) != nil {
			return fmt.Errorf("user %s: %w", user.ID, storage.ErrAlreadyExists)
		}
		if err := putJSON(users, user.ID, user); err != nil {
			return err
		}
		return names.Put([]byte(user.Username), []byte(user.ID))
	})
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*storage.UserRecord, error) {
	var user storage.UserRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		names := tx.Bucket(bucketUsernames)
		users := tx.Bucket(bucketUsers)
		if names == nil || users == nil {
			return fmt.Errorf("user %q: %w", username, storage.ErrNotFound)
		}
		id := names.Get([]byte(username))
		if id == nil {
			return fmt.Errorf("user %q: %w", username, storage.ErrNotFound)
		}
		data := users.Get(id)
		if data == nil {
			return fmt.Errorf("user %q: %w", username, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateEntry(_ context.Context, entry *storage.EntryRecord) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if users := tx.Bucket(bucketUsers); users == nil || users.Get([]byte(entry.UserID)) == nil {
			return fmt.Errorf("user %s: %w", entry.UserID, storage.ErrNotFound)
		}
		b, err := userEntriesBucket(tx, entry.UserID)
		if err != nil {
			return err
		}
		if b.Get([]byte(entry.ID)) != nil {
			return fmt.Errorf("entry %s: %w", entry.ID, storage.ErrAlreadyExists)
		}
		return putJSON(b, entry.ID, entry)
	})
}

func (s *Store) GetEntry(_ context.Context, userID, entryID string) (*storage.EntryRecord, error) {
	var entry *storage.EntryRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		entry, err = getEntryInTx(tx, userID, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) ListEntries(_ context.Context, userID string) ([]*storage.EntryRecord, error) {
	entries := []*storage.EntryRecord{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketEntries)
		if root == nil {
			return nil
		}
		b := root.Bucket([]byte(userID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e storage.EntryRecord
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, &e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	storage.SortEntries(entries)
	return entries, nil
}

func (s *Store) UpdateEntry(_ context.Context, entry *storage.EntryRecord) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return updateEntryInTx(tx, entry)
	})
}

func (s *Store) DeleteEntry(_ context.Context, userID, entryID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := getEntryInTx(tx, userID, entryID); err != nil {
			return err
		}
		return tx.Bucket(bucketEntries).Bucket([]byte(userID)).Delete([]byte(entryID))
	})
}

// Rotate rewrites the user and entries in a single bbolt transaction;
// returning an error from the closure rolls everything back.
func (s *Store) Rotate(_ context.Context, user *storage.UserRecord, entries []*storage.EntryRecord) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		if users == nil || users.Get([]byte(user.ID)) == nil {
			return fmt.Errorf("user %s: %w", user.ID, storage.ErrNotFound)
		}
		var existing storage.UserRecord
		if err := json.Unmarshal(users.Get([]byte(user.ID)), &existing); err != nil {
			return err
		}
		if existing.Username != user.Username {
			return fmt.Errorf("rotate cannot rename user %s", user.ID)
		}
		if err := putJSON(users, user.ID, user); err != nil {
			return err
		}
		for _, e := range entries {
			if err := e.Validate(); err != nil {
				return err
			}
			if e.UserID != user.ID {
				return fmt.Errorf("entry %s: %w", e.ID, storage.ErrNotFound)
			}
			if err := updateEntryInTx(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func userEntriesBucket(tx *bbolt.Tx, userID string) (*bbolt.Bucket, error) {
	root, err := tx.CreateBucketIfNotExists(bucketEntries)
	if err != nil {
		return nil, err
	}
	return root.CreateBucketIfNotExists([]byte(userID))
}

func getEntryInTx(tx *bbolt.Tx, userID, entryID string) (*storage.EntryRecord, error) {
	root := tx.Bucket(bucketEntries)
	if root == nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	b := root.Bucket([]byte(userID))
	if b == nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	data := b.Get([]byte(entryID))
	if data == nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	var e storage.EntryRecord
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func updateEntryInTx(tx *bbolt.Tx, entry *storage.EntryRecord) error {
	existing, err := getEntryInTx(tx, entry.UserID, entry.ID)
	if err != nil {
		return err
	}
	updated := entry.Clone()
	updated.CreatedAt = existing.CreatedAt
	return putJSON(tx.Bucket(bucketEntries).Bucket([]byte(entry.UserID)), entry.ID, updated)
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}
