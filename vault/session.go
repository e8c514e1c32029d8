package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironkeep/internal/uuid"
	"github.com/jmcleod/ironkeep/storage"
)

// Session is an authenticated login. The session key lives in a memguard
// enclave and is opened only for the duration of a single operation.
// Callers must call Close when done (e.g. defer session.Close()). A session
// also locks itself after the Authenticator's idle timeout.
type Session struct {
	mu       sync.Mutex
	auth     *Authenticator
	user     *storage.UserRecord
	key      *memguard.Enclave
	lastUsed time.Time
	closed   bool
}

func newSession(a *Authenticator, user *storage.UserRecord, key *memguard.Enclave) *Session {
	return &Session{
		auth:     a,
		user:     user,
		key:      key,
		lastUsed: a.now(),
	}
}

// Username returns the logged-in username.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Username
}

// UserID returns the logged-in user's ID.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.ID
}

// Close drops the session key. It is idempotent; every later operation
// returns ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closeLocked()
	s.auth.audit.info(context.Background(), AuditLogout, s.user.Username)
}

// Lock is an alias for Close used by inactivity handlers.
func (s *Session) Lock() {
	s.Close()
}

// Closed reports whether the session has been closed or has idled out.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.idleLocked()
}

// closeLocked drops the only reference to the enclave. Its contents are
// encrypted under memguard's process key, so the dropped enclave cannot be
// opened without a live reference; memguard.Purge at exit wipes that key and
// every locked buffer.
func (s *Session) closeLocked() {
	s.closed = true
	s.key = nil
}

func (s *Session) idleLocked() bool {
	timeout := s.auth.idleTimeout
	return timeout > 0 && s.auth.now().Sub(s.lastUsed) > timeout
}

// withKey runs fn with the opened session key. The buffer is destroyed as
// soon as fn returns.
func (s *Session) withKey(ctx context.Context, fn func(key []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.idleLocked() {
		s.closeLocked()
		s.auth.audit.info(ctx, AuditSessionIdleLocked, s.user.Username)
		return ErrSessionClosed
	}

	buf, err := s.key.Open()
	if err != nil {
		return fmt.Errorf("opening session key: %w", err)
	}
	defer buf.Destroy()

	s.lastUsed = s.auth.now()
	return fn(buf.Bytes())
}

// rotate runs a re-keying step and, if it succeeds, swaps the session onto
// the new user record and key.
func (s *Session) rotate(ctx context.Context, fn func(oldKey []byte, user *storage.UserRecord) (*storage.UserRecord, []byte, error)) error {
	return s.withKey(ctx, func(oldKey []byte) error {
		updated, newKey, err := fn(oldKey, s.user)
		if err != nil {
			return err
		}
		s.user = updated
		s.key = memguard.NewEnclave(newKey)
		return nil
	})
}

// AddEntry encrypts and stores a new entry and returns its ID.
func (s *Session) AddEntry(ctx context.Context, in EntryInput) (string, error) {
	if err := validateEntryInput(in); err != nil {
		return "", err
	}
	var id string
	err := s.withKey(ctx, func(key []byte) error {
		entry, err := EncryptEntry(in.Title, in.Username, in.Password, in.Note, key)
		if err != nil {
			return err
		}
		now := s.auth.now().UTC()
		rec := entry.record(uuid.New(), s.user.ID, now, now)
		if err := s.auth.repo.CreateEntry(ctx, rec); err != nil {
			return fmt.Errorf("storing entry: %w", err)
		}
		id = rec.ID
		s.auth.audit.info(ctx, AuditEntryCreated, s.user.Username, slog.String("entry_id", id))
		return nil
	})
	return id, err
}

// ListEntries returns the user's entries ordered by title. Nothing is decrypted.
func (s *Session) ListEntries(ctx context.Context) ([]EntrySummary, error) {
	var out []EntrySummary
	err := s.withKey(ctx, func([]byte) error {
		recs, err := s.auth.repo.ListEntries(ctx, s.user.ID)
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}
		out = make([]EntrySummary, 0, len(recs))
		for _, rec := range recs {
			out = append(out, summaryOf(rec))
		}
		return nil
	})
	return out, err
}

// GetEntry decrypts every field of one entry.
func (s *Session) GetEntry(ctx context.Context, entryID string) (*Secret, error) {
	var secret *Secret
	err := s.withKey(ctx, func(key []byte) error {
		rec, err := s.getRecord(ctx, entryID)
		if err != nil {
			return err
		}
		secret, err = decryptRecord(rec, key)
		if err != nil {
			return s.integrityFailure(ctx, entryID, err)
		}
		return nil
	})
	return secret, err
}

// RevealPassword decrypts only the password field of one entry.
func (s *Session) RevealPassword(ctx context.Context, entryID string) (string, error) {
	var pw string
	err := s.withKey(ctx, func(key []byte) error {
		rec, err := s.getRecord(ctx, entryID)
		if err != nil {
			return err
		}
		pw, err = DecryptField(FieldPassword, rec.Password.Sealed(), key)
		if err != nil {
			return s.integrityFailure(ctx, entryID, err)
		}
		return nil
	})
	return pw, err
}

// UpdateEntry re-encrypts every field of an existing entry with fresh nonces.
func (s *Session) UpdateEntry(ctx context.Context, entryID string, in EntryInput) error {
	if err := validateEntryInput(in); err != nil {
		return err
	}
	return s.withKey(ctx, func(key []byte) error {
		existing, err := s.getRecord(ctx, entryID)
		if err != nil {
			return err
		}
		entry, err := EncryptEntry(in.Title, in.Username, in.Password, in.Note, key)
		if err != nil {
			return err
		}
		rec := entry.record(entryID, s.user.ID, existing.CreatedAt, s.auth.now().UTC())
		if err := s.auth.repo.UpdateEntry(ctx, rec); err != nil {
			return mapEntryError(entryID, err)
		}
		s.auth.audit.info(ctx, AuditEntryUpdated, s.user.Username, slog.String("entry_id", entryID))
		return nil
	})
}

// DeleteEntry removes one entry.
func (s *Session) DeleteEntry(ctx context.Context, entryID string) error {
	return s.withKey(ctx, func([]byte) error {
		if !uuid.Valid(entryID) {
			return fmt.Errorf("%w: %q", ErrEntryNotFound, entryID)
		}
		if err := s.auth.repo.DeleteEntry(ctx, s.user.ID, entryID); err != nil {
			return mapEntryError(entryID, err)
		}
		s.auth.audit.info(ctx, AuditEntryDeleted, s.user.Username, slog.String("entry_id", entryID))
		return nil
	})
}

func (s *Session) getRecord(ctx context.Context, entryID string) (*storage.EntryRecord, error) {
	if !uuid.Valid(entryID) {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, entryID)
	}
	rec, err := s.auth.repo.GetEntry(ctx, s.user.ID, entryID)
	if err != nil {
		return nil, mapEntryError(entryID, err)
	}
	return rec, nil
}

func (s *Session) integrityFailure(ctx context.Context, entryID string, err error) error {
	s.auth.audit.alarm(ctx, AuditDataIntegrityFailure, s.user.Username, slog.String("entry_id", entryID))
	return fmt.Errorf("%w: %w", ErrDataIntegrity, err)
}

func mapEntryError(entryID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	return fmt.Errorf("entry %s: %w", entryID, err)
}
