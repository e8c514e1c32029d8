package storage

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// UserRecord is the persisted master credential. VerifierHash and Salt are
// base64 text. TOTPSecret is the wrapped seed in its single-column encoding
// (base64 of nonce || ciphertext).
type UserRecord struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	VerifierHash  string    `json:"verifier_hash"`
	Salt          string    `json:"salt"`
	TOTPSecret    string    `json:"totp_secret"`
	KDFIterations int       `json:"kdf_iterations"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// Validate checks the fields every backend requires before writing.
func (u *UserRecord) Validate() error {
	switch {
	case u == nil:
		return fmt.Errorf("user record is nil")
	case u.ID == "":
		return fmt.Errorf("user record missing id")
	case u.Username == "":
		return fmt.Errorf("user record missing username")
	case u.VerifierHash == "" || u.Salt == "" || u.TOTPSecret == "":
		return fmt.Errorf("user record %s missing credential material", u.ID)
	case u.KDFIterations <= 0:
		return fmt.Errorf("user record %s has no KDF iteration count", u.ID)
	}
	return nil
}

// EntryRecord is one persisted vault entry. Title is stored in plaintext;
// every other field is an independently sealed Envelope.
type EntryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Username  Envelope  `json:"username"`
	Password  Envelope  `json:"password"`
	Note      Envelope  `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *EntryRecord) Clone() *EntryRecord {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Username = e.Username.Clone()
	cp.Password = e.Password.Clone()
	cp.Note = e.Note.Clone()
	return &cp
}

func (e *EntryRecord) Validate() error {
	if e == nil {
		return fmt.Errorf("entry record is nil")
	}
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("entry record missing id or user id")
	}
	if e.Title == "" {
		return fmt.Errorf("entry record %s missing title", e.ID)
	}
	for name, env := range map[string]Envelope{"username": e.Username, "password": e.Password, "note": e.Note} {
		if err := env.Validate(); err != nil {
			return fmt.Errorf("entry record %s %s: %w", e.ID, name, err)
		}
	}
	return nil
}

// SortEntries orders entries by title, breaking ties by ID.
func SortEntries(entries []*EntryRecord) {
	slices.SortFunc(entries, func(a, b *EntryRecord) int {
		if c := cmp.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
