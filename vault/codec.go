package vault

import (
	"fmt"
	"time"

	"github.com/jmcleod/ironkeep/crypto"
	icrypto "github.com/jmcleod/ironkeep/internal/crypto"
	"github.com/jmcleod/ironkeep/internal/util"
	"github.com/jmcleod/ironkeep/storage"
)

// Field names an encrypted entry column. The name is bound into each
// ciphertext as associated data.
type Field string

const (
	FieldUsername Field = "username"
	FieldPassword Field = "password"
	FieldNote     Field = "note"
)

// EntryInput is the plaintext form of a vault entry supplied by the caller.
type EntryInput struct {
	Title    string
	Username string
	Password string
	Note     string
}

// Entry is an encrypted vault entry. Each confidential field is sealed
// independently with its own nonce.
type Entry struct {
	Title    string
	Username crypto.Sealed
	Password crypto.Sealed
	Note     crypto.Sealed
}

// Secret is a fully decrypted entry.
type Secret struct {
	ID        string
	Title     string
	Username  string
	Password  string
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntrySummary lists an entry without decrypting anything.
type EntrySummary struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EncryptEntry seals the three confidential fields under key.
func EncryptEntry(title, serviceUsername, password, note string, key []byte) (*Entry, error) {
	username, err := encryptField(FieldUsername, serviceUsername, key)
	if err != nil {
		return nil, err
	}
	pw, err := encryptField(FieldPassword, password, key)
	if err != nil {
		return nil, err
	}
	n, err := encryptField(FieldNote, note, key)
	if err != nil {
		return nil, err
	}
	return &Entry{Title: title, Username: username, Password: pw, Note: n}, nil
}

// DecryptField opens one sealed field. Any failure, including a ciphertext
// that was sealed for a different field, returns ErrDecryptionFailure.
func DecryptField(field Field, sealed crypto.Sealed, key []byte) (string, error) {
	pt, err := crypto.DecryptWithAAD(sealed, key, fieldAAD(field))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDecryptionFailure, field, err)
	}
	defer util.WipeBytes(pt)
	return string(pt), nil
}

func encryptField(field Field, value string, key []byte) (crypto.Sealed, error) {
	pt := []byte(value)
	defer util.WipeBytes(pt)
	sealed, err := crypto.EncryptWithAAD(pt, key, fieldAAD(field))
	if err != nil {
		return crypto.Sealed{}, fmt.Errorf("encrypting %s: %w", field, err)
	}
	return sealed, nil
}

func fieldAAD(field Field) []byte {
	return icrypto.AADEntryField(string(field), icrypto.AADVersion)
}

func (e *Entry) record(id, userID string, createdAt, updatedAt time.Time) *storage.EntryRecord {
	return &storage.EntryRecord{
		ID:        id,
		UserID:    userID,
		Title:     e.Title,
		Username:  storage.EnvelopeFromSealed(e.Username),
		Password:  storage.EnvelopeFromSealed(e.Password),
		Note:      storage.EnvelopeFromSealed(e.Note),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func decryptRecord(rec *storage.EntryRecord, key []byte) (*Secret, error) {
	username, err := DecryptField(FieldUsername, rec.Username.Sealed(), key)
	if err != nil {
		return nil, err
	}
	pw, err := DecryptField(FieldPassword, rec.Password.Sealed(), key)
	if err != nil {
		return nil, err
	}
	note, err := DecryptField(FieldNote, rec.Note.Sealed(), key)
	if err != nil {
		return nil, err
	}
	return &Secret{
		ID:        rec.ID,
		Title:     rec.Title,
		Username:  username,
		Password:  pw,
		Note:      note,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func summaryOf(rec *storage.EntryRecord) EntrySummary {
	return EntrySummary{
		ID:        rec.ID,
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
