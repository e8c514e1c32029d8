package storage

import (
	"bytes"
	"testing"

	"github.com/jmcleod/ironkeep/crypto"
)

func TestEnvelope(t *testing.T) {
	key := bytes.Repeat([]byte{7}, crypto.KeySize)
	plain := []byte("top secret")

	sealed, err := crypto.Encrypt(plain, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	env := EnvelopeFromSealed(sealed)
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	decrypted, err := crypto.Decrypt(env.Sealed(), key)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(plain, decrypted) {
		t.Errorf("expected %s, got %s", plain, decrypted)
	}

	nonce, ct := env.Columns()
	parsed, err := EnvelopeFromColumns(nonce, ct)
	if err != nil {
		t.Fatalf("EnvelopeFromColumns failed: %v", err)
	}
	if !bytes.Equal(parsed.Nonce, env.Nonce) || !bytes.Equal(parsed.Ciphertext, env.Ciphertext) {
		t.Error("column round trip changed the envelope")
	}
}

func TestEnvelope_Validate(t *testing.T) {
	if err := (Envelope{}).Validate(); err == nil {
		t.Error("expected error for empty envelope")
	}
	if err := (Envelope{Nonce: make([]byte, 12), Ciphertext: []byte("short")}).Validate(); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
}

func TestEnvelope_CloneIsDeep(t *testing.T) {
	env := Envelope{Nonce: make([]byte, 12), Ciphertext: make([]byte, 16)}
	cp := env.Clone()
	cp.Nonce[0] = 1
	cp.Ciphertext[0] = 1
	if env.Nonce[0] != 0 || env.Ciphertext[0] != 0 {
		t.Error("Clone should not share backing arrays")
	}
}

func TestSortEntries(t *testing.T) {
	entries := []*EntryRecord{
		{ID: "3", Title: "github"},
		{ID: "2", Title: "Example"},
		{ID: "1", Title: "github"},
	}
	SortEntries(entries)
	got := []string{entries[0].ID, entries[1].ID, entries[2].ID}
	want := []string{"2", "1", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}
