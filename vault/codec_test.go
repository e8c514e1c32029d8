package vault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironkeep/crypto"
)

func testKey(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, crypto.KeySize)
}

func TestEncryptEntry_RoundTrip(t *testing.T) {
	key := testKey(1)
	entry, err := EncryptEntry("Example", "bob@example.com", "s3cr3t!", "recovery codes in drawer", key)
	require.NoError(t, err)
	assert.Equal(t, "Example", entry.Title)

	u, err := DecryptField(FieldUsername, entry.Username, key)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u)

	p, err := DecryptField(FieldPassword, entry.Password, key)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t!", p)

	n, err := DecryptField(FieldNote, entry.Note, key)
	require.NoError(t, err)
	assert.Equal(t, "recovery codes in drawer", n)
}

func TestEncryptEntry_IndependentNonces(t *testing.T) {
	key := testKey(1)
	entry, err := EncryptEntry("Example", "same", "same", "same", key)
	require.NoError(t, err)

	assert.NotEqual(t, entry.Username.Nonce, entry.Password.Nonce)
	assert.NotEqual(t, entry.Password.Nonce, entry.Note.Nonce)
	assert.NotEqual(t, entry.Username.Nonce, entry.Note.Nonce)
	assert.NotEqual(t, entry.Username.Ciphertext, entry.Password.Ciphertext)

	again, err := EncryptEntry("Example", "same", "same", "same", key)
	require.NoError(t, err)
	assert.NotEqual(t, entry.Password.Nonce, again.Password.Nonce)
}

func TestEncryptEntry_EmptyFields(t *testing.T) {
	key := testKey(1)
	entry, err := EncryptEntry("Only a title", "", "", "", key)
	require.NoError(t, err)
	n, err := DecryptField(FieldNote, entry.Note, key)
	require.NoError(t, err)
	assert.Empty(t, n)
}

func TestDecryptField_Failures(t *testing.T) {
	key := testKey(1)
	entry, err := EncryptEntry("Example", "bob@example.com", "s3cr3t!", "", key)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := DecryptField(FieldPassword, entry.Password, testKey(2))
		assert.ErrorIs(t, err, ErrDecryptionFailure)
	})

	t.Run("swapped field", func(t *testing.T) {
		_, err := DecryptField(FieldUsername, entry.Password, key)
		assert.ErrorIs(t, err, ErrDecryptionFailure)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := crypto.Sealed{Nonce: entry.Password.Nonce, Ciphertext: bytes.Clone(entry.Password.Ciphertext)}
		tampered.Ciphertext[0] ^= 0x80
		_, err := DecryptField(FieldPassword, tampered, key)
		assert.ErrorIs(t, err, ErrDecryptionFailure)
	})

	t.Run("missing nonce", func(t *testing.T) {
		_, err := DecryptField(FieldPassword, crypto.Sealed{Ciphertext: entry.Password.Ciphertext}, key)
		assert.ErrorIs(t, err, ErrDecryptionFailure)
	})

	t.Run("error does not leak plaintext", func(t *testing.T) {
		_, err := DecryptField(FieldPassword, entry.Password, testKey(2))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "s3cr3t!")
	})
}

func TestEncryptEntry_InvalidKey(t *testing.T) {
	_, err := EncryptEntry("Example", "u", "p", "n", []byte("short"))
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}
