package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	AESKeySize   = 32
	GCMNonceSize = 12
	GCMTagSize   = 16
)

// SealAESGCM encrypts plainText under rawKey with a freshly generated nonce.
// The returned cipherText carries the GCM tag at its end.
func SealAESGCM(plainText, rawKey, aad []byte) (nonce, cipherText []byte, err error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	cipherText = gcm.Seal(nil, nonce, plainText, aad)
	return nonce, cipherText, nil
}

// OpenAESGCM reverses SealAESGCM. Any mismatch in key, nonce, tag or aad
// yields an error and no plaintext.
func OpenAESGCM(nonce, cipherText, rawKey, aad []byte) ([]byte, error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), gcm.NonceSize())
	}
	if len(cipherText) < gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext shorter than tag size")
	}

	plainText, err := gcm.Open(nil, nonce, cipherText, aad)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}

	return plainText, nil
}

func newGCM(rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
