package crypto

import (
	"fmt"

	"github.com/jmcleod/ironkeep/internal/util"
)

const (
	// NonceSize is the AES-GCM nonce length used by every envelope.
	NonceSize = util.GCMNonceSize
	// TagSize is the authentication tag length appended to every ciphertext.
	TagSize = util.GCMTagSize
)

// Sealed is the output of one encryption call. Ciphertext carries the GCM
// tag in its final TagSize bytes. A Sealed value is never reused for a
// second plaintext.
type Sealed struct {
	Nonce      []byte
	Ciphertext []byte
}

// Encode packs the nonce and ciphertext into a single base64 string
// (nonce || ciphertext).
func (s Sealed) Encode() string {
	buf := make([]byte, 0, len(s.Nonce)+len(s.Ciphertext))
	buf = append(buf, s.Nonce...)
	buf = append(buf, s.Ciphertext...)
	return util.B64Encode(buf)
}

func (s Sealed) NonceBase64() string {
	return util.B64Encode(s.Nonce)
}

func (s Sealed) CiphertextBase64() string {
	return util.B64Encode(s.Ciphertext)
}

// ParseSealed reverses Encode.
func ParseSealed(encoded string) (Sealed, error) {
	raw, err := util.B64Decode(encoded)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: decoding envelope: %v", ErrAuthenticationFailure, err)
	}
	if len(raw) < NonceSize+TagSize {
		return Sealed{}, fmt.Errorf("%w: envelope too short", ErrAuthenticationFailure)
	}
	return Sealed{
		Nonce:      util.CopyBytes(raw[:NonceSize]),
		Ciphertext: util.CopyBytes(raw[NonceSize:]),
	}, nil
}

// SealedFromBase64 rebuilds a Sealed value from separately stored nonce and
// ciphertext columns.
func SealedFromBase64(nonceB64, ciphertextB64 string) (Sealed, error) {
	nonce, err := util.B64Decode(nonceB64)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: decoding nonce: %v", ErrAuthenticationFailure, err)
	}
	ct, err := util.B64Decode(ciphertextB64)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: decoding ciphertext: %v", ErrAuthenticationFailure, err)
	}
	return Sealed{Nonce: nonce, Ciphertext: ct}, nil
}

// Encrypt seals plaintext under key with a fresh random nonce.
func Encrypt(plaintext, key []byte) (Sealed, error) {
	return EncryptWithAAD(plaintext, key, nil)
}

// EncryptWithAAD is Encrypt with associated data that must be presented
// again on decryption.
func EncryptWithAAD(plaintext, key, aad []byte) (Sealed, error) {
	if len(key) != KeySize {
		return Sealed{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	nonce, ct, err := util.SealAESGCM(plaintext, key, aad)
	if err != nil {
		return Sealed{}, fmt.Errorf("sealing: %w", err)
	}
	return Sealed{Nonce: nonce, Ciphertext: ct}, nil
}

// Decrypt opens s under key. It returns the full plaintext or an error,
// never a partial result.
func Decrypt(s Sealed, key []byte) ([]byte, error) {
	return DecryptWithAAD(s, key, nil)
}

func DecryptWithAAD(s Sealed, key, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	pt, err := util.OpenAESGCM(s.Nonce, s.Ciphertext, key, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}
	return pt, nil
}
