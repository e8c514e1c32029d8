package crypto

import (
	"crypto/subtle"
	"fmt"

	"github.com/jmcleod/ironkeep/internal/util"
)

const (
	// SaltSize is the length in bytes of a per-user KDF salt.
	SaltSize = 16
	// KeySize is the length in bytes of a derived key.
	KeySize = util.AESKeySize
	// MinIterations is the lowest PBKDF2 work factor accepted for stored credentials.
	MinIterations = 600_000
)

// KDFParams configures PBKDF2-HMAC-SHA256 key derivation.
type KDFParams = util.PBKDF2Params

// DefaultKDFParams returns the production derivation parameters.
func DefaultKDFParams() KDFParams {
	return util.DefaultPBKDF2Params()
}

// ValidateKDFParams enforces the minimum work factor and key length for
// credentials written to a store.
func ValidateKDFParams(p KDFParams) error {
	if p.Iterations < MinIterations {
		return fmt.Errorf("%w: iterations %d below minimum %d", ErrKDFConfig, p.Iterations, MinIterations)
	}
	if p.KeyLen != KeySize {
		return fmt.Errorf("%w: key length %d, want %d", ErrKDFConfig, p.KeyLen, KeySize)
	}
	return nil
}

// GenerateSalt returns SaltSize bytes from the system CSPRNG.
func GenerateSalt() ([]byte, error) {
	return util.RandomBytes(SaltSize)
}

// DeriveKey stretches password into a 32-byte key. The same password, salt
// and params always yield the same key. The password is NFKD-normalized first.
func DeriveKey(password string, salt []byte, params KDFParams) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrKDFConfig, SaltSize, len(salt))
	}
	key, err := util.DerivePBKDF2Key(password, salt, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKDFConfig, err)
	}
	return key, nil
}

// VerifyPassword re-derives a key from password and the stored salt and
// compares it with the stored verifier in constant time. Malformed stored
// values produce false together with an error.
func VerifyPassword(password, storedHashB64, storedSaltB64 string, params KDFParams) (bool, error) {
	salt, err := util.B64Decode(storedSaltB64)
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}
	if _, err := util.B64Decode(storedHashB64); err != nil {
		return false, fmt.Errorf("decoding verifier: %w", err)
	}
	derived, err := DeriveKey(password, salt, params)
	if err != nil {
		return false, err
	}
	defer util.WipeBytes(derived)
	return VerifyKey(derived, storedHashB64)
}

// VerifyKey compares an already derived key against the stored verifier in
// constant time.
func VerifyKey(derived []byte, storedHashB64 string) (bool, error) {
	expected, err := util.B64Decode(storedHashB64)
	if err != nil {
		return false, fmt.Errorf("decoding verifier: %w", err)
	}
	defer util.WipeBytes(expected)
	return subtle.ConstantTimeCompare(derived, expected) == 1, nil
}

// WipeKey zeroes a key in place once it is no longer needed.
func WipeKey(key []byte) {
	util.WipeBytes(key)
}
