package crypto

import "errors"

var (
	// ErrKDFConfig is returned when key derivation parameters or salt are unusable.
	ErrKDFConfig = errors.New("invalid key derivation configuration")
	// ErrInvalidKey is returned when an AEAD key is not 32 bytes.
	ErrInvalidKey = errors.New("invalid encryption key")
	// ErrAuthenticationFailure is returned when a ciphertext fails to
	// authenticate: wrong key, tampered bytes, malformed nonce or truncation.
	ErrAuthenticationFailure = errors.New("ciphertext authentication failed")
	// ErrDecryptionFailure is returned by higher-level unwrap and field
	// decoders when a stored value cannot be opened or decoded.
	ErrDecryptionFailure = errors.New("decryption failed")
)
