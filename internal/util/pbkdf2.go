package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

type PBKDF2Params struct {
	Iterations int `json:"iterations"`
	KeyLen     int `json:"key_len"`
}

func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: 600_000,
		KeyLen:     32,
	}
}

func DerivePBKDF2Key(passphrase string, salt []byte, params PBKDF2Params) ([]byte, error) {
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("pbkdf2 key length must be 32 bytes")
	}
	if params.Iterations < 1 {
		return nil, fmt.Errorf("pbkdf2 iterations must be positive")
	}
	pass := []byte(Normalize(passphrase))
	defer WipeBytes(pass)
	return pbkdf2.Key(pass, salt, params.Iterations, params.KeyLen, sha256.New), nil
}

func ComparePBKDF2Key(passphrase string, salt []byte, params PBKDF2Params, expectedKey []byte) (bool, error) {
	key, err := DerivePBKDF2Key(passphrase, salt, params)
	if err != nil {
		return false, err
	}
	defer WipeBytes(key)
	return subtle.ConstantTimeCompare(key, expectedKey) == 1, nil
}
