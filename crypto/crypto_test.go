package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jmcleod/ironkeep/internal/util"
)

var testParams = KDFParams{Iterations: 1000, KeyLen: KeySize}

func testKey(t *testing.T) []byte {
	t.Helper()
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	key, err := DeriveKey("test-password", salt, testParams)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	return key
}

func TestDeriveKey(t *testing.T) {
	salt, _ := GenerateSalt()

	t.Run("Deterministic", func(t *testing.T) {
		k1, err := DeriveKey("hunter2hunter2", salt, testParams)
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		k2, _ := DeriveKey("hunter2hunter2", salt, testParams)
		if !bytes.Equal(k1, k2) {
			t.Error("same password and salt should derive the same key")
		}
		if len(k1) != KeySize {
			t.Errorf("expected %d byte key, got %d", KeySize, len(k1))
		}
	})

	t.Run("PasswordSensitivity", func(t *testing.T) {
		k1, _ := DeriveKey("hunter2hunter2", salt, testParams)
		k2, _ := DeriveKey("hunter2hunter3", salt, testParams)
		if bytes.Equal(k1, k2) {
			t.Error("different passwords should derive different keys")
		}
	})

	t.Run("SaltSensitivity", func(t *testing.T) {
		other, _ := GenerateSalt()
		k1, _ := DeriveKey("hunter2hunter2", salt, testParams)
		k2, _ := DeriveKey("hunter2hunter2", other, testParams)
		if bytes.Equal(k1, k2) {
			t.Error("different salts should derive different keys")
		}
	})

	t.Run("VerifierIsNotPassword", func(t *testing.T) {
		pw := "0123456789abcdef0123456789abcdef"
		k, _ := DeriveKey(pw, salt, testParams)
		if bytes.Equal(k, []byte(pw)) {
			t.Error("derived key must not equal the password bytes")
		}
	})

	t.Run("RejectBadSalt", func(t *testing.T) {
		_, err := DeriveKey("pw", []byte("short"), testParams)
		if !errors.Is(err, ErrKDFConfig) {
			t.Errorf("expected ErrKDFConfig, got %v", err)
		}
	})

	t.Run("RejectBadKeyLen", func(t *testing.T) {
		_, err := DeriveKey("pw", salt, KDFParams{Iterations: 1000, KeyLen: 16})
		if !errors.Is(err, ErrKDFConfig) {
			t.Errorf("expected ErrKDFConfig, got %v", err)
		}
	})
}

func TestValidateKDFParams(t *testing.T) {
	if err := ValidateKDFParams(DefaultKDFParams()); err != nil {
		t.Errorf("default params should validate: %v", err)
	}
	if err := ValidateKDFParams(KDFParams{Iterations: 599_999, KeyLen: 32}); !errors.Is(err, ErrKDFConfig) {
		t.Errorf("expected ErrKDFConfig for low iterations, got %v", err)
	}
	if err := ValidateKDFParams(KDFParams{Iterations: 600_000, KeyLen: 24}); !errors.Is(err, ErrKDFConfig) {
		t.Errorf("expected ErrKDFConfig for bad key length, got %v", err)
	}
}

func TestGenerateSalt(t *testing.T) {
	s1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	s2, _ := GenerateSalt()
	if len(s1) != SaltSize {
		t.Errorf("expected %d byte salt, got %d", SaltSize, len(s1))
	}
	if bytes.Equal(s1, s2) {
		t.Error("salts should be unique")
	}
}

func TestVerifyPassword(t *testing.T) {
	salt, _ := GenerateSalt()
	key, _ := DeriveKey("correct horse", salt, testParams)
	hash := util.B64Encode(key)
	saltB64 := util.B64Encode(salt)

	ok, err := VerifyPassword("correct horse", hash, saltB64, testParams)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword("wrong horse", hash, saltB64, testParams)
	if err != nil || ok {
		t.Errorf("expected mismatch, got ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword("correct horse", "!!!not base64", saltB64, testParams)
	if err == nil || ok {
		t.Errorf("expected error for malformed verifier, got ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword("correct horse", hash, "!!!", testParams)
	if err == nil || ok {
		t.Errorf("expected error for malformed salt, got ok=%v err=%v", ok, err)
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	key := testKey(t)
	for _, pt := range [][]byte{nil, []byte("x"), []byte("s3cr3t!"), bytes.Repeat([]byte("a"), 4096)} {
		sealed, err := Encrypt(pt, key)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if len(sealed.Nonce) != NonceSize {
			t.Errorf("expected %d byte nonce, got %d", NonceSize, len(sealed.Nonce))
		}
		if len(sealed.Ciphertext) != len(pt)+TagSize {
			t.Errorf("expected ciphertext length %d, got %d", len(pt)+TagSize, len(sealed.Ciphertext))
		}
		got, err := Decrypt(sealed, key)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Errorf("round trip mismatch: got %q want %q", got, pt)
		}
	}
}

func TestEnvelope_NonceUniqueness(t *testing.T) {
	key := testKey(t)
	seen := make(map[string]struct{}, 10_000)
	for i := 0; i < 10_000; i++ {
		sealed, err := Encrypt([]byte("same plaintext"), key)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		n := string(sealed.Nonce)
		if _, dup := seen[n]; dup {
			t.Fatalf("nonce repeated after %d encryptions", i)
		}
		seen[n] = struct{}{}
	}
}

func TestEnvelope_TamperDetection(t *testing.T) {
	key := testKey(t)
	sealed, _ := Encrypt([]byte("hello"), key)

	for i := 0; i < len(sealed.Ciphertext)*8; i++ {
		ct := util.CopyBytes(sealed.Ciphertext)
		ct[i/8] ^= 1 << (i % 8)
		if _, err := Decrypt(Sealed{Nonce: sealed.Nonce, Ciphertext: ct}, key); !errors.Is(err, ErrAuthenticationFailure) {
			t.Fatalf("ciphertext bit %d flip: expected ErrAuthenticationFailure, got %v", i, err)
		}
	}
	for i := 0; i < len(sealed.Nonce)*8; i++ {
		nonce := util.CopyBytes(sealed.Nonce)
		nonce[i/8] ^= 1 << (i % 8)
		if _, err := Decrypt(Sealed{Nonce: nonce, Ciphertext: sealed.Ciphertext}, key); !errors.Is(err, ErrAuthenticationFailure) {
			t.Fatalf("nonce bit %d flip: expected ErrAuthenticationFailure, got %v", i, err)
		}
	}
}

func TestEnvelope_Errors(t *testing.T) {
	key := testKey(t)
	sealed, _ := Encrypt([]byte("hello"), key)

	t.Run("WrongKey", func(t *testing.T) {
		other := testKey(t)
		if _, err := Decrypt(sealed, other); !errors.Is(err, ErrAuthenticationFailure) {
			t.Errorf("expected ErrAuthenticationFailure, got %v", err)
		}
	})

	t.Run("InvalidKeyLength", func(t *testing.T) {
		if _, err := Encrypt([]byte("x"), key[:16]); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
		if _, err := Decrypt(sealed, key[:16]); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("EmptyNonce", func(t *testing.T) {
		if _, err := Decrypt(Sealed{Ciphertext: sealed.Ciphertext}, key); !errors.Is(err, ErrAuthenticationFailure) {
			t.Errorf("expected ErrAuthenticationFailure, got %v", err)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		if _, err := Decrypt(Sealed{Nonce: sealed.Nonce, Ciphertext: sealed.Ciphertext[:TagSize-1]}, key); !errors.Is(err, ErrAuthenticationFailure) {
			t.Errorf("expected ErrAuthenticationFailure, got %v", err)
		}
	})

	t.Run("AADMismatch", func(t *testing.T) {
		s, _ := EncryptWithAAD([]byte("pw"), key, []byte("password"))
		if _, err := DecryptWithAAD(s, key, []byte("username")); !errors.Is(err, ErrAuthenticationFailure) {
			t.Errorf("expected ErrAuthenticationFailure, got %v", err)
		}
		got, err := DecryptWithAAD(s, key, []byte("password"))
		if err != nil || string(got) != "pw" {
			t.Errorf("expected pw, got %q err=%v", got, err)
		}
	})
}

func TestSealedEncoding(t *testing.T) {
	key := testKey(t)
	sealed, _ := Encrypt([]byte("JBSWY3DPEHPK3PXP"), key)

	parsed, err := ParseSealed(sealed.Encode())
	if err != nil {
		t.Fatalf("ParseSealed failed: %v", err)
	}
	if !bytes.Equal(parsed.Nonce, sealed.Nonce) || !bytes.Equal(parsed.Ciphertext, sealed.Ciphertext) {
		t.Error("ParseSealed did not reproduce the sealed value")
	}

	split, err := SealedFromBase64(sealed.NonceBase64(), sealed.CiphertextBase64())
	if err != nil {
		t.Fatalf("SealedFromBase64 failed: %v", err)
	}
	if pt, err := Decrypt(split, key); err != nil || string(pt) != "JBSWY3DPEHPK3PXP" {
		t.Errorf("expected seed back, got %q err=%v", pt, err)
	}

	if _, err := ParseSealed(util.B64Encode([]byte("short"))); !errors.Is(err, ErrAuthenticationFailure) {
		t.Errorf("expected ErrAuthenticationFailure for short envelope, got %v", err)
	}
	if _, err := ParseSealed("%%%"); !errors.Is(err, ErrAuthenticationFailure) {
		t.Errorf("expected ErrAuthenticationFailure for bad base64, got %v", err)
	}
}
