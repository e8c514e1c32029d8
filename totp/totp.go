// Package totp manages the second authentication factor: seed generation,
// authenticator-app provisioning URIs, at-rest wrapping of the seed under the
// session key, and RFC 6238 code verification.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmcleod/ironkeep/crypto"
	"github.com/jmcleod/ironkeep/internal/util"
)

const (
	SeedBytes = 20
	Digits    = 6
	Period    = 30
	// Window is the number of time steps accepted either side of the current one.
	Window = 1
	// MaxCode is the largest value a Digits-long code can take.
	MaxCode = 999_999

	DefaultIssuer = "Ironkeep"
)

var (
	ErrInvalidSeed        = errors.New("invalid TOTP seed")
	ErrMissingAccountName = errors.New("missing account name")
	ErrMissingIssuer      = errors.New("missing issuer")
)

var seedEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Setup is returned once at enrollment. Seed is the plaintext base32 secret
// and is never persisted unwrapped.
type Setup struct {
	Seed string
	URI  string
}

// Generate creates a fresh seed for accountLabel and its provisioning URI.
func Generate(accountLabel, issuer string) (Setup, error) {
	if accountLabel == "" {
		return Setup{}, ErrMissingAccountName
	}
	if issuer == "" {
		return Setup{}, ErrMissingIssuer
	}
	raw, err := util.RandomBytes(SeedBytes)
	if err != nil {
		return Setup{}, fmt.Errorf("generating seed: %w", err)
	}
	seed := seedEncoding.EncodeToString(raw)
	util.WipeBytes(raw)

	uri, err := ProvisioningURI(seed, accountLabel, issuer)
	if err != nil {
		return Setup{}, err
	}
	return Setup{Seed: seed, URI: uri}, nil
}

// ProvisioningURI renders the otpauth:// URI consumed by authenticator apps.
func ProvisioningURI(seed, accountLabel, issuer string) (string, error) {
	if accountLabel == "" {
		return "", ErrMissingAccountName
	}
	if issuer == "" {
		return "", ErrMissingIssuer
	}
	if _, err := decodeSeed(seed); err != nil {
		return "", err
	}
	label := url.PathEscape(issuer + ":" + accountLabel)
	values := url.Values{}
	values.Set("secret", seed)
	values.Set("issuer", issuer)
	values.Set("algorithm", "SHA1")
	values.Set("digits", strconv.Itoa(Digits))
	values.Set("period", strconv.Itoa(Period))
	return "otpauth://totp/" + label + "?" + values.Encode(), nil
}

// Wrap encrypts seed under key. The result carries its own nonce.
func Wrap(seed string, key []byte) (string, error) {
	if _, err := decodeSeed(seed); err != nil {
		return "", err
	}
	sealed, err := crypto.Encrypt([]byte(seed), key)
	if err != nil {
		return "", fmt.Errorf("wrapping seed: %w", err)
	}
	return sealed.Encode(), nil
}

// Unwrap reverses Wrap. A wrong key, a corrupted value or malformed input
// all yield crypto.ErrDecryptionFailure.
func Unwrap(wrapped string, key []byte) (string, error) {
	sealed, err := crypto.ParseSealed(wrapped)
	if err != nil {
		return "", fmt.Errorf("%w: %v", crypto.ErrDecryptionFailure, err)
	}
	pt, err := crypto.Decrypt(sealed, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", crypto.ErrDecryptionFailure, err)
	}
	defer util.WipeBytes(pt)
	return string(pt), nil
}

// VerifyCode checks code against seed at the current time.
func VerifyCode(seed string, code int) bool {
	return VerifyCodeAt(seed, code, time.Now())
}

// VerifyCodeAt accepts code if it matches any step within Window of t.
// Codes outside [0, MaxCode] are rejected without evaluation.
func VerifyCodeAt(seed string, code int, t time.Time) bool {
	if code < 0 || code > MaxCode {
		return false
	}
	key, err := decodeSeed(seed)
	if err != nil {
		return false
	}
	defer util.WipeBytes(key)

	want := []byte(formatCode(code))
	match := 0
	for i := -Window; i <= Window; i++ {
		at := t.Add(time.Duration(i*Period) * time.Second)
		got := []byte(formatCode(hotp(key, counterAt(at))))
		match |= subtle.ConstantTimeCompare(got, want)
	}
	return match == 1
}

// CodeAt computes the code for seed at t.
func CodeAt(seed string, t time.Time) (int, error) {
	key, err := decodeSeed(seed)
	if err != nil {
		return 0, err
	}
	defer util.WipeBytes(key)
	return hotp(key, counterAt(t)), nil
}

func decodeSeed(seed string) ([]byte, error) {
	if seed == "" {
		return nil, ErrInvalidSeed
	}
	key, err := seedEncoding.DecodeString(strings.ToUpper(seed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return key, nil
}

func counterAt(t time.Time) uint64 {
	return uint64(t.Unix() / Period)
}

func hotp(key []byte, counter uint64) int {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	binCode := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)
	return binCode % (MaxCode + 1)
}

func formatCode(code int) string {
	return fmt.Sprintf("%0*d", Digits, code)
}

// ParseCode turns user input such as "123 456" into a code. Anything other
// than exactly Digits decimal digits is rejected.
func ParseCode(input string) (int, error) {
	s := strings.TrimSpace(strings.ReplaceAll(input, " ", ""))
	if len(s) != Digits {
		return 0, fmt.Errorf("code must be %d digits", Digits)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("code must be %d digits", Digits)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parsing code: %w", err)
	}
	return n, nil
}
