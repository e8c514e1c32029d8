package totp_test

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironkeep/crypto"
	"github.com/jmcleod/ironkeep/totp"
)

// base32 of the RFC 6238 SHA1 test secret "12345678901234567890".
const rfcSeed = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func testKey(t *testing.T) []byte {
	t.Helper()
	return bytes.Repeat([]byte{0x42}, crypto.KeySize)
}

func TestCodeAt_RFC6238Vectors(t *testing.T) {
	tests := []struct {
		unix int64
		want int
	}{
		{59, 287082},
		{1111111109, 81804},
		{1111111111, 50471},
		{1234567890, 5924},
		{2000000000, 279037},
	}
	for _, tt := range tests {
		got, err := totp.CodeAt(rfcSeed, time.Unix(tt.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "t=%d", tt.unix)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	setup, err := totp.Generate("alice", "Ironkeep")
	require.NoError(t, err)

	assert.Len(t, setup.Seed, 32)
	assert.Regexp(t, `^[A-Z2-7]+$`, setup.Seed)
	assert.True(t, strings.HasPrefix(setup.URI, "otpauth://totp/Ironkeep:alice?"))

	u, err := url.Parse(setup.URI)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, setup.Seed, q.Get("secret"))
	assert.Equal(t, "Ironkeep", q.Get("issuer"))
	assert.Equal(t, "SHA1", q.Get("algorithm"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "30", q.Get("period"))

	other, err := totp.Generate("alice", "Ironkeep")
	require.NoError(t, err)
	assert.NotEqual(t, setup.Seed, other.Seed)
}

func TestGenerate_MissingFields(t *testing.T) {
	t.Parallel()
	_, err := totp.Generate("", "Ironkeep")
	assert.ErrorIs(t, err, totp.ErrMissingAccountName)
	_, err = totp.Generate("alice", "")
	assert.ErrorIs(t, err, totp.ErrMissingIssuer)
}

func TestProvisioningURI_EscapesLabel(t *testing.T) {
	t.Parallel()
	uri, err := totp.ProvisioningURI(rfcSeed, "bob smith", "My Vault")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/My%20Vault:bob%20smith?"), uri)

	_, err = totp.ProvisioningURI("not base32!", "bob", "My Vault")
	assert.ErrorIs(t, err, totp.ErrInvalidSeed)
}

func TestWrapUnwrap(t *testing.T) {
	t.Parallel()
	key := testKey(t)
	setup, err := totp.Generate("alice", "Ironkeep")
	require.NoError(t, err)

	wrapped, err := totp.Wrap(setup.Seed, key)
	require.NoError(t, err)
	assert.NotContains(t, wrapped, setup.Seed)

	again, err := totp.Wrap(setup.Seed, key)
	require.NoError(t, err)
	assert.NotEqual(t, wrapped, again, "each wrap uses a fresh nonce")

	seed, err := totp.Unwrap(wrapped, key)
	require.NoError(t, err)
	assert.Equal(t, setup.Seed, seed)
}

func TestUnwrap_Failures(t *testing.T) {
	t.Parallel()
	key := testKey(t)
	wrapped, err := totp.Wrap(rfcSeed, key)
	require.NoError(t, err)

	wrongKey := bytes.Repeat([]byte{0x43}, crypto.KeySize)
	_, err = totp.Unwrap(wrapped, wrongKey)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailure)

	_, err = totp.Unwrap("not-base64!!", key)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailure)

	sealed, err := crypto.ParseSealed(wrapped)
	require.NoError(t, err)
	sealed.Ciphertext[0] ^= 0x01
	_, err = totp.Unwrap(sealed.Encode(), key)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailure)
}

func TestVerifyCodeAt_Window(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)

	current, err := totp.CodeAt(rfcSeed, now)
	require.NoError(t, err)
	assert.True(t, totp.VerifyCodeAt(rfcSeed, current, now))

	prev, err := totp.CodeAt(rfcSeed, now.Add(-totp.Period*time.Second))
	require.NoError(t, err)
	assert.True(t, totp.VerifyCodeAt(rfcSeed, prev, now), "previous step is inside the window")

	next, err := totp.CodeAt(rfcSeed, now.Add(totp.Period*time.Second))
	require.NoError(t, err)
	assert.True(t, totp.VerifyCodeAt(rfcSeed, next, now), "next step is inside the window")

	stale, err := totp.CodeAt(rfcSeed, now.Add(-3*totp.Period*time.Second))
	require.NoError(t, err)
	if stale != current && stale != prev && stale != next {
		assert.False(t, totp.VerifyCodeAt(rfcSeed, stale, now), "three steps back is outside the window")
	}
}

func TestVerifyCodeAt_Rejects(t *testing.T) {
	t.Parallel()
	now := time.Unix(59, 0)
	assert.False(t, totp.VerifyCodeAt(rfcSeed, -1, now))
	assert.False(t, totp.VerifyCodeAt(rfcSeed, 1_000_000, now))
	assert.False(t, totp.VerifyCodeAt("", 287082, now))
	assert.False(t, totp.VerifyCodeAt("!!!", 287082, now))
	assert.True(t, totp.VerifyCodeAt(strings.ToLower(rfcSeed), 287082, now), "seed is case-insensitive")
}

func TestVerifyCode_Now(t *testing.T) {
	t.Parallel()
	code, err := totp.CodeAt(rfcSeed, time.Now())
	require.NoError(t, err)
	assert.True(t, totp.VerifyCode(rfcSeed, code))
}

func TestParseCode(t *testing.T) {
	t.Parallel()
	n, err := totp.ParseCode(" 081 804 ")
	require.NoError(t, err)
	assert.Equal(t, 81804, n)

	for _, bad := range []string{"", "12345", "1234567", "12a456", "-12345"} {
		_, err := totp.ParseCode(bad)
		assert.Error(t, err, bad)
	}
}
