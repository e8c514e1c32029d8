package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironkeep/storage"
	"github.com/jmcleod/ironkeep/totp"
)

// PendingLogin is the state between a verified password and a verified
// TOTP code. It holds the derived key in an encrypted enclave and can be
// used exactly once.
type PendingLogin struct {
	mu   sync.Mutex
	auth *Authenticator
	user *storage.UserRecord
	key  *memguard.Enclave
	done bool
}

// Username returns the account this login is for.
func (p *PendingLogin) Username() string {
	return p.user.Username
}

// VerifyTOTP completes the login. A wrong code discards the key; the caller
// must start again with BeginLogin. Any call after the first returns
// ErrLoginState.
func (p *PendingLogin) VerifyTOTP(ctx context.Context, code int) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, ErrLoginState
	}
	p.done = true
	enclave := p.key
	p.key = nil

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := p.auth
	username := p.user.Username

	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening login key: %w", err)
	}
	defer buf.Destroy()

	seed, err := totp.Unwrap(p.user.TOTPSecret, buf.Bytes())
	if err != nil {
		a.audit.alarm(ctx, AuditDataIntegrityFailure, username, slog.String("stage", "totp_seed"))
		return nil, fmt.Errorf("%w: %w", ErrDataIntegrity, err)
	}
	if !totp.VerifyCodeAt(seed, code, a.now()) {
		a.failLogin(ctx, AuditLoginTOTPFailure, username)
		return nil, ErrInvalidTOTPCode
	}

	a.limiter.recordSuccess(username)
	a.audit.info(ctx, AuditLoginSuccess, username, slog.String("user_id", p.user.ID))
	return newSession(a, p.user, enclave), nil
}

// Cancel abandons the login and drops the key. It is safe to call after
// VerifyTOTP.
func (p *PendingLogin) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	p.key = nil
}
