package vault

import (
	"log/slog"
	"time"

	"github.com/jmcleod/ironkeep/crypto"
)

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithKDFParams sets the key derivation parameters used for new and rotated
// credentials. Parameters below the production floor make New fail with
// ErrConfiguration.
func WithKDFParams(params crypto.KDFParams) Option {
	return func(a *Authenticator) {
		a.kdf = params
		a.kdfErr = crypto.ValidateKDFParams(params)
	}
}

// WithIssuer sets the issuer shown in authenticator apps.
func WithIssuer(issuer string) Option {
	return func(a *Authenticator) {
		a.issuer = issuer
	}
}

// WithLogger sets the logger used for audit events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithClock overrides time.Now for TOTP verification, idle locking and throttling.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// WithIdleTimeout sets how long a session may sit unused before it locks
// itself. Zero disables idle locking.
func WithIdleTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		a.idleTimeout = d
	}
}

// WithLoginLimiter replaces the default login throttle. Sharing one limiter
// between Authenticators shares lockout state.
func WithLoginLimiter(l *LoginLimiter) Option {
	return func(a *Authenticator) {
		a.limiter = l
	}
}

// WithAllowWeakPasswords disables the minimum length and strength checks on
// master passwords.
func WithAllowWeakPasswords() Option {
	return func(a *Authenticator) {
		a.allowWeak = true
	}
}
