// Package vault implements registration, the two-step login protocol and
// the authenticated session through which vault entries are read and written.
//
// Login is split into two types so that a TOTP code can never be evaluated
// before the password has been verified:
//
//	pending, err := auth.BeginLogin(ctx, username, password)
//	session, err := pending.VerifyTOTP(ctx, code)
//	defer session.Close()
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironkeep/crypto"
	"github.com/jmcleod/ironkeep/internal/util"
	"github.com/jmcleod/ironkeep/internal/uuid"
	"github.com/jmcleod/ironkeep/storage"
	"github.com/jmcleod/ironkeep/totp"
)

// DefaultIdleTimeout is how long a session may go unused before it locks.
const DefaultIdleTimeout = 5 * time.Minute

// Authenticator registers users and runs the login protocol against a
// storage.Repository.
type Authenticator struct {
	repo        storage.Repository
	kdf         crypto.KDFParams
	kdfErr      error
	issuer      string
	logger      *slog.Logger
	audit       *auditLogger
	now         func() time.Time
	idleTimeout time.Duration
	limiter     *LoginLimiter
	allowWeak   bool
	dummySalt   []byte
}

// Enrollment is returned exactly once by Register. The seed is never stored
// in plaintext and cannot be retrieved again.
type Enrollment struct {
	UserID   string
	Username string
	Seed     string
	URI      string
}

// New returns an Authenticator backed by repo.
func New(repo storage.Repository, opts ...Option) (*Authenticator, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: nil repository", ErrConfiguration)
	}
	a := &Authenticator{
		repo:        repo,
		kdf:         crypto.DefaultKDFParams(),
		issuer:      totp.DefaultIssuer,
		logger:      slog.Default(),
		now:         time.Now,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.kdfErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, a.kdfErr)
	}
	if a.limiter == nil {
		a.limiter = NewLoginLimiter()
	}
	if a.limiter.now == nil {
		a.limiter.now = a.now
	}
	a.audit = newAuditLogger(a.logger, a.now)

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	a.dummySalt = salt
	return a, nil
}

// Register creates a user with a fresh salt, verifier and TOTP seed.
func (a *Authenticator) Register(ctx context.Context, username, password string) (*Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateMasterPassword(password, a.allowWeak); err != nil {
		return nil, err
	}

	// Cheap check before the KDF; the store's unique constraint is authoritative.
	if _, err := a.repo.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	key, err := crypto.DeriveKey(password, salt, a.kdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer crypto.WipeKey(key)

	setup, err := totp.Generate(username, a.issuer)
	if err != nil {
		return nil, fmt.Errorf("generating totp seed: %w", err)
	}
	wrapped, err := totp.Wrap(setup.Seed, key)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	user := &storage.UserRecord{
		ID:            uuid.New(),
		Username:      username,
		VerifierHash:  util.B64Encode(key),
		Salt:          util.B64Encode(salt),
		TOTPSecret:    wrapped,
		KDFIterations: a.kdf.Iterations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("storing user: %w", err)
	}

	a.audit.info(ctx, AuditRegister, username, slog.String("user_id", user.ID))
	return &Enrollment{
		UserID:   user.ID,
		Username: username,
		Seed:     setup.Seed,
		URI:      setup.URI,
	}, nil
}

// BeginLogin verifies username and password. On success the returned
// PendingLogin must be completed with VerifyTOTP or released with Cancel.
func (a *Authenticator) BeginLogin(ctx context.Context, username, password string) (*PendingLogin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if blocked, retryAfter := a.limiter.check(username); blocked {
		a.audit.warn(ctx, AuditLoginRateLimited, username, slog.Duration("retry_after", retryAfter))
		return nil, fmt.Errorf("%w: retry in %s", ErrTooManyAttempts, retryAfter.Round(time.Second))
	}

	user, err := a.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		// Spend the same KDF work as a real check so timing does not reveal
		// whether the username exists.
		if dummy, derr := crypto.DeriveKey(password, a.dummySalt, a.kdf); derr == nil {
			crypto.WipeKey(dummy)
		}
		a.failLogin(ctx, AuditLoginFailure, username)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	key, err := a.deriveUserKey(ctx, user, password)
	if err != nil {
		return nil, err
	}
	ok, err := crypto.VerifyKey(key, user.VerifierHash)
	if err != nil {
		crypto.WipeKey(key)
		a.audit.alarm(ctx, AuditDataIntegrityFailure, username, slog.String("stage", "verifier"))
		return nil, fmt.Errorf("%w: %w", ErrDataIntegrity, err)
	}
	if !ok {
		crypto.WipeKey(key)
		a.failLogin(ctx, AuditLoginFailure, username)
		return nil, ErrInvalidCredentials
	}

	a.audit.info(ctx, AuditLoginPasswordOK, username)
	return &PendingLogin{
		auth: a,
		user: user,
		key:  memguard.NewEnclave(key),
	}, nil
}

// ChangePassword re-keys the user behind s: new salt, new verifier, the TOTP
// seed re-wrapped and every entry re-encrypted under the new key, all
// written in one Repository.Rotate call. On success s continues with the
// new key.
func (a *Authenticator) ChangePassword(ctx context.Context, s *Session, currentPassword, newPassword string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateMasterPassword(newPassword, a.allowWeak); err != nil {
		return err
	}
	return s.rotate(ctx, func(oldKey []byte, user *storage.UserRecord) (*storage.UserRecord, []byte, error) {
		if blocked, retryAfter := a.limiter.check(user.Username); blocked {
			a.audit.warn(ctx, AuditLoginRateLimited, user.Username,
				slog.String("stage", "change_password"), slog.Duration("retry_after", retryAfter))
			return nil, nil, fmt.Errorf("%w: retry in %s", ErrTooManyAttempts, retryAfter.Round(time.Second))
		}
		candidate, err := a.deriveUserKey(ctx, user, currentPassword)
		if err != nil {
			return nil, nil, err
		}
		ok, err := crypto.VerifyKey(candidate, user.VerifierHash)
		crypto.WipeKey(candidate)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrDataIntegrity, err)
		}
		if !ok {
			a.failLogin(ctx, AuditLoginFailure, user.Username, slog.String("stage", "change_password"))
			return nil, nil, ErrInvalidCredentials
		}
		a.limiter.recordSuccess(user.Username)

		salt, err := crypto.GenerateSalt()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		newKey, err := crypto.DeriveKey(newPassword, salt, a.kdf)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		updated, err := a.rekey(ctx, user, oldKey, newKey, salt)
		if err != nil {
			crypto.WipeKey(newKey)
			return nil, nil, err
		}
		return updated, newKey, nil
	})
}

// rekey rewraps the seed and re-encrypts every entry from oldKey to newKey
// and persists the result atomically.
func (a *Authenticator) rekey(ctx context.Context, user *storage.UserRecord, oldKey, newKey, newSalt []byte) (*storage.UserRecord, error) {
	seed, err := totp.Unwrap(user.TOTPSecret, oldKey)
	if err != nil {
		a.audit.alarm(ctx, AuditDataIntegrityFailure, user.Username, slog.String("stage", "totp_seed"))
		return nil, fmt.Errorf("%w: %w", ErrDataIntegrity, err)
	}
	wrapped, err := totp.Wrap(seed, newKey)
	if err != nil {
		return nil, err
	}

	records, err := a.repo.ListEntries(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	now := a.now().UTC()
	rotated := make([]*storage.EntryRecord, 0, len(records))
	for _, rec := range records {
		secret, err := decryptRecord(rec, oldKey)
		if err != nil {
			a.audit.alarm(ctx, AuditDataIntegrityFailure, user.Username, slog.String("entry_id", rec.ID))
			return nil, fmt.Errorf("%w: %w", ErrDataIntegrity, err)
		}
		entry, err := EncryptEntry(secret.Title, secret.Username, secret.Password, secret.Note, newKey)
		if err != nil {
			return nil, err
		}
		rotated = append(rotated, entry.record(rec.ID, user.ID, rec.CreatedAt, now))
	}

	updated := user.Clone()
	updated.VerifierHash = util.B64Encode(newKey)
	updated.Salt = util.B64Encode(newSalt)
	updated.TOTPSecret = wrapped
	updated.KDFIterations = a.kdf.Iterations
	updated.UpdatedAt = now
	if err := a.repo.Rotate(ctx, updated, rotated); err != nil {
		return nil, fmt.Errorf("rotating credentials: %w", err)
	}
	a.audit.info(ctx, AuditPasswordRotated, user.Username, slog.Int("entries", len(rotated)))
	return updated, nil
}

// Logout closes the session and drops its key.
func (a *Authenticator) Logout(s *Session) {
	s.Close()
}

// deriveUserKey derives the candidate key for user using the iteration
// count recorded with the user, so raising the default does not lock out
// existing accounts.
func (a *Authenticator) deriveUserKey(ctx context.Context, user *storage.UserRecord, password string) ([]byte, error) {
	params := a.kdf
	if user.KDFIterations > 0 {
		params.Iterations = user.KDFIterations
	}
	salt, err := util.B64Decode(user.Salt)
	if err != nil {
		a.audit.alarm(ctx, AuditDataIntegrityFailure, user.Username, slog.String("stage", "salt"))
		return nil, fmt.Errorf("%w: decoding salt: %w", ErrDataIntegrity, err)
	}
	key, err := crypto.DeriveKey(password, salt, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return key, nil
}

func (a *Authenticator) failLogin(ctx context.Context, event AuditEvent, username string, attrs ...slog.Attr) {
	a.limiter.recordFailure(username)
	a.audit.warn(ctx, event, username, attrs...)
}
