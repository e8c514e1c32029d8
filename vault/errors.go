package vault

import (
	"errors"
	"fmt"

	"github.com/jmcleod/ironkeep/crypto"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidTOTPCode indicates the password was correct but the one-time code was not.
	ErrInvalidTOTPCode = errors.New("invalid two-factor code")
	// ErrDataIntegrity indicates a stored TOTP seed or entry field failed to
	// decrypt after the password had already been verified.
	ErrDataIntegrity = errors.New("data integrity failure")
	// ErrConfiguration indicates unusable KDF or cipher configuration.
	ErrConfiguration = errors.New("configuration fault")
	// ErrDuplicateUsername is returned by Register when the username is taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDecryptionFailure is returned by DecryptField.
	ErrDecryptionFailure = crypto.ErrDecryptionFailure
	// ErrSessionClosed indicates the session has been closed or locked and its key material dropped.
	ErrSessionClosed = errors.New("session closed")
	// ErrLoginState indicates a PendingLogin was used after it completed or was cancelled.
	ErrLoginState = errors.New("login step already completed")
	// ErrTooManyAttempts is returned while a username is locked out.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
	// ErrWeakPassword is returned when a new master password fails the strength policy.
	ErrWeakPassword = errors.New("master password too weak")
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEntryNotFound is returned for entries that do not exist or belong to another user.
	ErrEntryNotFound = errors.New("entry not found")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
