package cmd

import (
	"context"
	"errors"

	"github.com/jmcleod/ironkeep/internal/config"
	"github.com/jmcleod/ironkeep/password"
	"github.com/jmcleod/ironkeep/vault"
)

var errPasswordMismatch = errors.New("passwords do not match")

// userMessage turns an error into the short text shown on the terminal.
// Details go to the log at debug level.
func userMessage(err error) string {
	switch {
	case errors.Is(err, vault.ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, vault.ErrInvalidTOTPCode):
		return "invalid authentication code; log in again"
	case errors.Is(err, vault.ErrTooManyAttempts):
		return "too many failed attempts; try again later"
	case errors.Is(err, vault.ErrDataIntegrity):
		return "stored data failed an integrity check; it may have been tampered with"
	case errors.Is(err, vault.ErrDuplicateUsername):
		return "that username is already registered"
	case errors.Is(err, vault.ErrWeakPassword):
		return "master password is too weak; use at least 10 characters mixing letters, digits and symbols"
	case errors.Is(err, vault.ErrSessionClosed):
		return "session locked; log in again"
	case errors.Is(err, vault.ErrEntryNotFound):
		return "entry not found"
	case errors.Is(err, vault.ErrLoginState):
		return "login expired; start again"
	case errors.Is(err, vault.ErrConfiguration), errors.Is(err, config.ErrInvalidConfig):
		return "configuration error: " + err.Error()
	case errors.Is(err, password.ErrNoCharacterClass), errors.Is(err, password.ErrInvalidLength):
		return err.Error()
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
