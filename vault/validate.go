package vault

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/jmcleod/ironkeep/password"
)

// Validation constants.
const (
	MaxUsernameLength = 128
	MaxTitleLength    = 256
	MaxFieldSize      = 64 << 10 // 64KB per encrypted field
	MinPasswordLength = 10
	MaxPasswordLength = 1024
)

func validateUsername(username string) error {
	if username == "" {
		return validationErrorf("username must not be empty")
	}
	if len(username) > MaxUsernameLength {
		return validationErrorf("username exceeds maximum length of %d", MaxUsernameLength)
	}
	if !utf8.ValidString(username) {
		return validationErrorf("username contains invalid UTF-8")
	}
	for _, r := range username {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return validationErrorf("username contains whitespace or control character")
		}
	}
	return nil
}

// validateMasterPassword applies the registration policy. allowWeak skips
// the length and strength checks but never the emptiness check.
func validateMasterPassword(pw string, allowWeak bool) error {
	if pw == "" {
		return validationErrorf("password must not be empty")
	}
	if len(pw) > MaxPasswordLength {
		return validationErrorf("password exceeds maximum length of %d", MaxPasswordLength)
	}
	if allowWeak {
		return nil
	}
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	if password.Strength(pw) == password.Weak {
		return fmt.Errorf("%w: rated weak", ErrWeakPassword)
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return validationErrorf("title must not be empty")
	}
	if len(title) > MaxTitleLength {
		return validationErrorf("title exceeds maximum length of %d", MaxTitleLength)
	}
	if !utf8.ValidString(title) {
		return validationErrorf("title contains invalid UTF-8")
	}
	for _, r := range title {
		if unicode.IsControl(r) {
			return validationErrorf("title contains control character")
		}
	}
	return nil
}

func validateFieldValue(field Field, value string) error {
	if len(value) > MaxFieldSize {
		return validationErrorf("%s size %d exceeds maximum of %d bytes", field, len(value), MaxFieldSize)
	}
	if !utf8.ValidString(value) {
		return validationErrorf("%s contains invalid UTF-8", field)
	}
	return nil
}

func validateEntryInput(in EntryInput) error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	for _, f := range []struct {
		field Field
		value string
	}{
		{FieldUsername, in.Username},
		{FieldPassword, in.Password},
		{FieldNote, in.Note},
	} {
		if err := validateFieldValue(f.field, f.value); err != nil {
			return err
		}
	}
	return nil
}
