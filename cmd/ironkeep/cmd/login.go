package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironkeep/totp"
	"github.com/jmcleod/ironkeep/vault"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check that your password and authenticator code work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			fmt.Fprintf(a.out, "Logged in as %s.\n", session.Username())
			return nil
		},
	}
}

// openSession runs the two-step login interactively. The password is
// verified before the authenticator code is requested.
func (a *app) openSession(ctx context.Context) (*vault.Session, error) {
	auth, err := a.authenticator(ctx)
	if err != nil {
		return nil, err
	}
	username, err := a.username()
	if err != nil {
		return nil, err
	}
	master, err := a.promptSecret("Master password: ")
	if err != nil {
		return nil, err
	}
	pending, err := auth.BeginLogin(ctx, username, master)
	if err != nil {
		return nil, err
	}

	line, err := a.promptLine("Authenticator code: ")
	if err != nil {
		pending.Cancel()
		return nil, err
	}
	code, err := totp.ParseCode(line)
	if err != nil {
		pending.Cancel()
		return nil, fmt.Errorf("%w: %w", vault.ErrInvalidTOTPCode, err)
	}
	return pending.VerifyTOTP(ctx, code)
}
