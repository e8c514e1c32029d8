package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironkeep/vault"
)

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "passwd",
		Aliases: []string{"rotate"},
		Short:   "Change the master password and re-encrypt every entry",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			return a.changePassword(cmd.Context(), session)
		},
	}
}

func (a *app) changePassword(ctx context.Context, s *vault.Session) error {
	current, err := a.promptSecret("Current master password: ")
	if err != nil {
		return err
	}
	next, err := a.promptNewSecret("New master password: ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Re-encrypting vault...")
	if err := a.auth.ChangePassword(ctx, s, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Master password changed.")
	return nil
}
