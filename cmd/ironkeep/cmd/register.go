package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironkeep/password"
)

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Create a vault account and enroll an authenticator app",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.flags.user = args[0]
			}
			username, err := a.username()
			if err != nil {
				return err
			}
			master, err := a.promptNewSecret("Master password: ")
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Password strength: %s\n", password.Strength(master))

			auth, err := a.authenticator(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Deriving key...")
			enr, err := auth.Register(cmd.Context(), username, master)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "\nRegistered %s.\n\n", enr.Username)
			fmt.Fprintln(a.out, "Add this account to your authenticator app now. The secret is shown only once.")
			fmt.Fprintf(a.out, "  Secret: %s\n", enr.Seed)
			fmt.Fprintf(a.out, "  URI:    %s\n", enr.URI)
			return nil
		},
	}
}
