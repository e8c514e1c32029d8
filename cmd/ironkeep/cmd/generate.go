package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironkeep/password"
)

type generateFlags struct {
	length    int
	noUpper   bool
	noLower   bool
	noDigits  bool
	noSymbols bool
}

func (f generateFlags) options() password.Options {
	return password.Options{
		Length:    f.length,
		Uppercase: !f.noUpper,
		Lowercase: !f.noLower,
		Digits:    !f.noDigits,
		Symbols:   !f.noSymbols,
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random password",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.generate(f)
		},
	}
	cmd.Flags().IntVarP(&f.length, "length", "l", password.DefaultLength, "Password length")
	cmd.Flags().BoolVar(&f.noUpper, "no-upper", false, "Exclude uppercase letters")
	cmd.Flags().BoolVar(&f.noLower, "no-lower", false, "Exclude lowercase letters")
	cmd.Flags().BoolVar(&f.noDigits, "no-digits", false, "Exclude digits")
	cmd.Flags().BoolVar(&f.noSymbols, "no-symbols", false, "Exclude symbols")
	return cmd
}

func (a *app) generate(f generateFlags) error {
	pw, err := password.Generate(f.options())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, pw)
	fmt.Fprintf(a.errOut, "strength: %s (%.0f bits)\n", password.Strength(pw), password.Entropy(pw))
	return nil
}
