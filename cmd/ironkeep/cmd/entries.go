package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironkeep/password"
	"github.com/jmcleod/ironkeep/vault"
)

type entryFlags struct {
	title    string
	username string
	note     string
	generate bool
	length   int

	// set records which flags were given explicitly, so that an empty
	// value clears the field on edit instead of keeping it.
	setUsername bool
	setNote     bool
}

func (f *entryFlags) markChanged(cmd *cobra.Command) {
	f.setUsername = cmd.Flags().Changed("username")
	f.setNote = cmd.Flags().Changed("note")
}

func (f *entryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Entry title (prompted when omitted)")
	cmd.Flags().StringVar(&f.username, "username", "", "Username stored in the entry (on edit, an explicit empty value clears it)")
	cmd.Flags().StringVar(&f.note, "note", "", "Free-form note (on edit, an explicit empty value clears it)")
	cmd.Flags().BoolVarP(&f.generate, "generate", "g", false, "Generate the entry password")
	cmd.Flags().IntVar(&f.length, "length", password.DefaultLength, "Length of a generated password")
}

// entryInput collects an EntryInput from flags, prompting for whatever is missing.
// The password is never taken from a flag.
func (a *app) entryInput(f entryFlags, current *vault.Secret) (vault.EntryInput, error) {
	in := vault.EntryInput{Title: f.title, Username: f.username, Note: f.note}
	if current != nil {
		if in.Title == "" {
			in.Title = current.Title
		}
		if !f.setUsername {
			in.Username = current.Username
		}
		if !f.setNote {
			in.Note = current.Note
		}
	}

	var err error
	if in.Title == "" {
		if in.Title, err = a.promptLine("Title: "); err != nil {
			return in, err
		}
	}
	if current == nil && in.Username == "" {
		if in.Username, err = a.promptLine("Username: "); err != nil {
			return in, err
		}
	}

	switch {
	case f.generate:
		opts := password.DefaultOptions()
		opts.Length = f.length
		if in.Password, err = password.Generate(opts); err != nil {
			return in, err
		}
		fmt.Fprintf(a.out, "Generated a %d character password.\n", f.length)
	default:
		label := "Password: "
		if current != nil {
			label = "Password (empty keeps current): "
		}
		if in.Password, err = a.promptSecret(label); err != nil {
			return in, err
		}
		if in.Password == "" && current != nil {
			in.Password = current.Password
		}
	}
	return in, nil
}

func newAddCmd(a *app) *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			return a.addEntry(cmd.Context(), session, f)
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) addEntry(ctx context.Context, s *vault.Session, f entryFlags) error {
	in, err := a.entryInput(f, nil)
	if err != nil {
		return err
	}
	id, err := s.AddEntry(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %q (%s).\n", in.Title, id)
	return nil
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List entry titles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			return a.listEntries(cmd.Context(), session)
		},
	}
}

func (a *app) listEntries(ctx context.Context, s *vault.Session) error {
	entries, err := s.ListEntries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No entries.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Title, e.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func newShowCmd(a *app) *cobra.Command {
	var passwordOnly bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Decrypt and print an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			return a.showEntry(cmd.Context(), session, args[0], passwordOnly)
		},
	}
	cmd.Flags().BoolVarP(&passwordOnly, "password", "p", false, "Print only the password")
	return cmd
}

func (a *app) showEntry(ctx context.Context, s *vault.Session, id string, passwordOnly bool) error {
	if passwordOnly {
		pw, err := s.RevealPassword(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, pw)
		return nil
	}
	secret, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Title:    %s\n", secret.Title)
	fmt.Fprintf(a.out, "Username: %s\n", secret.Username)
	fmt.Fprintf(a.out, "Password: %s\n", secret.Password)
	if secret.Note != "" {
		fmt.Fprintf(a.out, "Note:     %s\n", secret.Note)
	}
	return nil
}

func newEditCmd(a *app) *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			f.markChanged(cmd)
			return a.editEntry(cmd.Context(), session, args[0], f)
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) editEntry(ctx context.Context, s *vault.Session, id string, f entryFlags) error {
	current, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	in, err := a.entryInput(f, current)
	if err != nil {
		return err
	}
	if err := s.UpdateEntry(ctx, id, in); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %q.\n", in.Title)
	return nil
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			return a.deleteEntry(cmd.Context(), session, args[0])
		},
	}
}

func (a *app) deleteEntry(ctx context.Context, s *vault.Session, id string) error {
	if err := s.DeleteEntry(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s.\n", id)
	return nil
}
