package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironkeep/password"
	"github.com/jmcleod/ironkeep/vault"
)

const shellHelp = `Commands:
  list                 list entries
  show <id>            print an entry
  reveal <id>          print only the password of an entry
  add                  add an entry
  edit <id>            change an entry
  delete <id>          delete an entry
  generate [length]    print a random password
  passwd               change the master password
  lock | exit | quit   lock the vault and leave`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Log in once and work with the vault interactively",
		Long: `Log in once and run vault commands until you lock the vault or the
session idles out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			fmt.Fprintf(a.out, "Unlocked as %s. Type 'help' for commands.\n", session.Username())
			return a.runShell(cmd.Context(), session)
		},
	}
}

// runShell dispatches commands until EOF, exit or a locked session. Errors
// from individual commands are printed and the loop continues.
func (a *app) runShell(ctx context.Context, s *vault.Session) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := a.promptLine(fmt.Sprintf("ironkeep (%s)> ", s.Username()))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.out)
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name, args := fields[0], fields[1:]
		if name == "exit" || name == "quit" || name == "lock" {
			fmt.Fprintln(a.out, "Locked.")
			return nil
		}

		err = a.dispatch(ctx, s, name, args)
		switch {
		case errors.Is(err, vault.ErrSessionClosed):
			fmt.Fprintln(a.out, "Session locked after inactivity.")
			return nil
		case err != nil:
			a.logger.Debug("shell command failed", slog.String("command", name), slog.String("error", err.Error()))
			fmt.Fprintln(a.out, "Error:", userMessage(err))
		}
	}
}

func (a *app) dispatch(ctx context.Context, s *vault.Session, name string, args []string) error {
	needID := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("usage: %s <id>", name)
		}
		return args[0], nil
	}

	switch name {
	case "help", "?":
		fmt.Fprintln(a.out, shellHelp)
		return nil
	case "list", "ls":
		return a.listEntries(ctx, s)
	case "show", "reveal":
		id, err := needID()
		if err != nil {
			return err
		}
		return a.showEntry(ctx, s, id, name == "reveal")
	case "add":
		return a.addEntry(ctx, s, entryFlags{length: password.DefaultLength})
	case "edit":
		id, err := needID()
		if err != nil {
			return err
		}
		return a.editEntry(ctx, s, id, entryFlags{length: password.DefaultLength})
	case "delete", "rm":
		id, err := needID()
		if err != nil {
			return err
		}
		return a.deleteEntry(ctx, s, id)
	case "generate":
		f := generateFlags{length: password.DefaultLength}
		if len(args) == 1 {
			if _, err := fmt.Sscanf(args[0], "%d", &f.length); err != nil {
				return fmt.Errorf("usage: generate [length]")
			}
		}
		return a.generate(f)
	case "passwd":
		return a.changePassword(ctx, s)
	default:
		return fmt.Errorf("unknown command %q; type 'help'", name)
	}
}
