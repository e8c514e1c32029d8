package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptLine prints label and reads one line. EOF after partial input
// returns the partial line.
func (a *app) promptLine(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptSecret reads without echo when stdin is a terminal and falls back to
// a plain line read for pipes.
func (a *app) promptSecret(label string) (string, error) {
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.promptLine(label)
	}
	fmt.Fprint(a.out, label)
	b, err := readPassword(int(f.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	s := string(b)
	clear(b)
	return s, nil
}

func (a *app) promptNewSecret(label string) (string, error) {
	first, err := a.promptSecret(label)
	if err != nil {
		return "", err
	}
	second, err := a.promptSecret("Confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}

func (a *app) username() (string, error) {
	if a.flags.user != "" {
		return a.flags.user, nil
	}
	u, err := a.promptLine("Username: ")
	return strings.TrimSpace(u), err
}
