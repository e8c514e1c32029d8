package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironkeep/internal/config"
	"github.com/jmcleod/ironkeep/storage"
	"github.com/jmcleod/ironkeep/vault"
)

// Version is set at build time.
var Version = "dev"

type globalFlags struct {
	envFile     string
	store       string
	dataDir     string
	postgresDSN string
	logLevel    string
	logFormat   string
	user        string
}

// app carries the per-invocation state shared by every subcommand. The
// store and authenticator are opened lazily so commands such as generate
// never touch the vault.
type app struct {
	flags globalFlags

	cfg    config.Config
	logger *slog.Logger

	repo      storage.Repository
	closeRepo func() error
	auth      *vault.Authenticator

	in     *bufio.Reader
	stdin  io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "ironkeep",
		Short: "Ironkeep is a local password vault with two-factor login",
		Long: `A password vault that encrypts every entry field under a key derived from
your master password. Logging in requires the master password and a code from
an authenticator app.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.envFile, "env-file", "", "Read settings from this .env file instead of ./.env")
	pf.StringVar(&a.flags.store, "store", "", "Storage backend: bbolt, postgres or memory")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "Directory for the bbolt database")
	pf.StringVar(&a.flags.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVarP(&a.flags.user, "user", "u", "", "Vault username (prompted when omitted)")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newPasswdCmd(a),
		newGenerateCmd(a),
		newShellCmd(a),
		newVersionCmd(a),
	)
	return root, a
}

// Execute runs the CLI against the process streams and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if cerr := a.teardown(); err == nil {
		err = cerr
	}
	if err != nil {
		if a.logger != nil {
			a.logger.Debug("command failed", slog.String("error", err.Error()))
		}
		fmt.Fprintln(stderr, "Error:", userMessage(err))
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command) error {
	a.stdin = cmd.InOrStdin()
	a.in = bufio.NewReader(a.stdin)
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	var files []string
	if a.flags.envFile != "" {
		files = append(files, a.flags.envFile)
	}
	cfg, err := config.Read(files...)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.NewLogger(a.errOut)
	return nil
}

// applyFlags lets explicitly set flags override the environment.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = a.flags.store
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.flags.dataDir
	}
	if flags.Changed("postgres-dsn") {
		cfg.PostgresDSN = a.flags.postgresDSN
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.flags.logFormat
	}
}

// authenticator opens the configured store on first use.
func (a *app) authenticator(ctx context.Context) (*vault.Authenticator, error) {
	if a.auth != nil {
		return a.auth, nil
	}
	repo, closeRepo, err := openRepository(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	auth, err := vault.New(repo,
		vault.WithKDFParams(a.cfg.KDFParams()),
		vault.WithIssuer(a.cfg.Issuer),
		vault.WithLogger(a.logger),
		vault.WithIdleTimeout(a.cfg.IdleTimeout),
	)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}
	a.repo, a.closeRepo, a.auth = repo, closeRepo, auth
	return auth, nil
}

func (a *app) teardown() error {
	if a.closeRepo == nil {
		return nil
	}
	err := a.closeRepo()
	a.closeRepo = nil
	return err
}
