package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/library-ledger/internal/config"
	"github.com/example/library-ledger/internal/ledger"
	"github.com/example/library-ledger/internal/logging"
	"github.com/example/library-ledger/internal/persistence/sqlite"
	"github.com/example/library-ledger/internal/persistence/sqlite/migration"
)

// cli carries process state shared by every subcommand.
type cli struct {
	loadConfig   func() (config.Config, error)
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	readPassword func(prompt string) (string, error)

	cfg    config.Config
	logger *slog.Logger
}

func defaultCLI() *cli {
	c := &cli{
		loadConfig: config.Load,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
	c.readPassword = c.promptPassword
	return c
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerd",
		Short:         "Library catalog and lending ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			c.cfg = cfg
			c.logger = logging.New(c.stderr, cfg.LogFormat, cfg.LogLevel)
			return nil
		},
	}
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.AddCommand(
		newServeCommand(c),
		newMigrateCommand(c),
		newResetCommand(c),
		newLibrarianCommand(c),
	)
	return root
}

func newServeCommand(c *cli) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.HTTPPort = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port, overrides LEDGER_HTTP_PORT")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	logger := c.logger

	a, err := openApp(ctx, c.cfg, logger)
	if err != nil {
		logger.Error("failed to start ledger", "error", err)
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close resources", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.HTTPPort),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("ledger API listening", "addr", server.Addr, "store", c.cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	logger.Info("ledger API stopped")
	return nil
}

func newMigrateCommand(c *cli) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.migrate(cmd.Context(), cmd.OutOrStdout(), statusOnly)
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "report applied and pending migrations without running them")
	return cmd
}

func (c *cli) migrate(ctx context.Context, out io.Writer, statusOnly bool) error {
	if c.cfg.Store != config.StoreSQLite {
		return fmt.Errorf("migrate requires LEDGER_STORE=%s, got %q", config.StoreSQLite, c.cfg.Store)
	}

	pool, err := sqlite.NewConnectionPool(migration.DefaultSQLiteConfig(c.cfg.SQLiteDSN))
	if err != nil {
		return err
	}
	defer pool.Close()

	if !statusOnly {
		applied, err := sqlite.Migrate(ctx, pool.DB(), c.logger)
		if err != nil {
			c.logger.Error("migration failed", "error", err)
			return err
		}
		fmt.Fprintf(out, "applied %d migration(s)\n", applied)
	}

	status, err := sqlite.MigrationStatus(ctx, pool.DB(), c.logger)
	if err != nil {
		return err
	}
	version := status.CurrentVersion
	if version == "" {
		version = "none"
	}
	fmt.Fprintf(out, "schema version: %s\n", version)
	for _, pending := range status.Pending {
		fmt.Fprintf(out, "pending: %s %s\n", pending.Version, pending.Description)
	}
	return nil
}

func newResetCommand(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the seed catalog and sign every member out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				confirmed, err := confirm(cmd.InOrStdin(), out, "This erases all members, loans and reservations. Continue? [y/N] ")
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(out, "reset aborted")
					return nil
				}
			}
			return c.reset(cmd.Context(), out)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (c *cli) reset(ctx context.Context, out io.Writer) error {
	a, err := openApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.Reset(ctx, ledger.SystemPrincipal); err != nil {
		return err
	}
	fmt.Fprintln(out, "library data has been reset")
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func newLibrarianCommand(c *cli) *cobra.Command {
	librarian := &cobra.Command{
		Use:   "librarian",
		Short: "Manage librarian accounts",
	}

	var email, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a librarian account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			return c.createLibrarian(cmd.Context(), cmd.OutOrStdout(), ledger.RegisterParams{
				Email:    email,
				Password: password,
				Name:     name,
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&name, "name", "", "display name")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")

	librarian.AddCommand(create)
	return librarian
}

func (c *cli) createLibrarian(ctx context.Context, out io.Writer, params ledger.RegisterParams) error {
	a, err := openApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	member, err := a.ledger.CreateLibrarian(ctx, ledger.SystemPrincipal, params)
	if err != nil {
		return fmt.Errorf("create librarian: %w", err)
	}
	fmt.Fprintf(out, "created librarian %s (id %d)\n", member.Email, member.ID)
	return nil
}

// promptPassword reads without echo on a terminal and falls back to one line
// of stdin when input is piped.
func (c *cli) promptPassword(prompt string) (string, error) {
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.stderr, prompt)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
