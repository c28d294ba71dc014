package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/library-ledger/internal/config"
	"github.com/example/library-ledger/internal/ledger"
)

func registerParams(email string) ledger.RegisterParams {
	return ledger.RegisterParams{Email: email, Password: "secret123", Name: "Test Reader"}
}

type cliHarness struct {
	cfg    config.Config
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	return &cliHarness{
		cfg:    testConfig(t, config.StoreSQLite),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func (h *cliHarness) run(stdin string, password string, args ...string) error {
	h.stdout.Reset()
	c := &cli{
		loadConfig:   func() (config.Config, error) { return h.cfg, nil },
		stdin:        strings.NewReader(stdin),
		stdout:       h.stdout,
		stderr:       h.stderr,
		readPassword: func(string) (string, error) { return password, nil },
	}
	root := newRootCommand(c)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (h *cliHarness) login(t *testing.T, email, password string) error {
	t.Helper()
	a, err := openApp(context.Background(), h.cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()
	_, err = a.ledger.Login(context.Background(), ledger.LoginParams{Email: email, Password: password})
	return err
}

func TestMigrateCommand(t *testing.T) {
	t.Parallel()

	h := newCLIHarness(t)

	require.NoError(t, h.run("", "", "migrate", "--status"))
	assert.Contains(t, h.stdout.String(), "schema version: none")
	assert.Contains(t, h.stdout.String(), "pending: 001")

	require.NoError(t, h.run("", "", "migrate"))
	assert.Contains(t, h.stdout.String(), "applied 1 migration(s)")
	assert.Contains(t, h.stdout.String(), "schema version: 001")

	require.NoError(t, h.run("", "", "migrate"))
	assert.Contains(t, h.stdout.String(), "applied 0 migration(s)")
	assert.NotContains(t, h.stdout.String(), "pending:")
}

func TestMigrateRequiresSQLite(t *testing.T) {
	t.Parallel()

	h := newCLIHarness(t)
	h.cfg.Store = config.StoreMemory

	err := h.run("", "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_STORE=sqlite")
}

func TestLibrarianCreateCommand(t *testing.T) {
	t.Parallel()

	h := newCLIHarness(t)

	require.NoError(t, h.run("", "desk-pass", "librarian", "create", "--email", "Desk@Example.com", "--name", "Front Desk"))
	assert.Contains(t, h.stdout.String(), "created librarian desk@example.com")
	require.NoError(t, h.login(t, "desk@example.com", "desk-pass"))

	err := h.run("", "desk-pass", "librarian", "create", "--email", "desk@example.com", "--name", "Again")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrDuplicateEmail))

	err = h.run("", "123", "librarian", "create", "--email", "short@example.com", "--name", "Short")
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "password")

	require.Error(t, h.run("", "desk-pass", "librarian", "create", "--name", "No Email"))
}

func TestResetCommand(t *testing.T) {
	t.Parallel()

	h := newCLIHarness(t)
	require.NoError(t, h.run("", "desk-pass", "librarian", "create", "--email", "desk@example.com", "--name", "Front Desk"))

	require.NoError(t, h.run("n\n", "", "reset"))
	assert.Contains(t, h.stdout.String(), "reset aborted")
	require.NoError(t, h.login(t, "desk@example.com", "desk-pass"))

	require.NoError(t, h.run("yes\n", "", "reset"))
	assert.Contains(t, h.stdout.String(), "library data has been reset")
	assert.True(t, errors.Is(h.login(t, "desk@example.com", "desk-pass"), ledger.ErrInvalidCredentials))

	require.NoError(t, h.run("", "", "reset", "--yes"))
	assert.NotContains(t, h.stdout.String(), "Continue?")
	require.NoError(t, h.login(t, ledger.SeedLibrarianEmail, ledger.SeedLibrarianPassword))
}

func TestRootCommandReportsConfigErrors(t *testing.T) {
	t.Parallel()

	c := &cli{
		loadConfig: func() (config.Config, error) { return config.Config{}, errors.New("invalid environment variable values: LEDGER_HTTP_PORT") },
		stdin:      strings.NewReader(""),
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
	}
	root := newRootCommand(c)
	root.SetArgs([]string{"migrate"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_HTTP_PORT")
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "": false, "maybe\n": false} {
		got, err := confirm(strings.NewReader(input), &bytes.Buffer{}, "? ")
		require.NoError(t, err)
		assert.Equal(t, want, got, input)
	}
}
