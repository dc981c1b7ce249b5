// Package cli is the swipedesk command line: the interactive console plus
// scriptable commands over the same session gate and remote client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"swipedesk/internal/backendtest"
	"swipedesk/internal/clipboard"
	"swipedesk/internal/config"
	"swipedesk/internal/export"
	"swipedesk/internal/logging"
	"swipedesk/internal/remote"
	"swipedesk/internal/session"
	"swipedesk/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// App holds what every command shares once flags are parsed.
type App struct {
	flags config.Overrides

	in     *bufio.Reader
	rawIn  io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	// readPassword reads a secret without echo. Nil falls back to a plain
	// line read when stdin is not a terminal.
	readPassword func() (string, error)

	cfg     config.AppConfig
	log     *slog.Logger
	client  *remote.Client
	store   *session.Store
	gate    *session.Gate
	demo    bool
	closers []func() error
}

func NewApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{
		in:     bufio.NewReader(in),
		rawIn:  in,
		out:    out,
		errOut: errOut,
		now:    time.Now,
		log:    logging.Discard(),
	}
}

var errNotSignedIn = errors.New("not signed in (run: swipedesk login)")

func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swipedesk",
		Short:         "Admin console for the dating app backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive console
  swipedesk

  # Try it against a seeded in-process backend
  swipedesk --demo

  # Scriptable commands
  swipedesk login --email admin@example.com
  swipedesk list users --query lisbon --format json
  swipedesk delete chats 42 --yes
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTUI(cmd.Context())
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd.Context())
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&app.flags.ConfigPath, "config", "", "config file (default ~/.config/swipedesk/config.toml)")
	f.StringVar(&app.flags.URL, "url", "", "backend base url")
	f.StringVar(&app.flags.AnonKey, "anon-key", "", "backend anon api key")
	f.StringVar(&app.flags.StateDB, "state-db", "", "local state database path")
	f.StringVar(&app.flags.ExportDir, "export-dir", "", "export directory (default ./exports)")
	f.StringVar(&app.flags.LogFile, "log-file", "", "log file path")
	f.StringVar(&app.flags.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	f.DurationVar(&app.flags.Timeout, "timeout", 0, "per-request timeout")
	f.BoolVar(&app.flags.Demo, "demo", false, "run against a seeded in-process backend")

	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newCountCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newExportCmd(app))

	return cmd
}

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTUI(cmd.Context())
		},
	}
}

// setup resolves config, opens the log and state db and builds the client.
// In demo mode it also starts the seeded fake backend for this process.
func (a *App) setup(ctx context.Context) error {
	cfg, err := config.Load(a.flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, closer, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closer.Close)
	a.cfg, a.log = cfg, log

	statePath := cfg.StateDB
	if cfg.Demo {
		var opts []backendtest.Option
		if w, ok := closer.(io.Writer); ok {
			opts = append(opts, backendtest.WithRequestLog(w))
		}
		fake := backendtest.New(opts...)
		fake.SeedDemo(a.now())
		srv := fake.Start()
		a.closers = append(a.closers, func() error { srv.Close(); return nil })
		a.cfg.URL, a.cfg.AnonKey = srv.URL, backendtest.AnonKey
		a.demo = true
		statePath = filepath.Join(filepath.Dir(cfg.StateDB), "demo-state.sqlite")
		log.Info("demo backend started", "url", srv.URL)
	}

	store, err := session.OpenStore(statePath, false)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store.Close)
	a.store = store

	a.client = remote.New(a.cfg.URL, a.cfg.AnonKey,
		remote.WithTimeout(a.cfg.RequestTimeout),
		remote.WithLogger(log),
	)
	a.gate = session.NewGate(store, session.Remote(a.client), session.WithLogger(log))
	log.Debug("cli ready", "url", a.cfg.URL, "state_db", statePath)
	return nil
}

// Close releases everything setup opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// requireSession restores the stored session and insists it belongs to an
// admin.
func (a *App) requireSession(ctx context.Context) (*session.Session, error) {
	s, err := a.gate.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil || !a.gate.Authorized() {
		return nil, errNotSignedIn
	}
	return s, nil
}

func (a *App) runTUI(ctx context.Context) error {
	exp, err := export.New(a.cfg.ExportDir)
	if err != nil {
		return err
	}
	deps := ui.Deps{
		Config:    a.cfg,
		Gate:      a.gate,
		Client:    a.client,
		Exporter:  exp,
		Clipboard: clipboard.New(),
		Logger:    a.log,
		Now:       a.now,
	}
	if a.demo {
		deps.LoginHint = fmt.Sprintf("Demo backend: %s / %s", backendtest.DemoAdminEmail, backendtest.DemoAdminPassword)
	}
	a.log.Info("console started")
	_, err = tea.NewProgram(ui.NewModel(deps), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (a *App) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(a.errOut, prompt)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question; anything but y or yes is no.
func (a *App) confirm(prompt string) bool {
	answer, err := a.readLine(prompt)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (a *App) promptPassword() (string, error) {
	if a.readPassword != nil {
		return a.readPassword()
	}
	if f, ok := a.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.errOut, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return a.readLine("Password: ")
}
