package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/avitolog/avitolog/internal/config"
	"github.com/avitolog/avitolog/internal/session"
	"github.com/avitolog/avitolog/pkg/client"
)

// Runner holds the dependencies shared by every command. They are built
// lazily on first use so that commands like "config init" work without a
// valid configuration.
type Runner struct {
	cfg     *config.Config
	logger  *log.Logger
	output  io.Writer
	client  *client.Client
	session *session.Manager
	logFile io.Closer
}

// RunnerOpts configures a Runner.
type RunnerOpts struct {
	Output io.Writer
}

// NewRunner creates a Runner writing command output to opts.Output.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{output: opts.Output}
}

// displayError is an error whose message is meant for the user as-is.
type displayError struct {
	msg string
	err error
}

func (e *displayError) Error() string { return e.msg }
func (e *displayError) Unwrap() error { return e.err }

// fail turns an API error into the message shown to the user: the backend's
// detail when present, else fallback.
func fail(err error, fallback string) error {
	return &displayError{msg: client.Message(err, fallback), err: err}
}

var errNotLoggedIn = errors.New("not logged in, run: avitolog login")

// setup resolves the configuration and wires client and session. When tui is
// set, logs go to a file instead of stderr.
func (r *Runner) setup(cmd *cli.Command, tui bool) error {
	if r.session != nil {
		return nil
	}

	path := cmd.String("config")
	required := cmd.IsSet("config")
	if path == "" {
		p, err := config.StatePath("", "config.toml")
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}
	if u := cmd.String("api-url"); u != "" {
		cfg.API.BaseURL = u
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	r.cfg = cfg

	level, _ := config.ParseLevel(cfg.Log.Level) //nolint:errcheck // validated by Load
	var w io.Writer = os.Stderr
	if tui {
		logPath, err := config.StatePath(cfg.Log.File, "avitolog.log")
		if err != nil {
			return err
		}
		f, err := config.OpenLogFile(logPath)
		if err != nil {
			return err
		}
		r.logFile = f
		w = f
	}
	r.logger = config.NewLogger(w, level)

	store, err := r.openStore()
	if err != nil {
		return err
	}

	var m *session.Manager
	r.client = client.New(cfg.API.BaseURL,
		client.WithPathPrefix(cfg.API.PathPrefix),
		client.WithTimeout(cfg.API.Timeout.Duration),
		client.WithRateLimit(cfg.API.RequestsPerSecond),
		client.WithTokenSource(client.TokenFunc(func() string { return m.Token() })),
	)
	m = session.New(store, r.client, session.WithLogger(r.logger))
	r.session = m

	r.logger.Debug("configured",
		"api", cfg.API.BaseURL,
		"prefix", cfg.API.PathPrefix,
		"store", cfg.Session.Store,
	)
	return nil
}

// openStore picks the token store. A token from the environment is used for
// this run only and never persisted.
func (r *Runner) openStore() (session.Store, error) {
	if r.cfg.Token != "" {
		return session.NewMemoryStore(r.cfg.Token), nil
	}
	switch r.cfg.Session.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(""), nil
	case config.StoreSQLite:
		path, err := config.StatePath(r.cfg.Session.Path, "session.db")
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		return session.NewSQLiteStore(path)
	default:
		path, err := config.StatePath(r.cfg.Session.Path, session.TokenKey)
		if err != nil {
			return nil, err
		}
		return session.NewFileStore(path), nil
	}
}

// Close releases the store and the log file.
func (r *Runner) Close() error {
	var errs []error
	if r.session != nil {
		errs = append(errs, r.session.Close())
	}
	if r.logFile != nil {
		errs = append(errs, r.logFile.Close())
	}
	return errors.Join(errs...)
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
