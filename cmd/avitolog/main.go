package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/avitolog/avitolog/internal/config"
	"github.com/avitolog/avitolog/internal/session"
	"github.com/avitolog/avitolog/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	r := NewRunner(RunnerOpts{})
	err := newRootCommand(r).Run(context.Background(), os.Args)
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// TUI launches the interactive client. Logs go to a file so they do not
// interfere with rendering.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 0 {
		return fmt.Errorf("unknown command %q, see avitolog --help", cmd.Args().First())
	}
	if err := r.setup(cmd, true); err != nil {
		return err
	}

	app := tui.NewApp(r.client, r.session)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := r.session.Subscribe(func(s session.Snapshot) {
		p.Send(tui.SessionChanged(s))
	})
	defer unsubscribe()

	r.logger.Info("starting tui", "api", r.cfg.API.BaseURL)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// ConfigInit writes the example configuration.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path, err := config.StatePath(cmd.String("path"), "config.toml")
	if err != nil {
		return err
	}
	if err := config.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlain("Wrote %s\n", path)
}
