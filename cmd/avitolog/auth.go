package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/avitolog/avitolog/internal/session"
	"github.com/avitolog/avitolog/pkg/domain"
)

// Login exchanges credentials for a token and saves it.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd, false); err != nil {
		return err
	}
	if _, err := r.session.Login(ctx, cmd.String("email"), cmd.String("password")); err != nil {
		return fail(err, "Login failed")
	}
	return r.printSession(cmd, "Logged in as %s\n")
}

// Register creates an account and signs in with it.
func (r *Runner) Register(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd, false); err != nil {
		return err
	}
	_, err := r.session.Register(ctx, cmd.String("email"), cmd.String("password"), cmd.String("name"))
	if err != nil {
		return fail(err, "Registration failed")
	}
	return r.printSession(cmd, "Registered and logged in as %s\n")
}

// Logout clears the saved token. Running it while logged out is fine.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd, false); err != nil {
		return err
	}
	r.session.Logout()
	return r.writePlain("Logged out.\n")
}

// Whoami validates the saved token and prints its user.
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	if r.session.State() != session.Authenticated {
		return errNotLoggedIn
	}
	return r.printSession(cmd, "%s\n")
}

// bootstrap wires dependencies and resolves the saved session.
func (r *Runner) bootstrap(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd, false); err != nil {
		return err
	}
	return r.session.Bootstrap(ctx)
}

func (r *Runner) printSession(cmd *cli.Command, format string) error {
	snap := r.session.Snapshot()
	user := snap.User
	if user == nil {
		user = &domain.User{}
	}
	if cmd.Bool("json") {
		return r.writeJSON(user)
	}
	name := user.DisplayName()
	if name == "" {
		name = "(profile unavailable)"
	}
	return r.writePlain(format, name)
}
