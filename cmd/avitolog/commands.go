package main

import (
	"github.com/urfave/cli/v3"

	"github.com/avitolog/avitolog/pkg/client"
)

func newRootCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "avitolog",
		Usage:   "Browse marketplace listings and discuss them",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default ~/.avitolog/config.toml)",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Backend base URL, overrides the config file",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action:   r.TUI,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		loginCommand(r),
		registerCommand(r),
		logoutCommand(r),
		whoamiCommand(r),
		ingestCommand(r),
		topCommand(r),
		showCommand(r),
		commentsCommand(r),
		commentCommand(r),
		configCommand(r),
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with email and password",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "Account password",
				Sources:  cli.EnvVars("AVITOLOG_PASSWORD"),
				Required: true,
			},
		},
		Action: r.Login,
	}
}

func registerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "Account password",
				Sources:  cli.EnvVars("AVITOLOG_PASSWORD"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Display name",
			},
		},
		Action: r.Register,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the saved session",
		Action: r.Logout,
	}
}

func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the signed-in user",
		Action: r.Whoami,
	}
}

func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Aliases:   []string{"add"},
		Usage:     "Add a listing by its marketplace link",
		ArgsUsage: "<url>",
		Action:    r.Ingest,
	}
}

func topCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "List listings ranked by views",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of listings to return",
				Value:   client.DefaultLimit,
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Ranking key",
				Value: client.DefaultSort,
			},
		},
		Action: r.Top,
	}
}

func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one listing",
		ArgsUsage: "<listing-id>",
		Action:    r.Show,
	}
}

func commentsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "comments",
		Usage:     "List the comments of a listing",
		ArgsUsage: "<listing-id>",
		Action:    r.Comments,
	}
}

func commentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "comment",
		Usage: "Write, edit or delete your comments",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Comment on a listing",
				ArgsUsage: "<listing-id> <text>",
				Action:    r.CommentAdd,
			},
			{
				Name:      "edit",
				Usage:     "Replace the text of your comment",
				ArgsUsage: "<comment-id> <text>",
				Action:    r.CommentEdit,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete your comment",
				ArgsUsage: "<comment-id>",
				Action:    r.CommentDelete,
			},
		},
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write it (default ~/.avitolog/config.toml)",
					},
				},
				Action: r.ConfigInit,
			},
		},
	}
}
