// submodule cmd contains command definitions
package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

func userFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User ID",
		Required: true,
	}
}

func slotFlags() []cli.Flag {
	return []cli.Flag{
		userFlag(),
		&cli.StringFlag{
			Name:     "day",
			Aliases:  []string{"d"},
			Usage:    "Day of the week (monday..sunday)",
			Required: true,
		},
		&cli.IntFlag{
			Name:     "hour",
			Usage:    "Hour of the day (0-23)",
			Required: true,
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration, encryption key and database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the default config file",
				Action: r.SetupConfig,
			},
			{
				Name:  "key",
				Usage: "Generate an ENCRYPTION_KEY for credential storage",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "write",
						Usage: "Append the key to the env file unless one is already set",
					},
				},
				Action: r.SetupKey,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "users",
		Aliases: []string{"user"},
		Usage:   "Create and manage users",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user with a prompt config and optional first schedule slot",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "Unique username", Required: true},
					&cli.StringFlag{Name: "voice", Usage: "Voice ID for narration"},
					&cli.StringFlag{Name: "topic", Usage: "Video topic", Required: true},
					&cli.StringFlag{Name: "scope", Usage: "Narrower scope within the topic"},
					&cli.IntFlag{Name: "wpm", Usage: "Narration words per minute", Value: 150},
					&cli.StringFlag{Name: "day", Usage: "Schedule day (optional)"},
					&cli.IntFlag{Name: "hour", Usage: "Schedule hour (0-23)", Value: -1},
				},
				Action: r.CreateUser,
			},
			{
				Name:   "list",
				Usage:  "List users with their schedules",
				Flags:  jsonFlags(),
				Action: r.ListUsers,
			},
			{
				Name:   "show",
				Usage:  "Show a user's profile, prompt config, schedule and credentials",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.ShowUser,
			},
			{
				Name:  "voice",
				Usage: "Change a user's narration voice",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "voice", Usage: "Voice ID", Required: true},
				},
				Action: r.UpdateVoice,
			},
			{
				Name:   "delete",
				Usage:  "Delete a user and release their schedule slots",
				Flags:  []cli.Flag{userFlag()},
				Action: r.DeleteUser,
			},
		},
	}
}

func promptCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "View and update a user's prompt config",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the prompt config",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.ShowPrompt,
			},
			{
				Name:  "set",
				Usage: "Update one field: topic, scope or wpm",
				Flags: []cli.Flag{userFlag()},
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "field"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.SetPromptField,
			},
		},
	}
}

func scheduleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Manage weekly schedule slots and their triggers",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List schedule entries grouped by slot",
				Flags:  jsonFlags(),
				Action: r.ListSchedule,
			},
			{
				Name:   "add",
				Usage:  "Add a slot to a user's schedule",
				Flags:  slotFlags(),
				Action: r.AddSchedule,
			},
			{
				Name:   "remove",
				Usage:  "Remove a slot from a user's schedule",
				Flags:  slotFlags(),
				Action: r.RemoveSchedule,
			},
			{
				Name:  "due",
				Usage: "List users due in the current slot",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "at", Usage: "RFC 3339 time to check instead of now"},
				}, jsonFlags()...),
				Action: r.DueSchedule,
			},
			{
				Name:   "reconcile",
				Usage:  "Create missing triggers and remove orphaned ones",
				Flags:  jsonFlags(),
				Action: r.ReconcileSchedule,
			},
		},
	}
}

func credentialsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Aliases: []string{"creds"},
		Usage:   "Manage encrypted platform credentials",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Set credential fields for a platform; unset fields keep their value",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "youtube, instagram or tiktok", Required: true},
					&cli.StringFlag{Name: "access-token", Usage: "Access token"},
					&cli.StringFlag{Name: "refresh-token", Usage: "Refresh token"},
					&cli.StringFlag{Name: "client-id", Usage: "OAuth client ID"},
					&cli.StringFlag{Name: "client-secret", Usage: "OAuth client secret"},
					&cli.StringFlag{Name: "login-username", Usage: "Login username"},
					&cli.StringFlag{Name: "login-password", Usage: "Login password"},
					&cli.StringFlag{Name: "account-id", Usage: "Platform account ID"},
				},
				Action: r.SetCredentials,
			},
			{
				Name:   "show",
				Usage:  "Show which credential fields are set",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.ShowCredentials,
			},
			{
				Name:  "delete",
				Usage: "Delete a platform credential",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "youtube, instagram or tiktok", Required: true},
				},
				Action: r.DeleteCredentials,
			},
			{
				Name:  "import-cookies",
				Usage: "Store session cookies from a browser \"Copy as cURL\" command",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "instagram or tiktok", Required: true},
					&cli.StringFlag{Name: "curl", Usage: "cURL command string"},
					&cli.StringFlag{Name: "curl-file", Usage: "Path to file containing cURL command"},
				},
				Action: r.ImportCookies,
			},
			{
				Name:  "youtube-auth",
				Usage: "Authorize YouTube uploads with OAuth2 and store the tokens",
				Flags: []cli.Flag{
					userFlag(),
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the browser callback", Value: 5 * time.Minute},
				},
				Action: r.YouTubeAuth,
			},
		},
	}
}

func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a video for a user now",
		Flags: append([]cli.Flag{
			userFlag(),
			&cli.BoolFlag{Name: "post", Usage: "Publish the finished video"},
		}, jsonFlags()...),
		Action: r.Generate,
	}
}

func scriptCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "script",
		Usage: "Work with generated scripts",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export a user's latest script as csv, markdown or text",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown or text", Value: "text"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path; prints to stdout when empty"},
				},
				Action: r.ExportScript,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the scheduler in-process with health and metrics endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address, defaults to server.host:server.port"},
			&cli.DurationFlag{Name: "reconcile-every", Usage: "Re-read schedules from the database this often", Value: time.Minute},
		},
		Action: r.Serve,
	}
}

func menuCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "menu",
		Aliases: []string{"tui"},
		Usage:   "Pick a user and generate interactively",
		Action:  r.Menu,
	}
}

// Root runs a scheduler tick with --cron and opens the menu otherwise.
func (r *Runner) Root(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("cron") {
		return r.Cron(ctx, cmd)
	}
	return r.Menu(ctx, cmd)
}
