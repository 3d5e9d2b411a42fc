// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration, database and session.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the run history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:    "session",
				Aliases: []string{"curl"},
				Usage:   "Import the Deezer session cookie from a browser cURL copy",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Where to save the cURL command (default: ~/.dzdedupe/session.curl)",
					},
				},
				Action: r.SetupSession,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Deezer session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Open deezer.com to sign in and explain how to copy the session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check that the current session is logged in",
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistsCommand lists the user's playlists with the numbers dedupe accepts.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List playlists, favorites first",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Playlists,
	}
}

// tracksCommand prints a playlist snapshot.
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List the tracks of a playlist given by id, number or name",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Tracks,
	}
}

// dedupeCommand finds duplicates and, with --execute, removes them.
func dedupeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dedupe",
		Usage: "Find duplicate tracks and optionally remove them",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist id, number or name (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Process every playlist",
			},
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Duplicate rule: isrc, name or both (default from config)",
			},
			&cli.BoolFlag{
				Name:  "execute",
				Usage: "Remove duplicates instead of previewing",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: table, json or csv",
				Value:   "table",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print API request counters after the run",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent removals per playlist (default from config)",
			},
			&cli.IntFlag{
				Name:  "fetch-concurrency",
				Usage: "Playlists processed at once (default from config)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record this run even when history is enabled",
			},
		},
		Action: r.Dedupe,
	}
}

// historyCommand shows recorded runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded runs, or one run by id or sequence number",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "run",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.DurationFlag{
				Name:  "prune",
				Usage: "Delete runs older than this duration (e.g. 720h)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.History,
	}
}
