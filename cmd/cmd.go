// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the config file and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Create a config.toml from the embedded template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// credentialsCommand handles encrypted credential management
func credentialsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Aliases: []string{"creds"},
		Usage:   "Manage encrypted platform credentials",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Store a platform credential, encrypting the secret at rest",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "platform",
						Aliases:  []string{"p"},
						Usage:    "Platform name (bilibili, trakt, steam)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Credential type (cookie, token, api_key)",
						Value: "token",
					},
					&cli.StringFlag{
						Name:     "value",
						Usage:    "Secret value (cookie string, OAuth token or API key)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "meta",
						Aliases: []string{"m"},
						Usage:   "Extra key=value pairs (e.g. steam_id=7656...)",
					},
				},
				Action: r.CredentialsAdd,
			},
			{
				Name:  "list",
				Usage: "List stored credentials (secrets stay masked)",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "platform",
						Aliases: []string{"p"},
						Usage:   "Restrict to one platform",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.CredentialsList,
			},
			{
				Name:   "migrate",
				Usage:  "Encrypt any stored plaintext credentials in place",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CredentialsMigrate,
			},
		},
	}
}

// syncCommand handles history synchronization runs
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize watch history from configured platforms",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one sync sweep (all platforms, or one with --platform)",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "platform",
						Aliases: []string{"p"},
						Usage:   "Sync a single platform",
					},
					&cli.BoolFlag{
						Name:  "ui",
						Usage: "Show interactive progress",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON results",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "schedule",
				Usage: "Run recurring sweeps until interrupted",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "every",
						Usage: "Sweep interval in hours (overrides config)",
					},
				},
				Action: r.SyncSchedule,
			},
			{
				Name:  "status",
				Usage: "Show per-platform sync state and recent jobs",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "platform",
						Aliases: []string{"p"},
						Usage:   "Restrict to one platform",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.SyncStatus,
			},
		},
	}
}

// historyCommand queries the stored watch history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Query ingested watch history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored items, newest watch first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "platform",
						Aliases: []string{"p"},
						Usage:   "Restrict to one platform",
					},
					&cli.StringFlag{
						Name:  "since",
						Usage: "Only items watched after this time (RFC3339 or YYYY-MM-DD)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of items to return",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.HistoryList,
			},
		},
	}
}
