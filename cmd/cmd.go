// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func userFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Chat user ID the work belongs to",
		Required: true,
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, json, csv or markdown",
		Value:   "text",
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write the report to a file instead of stdout",
	}
}

func marketplaceFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "marketplace",
		Aliases: []string{"m"},
		Usage:   "Marketplace to work (repeatable, or \"all\")",
	}
}

// setupCommand initializes the config file and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the example config.toml",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// workCommand handles the work loop and account registration
func workCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "work",
		Usage: "Farm tasks across marketplaces",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the work loop until interrupted or the cycle limit is reached",
				Flags: []cli.Flag{
					userFlag(),
					marketplaceFlag(),
					&cli.StringFlag{
						Name:  "username",
						Usage: "Display name recorded for the user",
					},
					&cli.IntFlag{
						Name:  "cycles",
						Usage: "Stop after this many cycles (overrides max_cycles)",
					},
				},
				Action: r.WorkRun,
			},
			{
				Name:  "register",
				Usage: "Register a new account on a marketplace",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "marketplace",
						Aliases:  []string{"m"},
						Usage:    "Marketplace to register on",
						Required: true,
					},
				},
				Action: r.WorkRegister,
			},
			{
				Name:   "settings",
				Usage:  "Show the effective work settings",
				Action: r.WorkSettings,
			},
		},
	}
}

// statsCommand shows earnings statistics
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show earnings, tasks completed and balances",
		Flags:  []cli.Flag{userFlag(), formatFlag(), outputFlag()},
		Action: r.Stats,
	}
}

// balancesCommand shows per-marketplace balances
func balancesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "balances",
		Aliases: []string{"balance"},
		Usage:   "Show balances per marketplace",
		Flags:   []cli.Flag{userFlag(), formatFlag(), outputFlag()},
		Action:  r.Balances,
	}
}

// tasksCommand lists task history
func tasksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "List completed tasks, newest first",
		Flags: []cli.Flag{
			userFlag(),
			formatFlag(),
			outputFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of tasks to return (0 for all)",
				Value: 20,
			},
		},
		Action: r.Tasks,
	}
}

// accountsCommand lists marketplace accounts
func accountsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "List marketplace accounts",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "show-passwords",
				Usage: "Include passwords in the output",
			},
		},
		Action: r.Accounts,
	}
}

// captchaCommand handles captcha service operations
func captchaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "captcha",
		Usage: "Captcha solving service operations",
		Commands: []*cli.Command{
			{
				Name:   "balance",
				Usage:  "Show the captcha service account balance",
				Action: r.CaptchaBalance,
			},
		},
	}
}

// dashboardCommand returns the top-level TUI command for interactive work management.
func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive work dashboard",
		Flags:   []cli.Flag{userFlag()},
		Action:  r.Dashboard,
	}
}
