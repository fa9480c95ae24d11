// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/lyx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// harvestCommand handles the batch harvest and its bookkeeping
func harvestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "harvest",
		Usage: "Harvest lyrics for every artist in the input list",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Fetch lyrics for unprocessed artists, resuming from the saved dataset",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Artist list CSV (overrides harvest.input_path)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Dataset CSV (overrides harvest.output_path)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Artists between dataset flushes (overrides harvest.batch_size)",
					},
					&cli.IntFlag{
						Name:  "max-songs",
						Usage: "Songs requested per artist (overrides harvest.max_songs)",
					},
					&cli.DurationFlag{
						Name:  "pause",
						Usage: "Minimum interval between artist fetches (overrides harvest.pause_seconds)",
					},
					&cli.DurationFlag{
						Name:  "cooldown",
						Usage: "Wait after a transient upstream failure (overrides harvest.cooldown_seconds)",
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Show progress in the interactive terminal UI",
					},
				},
				Action: r.HarvestRun,
			},
			{
				Name:  "status",
				Usage: "Show processed and pending artists for the input list",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Artist list CSV (overrides harvest.input_path)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Dataset CSV (overrides harvest.output_path)",
					},
					&cli.BoolFlag{
						Name:  "pending",
						Usage: "List the pending artists",
					},
				},
				Action: r.HarvestStatus,
			},
			{
				Name:  "history",
				Usage: "List recent harvest runs",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show the per-artist attempts of one run",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HarvestHistory,
			},
			{
				Name:  "forget",
				Usage: "Remove an artist from the attempt ledger so the next run fetches it again",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "artist"},
				},
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.HarvestForget,
			},
		},
	}
}

// datasetCommand handles read-only operations on the harvested dataset
func datasetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "dataset",
		Aliases: []string{"ds"},
		Usage:   "Inspect and export the harvested dataset",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show record counts per artist",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Dataset CSV (overrides harvest.output_path)",
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
				Action: r.DatasetStats,
			},
			{
				Name:  "export",
				Usage: "Convert the dataset to another format",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "dataset",
						Usage: "Dataset CSV (overrides harvest.output_path)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (" + strings.Join(formatter.Formats, ", ") + ")",
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file, or directory with --split",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "split",
						Usage: "Write one file per artist plus a manifest",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent writers for --split",
						Value: 4,
					},
				},
				Action: r.DatasetExport,
			},
		},
	}
}

// geniusCommand handles direct Genius API lookups
func geniusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "genius",
		Usage: "Query the Genius API directly",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Resolve an artist name to a Genius artist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "artist"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.GeniusSearch,
			},
			{
				Name:  "songs",
				Usage: "List the songs a harvest would keep for an artist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "artist"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of songs to fetch",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.GeniusSongs,
			},
		},
	}
}

// setupCommand handles setup operations for configuration, database and credentials.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "token",
				Usage: "Open the Genius API client page and save an access token to .env",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "token",
						Usage: "Access token to save (prompted when omitted)",
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Do not open the browser",
					},
					&cli.BoolFlag{
						Name:  "oauth",
						Usage: "Obtain the token through the OAuth authorization flow instead of pasting it",
					},
					&cli.StringFlag{
						Name:  "client-id",
						Usage: "API client ID for --oauth (overrides credentials.genius.client_id)",
					},
					&cli.StringFlag{
						Name:  "client-secret",
						Usage: "API client secret for --oauth (overrides credentials.genius.client_secret)",
					},
					&cli.StringFlag{
						Name:  "redirect-url",
						Usage: "Redirect URL registered for the client (overrides credentials.genius.redirect_url)",
					},
				},
				Action: r.SetupToken,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for an interactive harvest.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Preview the artist list and harvest interactively",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Artist list CSV (overrides harvest.input_path)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Dataset CSV (overrides harvest.output_path)",
			},
		},
		Action: r.TUI,
	}
}
