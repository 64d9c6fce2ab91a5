package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "walletwatch",
		Usage: "Solana wallet activity monitoring CLI",
		Description: `A command-line tool for managing and debugging the walletwatch service.

Use this CLI to inspect the tracked wallet state, query the chain directly,
resolve token symbols, replay transfer inference, and tail notification events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Tracked wallet state commands
			{
				Name:  "state",
				Usage: "Tracked wallet state commands",
				Subcommands: []*cli.Command{
					listStateCommand(),
					addWalletCommand(),
					renameWalletCommand(),
					removeWalletCommand(),
				},
			},
			// Direct chain queries
			{
				Name:  "chain",
				Usage: "Direct chain query commands",
				Subcommands: []*cli.Command{
					balanceCommand(),
					recentCommand(),
				},
			},
			// Token symbol resolution
			resolveCommand(),
			// Offline transfer inference from a raw transaction
			inferCommand(),
			// Notification event streaming
			{
				Name:  "notify",
				Usage: "Notification event streaming commands",
				Subcommands: []*cli.Command{
					tailCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON where supported",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
