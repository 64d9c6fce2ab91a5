package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/walletwatch/service/registry"
	solanapkg "github.com/brojonat/walletwatch/service/solana"
	"github.com/brojonat/walletwatch/service/transfer"
)

func rpcURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "Solana RPC endpoint",
		EnvVars: []string{"SOLANA_RPC_URL"},
		Value:   "https://api.mainnet-beta.solana.com",
	}
}

func newChainClient(c *cli.Context) *solanapkg.Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return solanapkg.NewClient(
		solanapkg.NewRPCClient(c.String("rpc-url")),
		10*time.Second,
		nil,
		logger,
	)
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show a wallet's SOL balance",
		ArgsUsage: "[address]",
		Flags:     []cli.Flag{rpcURLFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			client := newChainClient(c)
			lamports, err := client.GetBalance(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"lamports": lamports,
					"sol":      float64(lamports) / solanapkg.LamportsPerSOL,
				})
			}
			fmt.Printf("%.9f SOL (%d lamports)\n", float64(lamports)/solanapkg.LamportsPerSOL, lamports)
			return nil
		},
	}
}

func recentCommand() *cli.Command {
	return &cli.Command{
		Name:      "recent",
		Usage:     "Show a wallet's recent activity markers",
		ArgsUsage: "[address]",
		Flags: []cli.Flag{
			rpcURLFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of entries to fetch",
				Value:   10,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			client := newChainClient(c)
			activity, err := client.GetRecentActivity(c.Context, c.Args().Get(0), c.Int("limit"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(activity)
			}
			for _, a := range activity {
				status := "ok"
				if a.Failed {
					status = "failed"
				}
				fmt.Printf("%s\tslot=%d\t%s\t%s\n",
					a.Signature, a.Slot, a.BlockTime.UTC().Format(time.RFC3339), status)
			}
			return nil
		},
	}
}

// resolveCommand resolves one or more mints through the same source
// chain the daemon uses.
func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve token mints to display symbols",
		ArgsUsage: "[mint...]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-source lookup timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("at least one mint address is required")
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			timeout := c.Duration("timeout")
			reg := registry.New(
				registry.DefaultSources(registry.NewHTTPClient(timeout)),
				timeout,
				nil,
				logger,
			)

			for _, mint := range c.Args().Slice() {
				md := reg.Resolve(c.Context, mint)
				if c.Bool("json") {
					if err := json.NewEncoder(os.Stdout).Encode(md); err != nil {
						return err
					}
					continue
				}
				verified := "verified"
				if !md.Verified {
					verified = "synthesized"
				}
				fmt.Printf("%s\t%s\t%s\n", mint, md.Symbol, verified)
			}
			return nil
		},
	}
}

// inferCommand replays transfer inference over a raw getTransaction
// response, either fetched by signature or read from a file/stdin.
func inferCommand() *cli.Command {
	return &cli.Command{
		Name:      "infer",
		Usage:     "Infer balance movements for a subject wallet",
		ArgsUsage: "[subject_address]",
		Description: `Runs the same balance-delta inference the daemon applies to detected
activity. The transaction comes either from the chain (--signature) or
from a raw getTransaction JSON response (--file, "-" for stdin).

Example:
  walletwatch infer DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --signature 5j7s...`,
		Flags: []cli.Flag{
			rpcURLFlag(),
			&cli.StringFlag{
				Name:    "signature",
				Aliases: []string{"s"},
				Usage:   "Transaction signature to fetch and infer",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   `Raw getTransaction JSON response ("-" for stdin)`,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("subject wallet address is required")
			}
			subject := c.Args().Get(0)

			var rec *solanapkg.TransactionRecord
			switch {
			case c.String("signature") != "":
				client := newChainClient(c)
				var err error
				rec, err = client.GetActivityDetail(c.Context, c.String("signature"))
				if err != nil {
					return err
				}
			case c.String("file") != "":
				data, err := readInput(c.String("file"))
				if err != nil {
					return err
				}
				rec, err = solanapkg.DecodeRecord(data)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("either --signature or --file is required")
			}

			events := transfer.Infer(rec, subject)
			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(events)
			}
			if len(events) == 0 {
				fmt.Println("No balance movements inferred.")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s\t%g\t%s\n", ev.Direction, ev.Amount, ev.Mint)
			}
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
