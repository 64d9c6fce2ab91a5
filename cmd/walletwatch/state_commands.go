package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/walletwatch/service/watch"
)

func stateFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "state-file",
		Usage:   "Path to the wallet state snapshot",
		EnvVars: []string{"STATE_FILE"},
		Value:   "wallet_data.json",
	}
}

func userIDFlag() *cli.Int64Flag {
	return &cli.Int64Flag{
		Name:     "user-id",
		Aliases:  []string{"u"},
		Usage:    "Owning user (chat) id",
		Required: true,
	}
}

// openStateFile opens the snapshot the daemon uses. CLI mutations go
// through the same atomic write path, so running them while the daemon
// is stopped is safe.
func openStateFile(c *cli.Context) (*watch.FileStore, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return watch.NewFileStore(c.String("state-file"), logger)
}

func listStateCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List tracked wallets",
		Flags: []cli.Flag{
			stateFileFlag(),
			&cli.Int64Flag{
				Name:    "user-id",
				Aliases: []string{"u"},
				Usage:   "Restrict to one user (all users by default)",
			},
		},
		Action: func(c *cli.Context) error {
			store, err := openStateFile(c)
			if err != nil {
				return err
			}

			var wallets []*watch.Wallet
			if c.IsSet("user-id") {
				wallets, err = store.ListFor(c.Context, c.Int64("user-id"))
			} else {
				wallets, err = store.ListAll(c.Context)
			}
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(wallets)
			}

			if len(wallets) == 0 {
				fmt.Println("No tracked wallets.")
				return nil
			}
			for _, w := range wallets {
				marker := w.LastMarker
				if marker == "" {
					marker = "(no baseline)"
				}
				fmt.Printf("%d\t%s\t%s\t%s\n", w.UserID, w.Address, w.Name, marker)
			}
			return nil
		},
	}
}

func addWalletCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Track a wallet for a user",
		ArgsUsage: "[address] [name...]",
		Flags:     []cli.Flag{stateFileFlag(), userIDFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)
			name := strings.Join(c.Args().Slice()[1:], " ")
			if name == "" {
				name = "Wallet"
			}

			store, err := openStateFile(c)
			if err != nil {
				return err
			}
			w, err := store.Register(c.Context, c.Int64("user-id"), address, name)
			if err != nil {
				return err
			}
			fmt.Printf("Tracking %s (%s) for user %d\n", w.Name, w.Address, w.UserID)
			return nil
		},
	}
}

func renameWalletCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a tracked wallet",
		ArgsUsage: "[address] [new name...]",
		Flags:     []cli.Flag{stateFileFlag(), userIDFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("address and new name are required")
			}
			address := c.Args().Get(0)
			name := strings.Join(c.Args().Slice()[1:], " ")

			store, err := openStateFile(c)
			if err != nil {
				return err
			}
			if err := store.Rename(c.Context, c.Int64("user-id"), address, name); err != nil {
				return err
			}
			fmt.Printf("Renamed %s to %q\n", address, name)
			return nil
		},
	}
}

func removeWalletCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Stop tracking a wallet",
		ArgsUsage: "[address]",
		Flags:     []cli.Flag{stateFileFlag(), userIDFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			store, err := openStateFile(c)
			if err != nil {
				return err
			}
			w, err := store.Unregister(c.Context, c.Int64("user-id"), c.Args().Get(0))
			if err != nil {
				return err
			}
			fmt.Printf("Stopped tracking %s (%s)\n", w.Name, w.Address)
			return nil
		},
	}
}
