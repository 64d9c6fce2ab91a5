package watch

import (
	"context"
	"errors"
)

// ErrAlreadyTracked is returned when registering a (user, address) pair
// that is already in the user's wallet set.
var ErrAlreadyTracked = errors.New("wallet is already tracked")

// ErrNotTracked is returned when operating on a (user, address) pair that
// is not in the user's wallet set.
var ErrNotTracked = errors.New("wallet is not tracked")

// Wallet is a single tracked wallet: who watches it, under what display
// name, and the last activity marker seen for it. An empty LastMarker
// means the wallet has not been observed yet.
type Wallet struct {
	UserID     int64  `json:"user_id"`
	Address    string `json:"address"`
	Name       string `json:"name"`
	LastMarker string `json:"last_marker,omitempty"`
}

// Store is the per-user wallet tracking ledger. It is the only shared
// mutable state in the system: the Telegram command handlers and the
// monitor loop mutate it concurrently, so implementations serialize all
// operations. Implementations that persist do so write-through: every
// successful mutation is durable before the call returns.
type Store interface {
	// Register adds a wallet to the user's set. Fails with
	// ErrAlreadyTracked if the (user, address) pair already exists.
	Register(ctx context.Context, userID int64, address, name string) (*Wallet, error)

	// Rename changes a tracked wallet's display name.
	Rename(ctx context.Context, userID int64, address, newName string) error

	// Unregister removes a wallet and its marker, returning the removed
	// entry.
	Unregister(ctx context.Context, userID int64, address string) (*Wallet, error)

	// ListFor returns the user's wallets in insertion order.
	ListFor(ctx context.Context, userID int64) ([]*Wallet, error)

	// ListAll returns every tracked wallet across all users. The monitor
	// loop snapshots this at cycle start.
	ListAll(ctx context.Context) ([]*Wallet, error)

	// RecordBaseline sets the wallet's marker only if it is currently
	// unset. Idempotent no-op otherwise.
	RecordBaseline(ctx context.Context, userID int64, address, marker string) error

	// TryAdvance atomically updates the wallet's marker to newMarker and
	// returns the previous marker with advanced=true, but only when a
	// previous marker exists and differs from newMarker. On first
	// observation it records newMarker as the baseline and reports no
	// advance; an unchanged marker also reports no advance.
	TryAdvance(ctx context.Context, userID int64, address, newMarker string) (prev string, advanced bool, err error)
}
