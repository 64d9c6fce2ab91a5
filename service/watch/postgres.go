package watch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by a single tracked_wallets table.
// Postgres already gives us atomicity and durability per statement, so
// unlike FileStore there is no in-memory copy and no snapshot file; the
// row lock taken by TryAdvance provides the single-writer discipline.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store over the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tracked_wallets table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tracked_wallets (
			user_id     BIGINT NOT NULL,
			address     TEXT   NOT NULL,
			name        TEXT   NOT NULL,
			last_marker TEXT   NOT NULL DEFAULT '',
			position    BIGSERIAL,
			PRIMARY KEY (user_id, address)
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure tracked_wallets schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Register(ctx context.Context, userID int64, address, name string) (*Wallet, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tracked_wallets (user_id, address, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, address) DO NOTHING`,
		userID, address, name)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyTracked
	}
	return &Wallet{UserID: userID, Address: address, Name: name}, nil
}

func (s *PostgresStore) Rename(ctx context.Context, userID int64, address, newName string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tracked_wallets SET name = $3
		WHERE user_id = $1 AND address = $2`,
		userID, address, newName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotTracked
	}
	return nil
}

func (s *PostgresStore) Unregister(ctx context.Context, userID int64, address string) (*Wallet, error) {
	w := &Wallet{UserID: userID, Address: address}
	err := s.pool.QueryRow(ctx, `
		DELETE FROM tracked_wallets
		WHERE user_id = $1 AND address = $2
		RETURNING name, last_marker`,
		userID, address).Scan(&w.Name, &w.LastMarker)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotTracked
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *PostgresStore) ListFor(ctx context.Context, userID int64) ([]*Wallet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, address, name, last_marker
		FROM tracked_wallets
		WHERE user_id = $1
		ORDER BY position`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWallets(rows)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*Wallet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, address, name, last_marker
		FROM tracked_wallets
		ORDER BY user_id, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWallets(rows)
}

func (s *PostgresStore) RecordBaseline(ctx context.Context, userID int64, address, marker string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tracked_wallets SET last_marker = $3
		WHERE user_id = $1 AND address = $2 AND last_marker = ''`,
		userID, address, marker)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: either the baseline is already set (no-op) or the
	// wallet does not exist.
	var exists bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tracked_wallets WHERE user_id = $1 AND address = $2
		)`, userID, address).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotTracked
	}
	return nil
}

func (s *PostgresStore) TryAdvance(ctx context.Context, userID int64, address, newMarker string) (string, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback(ctx)

	var prev string
	err = tx.QueryRow(ctx, `
		SELECT last_marker FROM tracked_wallets
		WHERE user_id = $1 AND address = $2
		FOR UPDATE`,
		userID, address).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, ErrNotTracked
	}
	if err != nil {
		return "", false, err
	}

	if prev == newMarker {
		return "", false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE tracked_wallets SET last_marker = $3
		WHERE user_id = $1 AND address = $2`,
		userID, address, newMarker); err != nil {
		return "", false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", false, err
	}

	if prev == "" {
		// First observation: baseline recorded, no event.
		return "", false, nil
	}
	return prev, true, nil
}

func scanWallets(rows pgx.Rows) ([]*Wallet, error) {
	var out []*Wallet
	for rows.Next() {
		w := &Wallet{}
		if err := rows.Scan(&w.UserID, &w.Address, &w.Name, &w.LastMarker); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
