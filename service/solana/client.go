package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		address solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client provides read-only queries against the Solana chain.
// It wraps the RPC client with domain-specific operations; every call is
// bounded by the configured timeout so the monitor loop never stalls on a
// slow endpoint. If metrics is nil, no metrics are recorded.
type Client struct {
	rpc     RPCClient
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new Solana client.
func NewClient(rpcClient RPCClient, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:     rpcClient,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// GetBalance returns the wallet's native balance in lamports.
// It doubles as the liveness check performed before registering a wallet:
// an address the RPC node rejects is not worth tracking.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet address %q: %w", address, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	c.record("GetBalance", err, time.Since(start))
	if err != nil {
		c.logger.WarnContext(ctx, "failed to get balance",
			"wallet", address,
			"error", err,
		)
		return 0, err
	}
	if result == nil {
		return 0, fmt.Errorf("empty balance result for %s", address)
	}

	return result.Value, nil
}

// GetRecentActivity returns the most recent activity markers for a wallet,
// newest first. An empty slice is a valid result for a wallet with no history.
func (c *Client) GetRecentActivity(ctx context.Context, address string, limit int) ([]ActivityInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address %q: %w", address, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	}

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, pubkey, opts)
	c.record("GetSignaturesForAddress", err, time.Since(start))
	if err != nil {
		c.logger.WarnContext(ctx, "failed to get signatures",
			"wallet", address,
			"error", err,
		)
		return nil, err
	}

	activity := make([]ActivityInfo, 0, len(signatures))
	for _, sig := range signatures {
		info := ActivityInfo{
			Signature: sig.Signature.String(),
			Slot:      sig.Slot,
			Failed:    sig.Err != nil,
		}
		if sig.BlockTime != nil {
			info.BlockTime = sig.BlockTime.Time()
		}
		activity = append(activity, info)
	}

	c.logger.DebugContext(ctx, "fetched recent activity",
		"wallet", address,
		"count", len(activity),
	)

	return activity, nil
}

// GetActivityDetail fetches the full transaction for an activity marker and
// converts it to a domain TransactionRecord. Versioned transactions are
// requested first; legacy transactions that the versioned decoder rejects
// are retried without version support, mirroring getTransaction quirks
// across RPC providers.
func (c *Client) GetActivityDetail(ctx context.Context, marker string) (*TransactionRecord, error) {
	signature, err := solana.SignatureFromBase58(marker)
	if err != nil {
		return nil, fmt.Errorf("invalid activity marker %q: %w", marker, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, signature, opts)
	c.record("GetTransaction", err, time.Since(start))

	// Some providers reject the version parameter for legacy transactions.
	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		c.logger.WarnContext(ctx, "could not fetch as versioned tx, retrying as legacy",
			"signature", marker,
		)
		legacyOpts := &rpc.GetTransactionOpts{
			Encoding: solana.EncodingBase64,
		}
		start = time.Now()
		result, err = c.rpc.GetTransaction(ctx, signature, legacyOpts)
		c.record("GetTransaction", err, time.Since(start))
	}

	if err != nil {
		c.logger.WarnContext(ctx, "failed to get transaction detail",
			"signature", marker,
			"error", err,
		)
		return nil, err
	}

	return recordFromResult(marker, result), nil
}

func (c *Client) record(method string, err error, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, elapsed.Seconds())
}
