package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/brojonat/walletwatch/service/notify"
	"github.com/brojonat/walletwatch/service/registry"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/brojonat/walletwatch/service/transfer"
	"github.com/brojonat/walletwatch/service/watch"
)

// ChainGateway is the slice of the Solana client the monitor consumes.
type ChainGateway interface {
	GetRecentActivity(ctx context.Context, address string, limit int) ([]solana.ActivityInfo, error)
	GetActivityDetail(ctx context.Context, marker string) (*solana.TransactionRecord, error)
}

// SymbolResolver maps a token mint to display metadata. Resolution never
// fails; unresolvable mints get a synthesized symbol.
type SymbolResolver interface {
	Resolve(ctx context.Context, mint string) registry.Metadata
}

// Monitor is the polling core: each cycle it snapshots the tracked
// wallet set, checks every wallet's most recent activity marker against
// the stored one, and on a genuine change infers the balance movements
// and emits exactly one notification. A wallet's first observed marker
// is recorded silently as the baseline.
type Monitor struct {
	store     watch.Store
	chain     ChainGateway
	tokens    SymbolResolver
	notifier  notify.Notifier
	publisher notify.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	interval   time.Duration
	errBackoff time.Duration
}

// New creates a Monitor. The publisher is optional and may be nil; the
// metrics may be nil. errBackoff is the longer delay applied after a
// cycle-level failure, as opposed to the normal inter-cycle interval.
func New(
	store watch.Store,
	chain ChainGateway,
	tokens SymbolResolver,
	notifier notify.Notifier,
	publisher notify.Publisher,
	interval time.Duration,
	errBackoff time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		store:      store,
		chain:      chain,
		tokens:     tokens,
		notifier:   notifier,
		publisher:  publisher,
		logger:     logger,
		metrics:    m,
		interval:   interval,
		errBackoff: errBackoff,
	}
}

// Run polls until the context is cancelled. A failed cycle waits the
// error backoff instead of the normal interval; no failure terminates
// the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor loop started",
		"interval", m.interval,
		"error_backoff", m.errBackoff,
	)

	for {
		delay := m.interval
		if err := m.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("poll cycle failed", "error", err)
			delay = m.errBackoff
		}

		select {
		case <-ctx.Done():
			m.logger.Info("monitor loop stopped")
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// RunCycle checks every tracked wallet once. Per-wallet failures are
// logged and do not stop the cycle; only a failure to read the wallet
// set itself is returned as a cycle-level error.
func (m *Monitor) RunCycle(ctx context.Context) error {
	start := time.Now()

	wallets, err := m.store.ListAll(ctx)
	if err != nil {
		m.recordCycle("error", start)
		return fmt.Errorf("failed to list tracked wallets: %w", err)
	}

	for _, w := range wallets {
		if ctx.Err() != nil {
			m.recordCycle("cancelled", start)
			return ctx.Err()
		}
		if err := m.checkWallet(ctx, w); err != nil {
			m.recordWalletCheck("error")
			m.logger.Error("wallet check failed",
				"user_id", w.UserID,
				"address", w.Address,
				"error", err,
			)
		}
	}

	m.recordCycle("ok", start)
	return nil
}

// checkWallet runs the per-wallet state machine: fetch marker, try to
// advance, and on a genuine change enrich and notify.
func (m *Monitor) checkWallet(ctx context.Context, w *watch.Wallet) error {
	activity, err := m.chain.GetRecentActivity(ctx, w.Address, 1)
	if err != nil || len(activity) == 0 {
		// Transient fetch failures and empty histories are deferred to
		// the next cycle, not errors.
		if err != nil {
			m.logger.Debug("activity fetch failed, deferring",
				"address", w.Address,
				"error", err,
			)
		}
		m.recordWalletCheck("skipped")
		return nil
	}
	latest := activity[0]

	prev, advanced, err := m.store.TryAdvance(ctx, w.UserID, w.Address, latest.Signature)
	if err != nil {
		return fmt.Errorf("failed to advance marker: %w", err)
	}
	if !advanced {
		m.recordWalletCheck("no_change")
		return nil
	}

	if m.metrics != nil {
		m.metrics.RecordMarkerAdvanced()
	}
	m.logger.Info("wallet activity detected",
		"user_id", w.UserID,
		"address", w.Address,
		"name", w.Name,
		"previous", prev,
		"signature", latest.Signature,
	)

	// Detail enrichment is best-effort: a detected change is always
	// reported, with an empty transfer list if the detail fetch fails.
	rec, err := m.chain.GetActivityDetail(ctx, latest.Signature)
	if err != nil {
		m.logger.Warn("detail fetch failed, notifying without transfers",
			"signature", latest.Signature,
			"error", err,
		)
		rec = nil
	}

	transfers := m.resolveTransfers(ctx, transfer.Infer(rec, w.Address))
	text := renderActivity(w, latest, transfers)

	m.deliver(ctx, w, latest, transfers, text)
	return nil
}

// resolveTransfers attaches display symbols to inferred events. Native
// events render as SOL; token symbols come from the registry chain.
func (m *Monitor) resolveTransfers(ctx context.Context, events []transfer.Event) []notify.Transfer {
	if len(events) == 0 {
		return nil
	}

	out := make([]notify.Transfer, 0, len(events))
	for _, ev := range events {
		t := notify.Transfer{
			Mint:      ev.Mint,
			Direction: string(ev.Direction),
			Amount:    ev.Amount,
			Native:    ev.Native,
		}
		if ev.Native {
			t.Symbol = "SOL"
			t.Verified = true
		} else {
			md := m.tokens.Resolve(ctx, ev.Mint)
			t.Symbol = md.Symbol
			t.Verified = md.Verified
		}
		out = append(out, t)

		if m.metrics != nil {
			m.metrics.RecordTransfersInferred(string(ev.Direction), 1)
		}
	}
	return out
}

// deliver hands the rendered payload to the notifier and, when a
// publisher is configured, fans the structured event out to JetStream.
// Delivery is at-most-once: the marker has already advanced, so a failed
// delivery is logged and never retried.
func (m *Monitor) deliver(ctx context.Context, w *watch.Wallet, latest solana.ActivityInfo, transfers []notify.Transfer, text string) {
	if err := m.notifier.Notify(ctx, w.UserID, text); err != nil {
		m.recordNotification("chat", "error")
		m.logger.Error("notification delivery failed",
			"user_id", w.UserID,
			"address", w.Address,
			"error", err,
		)
	} else {
		m.recordNotification("chat", "success")
	}
	m.recordWalletCheck("notified")

	if m.publisher == nil {
		return
	}
	event := &notify.ActivityEvent{
		UserID:        w.UserID,
		WalletAddress: w.Address,
		WalletName:    w.Name,
		Signature:     latest.Signature,
		Slot:          latest.Slot,
		BlockTime:     latest.BlockTime,
		Failed:        latest.Failed,
		Transfers:     transfers,
		PublishedAt:   time.Now().UTC(),
	}
	if err := m.publisher.PublishActivity(ctx, event); err != nil {
		m.recordNotification("nats", "error")
		m.logger.Error("activity publish failed",
			"signature", latest.Signature,
			"error", err,
		)
		return
	}
	m.recordNotification("nats", "success")
}

func (m *Monitor) recordCycle(status string, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordPollCycle(status, time.Since(start).Seconds())
	}
}

func (m *Monitor) recordWalletCheck(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordWalletCheck(outcome)
	}
}

func (m *Monitor) recordNotification(channel, status string) {
	if m.metrics != nil {
		m.metrics.RecordNotification(channel, status)
	}
}
