package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/walletwatch/service/notify"
	"github.com/brojonat/walletwatch/service/registry"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/brojonat/walletwatch/service/watch"
)

const (
	testUser    int64 = 123456
	testWallet        = "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK"
	otherWallet       = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	usdcMint          = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// mockChain serves canned activity and detail responses per address.
type mockChain struct {
	activity    map[string][]solana.ActivityInfo
	activityErr map[string]error
	details     map[string]*solana.TransactionRecord
	detailErr   error
}

func newMockChain() *mockChain {
	return &mockChain{
		activity:    make(map[string][]solana.ActivityInfo),
		activityErr: make(map[string]error),
		details:     make(map[string]*solana.TransactionRecord),
	}
}

func (m *mockChain) GetRecentActivity(_ context.Context, address string, _ int) ([]solana.ActivityInfo, error) {
	if err := m.activityErr[address]; err != nil {
		return nil, err
	}
	return m.activity[address], nil
}

func (m *mockChain) GetActivityDetail(_ context.Context, marker string) (*solana.TransactionRecord, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	rec, ok := m.details[marker]
	if !ok {
		return nil, errors.New("unknown signature")
	}
	return rec, nil
}

func (m *mockChain) setLatest(address, signature string) {
	m.activity[address] = []solana.ActivityInfo{{
		Signature: signature,
		Slot:      1000,
		BlockTime: time.Unix(1700000000, 0),
	}}
}

// stubResolver resolves a fixed symbol table without any network.
type stubResolver struct {
	symbols map[string]registry.Metadata
}

func (s *stubResolver) Resolve(_ context.Context, mint string) registry.Metadata {
	if md, ok := s.symbols[mint]; ok {
		return md
	}
	return registry.Metadata{Mint: mint, Symbol: "UNKNOWN", Verified: false}
}

// failingStore wraps a Store and fails TryAdvance for one address.
type failingStore struct {
	watch.Store
	failAddr string
}

func (f *failingStore) TryAdvance(ctx context.Context, userID int64, address, newMarker string) (string, bool, error) {
	if address == f.failAddr {
		return "", false, errors.New("storage unavailable")
	}
	return f.Store.TryAdvance(ctx, userID, address, newMarker)
}

// usdcBuyRecord shows the subject's USDC balance going 100 -> 150 with a
// sub-dust native delta.
func usdcBuyRecord(signature string) *solana.TransactionRecord {
	return &solana.TransactionRecord{
		Signature: signature,
		Slot:      1000,
		AccountKeys: []solana.AccountKey{
			{Address: testWallet},
			{Address: otherWallet},
		},
		PreBalances:  []uint64{2_000_000_000, 500_000_000},
		PostBalances: []uint64{1_999_000_000, 501_000_000},
		PreTokenBalances: []solana.TokenBalance{
			{AccountIndex: 2, Owner: testWallet, Mint: usdcMint, UiAmount: 100.0},
		},
		PostTokenBalances: []solana.TokenBalance{
			{AccountIndex: 2, Owner: testWallet, Mint: usdcMint, UiAmount: 150.0},
		},
	}
}

func newTestMonitor(store watch.Store, chain ChainGateway, notifier notify.Notifier, publisher notify.Publisher) *Monitor {
	resolver := &stubResolver{symbols: map[string]registry.Metadata{
		usdcMint: {Mint: usdcMint, Symbol: "USDC", Verified: true},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, chain, resolver, notifier, publisher, 15*time.Second, 30*time.Second, nil, logger)
}

func TestCycleBaselineThenNotifyThenQuiet(t *testing.T) {
	ctx := context.Background()
	store := watch.NewMemoryStore()
	chain := newMockChain()
	notifier := notify.NewMockNotifier()
	m := newTestMonitor(store, chain, notifier, nil)

	_, err := store.Register(ctx, testUser, testWallet, "main")
	require.NoError(t, err)

	// Cycle 1: first sighting of marker A records the baseline silently.
	chain.setLatest(testWallet, "sig-A")
	require.NoError(t, m.RunCycle(ctx))
	assert.Empty(t, notifier.GetMessages())

	// Cycle 2: marker B is a genuine change, exactly one notification.
	chain.setLatest(testWallet, "sig-B")
	chain.details["sig-B"] = usdcBuyRecord("sig-B")
	require.NoError(t, m.RunCycle(ctx))

	msgs := notifier.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, testUser, msgs[0].UserID)
	assert.Contains(t, msgs[0].Text, "main")
	assert.Contains(t, msgs[0].Text, "Bought 50 $USDC")
	assert.Contains(t, msgs[0].Text, "solscan.io/tx/sig-B")
	// The 0.001 SOL native delta is dust and must not appear.
	assert.NotContains(t, msgs[0].Text, "SOL")

	// Cycle 3: marker B again, no duplicate.
	require.NoError(t, m.RunCycle(ctx))
	assert.Len(t, notifier.GetMessages(), 1)
}

func TestDetailFailureStillNotifies(t *testing.T) {
	ctx := context.Background()
	store := watch.NewMemoryStore()
	chain := newMockChain()
	notifier := notify.NewMockNotifier()
	m := newTestMonitor(store, chain, notifier, nil)

	_, err := store.Register(ctx, testUser, testWallet, "main")
	require.NoError(t, err)
	require.NoError(t, store.RecordBaseline(ctx, testUser, testWallet, "sig-A"))

	chain.setLatest(testWallet, "sig-B")
	chain.detailErr = errors.New("rpc timeout")
	require.NoError(t, m.RunCycle(ctx))

	msgs := notifier.GetMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "No balance change detected")

	// The marker advanced despite the failed enrichment.
	chain.detailErr = nil
	require.NoError(t, m.RunCycle(ctx))
	assert.Len(t, notifier.GetMessages(), 1)
}

func TestEmptyActivityDefersWallet(t *testing.T) {
	ctx := context.Background()
	store := watch.NewMemoryStore()
	chain := newMockChain()
	notifier := notify.NewMockNotifier()
	m := newTestMonitor(store, chain, notifier, nil)

	_, err := store.Register(ctx, testUser, testWallet, "main")
	require.NoError(t, err)

	// No activity yet: not an error, just deferred.
	require.NoError(t, m.RunCycle(ctx))
	assert.Empty(t, notifier.GetMessages())

	// Activity fetch errors are deferred too.
	chain.activityErr[testWallet] = errors.New("rate limited")
	require.NoError(t, m.RunCycle(ctx))
	assert.Empty(t, notifier.GetMessages())
}

func TestWalletFailureDoesNotAbortCycle(t *testing.T) {
	ctx := context.Background()
	inner := watch.NewMemoryStore()
	store := &failingStore{Store: inner, failAddr: testWallet}
	chain := newMockChain()
	notifier := notify.NewMockNotifier()
	m := newTestMonitor(store, chain, notifier, nil)

	_, err := inner.Register(ctx, testUser, testWallet, "broken")
	require.NoError(t, err)
	_, err = inner.Register(ctx, testUser, otherWallet, "healthy")
	require.NoError(t, err)
	require.NoError(t, inner.RecordBaseline(ctx, testUser, otherWallet, "sig-A"))

	chain.setLatest(testWallet, "sig-X")
	chain.setLatest(otherWallet, "sig-B")
	chain.details["sig-B"] = usdcBuyRecord("sig-B")

	// The first wallet's storage failure is contained; the second wallet
	// still gets its notification within the same cycle.
	require.NoError(t, m.RunCycle(ctx))
	msgs := notifier.GetMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "healthy")
}

func TestNotifierFailureDoesNotRetry(t *testing.T) {
	ctx := context.Background()
	store := watch.NewMemoryStore()
	chain := newMockChain()
	notifier := notify.NewMockNotifier()
	notifier.SetNotifyError(errors.New("chat service down"))
	m := newTestMonitor(store, chain, notifier, nil)

	_, err := store.Register(ctx, testUser, testWallet, "main")
	require.NoError(t, err)
	require.NoError(t, store.RecordBaseline(ctx, testUser, testWallet, "sig-A"))

	chain.setLatest(testWallet, "sig-B")
	chain.details["sig-B"] = usdcBuyRecord("sig-B")
	require.NoError(t, m.RunCycle(ctx))

	// At-most-once: the marker advanced, so recovery of the notifier does
	// not produce a late duplicate.
	notifier.SetNotifyError(nil)
	require.NoError(t, m.RunCycle(ctx))
	assert.Empty(t, notifier.GetMessages())
}

func TestPublisherReceivesStructuredEvent(t *testing.T) {
	ctx := context.Background()
	store := watch.NewMemoryStore()
	chain := newMockChain()
	notifier := notify.NewMockNotifier()
	publisher := notify.NewMockPublisher()
	m := newTestMonitor(store, chain, notifier, publisher)

	_, err := store.Register(ctx, testUser, testWallet, "main")
	require.NoError(t, err)
	require.NoError(t, store.RecordBaseline(ctx, testUser, testWallet, "sig-A"))

	chain.setLatest(testWallet, "sig-B")
	chain.details["sig-B"] = usdcBuyRecord("sig-B")
	require.NoError(t, m.RunCycle(ctx))

	events := publisher.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, testUser, events[0].UserID)
	assert.Equal(t, testWallet, events[0].WalletAddress)
	assert.Equal(t, "sig-B", events[0].Signature)
	require.Len(t, events[0].Transfers, 1)
	assert.Equal(t, "USDC", events[0].Transfers[0].Symbol)
	assert.Equal(t, "buy", events[0].Transfers[0].Direction)
	assert.InDelta(t, 50.0, events[0].Transfers[0].Amount, 1e-9)
	assert.True(t, events[0].Transfers[0].Verified)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := watch.NewMemoryStore()
	chain := newMockChain()
	notifier := notify.NewMockNotifier()
	m := newTestMonitor(store, chain, notifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}
