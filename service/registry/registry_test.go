package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usdcMint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	unknownMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// fakeSource is a scriptable Source that counts lookup attempts.
type fakeSource struct {
	name  string
	meta  *Metadata
	err   error
	calls atomic.Int64
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Lookup(ctx context.Context, mint string) (*Metadata, error) {
	f.calls.Add(1)
	return f.meta, f.err
}

func newTestRegistry(sources ...Source) *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(sources, time.Second, nil, logger)
}

func TestResolve_WrappedSOLBypassesSources(t *testing.T) {
	src := &fakeSource{name: "a", err: errors.New("unreachable")}
	reg := newTestRegistry(src)

	meta := reg.Resolve(context.Background(), WrappedSOLMint)
	assert.Equal(t, "SOL", meta.Symbol)
	assert.Equal(t, 9, meta.Decimals)
	assert.True(t, meta.Verified)
	assert.Equal(t, int64(0), src.calls.Load())
}

func TestResolve_FirstSuccessWins(t *testing.T) {
	first := &fakeSource{name: "first", meta: &Metadata{Symbol: "USDC", Name: "USD Coin", Decimals: 6}}
	second := &fakeSource{name: "second", meta: &Metadata{Symbol: "WRONG"}}
	reg := newTestRegistry(first, second)

	meta := reg.Resolve(context.Background(), usdcMint)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, usdcMint, meta.Mint)
	assert.True(t, meta.Verified)
	assert.Equal(t, int64(1), first.calls.Load())
	assert.Equal(t, int64(0), second.calls.Load())
}

func TestResolve_FallsThroughFailingSources(t *testing.T) {
	failing := &fakeSource{name: "failing", err: errors.New("timeout")}
	empty := &fakeSource{name: "empty", meta: &Metadata{Symbol: ""}}
	good := &fakeSource{name: "good", meta: &Metadata{Symbol: "BONK", Name: "Bonk", Decimals: 5}}
	reg := newTestRegistry(failing, empty, good)

	meta := reg.Resolve(context.Background(), unknownMint)
	assert.Equal(t, "BONK", meta.Symbol)
	assert.True(t, meta.Verified)
	assert.Equal(t, int64(1), failing.calls.Load())
	assert.Equal(t, int64(1), empty.calls.Load())
}

func TestResolve_AllSourcesFailSynthesizesSymbol(t *testing.T) {
	failing := &fakeSource{name: "failing", err: errors.New("down")}
	reg := newTestRegistry(failing)

	meta := reg.Resolve(context.Background(), unknownMint)
	assert.False(t, meta.Verified)
	assert.Equal(t, "DezX...B263", meta.Symbol)
	assert.Equal(t, unknownMint, meta.Mint)
}

func TestResolve_NegativeResultCached(t *testing.T) {
	failing := &fakeSource{name: "failing", err: errors.New("down")}
	reg := newTestRegistry(failing)

	first := reg.Resolve(context.Background(), unknownMint)
	second := reg.Resolve(context.Background(), unknownMint)

	assert.Equal(t, first, second)
	assert.False(t, second.Verified)
	// The failing source is attempted exactly once per mint per run.
	assert.Equal(t, int64(1), failing.calls.Load())
}

func TestResolve_PositiveResultCached(t *testing.T) {
	good := &fakeSource{name: "good", meta: &Metadata{Symbol: "USDC", Decimals: 6}}
	reg := newTestRegistry(good)

	reg.Resolve(context.Background(), usdcMint)
	meta := reg.Resolve(context.Background(), usdcMint)

	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, int64(1), good.calls.Load())
}

func TestShortMint(t *testing.T) {
	assert.Equal(t, "EPjF...Dt1v", shortMint(usdcMint))
	assert.Equal(t, "short", shortMint("short"))
}

func TestJupiterSource_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+usdcMint, r.URL.Path)
		fmt.Fprint(w, `{"address":"`+usdcMint+`","symbol":"USDC","name":"USD Coin","decimals":6}`)
	}))
	defer server.Close()

	src := NewJupiterSource(NewHTTPClient(time.Second))
	src.BaseURL = server.URL

	meta, err := src.Lookup(context.Background(), usdcMint)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, 6, meta.Decimals)
}

func TestJupiterSource_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewJupiterSource(NewHTTPClient(time.Second))
	src.BaseURL = server.URL

	meta, err := src.Lookup(context.Background(), unknownMint)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestDexScreenerSource_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs":[
			{"baseToken":{"address":"other","symbol":"OTHER","name":"Other"}},
			{"baseToken":{"address":"`+usdcMint+`","symbol":"USDC","name":"USD Coin"}}
		]}`)
	}))
	defer server.Close()

	src := NewDexScreenerSource(NewHTTPClient(time.Second))
	src.BaseURL = server.URL

	meta, err := src.Lookup(context.Background(), usdcMint)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "USDC", meta.Symbol)
}

func TestDexScreenerSource_NoMatchingPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs":[]}`)
	}))
	defer server.Close()

	src := NewDexScreenerSource(NewHTTPClient(time.Second))
	src.BaseURL = server.URL

	meta, err := src.Lookup(context.Background(), unknownMint)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestSolscanSource_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, usdcMint, r.URL.Query().Get("tokenAddress"))
		fmt.Fprint(w, `{"symbol":"USDC","name":"USD Coin","decimals":6}`)
	}))
	defer server.Close()

	src := NewSolscanSource(NewHTTPClient(time.Second))
	src.BaseURL = server.URL

	meta, err := src.Lookup(context.Background(), usdcMint)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "USDC", meta.Symbol)
}

func TestSource_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(time.Second)
	client.RetryMax = 0
	src := NewJupiterSource(client)
	src.BaseURL = server.URL

	_, err := src.Lookup(context.Background(), usdcMint)
	require.Error(t, err)
}
