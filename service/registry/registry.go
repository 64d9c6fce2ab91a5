package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/walletwatch/service/metrics"
)

// WrappedSOLMint is the mint address of wrapped SOL. It resolves to a
// constant metadata record without any network call.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

var wrappedSOLMetadata = Metadata{
	Mint:     WrappedSOLMint,
	Symbol:   "SOL",
	Name:     "Wrapped SOL",
	Decimals: 9,
	Verified: true,
}

// Metadata describes a token for display purposes. Verified is false when
// every lookup source failed and the symbol was synthesized from the mint
// address; callers typically omit the "$" prefix for unverified symbols.
type Metadata struct {
	Mint     string
	Symbol   string
	Name     string
	Decimals int
	Verified bool
}

// Source is a single external metadata lookup. A (nil, nil) return means
// the source answered but knows nothing about the mint; an error means the
// lookup itself failed. Either way the chain proceeds to the next source.
type Source interface {
	Name() string
	Lookup(ctx context.Context, mint string) (*Metadata, error)
}

// Registry resolves token mints to display metadata through an ordered
// chain of lookup sources, memoizing every resolution (including failed
// ones) for the process lifetime so a dead source is not retried per mint.
type Registry struct {
	sources []Source
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	cache map[string]Metadata
}

// New creates a Registry over the given source chain. The timeout bounds
// each individual source lookup, not the whole chain.
func New(sources []Source, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		sources: sources,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		cache:   make(map[string]Metadata),
	}
}

// Resolve maps a mint address to display metadata. It never fails: if all
// sources are unavailable or know nothing, the result carries a symbol
// synthesized from the mint address and Verified=false.
func (r *Registry) Resolve(ctx context.Context, mint string) Metadata {
	if mint == WrappedSOLMint {
		return wrappedSOLMetadata
	}

	r.mu.Lock()
	if meta, ok := r.cache[mint]; ok {
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.RecordRegistryCacheHit()
		}
		return meta
	}
	r.mu.Unlock()

	meta := r.lookup(ctx, mint)

	r.mu.Lock()
	r.cache[mint] = meta
	r.mu.Unlock()

	return meta
}

func (r *Registry) lookup(ctx context.Context, mint string) Metadata {
	for _, src := range r.sources {
		srcCtx, cancel := context.WithTimeout(ctx, r.timeout)
		meta, err := src.Lookup(srcCtx, mint)
		cancel()

		switch {
		case err != nil:
			r.recordLookup(src.Name(), "error")
			r.logger.DebugContext(ctx, "token lookup source failed",
				"source", src.Name(),
				"mint", mint,
				"error", err,
			)
			continue
		case meta == nil || meta.Symbol == "":
			r.recordLookup(src.Name(), "no_symbol")
			continue
		}

		r.recordLookup(src.Name(), "success")
		meta.Mint = mint
		meta.Verified = true
		return *meta
	}

	r.logger.DebugContext(ctx, "all token lookup sources failed, using synthesized symbol",
		"mint", mint,
	)

	return Metadata{
		Mint:     mint,
		Symbol:   shortMint(mint),
		Name:     shortMint(mint),
		Verified: false,
	}
}

func (r *Registry) recordLookup(source, status string) {
	if r.metrics != nil {
		r.metrics.RecordRegistryLookup(source, status)
	}
}

// shortMint synthesizes a display form from a mint address.
func shortMint(mint string) string {
	if len(mint) <= 11 {
		return mint
	}
	return mint[:4] + "..." + mint[len(mint)-4:]
}
