package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewHTTPClient builds the retrying HTTP client shared by the lookup
// sources. Retries are kept short; a source that needs more than a couple
// of attempts is better skipped in favor of the next one in the chain.
func NewHTTPClient(timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return client
}

// DefaultSources returns the lookup chain in priority order.
func DefaultSources(client *retryablehttp.Client) []Source {
	return []Source{
		NewJupiterSource(client),
		NewDexScreenerSource(client),
		NewSolscanSource(client),
	}
}

func fetchJSON(ctx context.Context, client *retryablehttp.Client, url string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

var errNotFound = fmt.Errorf("not found")

// JupiterSource looks up token metadata from the Jupiter token API.
type JupiterSource struct {
	BaseURL string
	client  *retryablehttp.Client
}

func NewJupiterSource(client *retryablehttp.Client) *JupiterSource {
	return &JupiterSource{
		BaseURL: "https://lite-api.jup.ag/tokens/v1/token",
		client:  client,
	}
}

func (s *JupiterSource) Name() string { return "jupiter" }

func (s *JupiterSource) Lookup(ctx context.Context, mint string) (*Metadata, error) {
	var body struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	}

	err := fetchJSON(ctx, s.client, fmt.Sprintf("%s/%s", s.BaseURL, mint), &body)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Metadata{
		Symbol:   body.Symbol,
		Name:     body.Name,
		Decimals: body.Decimals,
	}, nil
}

// DexScreenerSource looks up token metadata from the DexScreener pair API.
// DexScreener reports no decimals; the field stays zero.
type DexScreenerSource struct {
	BaseURL string
	client  *retryablehttp.Client
}

func NewDexScreenerSource(client *retryablehttp.Client) *DexScreenerSource {
	return &DexScreenerSource{
		BaseURL: "https://api.dexscreener.com/latest/dex/tokens",
		client:  client,
	}
}

func (s *DexScreenerSource) Name() string { return "dexscreener" }

func (s *DexScreenerSource) Lookup(ctx context.Context, mint string) (*Metadata, error) {
	var body struct {
		Pairs []struct {
			BaseToken struct {
				Address string `json:"address"`
				Symbol  string `json:"symbol"`
				Name    string `json:"name"`
			} `json:"baseToken"`
		} `json:"pairs"`
	}

	err := fetchJSON(ctx, s.client, fmt.Sprintf("%s/%s", s.BaseURL, mint), &body)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// The token we asked about may be the base token of any listed pair.
	for _, pair := range body.Pairs {
		if pair.BaseToken.Address == mint && pair.BaseToken.Symbol != "" {
			return &Metadata{
				Symbol: pair.BaseToken.Symbol,
				Name:   pair.BaseToken.Name,
			}, nil
		}
	}

	return nil, nil
}

// SolscanSource looks up token metadata from the Solscan public API.
type SolscanSource struct {
	BaseURL string
	client  *retryablehttp.Client
}

func NewSolscanSource(client *retryablehttp.Client) *SolscanSource {
	return &SolscanSource{
		BaseURL: "https://public-api.solscan.io/token/meta",
		client:  client,
	}
}

func (s *SolscanSource) Name() string { return "solscan" }

func (s *SolscanSource) Lookup(ctx context.Context, mint string) (*Metadata, error) {
	var body struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	}

	err := fetchJSON(ctx, s.client, fmt.Sprintf("%s?tokenAddress=%s", s.BaseURL, mint), &body)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Metadata{
		Symbol:   body.Symbol,
		Name:     body.Name,
		Decimals: body.Decimals,
	}, nil
}
