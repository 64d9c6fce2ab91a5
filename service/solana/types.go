package solana

import (
	"encoding/json"
	"fmt"
	"time"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// ActivityInfo is a single entry from a wallet's recent-activity list.
// The signature is the activity marker used for change detection; it is
// only ever compared for identity, never ordered.
type ActivityInfo struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Failed    bool
}

// AccountKey is one entry of a transaction's flat account-key list.
// RPC responses carry these either as plain base58 strings or as objects
// with an embedded "pubkey" field (jsonParsed encoding); both decode.
type AccountKey struct {
	Address string
}

func (k *AccountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		k.Address = s
		return nil
	}

	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("account key is neither a string nor an object: %w", err)
	}
	if obj.Pubkey == "" {
		return fmt.Errorf("account key object has no pubkey field")
	}
	k.Address = obj.Pubkey
	return nil
}

func (k AccountKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Address)
}

// TokenBalance is a per-account token balance snapshot from transaction
// metadata. UiAmount is the ui-scaled amount (raw amount divided by the
// mint's decimals); a null uiAmount decodes as 0.
type TokenBalance struct {
	AccountIndex int
	Owner        string
	Mint         string
	UiAmount     float64
}

func (b *TokenBalance) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccountIndex int    `json:"accountIndex"`
		Owner        string `json:"owner"`
		Mint         string `json:"mint"`
		UiTokenAmount struct {
			UiAmount *float64 `json:"uiAmount"`
		} `json:"uiTokenAmount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.AccountIndex = raw.AccountIndex
	b.Owner = raw.Owner
	b.Mint = raw.Mint
	if raw.UiTokenAmount.UiAmount != nil {
		b.UiAmount = *raw.UiTokenAmount.UiAmount
	}
	return nil
}

// TransactionRecord is an immutable snapshot of a confirmed transaction:
// the flat account-key list plus the pre/post balance metadata that
// transfer inference consumes. A record with no balance metadata is valid;
// inference over it yields no events.
type TransactionRecord struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Failed      bool
	AccountKeys []AccountKey

	// Native balances in lamports, indexed like AccountKeys.
	PreBalances  []uint64
	PostBalances []uint64

	// Token balances keyed by (owner, mint) during inference.
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// HasBalanceMeta reports whether the record carries any balance-change
// metadata at all.
func (r *TransactionRecord) HasBalanceMeta() bool {
	return len(r.PreBalances) > 0 || len(r.PostBalances) > 0 ||
		len(r.PreTokenBalances) > 0 || len(r.PostTokenBalances) > 0
}

// SubjectIndex returns the position of the given address in the
// account-key list, or -1 if the address does not appear.
func (r *TransactionRecord) SubjectIndex(address string) int {
	for i, k := range r.AccountKeys {
		if k.Address == address {
			return i
		}
	}
	return -1
}
