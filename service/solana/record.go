package solana

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// recordFromResult builds a domain TransactionRecord from a GetTransaction
// RPC result. Missing pieces degrade rather than fail: a nil meta produces
// a record with no balance metadata, and an undecodable transaction payload
// produces a record with no account keys (native inference then finds no
// subject index and stays silent).
func recordFromResult(signature string, result *rpc.GetTransactionResult) *TransactionRecord {
	rec := &TransactionRecord{
		Signature: signature,
	}

	if result == nil {
		return rec
	}

	rec.Slot = result.Slot
	if result.BlockTime != nil {
		rec.BlockTime = result.BlockTime.Time()
	}

	if result.Transaction != nil {
		if tx, err := result.Transaction.GetTransaction(); err == nil && tx != nil {
			rec.AccountKeys = make([]AccountKey, len(tx.Message.AccountKeys))
			for i, key := range tx.Message.AccountKeys {
				rec.AccountKeys[i] = AccountKey{Address: key.String()}
			}
		}
	}

	meta := result.Meta
	if meta == nil {
		return rec
	}

	rec.Failed = meta.Err != nil
	rec.PreBalances = meta.PreBalances
	rec.PostBalances = meta.PostBalances
	rec.PreTokenBalances = convertTokenBalances(meta.PreTokenBalances)
	rec.PostTokenBalances = convertTokenBalances(meta.PostTokenBalances)

	return rec
}

func convertTokenBalances(balances []rpc.TokenBalance) []TokenBalance {
	if len(balances) == 0 {
		return nil
	}
	out := make([]TokenBalance, 0, len(balances))
	for _, b := range balances {
		tb := TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
		}
		if b.Owner != nil {
			tb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil && b.UiTokenAmount.UiAmount != nil {
			tb.UiAmount = *b.UiTokenAmount.UiAmount
		}
		out = append(out, tb)
	}
	return out
}

// DecodeRecord parses a raw JSON transaction payload (the getTransaction
// response shape, json or jsonParsed encoded) into a TransactionRecord.
// Account keys in either the plain-string or {"pubkey": ...} shape are
// accepted. Used by the debug CLI and by tests; the monitoring path builds
// records from the typed RPC client instead.
func DecodeRecord(data []byte) (*TransactionRecord, error) {
	var raw struct {
		Slot      uint64 `json:"slot"`
		BlockTime *int64 `json:"blockTime"`
		Meta      *struct {
			Err               json.RawMessage `json:"err"`
			PreBalances       []uint64        `json:"preBalances"`
			PostBalances      []uint64        `json:"postBalances"`
			PreTokenBalances  []TokenBalance  `json:"preTokenBalances"`
			PostTokenBalances []TokenBalance  `json:"postTokenBalances"`
		} `json:"meta"`
		Transaction *struct {
			Signatures []string `json:"signatures"`
			Message    struct {
				AccountKeys []AccountKey `json:"accountKeys"`
			} `json:"message"`
		} `json:"transaction"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode transaction record: %w", err)
	}

	rec := &TransactionRecord{
		Slot: raw.Slot,
	}
	if raw.BlockTime != nil {
		rec.BlockTime = time.Unix(*raw.BlockTime, 0).UTC()
	}
	if raw.Transaction != nil {
		if len(raw.Transaction.Signatures) > 0 {
			rec.Signature = raw.Transaction.Signatures[0]
		}
		rec.AccountKeys = raw.Transaction.Message.AccountKeys
	}
	if raw.Meta != nil {
		rec.Failed = len(raw.Meta.Err) > 0 && string(raw.Meta.Err) != "null"
		rec.PreBalances = raw.Meta.PreBalances
		rec.PostBalances = raw.Meta.PostBalances
		rec.PreTokenBalances = raw.Meta.PreTokenBalances
		rec.PostTokenBalances = raw.Meta.PostTokenBalances
	}

	return rec, nil
}
