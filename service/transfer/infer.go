package transfer

import (
	"math"

	solanapkg "github.com/brojonat/walletwatch/service/solana"
)

// Direction classifies a balance delta from the subject's point of view.
// Token deltas are buys/sells; native deltas are receives/sends.
type Direction string

const (
	DirectionBuy     Direction = "buy"
	DirectionSell    Direction = "sell"
	DirectionReceive Direction = "receive"
	DirectionSend    Direction = "send"
)

// NativeAsset is the asset identifier used for native SOL events.
const NativeAsset = "native"

// DustLamports is the native-delta reporting floor. Deltas whose magnitude
// does not exceed 0.001 SOL are ignored; this absorbs fee noise on the
// sender side. The boundary is exclusive: exactly 0.001 SOL is dust.
const DustLamports = 1_000_000

// Event is a single net asset movement that a transaction caused for the
// subject wallet. Amounts are ui-scaled and always non-negative; the
// direction carries the sign. Events are ephemeral and never persisted.
type Event struct {
	Mint      string
	Direction Direction
	Amount    float64
	Native    bool
}

type balanceKey struct {
	owner string
	mint  string
}

// Infer computes the set of net asset movements the transaction caused for
// the subject address. Token movements come from the pre/post token balance
// snapshots keyed by (owner, mint); the native movement comes from the
// subject's position in the flat account-key list. The native event, if any,
// is appended last and there is at most one per transaction. A failed
// transaction is still inferred from whatever pre/post state is present;
// a record with no balance metadata yields no events.
func Infer(rec *solanapkg.TransactionRecord, subject string) []Event {
	if rec == nil || !rec.HasBalanceMeta() {
		return nil
	}

	events := inferTokenEvents(rec, subject)

	if native, ok := inferNativeEvent(rec, subject); ok {
		events = append(events, native)
	}

	return events
}

func inferTokenEvents(rec *solanapkg.TransactionRecord, subject string) []Event {
	pre := make(map[balanceKey]float64, len(rec.PreTokenBalances))
	post := make(map[balanceKey]float64, len(rec.PostTokenBalances))

	// Union of keys in insertion order: pre snapshot first, then any keys
	// that only appear post (e.g. a token account created by this tx).
	keys := make([]balanceKey, 0, len(rec.PreTokenBalances)+len(rec.PostTokenBalances))

	for _, b := range rec.PreTokenBalances {
		k := balanceKey{owner: b.Owner, mint: b.Mint}
		if _, seen := pre[k]; !seen {
			keys = append(keys, k)
		}
		pre[k] = b.UiAmount
	}
	for _, b := range rec.PostTokenBalances {
		k := balanceKey{owner: b.Owner, mint: b.Mint}
		if _, inPre := pre[k]; !inPre {
			if _, seen := post[k]; !seen {
				keys = append(keys, k)
			}
		}
		post[k] = b.UiAmount
	}

	var events []Event
	for _, k := range keys {
		if k.owner != subject {
			continue
		}
		delta := post[k] - pre[k]
		if delta == 0 {
			continue
		}
		direction := DirectionBuy
		if delta < 0 {
			direction = DirectionSell
		}
		events = append(events, Event{
			Mint:      k.mint,
			Direction: direction,
			Amount:    math.Abs(delta),
		})
	}

	return events
}

func inferNativeEvent(rec *solanapkg.TransactionRecord, subject string) (Event, bool) {
	idx := rec.SubjectIndex(subject)
	if idx < 0 || idx >= len(rec.PreBalances) || idx >= len(rec.PostBalances) {
		return Event{}, false
	}

	delta := int64(rec.PostBalances[idx]) - int64(rec.PreBalances[idx])
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude <= DustLamports {
		return Event{}, false
	}

	direction := DirectionReceive
	if delta < 0 {
		direction = DirectionSend
	}

	return Event{
		Mint:      NativeAsset,
		Direction: direction,
		Amount:    float64(magnitude) / solanapkg.LamportsPerSOL,
		Native:    true,
	}, true
}
