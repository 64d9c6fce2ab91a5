package monitor

import (
	"fmt"
	"strings"

	"github.com/brojonat/walletwatch/service/notify"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/brojonat/walletwatch/service/watch"
)

// renderActivity composes the Markdown notification payload for one
// detected activity change.
func renderActivity(w *watch.Wallet, latest solana.ActivityInfo, transfers []notify.Transfer) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🔔 *Activity on %s*\n", w.Name)
	fmt.Fprintf(&b, "`%s`\n\n", shortAddress(w.Address))

	if latest.Failed {
		b.WriteString("⚠️ Transaction failed\n")
	}

	if len(transfers) == 0 {
		if !latest.Failed {
			b.WriteString("No balance change detected.\n")
		}
	} else {
		for _, t := range transfers {
			fmt.Fprintf(&b, "%s %s %s %s\n",
				directionEmoji(t.Direction),
				directionVerb(t.Direction),
				formatAmount(t.Amount),
				displaySymbol(t),
			)
		}
	}

	fmt.Fprintf(&b, "\n[View on Solscan](https://solscan.io/tx/%s)", latest.Signature)
	return b.String()
}

func directionVerb(direction string) string {
	switch direction {
	case "buy":
		return "Bought"
	case "sell":
		return "Sold"
	case "receive":
		return "Received"
	case "send":
		return "Sent"
	default:
		return "Moved"
	}
}

func directionEmoji(direction string) string {
	switch direction {
	case "buy":
		return "🟢"
	case "sell":
		return "🔴"
	case "receive":
		return "📥"
	case "send":
		return "📤"
	default:
		return "🔁"
	}
}

// displaySymbol prefixes verified token symbols with "$". Native SOL and
// synthesized fallback symbols render bare.
func displaySymbol(t notify.Transfer) string {
	if t.Native {
		return t.Symbol
	}
	if t.Verified {
		return "$" + t.Symbol
	}
	return t.Symbol
}

// formatAmount renders up to six fractional digits with trailing zeros
// trimmed.
func formatAmount(amount float64) string {
	s := fmt.Sprintf("%.6f", amount)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

func shortAddress(address string) string {
	if len(address) <= 11 {
		return address
	}
	return address[:4] + "..." + address[len(address)-4:]
}
