package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/walletwatch/service/solana"
	"github.com/brojonat/walletwatch/service/watch"
)

// ChainGateway is the slice of the Solana client the command surface
// consumes. GetBalance doubles as address validation on /add: an address
// the RPC node rejects is not registered.
type ChainGateway interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetRecentActivity(ctx context.Context, address string, limit int) ([]solana.ActivityInfo, error)
}

// Handler dispatches bot commands against the wallet store and the
// chain gateway. Every command returns a Markdown reply; user input
// errors are replies, never logged as faults.
type Handler struct {
	store  watch.Store
	chain  ChainGateway
	logger *slog.Logger
}

// NewHandler creates a command handler.
func NewHandler(store watch.Store, chain ChainGateway, logger *slog.Logger) *Handler {
	return &Handler{store: store, chain: chain, logger: logger}
}

// Commands is the menu registered with Telegram on startup.
func Commands() []BotCommand {
	return []BotCommand{
		{Command: "start", Description: "Start the bot and see welcome message"},
		{Command: "help", Description: "Show help message"},
		{Command: "add", Description: "Add a wallet to track"},
		{Command: "rename", Description: "Rename a tracked wallet"},
		{Command: "remove", Description: "Remove a wallet from tracking"},
		{Command: "list", Description: "List all tracked wallets"},
		{Command: "balance", Description: "Check wallet balance"},
		{Command: "recent", Description: "Show recent transactions"},
		{Command: "stats", Description: "Show your statistics"},
	}
}

const helpText = `*Wallet Watch Commands*

/add <address> [name] — track a wallet
/rename <address|name> <new name> — rename a tracked wallet
/remove <address|name> — stop tracking a wallet
/list — show your tracked wallets
/balance <address|name> — current SOL balance
/recent <address|name> [count] — recent transactions
/stats — your tracking statistics

You'll get a message whenever a tracked wallet has new on-chain activity.`

// HandleCommand parses one incoming command and returns the reply text.
func (h *Handler) HandleCommand(ctx context.Context, userID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	cmd := strings.ToLower(fields[0])
	// Group chats suffix commands with the bot name.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		return "👋 Welcome to Wallet Watch!\n\nI notify you whenever a Solana wallet you track has new activity, with the balance changes it caused.\n\nUse /add <address> to start, or /help for all commands."
	case "/help":
		return helpText
	case "/add":
		return h.addWallet(ctx, userID, args)
	case "/rename":
		return h.renameWallet(ctx, userID, args)
	case "/remove":
		return h.removeWallet(ctx, userID, args)
	case "/list":
		return h.listWallets(ctx, userID)
	case "/balance":
		return h.checkBalance(ctx, userID, args)
	case "/recent":
		return h.recentActivity(ctx, userID, args)
	case "/stats":
		return h.stats(ctx, userID)
	default:
		return "Unknown command. Use /help to see what I can do."
	}
}

func (h *Handler) addWallet(ctx context.Context, userID int64, args []string) string {
	if len(args) == 0 {
		return "Usage: /add <address> [name]"
	}
	address := args[0]

	name := strings.Join(args[1:], " ")
	if name == "" {
		existing, err := h.store.ListFor(ctx, userID)
		if err != nil {
			return h.internalError(err)
		}
		name = fmt.Sprintf("Wallet %d", len(existing)+1)
	}

	// Hit the chain before registering: rejects malformed addresses and
	// confirms the node answers for this account.
	if _, err := h.chain.GetBalance(ctx, address); err != nil {
		return "❌ That doesn't look like a valid Solana address."
	}

	if _, err := h.store.Register(ctx, userID, address, name); err != nil {
		if errors.Is(err, watch.ErrAlreadyTracked) {
			return "You're already tracking that wallet."
		}
		return h.internalError(err)
	}

	// Record the current head so pre-existing history never notifies.
	if activity, err := h.chain.GetRecentActivity(ctx, address, 1); err == nil && len(activity) > 0 {
		if err := h.store.RecordBaseline(ctx, userID, address, activity[0].Signature); err != nil {
			h.logger.Warn("failed to record baseline",
				"address", address,
				"error", err,
			)
		}
	}

	return fmt.Sprintf("✅ Now tracking *%s* (`%s`). I'll message you on new activity.", name, shortAddress(address))
}

func (h *Handler) renameWallet(ctx context.Context, userID int64, args []string) string {
	if len(args) < 2 {
		return "Usage: /rename <address|name> <new name>"
	}
	w, err := h.resolveWallet(ctx, userID, args[0])
	if err != nil {
		return h.lookupError(err)
	}
	newName := strings.Join(args[1:], " ")
	if err := h.store.Rename(ctx, userID, w.Address, newName); err != nil {
		return h.lookupError(err)
	}
	return fmt.Sprintf("✏️ Renamed *%s* to *%s*.", w.Name, newName)
}

func (h *Handler) removeWallet(ctx context.Context, userID int64, args []string) string {
	if len(args) == 0 {
		return "Usage: /remove <address|name>"
	}
	w, err := h.resolveWallet(ctx, userID, args[0])
	if err != nil {
		return h.lookupError(err)
	}
	if _, err := h.store.Unregister(ctx, userID, w.Address); err != nil {
		return h.lookupError(err)
	}
	return fmt.Sprintf("🗑 Stopped tracking *%s*.", w.Name)
}

func (h *Handler) listWallets(ctx context.Context, userID int64) string {
	wallets, err := h.store.ListFor(ctx, userID)
	if err != nil {
		return h.internalError(err)
	}
	if len(wallets) == 0 {
		return "You're not tracking any wallets yet. Use /add <address> to start."
	}

	var b strings.Builder
	b.WriteString("*Your tracked wallets:*\n\n")
	for i, w := range wallets {
		fmt.Fprintf(&b, "%d. *%s*\n   `%s`\n", i+1, w.Name, w.Address)
	}
	return b.String()
}

func (h *Handler) checkBalance(ctx context.Context, userID int64, args []string) string {
	if len(args) == 0 {
		return "Usage: /balance <address|name>"
	}
	w, err := h.resolveWallet(ctx, userID, args[0])
	address, name := args[0], shortAddress(args[0])
	if err == nil {
		address, name = w.Address, w.Name
	}

	lamports, err := h.chain.GetBalance(ctx, address)
	if err != nil {
		return "❌ Couldn't fetch the balance right now. Try again in a moment."
	}
	sol := float64(lamports) / solana.LamportsPerSOL
	return fmt.Sprintf("💰 *%s* holds %.4f SOL", name, sol)
}

func (h *Handler) recentActivity(ctx context.Context, userID int64, args []string) string {
	if len(args) == 0 {
		return "Usage: /recent <address|name> [count]"
	}
	w, err := h.resolveWallet(ctx, userID, args[0])
	if err != nil {
		return h.lookupError(err)
	}

	limit := 5
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			limit = min(n, 10)
		}
	}

	activity, err := h.chain.GetRecentActivity(ctx, w.Address, limit)
	if err != nil {
		return "❌ Couldn't fetch recent activity right now. Try again in a moment."
	}
	if len(activity) == 0 {
		return fmt.Sprintf("*%s* has no on-chain activity yet.", w.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Recent activity for %s:*\n\n", w.Name)
	for _, a := range activity {
		status := "✅"
		if a.Failed {
			status = "❌"
		}
		when := ""
		if !a.BlockTime.IsZero() {
			when = " — " + a.BlockTime.UTC().Format("Jan 2 15:04")
		}
		fmt.Fprintf(&b, "%s [%s](https://solscan.io/tx/%s)%s\n",
			status, shortAddress(a.Signature), a.Signature, when)
	}
	return b.String()
}

func (h *Handler) stats(ctx context.Context, userID int64) string {
	wallets, err := h.store.ListFor(ctx, userID)
	if err != nil {
		return h.internalError(err)
	}

	active := 0
	for _, w := range wallets {
		if w.LastMarker != "" {
			active++
		}
	}
	return fmt.Sprintf("📊 *Your stats*\n\nTracked wallets: %d\nWallets with observed activity: %d", len(wallets), active)
}

// resolveWallet accepts either an exact address or a case-insensitive
// wallet name.
func (h *Handler) resolveWallet(ctx context.Context, userID int64, arg string) (*watch.Wallet, error) {
	wallets, err := h.store.ListFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if w.Address == arg {
			return w, nil
		}
	}
	for _, w := range wallets {
		if strings.EqualFold(w.Name, arg) {
			return w, nil
		}
	}
	return nil, watch.ErrNotTracked
}

func (h *Handler) lookupError(err error) string {
	if errors.Is(err, watch.ErrNotTracked) {
		return "You're not tracking that wallet. Use /list to see your wallets."
	}
	return h.internalError(err)
}

func (h *Handler) internalError(err error) string {
	h.logger.Error("command handling failed", "error", err)
	return "⚠️ Something went wrong on my end. Please try again."
}

func shortAddress(s string) string {
	if len(s) <= 11 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// RunPolling long-polls Telegram for commands and replies inline. It
// returns when the context is cancelled; transport errors back off
// briefly and never terminate the loop.
func RunPolling(ctx context.Context, bot *Bot, h *Handler, logger *slog.Logger) error {
	logger.Info("telegram command polling started")

	if err := bot.SetMyCommands(ctx, Commands()); err != nil {
		logger.Warn("failed to set command menu", "error", err)
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			logger.Info("telegram command polling stopped")
			return ctx.Err()
		}

		updates, err := bot.GetUpdates(ctx, offset, longPollWindow)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("failed to fetch updates", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || !strings.HasPrefix(u.Message.Text, "/") {
				continue
			}
			reply := h.HandleCommand(ctx, u.Message.Chat.ID, u.Message.Text)
			if reply == "" {
				continue
			}
			if err := bot.Notify(ctx, u.Message.Chat.ID, reply); err != nil {
				logger.Error("failed to send reply",
					"chat_id", u.Message.Chat.ID,
					"error", err,
				)
			}
		}
	}
}
