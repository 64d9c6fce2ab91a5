package notify

import "time"

// Transfer is one inferred asset movement inside an activity event.
type Transfer struct {
	Mint      string  `json:"mint"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Amount    float64 `json:"amount"`
	Native    bool    `json:"native"`
	Verified  bool    `json:"verified"`
}

// ActivityEvent is the structured form of a wallet notification,
// published to the subject "notify.{user_id}" in JetStream so consumers
// other than the chat bot can react to wallet activity.
type ActivityEvent struct {
	UserID        int64      `json:"user_id"`
	WalletAddress string     `json:"wallet_address"`
	WalletName    string     `json:"wallet_name"`
	Signature     string     `json:"signature"`
	Slot          uint64     `json:"slot"`
	BlockTime     time.Time  `json:"block_time"`
	Failed        bool       `json:"failed"`
	Transfers     []Transfer `json:"transfers"`
	PublishedAt   time.Time  `json:"published_at"`
}
