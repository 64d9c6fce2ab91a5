package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileStore is the production Store: the full ledger lives in memory
// behind a mutex and is serialized to a single JSON snapshot file after
// every mutation. Snapshot writes are whole-file atomic replaces (write
// to a temp file, then rename), so a crash mid-write cannot tear the
// persisted state.
//
// Snapshot schema, keyed by user id:
//
//	{"123456": {"wallets": {"<address>": "<name>"},
//	            "last_signatures": {"<address>": "<marker>"}}}
//
// Wallet registration order is carried by the key order of the "wallets"
// object, which both the encoder and decoder preserve.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	st *state
}

// NewFileStore opens (or initializes) a file-backed store. A missing
// snapshot file starts empty; an unreadable or corrupt one is logged as a
// warning and also starts empty, never fatal.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	f := &FileStore{
		path:   path,
		logger: logger,
		st:     newState(),
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		logger.Warn("failed to read state snapshot, starting empty",
			"path", path,
			"error", err,
		)
		return f, nil
	}

	if err := f.restore(data); err != nil {
		logger.Warn("corrupt state snapshot, starting empty",
			"path", path,
			"error", err,
		)
		f.st = newState()
	}

	return f, nil
}

func (f *FileStore) Register(_ context.Context, userID int64, address, name string) (*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.st.register(userID, address, name)
	if err != nil {
		return nil, err
	}
	if err := f.persist(); err != nil {
		return nil, err
	}
	return w, nil
}

func (f *FileStore) Rename(_ context.Context, userID int64, address, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.st.rename(userID, address, newName); err != nil {
		return err
	}
	return f.persist()
}

func (f *FileStore) Unregister(_ context.Context, userID int64, address string) (*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.st.unregister(userID, address)
	if err != nil {
		return nil, err
	}
	if err := f.persist(); err != nil {
		return nil, err
	}
	return w, nil
}

func (f *FileStore) ListFor(_ context.Context, userID int64) ([]*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.listFor(userID), nil
}

func (f *FileStore) ListAll(_ context.Context) ([]*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.listAll(), nil
}

func (f *FileStore) RecordBaseline(_ context.Context, userID int64, address, marker string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutated, err := f.st.recordBaseline(userID, address, marker)
	if err != nil {
		return err
	}
	if !mutated {
		return nil
	}
	return f.persist()
}

func (f *FileStore) TryAdvance(_ context.Context, userID int64, address, newMarker string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, advanced, mutated, err := f.st.tryAdvance(userID, address, newMarker)
	if err != nil {
		return "", false, err
	}
	if mutated {
		if err := f.persist(); err != nil {
			return "", false, err
		}
	}
	return prev, advanced, nil
}

// snapshot serialization

type userSnapshot struct {
	Wallets        json.RawMessage   `json:"wallets"`
	LastSignatures map[string]string `json:"last_signatures"`
}

// persist writes the snapshot atomically. Caller holds the lock.
func (f *FileStore) persist() error {
	snapshot := make(map[string]userSnapshot, len(f.st.users))
	for userID, u := range f.st.users {
		wallets, err := encodeOrderedWallets(u)
		if err != nil {
			return fmt.Errorf("failed to encode wallet set: %w", err)
		}
		sigs := make(map[string]string)
		for addr, w := range u.wallets {
			if w.LastMarker != "" {
				sigs[addr] = w.LastMarker
			}
		}
		snapshot[strconv.FormatInt(userID, 10)] = userSnapshot{
			Wallets:        wallets,
			LastSignatures: sigs,
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state snapshot: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace state snapshot: %w", err)
	}
	return nil
}

func (f *FileStore) restore(data []byte) error {
	var snapshot map[string]userSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}

	st := newState()
	for userKey, us := range snapshot {
		userID, err := strconv.ParseInt(userKey, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", userKey, err)
		}

		order, names, err := decodeOrderedWallets(us.Wallets)
		if err != nil {
			return fmt.Errorf("invalid wallet set for user %s: %w", userKey, err)
		}

		u := st.user(userID)
		for _, addr := range order {
			w := &Wallet{
				UserID:     userID,
				Address:    addr,
				Name:       names[addr],
				LastMarker: us.LastSignatures[addr],
			}
			u.wallets[addr] = w
			u.order = append(u.order, addr)
		}
	}

	f.st = st
	return nil
}

// encodeOrderedWallets writes the wallets object with keys in
// registration order.
func encodeOrderedWallets(u *userState) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, addr := range u.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(addr)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(u.wallets[addr].Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeOrderedWallets reads the wallets object preserving key order.
func decodeOrderedWallets(raw json.RawMessage) ([]string, map[string]string, error) {
	if len(raw) == 0 {
		return nil, map[string]string{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("wallets is not an object")
	}

	var order []string
	names := make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		addr, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("wallet key is not a string")
		}
		var name string
		if err := dec.Decode(&name); err != nil {
			return nil, nil, err
		}
		order = append(order, addr)
		names[addr] = name
	}

	return order, names, nil
}
