package watch

// userState holds one user's wallet set. The order slice preserves
// registration order for ListFor.
type userState struct {
	order   []string
	wallets map[string]*Wallet
}

// state is the in-memory representation shared by MemoryStore and
// FileStore. It is not safe for concurrent use; callers hold a lock.
type state struct {
	users map[int64]*userState
}

func newState() *state {
	return &state{users: make(map[int64]*userState)}
}

func (s *state) user(userID int64) *userState {
	u, ok := s.users[userID]
	if !ok {
		u = &userState{wallets: make(map[string]*Wallet)}
		s.users[userID] = u
	}
	return u
}

func (s *state) register(userID int64, address, name string) (*Wallet, error) {
	u := s.user(userID)
	if _, exists := u.wallets[address]; exists {
		return nil, ErrAlreadyTracked
	}
	w := &Wallet{UserID: userID, Address: address, Name: name}
	u.wallets[address] = w
	u.order = append(u.order, address)
	return copyWallet(w), nil
}

func (s *state) rename(userID int64, address, newName string) error {
	w, err := s.get(userID, address)
	if err != nil {
		return err
	}
	w.Name = newName
	return nil
}

func (s *state) unregister(userID int64, address string) (*Wallet, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotTracked
	}
	w, exists := u.wallets[address]
	if !exists {
		return nil, ErrNotTracked
	}
	delete(u.wallets, address)
	for i, a := range u.order {
		if a == address {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
	return copyWallet(w), nil
}

func (s *state) listFor(userID int64) []*Wallet {
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	out := make([]*Wallet, 0, len(u.order))
	for _, addr := range u.order {
		out = append(out, copyWallet(u.wallets[addr]))
	}
	return out
}

func (s *state) listAll() []*Wallet {
	var out []*Wallet
	for _, u := range s.users {
		for _, addr := range u.order {
			out = append(out, copyWallet(u.wallets[addr]))
		}
	}
	return out
}

// recordBaseline reports whether it actually mutated the state, so the
// file store can skip the snapshot write on the idempotent no-op path.
func (s *state) recordBaseline(userID int64, address, marker string) (bool, error) {
	w, err := s.get(userID, address)
	if err != nil {
		return false, err
	}
	if w.LastMarker != "" {
		return false, nil
	}
	w.LastMarker = marker
	return true, nil
}

func (s *state) tryAdvance(userID int64, address, newMarker string) (prev string, advanced, mutated bool, err error) {
	w, err := s.get(userID, address)
	if err != nil {
		return "", false, false, err
	}
	switch {
	case w.LastMarker == "":
		// First observation: record the baseline silently.
		w.LastMarker = newMarker
		return "", false, true, nil
	case w.LastMarker == newMarker:
		return "", false, false, nil
	default:
		prev = w.LastMarker
		w.LastMarker = newMarker
		return prev, true, true, nil
	}
}

func (s *state) get(userID int64, address string) (*Wallet, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotTracked
	}
	w, exists := u.wallets[address]
	if !exists {
		return nil, ErrNotTracked
	}
	return w, nil
}

func copyWallet(w *Wallet) *Wallet {
	c := *w
	return &c
}
