package contracts

// Mark records the last contract state the user has acknowledged (viewed
// ledger) or explicitly dismissed (not-viewed ledger). Time carries the
// expiration timestamp that was dismissed and works as a dedup key: the
// same expiry must not raise a second notification after a restart.
type Mark struct {
	ContractID string `json:"contract_id"`
	IsA        bool   `json:"is_a"`
	State      State  `json:"state"`
	Time       int64  `json:"time,omitempty"`
}

func (m Mark) Key() Key {
	return Key{ContractID: m.ContractID, IsA: m.IsA}
}

// Ledger holds the two mark stores. At most one mark per contract key per
// store; upserting an existing key replaces the mark in place.
//
// The ledger itself is not goroutine safe, the owning engine serializes
// access to it.
type Ledger struct {
	viewed    map[Key]Mark
	notViewed map[Key]Mark

	onChange func()
}

// NewLedger restores a ledger from persisted mark slices. Duplicated keys
// keep the last occurrence, matching the lookup semantics of the legacy
// array scans.
func NewLedger(viewed, notViewed []Mark) *Ledger {
	l := &Ledger{
		viewed:    make(map[Key]Mark, len(viewed)),
		notViewed: make(map[Key]Mark, len(notViewed)),
	}
	for _, m := range viewed {
		l.viewed[m.Key()] = m
	}
	for _, m := range notViewed {
		l.notViewed[m.Key()] = m
	}
	return l
}

// OnChange registers a hook invoked after every mutation, used to flush the
// marks to the settings storage.
func (l *Ledger) OnChange(f func()) {
	l.onChange = f
}

func (l *Ledger) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}

func (l *Ledger) UpsertViewed(m Mark) {
	l.viewed[m.Key()] = m
	l.changed()
}

func (l *Ledger) UpsertNotViewed(m Mark) {
	l.notViewed[m.Key()] = m
	l.changed()
}

// HasViewed reports whether the user has acknowledged exactly this state
// for the contract.
func (l *Ledger) HasViewed(key Key, state State) bool {
	m, ok := l.viewed[key]
	return ok && m.State == state
}

// FindNotViewed returns the dismissal mark with the given state, if any.
func (l *Ledger) FindNotViewed(key Key, state State) (Mark, bool) {
	m, ok := l.notViewed[key]
	if !ok || m.State != state {
		return Mark{}, false
	}
	return m, true
}

func (l *Ledger) RemoveViewed(key Key) {
	if _, ok := l.viewed[key]; ok {
		delete(l.viewed, key)
		l.changed()
	}
}

func (l *Ledger) RemoveNotViewed(key Key) {
	if _, ok := l.notViewed[key]; ok {
		delete(l.notViewed, key)
		l.changed()
	}
}

// Snapshot returns copies of both stores for persistence.
func (l *Ledger) Snapshot() (viewed, notViewed []Mark) {
	viewed = make([]Mark, 0, len(l.viewed))
	for _, m := range l.viewed {
		viewed = append(viewed, m)
	}
	notViewed = make([]Mark, 0, len(l.notViewed))
	for _, m := range l.notViewed {
		notViewed = append(notViewed, m)
	}
	return viewed, notViewed
}
