// Package wallet keeps the per-wallet view the daemon events are folded
// into: status flags, a bounded recent-transfer history and the ordered
// escrow contract collection with its unseen counter.
package wallet

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gammazero/deque"
	"gitlab.com/zanolabs/escrowd/contracts"
)

// historyLimit bounds the recent transfer list kept per wallet, enough to
// answer replay checks without holding the whole chain history.
const historyLimit = 40

// Transfer is the slice of a money_transfer event the wallet remembers.
type Transfer struct {
	TxHash    string `json:"tx_hash"`
	TxType    int    `json:"tx_type"`
	Amount    uint64 `json:"amount"`
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

type Wallet struct {
	WalletID int64

	mu sync.RWMutex

	loaded     bool
	staking    bool
	progress   float64
	balances   json.RawMessage
	minedTotal uint64
	aliasOps   bool

	// ordered, append-only; index maps composite identity to position
	contracts []*contracts.Contract
	index     map[contracts.Key]int

	history      *deque.Deque[Transfer]
	newContracts int
}

func New(walletID int64) *Wallet {
	return &Wallet{
		WalletID: walletID,
		index:    make(map[contracts.Key]int),
		history:  deque.New[Transfer](),
	}
}

// GetID implements interfaces.IModel for the wallet collection.
func (w *Wallet) GetID() string {
	return strconv.FormatInt(w.WalletID, 10)
}

func (w *Wallet) SetStatus(loaded, staking bool, balances json.RawMessage, minedTotal uint64, aliasOps bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaded = loaded
	w.staking = staking
	if balances != nil {
		w.balances = balances
	}
	w.minedTotal = minedTotal
	w.aliasOps = aliasOps
}

func (w *Wallet) SetBalances(balances json.RawMessage) {
	if balances == nil {
		return
	}
	w.mu.Lock()
	w.balances = balances
	w.mu.Unlock()
}

// SetProgress clamps the daemon-reported sync progress to [0, 100] and
// derives the loaded flag the way the wallet UI did.
func (w *Wallet) SetProgress(progress float64) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	w.mu.Lock()
	w.progress = progress
	if progress == 0 {
		w.loaded = false
	} else if progress == 100 {
		w.loaded = true
	}
	w.mu.Unlock()
}

func (w *Wallet) Loaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}

func (w *Wallet) Staking() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.staking
}

func (w *Wallet) Progress() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.progress
}

func (w *Wallet) Balances() json.RawMessage {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balances
}

func (w *Wallet) MinedTotal() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.minedTotal
}

// HasTransfer reports whether the transaction is already in the recent
// history, which marks an incoming transfer as a replay.
func (w *Wallet) HasTransfer(txHash string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for i := 0; i < w.history.Len(); i++ {
		if w.history.At(i).TxHash == txHash {
			return true
		}
	}
	return false
}

// RecordTransfer prepends the transfer to the history, dropping the oldest
// entry beyond the limit.
func (w *Wallet) RecordTransfer(t Transfer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history.PushFront(t)
	for w.history.Len() > historyLimit {
		w.history.PopBack()
	}
}

// RemoveTransfer drops a cancelled transaction from the history.
func (w *Wallet) RemoveTransfer(txHash string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.history.Len()
	for i := 0; i < n; i++ {
		t := w.history.PopFront()
		if t.TxHash != txHash {
			w.history.PushBack(t)
		}
	}
}

func (w *Wallet) History() []Transfer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Transfer, 0, w.history.Len())
	for i := 0; i < w.history.Len(); i++ {
		out = append(out, w.history.At(i))
	}
	return out
}

// UpsertContract merges the payload into an existing entity or appends a
// new one. Identity never changes, entities are never removed.
func (w *Wallet) UpsertContract(in contracts.Contract) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i, ok := w.index[in.Key()]; ok {
		w.contracts[i].Merge(in)
		return
	}
	c := in
	w.index[in.Key()] = len(w.contracts)
	w.contracts = append(w.contracts, &c)
}

// MergeTransferTimes applies the replay merge: only the daemon timing
// fields are refreshed, state and is_new stay as they are.
func (w *Wallet) MergeTransferTimes(in contracts.Contract) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.index[in.Key()]
	if !ok {
		return false
	}
	w.contracts[i].MergeTimes(in)
	return true
}

// UpdateContract runs f against the entity with the given identity under
// the wallet lock. f returns whether it mutated the entity.
func (w *Wallet) UpdateContract(key contracts.Key, f func(c *contracts.Contract) bool) (found, changed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.index[key]
	if !ok {
		return false, false
	}
	return true, f(w.contracts[i])
}

// UpdateContractByID is UpdateContract keyed by contract id only, matching
// the first entity in insertion order. Used by user-action handlers which
// address contracts without the side flag.
func (w *Wallet) UpdateContractByID(contractID string, f func(c *contracts.Contract) bool) (found, changed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.contracts {
		if c.ContractID == contractID {
			return true, f(c)
		}
	}
	return false, false
}

// SweepContracts runs f over every entity in insertion order and reports
// whether any of them changed.
func (w *Wallet) SweepContracts(f func(c *contracts.Contract) bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := false
	for _, c := range w.contracts {
		if f(c) {
			changed = true
		}
	}
	return changed
}

// GetContract returns a snapshot of the first contract with the given id.
func (w *Wallet) GetContract(contractID string) (contracts.Contract, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, c := range w.contracts {
		if c.ContractID == contractID {
			return *c, true
		}
	}
	return contracts.Contract{}, false
}

// ContractsSnapshot copies the collection for readers. The snapshot may be
// stale immediately after it is taken.
func (w *Wallet) ContractsSnapshot() []contracts.Contract {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]contracts.Contract, len(w.contracts))
	for i, c := range w.contracts {
		out[i] = *c
	}
	return out
}

// RecountNewContracts recomputes the unseen counter from scratch. Called
// after every mutating operation.
func (w *Wallet) RecountNewContracts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	count := 0
	for _, c := range w.contracts {
		if c.IsNew {
			count++
		}
	}
	w.newContracts = count
	return count
}

func (w *Wallet) NewContractsCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.newContracts
}
