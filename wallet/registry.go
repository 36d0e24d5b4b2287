package wallet

import (
	"strconv"

	"gitlab.com/zanolabs/escrowd/data"
	"golang.org/x/exp/slices"
)

// Registry is the process-wide wallet collection keyed by wallet id.
// Wallets are registered when the daemon first reports their status and
// live until the process exits.
type Registry struct {
	wallets *data.Collection[*Wallet]
}

func NewRegistry() *Registry {
	return &Registry{
		wallets: data.NewCollection[*Wallet](),
	}
}

func (r *Registry) Get(walletID int64) (*Wallet, bool) {
	return r.wallets.Load(strconv.FormatInt(walletID, 10))
}

func (r *Registry) GetOrCreate(walletID int64) *Wallet {
	if w, ok := r.Get(walletID); ok {
		return w
	}
	w := New(walletID)
	r.wallets.Store(w)
	return w
}

func (r *Registry) Range(f func(w *Wallet) bool) {
	r.wallets.Range(f)
}

// All returns the wallets ordered by id for stable API output.
func (r *Registry) All() []*Wallet {
	var out []*Wallet
	r.wallets.Range(func(w *Wallet) bool {
		out = append(out, w)
		return true
	})
	slices.SortFunc(out, func(a, b *Wallet) bool {
		return a.WalletID < b.WalletID
	})
	return out
}

func (r *Registry) Len() int {
	return r.wallets.Len()
}
