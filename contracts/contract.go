package contracts

import "fmt"

// Key is the composite identity of a contract within a wallet. The same
// contract id appears once per counterparty role, so the side flag is part
// of the identity.
type Key struct {
	ContractID string
	IsA        bool
}

func (k Key) String() string {
	side := "b"
	if k.IsA {
		side = "a"
	}
	return fmt.Sprintf("%s/%s", k.ContractID, side)
}

// Contract is the entity tracked per wallet. ContractID and IsA are
// immutable identity, the rest is merged from every money_transfer payload
// that references the contract. Contracts are never deleted, cancellation
// and expiry are states.
type Contract struct {
	ContractID           string `json:"contract_id"`
	IsA                  bool   `json:"is_a"`
	State                State  `json:"state"`
	Height               uint64 `json:"height"`
	ExpirationTime       int64  `json:"expiration_time"`
	CancelExpirationTime int64  `json:"cancel_expiration_time"`
	Timestamp            int64  `json:"timestamp"`
	IsNew                bool   `json:"is_new"`
}

func (c *Contract) Key() Key {
	return Key{ContractID: c.ContractID, IsA: c.IsA}
}

// Merge overwrites every mutable field with the incoming payload values,
// identity fields stay untouched. Last write wins: events applied out of
// order leave the entity reflecting the most recently applied payload.
func (c *Contract) Merge(in Contract) {
	c.State = in.State
	c.Height = in.Height
	c.ExpirationTime = in.ExpirationTime
	c.CancelExpirationTime = in.CancelExpirationTime
	c.Timestamp = in.Timestamp
	c.IsNew = in.IsNew
}

// MergeTimes overwrites only the daemon-reported timing fields, used when a
// transfer is replayed for an already known transaction.
func (c *Contract) MergeTimes(in Contract) {
	c.CancelExpirationTime = in.CancelExpirationTime
	c.ExpirationTime = in.ExpirationTime
	c.Height = in.Height
	c.Timestamp = in.Timestamp
}
