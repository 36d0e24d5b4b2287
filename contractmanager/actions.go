package contractmanager

import (
	"gitlab.com/zanolabs/escrowd/contracts"
	"gitlab.com/zanolabs/escrowd/wallet"
)

// Acknowledge records that the user has opened the contract. The display
// state the user saw is written to the viewed ledger so the same state is
// not announced again, and the unseen flag is cleared.
func (e *Engine) Acknowledge(walletID int64, contractID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets.Get(walletID)
	if !ok {
		return ErrWalletNotFound
	}

	found, changed := w.UpdateContractByID(contractID, func(c *contracts.Contract) bool {
		if !c.IsNew {
			return false
		}
		if c.IsA && c.State == contracts.StateAccepted {
			c.State = contracts.StateAcceptedHighlighted
		}
		if c.State == contracts.StateCancelExpired &&
			c.CancelExpirationTime != 0 &&
			c.CancelExpirationTime < e.session.ExpirationThreshold() {
			// an expired cancellation request falls back to the active
			// contract once acknowledged
			c.State = contracts.StateAccepted
		}
		e.ledger.UpsertViewed(contracts.Mark{
			ContractID: c.ContractID,
			IsA:        c.IsA,
			State:      c.State,
		})
		c.IsNew = false
		return true
	})
	if !found {
		return ErrContractNotFound
	}
	if changed {
		w.RecountNewContracts()
	}
	return nil
}

// IgnoreExpiredProposal is the explicit "dismiss" of an expired proposal.
// The current expiration time is stored as the dedup key, so replaying the
// same expiry after a restart does not announce it again.
func (e *Engine) IgnoreExpiredProposal(walletID int64, contractID string) error {
	return e.dismiss(walletID, contractID, contracts.StateProposalExpired, func(c *contracts.Contract) int64 {
		return c.ExpirationTime
	})
}

// DeclineCancelRequest dismisses the counterparty's cancellation proposal,
// keyed by the cancellation expiry.
func (e *Engine) DeclineCancelRequest(walletID int64, contractID string) error {
	return e.dismiss(walletID, contractID, contracts.StateCancelExpired, func(c *contracts.Contract) int64 {
		return c.CancelExpirationTime
	})
}

func (e *Engine) dismiss(walletID int64, contractID string, state contracts.State, timeOf func(c *contracts.Contract) int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets.Get(walletID)
	if !ok {
		return ErrWalletNotFound
	}

	found, _ := w.UpdateContractByID(contractID, func(c *contracts.Contract) bool {
		e.ledger.UpsertNotViewed(contracts.Mark{
			ContractID: c.ContractID,
			IsA:        c.IsA,
			State:      state,
			Time:       timeOf(c),
		})
		c.IsNew = true
		c.State = state
		return true
	})
	if !found {
		return ErrContractNotFound
	}
	w.RecountNewContracts()
	return nil
}

// Wallets exposes the registry for read-only API access.
func (e *Engine) Wallets() *wallet.Registry {
	return e.wallets
}
