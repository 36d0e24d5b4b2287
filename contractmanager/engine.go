// Package contractmanager reconciles the escrow contract lifecycle: it
// folds daemon pushes and clock ticks into the per-wallet contract
// collections and the seen/unseen ledger.
package contractmanager

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gitlab.com/zanolabs/escrowd/backend"
	"gitlab.com/zanolabs/escrowd/contracts"
	"gitlab.com/zanolabs/escrowd/interfaces"
	"gitlab.com/zanolabs/escrowd/session"
	"gitlab.com/zanolabs/escrowd/wallet"
)

var (
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrContractNotFound = errors.New("contract not found")
)

// EventSource delivers raw pushed events by name, one at a time.
type EventSource interface {
	EventSubscribe(event string) <-chan json.RawMessage
}

// Engine owns every mutation of the wallet contract collections and the
// ledger. Daemon events, clock ticks and user actions all funnel through
// the engine mutex, so each transition observes a consistent snapshot.
// Every transition rule is idempotent: the confirmation tick and the
// expiration sweep may race a reconciling money_transfer for the same
// contract, re-applying a rule to a contract already in the target state
// is a no-op.
type Engine struct {
	mu sync.Mutex

	wallets *wallet.Registry
	session *session.Session
	ledger  *contracts.Ledger

	confirmInterval time.Duration

	walletStatusCh   <-chan json.RawMessage
	syncProgressCh   <-chan json.RawMessage
	daemonStateCh    <-chan json.RawMessage
	transferCh       <-chan json.RawMessage
	transferCancelCh <-chan json.RawMessage

	log interfaces.ILogger
}

func NewEngine(
	wallets *wallet.Registry,
	sess *session.Session,
	ledger *contracts.Ledger,
	events EventSource,
	confirmInterval time.Duration,
	log interfaces.ILogger,
) *Engine {
	// subscriptions are taken here so they are already registered when the
	// event source connects and announces them
	return &Engine{
		wallets:          wallets,
		session:          sess,
		ledger:           ledger,
		confirmInterval:  confirmInterval,
		walletStatusCh:   events.EventSubscribe(backend.EventUpdateWalletStatus),
		syncProgressCh:   events.EventSubscribe(backend.EventWalletSyncProgress),
		daemonStateCh:    events.EventSubscribe(backend.EventUpdateDaemonState),
		transferCh:       events.EventSubscribe(backend.EventMoneyTransfer),
		transferCancelCh: events.EventSubscribe(backend.EventMoneyTransferCancel),
		log:              log,
	}
}

// Run consumes the daemon event stream until the context is cancelled.
// Events are processed strictly one at a time.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw := <-e.walletStatusCh:
			var ev backend.WalletStatusEvent
			if !e.decode(backend.EventUpdateWalletStatus, raw, &ev) {
				continue
			}
			e.HandleWalletStatus(ev)

		case raw := <-e.syncProgressCh:
			var ev backend.SyncProgressEvent
			if !e.decode(backend.EventWalletSyncProgress, raw, &ev) {
				continue
			}
			e.HandleSyncProgress(ev)

		case raw := <-e.daemonStateCh:
			var ev backend.DaemonStateEvent
			if !e.decode(backend.EventUpdateDaemonState, raw, &ev) {
				continue
			}
			e.HandleDaemonState(ev)

		case raw := <-e.transferCh:
			var ev backend.MoneyTransferEvent
			if !e.decode(backend.EventMoneyTransfer, raw, &ev) {
				continue
			}
			e.HandleMoneyTransfer(ev)

		case raw := <-e.transferCancelCh:
			var ev backend.MoneyTransferCancelEvent
			if !e.decode(backend.EventMoneyTransferCancel, raw, &ev) {
				continue
			}
			e.HandleMoneyTransferCancel(ev)
		}
	}
}

// RunConfirmationTicker drives the periodic confirmation sweep. Torn down
// with its context when the owning session ends, otherwise it would keep
// mutating shared wallet state.
func (e *Engine) RunConfirmationTicker(ctx context.Context) error {
	ticker := time.NewTicker(e.confirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.TickConfirmations()
		}
	}
}

func (e *Engine) decode(event string, raw json.RawMessage, dst interface{}) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		e.log.Errorf("malformed %s payload dropped: %s", event, err)
		return false
	}
	return true
}

// HandleWalletStatus registers the wallet on first sight and refreshes its
// status flags.
func (e *Engine) HandleWalletStatus(ev backend.WalletStatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.wallets.GetOrCreate(ev.WalletID)
	w.SetStatus(ev.State == backend.WalletStateReady, ev.IsMining, ev.Balances, ev.MinedTotal, ev.AliasOperationsAvailable)
	e.log.Debugf("wallet %d status: state=%d mining=%t", ev.WalletID, ev.State, ev.IsMining)
}

func (e *Engine) HandleSyncProgress(ev backend.SyncProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets.Get(ev.WalletID)
	if !ok {
		return
	}
	w.SetProgress(ev.Progress)
}

// HandleDaemonState advances the session scalars and runs both time-driven
// sweeps: the new expiration threshold and the new height each may settle
// contracts on their own, before any reconciling money_transfer arrives.
func (e *Engine) HandleDaemonState(ev backend.DaemonStateEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	threshold := e.session.SetExpirationMedian(ev.ExpirationMedianTimestamp)
	e.session.SetHeightApp(ev.Height)
	e.session.SetHeightMax(ev.MaxNetSeenHeight)
	e.session.SetDaemonState(ev.DaemonNetworkState)
	e.session.SetSyncStartHeight(ev.SynchronizationStartHeight)

	e.sweepExpirations(threshold)
	e.sweepConfirmations()
}

// HandleMoneyTransfer folds a transfer event into the wallet. A payload
// without transfer info is dropped silently; a transfer replayed for a
// known transaction only refreshes the contract timing fields and
// short-circuits.
func (e *Engine) HandleMoneyTransfer(ev backend.MoneyTransferEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.TI == nil {
		e.log.Debugf("money_transfer without transfer info dropped")
		return
	}

	w, ok := e.wallets.Get(ev.WalletID)
	if !ok {
		e.log.Debugf("money_transfer for unknown wallet %d dropped", ev.WalletID)
		return
	}

	w.SetBalances(ev.Balances)

	known := w.HasTransfer(ev.TI.TxHash)
	w.RecordTransfer(wallet.Transfer{
		TxHash:    ev.TI.TxHash,
		TxType:    ev.TI.TxType,
		Amount:    ev.TI.Amount,
		Height:    ev.TI.Height,
		Timestamp: ev.TI.Timestamp,
	})

	if len(ev.TI.Contracts) == 0 {
		return
	}
	// the daemon sends the contract as an array but only the first
	// element is meaningful
	in := ev.TI.Contracts[0]
	if in.ContractID == "" {
		e.log.Warnf("money_transfer %s carries contract without id, dropped", ev.TI.TxHash)
		return
	}

	if known {
		if w.MergeTransferTimes(in) {
			w.RecountNewContracts()
		}
		return
	}

	res := contracts.ResolveDisplayState(in, e.session.Env(), e.ledger)
	contracts.ApplyEffects(e.ledger, res.Effects)

	in.State = res.State
	in.IsNew = contracts.IsNew(e.ledger, in.Key(), res)

	w.UpsertContract(in)
	w.RecountNewContracts()

	e.log.Debugf("wallet %d contract %s -> %s (new=%t)", ev.WalletID, in.Key(), res.State, in.IsNew)
}

// HandleMoneyTransferCancel marks a pending proposal as cancelled by the
// counterparty. State 140 is terminal, no automatic rule touches it again.
func (e *Engine) HandleMoneyTransferCancel(ev backend.MoneyTransferCancelEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.TI == nil {
		return
	}

	w, ok := e.wallets.Get(ev.WalletID)
	if !ok {
		return
	}

	if len(ev.TI.Contracts) > 0 {
		key := ev.TI.Contracts[0].Key()
		_, changed := w.UpdateContract(key, func(c *contracts.Contract) bool {
			if c.State != contracts.StateProposed && c.State != contracts.StateProposalExpired {
				return false
			}
			c.IsNew = true
			c.State = contracts.StateCancelledByPeer
			return true
		})
		if changed {
			w.RecountNewContracts()
		}
	}

	w.RemoveTransfer(ev.TI.TxHash)
}

// TickConfirmations settles the pending states once enough blocks have
// been mined on top of the contract transaction. Safe to re-run at any
// time, contracts already settled are skipped.
func (e *Engine) TickConfirmations() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sweepConfirmations()
}

func (e *Engine) sweepConfirmations() {
	heightApp := e.session.HeightApp()

	e.wallets.Range(func(w *wallet.Wallet) bool {
		changed := w.SweepContracts(func(c *contracts.Contract) bool {
			if c.Height == 0 || heightApp < c.Height || heightApp-c.Height < contracts.ConfirmationThreshold {
				return false
			}
			switch c.State {
			case contracts.StateAcceptedPending:
				c.State = contracts.StateAccepted
			case contracts.StateFinishedPending:
				c.State = contracts.StateFinished
			default:
				return false
			}
			c.IsNew = true
			return true
		})
		if changed {
			w.RecountNewContracts()
		}
		return true
	})
}

func (e *Engine) sweepExpirations(threshold int64) {
	e.wallets.Range(func(w *wallet.Wallet) bool {
		changed := w.SweepContracts(func(c *contracts.Contract) bool {
			switch {
			case c.State == contracts.StateProposed && c.ExpirationTime <= threshold:
				c.State = contracts.StateProposalExpired
			case c.State == contracts.StateCancelRequested && c.CancelExpirationTime <= threshold:
				c.State = contracts.StateCancelExpired
			default:
				return false
			}
			c.IsNew = true
			return true
		})
		if changed {
			w.RecountNewContracts()
		}
		return true
	})
}
