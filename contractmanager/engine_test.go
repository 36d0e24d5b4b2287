package contractmanager

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/zanolabs/escrowd/backend"
	"gitlab.com/zanolabs/escrowd/contracts"
	"gitlab.com/zanolabs/escrowd/lib"
	"gitlab.com/zanolabs/escrowd/session"
	"gitlab.com/zanolabs/escrowd/wallet"
)

type stubEvents struct{}

func (stubEvents) EventSubscribe(event string) <-chan json.RawMessage {
	return make(chan json.RawMessage)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(
		wallet.NewRegistry(),
		session.New(),
		contracts.NewLedger(nil, nil),
		stubEvents{},
		30*time.Second,
		&lib.LoggerMock{},
	)
}

func registerWallet(e *Engine, walletID int64) {
	e.HandleWalletStatus(backend.WalletStatusEvent{WalletID: walletID, State: backend.WalletStateReady})
}

func transferEvent(walletID int64, txHash string, c contracts.Contract) backend.MoneyTransferEvent {
	return backend.MoneyTransferEvent{
		WalletID: walletID,
		TI: &backend.TransferInfo{
			TxHash:    txHash,
			Contracts: []contracts.Contract{c},
		},
	}
}

func TestExpiredProposalDisplayedExpired(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)

	// median 400 -> threshold 400 + 601 = 1001
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 400})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID:     "abc",
		IsA:            true,
		State:          contracts.StateProposed,
		ExpirationTime: 1000,
	}))

	w, _ := e.Wallets().Get(1)
	c, ok := w.GetContract("abc")
	require.True(t, ok)
	require.Equal(t, contracts.StateProposalExpired, c.State)
	require.True(t, c.IsNew)
	require.Equal(t, 1, w.NewContractsCount())
}

func TestIgnoredExpiryNotAnnouncedAgain(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 400})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID:     "abc",
		IsA:            true,
		State:          contracts.StateProposed,
		ExpirationTime: 1000,
	}))

	require.NoError(t, e.IgnoreExpiredProposal(1, "abc"))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateProposalExpired, c.State)
	require.True(t, c.IsNew)

	// the daemon later replays the proposal under a fresh transaction,
	// still with the dismissed expiration time
	e.HandleMoneyTransfer(transferEvent(1, "tx-2", contracts.Contract{
		ContractID:     "abc",
		IsA:            true,
		State:          contracts.StateProposed,
		ExpirationTime: 1000,
	}))

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateProposalExpired, c.State)
	require.False(t, c.IsNew)
	require.Equal(t, 0, w.NewContractsCount())
}

func TestIgnoredExpirySurvivesRestart(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 400})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc", IsA: true, State: contracts.StateProposed, ExpirationTime: 1000,
	}))
	require.NoError(t, e.IgnoreExpiredProposal(1, "abc"))

	// new process restores the ledger from the persisted snapshot
	viewed, notViewed := e.ledger.Snapshot()
	e2 := NewEngine(
		wallet.NewRegistry(),
		session.New(),
		contracts.NewLedger(viewed, notViewed),
		stubEvents{},
		30*time.Second,
		&lib.LoggerMock{},
	)
	registerWallet(e2, 1)
	e2.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 200})

	e2.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc", IsA: true, State: contracts.StateProposed, ExpirationTime: 1000,
	}))

	w, _ := e2.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateProposalExpired, c.State)
	require.False(t, c.IsNew)
}

func TestAcceptedContractConfirms(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc",
		State:      contracts.StateAccepted,
		Height:     0,
	}))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateAcceptedPending, c.State)

	// mined, then ten blocks on top
	_, _ = w.UpdateContractByID("abc", func(c *contracts.Contract) bool {
		c.Height = 100
		return true
	})
	e.HandleDaemonState(backend.DaemonStateEvent{Height: 110})

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateAccepted, c.State)
	require.True(t, c.IsNew)
}

func TestConfirmationTickIdempotent(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)
	e.HandleDaemonState(backend.DaemonStateEvent{Height: 110})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc",
		State:      contracts.StateFinished,
		Height:     100,
	}))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateFinished, c.State)

	// settle the unseen flag, then re-run the sweep
	require.NoError(t, e.Acknowledge(1, "abc"))
	e.TickConfirmations()
	e.TickConfirmations()

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateFinished, c.State)
	require.False(t, c.IsNew)
	require.Equal(t, 0, w.NewContractsCount())
}

func TestCancelledByPeerIsTerminal(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 400})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID:     "abc",
		IsA:            true,
		State:          contracts.StateProposed,
		ExpirationTime: 1000,
	}))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateProposalExpired, c.State)

	e.HandleMoneyTransferCancel(backend.MoneyTransferCancelEvent{
		WalletID: 1,
		TI: &backend.TransferInfo{
			TxHash:    "tx-1",
			Contracts: []contracts.Contract{{ContractID: "abc", IsA: true}},
		},
	})

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateCancelledByPeer, c.State)
	require.True(t, c.IsNew)
	require.False(t, w.HasTransfer("tx-1"))

	// no automatic rule moves a cancelled contract again
	e.TickConfirmations()
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 9999, Height: 9999})

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateCancelledByPeer, c.State)
}

func TestOutOfOrderEventsLastWriteWins(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)

	e.HandleMoneyTransfer(transferEvent(1, "tx-2", contracts.Contract{
		ContractID: "abc", State: contracts.StateAccepted, Height: 200, Timestamp: 2000,
	}))
	// the older event arrives second and wins
	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc", State: contracts.StateAccepted, Height: 100, Timestamp: 1000,
	}))

	w, _ := e.Wallets().Get(1)
	require.Len(t, w.ContractsSnapshot(), 1)
	c, _ := w.GetContract("abc")
	require.Equal(t, uint64(100), c.Height)
	require.Equal(t, int64(1000), c.Timestamp)
}

func TestReplayedTransferOnlyRefreshesTimes(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 400})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc", IsA: true, State: contracts.StateProposed, ExpirationTime: 1000,
	}))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateProposalExpired, c.State)

	// same tx hash replayed with a different reported state
	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc", IsA: true, State: contracts.StateProposed, ExpirationTime: 1000, Height: 50,
	}))

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateProposalExpired, c.State)
	require.Equal(t, uint64(50), c.Height)
}

func TestTransferWithoutInfoDropped(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)

	e.HandleMoneyTransfer(backend.MoneyTransferEvent{WalletID: 1})
	e.HandleMoneyTransfer(transferEvent(2, "tx-1", contracts.Contract{ContractID: "abc"}))

	w, _ := e.Wallets().Get(1)
	require.Empty(t, w.ContractsSnapshot())
	require.Equal(t, 1, e.Wallets().Len())
}

func TestCancelRequestExpiresOnSweep(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID:           "abc",
		State:                contracts.StateCancelRequested,
		CancelExpirationTime: 500,
	}))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateCancelRequested, c.State)

	// threshold reaches the cancel expiry
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 500 - 601})

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateCancelExpired, c.State)
	require.True(t, c.IsNew)
}

func TestAcknowledgeHighlightsAcceptedForSideA(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)
	e.HandleDaemonState(backend.DaemonStateEvent{Height: 200})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID: "abc", IsA: true, State: contracts.StateAccepted, Height: 100,
	}))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateAccepted, c.State)
	require.True(t, c.IsNew)

	require.NoError(t, e.Acknowledge(1, "abc"))

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateAcceptedHighlighted, c.State)
	require.False(t, c.IsNew)
	require.Equal(t, 0, w.NewContractsCount())

	// the highlight survives the next daemon update
	e.HandleMoneyTransfer(transferEvent(1, "tx-2", contracts.Contract{
		ContractID: "abc", IsA: true, State: contracts.StateAccepted, Height: 100,
	}))
	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateAcceptedHighlighted, c.State)
	require.False(t, c.IsNew)
}

func TestAcknowledgeUnknownTargets(t *testing.T) {
	e := newTestEngine(t)

	require.ErrorIs(t, e.Acknowledge(1, "abc"), ErrWalletNotFound)

	registerWallet(e, 1)
	require.ErrorIs(t, e.Acknowledge(1, "abc"), ErrContractNotFound)
}

func TestDeclineCancelRequestDismisses(t *testing.T) {
	e := newTestEngine(t)
	registerWallet(e, 1)
	e.HandleDaemonState(backend.DaemonStateEvent{ExpirationMedianTimestamp: 400})

	e.HandleMoneyTransfer(transferEvent(1, "tx-1", contracts.Contract{
		ContractID:           "abc",
		State:                contracts.StateCancelRequested,
		CancelExpirationTime: 800,
	}))

	require.NoError(t, e.DeclineCancelRequest(1, "abc"))

	w, _ := e.Wallets().Get(1)
	c, _ := w.GetContract("abc")
	require.Equal(t, contracts.StateCancelExpired, c.State)
	require.True(t, c.IsNew)

	// replay under a fresh transaction is suppressed
	e.HandleMoneyTransfer(transferEvent(1, "tx-2", contracts.Contract{
		ContractID:           "abc",
		State:                contracts.StateCancelRequested,
		CancelExpirationTime: 800,
	}))

	c, _ = w.GetContract("abc")
	require.Equal(t, contracts.StateCancelExpired, c.State)
	require.False(t, c.IsNew)
}

func TestSyncProgressForUnknownWalletDropped(t *testing.T) {
	e := newTestEngine(t)

	e.HandleSyncProgress(backend.SyncProgressEvent{WalletID: 5, Progress: 50})
	require.Equal(t, 0, e.Wallets().Len())

	registerWallet(e, 5)
	e.HandleSyncProgress(backend.SyncProgressEvent{WalletID: 5, Progress: 50})
	w, _ := e.Wallets().Get(5)
	require.Equal(t, float64(50), w.Progress())
}
