package backend

import (
	"encoding/json"

	"gitlab.com/zanolabs/escrowd/contracts"
)

// Event names pushed by the wallet daemon.
const (
	EventUpdateWalletStatus  = "update_wallet_status"
	EventWalletSyncProgress  = "wallet_sync_progress"
	EventUpdateDaemonState   = "update_daemon_state"
	EventMoneyTransfer       = "money_transfer"
	EventMoneyTransferCancel = "money_transfer_cancel"
)

// Wallet states reported in update_wallet_status.
const (
	WalletStateSynchronizing = 1
	WalletStateReady         = 2
	WalletStateError         = 3
)

type WalletStatusEvent struct {
	WalletID int64           `json:"wallet_id"`
	State    int             `json:"wallet_state"`
	IsMining bool            `json:"is_mining"`
	Balances json.RawMessage `json:"balances"`
	// the daemon really spells it this way
	MinedTotal               uint64 `json:"minied_total"`
	AliasOperationsAvailable bool   `json:"is_alias_operations_available"`
}

type SyncProgressEvent struct {
	WalletID int64   `json:"wallet_id"`
	Progress float64 `json:"progress"`
}

type DaemonStateEvent struct {
	Height                     uint64 `json:"height"`
	MaxNetSeenHeight           uint64 `json:"max_net_seen_height"`
	ExpirationMedianTimestamp  int64  `json:"expiration_median_timestamp"`
	DaemonNetworkState         int64  `json:"daemon_network_state"`
	SynchronizationStartHeight uint64 `json:"synchronization_start_height"`
}

// TransferInfo describes a single wallet transaction. A transfer that moves
// an escrow contract carries the contract payload; the daemon sends the
// contract as an array but never more than one element is used.
type TransferInfo struct {
	TxHash    string               `json:"tx_hash"`
	TxType    int                  `json:"tx_type"`
	Amount    uint64               `json:"amount"`
	Height    uint64               `json:"height"`
	Timestamp int64                `json:"timestamp"`
	Contracts []contracts.Contract `json:"contract"`
}

type MoneyTransferEvent struct {
	WalletID int64           `json:"wallet_id"`
	Balances json.RawMessage `json:"balances"`
	TI       *TransferInfo   `json:"ti"`
}

type MoneyTransferCancelEvent struct {
	WalletID int64         `json:"wallet_id"`
	TI       *TransferInfo `json:"ti"`
}
