package backend

import "context"

// Release types accepted by releaseProposal.
const (
	ReleaseNormal = "REL_N"
	ReleaseBurn   = "REL_B"
)

type CreateProposalParams struct {
	WalletID              int64  `json:"wallet_id"`
	Description           string `json:"description"`
	Comment               string `json:"comment"`
	BuyerAddress          string `json:"buyer_address"`
	SellerAddress         string `json:"seller_address"`
	Amount                uint64 `json:"amount"`
	BuyerDeposit          uint64 `json:"a_pledge"`
	SellerDeposit         uint64 `json:"b_pledge"`
	ExpirationPeriodHours int    `json:"expiration_period"`
	PaymentID             string `json:"payment_id"`
}

type contractRef struct {
	WalletID   int64  `json:"wallet_id"`
	ContractID string `json:"contract_id"`
}

func (r *Relay) CreateProposal(ctx context.Context, p CreateProposalParams) (bool, error) {
	return r.Call(ctx, "createProposal", p)
}

func (r *Relay) AcceptProposal(ctx context.Context, walletID int64, contractID string) (bool, error) {
	return r.Call(ctx, "acceptProposal", contractRef{WalletID: walletID, ContractID: contractID})
}

func (r *Relay) ReleaseProposal(ctx context.Context, walletID int64, contractID string, releaseType string) (bool, error) {
	return r.Call(ctx, "releaseProposal", struct {
		contractRef
		ReleaseType string `json:"release_type"`
	}{contractRef{walletID, contractID}, releaseType})
}

func (r *Relay) RequestCancelContract(ctx context.Context, walletID int64, contractID string, expirationPeriodHours int) (bool, error) {
	return r.Call(ctx, "requestCancelContract", struct {
		contractRef
		ExpirationPeriodHours int `json:"expiration_period"`
	}{contractRef{walletID, contractID}, expirationPeriodHours})
}

func (r *Relay) AcceptCancelContract(ctx context.Context, walletID int64, contractID string) (bool, error) {
	return r.Call(ctx, "acceptCancelContract", contractRef{WalletID: walletID, ContractID: contractID})
}
