package contracts

import "strconv"

// State is the user-facing lifecycle state of an escrow contract.
//
// The numeric values are shared with the wallet daemon and with the marks
// persisted in the settings storage, so they must never be renumbered.
// Values below 100 come straight from the daemon, the 1xx/2xx/6xx values
// are display states derived by the reconciliation engine.
type State uint16

const (
	StateProposed        State = 1 // proposal sent, awaiting the counterparty
	StateAccepted        State = 2 // deposits made, contract is active
	StateReleasedNormal  State = 3 // terminal, released normally (REL_N)
	StateReleasedBurn    State = 4 // terminal, deposits burned (REL_B)
	StateCancelRequested State = 5 // cancellation proposed, awaiting the counterparty
	StateFinished        State = 6 // released, funds distributed

	StateProposalExpired     State = 110 // proposal expired before acceptance
	StateAcceptedHighlighted State = 120 // accepted and already opened by the user
	StateCancelExpired       State = 130 // cancellation request expired
	StateCancelledByPeer     State = 140 // terminal, cancelled by the counterparty

	StateAcceptedPending State = 201 // accepted, mined below the confirmation threshold
	StateFinishedPending State = 601 // finished, mined below the confirmation threshold
)

// ConfirmationThreshold is the number of confirmations a contract transaction
// needs before the pending states 201/601 settle into 2/6. Below it the
// transaction is considered vulnerable to short reorganizations.
const ConfirmationThreshold = 10

func (s State) String() string {
	switch s {
	case StateProposed:
		return "proposed"
	case StateAccepted:
		return "accepted"
	case StateReleasedNormal:
		return "released"
	case StateReleasedBurn:
		return "burned"
	case StateCancelRequested:
		return "cancel-requested"
	case StateFinished:
		return "finished"
	case StateProposalExpired:
		return "proposal-expired"
	case StateAcceptedHighlighted:
		return "accepted-highlighted"
	case StateCancelExpired:
		return "cancel-expired"
	case StateCancelledByPeer:
		return "cancelled-by-peer"
	case StateAcceptedPending:
		return "accepted-pending"
	case StateFinishedPending:
		return "finished-pending"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}
