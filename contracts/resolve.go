package contracts

// Env is the process-wide input of a transition: the effective expiration
// threshold (median timestamp plus grace) and the wallet's view of the
// blockchain height.
type Env struct {
	ExpirationThreshold int64
	HeightApp           uint64
}

// EffectKind enumerates the ledger side effects a transition may request.
type EffectKind uint8

const (
	// EffectRemoveMarks drops stale viewed/not-viewed marks for the
	// contract so a fresh notification can surface for a new expiry.
	EffectRemoveMarks EffectKind = iota + 1
)

type Effect struct {
	Kind EffectKind
	Key  Key
}

// Resolution is the outcome of a transition: the state shown to the user,
// whether the user has already dismissed exactly this transition (which
// suppresses the unseen flag), and the ledger mutations to apply.
type Resolution struct {
	State     State
	Dismissed bool
	Effects   []Effect
}

// ResolveDisplayState maps a daemon-reported contract payload to the state
// shown to the user, consulting the ledger for "already seen" expiries. It
// is a pure function of its inputs: requested ledger mutations are returned
// as effects and applied by the caller.
//
// The rule order mirrors the daemon contract lifecycle and is significant:
// expiry beats the seen-checks, the seen-checks beat confirmation counting.
// Re-applying the function to a payload already carrying the resulting
// display state yields the same state again, so replays are no-ops.
func ResolveDisplayState(in Contract, env Env, ledger *Ledger) Resolution {
	key := in.Key()

	switch {
	case in.State == StateProposed && in.ExpirationTime < env.ExpirationThreshold:
		return Resolution{State: StateProposalExpired, Dismissed: dismissed(ledger, key, StateProposalExpired, in.ExpirationTime)}

	case in.State == StateCancelRequested && in.CancelExpirationTime < env.ExpirationThreshold:
		return Resolution{State: StateCancelExpired, Dismissed: dismissed(ledger, key, StateCancelExpired, in.CancelExpirationTime)}

	case in.State == StateProposed:
		if mark, ok := ledger.FindNotViewed(key, StateProposalExpired); ok {
			if mark.Time == in.ExpirationTime {
				// the user already dismissed this exact expiry
				return Resolution{State: StateProposalExpired, Dismissed: true}
			}
			return Resolution{State: in.State, Effects: []Effect{{Kind: EffectRemoveMarks, Key: key}}}
		}
		return Resolution{State: in.State}

	case in.State == StateAccepted && belowThreshold(in.Height, env.HeightApp):
		return Resolution{State: StateAcceptedPending}

	case in.State == StateAccepted:
		if ledger.HasViewed(key, StateAcceptedHighlighted) {
			return Resolution{State: StateAcceptedHighlighted}
		}
		return Resolution{State: in.State}

	case in.State == StateCancelRequested:
		if mark, ok := ledger.FindNotViewed(key, StateCancelExpired); ok {
			if mark.Time == in.CancelExpirationTime {
				return Resolution{State: StateCancelExpired, Dismissed: true}
			}
			return Resolution{State: in.State, Effects: []Effect{{Kind: EffectRemoveMarks, Key: key}}}
		}
		return Resolution{State: in.State}

	case in.State == StateFinished && belowThreshold(in.Height, env.HeightApp):
		return Resolution{State: StateFinishedPending}
	}

	return Resolution{State: in.State}
}

// IsNew reports whether the resolved state should be flagged as an unseen
// notification: true unless the user dismissed this exact transition or the
// viewed ledger holds exactly this state.
func IsNew(ledger *Ledger, key Key, res Resolution) bool {
	if res.Dismissed {
		return false
	}
	return !ledger.HasViewed(key, res.State)
}

// ApplyEffects executes the requested ledger mutations.
func ApplyEffects(ledger *Ledger, effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffectRemoveMarks:
			ledger.RemoveNotViewed(e.Key)
			ledger.RemoveViewed(e.Key)
		}
	}
}

// dismissed reports whether the user already dismissed this exact expiry:
// a not-viewed mark with the same state and timestamp.
func dismissed(ledger *Ledger, key Key, state State, time int64) bool {
	mark, ok := ledger.FindNotViewed(key, state)
	return ok && mark.Time == time
}

func belowThreshold(height, heightApp uint64) bool {
	return height == 0 || heightApp < height || heightApp-height < ConfirmationThreshold
}
