package contracts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerDuplicatesKeepLast(t *testing.T) {
	viewed := []Mark{
		{ContractID: "abc", IsA: true, State: StateAccepted},
		{ContractID: "abc", IsA: true, State: StateAcceptedHighlighted},
	}
	ledger := NewLedger(viewed, nil)

	require.False(t, ledger.HasViewed(Key{ContractID: "abc", IsA: true}, StateAccepted))
	require.True(t, ledger.HasViewed(Key{ContractID: "abc", IsA: true}, StateAcceptedHighlighted))
}

func TestLedgerUpsertReplacesInPlace(t *testing.T) {
	ledger := NewLedger(nil, nil)
	key := Key{ContractID: "abc", IsA: true}

	ledger.UpsertNotViewed(Mark{ContractID: "abc", IsA: true, State: StateProposalExpired, Time: 100})
	ledger.UpsertNotViewed(Mark{ContractID: "abc", IsA: true, State: StateProposalExpired, Time: 200})

	mark, ok := ledger.FindNotViewed(key, StateProposalExpired)
	require.True(t, ok)
	require.Equal(t, int64(200), mark.Time)

	_, notViewed := ledger.Snapshot()
	require.Len(t, notViewed, 1)
}

func TestLedgerFindRequiresStateMatch(t *testing.T) {
	ledger := NewLedger(nil, []Mark{{ContractID: "abc", State: StateProposalExpired, Time: 100}})

	_, ok := ledger.FindNotViewed(Key{ContractID: "abc"}, StateCancelExpired)
	require.False(t, ok)
}

func TestLedgerRemove(t *testing.T) {
	key := Key{ContractID: "abc", IsA: true}
	ledger := NewLedger(
		[]Mark{{ContractID: "abc", IsA: true, State: StateAccepted}},
		[]Mark{{ContractID: "abc", IsA: true, State: StateProposalExpired}},
	)

	ledger.RemoveNotViewed(key)
	ledger.RemoveViewed(key)

	require.False(t, ledger.HasViewed(key, StateAccepted))
	_, ok := ledger.FindNotViewed(key, StateProposalExpired)
	require.False(t, ok)
}

func TestLedgerSnapshotRoundTrip(t *testing.T) {
	ledger := NewLedger(nil, nil)
	ledger.UpsertViewed(Mark{ContractID: "abc", IsA: true, State: StateAccepted})
	ledger.UpsertNotViewed(Mark{ContractID: "def", State: StateProposalExpired, Time: 1000})

	viewed, notViewed := ledger.Snapshot()
	restored := NewLedger(viewed, notViewed)

	require.True(t, restored.HasViewed(Key{ContractID: "abc", IsA: true}, StateAccepted))
	mark, ok := restored.FindNotViewed(Key{ContractID: "def"}, StateProposalExpired)
	require.True(t, ok)
	require.Equal(t, int64(1000), mark.Time)
}

func TestLedgerOnChange(t *testing.T) {
	ledger := NewLedger(nil, nil)
	calls := 0
	ledger.OnChange(func() { calls++ })

	ledger.UpsertViewed(Mark{ContractID: "abc", State: StateAccepted})
	ledger.UpsertNotViewed(Mark{ContractID: "abc", State: StateProposalExpired})
	ledger.RemoveViewed(Key{ContractID: "abc"})
	// removing a missing key is not a mutation
	ledger.RemoveViewed(Key{ContractID: "missing"})

	require.Equal(t, 3, calls)
}
