package changereq

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemTransitions(t *testing.T) {
	cases := []struct {
		from, to ItemStatus
		ok       bool
	}{
		{ItemPending, ItemApproved, true},
		{ItemPending, ItemRejected, true},
		{ItemPending, ItemNeedsInfo, true},
		{ItemApproved, ItemPending, true},
		{ItemRejected, ItemPending, true},
		{ItemNeedsInfo, ItemPending, true},
		{ItemApproved, ItemRejected, false},
		{ItemRejected, ItemNeedsInfo, false},
		{ItemPending, ItemPending, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, CanItemTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestRequestTransitions(t *testing.T) {
	require.True(t, CanRequestTransition(StatusDraft, StatusPending))
	require.True(t, CanRequestTransition(StatusPending, StatusApproved))
	require.True(t, CanRequestTransition(StatusPending, StatusRejected))
	require.True(t, CanRequestTransition(StatusPending, StatusNeedsInfo))
	require.True(t, CanRequestTransition(StatusNeedsInfo, StatusPending))

	// A parked request cannot be decided until it is resubmitted.
	require.False(t, CanRequestTransition(StatusNeedsInfo, StatusApproved))
	require.False(t, CanRequestTransition(StatusNeedsInfo, StatusRejected))

	// Approved and rejected are terminal.
	require.False(t, CanRequestTransition(StatusApproved, StatusPending))
	require.False(t, CanRequestTransition(StatusRejected, StatusPending))
	require.False(t, CanRequestTransition(StatusDraft, StatusApproved))
}

// The aggregate rule: a request may become approved iff every item is
// approved, checked over randomized item-status multisets.
func TestDecideApprovalOverRandomizedStatuses(t *testing.T) {
	statuses := []ItemStatus{ItemPending, ItemApproved, ItemRejected, ItemNeedsInfo}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := rng.Intn(8)
		items := make([]ItemStatus, n)
		allApproved := true
		for j := range items {
			items[j] = statuses[rng.Intn(len(statuses))]
			if items[j] != ItemApproved {
				allApproved = false
			}
		}

		err := Decide(StatusPending, StatusApproved, items, "")
		if allApproved {
			require.NoError(t, err, "items %v", items)
		} else {
			var incomplete *AggregateIncompleteError
			require.ErrorAs(t, err, &incomplete, "items %v", items)
		}
	}
}

func TestDecideEmptyItemSetApproves(t *testing.T) {
	require.NoError(t, Decide(StatusPending, StatusApproved, nil, ""))
}

func TestDecideNeedsInfoRequiresComment(t *testing.T) {
	items := []ItemStatus{ItemPending}
	var verr *ValidationError
	require.ErrorAs(t, Decide(StatusPending, StatusNeedsInfo, items, ""), &verr)
	require.NoError(t, Decide(StatusPending, StatusNeedsInfo, items, "please attach proof"))
}

func TestDecideRejectAllowedWithUnresolvedItems(t *testing.T) {
	items := []ItemStatus{ItemPending, ItemApproved, ItemNeedsInfo}
	require.NoError(t, Decide(StatusPending, StatusRejected, items, "not acceptable"))
}

func TestDecideRejectsIllegalLifecycleMove(t *testing.T) {
	var verr *ValidationError
	require.ErrorAs(t, Decide(StatusApproved, StatusPending, nil, ""), &verr)
	require.ErrorAs(t, Decide(StatusDraft, StatusApproved, nil, ""), &verr)
}

func TestDecideParkedRequestNeedsResubmissionFirst(t *testing.T) {
	items := []ItemStatus{ItemApproved}
	var verr *ValidationError
	require.ErrorAs(t, Decide(StatusNeedsInfo, StatusApproved, items, ""), &verr)
	require.ErrorAs(t, Decide(StatusNeedsInfo, StatusRejected, items, "still incomplete"), &verr)
}
