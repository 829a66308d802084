package changereq

// ItemStatus is the review state of one change item. Items have no terminal
// state of their own: any status may be reset to pending until the parent
// request resolves.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemApproved  ItemStatus = "approved"
	ItemRejected  ItemStatus = "rejected"
	ItemNeedsInfo ItemStatus = "needs_info"
)

// RequestStatus is the lifecycle state of a change request.
type RequestStatus string

const (
	StatusDraft     RequestStatus = "draft"
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusNeedsInfo RequestStatus = "needs_info"
)

// UnresolvedStatuses are the request states that block a new submission for
// the same beneficiary.
var UnresolvedStatuses = []RequestStatus{StatusPending, StatusNeedsInfo}

func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanItemTransition reports whether an item may move between the two
// statuses: pending fans out to any decision, and any decision resets back
// to pending.
func CanItemTransition(from, to ItemStatus) bool {
	if from == to {
		return false
	}
	if to == ItemPending {
		return true
	}
	return from == ItemPending
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusDraft:     {StatusPending},
	StatusPending:   {StatusApproved, StatusRejected, StatusNeedsInfo},
	// A parked request only leaves needs_info through resubmission; the
	// reviewer decides it once it is pending again.
	StatusNeedsInfo: {StatusPending},
}

// CanRequestTransition reports whether the request lifecycle permits the
// move. Approved and rejected are terminal.
func CanRequestTransition(from, to RequestStatus) bool {
	for _, allowed := range requestTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Unresolved counts items that still await a decision.
func Unresolved(items []ItemStatus) int {
	n := 0
	for _, s := range items {
		if s == ItemPending || s == ItemNeedsInfo {
			n++
		}
	}
	return n
}

// AllApproved reports whether every item is approved. An empty item set
// trivially satisfies it.
func AllApproved(items []ItemStatus) bool {
	for _, s := range items {
		if s != ItemApproved {
			return false
		}
	}
	return true
}

// Decide is the single aggregate rule deriving whether a request may enter
// the target status given its items. Every mutation path goes through it;
// nothing else is allowed to set a request status.
//
//   - approved requires every item approved
//   - rejected is always permitted with a comment; the caller force-resolves
//     unresolved items to rejected
//   - needs_info requires a non-empty reviewer comment
func Decide(current, target RequestStatus, items []ItemStatus, comment string) error {
	if !CanRequestTransition(current, target) {
		return &ValidationError{Field: "status", Message: string(current) + " request cannot become " + string(target)}
	}
	switch target {
	case StatusApproved:
		if !AllApproved(items) {
			rejected := 0
			for _, s := range items {
				if s == ItemRejected {
					rejected++
				}
			}
			return &AggregateIncompleteError{Remaining: Unresolved(items), Rejected: rejected}
		}
	case StatusNeedsInfo:
		if comment == "" {
			return &ValidationError{Field: "comment", Message: "a comment is required to request more information"}
		}
	case StatusRejected:
		if comment == "" {
			return &ValidationError{Field: "comment", Message: "a comment is required to reject"}
		}
	}
	return nil
}
