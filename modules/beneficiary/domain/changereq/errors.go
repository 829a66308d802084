package changereq

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrNotFound     = errors.New("change request not found")
	ErrItemNotFound = errors.New("change item not found")
	// ErrDuplicatePending signals the single-pending-request invariant: at
	// most one request per beneficiary may be pending or needs_info.
	ErrDuplicatePending = errors.New("an unresolved change request already exists for this beneficiary")
	// ErrSubmissionConflict signals that a concurrent save claimed the same
	// submission number; the caller retries with a fresh one.
	ErrSubmissionConflict = errors.New("a concurrent submission claimed the same submission number")
)

// ValidationError rejects a submission or review action before anything is
// persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// VersionConflictError reports that the canonical record changed between
// snapshot and approval. The request auto-transitions to needs_info; nothing
// is overwritten.
type VersionConflictError struct {
	SnapshotVersion int64
	CurrentVersion  int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf(
		"beneficiary changed since the snapshot was taken (version %d, now %d)",
		e.SnapshotVersion, e.CurrentVersion,
	)
}

// AggregateIncompleteError refuses request approval while items are not
// unanimously approved.
type AggregateIncompleteError struct {
	Remaining int
	Rejected  int
}

func (e *AggregateIncompleteError) Error() string {
	if e.Rejected > 0 {
		return fmt.Sprintf("cannot approve: %d item(s) unresolved, %d rejected", e.Remaining, e.Rejected)
	}
	return fmt.Sprintf("cannot approve: %d item(s) still unresolved", e.Remaining)
}

// MergeFailureError wraps an unexpected persistence error during apply. The
// request keeps its prior state and the failure is audited; callers may
// retry.
type MergeFailureError struct {
	Err error
}

func (e *MergeFailureError) Error() string {
	return "merge failed: " + e.Err.Error()
}

func (e *MergeFailureError) Unwrap() error {
	return e.Err
}
