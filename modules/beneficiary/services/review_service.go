package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/permissions"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/eventbus"
)

// ReviewService handles the reviewer side: the queue, item-level decisions
// and the final request decision including the merge.
type ReviewService struct {
	requests      changereq.Repository
	audit         changereq.AuditRepository
	beneficiaries beneficiary.Repository
	merge         *mergeEngine
	tx            composables.Transactor
	publisher     eventbus.EventBus
}

func NewReviewService(
	requests changereq.Repository,
	audit changereq.AuditRepository,
	beneficiaries beneficiary.Repository,
	sensitiveData sensitive.Service,
	tx composables.Transactor,
	publisher eventbus.EventBus,
) *ReviewService {
	return &ReviewService{
		requests:      requests,
		audit:         audit,
		beneficiaries: beneficiaries,
		merge:         &mergeEngine{repo: beneficiaries, sensitive: sensitiveData},
		tx:            tx,
		publisher:     publisher,
	}
}

// Queue lists requests awaiting a reviewer.
func (s *ReviewService) Queue(ctx context.Context, limit, offset int) ([]*changereq.ChangeRequest, int64, error) {
	if err := composables.CanUser(ctx, permissions.ReviewProfileUpdate); err != nil {
		return nil, 0, err
	}
	return s.requests.List(ctx, &changereq.FindParams{
		Status: changereq.StatusPending,
		Limit:  limit,
		Offset: offset,
	})
}

// Get returns a request with full item detail for review.
func (s *ReviewService) Get(ctx context.Context, id uuid.UUID) (*changereq.ChangeRequest, error) {
	if err := composables.CanUser(ctx, permissions.ReviewProfileUpdate); err != nil {
		return nil, err
	}
	return s.requests.GetByID(ctx, id)
}

// Audit returns the append-only trail of a request, oldest first.
func (s *ReviewService) Audit(ctx context.Context, requestID uuid.UUID) ([]*changereq.AuditEntry, error) {
	if err := composables.CanUser(ctx, permissions.ReviewProfileUpdate); err != nil {
		return nil, err
	}
	return s.audit.ListByRequest(ctx, requestID)
}

// ReviewItem records one item-level decision. Decisions stay revisable
// until the request itself resolves: any decided item can be reset to
// pending and re-decided.
func (s *ReviewService) ReviewItem(ctx context.Context, requestID, itemID uuid.UUID, status changereq.ItemStatus, note string) (*changereq.ChangeItem, error) {
	if err := composables.CanUser(ctx, permissions.ReviewProfileUpdate); err != nil {
		return nil, err
	}
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}
	switch status {
	case changereq.ItemPending, changereq.ItemApproved, changereq.ItemRejected, changereq.ItemNeedsInfo:
	default:
		return nil, &changereq.ValidationError{Field: "status", Message: fmt.Sprintf("unknown item status %q", status)}
	}

	var reviewed *changereq.ChangeItem
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		cr, err := s.requests.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if !cr.Unresolved() {
			return &changereq.ValidationError{Field: "status", Message: fmt.Sprintf("a %s request is no longer reviewable", cr.Status)}
		}

		item, err := s.requests.GetItem(txCtx, requestID, itemID)
		if err != nil {
			return err
		}
		if !changereq.CanItemTransition(item.Status, status) {
			return &changereq.ValidationError{Field: "status", Message: fmt.Sprintf("item cannot move from %s to %s", item.Status, status)}
		}
		if status == changereq.ItemNeedsInfo && note == "" {
			return &changereq.ValidationError{Field: "note", Message: "a note is required to request more information"}
		}

		now := time.Now()
		item.Status = status
		item.ReviewNote = note
		if status == changereq.ItemPending {
			item.ReviewedBy = nil
			item.ReviewedAt = nil
		} else {
			item.ReviewedBy = &actor.ID
			item.ReviewedAt = &now
		}
		if err := s.requests.UpdateItem(txCtx, item); err != nil {
			return err
		}

		action := changereq.AuditItemReviewed
		if status == changereq.ItemPending {
			action = changereq.AuditItemReset
		}
		if err := s.appendAudit(txCtx, requestID, action, actor.ID, fmt.Sprintf("%s: %s", item.FieldKey, status)); err != nil {
			return err
		}
		reviewed = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(changereq.ItemReviewedEvent{
		RequestID: requestID,
		ItemID:    reviewed.ID,
		Status:    reviewed.Status,
		ActorID:   actor.ID,
	})
	return reviewed, nil
}

// ReviewRequest records the final decision on a request. Approval merges the
// approved items into the canonical rows in the same transaction; if the
// canonical record moved since the snapshot, the request auto-transitions to
// needs_info, nothing is overwritten and a VersionConflictError is returned.
func (s *ReviewService) ReviewRequest(ctx context.Context, requestID uuid.UUID, target changereq.RequestStatus, comment string) (*changereq.ChangeRequest, error) {
	if err := composables.CanUser(ctx, permissions.ApproveProfileUpdate); err != nil {
		return nil, err
	}
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}

	var (
		decided     *changereq.ChangeRequest
		newVersion  int64
		conflictErr error
	)
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		cr, err := s.requests.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if err := changereq.Decide(cr.Status, target, cr.ItemStatuses(), comment); err != nil {
			return err
		}

		if target == changereq.StatusApproved {
			version, err := s.merge.apply(txCtx, cr, actor.ID)
			if err != nil {
				var conflict *changereq.VersionConflictError
				if errors.As(err, &conflict) {
					// Commit the needs_info fallback; the conflict still
					// surfaces to the caller.
					conflictErr = conflict
					return s.conflictToNeedsInfo(txCtx, cr, actor.ID, conflict)
				}
				return err
			}
			newVersion = version
		}

		if remaining := changereq.Unresolved(cr.ItemStatuses()); target == changereq.StatusRejected && remaining > 0 {
			if err := s.requests.UpdateItemStatuses(
				txCtx, cr.ID,
				[]changereq.ItemStatus{changereq.ItemPending, changereq.ItemNeedsInfo},
				changereq.ItemRejected, actor.ID,
			); err != nil {
				return err
			}
			if err := s.appendAudit(txCtx, cr.ID, changereq.AuditItemsClosed, actor.ID, fmt.Sprintf("%d undecided items rejected with the request", remaining)); err != nil {
				return err
			}
		}

		if err := s.finishRequest(txCtx, cr, target, actor.ID, comment); err != nil {
			return err
		}
		if target == changereq.StatusApproved {
			if err := s.appendAudit(txCtx, cr.ID, changereq.AuditMerged, actor.ID, fmt.Sprintf("version %d", newVersion)); err != nil {
				return err
			}
		}
		decided = cr
		return nil
	})
	if err != nil {
		if target == changereq.StatusApproved && !isExpectedReviewError(err) {
			s.auditMergeFailure(ctx, requestID, actor.ID, err)
			return nil, &changereq.MergeFailureError{Err: err}
		}
		return nil, err
	}
	if conflictErr != nil {
		return nil, conflictErr
	}

	s.publisher.Publish(changereq.ReviewedEvent{
		RequestID:     decided.ID,
		BeneficiaryID: decided.BeneficiaryID,
		Status:        decided.Status,
		ActorID:       actor.ID,
	})
	if target == changereq.StatusApproved {
		s.publisher.Publish(changereq.MergedEvent{
			RequestID:     decided.ID,
			BeneficiaryID: decided.BeneficiaryID,
			NewVersion:    newVersion,
		})
	}
	return decided, nil
}

// finishRequest writes the decided header and the denormalized review state
// on the beneficiary row.
func (s *ReviewService) finishRequest(ctx context.Context, cr *changereq.ChangeRequest, target changereq.RequestStatus, actorID int64, comment string) error {
	now := time.Now()
	cr.Status = target
	cr.ReviewedAt = &now
	cr.ReviewedBy = &actorID
	cr.ReviewComment = comment
	if err := s.requests.Update(ctx, cr); err != nil {
		return err
	}
	if err := s.appendAudit(ctx, cr.ID, string(target), actorID, comment); err != nil {
		return err
	}

	id := cr.ID
	state := beneficiary.ReviewState{
		LastChangeRequestID: &id,
		LastRequestStatus:   string(target),
	}
	if target == changereq.StatusNeedsInfo {
		state.PendingReview = true
	} else {
		state.LastRequestReviewedAt = &now
	}
	return s.beneficiaries.SetReviewState(ctx, cr.BeneficiaryID, state)
}

// conflictToNeedsInfo parks a request whose snapshot went stale. Runs inside
// the approval transaction, which then commits.
func (s *ReviewService) conflictToNeedsInfo(ctx context.Context, cr *changereq.ChangeRequest, actorID int64, conflict *changereq.VersionConflictError) error {
	if err := s.finishRequest(ctx, cr, changereq.StatusNeedsInfo, actorID, conflict.Error()); err != nil {
		return err
	}
	return s.appendAudit(ctx, cr.ID, changereq.AuditMergeConflict, actorID, conflict.Error())
}

// auditMergeFailure records a merge failure outside the rolled-back
// transaction so the trail survives.
func (s *ReviewService) auditMergeFailure(ctx context.Context, requestID uuid.UUID, actorID int64, cause error) {
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.appendAudit(txCtx, requestID, changereq.AuditMergeFailed, actorID, cause.Error())
	})
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Error("failed to audit merge failure")
	}
}

func (s *ReviewService) appendAudit(ctx context.Context, requestID uuid.UUID, action string, actorID int64, notes string) error {
	return s.audit.Append(ctx, &changereq.AuditEntry{
		ChangeRequestID: requestID,
		Action:          action,
		ActorID:         actorID,
		Notes:           notes,
	})
}

// isExpectedReviewError distinguishes domain refusals from genuine merge
// failures so only the latter get wrapped and audited as such.
func isExpectedReviewError(err error) bool {
	var (
		verr  *changereq.ValidationError
		aerr  *changereq.AggregateIncompleteError
		vconf *changereq.VersionConflictError
	)
	return errors.Is(err, changereq.ErrNotFound) ||
		errors.As(err, &verr) ||
		errors.As(err, &aerr) ||
		errors.As(err, &vconf)
}
