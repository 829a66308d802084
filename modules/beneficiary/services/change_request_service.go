package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/wI2L/jsondiff"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/eventbus"
)

var ErrNotOwner = errors.New("change request does not belong to the caller")

// ChangeRequestService handles the submitter side of the portal: preview,
// submit, resubmit, draft management and listings.
type ChangeRequestService struct {
	requests      changereq.Repository
	audit         changereq.AuditRepository
	beneficiaries beneficiary.Repository
	snapshots     *SnapshotBuilder
	tx            composables.Transactor
	publisher     eventbus.EventBus
}

func NewChangeRequestService(
	requests changereq.Repository,
	audit changereq.AuditRepository,
	beneficiaries beneficiary.Repository,
	snapshots *SnapshotBuilder,
	tx composables.Transactor,
	publisher eventbus.EventBus,
) *ChangeRequestService {
	return &ChangeRequestService{
		requests:      requests,
		audit:         audit,
		beneficiaries: beneficiaries,
		snapshots:     snapshots,
		tx:            tx,
		publisher:     publisher,
	}
}

// Preview computes the diff a submission would produce without persisting
// anything.
func (s *ChangeRequestService) Preview(ctx context.Context, beneficiaryID int64, dto *SubmitDTO) (*changereq.Diff, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	before, err := s.snapshots.Build(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	return changereq.Compute(before, dto.Snapshot(beneficiaryID, before.Version)), nil
}

// Submit diffs the payload against a fresh snapshot and persists the change
// request with its items in one transaction. The single-pending invariant is
// enforced inside that same transaction by the repository.
func (s *ChangeRequestService) Submit(ctx context.Context, beneficiaryID int64, dto *SubmitDTO) (*changereq.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if !dto.Draft && !dto.UndertakingConfirmed {
		return nil, &changereq.ValidationError{Field: "undertaking_confirmed", Message: "the undertaking must be confirmed to submit"}
	}

	var created *changereq.ChangeRequest
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		before, err := s.snapshots.BuildLocked(txCtx, beneficiaryID)
		if err != nil {
			return err
		}
		after := dto.Snapshot(beneficiaryID, before.Version)

		diff := changereq.Compute(before, after)
		if diff.Empty() {
			return &changereq.ValidationError{Message: "the submission contains no changes"}
		}

		submissionNo, err := s.requests.NextSubmissionNo(txCtx, beneficiaryID)
		if err != nil {
			return err
		}

		now := time.Now()
		status := changereq.StatusPending
		auditAction := changereq.AuditSubmitted
		if dto.Draft {
			status = changereq.StatusDraft
			auditAction = changereq.AuditDraftSaved
		}

		cr := &changereq.ChangeRequest{
			ID:                   uuid.New(),
			BeneficiaryID:        beneficiaryID,
			UserID:               actor.ID,
			ReferenceNumber:      referenceNumber(now, beneficiaryID, submissionNo),
			SubmissionNo:         submissionNo,
			RevisionNo:           1,
			Status:               status,
			PayloadBefore:        *before,
			PayloadAfter:         *after,
			SummaryDiff:          diff.Summary(),
			AuditPatch:           auditPatch(before, after),
			UndertakingConfirmed: dto.UndertakingConfirmed,
			RequestedAt:          now,
		}
		cr.Items = changereq.BuildItems(cr.ID, diff)

		if err := s.requests.Create(txCtx, cr); err != nil {
			return err
		}
		if err := s.appendAudit(txCtx, cr.ID, auditAction, actor.ID, cr.ReferenceNumber); err != nil {
			return err
		}
		if !dto.Draft {
			if err := s.markPending(txCtx, cr); err != nil {
				return err
			}
		}
		created = cr
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created.Status == changereq.StatusPending {
		s.publisher.Publish(changereq.SubmittedEvent{
			RequestID:     created.ID,
			BeneficiaryID: created.BeneficiaryID,
			Summary:       created.SummaryDiff,
		})
	}
	return created, nil
}

// Resubmit amends a draft or needs_info request with a fresh payload. Items
// are replaced wholesale from a re-diff against the current canonical state.
func (s *ChangeRequestService) Resubmit(ctx context.Context, requestID uuid.UUID, dto *SubmitDTO) (*changereq.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if !dto.UndertakingConfirmed {
		return nil, &changereq.ValidationError{Field: "undertaking_confirmed", Message: "the undertaking must be confirmed to submit"}
	}

	var updated *changereq.ChangeRequest
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		cr, err := s.requests.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if cr.BeneficiaryID != actor.BeneficiaryID {
			return ErrNotOwner
		}
		if !changereq.CanRequestTransition(cr.Status, changereq.StatusPending) {
			return &changereq.ValidationError{
				Field:   "status",
				Message: fmt.Sprintf("a %s request cannot be resubmitted", cr.Status),
			}
		}

		before, err := s.snapshots.BuildLocked(txCtx, cr.BeneficiaryID)
		if err != nil {
			return err
		}
		after := dto.Snapshot(cr.BeneficiaryID, before.Version)

		diff := changereq.Compute(before, after)
		if diff.Empty() {
			return &changereq.ValidationError{Message: "the submission contains no changes"}
		}

		cr.Status = changereq.StatusPending
		cr.RevisionNo++
		cr.PayloadBefore = *before
		cr.PayloadAfter = *after
		cr.SummaryDiff = diff.Summary()
		cr.AuditPatch = auditPatch(before, after)
		cr.UndertakingConfirmed = dto.UndertakingConfirmed
		cr.RequestedAt = time.Now()
		cr.ReviewedAt = nil
		cr.ReviewedBy = nil
		cr.ReviewComment = ""
		cr.Items = changereq.BuildItems(cr.ID, diff)

		if err := s.requests.Update(txCtx, cr); err != nil {
			return err
		}
		if err := s.requests.ReplaceItems(txCtx, cr.ID, cr.Items); err != nil {
			return err
		}
		if err := s.appendAudit(txCtx, cr.ID, changereq.AuditResubmitted, actor.ID, fmt.Sprintf("revision %d", cr.RevisionNo)); err != nil {
			return err
		}
		if err := s.markPending(txCtx, cr); err != nil {
			return err
		}
		updated = cr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(changereq.SubmittedEvent{
		RequestID:     updated.ID,
		BeneficiaryID: updated.BeneficiaryID,
		Resubmission:  true,
		Summary:       updated.SummaryDiff,
	})
	return updated, nil
}

// ListOwn returns the caller's own requests, newest first.
func (s *ChangeRequestService) ListOwn(ctx context.Context, limit, offset int) ([]*changereq.ChangeRequest, int64, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.requests.List(ctx, &changereq.FindParams{
		BeneficiaryID: actor.BeneficiaryID,
		Limit:         limit,
		Offset:        offset,
	})
}

// GetOwn returns one of the caller's requests with its full item detail.
func (s *ChangeRequestService) GetOwn(ctx context.Context, id uuid.UUID) (*changereq.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}
	cr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.BeneficiaryID != actor.BeneficiaryID {
		return nil, ErrNotOwner
	}
	return cr, nil
}

// DiscardDraft deletes an unsubmitted draft. Drafts have no side effects,
// so the row and its items simply disappear.
func (s *ChangeRequestService) DiscardDraft(ctx context.Context, id uuid.UUID) error {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(txCtx context.Context) error {
		cr, err := s.requests.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if cr.BeneficiaryID != actor.BeneficiaryID {
			return ErrNotOwner
		}
		if cr.Status != changereq.StatusDraft {
			return &changereq.ValidationError{Field: "status", Message: "only draft requests can be discarded"}
		}
		return s.requests.Delete(txCtx, cr.ID)
	})
}

func (s *ChangeRequestService) markPending(ctx context.Context, cr *changereq.ChangeRequest) error {
	id := cr.ID
	return s.beneficiaries.SetReviewState(ctx, cr.BeneficiaryID, beneficiary.ReviewState{
		PendingReview:       true,
		LastChangeRequestID: &id,
		LastRequestStatus:   string(changereq.StatusPending),
	})
}

func (s *ChangeRequestService) appendAudit(ctx context.Context, requestID uuid.UUID, action string, actorID int64, notes string) error {
	return s.audit.Append(ctx, &changereq.AuditEntry{
		ChangeRequestID: requestID,
		Action:          action,
		ActorID:         actorID,
		Notes:           notes,
	})
}

func referenceNumber(now time.Time, beneficiaryID int64, submissionNo int) string {
	return fmt.Sprintf("CR-%d-%06d-%02d", now.Year(), beneficiaryID, submissionNo)
}

// auditPatch renders the before→after difference as an RFC 6902 patch, the
// at-rest JSON representation kept alongside the typed snapshots.
func auditPatch(before, after *changereq.BeneficiarySnapshot) json.RawMessage {
	patch, err := jsondiff.Compare(before, after)
	if err != nil {
		return nil
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil
	}
	return raw
}
