package changereq

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies what a change item edits.
type EntityType string

const (
	EntityBeneficiary EntityType = "beneficiary"
	EntityDependent   EntityType = "dependent"
)

// ChangeRequest is one submission of proposed profile edits. It never
// mutates canonical rows; approved items are merged by the apply engine.
type ChangeRequest struct {
	ID              uuid.UUID
	BeneficiaryID   int64
	UserID          int64
	ReferenceNumber string
	SubmissionNo    int
	RevisionNo      int
	Status          RequestStatus

	// Full snapshots taken at submission time. PayloadBefore.Version is the
	// canonical version the merge re-validates against.
	PayloadBefore BeneficiarySnapshot
	PayloadAfter  BeneficiarySnapshot
	SummaryDiff   Summary

	// AuditPatch is the RFC 6902 patch of before→after kept as the at-rest
	// JSON representation of the submission.
	AuditPatch json.RawMessage

	UndertakingConfirmed bool
	RequestedAt          time.Time
	ReviewedAt           *time.Time
	ReviewedBy           *int64
	ReviewComment        string

	CreatedAt time.Time
	UpdatedAt time.Time

	Items []ChangeItem
}

// ItemStatuses projects the items' statuses for the aggregate rule.
func (cr *ChangeRequest) ItemStatuses() []ItemStatus {
	out := make([]ItemStatus, len(cr.Items))
	for i, item := range cr.Items {
		out[i] = item.Status
	}
	return out
}

// Unresolved reports whether the request still blocks new submissions.
func (cr *ChangeRequest) Unresolved() bool {
	return cr.Status == StatusPending || cr.Status == StatusNeedsInfo
}

// ChangeItem is one independently reviewable atomic change. For dependent
// actions the scalar old/new values are JSON payloads and Dependent carries
// the structured companion record.
type ChangeItem struct {
	ID         uuid.UUID
	RequestID  uuid.UUID
	EntityType EntityType
	// EntityID is the dependent id for dependent items; nil for beneficiary
	// items and dependent adds.
	EntityID   *int64
	FieldKey   string
	FieldLabel string
	OldValue   string
	NewValue   string
	Status     ItemStatus
	ReviewNote string
	ReviewedBy *int64
	ReviewedAt *time.Time

	Dependent *DependentRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DependentRecord is the structured companion for a dependent-level item.
type DependentRecord struct {
	ItemID          uuid.UUID
	Action          Action
	OrderIndex      int
	RelationshipKey string
	AliveStatus     string
	HealthStatus    string
	FullName        string
	PayloadBefore   *DependentSnapshot
	PayloadAfter    *DependentSnapshot
}

// AuditEntry is one append-only row of the change-request trail.
type AuditEntry struct {
	ID              int64
	ChangeRequestID uuid.UUID
	Action          string
	ActorID         int64
	Notes           string
	CreatedAt       time.Time
}

// Audit actions.
const (
	AuditSubmitted     = "submitted"
	AuditResubmitted   = "resubmitted"
	AuditDraftSaved    = "draft_saved"
	AuditDraftDiscard  = "draft_discarded"
	AuditItemReviewed  = "item_reviewed"
	AuditItemReset     = "item_reset"
	AuditItemsClosed   = "items_force_rejected"
	AuditApproved      = "approved"
	AuditRejected      = "rejected"
	AuditNeedsInfo     = "needs_info"
	AuditMerged        = "merged"
	AuditMergeConflict = "merge_version_conflict"
	AuditMergeFailed   = "merge_failed"
)

// BuildItems materializes one change item per atomic change in the diff.
// Beneficiary items come first in tracked-field order, then dependent
// actions in reconciliation order.
func BuildItems(requestID uuid.UUID, diff *Diff) []ChangeItem {
	items := make([]ChangeItem, 0, len(diff.Beneficiary)+len(diff.Dependents))

	for _, fc := range diff.BeneficiaryFields() {
		items = append(items, ChangeItem{
			ID:         uuid.New(),
			RequestID:  requestID,
			EntityType: EntityBeneficiary,
			FieldKey:   fc.Key,
			FieldLabel: fc.Label,
			OldValue:   fc.Before,
			NewValue:   fc.After,
			Status:     ItemPending,
		})
	}

	for _, dc := range diff.Dependents {
		items = append(items, buildDependentItem(requestID, dc))
	}
	return items
}

func buildDependentItem(requestID uuid.UUID, dc DependentChange) ChangeItem {
	item := ChangeItem{
		ID:         uuid.New(),
		RequestID:  requestID,
		EntityType: EntityDependent,
		FieldKey:   "dependent_" + string(dc.Action),
		Status:     ItemPending,
	}
	if dc.DependentID != 0 {
		id := dc.DependentID
		item.EntityID = &id
	}

	record := &DependentRecord{
		ItemID:        item.ID,
		Action:        dc.Action,
		PayloadBefore: dc.Before,
		PayloadAfter:  dc.After,
	}
	subject := dc.After
	if subject == nil {
		subject = dc.Before
	}
	if subject != nil {
		record.OrderIndex = subject.OrderIndex
		record.RelationshipKey = subject.Relationship
		record.AliveStatus = subject.AliveStatus
		record.FullName = subject.FullName
		if subject.HealthDependent {
			record.HealthStatus = "dependent"
		} else {
			record.HealthStatus = "independent"
		}
		item.FieldLabel = "Dependent: " + subject.FullName
	}
	item.Dependent = record

	if dc.Before != nil {
		if raw, err := json.Marshal(dc.Before); err == nil {
			item.OldValue = string(raw)
		}
	}
	if dc.After != nil {
		if raw, err := json.Marshal(dc.After); err == nil {
			item.NewValue = string(raw)
		}
	}
	return item
}
