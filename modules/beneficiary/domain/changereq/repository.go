package changereq

import (
	"context"

	"github.com/google/uuid"
)

// FindParams filters request listings.
type FindParams struct {
	BeneficiaryID int64
	Status        RequestStatus
	Limit         int
	Offset        int
}

type Repository interface {
	// Create inserts the header, its items and companion dependent records
	// in the ambient transaction. Implementations must enforce the
	// single-pending invariant and return ErrDuplicatePending when another
	// unresolved request exists for the beneficiary.
	Create(ctx context.Context, cr *ChangeRequest) error
	Update(ctx context.Context, cr *ChangeRequest) error
	// ReplaceItems swaps the full item set on resubmission.
	ReplaceItems(ctx context.Context, requestID uuid.UUID, items []ChangeItem) error
	Delete(ctx context.Context, id uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (*ChangeRequest, error)
	List(ctx context.Context, params *FindParams) ([]*ChangeRequest, int64, error)
	NextSubmissionNo(ctx context.Context, beneficiaryID int64) (int, error)

	GetItem(ctx context.Context, requestID, itemID uuid.UUID) (*ChangeItem, error)
	UpdateItem(ctx context.Context, item *ChangeItem) error
	UpdateItemStatuses(ctx context.Context, requestID uuid.UUID, from []ItemStatus, to ItemStatus, reviewerID int64) error
}

type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*AuditEntry, error)
}
