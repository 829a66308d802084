package beneficiary

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("beneficiary not found")
	ErrDependentNotFound = errors.New("dependent not found")
)

// ReviewState is the denormalized change-request bookkeeping kept on the
// canonical row so listings never need a join.
type ReviewState struct {
	PendingReview         bool
	LastChangeRequestID   *uuid.UUID
	LastRequestStatus     string
	LastRequestReviewedAt *time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Beneficiary, error)
	// GetByIDForUpdate locks the row for the rest of the transaction. The
	// merge engine uses it so the version check and the writes are atomic.
	GetByIDForUpdate(ctx context.Context, id int64) (*Beneficiary, error)
	Update(ctx context.Context, b *Beneficiary) error
	SetReviewState(ctx context.Context, id int64, state ReviewState) error

	ListActiveDependents(ctx context.Context, beneficiaryID int64) ([]*Dependent, error)
	GetDependent(ctx context.Context, id int64) (*Dependent, error)
	InsertDependent(ctx context.Context, d *Dependent) (int64, error)
	UpdateDependent(ctx context.Context, d *Dependent) error
	SoftDeleteDependent(ctx context.Context, id int64, actorID int64) error
	// RestoreDependent clears the soft-delete markers on a previously
	// removed dependent and records who brought it back.
	RestoreDependent(ctx context.Context, id int64, actorID int64) error
	NextDependantOrder(ctx context.Context, beneficiaryID int64) (int, error)
}
