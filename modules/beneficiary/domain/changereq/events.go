package changereq

import "github.com/google/uuid"

// Events published on the application bus after the owning transaction
// commits.

type SubmittedEvent struct {
	RequestID     uuid.UUID
	BeneficiaryID int64
	Resubmission  bool
	Summary       Summary
}

type ItemReviewedEvent struct {
	RequestID uuid.UUID
	ItemID    uuid.UUID
	Status    ItemStatus
	ActorID   int64
}

type ReviewedEvent struct {
	RequestID     uuid.UUID
	BeneficiaryID int64
	Status        RequestStatus
	ActorID       int64
}

type MergedEvent struct {
	RequestID     uuid.UUID
	BeneficiaryID int64
	NewVersion    int64
}
