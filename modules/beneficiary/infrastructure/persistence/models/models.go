package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Beneficiary struct {
	ID                    int64
	UserID                int64
	FirstName             string
	MiddleName            string
	LastName              string
	Gender                string
	DateOfBirth           sql.NullTime
	BloodGroup            string
	Email                 string
	Mobile                string
	Category              string
	PRAN                  string
	AadhaarCipher         string
	AadhaarMasked         string
	Version               int64
	PendingReview         bool
	LastChangeRequestID   uuid.NullUUID
	LastRequestStatus     string
	LastRequestReviewedAt sql.NullTime
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Dependent struct {
	ID              int64
	BeneficiaryID   int64
	FullName        string
	RelationshipKey string
	Gender          string
	BloodGroup      string
	DateOfBirth     sql.NullTime
	AliveStatus     string
	HealthDependent bool
	AadhaarCipher   string
	AadhaarMasked   string
	DependantOrder  int
	TwinGroup       int
	DeletedAt       sql.NullTime
	DeletedBy       sql.NullInt64
	RestoredAt      sql.NullTime
	RestoredBy      sql.NullInt64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ChangeRequest struct {
	ID                   uuid.UUID
	BeneficiaryID        int64
	UserID               int64
	ReferenceNumber      string
	SubmissionNo         int
	RevisionNo           int
	Status               string
	PayloadBefore        []byte
	PayloadAfter         []byte
	SummaryDiff          []byte
	AuditPatch           []byte
	UndertakingConfirmed bool
	RequestedAt          time.Time
	ReviewedAt           sql.NullTime
	ReviewedBy           sql.NullInt64
	ReviewComment        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type ChangeItem struct {
	ID         uuid.UUID
	RequestID  uuid.UUID
	EntityType string
	EntityID   sql.NullInt64
	FieldKey   string
	FieldLabel string
	OldValue   string
	NewValue   string
	Status     string
	ReviewNote string
	ReviewedBy sql.NullInt64
	ReviewedAt sql.NullTime
	Position   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ChangeDependent struct {
	ItemID          uuid.UUID
	Action          string
	OrderIndex      int
	RelationshipKey string
	AliveStatus     string
	HealthStatus    string
	FullName        string
	PayloadBefore   []byte
	PayloadAfter    []byte
}

type AuditEntry struct {
	ID              int64
	ChangeRequestID uuid.UUID
	Action          string
	ActorID         int64
	Notes           string
	CreatedAt       time.Time
}
