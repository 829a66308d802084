package beneficiary

import (
	"time"

	"github.com/google/uuid"
)

// Category is the pension scheme a beneficiary belongs to.
type Category string

const (
	CategoryNPS Category = "nps"
	CategoryOPS Category = "ops"
)

// Beneficiary is the canonical profile record. Version increases by exactly
// one on every successful merge; concurrent edits are detected by comparing
// it against the version captured in a change-request snapshot.
type Beneficiary struct {
	ID          int64
	UserID      int64
	FirstName   string
	MiddleName  string
	LastName    string
	Gender      string
	DateOfBirth time.Time
	BloodGroup  string
	Email       string
	Mobile      string
	Category    Category
	PRAN        string

	// Aadhaar is stored encrypted; the masked variant is what listings show.
	AadhaarCipher string
	AadhaarMasked string

	Version               int64
	PendingReview         bool
	LastChangeRequestID   *uuid.UUID
	LastRequestStatus     string
	LastRequestReviewedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Beneficiary) FullName() string {
	name := b.FirstName
	if b.MiddleName != "" {
		name += " " + b.MiddleName
	}
	if b.LastName != "" {
		name += " " + b.LastName
	}
	return name
}
