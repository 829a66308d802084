package beneficiary

import "time"

// Dependent is a canonical family-member row owned by a Beneficiary.
// Dependents are never hard-deleted; claim history keeps referencing the row
// after DeletedAt is set.
type Dependent struct {
	ID              int64
	BeneficiaryID   int64
	FullName        string
	RelationshipKey string
	Gender          string
	BloodGroup      string
	DateOfBirth     time.Time
	AliveStatus     string
	HealthDependent bool
	AadhaarCipher   string
	AadhaarMasked   string

	DependantOrder int
	TwinGroup      int

	DeletedAt  *time.Time
	DeletedBy  *int64
	RestoredAt *time.Time
	RestoredBy *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Dependent) Deleted() bool {
	return d.DeletedAt != nil
}
