package changereq

import "time"

// DateLayout is the display format shared by snapshots, diffs and merge
// parsing. Snapshots hold display strings, so the same layout must round-trip.
const DateLayout = "02-01-2006"

// Beneficiary field keys, in review-rendering order.
const (
	FieldFirstName   = "first_name"
	FieldMiddleName  = "middle_name"
	FieldLastName    = "last_name"
	FieldGender      = "gender"
	FieldDateOfBirth = "date_of_birth"
	FieldBloodGroup  = "blood_group"
	FieldEmail       = "email"
	FieldMobile      = "mobile"
	FieldCategory    = "category"
	FieldPRAN        = "pran"
	FieldAadhaar     = "aadhaar_number"
)

// Dependent field keys tracked by the reconciliation.
const (
	DepFieldFullName        = "full_name"
	DepFieldRelationship    = "relationship"
	DepFieldGender          = "gender"
	DepFieldBloodGroup      = "blood_group"
	DepFieldDateOfBirth     = "date_of_birth"
	DepFieldAliveStatus     = "alive_status"
	DepFieldHealthDependent = "health_dependent"
	DepFieldAadhaar         = "aadhaar_number"
)

// BeneficiarySnapshot is the display-ready projection of a beneficiary used
// both as the diff baseline and for review rendering. All values are
// normalized display strings; Aadhaar is the decrypted value, masked only at
// the rendering edge. Version pins the canonical row the snapshot was taken
// from.
type BeneficiarySnapshot struct {
	BeneficiaryID int64  `json:"beneficiary_id"`
	Version       int64  `json:"version"`
	FirstName     string `json:"first_name"`
	MiddleName    string `json:"middle_name"`
	LastName      string `json:"last_name"`
	Gender        string `json:"gender"`
	DateOfBirth   string `json:"date_of_birth"`
	BloodGroup    string `json:"blood_group"`
	Email         string `json:"email"`
	Mobile        string `json:"mobile"`
	Category      string `json:"category"`
	PRAN          string `json:"pran"`
	Aadhaar       string `json:"aadhaar_number"`

	Dependents []DependentSnapshot `json:"dependents"`
}

// DependentSnapshot is one active dependent inside a BeneficiarySnapshot.
// ID is zero for dependents that do not exist canonically yet.
type DependentSnapshot struct {
	ID              int64  `json:"id,omitempty"`
	FullName        string `json:"full_name"`
	Relationship    string `json:"relationship"`
	Gender          string `json:"gender"`
	BloodGroup      string `json:"blood_group"`
	DateOfBirth     string `json:"date_of_birth"`
	AliveStatus     string `json:"alive_status"`
	HealthDependent bool   `json:"health_dependent"`
	Aadhaar         string `json:"aadhaar_number"`
	OrderIndex      int    `json:"order_index"`
}

type fieldValue struct {
	Key   string
	Label string
	Value string
}

// trackedFields enumerates the diffable beneficiary fields in a stable
// order. Adding a field here is all the diff engine needs.
func (s *BeneficiarySnapshot) trackedFields() []fieldValue {
	return []fieldValue{
		{FieldFirstName, "First Name", s.FirstName},
		{FieldMiddleName, "Middle Name", s.MiddleName},
		{FieldLastName, "Last Name", s.LastName},
		{FieldGender, "Gender", s.Gender},
		{FieldDateOfBirth, "Date of Birth", s.DateOfBirth},
		{FieldBloodGroup, "Blood Group", s.BloodGroup},
		{FieldEmail, "Email", s.Email},
		{FieldMobile, "Mobile Number", s.Mobile},
		{FieldCategory, "Scheme Category", s.Category},
		{FieldPRAN, "PRAN", s.PRAN},
		{FieldAadhaar, "Aadhaar Number", s.Aadhaar},
	}
}

func (d *DependentSnapshot) trackedFields() []fieldValue {
	health := "No"
	if d.HealthDependent {
		health = "Yes"
	}
	return []fieldValue{
		{DepFieldFullName, "Full Name", d.FullName},
		{DepFieldRelationship, "Relationship", d.Relationship},
		{DepFieldGender, "Gender", d.Gender},
		{DepFieldBloodGroup, "Blood Group", d.BloodGroup},
		{DepFieldDateOfBirth, "Date of Birth", d.DateOfBirth},
		{DepFieldAliveStatus, "Alive Status", d.AliveStatus},
		{DepFieldHealthDependent, "Health Dependent", health},
		{DepFieldAadhaar, "Aadhaar Number", d.Aadhaar},
	}
}

// FormatDate renders a canonical timestamp as a snapshot display string.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate is the inverse of FormatDate for the merge path.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}
