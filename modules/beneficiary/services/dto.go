package services

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateSubmission, SubmitDTO{})
	return v
}

// SubmitDTO is the full proposed profile a beneficiary submits. Scalars are
// display strings in the same normalization the snapshot uses, so the diff
// engine can compare them directly.
type SubmitDTO struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	MiddleName  string `json:"middle_name" validate:"max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
	Gender      string `json:"gender" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"required"`
	BloodGroup  string `json:"blood_group"`
	Email       string `json:"email" validate:"omitempty,email"`
	Mobile      string `json:"mobile" validate:"required,len=10,numeric"`
	Category    string `json:"category" validate:"required,oneof=nps ops"`
	PRAN        string `json:"pran"`
	Aadhaar     string `json:"aadhaar_number" validate:"omitempty,len=12,numeric"`

	Dependents []DependentDTO `json:"dependents" validate:"dive"`

	// Draft saves the request without submitting it for review.
	Draft bool `json:"draft"`
	// UndertakingConfirmed is the mandatory self-declaration consent.
	UndertakingConfirmed bool `json:"undertaking_confirmed"`
}

type DependentDTO struct {
	// ID references a canonical dependent; zero means a new one.
	ID              int64  `json:"id"`
	FullName        string `json:"full_name" validate:"required,max=200"`
	Relationship    string `json:"relationship" validate:"required"`
	Gender          string `json:"gender" validate:"required"`
	BloodGroup      string `json:"blood_group"`
	DateOfBirth     string `json:"date_of_birth" validate:"required"`
	AliveStatus     string `json:"alive_status" validate:"required,oneof=Alive Deceased"`
	HealthDependent bool   `json:"health_dependent"`
	Aadhaar         string `json:"aadhaar_number" validate:"omitempty,len=12,numeric"`
}

// validateSubmission holds the cross-field business rules.
func validateSubmission(sl validator.StructLevel) {
	dto := sl.Current().Interface().(SubmitDTO)

	// PRAN is mandatory for the NPS scheme.
	if dto.Category == "nps" && strings.TrimSpace(dto.PRAN) == "" {
		sl.ReportError(dto.PRAN, "PRAN", "pran", "required_for_nps", "")
	}
	if _, err := changereq.ParseDate(dto.DateOfBirth); err != nil {
		sl.ReportError(dto.DateOfBirth, "DateOfBirth", "date_of_birth", "dateformat", "")
	}
	for _, d := range dto.Dependents {
		if _, err := changereq.ParseDate(d.DateOfBirth); err != nil {
			sl.ReportError(d.DateOfBirth, "Dependents", "dependents", "dateformat", "")
		}
	}
}

// Validate converts validator failures into the domain ValidationError the
// workflow boundary reports to submitters.
func (dto *SubmitDTO) Validate() error {
	if err := validate.Struct(dto); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &changereq.ValidationError{
				Field:   first.Field(),
				Message: "failed validation rule " + first.Tag(),
			}
		}
		return &changereq.ValidationError{Message: err.Error()}
	}
	return nil
}

// Snapshot projects the submitted payload into the diff engine's input
// shape. Order indexes follow submission order starting at 1.
func (dto *SubmitDTO) Snapshot(beneficiaryID, version int64) *changereq.BeneficiarySnapshot {
	snap := &changereq.BeneficiarySnapshot{
		BeneficiaryID: beneficiaryID,
		Version:       version,
		FirstName:     strings.TrimSpace(dto.FirstName),
		MiddleName:    strings.TrimSpace(dto.MiddleName),
		LastName:      strings.TrimSpace(dto.LastName),
		Gender:        strings.TrimSpace(dto.Gender),
		DateOfBirth:   strings.TrimSpace(dto.DateOfBirth),
		BloodGroup:    strings.TrimSpace(dto.BloodGroup),
		Email:         strings.TrimSpace(dto.Email),
		Mobile:        strings.TrimSpace(dto.Mobile),
		Category:      strings.TrimSpace(dto.Category),
		PRAN:          strings.TrimSpace(dto.PRAN),
		Aadhaar:       strings.TrimSpace(dto.Aadhaar),
	}
	for i, d := range dto.Dependents {
		snap.Dependents = append(snap.Dependents, changereq.DependentSnapshot{
			ID:              d.ID,
			FullName:        strings.TrimSpace(d.FullName),
			Relationship:    strings.TrimSpace(d.Relationship),
			Gender:          strings.TrimSpace(d.Gender),
			BloodGroup:      strings.TrimSpace(d.BloodGroup),
			DateOfBirth:     strings.TrimSpace(d.DateOfBirth),
			AliveStatus:     strings.TrimSpace(d.AliveStatus),
			HealthDependent: d.HealthDependent,
			Aadhaar:         strings.TrimSpace(d.Aadhaar),
			OrderIndex:      i + 1,
		})
	}
	return snap
}
