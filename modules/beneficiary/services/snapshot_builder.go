package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
)

// SnapshotBuilder produces the display-ready projection of a beneficiary
// and its active dependents. The same projection serves as the diff
// baseline and as the "current value" column during review.
type SnapshotBuilder struct {
	repo      beneficiary.Repository
	sensitive sensitive.Service
}

func NewSnapshotBuilder(repo beneficiary.Repository, sensitiveData sensitive.Service) *SnapshotBuilder {
	return &SnapshotBuilder{repo: repo, sensitive: sensitiveData}
}

func (b *SnapshotBuilder) Build(ctx context.Context, beneficiaryID int64) (*changereq.BeneficiarySnapshot, error) {
	bene, err := b.repo.GetByID(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	return b.project(ctx, bene)
}

// BuildLocked is the merge-path variant: it takes the row lock so the
// version captured here cannot move for the rest of the transaction.
func (b *SnapshotBuilder) BuildLocked(ctx context.Context, beneficiaryID int64) (*changereq.BeneficiarySnapshot, error) {
	bene, err := b.repo.GetByIDForUpdate(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	return b.project(ctx, bene)
}

func (b *SnapshotBuilder) project(ctx context.Context, bene *beneficiary.Beneficiary) (*changereq.BeneficiarySnapshot, error) {
	aadhaar := ""
	if bene.AadhaarCipher != "" {
		decrypted, err := b.sensitive.Decrypt(bene.AadhaarCipher)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decrypt aadhaar")
		}
		aadhaar = decrypted
	}

	snap := &changereq.BeneficiarySnapshot{
		BeneficiaryID: bene.ID,
		Version:       bene.Version,
		FirstName:     bene.FirstName,
		MiddleName:    bene.MiddleName,
		LastName:      bene.LastName,
		Gender:        bene.Gender,
		DateOfBirth:   changereq.FormatDate(bene.DateOfBirth),
		BloodGroup:    bene.BloodGroup,
		Email:         bene.Email,
		Mobile:        bene.Mobile,
		Category:      string(bene.Category),
		PRAN:          bene.PRAN,
		Aadhaar:       aadhaar,
	}

	dependents, err := b.repo.ListActiveDependents(ctx, bene.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range dependents {
		depAadhaar := ""
		if d.AadhaarCipher != "" {
			decrypted, err := b.sensitive.Decrypt(d.AadhaarCipher)
			if err != nil {
				return nil, errors.Wrap(err, "failed to decrypt dependent aadhaar")
			}
			depAadhaar = decrypted
		}
		snap.Dependents = append(snap.Dependents, changereq.DependentSnapshot{
			ID:              d.ID,
			FullName:        d.FullName,
			Relationship:    d.RelationshipKey,
			Gender:          d.Gender,
			BloodGroup:      d.BloodGroup,
			DateOfBirth:     changereq.FormatDate(d.DateOfBirth),
			AliveStatus:     d.AliveStatus,
			HealthDependent: d.HealthDependent,
			Aadhaar:         depAadhaar,
			OrderIndex:      d.DependantOrder,
		})
	}
	return snap, nil
}
