package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
)

// mergeEngine folds the approved items of a change request into the
// canonical rows. It runs inside the approval transaction; the caller owns
// commit and rollback.
type mergeEngine struct {
	repo      beneficiary.Repository
	sensitive sensitive.Service
}

// apply locks the beneficiary row, re-validates the snapshot version and
// writes every approved item. The version advances by exactly one per merge
// regardless of how many items were approved. Returns the new version.
func (m *mergeEngine) apply(ctx context.Context, cr *changereq.ChangeRequest, actorID int64) (int64, error) {
	bene, err := m.repo.GetByIDForUpdate(ctx, cr.BeneficiaryID)
	if err != nil {
		return 0, err
	}
	if bene.Version != cr.PayloadBefore.Version {
		return 0, &changereq.VersionConflictError{
			SnapshotVersion: cr.PayloadBefore.Version,
			CurrentVersion:  bene.Version,
		}
	}

	for i := range cr.Items {
		item := &cr.Items[i]
		if item.Status != changereq.ItemApproved {
			continue
		}
		switch item.EntityType {
		case changereq.EntityBeneficiary:
			err = m.applyScalar(bene, item.FieldKey, item.NewValue)
		case changereq.EntityDependent:
			err = m.applyDependent(ctx, bene, item, actorID)
		}
		if err != nil {
			return 0, errors.Wrapf(err, "failed to apply item %s", item.FieldKey)
		}
	}

	bene.Version++
	if err := m.repo.Update(ctx, bene); err != nil {
		return 0, err
	}
	return bene.Version, nil
}

func (m *mergeEngine) applyScalar(bene *beneficiary.Beneficiary, key, value string) error {
	switch key {
	case changereq.FieldFirstName:
		bene.FirstName = value
	case changereq.FieldMiddleName:
		bene.MiddleName = value
	case changereq.FieldLastName:
		bene.LastName = value
	case changereq.FieldGender:
		bene.Gender = value
	case changereq.FieldDateOfBirth:
		dob, err := changereq.ParseDate(value)
		if err != nil {
			return err
		}
		bene.DateOfBirth = dob
	case changereq.FieldBloodGroup:
		bene.BloodGroup = value
	case changereq.FieldEmail:
		bene.Email = value
	case changereq.FieldMobile:
		bene.Mobile = value
	case changereq.FieldCategory:
		bene.Category = beneficiary.Category(value)
	case changereq.FieldPRAN:
		bene.PRAN = value
	case changereq.FieldAadhaar:
		cipher, masked, err := m.seal(value)
		if err != nil {
			return err
		}
		bene.AadhaarCipher = cipher
		bene.AadhaarMasked = masked
	default:
		return errors.Errorf("unknown beneficiary field %q", key)
	}
	return nil
}

func (m *mergeEngine) applyDependent(ctx context.Context, bene *beneficiary.Beneficiary, item *changereq.ChangeItem, actorID int64) error {
	record := item.Dependent
	if record == nil {
		return errors.New("dependent item has no companion record")
	}

	switch record.Action {
	case changereq.ActionAdd:
		return m.addDependent(ctx, bene.ID, record.PayloadAfter, actorID)
	case changereq.ActionUpdate:
		if item.EntityID == nil {
			return beneficiary.ErrDependentNotFound
		}
		return m.updateDependent(ctx, *item.EntityID, record.PayloadAfter)
	case changereq.ActionRemove:
		if item.EntityID == nil {
			return beneficiary.ErrDependentNotFound
		}
		return m.repo.SoftDeleteDependent(ctx, *item.EntityID, actorID)
	default:
		return errors.Errorf("unknown dependent action %q", record.Action)
	}
}

func (m *mergeEngine) addDependent(ctx context.Context, beneficiaryID int64, snap *changereq.DependentSnapshot, actorID int64) error {
	if snap == nil {
		return errors.New("dependent add has no payload")
	}
	// A submission may reference a previously removed dependent by id; the
	// diff classifies it as an add because the row is no longer active.
	// Merging such an item restores the row instead of inserting a twin.
	if snap.ID != 0 {
		existing, err := m.repo.GetDependent(ctx, snap.ID)
		if err == nil && existing.BeneficiaryID == beneficiaryID && existing.Deleted() {
			if err := m.repo.RestoreDependent(ctx, snap.ID, actorID); err != nil {
				return err
			}
			return m.updateDependent(ctx, snap.ID, snap)
		}
		if err != nil && !errors.Is(err, beneficiary.ErrDependentNotFound) {
			return err
		}
	}
	dob, err := changereq.ParseDate(snap.DateOfBirth)
	if err != nil {
		return err
	}
	cipher, masked, err := m.seal(snap.Aadhaar)
	if err != nil {
		return err
	}
	// New dependents always go to the end of the order regardless of where
	// the submission placed them.
	order, err := m.repo.NextDependantOrder(ctx, beneficiaryID)
	if err != nil {
		return err
	}
	_, err = m.repo.InsertDependent(ctx, &beneficiary.Dependent{
		BeneficiaryID:   beneficiaryID,
		FullName:        snap.FullName,
		RelationshipKey: snap.Relationship,
		Gender:          snap.Gender,
		BloodGroup:      snap.BloodGroup,
		DateOfBirth:     dob,
		AliveStatus:     snap.AliveStatus,
		HealthDependent: snap.HealthDependent,
		AadhaarCipher:   cipher,
		AadhaarMasked:   masked,
		DependantOrder:  order,
	})
	return err
}

func (m *mergeEngine) updateDependent(ctx context.Context, dependentID int64, snap *changereq.DependentSnapshot) error {
	if snap == nil {
		return errors.New("dependent update has no payload")
	}
	dep, err := m.repo.GetDependent(ctx, dependentID)
	if err != nil {
		return err
	}
	if dep.Deleted() {
		return beneficiary.ErrDependentNotFound
	}
	dob, err := changereq.ParseDate(snap.DateOfBirth)
	if err != nil {
		return err
	}

	dep.FullName = snap.FullName
	dep.RelationshipKey = snap.Relationship
	dep.Gender = snap.Gender
	dep.BloodGroup = snap.BloodGroup
	dep.DateOfBirth = dob
	dep.AliveStatus = snap.AliveStatus
	dep.HealthDependent = snap.HealthDependent
	// Order is canonical-owned; submissions cannot move rows around.
	if snap.Aadhaar == "" {
		dep.AadhaarCipher = ""
		dep.AadhaarMasked = ""
	} else {
		cipher, masked, err := m.seal(snap.Aadhaar)
		if err != nil {
			return err
		}
		dep.AadhaarCipher = cipher
		dep.AadhaarMasked = masked
	}
	return m.repo.UpdateDependent(ctx, dep)
}

// seal encrypts a sensitive value and derives its display mask.
func (m *mergeEngine) seal(value string) (cipher, masked string, err error) {
	if value == "" {
		return "", "", nil
	}
	cipher, err = m.sensitive.Encrypt(value)
	if err != nil {
		return "", "", err
	}
	return cipher, m.sensitive.Mask(value, sensitive.KindAadhaar), nil
}
