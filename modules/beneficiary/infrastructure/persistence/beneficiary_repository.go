package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/repo"
)

const (
	selectBeneficiaryQuery = `
		SELECT
			id,
			user_id,
			first_name,
			middle_name,
			last_name,
			gender,
			date_of_birth,
			blood_group,
			email,
			mobile,
			category,
			pran,
			aadhaar_cipher,
			aadhaar_masked,
			version,
			pending_review,
			last_change_request_id,
			last_request_status,
			last_request_reviewed_at,
			created_at,
			updated_at
		FROM beneficiaries`

	selectDependentsQuery = `
		SELECT
			id,
			beneficiary_id,
			full_name,
			relationship_key,
			gender,
			blood_group,
			date_of_birth,
			alive_status,
			health_dependent,
			aadhaar_cipher,
			aadhaar_masked,
			dependant_order,
			twin_group,
			deleted_at,
			deleted_by,
			restored_at,
			restored_by,
			created_at,
			updated_at
		FROM beneficiary_dependents`

	insertDependentQuery = `
		INSERT INTO beneficiary_dependents (
			beneficiary_id,
			full_name,
			relationship_key,
			gender,
			blood_group,
			date_of_birth,
			alive_status,
			health_dependent,
			aadhaar_cipher,
			aadhaar_masked,
			dependant_order,
			twin_group
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	softDeleteDependentQuery = `
		UPDATE beneficiary_dependents SET
			deleted_at = now(),
			deleted_by = $1,
			updated_at = now()
		WHERE id = $2 AND deleted_at IS NULL`

	restoreDependentQuery = `
		UPDATE beneficiary_dependents SET
			deleted_at = NULL,
			deleted_by = NULL,
			restored_at = now(),
			restored_by = $1,
			updated_at = now()
		WHERE id = $2 AND deleted_at IS NOT NULL`

	nextDependantOrderQuery = `
		SELECT COALESCE(MAX(dependant_order), 0) + 1
		FROM beneficiary_dependents
		WHERE beneficiary_id = $1`
)

type PgBeneficiaryRepository struct{}

func NewBeneficiaryRepository() beneficiary.Repository {
	return &PgBeneficiaryRepository{}
}

func (r *PgBeneficiaryRepository) GetByID(ctx context.Context, id int64) (*beneficiary.Beneficiary, error) {
	return r.getByID(ctx, id, "")
}

func (r *PgBeneficiaryRepository) GetByIDForUpdate(ctx context.Context, id int64) (*beneficiary.Beneficiary, error) {
	return r.getByID(ctx, id, "FOR UPDATE")
}

func (r *PgBeneficiaryRepository) getByID(ctx context.Context, id int64, locking string) (*beneficiary.Beneficiary, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := repo.Join(selectBeneficiaryQuery, repo.JoinWhere("id = $1"), locking)
	row, err := scanBeneficiary(tx.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, beneficiary.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to query beneficiary")
	}
	return row, nil
}

func (r *PgBeneficiaryRepository) Update(ctx context.Context, b *beneficiary.Beneficiary) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m := ToDBBeneficiary(b)
	fields := []string{
		"first_name",
		"middle_name",
		"last_name",
		"gender",
		"date_of_birth",
		"blood_group",
		"email",
		"mobile",
		"category",
		"pran",
		"aadhaar_cipher",
		"aadhaar_masked",
		"version",
		"updated_at",
	}
	values := []interface{}{
		m.FirstName,
		m.MiddleName,
		m.LastName,
		m.Gender,
		m.DateOfBirth,
		m.BloodGroup,
		m.Email,
		m.Mobile,
		m.Category,
		m.PRAN,
		m.AadhaarCipher,
		m.AadhaarMasked,
		m.Version,
		time.Now(),
	}
	values = append(values, m.ID)
	tag, err := tx.Exec(ctx, repo.Update("beneficiaries", fields, fmt.Sprintf("id = $%d", len(values))), values...)
	if err != nil {
		return errors.Wrap(err, "failed to update beneficiary")
	}
	if tag.RowsAffected() == 0 {
		return beneficiary.ErrNotFound
	}
	return nil
}

func (r *PgBeneficiaryRepository) SetReviewState(ctx context.Context, id int64, state beneficiary.ReviewState) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	var requestID interface{}
	if state.LastChangeRequestID != nil {
		requestID = *state.LastChangeRequestID
	}
	fields := []string{
		"pending_review",
		"last_change_request_id",
		"last_request_status",
		"last_request_reviewed_at",
		"updated_at",
	}
	values := []interface{}{
		state.PendingReview,
		requestID,
		state.LastRequestStatus,
		nullTime(state.LastRequestReviewedAt),
		time.Now(),
	}
	values = append(values, id)
	tag, err := tx.Exec(ctx, repo.Update("beneficiaries", fields, fmt.Sprintf("id = $%d", len(values))), values...)
	if err != nil {
		return errors.Wrap(err, "failed to set review state")
	}
	if tag.RowsAffected() == 0 {
		return beneficiary.ErrNotFound
	}
	return nil
}

func (r *PgBeneficiaryRepository) ListActiveDependents(ctx context.Context, beneficiaryID int64) ([]*beneficiary.Dependent, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := repo.Join(
		selectDependentsQuery,
		repo.JoinWhere("beneficiary_id = $1", "deleted_at IS NULL"),
		"ORDER BY dependant_order, id",
	)
	rows, err := tx.Query(ctx, q, beneficiaryID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query dependents")
	}
	defer rows.Close()

	var out []*beneficiary.Dependent
	for rows.Next() {
		d, err := scanDependent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PgBeneficiaryRepository) GetDependent(ctx context.Context, id int64) (*beneficiary.Dependent, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := repo.Join(selectDependentsQuery, repo.JoinWhere("id = $1"))
	d, err := scanDependent(tx.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, beneficiary.ErrDependentNotFound
		}
		return nil, errors.Wrap(err, "failed to query dependent")
	}
	return d, nil
}

func (r *PgBeneficiaryRepository) InsertDependent(ctx context.Context, d *beneficiary.Dependent) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	m := ToDBDependent(d)
	var id int64
	if err := tx.QueryRow(ctx, insertDependentQuery,
		m.BeneficiaryID,
		m.FullName,
		m.RelationshipKey,
		m.Gender,
		m.BloodGroup,
		m.DateOfBirth,
		m.AliveStatus,
		m.HealthDependent,
		m.AadhaarCipher,
		m.AadhaarMasked,
		m.DependantOrder,
		m.TwinGroup,
	).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "failed to insert dependent")
	}
	return id, nil
}

func (r *PgBeneficiaryRepository) UpdateDependent(ctx context.Context, d *beneficiary.Dependent) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m := ToDBDependent(d)
	fields := []string{
		"full_name",
		"relationship_key",
		"gender",
		"blood_group",
		"date_of_birth",
		"alive_status",
		"health_dependent",
		"aadhaar_cipher",
		"aadhaar_masked",
		"updated_at",
	}
	values := []interface{}{
		m.FullName,
		m.RelationshipKey,
		m.Gender,
		m.BloodGroup,
		m.DateOfBirth,
		m.AliveStatus,
		m.HealthDependent,
		m.AadhaarCipher,
		m.AadhaarMasked,
		time.Now(),
	}
	values = append(values, m.ID)
	tag, err := tx.Exec(ctx, repo.Update("beneficiary_dependents", fields, fmt.Sprintf("id = $%d", len(values))), values...)
	if err != nil {
		return errors.Wrap(err, "failed to update dependent")
	}
	if tag.RowsAffected() == 0 {
		return beneficiary.ErrDependentNotFound
	}
	return nil
}

func (r *PgBeneficiaryRepository) SoftDeleteDependent(ctx context.Context, id int64, actorID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, softDeleteDependentQuery, actorID, id)
	if err != nil {
		return errors.Wrap(err, "failed to soft delete dependent")
	}
	if tag.RowsAffected() == 0 {
		return beneficiary.ErrDependentNotFound
	}
	return nil
}

func (r *PgBeneficiaryRepository) RestoreDependent(ctx context.Context, id int64, actorID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, restoreDependentQuery, actorID, id)
	if err != nil {
		return errors.Wrap(err, "failed to restore dependent")
	}
	if tag.RowsAffected() == 0 {
		return beneficiary.ErrDependentNotFound
	}
	return nil
}

func (r *PgBeneficiaryRepository) NextDependantOrder(ctx context.Context, beneficiaryID int64) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var next int
	if err := tx.QueryRow(ctx, nextDependantOrderQuery, beneficiaryID).Scan(&next); err != nil {
		return 0, errors.Wrap(err, "failed to compute next dependant order")
	}
	return next, nil
}
