package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/infrastructure/persistence/models"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/repo"
)

const (
	// singleUnresolvedConstraint is the partial unique index backing the
	// one-unresolved-request-per-beneficiary invariant.
	singleUnresolvedConstraint = "beneficiary_change_requests_single_unresolved"
	// submissionNoConstraint serializes the MAX+1 submission number
	// allocation across concurrent saves.
	submissionNoConstraint = "beneficiary_change_requests_submission_no"

	selectRequestQuery = `
		SELECT
			id,
			beneficiary_id,
			user_id,
			reference_number,
			submission_no,
			revision_no,
			status,
			payload_before,
			payload_after,
			summary_diff,
			audit_patch,
			undertaking_confirmed,
			requested_at,
			reviewed_at,
			reviewed_by,
			review_comment,
			created_at,
			updated_at
		FROM beneficiary_change_requests`

	countRequestsQuery = `SELECT COUNT(*) FROM beneficiary_change_requests`

	insertRequestQuery = `
		INSERT INTO beneficiary_change_requests (
			id,
			beneficiary_id,
			user_id,
			reference_number,
			submission_no,
			revision_no,
			status,
			payload_before,
			payload_after,
			summary_diff,
			audit_patch,
			undertaking_confirmed,
			requested_at,
			reviewed_at,
			reviewed_by,
			review_comment
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	updateRequestQuery = `
		UPDATE beneficiary_change_requests SET
			status = $1,
			revision_no = $2,
			payload_before = $3,
			payload_after = $4,
			summary_diff = $5,
			audit_patch = $6,
			undertaking_confirmed = $7,
			requested_at = $8,
			reviewed_at = $9,
			reviewed_by = $10,
			review_comment = $11,
			updated_at = now()
		WHERE id = $12`

	deleteRequestQuery = `DELETE FROM beneficiary_change_requests WHERE id = $1`

	nextSubmissionNoQuery = `
		SELECT COALESCE(MAX(submission_no), 0) + 1
		FROM beneficiary_change_requests
		WHERE beneficiary_id = $1`

	selectItemsQuery = `
		SELECT
			i.id,
			i.request_id,
			i.entity_type,
			i.entity_id,
			i.field_key,
			i.field_label,
			i.old_value,
			i.new_value,
			i.status,
			i.review_note,
			i.reviewed_by,
			i.reviewed_at,
			i.position,
			i.created_at,
			i.updated_at,
			d.action,
			d.order_index,
			d.relationship_key,
			d.alive_status,
			d.health_status,
			d.full_name,
			d.payload_before,
			d.payload_after
		FROM beneficiary_change_items i
		LEFT JOIN beneficiary_change_dependents d ON d.item_id = i.id`

	insertItemsPrefix = `
		INSERT INTO beneficiary_change_items (
			id,
			request_id,
			entity_type,
			entity_id,
			field_key,
			field_label,
			old_value,
			new_value,
			status,
			review_note,
			position
		) VALUES`

	insertItemDependentsPrefix = `
		INSERT INTO beneficiary_change_dependents (
			item_id,
			action,
			order_index,
			relationship_key,
			alive_status,
			health_status,
			full_name,
			payload_before,
			payload_after
		) VALUES`

	deleteItemsQuery = `DELETE FROM beneficiary_change_items WHERE request_id = $1`

	updateItemQuery = `
		UPDATE beneficiary_change_items SET
			status = $1,
			review_note = $2,
			reviewed_by = $3,
			reviewed_at = $4,
			updated_at = now()
		WHERE id = $5 AND request_id = $6`

	updateItemStatusesQuery = `
		UPDATE beneficiary_change_items SET
			status = $1,
			reviewed_by = $2,
			reviewed_at = now(),
			updated_at = now()
		WHERE request_id = $3 AND status = ANY($4)`
)

type PgChangeRequestRepository struct{}

func NewChangeRequestRepository() changereq.Repository {
	return &PgChangeRequestRepository{}
}

func (r *PgChangeRequestRepository) Create(ctx context.Context, cr *changereq.ChangeRequest) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m, err := ToDBChangeRequest(cr)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertRequestQuery,
		m.ID,
		m.BeneficiaryID,
		m.UserID,
		m.ReferenceNumber,
		m.SubmissionNo,
		m.RevisionNo,
		m.Status,
		m.PayloadBefore,
		m.PayloadAfter,
		m.SummaryDiff,
		m.AuditPatch,
		m.UndertakingConfirmed,
		m.RequestedAt,
		m.ReviewedAt,
		m.ReviewedBy,
		m.ReviewComment,
	)
	if err != nil {
		if isUniqueViolation(err, singleUnresolvedConstraint) {
			return changereq.ErrDuplicatePending
		}
		if isUniqueViolation(err, submissionNoConstraint) {
			return changereq.ErrSubmissionConflict
		}
		return errors.Wrap(err, "failed to insert change request")
	}
	return r.insertItems(ctx, cr.Items)
}

func (r *PgChangeRequestRepository) Update(ctx context.Context, cr *changereq.ChangeRequest) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m, err := ToDBChangeRequest(cr)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, updateRequestQuery,
		m.Status,
		m.RevisionNo,
		m.PayloadBefore,
		m.PayloadAfter,
		m.SummaryDiff,
		m.AuditPatch,
		m.UndertakingConfirmed,
		m.RequestedAt,
		m.ReviewedAt,
		m.ReviewedBy,
		m.ReviewComment,
		m.ID,
	)
	if err != nil {
		if isUniqueViolation(err, singleUnresolvedConstraint) {
			return changereq.ErrDuplicatePending
		}
		return errors.Wrap(err, "failed to update change request")
	}
	if tag.RowsAffected() == 0 {
		return changereq.ErrNotFound
	}
	return nil
}

func (r *PgChangeRequestRepository) ReplaceItems(ctx context.Context, requestID uuid.UUID, items []changereq.ChangeItem) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, deleteItemsQuery, requestID); err != nil {
		return errors.Wrap(err, "failed to delete change items")
	}
	return r.insertItems(ctx, items)
}

func (r *PgChangeRequestRepository) insertItems(ctx context.Context, items []changereq.ChangeItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	itemRows := make([][]interface{}, 0, len(items))
	var depRows [][]interface{}
	for i := range items {
		m, dep, err := ToDBChangeItem(&items[i], i)
		if err != nil {
			return err
		}
		itemRows = append(itemRows, []interface{}{
			m.ID,
			m.RequestID,
			m.EntityType,
			m.EntityID,
			m.FieldKey,
			m.FieldLabel,
			m.OldValue,
			m.NewValue,
			m.Status,
			m.ReviewNote,
			m.Position,
		})
		if dep != nil {
			depRows = append(depRows, []interface{}{
				dep.ItemID,
				dep.Action,
				dep.OrderIndex,
				dep.RelationshipKey,
				dep.AliveStatus,
				dep.HealthStatus,
				dep.FullName,
				dep.PayloadBefore,
				dep.PayloadAfter,
			})
		}
	}

	q, args := repo.BatchInsertQueryN(insertItemsPrefix, itemRows)
	if _, err := tx.Exec(ctx, q, args...); err != nil {
		return errors.Wrap(err, "failed to insert change items")
	}
	if len(depRows) > 0 {
		q, args := repo.BatchInsertQueryN(insertItemDependentsPrefix, depRows)
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return errors.Wrap(err, "failed to insert change item dependents")
		}
	}
	return nil
}

func (r *PgChangeRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, deleteRequestQuery, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete change request")
	}
	if tag.RowsAffected() == 0 {
		return changereq.ErrNotFound
	}
	return nil
}

func (r *PgChangeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*changereq.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := repo.Join(selectRequestQuery, repo.JoinWhere("id = $1"))
	cr, err := scanChangeRequest(tx.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, changereq.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to query change request")
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	cr.Items = items
	return cr, nil
}

func (r *PgChangeRequestRepository) List(ctx context.Context, params *changereq.FindParams) ([]*changereq.ChangeRequest, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	var (
		conditions []string
		args       []interface{}
	)
	if params.BeneficiaryID != 0 {
		args = append(args, params.BeneficiaryID)
		conditions = append(conditions, fmt.Sprintf("beneficiary_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := repo.JoinWhere(conditions...)

	var total int64
	if err := tx.QueryRow(ctx, repo.Join(countRequestsQuery, where), args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count change requests")
	}

	q := repo.Join(
		selectRequestQuery,
		where,
		"ORDER BY requested_at DESC, id",
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to query change requests")
	}
	defer rows.Close()

	var out []*changereq.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, cr)
	}
	return out, total, rows.Err()
}

func (r *PgChangeRequestRepository) NextSubmissionNo(ctx context.Context, beneficiaryID int64) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var next int
	if err := tx.QueryRow(ctx, nextSubmissionNoQuery, beneficiaryID).Scan(&next); err != nil {
		return 0, errors.Wrap(err, "failed to compute next submission number")
	}
	return next, nil
}

func (r *PgChangeRequestRepository) GetItem(ctx context.Context, requestID, itemID uuid.UUID) (*changereq.ChangeItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := repo.Join(selectItemsQuery, repo.JoinWhere("i.request_id = $1", "i.id = $2"))
	item, err := scanChangeItem(tx.QueryRow(ctx, q, requestID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, changereq.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "failed to query change item")
	}
	return item, nil
}

func (r *PgChangeRequestRepository) UpdateItem(ctx context.Context, item *changereq.ChangeItem) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m, _, err := ToDBChangeItem(item, 0)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, updateItemQuery,
		m.Status,
		m.ReviewNote,
		m.ReviewedBy,
		m.ReviewedAt,
		m.ID,
		m.RequestID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update change item")
	}
	if tag.RowsAffected() == 0 {
		return changereq.ErrItemNotFound
	}
	return nil
}

func (r *PgChangeRequestRepository) UpdateItemStatuses(ctx context.Context, requestID uuid.UUID, from []changereq.ItemStatus, to changereq.ItemStatus, reviewerID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	_, err = tx.Exec(ctx, updateItemStatusesQuery, string(to), reviewerID, requestID, fromStrs)
	if err != nil {
		return errors.Wrap(err, "failed to update change item statuses")
	}
	return nil
}

func (r *PgChangeRequestRepository) listItems(ctx context.Context, requestID uuid.UUID) ([]changereq.ChangeItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := repo.Join(selectItemsQuery, repo.JoinWhere("i.request_id = $1"), "ORDER BY i.position")
	rows, err := tx.Query(ctx, q, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query change items")
	}
	defer rows.Close()

	var out []changereq.ChangeItem
	for rows.Next() {
		item, err := scanChangeItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func scanChangeRequest(s scanner) (*changereq.ChangeRequest, error) {
	var m models.ChangeRequest
	if err := s.Scan(
		&m.ID,
		&m.BeneficiaryID,
		&m.UserID,
		&m.ReferenceNumber,
		&m.SubmissionNo,
		&m.RevisionNo,
		&m.Status,
		&m.PayloadBefore,
		&m.PayloadAfter,
		&m.SummaryDiff,
		&m.AuditPatch,
		&m.UndertakingConfirmed,
		&m.RequestedAt,
		&m.ReviewedAt,
		&m.ReviewedBy,
		&m.ReviewComment,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return ToDomainChangeRequest(&m)
}

func scanChangeItem(s scanner) (*changereq.ChangeItem, error) {
	var (
		m   models.ChangeItem
		dep models.ChangeDependent

		action          *string
		orderIndex      *int
		relationshipKey *string
		aliveStatus     *string
		healthStatus    *string
		fullName        *string
	)
	if err := s.Scan(
		&m.ID,
		&m.RequestID,
		&m.EntityType,
		&m.EntityID,
		&m.FieldKey,
		&m.FieldLabel,
		&m.OldValue,
		&m.NewValue,
		&m.Status,
		&m.ReviewNote,
		&m.ReviewedBy,
		&m.ReviewedAt,
		&m.Position,
		&m.CreatedAt,
		&m.UpdatedAt,
		&action,
		&orderIndex,
		&relationshipKey,
		&aliveStatus,
		&healthStatus,
		&fullName,
		&dep.PayloadBefore,
		&dep.PayloadAfter,
	); err != nil {
		return nil, err
	}
	if action == nil {
		return ToDomainChangeItem(&m, nil)
	}
	dep.ItemID = m.ID
	dep.Action = *action
	if orderIndex != nil {
		dep.OrderIndex = *orderIndex
	}
	if relationshipKey != nil {
		dep.RelationshipKey = *relationshipKey
	}
	if aliveStatus != nil {
		dep.AliveStatus = *aliveStatus
	}
	if healthStatus != nil {
		dep.HealthStatus = *healthStatus
	}
	if fullName != nil {
		dep.FullName = *fullName
	}
	return ToDomainChangeItem(&m, &dep)
}

// isUniqueViolation reports a 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
