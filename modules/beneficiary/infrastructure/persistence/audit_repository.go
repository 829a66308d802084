package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/infrastructure/persistence/models"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/repo"
)

var insertAuditQuery = repo.Insert(
	"beneficiary_change_audit",
	[]string{"change_request_id", "action", "actor_id", "notes"},
	"id", "created_at",
)

const (
	selectAuditQuery = `
		SELECT id, change_request_id, action, actor_id, notes, created_at
		FROM beneficiary_change_audit
		WHERE change_request_id = $1
		ORDER BY id`
)

// PgAuditRepository is append-only. There is no update or delete path; the
// trail only ever grows.
type PgAuditRepository struct{}

func NewAuditRepository() changereq.AuditRepository {
	return &PgAuditRepository{}
}

func (r *PgAuditRepository) Append(ctx context.Context, entry *changereq.AuditEntry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, insertAuditQuery,
		entry.ChangeRequestID,
		entry.Action,
		entry.ActorID,
		entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}
	return nil
}

func (r *PgAuditRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*changereq.AuditEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectAuditQuery, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close()

	var out []*changereq.AuditEntry
	for rows.Next() {
		var m models.AuditEntry
		if err := rows.Scan(&m.ID, &m.ChangeRequestID, &m.Action, &m.ActorID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ToDomainAuditEntry(&m))
	}
	return out, rows.Err()
}
