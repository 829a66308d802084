// Package testkit provides in-memory collaborators for exercising the
// beneficiary module without a database. The repositories are internally
// synchronized and honor the same contracts as their SQL counterparts,
// including the single-unresolved-request invariant.
package testkit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
)

// PassthroughTransactor runs the closure directly, no transaction involved.
type PassthroughTransactor struct{}

func (PassthroughTransactor) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// Sensitive is a reversible stand-in for the AES-GCM service.
type Sensitive struct{}

func (Sensitive) Encrypt(value string) (string, error) { return "enc:" + value, nil }

func (Sensitive) Decrypt(ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

func (Sensitive) Mask(value string, _ sensitive.Kind) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "XXXX"
	}
	return "XXXX-XXXX-" + value[len(value)-4:]
}

type BeneficiaryRepo struct {
	mu         sync.Mutex
	rows       map[int64]*beneficiary.Beneficiary
	dependents map[int64]*beneficiary.Dependent
	nextDepID  int64
}

func NewBeneficiaryRepo() *BeneficiaryRepo {
	return &BeneficiaryRepo{
		rows:       map[int64]*beneficiary.Beneficiary{},
		dependents: map[int64]*beneficiary.Dependent{},
		nextDepID:  1,
	}
}

// Seed installs a beneficiary and its dependents, assigning dependent ids
// where missing.
func (r *BeneficiaryRepo) Seed(b *beneficiary.Beneficiary, deps ...*beneficiary.Dependent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *b
	r.rows[b.ID] = &clone
	for _, d := range deps {
		if d.ID == 0 {
			d.ID = r.nextDepID
		}
		if d.ID >= r.nextDepID {
			r.nextDepID = d.ID + 1
		}
		dc := *d
		r.dependents[d.ID] = &dc
	}
}

func (r *BeneficiaryRepo) GetByID(_ context.Context, id int64) (*beneficiary.Beneficiary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, beneficiary.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *BeneficiaryRepo) GetByIDForUpdate(ctx context.Context, id int64) (*beneficiary.Beneficiary, error) {
	return r.GetByID(ctx, id)
}

// Update persists profile fields and the version. Review-state columns are
// owned by SetReviewState, mirroring the SQL repository.
func (r *BeneficiaryRepo) Update(_ context.Context, b *beneficiary.Beneficiary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[b.ID]
	if !ok {
		return beneficiary.ErrNotFound
	}
	clone := *b
	clone.PendingReview = row.PendingReview
	clone.LastChangeRequestID = row.LastChangeRequestID
	clone.LastRequestStatus = row.LastRequestStatus
	clone.LastRequestReviewedAt = row.LastRequestReviewedAt
	r.rows[b.ID] = &clone
	return nil
}

func (r *BeneficiaryRepo) SetReviewState(_ context.Context, id int64, state beneficiary.ReviewState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return beneficiary.ErrNotFound
	}
	row.PendingReview = state.PendingReview
	row.LastChangeRequestID = state.LastChangeRequestID
	row.LastRequestStatus = state.LastRequestStatus
	row.LastRequestReviewedAt = state.LastRequestReviewedAt
	return nil
}

func (r *BeneficiaryRepo) ListActiveDependents(_ context.Context, beneficiaryID int64) ([]*beneficiary.Dependent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*beneficiary.Dependent
	for _, d := range r.dependents {
		if d.BeneficiaryID == beneficiaryID && !d.Deleted() {
			clone := *d
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DependantOrder < out[j].DependantOrder })
	return out, nil
}

func (r *BeneficiaryRepo) GetDependent(_ context.Context, id int64) (*beneficiary.Dependent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dependents[id]
	if !ok {
		return nil, beneficiary.ErrDependentNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *BeneficiaryRepo) InsertDependent(_ context.Context, d *beneficiary.Dependent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *d
	clone.ID = r.nextDepID
	r.nextDepID++
	r.dependents[clone.ID] = &clone
	return clone.ID, nil
}

func (r *BeneficiaryRepo) UpdateDependent(_ context.Context, d *beneficiary.Dependent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dependents[d.ID]; !ok {
		return beneficiary.ErrDependentNotFound
	}
	clone := *d
	r.dependents[d.ID] = &clone
	return nil
}

func (r *BeneficiaryRepo) SoftDeleteDependent(_ context.Context, id int64, actorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dependents[id]
	if !ok {
		return beneficiary.ErrDependentNotFound
	}
	now := time.Now()
	d.DeletedAt = &now
	d.DeletedBy = &actorID
	return nil
}

func (r *BeneficiaryRepo) RestoreDependent(_ context.Context, id int64, actorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dependents[id]
	if !ok || d.DeletedAt == nil {
		return beneficiary.ErrDependentNotFound
	}
	now := time.Now()
	d.DeletedAt = nil
	d.DeletedBy = nil
	d.RestoredAt = &now
	d.RestoredBy = &actorID
	return nil
}

func (r *BeneficiaryRepo) NextDependantOrder(_ context.Context, beneficiaryID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, d := range r.dependents {
		if d.BeneficiaryID == beneficiaryID && d.DependantOrder > max {
			max = d.DependantOrder
		}
	}
	return max + 1, nil
}

type RequestRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*changereq.ChangeRequest
}

func NewRequestRepo() *RequestRepo {
	return &RequestRepo{rows: map[uuid.UUID]*changereq.ChangeRequest{}}
}

func cloneRequest(cr *changereq.ChangeRequest) *changereq.ChangeRequest {
	clone := *cr
	clone.Items = make([]changereq.ChangeItem, len(cr.Items))
	copy(clone.Items, cr.Items)
	return &clone
}

func (r *RequestRepo) Create(_ context.Context, cr *changereq.ChangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cr.Status == changereq.StatusPending || cr.Status == changereq.StatusNeedsInfo {
		for _, row := range r.rows {
			if row.BeneficiaryID == cr.BeneficiaryID && row.Unresolved() {
				return changereq.ErrDuplicatePending
			}
		}
	}
	for _, row := range r.rows {
		if row.BeneficiaryID == cr.BeneficiaryID && row.SubmissionNo == cr.SubmissionNo {
			return changereq.ErrSubmissionConflict
		}
	}
	r.rows[cr.ID] = cloneRequest(cr)
	return nil
}

func (r *RequestRepo) Update(_ context.Context, cr *changereq.ChangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[cr.ID]
	if !ok {
		return changereq.ErrNotFound
	}
	clone := cloneRequest(cr)
	clone.Items = existing.Items
	r.rows[cr.ID] = clone
	return nil
}

func (r *RequestRepo) ReplaceItems(_ context.Context, requestID uuid.UUID, items []changereq.ChangeItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[requestID]
	if !ok {
		return changereq.ErrNotFound
	}
	row.Items = make([]changereq.ChangeItem, len(items))
	copy(row.Items, items)
	return nil
}

func (r *RequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return changereq.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *RequestRepo) GetByID(_ context.Context, id uuid.UUID) (*changereq.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, changereq.ErrNotFound
	}
	return cloneRequest(row), nil
}

func (r *RequestRepo) List(_ context.Context, params *changereq.FindParams) ([]*changereq.ChangeRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*changereq.ChangeRequest
	for _, row := range r.rows {
		if params.BeneficiaryID != 0 && row.BeneficiaryID != params.BeneficiaryID {
			continue
		}
		if params.Status != "" && row.Status != params.Status {
			continue
		}
		out = append(out, cloneRequest(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	total := int64(len(out))
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			out = nil
		} else {
			out = out[params.Offset:]
		}
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, total, nil
}

func (r *RequestRepo) NextSubmissionNo(_ context.Context, beneficiaryID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, row := range r.rows {
		if row.BeneficiaryID == beneficiaryID && row.SubmissionNo > max {
			max = row.SubmissionNo
		}
	}
	return max + 1, nil
}

func (r *RequestRepo) GetItem(_ context.Context, requestID, itemID uuid.UUID) (*changereq.ChangeItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[requestID]
	if !ok {
		return nil, changereq.ErrNotFound
	}
	for i := range row.Items {
		if row.Items[i].ID == itemID {
			clone := row.Items[i]
			return &clone, nil
		}
	}
	return nil, changereq.ErrItemNotFound
}

func (r *RequestRepo) UpdateItem(_ context.Context, item *changereq.ChangeItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[item.RequestID]
	if !ok {
		return changereq.ErrNotFound
	}
	for i := range row.Items {
		if row.Items[i].ID == item.ID {
			row.Items[i] = *item
			return nil
		}
	}
	return changereq.ErrItemNotFound
}

func (r *RequestRepo) UpdateItemStatuses(_ context.Context, requestID uuid.UUID, from []changereq.ItemStatus, to changereq.ItemStatus, reviewerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[requestID]
	if !ok {
		return changereq.ErrNotFound
	}
	now := time.Now()
	for i := range row.Items {
		for _, f := range from {
			if row.Items[i].Status == f {
				row.Items[i].Status = to
				row.Items[i].ReviewedBy = &reviewerID
				row.Items[i].ReviewedAt = &now
				break
			}
		}
	}
	return nil
}

type AuditRepo struct {
	mu      sync.Mutex
	entries []*changereq.AuditEntry
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Append(_ context.Context, entry *changereq.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	clone.ID = int64(len(r.entries) + 1)
	clone.CreatedAt = time.Now()
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *AuditRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*changereq.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*changereq.AuditEntry
	for _, e := range r.entries {
		if e.ChangeRequestID == requestID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

// Actions projects the trail of one request to its action names, in append
// order.
func (r *AuditRepo) Actions(requestID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.ChangeRequestID == requestID {
			out = append(out, e.Action)
		}
	}
	return out
}
