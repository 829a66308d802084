package mappers

import (
	"encoding/json"
	"time"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/presentation/viewmodels"
)

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func SummaryToVM(s changereq.Summary) viewmodels.Summary {
	return viewmodels.Summary{
		BeneficiaryChanges: s.BeneficiaryChanges,
		DependentAdds:      s.DependentAdds,
		DependentUpdates:   s.DependentUpdates,
		DependentRemovals:  s.DependentRemovals,
	}
}

// fieldChangeToVM masks sensitive values on the way out. Stored diffs carry
// decrypted values; nothing past this mapper may.
func fieldChangeToVM(fc changereq.FieldChange, masker sensitive.Service) viewmodels.FieldChange {
	vm := viewmodels.FieldChange{
		Key:    fc.Key,
		Label:  fc.Label,
		Before: fc.Before,
		After:  fc.After,
	}
	if fc.Key == changereq.FieldAadhaar || fc.Key == changereq.DepFieldAadhaar {
		vm.Before = masker.Mask(fc.Before, sensitive.KindAadhaar)
		vm.After = masker.Mask(fc.After, sensitive.KindAadhaar)
	}
	return vm
}

func DiffToVM(d *changereq.Diff, masker sensitive.Service) *viewmodels.Diff {
	vm := &viewmodels.Diff{Summary: SummaryToVM(d.Summary())}
	for _, fc := range d.BeneficiaryFields() {
		vm.Beneficiary = append(vm.Beneficiary, fieldChangeToVM(fc, masker))
	}
	for _, dc := range d.Dependents {
		dvm := viewmodels.DependentChange{
			Action:      string(dc.Action),
			DependentID: dc.DependentID,
		}
		if subject := dc.After; subject != nil {
			dvm.FullName = subject.FullName
		} else if dc.Before != nil {
			dvm.FullName = dc.Before.FullName
		}
		for _, fc := range dc.Fields {
			dvm.Fields = append(dvm.Fields, fieldChangeToVM(fc, masker))
		}
		vm.Dependents = append(vm.Dependents, dvm)
	}
	return vm
}

func ChangeItemToVM(item *changereq.ChangeItem, masker sensitive.Service) viewmodels.ChangeItem {
	vm := viewmodels.ChangeItem{
		ID:         item.ID.String(),
		EntityType: string(item.EntityType),
		FieldKey:   item.FieldKey,
		FieldLabel: item.FieldLabel,
		OldValue:   item.OldValue,
		NewValue:   item.NewValue,
		Status:     string(item.Status),
		ReviewNote: item.ReviewNote,
		ReviewedAt: formatTimePtr(item.ReviewedAt),
	}
	if item.EntityID != nil {
		vm.EntityID = *item.EntityID
	}
	switch {
	case item.FieldKey == changereq.FieldAadhaar:
		vm.OldValue = masker.Mask(item.OldValue, sensitive.KindAadhaar)
		vm.NewValue = masker.Mask(item.NewValue, sensitive.KindAadhaar)
	case item.EntityType == changereq.EntityDependent:
		vm.OldValue = maskDependentPayload(item.OldValue, masker)
		vm.NewValue = maskDependentPayload(item.NewValue, masker)
	}
	return vm
}

// maskDependentPayload rewrites the JSON payload of a dependent item with
// its aadhaar masked. Payloads that fail to decode pass through blanked
// rather than leaking.
func maskDependentPayload(payload string, masker sensitive.Service) string {
	if payload == "" {
		return ""
	}
	var snap changereq.DependentSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return ""
	}
	snap.Aadhaar = masker.Mask(snap.Aadhaar, sensitive.KindAadhaar)
	masked, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	return string(masked)
}

func ChangeRequestToVM(cr *changereq.ChangeRequest, masker sensitive.Service, withItems bool) *viewmodels.ChangeRequest {
	vm := &viewmodels.ChangeRequest{
		ID:              cr.ID.String(),
		BeneficiaryID:   cr.BeneficiaryID,
		ReferenceNumber: cr.ReferenceNumber,
		SubmissionNo:    cr.SubmissionNo,
		RevisionNo:      cr.RevisionNo,
		Status:          string(cr.Status),
		Summary:         SummaryToVM(cr.SummaryDiff),
		RequestedAt:     formatTime(cr.RequestedAt),
		ReviewedAt:      formatTimePtr(cr.ReviewedAt),
		ReviewComment:   cr.ReviewComment,
	}
	if withItems {
		for i := range cr.Items {
			vm.Items = append(vm.Items, ChangeItemToVM(&cr.Items[i], masker))
		}
	}
	return vm
}

func ChangeRequestsToVM(crs []*changereq.ChangeRequest, masker sensitive.Service) []*viewmodels.ChangeRequest {
	out := make([]*viewmodels.ChangeRequest, 0, len(crs))
	for _, cr := range crs {
		out = append(out, ChangeRequestToVM(cr, masker, false))
	}
	return out
}

func AuditEntryToVM(e *changereq.AuditEntry) viewmodels.AuditEntry {
	return viewmodels.AuditEntry{
		ID:        e.ID,
		Action:    e.Action,
		ActorID:   e.ActorID,
		Notes:     e.Notes,
		CreatedAt: formatTime(e.CreatedAt),
	}
}

func AuditEntriesToVM(entries []*changereq.AuditEntry) []viewmodels.AuditEntry {
	out := make([]viewmodels.AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryToVM(e))
	}
	return out
}
