package changereq

import (
	"strconv"
	"strings"
)

// FieldChange is one atomic scalar difference.
type FieldChange struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Action classifies a dependent-level change.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// DependentChange is one reconciled dependent difference. For updates,
// Fields lists exactly the tracked fields that differ.
type DependentChange struct {
	Action      Action             `json:"action"`
	DependentID int64              `json:"dependent_id,omitempty"`
	Before      *DependentSnapshot `json:"before,omitempty"`
	After       *DependentSnapshot `json:"after,omitempty"`
	Fields      []FieldChange      `json:"fields,omitempty"`
}

// Diff is the full difference between two beneficiary snapshots.
type Diff struct {
	Beneficiary map[string]FieldChange `json:"beneficiary"`
	Dependents  []DependentChange      `json:"dependents"`
}

// Summary holds the derived change counts. It is only ever produced by
// (*Diff).Summary so the counts cannot drift from the detail.
type Summary struct {
	BeneficiaryChanges int `json:"beneficiary_changes"`
	DependentAdds      int `json:"dependent_adds"`
	DependentUpdates   int `json:"dependent_updates"`
	DependentRemovals  int `json:"dependent_removals"`
}

func (d *Diff) Summary() Summary {
	s := Summary{BeneficiaryChanges: len(d.Beneficiary)}
	for _, dc := range d.Dependents {
		switch dc.Action {
		case ActionAdd:
			s.DependentAdds++
		case ActionUpdate:
			s.DependentUpdates++
		case ActionRemove:
			s.DependentRemovals++
		}
	}
	return s
}

func (d *Diff) Empty() bool {
	return len(d.Beneficiary) == 0 && len(d.Dependents) == 0
}

// BeneficiaryFields returns the beneficiary changes in tracked-field order
// so item creation and rendering are deterministic.
func (d *Diff) BeneficiaryFields() []FieldChange {
	var snapshot BeneficiarySnapshot
	out := make([]FieldChange, 0, len(d.Beneficiary))
	for _, f := range snapshot.trackedFields() {
		if fc, ok := d.Beneficiary[f.Key]; ok {
			out = append(out, fc)
		}
	}
	return out
}

// Compute diffs a submitted snapshot against the canonical baseline.
//
// Beneficiary scalars produce one FieldChange per tracked field whose
// normalized values differ. Dependents are matched by primary key only:
// after-entries without an id become adds, before-entries without a matching
// after become removes, matched pairs with differing tracked fields become
// updates. A pure reordering of dependents is a no-op since order is not a
// tracked field.
func Compute(before, after *BeneficiarySnapshot) *Diff {
	diff := &Diff{Beneficiary: make(map[string]FieldChange)}

	beforeFields := before.trackedFields()
	afterFields := after.trackedFields()
	for i, b := range beforeFields {
		a := afterFields[i]
		if !equalNormalized(b.Value, a.Value) {
			diff.Beneficiary[b.Key] = FieldChange{
				Key:    b.Key,
				Label:  b.Label,
				Before: b.Value,
				After:  a.Value,
			}
		}
	}

	diff.Dependents = reconcileDependents(before.Dependents, after.Dependents)
	return diff
}

func reconcileDependents(before, after []DependentSnapshot) []DependentChange {
	var changes []DependentChange

	matched := make(map[int64]bool, len(before))
	byID := make(map[int64]*DependentSnapshot, len(before))
	for i := range before {
		byID[before[i].ID] = &before[i]
	}

	for i := range after {
		a := &after[i]
		if a.ID == 0 {
			changes = append(changes, DependentChange{Action: ActionAdd, After: a})
			continue
		}
		b, ok := byID[a.ID]
		if !ok {
			// An id the canonical list does not contain: treat as an add
			// request for a row the reviewer can still reject.
			changes = append(changes, DependentChange{Action: ActionAdd, After: a})
			continue
		}
		matched[a.ID] = true
		if fields := dependentFieldChanges(b, a); len(fields) > 0 {
			changes = append(changes, DependentChange{
				Action:      ActionUpdate,
				DependentID: a.ID,
				Before:      b,
				After:       a,
				Fields:      fields,
			})
		}
	}

	for i := range before {
		b := &before[i]
		if !matched[b.ID] {
			changes = append(changes, DependentChange{
				Action:      ActionRemove,
				DependentID: b.ID,
				Before:      b,
			})
		}
	}

	return changes
}

func dependentFieldChanges(before, after *DependentSnapshot) []FieldChange {
	beforeFields := before.trackedFields()
	afterFields := after.trackedFields()

	var out []FieldChange
	for i, b := range beforeFields {
		a := afterFields[i]
		if !equalNormalized(b.Value, a.Value) {
			out = append(out, FieldChange{Key: b.Key, Label: b.Label, Before: b.Value, After: a.Value})
		}
	}
	return out
}

// equalNormalized compares display values after trimming, treating empty
// strings as equal to each other regardless of origin (null vs ""), and
// numeric strings by value so "07" equals "7".
func equalNormalized(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	if na, err := strconv.ParseFloat(a, 64); err == nil {
		if nb, err := strconv.ParseFloat(b, 64); err == nil {
			return na == nb
		}
	}
	return false
}
