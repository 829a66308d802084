package viewmodels

// API shapes for the change-request portal. Timestamps are RFC 3339 strings;
// sensitive values are already masked by the mappers.

type Summary struct {
	BeneficiaryChanges int `json:"beneficiary_changes"`
	DependentAdds      int `json:"dependent_adds"`
	DependentUpdates   int `json:"dependent_updates"`
	DependentRemovals  int `json:"dependent_removals"`
}

type FieldChange struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type DependentChange struct {
	Action      string        `json:"action"`
	DependentID int64         `json:"dependent_id,omitempty"`
	FullName    string        `json:"full_name"`
	Fields      []FieldChange `json:"fields,omitempty"`
}

type Diff struct {
	Beneficiary []FieldChange     `json:"beneficiary"`
	Dependents  []DependentChange `json:"dependents"`
	Summary     Summary           `json:"summary"`
}

type ChangeItem struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id,omitempty"`
	FieldKey   string `json:"field_key"`
	FieldLabel string `json:"field_label"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	Status     string `json:"status"`
	ReviewNote string `json:"review_note,omitempty"`
	ReviewedAt string `json:"reviewed_at,omitempty"`
}

type ChangeRequest struct {
	ID              string       `json:"id"`
	BeneficiaryID   int64        `json:"beneficiary_id"`
	ReferenceNumber string       `json:"reference_number"`
	SubmissionNo    int          `json:"submission_no"`
	RevisionNo      int          `json:"revision_no"`
	Status          string       `json:"status"`
	Summary         Summary      `json:"summary"`
	RequestedAt     string       `json:"requested_at"`
	ReviewedAt      string       `json:"reviewed_at,omitempty"`
	ReviewComment   string       `json:"review_comment,omitempty"`
	Items           []ChangeItem `json:"items,omitempty"`
}

type AuditEntry struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	ActorID   int64  `json:"actor_id"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}
