package persistence

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/infrastructure/persistence/models"
)

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func int64Ptr(i sql.NullInt64) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}

func ToDomainBeneficiary(m *models.Beneficiary) *beneficiary.Beneficiary {
	b := &beneficiary.Beneficiary{
		ID:                    m.ID,
		UserID:                m.UserID,
		FirstName:             m.FirstName,
		MiddleName:            m.MiddleName,
		LastName:              m.LastName,
		Gender:                m.Gender,
		BloodGroup:            m.BloodGroup,
		Email:                 m.Email,
		Mobile:                m.Mobile,
		Category:              beneficiary.Category(m.Category),
		PRAN:                  m.PRAN,
		AadhaarCipher:         m.AadhaarCipher,
		AadhaarMasked:         m.AadhaarMasked,
		Version:               m.Version,
		PendingReview:         m.PendingReview,
		LastRequestStatus:     m.LastRequestStatus,
		LastRequestReviewedAt: timePtr(m.LastRequestReviewedAt),
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.DateOfBirth.Valid {
		b.DateOfBirth = m.DateOfBirth.Time
	}
	if m.LastChangeRequestID.Valid {
		id := m.LastChangeRequestID.UUID
		b.LastChangeRequestID = &id
	}
	return b
}

func ToDBBeneficiary(b *beneficiary.Beneficiary) *models.Beneficiary {
	m := &models.Beneficiary{
		ID:                    b.ID,
		UserID:                b.UserID,
		FirstName:             b.FirstName,
		MiddleName:            b.MiddleName,
		LastName:              b.LastName,
		Gender:                b.Gender,
		BloodGroup:            b.BloodGroup,
		Email:                 b.Email,
		Mobile:                b.Mobile,
		Category:              string(b.Category),
		PRAN:                  b.PRAN,
		AadhaarCipher:         b.AadhaarCipher,
		AadhaarMasked:         b.AadhaarMasked,
		Version:               b.Version,
		PendingReview:         b.PendingReview,
		LastRequestStatus:     b.LastRequestStatus,
		LastRequestReviewedAt: nullTime(b.LastRequestReviewedAt),
	}
	if !b.DateOfBirth.IsZero() {
		m.DateOfBirth = sql.NullTime{Time: b.DateOfBirth, Valid: true}
	}
	if b.LastChangeRequestID != nil {
		m.LastChangeRequestID = uuid.NullUUID{UUID: *b.LastChangeRequestID, Valid: true}
	}
	return m
}

func ToDomainDependent(m *models.Dependent) *beneficiary.Dependent {
	d := &beneficiary.Dependent{
		ID:              m.ID,
		BeneficiaryID:   m.BeneficiaryID,
		FullName:        m.FullName,
		RelationshipKey: m.RelationshipKey,
		Gender:          m.Gender,
		BloodGroup:      m.BloodGroup,
		AliveStatus:     m.AliveStatus,
		HealthDependent: m.HealthDependent,
		AadhaarCipher:   m.AadhaarCipher,
		AadhaarMasked:   m.AadhaarMasked,
		DependantOrder:  m.DependantOrder,
		TwinGroup:       m.TwinGroup,
		DeletedAt:       timePtr(m.DeletedAt),
		DeletedBy:       int64Ptr(m.DeletedBy),
		RestoredAt:      timePtr(m.RestoredAt),
		RestoredBy:      int64Ptr(m.RestoredBy),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.DateOfBirth.Valid {
		d.DateOfBirth = m.DateOfBirth.Time
	}
	return d
}

func ToDBDependent(d *beneficiary.Dependent) *models.Dependent {
	m := &models.Dependent{
		ID:              d.ID,
		BeneficiaryID:   d.BeneficiaryID,
		FullName:        d.FullName,
		RelationshipKey: d.RelationshipKey,
		Gender:          d.Gender,
		BloodGroup:      d.BloodGroup,
		AliveStatus:     d.AliveStatus,
		HealthDependent: d.HealthDependent,
		AadhaarCipher:   d.AadhaarCipher,
		AadhaarMasked:   d.AadhaarMasked,
		DependantOrder:  d.DependantOrder,
		TwinGroup:       d.TwinGroup,
		DeletedAt:       nullTime(d.DeletedAt),
		DeletedBy:       nullInt64(d.DeletedBy),
		RestoredAt:      nullTime(d.RestoredAt),
		RestoredBy:      nullInt64(d.RestoredBy),
	}
	if !d.DateOfBirth.IsZero() {
		m.DateOfBirth = sql.NullTime{Time: d.DateOfBirth, Valid: true}
	}
	return m
}

func ToDomainChangeRequest(m *models.ChangeRequest) (*changereq.ChangeRequest, error) {
	cr := &changereq.ChangeRequest{
		ID:                   m.ID,
		BeneficiaryID:        m.BeneficiaryID,
		UserID:               m.UserID,
		ReferenceNumber:      m.ReferenceNumber,
		SubmissionNo:         m.SubmissionNo,
		RevisionNo:           m.RevisionNo,
		Status:               changereq.RequestStatus(m.Status),
		AuditPatch:           json.RawMessage(m.AuditPatch),
		UndertakingConfirmed: m.UndertakingConfirmed,
		RequestedAt:          m.RequestedAt,
		ReviewedAt:           timePtr(m.ReviewedAt),
		ReviewedBy:           int64Ptr(m.ReviewedBy),
		ReviewComment:        m.ReviewComment,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
	if err := json.Unmarshal(m.PayloadBefore, &cr.PayloadBefore); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload_before")
	}
	if err := json.Unmarshal(m.PayloadAfter, &cr.PayloadAfter); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload_after")
	}
	if err := json.Unmarshal(m.SummaryDiff, &cr.SummaryDiff); err != nil {
		return nil, errors.Wrap(err, "failed to decode summary_diff")
	}
	return cr, nil
}

func ToDBChangeRequest(cr *changereq.ChangeRequest) (*models.ChangeRequest, error) {
	before, err := json.Marshal(cr.PayloadBefore)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload_before")
	}
	after, err := json.Marshal(cr.PayloadAfter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload_after")
	}
	summary, err := json.Marshal(cr.SummaryDiff)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode summary_diff")
	}
	return &models.ChangeRequest{
		ID:                   cr.ID,
		BeneficiaryID:        cr.BeneficiaryID,
		UserID:               cr.UserID,
		ReferenceNumber:      cr.ReferenceNumber,
		SubmissionNo:         cr.SubmissionNo,
		RevisionNo:           cr.RevisionNo,
		Status:               string(cr.Status),
		PayloadBefore:        before,
		PayloadAfter:         after,
		SummaryDiff:          summary,
		AuditPatch:           []byte(cr.AuditPatch),
		UndertakingConfirmed: cr.UndertakingConfirmed,
		RequestedAt:          cr.RequestedAt,
		ReviewedAt:           nullTime(cr.ReviewedAt),
		ReviewedBy:           nullInt64(cr.ReviewedBy),
		ReviewComment:        cr.ReviewComment,
	}, nil
}

func ToDomainChangeItem(m *models.ChangeItem, dep *models.ChangeDependent) (*changereq.ChangeItem, error) {
	item := &changereq.ChangeItem{
		ID:         m.ID,
		RequestID:  m.RequestID,
		EntityType: changereq.EntityType(m.EntityType),
		EntityID:   int64Ptr(m.EntityID),
		FieldKey:   m.FieldKey,
		FieldLabel: m.FieldLabel,
		OldValue:   m.OldValue,
		NewValue:   m.NewValue,
		Status:     changereq.ItemStatus(m.Status),
		ReviewNote: m.ReviewNote,
		ReviewedBy: int64Ptr(m.ReviewedBy),
		ReviewedAt: timePtr(m.ReviewedAt),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if dep != nil {
		record := &changereq.DependentRecord{
			ItemID:          dep.ItemID,
			Action:          changereq.Action(dep.Action),
			OrderIndex:      dep.OrderIndex,
			RelationshipKey: dep.RelationshipKey,
			AliveStatus:     dep.AliveStatus,
			HealthStatus:    dep.HealthStatus,
			FullName:        dep.FullName,
		}
		if len(dep.PayloadBefore) > 0 {
			record.PayloadBefore = &changereq.DependentSnapshot{}
			if err := json.Unmarshal(dep.PayloadBefore, record.PayloadBefore); err != nil {
				return nil, errors.Wrap(err, "failed to decode dependent payload_before")
			}
		}
		if len(dep.PayloadAfter) > 0 {
			record.PayloadAfter = &changereq.DependentSnapshot{}
			if err := json.Unmarshal(dep.PayloadAfter, record.PayloadAfter); err != nil {
				return nil, errors.Wrap(err, "failed to decode dependent payload_after")
			}
		}
		item.Dependent = record
	}
	return item, nil
}

func ToDBChangeItem(item *changereq.ChangeItem, position int) (*models.ChangeItem, *models.ChangeDependent, error) {
	m := &models.ChangeItem{
		ID:         item.ID,
		RequestID:  item.RequestID,
		EntityType: string(item.EntityType),
		EntityID:   nullInt64(item.EntityID),
		FieldKey:   item.FieldKey,
		FieldLabel: item.FieldLabel,
		OldValue:   item.OldValue,
		NewValue:   item.NewValue,
		Status:     string(item.Status),
		ReviewNote: item.ReviewNote,
		ReviewedBy: nullInt64(item.ReviewedBy),
		ReviewedAt: nullTime(item.ReviewedAt),
		Position:   position,
	}
	if item.Dependent == nil {
		return m, nil, nil
	}

	dep := &models.ChangeDependent{
		ItemID:          item.ID,
		Action:          string(item.Dependent.Action),
		OrderIndex:      item.Dependent.OrderIndex,
		RelationshipKey: item.Dependent.RelationshipKey,
		AliveStatus:     item.Dependent.AliveStatus,
		HealthStatus:    item.Dependent.HealthStatus,
		FullName:        item.Dependent.FullName,
	}
	if item.Dependent.PayloadBefore != nil {
		raw, err := json.Marshal(item.Dependent.PayloadBefore)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to encode dependent payload_before")
		}
		dep.PayloadBefore = raw
	}
	if item.Dependent.PayloadAfter != nil {
		raw, err := json.Marshal(item.Dependent.PayloadAfter)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to encode dependent payload_after")
		}
		dep.PayloadAfter = raw
	}
	return m, dep, nil
}

// scanner is the shared subset of pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBeneficiary(s scanner) (*beneficiary.Beneficiary, error) {
	var m models.Beneficiary
	if err := s.Scan(
		&m.ID,
		&m.UserID,
		&m.FirstName,
		&m.MiddleName,
		&m.LastName,
		&m.Gender,
		&m.DateOfBirth,
		&m.BloodGroup,
		&m.Email,
		&m.Mobile,
		&m.Category,
		&m.PRAN,
		&m.AadhaarCipher,
		&m.AadhaarMasked,
		&m.Version,
		&m.PendingReview,
		&m.LastChangeRequestID,
		&m.LastRequestStatus,
		&m.LastRequestReviewedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return ToDomainBeneficiary(&m), nil
}

func scanDependent(s scanner) (*beneficiary.Dependent, error) {
	var m models.Dependent
	if err := s.Scan(
		&m.ID,
		&m.BeneficiaryID,
		&m.FullName,
		&m.RelationshipKey,
		&m.Gender,
		&m.BloodGroup,
		&m.DateOfBirth,
		&m.AliveStatus,
		&m.HealthDependent,
		&m.AadhaarCipher,
		&m.AadhaarMasked,
		&m.DependantOrder,
		&m.TwinGroup,
		&m.DeletedAt,
		&m.DeletedBy,
		&m.RestoredAt,
		&m.RestoredBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return ToDomainDependent(&m), nil
}

func ToDomainAuditEntry(m *models.AuditEntry) *changereq.AuditEntry {
	return &changereq.AuditEntry{
		ID:              m.ID,
		ChangeRequestID: m.ChangeRequestID,
		Action:          m.Action,
		ActorID:         m.ActorID,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}
}
