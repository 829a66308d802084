package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
)

func TestSubmit_SingleFieldChange(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"

	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)

	require.Equal(t, changereq.StatusPending, cr.Status)
	require.Equal(t, 1, cr.SubmissionNo)
	require.Equal(t, 1, cr.RevisionNo)
	require.Equal(t, fmt.Sprintf("CR-%d-000101-01", time.Now().Year()), cr.ReferenceNumber)
	require.Len(t, cr.Items, 1)
	require.Equal(t, changereq.FieldMobile, cr.Items[0].FieldKey)
	require.Equal(t, "9812345678", cr.Items[0].OldValue)
	require.Equal(t, "9899999999", cr.Items[0].NewValue)
	require.Equal(t, changereq.ItemPending, cr.Items[0].Status)
	require.NotEmpty(t, cr.AuditPatch)

	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.True(t, bene.PendingReview)
	require.Equal(t, "pending", bene.LastRequestStatus)
	// Canonical scalars stay untouched until a merge.
	require.Equal(t, "9812345678", bene.Mobile)
	require.Equal(t, int64(3), bene.Version)

	require.Equal(t, []string{changereq.AuditSubmitted}, e.audit.Actions(cr.ID))
}

func TestSubmit_NoChangesRejected(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)

	_, err := e.submissions.Submit(submitterCtx(7, 101), 101, baselineDTO())
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSubmit_UndertakingRequired(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	dto.UndertakingConfirmed = false

	_, err := e.submissions.Submit(submitterCtx(7, 101), 101, dto)
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "undertaking_confirmed", verr.Field)
}

func TestSubmit_PRANRequiredForNPS(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)

	dto := baselineDTO()
	dto.Category = "nps"
	dto.PRAN = ""

	_, err := e.submissions.Submit(submitterCtx(7, 101), 101, dto)
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSubmit_SecondPendingRejected(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	_, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)

	dto2 := baselineDTO()
	dto2.Email = "asha.k@example.org"
	_, err = e.submissions.Submit(ctx, 101, dto2)
	require.ErrorIs(t, err, changereq.ErrDuplicatePending)
}

func TestSubmit_ConcurrentSubmissionsExactlyOneWins(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dto := baselineDTO()
			dto.Mobile = "9899999999"
			_, errs[i] = e.submissions.Submit(ctx, 101, dto)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, changereq.ErrDuplicatePending)
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestSubmit_ConcurrentDraftsKeepReferenceNumbersUnique(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	// Drafts do not hold the single-pending slot, so only the
	// submission number uniqueness keeps their references apart.
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	refs := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dto := baselineDTO()
			dto.Mobile = "9899999999"
			dto.Draft = true
			dto.UndertakingConfirmed = false
			cr, err := e.submissions.Submit(ctx, 101, dto)
			errs[i] = err
			if err == nil {
				refs[i] = cr.ReferenceNumber
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	succeeded := 0
	for i, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, changereq.ErrSubmissionConflict)
			continue
		}
		succeeded++
		require.False(t, seen[refs[i]], "reference number %s issued twice", refs[i])
		seen[refs[i]] = true
	}
	require.GreaterOrEqual(t, succeeded, 1)
}

func TestSubmit_DraftDoesNotBlockOrFlag(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	draft := baselineDTO()
	draft.Mobile = "9899999999"
	draft.Draft = true
	draft.UndertakingConfirmed = false

	cr, err := e.submissions.Submit(ctx, 101, draft)
	require.NoError(t, err)
	require.Equal(t, changereq.StatusDraft, cr.Status)

	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.False(t, bene.PendingReview)

	// A draft does not hold the single-pending slot.
	dto := baselineDTO()
	dto.Email = "asha.k@example.org"
	_, err = e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)
}

func TestDiscardDraft(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	draft := baselineDTO()
	draft.Mobile = "9899999999"
	draft.Draft = true
	cr, err := e.submissions.Submit(ctx, 101, draft)
	require.NoError(t, err)

	require.NoError(t, e.submissions.DiscardDraft(ctx, cr.ID))
	_, err = e.submissions.GetOwn(ctx, cr.ID)
	require.ErrorIs(t, err, changereq.ErrNotFound)
}

func TestDiscardDraft_OnlyDrafts(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)

	err = e.submissions.DiscardDraft(ctx, cr.ID)
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGetOwn_RejectsForeignRequest(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	cr, err := e.submissions.Submit(submitterCtx(7, 101), 101, dto)
	require.NoError(t, err)

	_, err = e.submissions.GetOwn(submitterCtx(8, 202), cr.ID)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestPreview_DoesNotPersist(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	dto.Dependents = append(dto.Dependents, DependentDTO{
		FullName:     "Meera Kulkarni",
		Relationship: "daughter",
		Gender:       "Female",
		DateOfBirth:  "20-01-2015",
		AliveStatus:  "Alive",
	})

	diff, err := e.submissions.Preview(ctx, 101, dto)
	require.NoError(t, err)
	require.Equal(t, 1, diff.Summary().BeneficiaryChanges)
	require.Equal(t, 1, diff.Summary().DependentAdds)

	list, total, err := e.submissions.ListOwn(ctx, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, list)
}

func TestResubmit_AfterNeedsInfo(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)

	_, err = e.reviews.ReviewRequest(reviewerCtx(900), cr.ID, changereq.StatusNeedsInfo, "mobile looks wrong, please confirm")
	require.NoError(t, err)

	dto2 := baselineDTO()
	dto2.Mobile = "9877777777"
	updated, err := e.submissions.Resubmit(ctx, cr.ID, dto2)
	require.NoError(t, err)

	require.Equal(t, changereq.StatusPending, updated.Status)
	require.Equal(t, 2, updated.RevisionNo)
	require.Equal(t, 1, updated.SubmissionNo)
	require.Len(t, updated.Items, 1)
	require.Equal(t, "9877777777", updated.Items[0].NewValue)
	require.Nil(t, updated.ReviewedAt)
	require.Empty(t, updated.ReviewComment)
	require.Contains(t, e.audit.Actions(cr.ID), changereq.AuditResubmitted)
}

func TestResubmit_TerminalRequestRefused(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)

	_, err = e.reviews.ReviewRequest(reviewerCtx(900), cr.ID, changereq.StatusRejected, "not acceptable")
	require.NoError(t, err)

	_, err = e.submissions.Resubmit(ctx, cr.ID, dto)
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestListOwn_FiltersByOwner(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	_, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)

	list, total, err := e.submissions.ListOwn(ctx, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, list, 1)

	other, total, err := e.submissions.ListOwn(submitterCtx(8, 202), 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, other)
}
