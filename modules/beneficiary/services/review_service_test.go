package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
)

// submitChange seeds a pending request with a mobile change plus a dependent
// add, the mixed shape most review tests want.
func submitChange(t *testing.T, e *env) *changereq.ChangeRequest {
	t.Helper()
	dto := baselineDTO()
	dto.Mobile = "9899999999"
	dto.Dependents = append(dto.Dependents, DependentDTO{
		FullName:     "Meera Kulkarni",
		Relationship: "daughter",
		Gender:       "Female",
		DateOfBirth:  "20-01-2015",
		AliveStatus:  "Alive",
	})
	cr, err := e.submissions.Submit(submitterCtx(7, 101), 101, dto)
	require.NoError(t, err)
	return cr
}

func approveAllItems(t *testing.T, e *env, ctx context.Context, cr *changereq.ChangeRequest) {
	t.Helper()
	for _, item := range cr.Items {
		_, err := e.reviews.ReviewItem(ctx, cr.ID, item.ID, changereq.ItemApproved, "")
		require.NoError(t, err)
	}
}

func TestReviewItem_DecideAndReset(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	item, err := e.reviews.ReviewItem(ctx, cr.ID, cr.Items[0].ID, changereq.ItemRejected, "typo in number")
	require.NoError(t, err)
	require.Equal(t, changereq.ItemRejected, item.Status)
	require.Equal(t, "typo in number", item.ReviewNote)
	require.NotNil(t, item.ReviewedBy)

	// Decisions stay revisable until the request resolves.
	item, err = e.reviews.ReviewItem(ctx, cr.ID, item.ID, changereq.ItemPending, "")
	require.NoError(t, err)
	require.Equal(t, changereq.ItemPending, item.Status)
	require.Nil(t, item.ReviewedBy)

	item, err = e.reviews.ReviewItem(ctx, cr.ID, item.ID, changereq.ItemApproved, "")
	require.NoError(t, err)
	require.Equal(t, changereq.ItemApproved, item.Status)
}

func TestReviewItem_NeedsInfoRequiresNote(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)

	_, err := e.reviews.ReviewItem(reviewerCtx(900), cr.ID, cr.Items[0].ID, changereq.ItemNeedsInfo, "")
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "note", verr.Field)
}

func TestReviewItem_RequiresPermission(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)

	_, err := e.reviews.ReviewItem(submitterCtx(7, 101), cr.ID, cr.Items[0].ID, changereq.ItemApproved, "")
	require.ErrorIs(t, err, composables.ErrForbidden)
}

func TestApprove_RefusedWhileItemsUnresolved(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	_, err := e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusApproved, "")
	var agg *changereq.AggregateIncompleteError
	require.ErrorAs(t, err, &agg)
	require.Equal(t, len(cr.Items), agg.Remaining)

	// A rejected item blocks approval even with everything else approved.
	for _, item := range cr.Items[1:] {
		_, err := e.reviews.ReviewItem(ctx, cr.ID, item.ID, changereq.ItemApproved, "")
		require.NoError(t, err)
	}
	_, err = e.reviews.ReviewItem(ctx, cr.ID, cr.Items[0].ID, changereq.ItemRejected, "no")
	require.NoError(t, err)

	_, err = e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusApproved, "")
	require.ErrorAs(t, err, &agg)
	require.Zero(t, agg.Remaining)
	require.Equal(t, 1, agg.Rejected)
}

func TestApprove_MergesIntoCanonical(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	approveAllItems(t, e, ctx, cr)
	decided, err := e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusApproved, "all good")
	require.NoError(t, err)
	require.Equal(t, changereq.StatusApproved, decided.Status)

	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.Equal(t, "9899999999", bene.Mobile)
	// One merge advances the version by exactly one, however many items.
	require.EqualValues(t, 4, bene.Version)
	require.False(t, bene.PendingReview)
	require.Equal(t, "approved", bene.LastRequestStatus)
	require.NotNil(t, bene.LastRequestReviewedAt)

	deps, err := e.beneficiaries.ListActiveDependents(ctx, 101)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	require.Equal(t, "Meera Kulkarni", deps[1].FullName)
	require.Equal(t, 2, deps[1].DependantOrder)

	actions := e.audit.Actions(cr.ID)
	require.Contains(t, actions, changereq.AuditApproved)
	require.Contains(t, actions, changereq.AuditMerged)
}

func TestApprove_ReencryptsAadhaar(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Aadhaar = "999988887777"
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)
	require.Len(t, cr.Items, 1)
	require.Equal(t, changereq.FieldAadhaar, cr.Items[0].FieldKey)
	// The item carries the decrypted value; masking happens at the edge.
	require.Equal(t, "123412341234", cr.Items[0].OldValue)

	rctx := reviewerCtx(900)
	approveAllItems(t, e, rctx, cr)
	_, err = e.reviews.ReviewRequest(rctx, cr.ID, changereq.StatusApproved, "")
	require.NoError(t, err)

	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.Equal(t, "enc:999988887777", bene.AadhaarCipher)
	require.Equal(t, "XXXX-XXXX-7777", bene.AadhaarMasked)
}

func TestApprove_RemovalSoftDeletes(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Dependents = nil
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)
	require.Len(t, cr.Items, 1)
	require.Equal(t, changereq.ActionRemove, cr.Items[0].Dependent.Action)

	rctx := reviewerCtx(900)
	approveAllItems(t, e, rctx, cr)
	_, err = e.reviews.ReviewRequest(rctx, cr.ID, changereq.StatusApproved, "")
	require.NoError(t, err)

	deps, err := e.beneficiaries.ListActiveDependents(ctx, 101)
	require.NoError(t, err)
	require.Empty(t, deps)

	// The row survives for claim history.
	dep, err := e.beneficiaries.GetDependent(ctx, 51)
	require.NoError(t, err)
	require.True(t, dep.Deleted())
	require.NotNil(t, dep.DeletedBy)
}

func TestApprove_ReaddRestoresSoftDeletedDependent(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)
	require.NoError(t, e.beneficiaries.SoftDeleteDependent(ctx, 51, 900))

	// The submission still lists Rohan by id; against the now-empty active
	// set the diff reads it as an add.
	cr, err := e.submissions.Submit(ctx, 101, baselineDTO())
	require.NoError(t, err)
	require.Len(t, cr.Items, 1)
	require.Equal(t, changereq.ActionAdd, cr.Items[0].Dependent.Action)

	rctx := reviewerCtx(900)
	approveAllItems(t, e, rctx, cr)
	_, err = e.reviews.ReviewRequest(rctx, cr.ID, changereq.StatusApproved, "")
	require.NoError(t, err)

	dep, err := e.beneficiaries.GetDependent(ctx, 51)
	require.NoError(t, err)
	require.False(t, dep.Deleted())
	require.NotNil(t, dep.RestoredAt)
	require.NotNil(t, dep.RestoredBy)
	require.EqualValues(t, 900, *dep.RestoredBy)

	deps, err := e.beneficiaries.ListActiveDependents(ctx, 101)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.EqualValues(t, 51, deps[0].ID)
}

func TestApprove_DependentUpdateMergesFields(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Dependents[0].FullName = "Rohan S Kulkarni"
	dto.Dependents[0].BloodGroup = "O+"
	dto.Dependents[0].Aadhaar = "555544443333"
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)
	require.Len(t, cr.Items, 1)
	require.Equal(t, changereq.ActionUpdate, cr.Items[0].Dependent.Action)
	require.EqualValues(t, 51, *cr.Items[0].EntityID)

	rctx := reviewerCtx(900)
	approveAllItems(t, e, rctx, cr)
	_, err = e.reviews.ReviewRequest(rctx, cr.ID, changereq.StatusApproved, "")
	require.NoError(t, err)

	dep, err := e.beneficiaries.GetDependent(ctx, 51)
	require.NoError(t, err)
	require.Equal(t, "Rohan S Kulkarni", dep.FullName)
	require.Equal(t, "O+", dep.BloodGroup)
	require.Equal(t, "enc:555544443333", dep.AadhaarCipher)
	require.Equal(t, "XXXX-XXXX-3333", dep.AadhaarMasked)
	require.True(t, dep.HealthDependent)
	// Updates never move the row in the canonical ordering.
	require.Equal(t, 1, dep.DependantOrder)

	// A follow-up submission that omits the aadhaar clears it instead of
	// keeping the stale cipher.
	dto2 := baselineDTO()
	dto2.Dependents[0].FullName = "Rohan S Kulkarni"
	dto2.Dependents[0].BloodGroup = "O+"
	cr2, err := e.submissions.Submit(ctx, 101, dto2)
	require.NoError(t, err)
	require.Len(t, cr2.Items, 1)

	approveAllItems(t, e, rctx, cr2)
	_, err = e.reviews.ReviewRequest(rctx, cr2.ID, changereq.StatusApproved, "")
	require.NoError(t, err)

	dep, err = e.beneficiaries.GetDependent(ctx, 51)
	require.NoError(t, err)
	require.Empty(t, dep.AadhaarCipher)
	require.Empty(t, dep.AadhaarMasked)
}

func TestApprove_FullProfileMerge(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.MiddleName = "Prakash"
	dto.LastName = "Sharma"
	dto.DateOfBirth = "16-06-1985"
	dto.BloodGroup = "AB+"
	dto.Email = "asha.sharma@example.org"
	dto.Mobile = "9899999999"
	dto.Category = "nps"
	dto.PRAN = "110012345678"
	dto.Aadhaar = "999988887777"
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)
	require.Len(t, cr.Items, 9)

	rctx := reviewerCtx(900)
	approveAllItems(t, e, rctx, cr)
	_, err = e.reviews.ReviewRequest(rctx, cr.ID, changereq.StatusApproved, "")
	require.NoError(t, err)

	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.Equal(t, "Asha", bene.FirstName)
	require.Equal(t, "Prakash", bene.MiddleName)
	require.Equal(t, "Sharma", bene.LastName)
	require.Equal(t, "AB+", bene.BloodGroup)
	require.Equal(t, "asha.sharma@example.org", bene.Email)
	require.Equal(t, "9899999999", bene.Mobile)
	require.Equal(t, beneficiary.CategoryNPS, bene.Category)
	require.Equal(t, "110012345678", bene.PRAN)
	require.Equal(t, "enc:999988887777", bene.AadhaarCipher)
	require.Equal(t, "XXXX-XXXX-7777", bene.AadhaarMasked)

	// Dates travel as display strings and land as parsed values.
	wantDOB, err := changereq.ParseDate("16-06-1985")
	require.NoError(t, err)
	require.Equal(t, wantDOB, bene.DateOfBirth)
	require.EqualValues(t, 4, bene.Version)
}

func TestApprove_PartialApprovalAfterSplit(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	ctx := submitterCtx(7, 101)

	dto := baselineDTO()
	dto.Mobile = "9899999999"
	dto.Email = "asha.new@example.org"
	cr, err := e.submissions.Submit(ctx, 101, dto)
	require.NoError(t, err)
	require.Len(t, cr.Items, 2)

	// Reject the email, approve the mobile, then reject the request and
	// resubmit only the approved half. Granularity per item, merge per
	// request.
	rctx := reviewerCtx(900)
	for _, item := range cr.Items {
		status := changereq.ItemApproved
		if item.FieldKey == changereq.FieldEmail {
			status = changereq.ItemRejected
		}
		_, err := e.reviews.ReviewItem(rctx, cr.ID, item.ID, status, "x")
		require.NoError(t, err)
	}
	_, err = e.reviews.ReviewRequest(rctx, cr.ID, changereq.StatusRejected, "email invalid")
	require.NoError(t, err)

	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.Equal(t, "9812345678", bene.Mobile)
	require.EqualValues(t, 3, bene.Version)
}

func TestReject_ForceResolvesUnresolvedItems(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	decided, err := e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusRejected, "incomplete documents")
	require.NoError(t, err)
	require.Equal(t, changereq.StatusRejected, decided.Status)

	stored, err := e.reviews.Get(ctx, cr.ID)
	require.NoError(t, err)
	for _, item := range stored.Items {
		require.Equal(t, changereq.ItemRejected, item.Status)
	}

	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.False(t, bene.PendingReview)
	require.Equal(t, "rejected", bene.LastRequestStatus)

	// The trail records how many items the rejection swept along.
	trail, err := e.reviews.Audit(ctx, cr.ID)
	require.NoError(t, err)
	var swept *changereq.AuditEntry
	for _, entry := range trail {
		if entry.Action == changereq.AuditItemsClosed {
			swept = entry
		}
	}
	require.NotNil(t, swept)
	require.Contains(t, swept.Notes, "2 undecided items")
}

func TestReject_RequiresComment(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)

	_, err := e.reviews.ReviewRequest(reviewerCtx(900), cr.ID, changereq.StatusRejected, "")
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestApprove_VersionConflictParksRequest(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)
	approveAllItems(t, e, ctx, cr)

	// Move the canonical row out from under the snapshot.
	bene, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	bene.Version++
	require.NoError(t, e.beneficiaries.Update(ctx, bene))

	_, err = e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusApproved, "")
	var conflict *changereq.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	require.EqualValues(t, 3, conflict.SnapshotVersion)
	require.EqualValues(t, 4, conflict.CurrentVersion)

	// Nothing merged, request parked for resubmission.
	stored, err := e.reviews.Get(ctx, cr.ID)
	require.NoError(t, err)
	require.Equal(t, changereq.StatusNeedsInfo, stored.Status)

	after, err := e.beneficiaries.GetByID(ctx, 101)
	require.NoError(t, err)
	require.Equal(t, "9812345678", after.Mobile)
	require.EqualValues(t, 4, after.Version)
	require.True(t, after.PendingReview)

	require.Contains(t, e.audit.Actions(cr.ID), changereq.AuditMergeConflict)
}

func TestNeedsInfo_RequiresComment(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)

	_, err := e.reviews.ReviewRequest(reviewerCtx(900), cr.ID, changereq.StatusNeedsInfo, "")
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = e.reviews.ReviewRequest(reviewerCtx(900), cr.ID, changereq.StatusNeedsInfo, "please attach proof")
	require.NoError(t, err)
}

func TestReviewRequest_TerminalIsImmutable(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	_, err := e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusRejected, "no")
	require.NoError(t, err)

	_, err = e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusApproved, "")
	var verr *changereq.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = e.reviews.ReviewItem(ctx, cr.ID, cr.Items[0].ID, changereq.ItemApproved, "")
	require.ErrorAs(t, err, &verr)
}

func TestReviewRequest_ParkedNeedsResubmissionBeforeDecision(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	_, err := e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusNeedsInfo, "attach proof of mobile")
	require.NoError(t, err)

	// The parked request only re-enters review through resubmission.
	var verr *changereq.ValidationError
	approveAllItems(t, e, ctx, cr)
	_, err = e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusApproved, "")
	require.ErrorAs(t, err, &verr)
	_, err = e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusRejected, "not acceptable")
	require.ErrorAs(t, err, &verr)

	got, err := e.reviews.Get(ctx, cr.ID)
	require.NoError(t, err)
	require.Equal(t, changereq.StatusNeedsInfo, got.Status)
}

func TestQueue_ListsPendingOnly(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	queue, total, err := e.reviews.Queue(ctx, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, queue, 1)
	require.Equal(t, cr.ID, queue[0].ID)

	_, err = e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusNeedsInfo, "clarify")
	require.NoError(t, err)

	queue, total, err = e.reviews.Queue(ctx, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, queue)
}

func TestAudit_TrailAccumulates(t *testing.T) {
	e := newEnv()
	seedBeneficiary(e)
	cr := submitChange(t, e)
	ctx := reviewerCtx(900)

	approveAllItems(t, e, ctx, cr)
	_, err := e.reviews.ReviewRequest(ctx, cr.ID, changereq.StatusApproved, "")
	require.NoError(t, err)

	trail, err := e.reviews.Audit(ctx, cr.ID)
	require.NoError(t, err)
	require.Equal(t, changereq.AuditSubmitted, trail[0].Action)
	require.Equal(t, changereq.AuditMerged, trail[len(trail)-1].Action)
}
