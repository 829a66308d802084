package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/presentation/viewmodels"
)

func submitPending(t *testing.T, e *testEnv) viewmodels.ChangeRequest {
	t.Helper()
	payload := submitPayload(func(p map[string]interface{}) {
		p["mobile"] = "9899999999"
	})
	rec := e.do(t, submitter(), http.MethodPost, "/api/v1/profile/change-requests", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	var vm viewmodels.ChangeRequest
	decode(t, rec, &vm)
	return vm
}

func TestQueueEndpoint(t *testing.T) {
	e := newTestEnv()
	e.seed()
	cr := submitPending(t, e)

	rec := e.do(t, reviewer(), http.MethodGet, "/api/v1/review/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []viewmodels.ChangeRequest `json:"data"`
		Total int64                      `json:"total"`
	}
	decode(t, rec, &body)
	require.EqualValues(t, 1, body.Total)
	require.Equal(t, cr.ID, body.Data[0].ID)
}

func TestQueueEndpoint_ForbiddenForSubmitter(t *testing.T) {
	e := newTestEnv()
	e.seed()

	rec := e.do(t, submitter(), http.MethodGet, "/api/v1/review/queue", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestItemReviewEndpoint(t *testing.T) {
	e := newTestEnv()
	e.seed()
	cr := submitPending(t, e)

	rec := e.do(t, reviewer(), http.MethodPost,
		"/api/v1/review/requests/"+cr.ID+"/items/"+cr.Items[0].ID,
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)

	var item viewmodels.ChangeItem
	decode(t, rec, &item)
	require.Equal(t, "approved", item.Status)
	require.NotEmpty(t, item.ReviewedAt)
}

func TestDecisionEndpoint_ApproveIncompleteIs409(t *testing.T) {
	e := newTestEnv()
	e.seed()
	cr := submitPending(t, e)

	rec := e.do(t, reviewer(), http.MethodPost,
		"/api/v1/review/requests/"+cr.ID+"/decision",
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "items_unresolved")
}

func TestDecisionEndpoint_ApproveMerges(t *testing.T) {
	e := newTestEnv()
	e.seed()
	cr := submitPending(t, e)

	for _, item := range cr.Items {
		rec := e.do(t, reviewer(), http.MethodPost,
			"/api/v1/review/requests/"+cr.ID+"/items/"+item.ID,
			map[string]string{"status": "approved"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := e.do(t, reviewer(), http.MethodPost,
		"/api/v1/review/requests/"+cr.ID+"/decision",
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)

	var vm viewmodels.ChangeRequest
	decode(t, rec, &vm)
	require.Equal(t, "approved", vm.Status)

	bene, err := e.beneficiaries.GetByID(context.Background(), 101)
	require.NoError(t, err)
	require.Equal(t, "9899999999", bene.Mobile)
	require.EqualValues(t, 4, bene.Version)
}

func TestDecisionEndpoint_RejectRequiresComment(t *testing.T) {
	e := newTestEnv()
	e.seed()
	cr := submitPending(t, e)

	rec := e.do(t, reviewer(), http.MethodPost,
		"/api/v1/review/requests/"+cr.ID+"/decision",
		map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, reviewer(), http.MethodPost,
		"/api/v1/review/requests/"+cr.ID+"/decision",
		map[string]string{"status": "rejected", "comment": "documents missing"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDecisionEndpoint_VersionConflictIs409(t *testing.T) {
	e := newTestEnv()
	e.seed()
	cr := submitPending(t, e)

	for _, item := range cr.Items {
		rec := e.do(t, reviewer(), http.MethodPost,
			"/api/v1/review/requests/"+cr.ID+"/items/"+item.ID,
			map[string]string{"status": "approved"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	bene, err := e.beneficiaries.GetByID(context.Background(), 101)
	require.NoError(t, err)
	bene.Version++
	require.NoError(t, e.beneficiaries.Update(context.Background(), bene))

	rec := e.do(t, reviewer(), http.MethodPost,
		"/api/v1/review/requests/"+cr.ID+"/decision",
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "version_conflict")

	rec = e.do(t, reviewer(), http.MethodGet, "/api/v1/review/requests/"+cr.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var vm viewmodels.ChangeRequest
	decode(t, rec, &vm)
	require.Equal(t, "needs_info", vm.Status)
}

func TestAuditEndpoint(t *testing.T) {
	e := newTestEnv()
	e.seed()
	cr := submitPending(t, e)

	rec := e.do(t, reviewer(), http.MethodGet, "/api/v1/review/requests/"+cr.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []viewmodels.AuditEntry `json:"data"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "submitted", body.Data[0].Action)
}
