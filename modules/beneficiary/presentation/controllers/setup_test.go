package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/services"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/testkit"
	"github.com/sevakendra/beneficiary-portal/pkg/eventbus"
	"github.com/sevakendra/beneficiary-portal/pkg/middleware"
)

type testEnv struct {
	router        *mux.Router
	beneficiaries *testkit.BeneficiaryRepo
	requests      *testkit.RequestRepo
	submissions   *services.ChangeRequestService
	reviews       *services.ReviewService
}

func newTestEnv() *testEnv {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	e := &testEnv{
		beneficiaries: testkit.NewBeneficiaryRepo(),
		requests:      testkit.NewRequestRepo(),
	}
	audit := testkit.NewAuditRepo()
	bus := eventbus.NewEventPublisher(log)
	snapshots := services.NewSnapshotBuilder(e.beneficiaries, testkit.Sensitive{})
	e.submissions = services.NewChangeRequestService(e.requests, audit, e.beneficiaries, snapshots, testkit.PassthroughTransactor{}, bus)
	e.reviews = services.NewReviewService(e.requests, audit, e.beneficiaries, testkit.Sensitive{}, testkit.PassthroughTransactor{}, bus)

	e.router = mux.NewRouter()
	e.router.Use(middleware.ProvideActor())
	NewProfileAPIController(e.submissions, testkit.Sensitive{}).Register(e.router)
	NewReviewAPIController(e.reviews, testkit.Sensitive{}).Register(e.router)
	return e
}

func (e *testEnv) seed() {
	dob, _ := changereq.ParseDate("15-06-1985")
	depDOB, _ := changereq.ParseDate("02-09-2010")
	e.beneficiaries.Seed(&beneficiary.Beneficiary{
		ID:            101,
		UserID:        7,
		FirstName:     "Asha",
		LastName:      "Kulkarni",
		Gender:        "Female",
		DateOfBirth:   dob,
		BloodGroup:    "B+",
		Email:         "asha@example.org",
		Mobile:        "9812345678",
		Category:      beneficiary.CategoryOPS,
		AadhaarCipher: "enc:123412341234",
		AadhaarMasked: "XXXX-XXXX-1234",
		Version:       3,
	}, &beneficiary.Dependent{
		ID:              51,
		BeneficiaryID:   101,
		FullName:        "Rohan Kulkarni",
		RelationshipKey: "son",
		Gender:          "Male",
		DateOfBirth:     depDOB,
		AliveStatus:     "Alive",
		HealthDependent: true,
		DependantOrder:  1,
	})
}

type identity struct {
	actorID       int64
	beneficiaryID int64
	permissions   string
}

func submitter() identity {
	return identity{actorID: 7, beneficiaryID: 101, permissions: "edit_beneficiary_profile"}
}

func reviewer() identity {
	return identity{actorID: 900, permissions: "review_profile_update,approve_profile_update"}
}

func (e *testEnv) do(t *testing.T, id identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if id.actorID != 0 {
		req.Header.Set("X-Actor-ID", strconv.FormatInt(id.actorID, 10))
	}
	if id.beneficiaryID != 0 {
		req.Header.Set("X-Actor-Beneficiary-ID", strconv.FormatInt(id.beneficiaryID, 10))
	}
	if id.permissions != "" {
		req.Header.Set("X-Actor-Permissions", id.permissions)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func submitPayload(mutate func(map[string]interface{})) map[string]interface{} {
	payload := map[string]interface{}{
		"first_name":    "Asha",
		"last_name":     "Kulkarni",
		"gender":        "Female",
		"date_of_birth": "15-06-1985",
		"blood_group":   "B+",
		"email":         "asha@example.org",
		"mobile":        "9812345678",
		"category":      "ops",
		"aadhaar_number": "123412341234",
		"dependents": []map[string]interface{}{
			{
				"id":               int64(51),
				"full_name":        "Rohan Kulkarni",
				"relationship":     "son",
				"gender":           "Male",
				"date_of_birth":    "02-09-2010",
				"alive_status":     "Alive",
				"health_dependent": true,
			},
		},
		"undertaking_confirmed": true,
	}
	if mutate != nil {
		mutate(payload)
	}
	return payload
}
