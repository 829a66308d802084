package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/testkit"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/eventbus"
)

// env bundles everything a service test needs.
type env struct {
	beneficiaries *testkit.BeneficiaryRepo
	requests      *testkit.RequestRepo
	audit         *testkit.AuditRepo
	bus           eventbus.EventBus
	submissions   *ChangeRequestService
	reviews       *ReviewService
}

func newEnv() *env {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	e := &env{
		beneficiaries: testkit.NewBeneficiaryRepo(),
		requests:      testkit.NewRequestRepo(),
		audit:         testkit.NewAuditRepo(),
		bus:           eventbus.NewEventPublisher(log),
	}
	snapshots := NewSnapshotBuilder(e.beneficiaries, testkit.Sensitive{})
	e.submissions = NewChangeRequestService(e.requests, e.audit, e.beneficiaries, snapshots, testkit.PassthroughTransactor{}, e.bus)
	e.reviews = NewReviewService(e.requests, e.audit, e.beneficiaries, testkit.Sensitive{}, testkit.PassthroughTransactor{}, e.bus)
	return e
}

func actorCtx(actor *composables.Actor) context.Context {
	return composables.WithActor(context.Background(), actor)
}

func submitterCtx(userID, beneficiaryID int64) context.Context {
	return actorCtx(&composables.Actor{
		ID:            userID,
		BeneficiaryID: beneficiaryID,
		Permissions:   []string{"edit_beneficiary_profile"},
	})
}

func reviewerCtx(userID int64) context.Context {
	return actorCtx(&composables.Actor{
		ID:          userID,
		Permissions: []string{"review_profile_update", "approve_profile_update"},
	})
}

func seedBeneficiary(e *env) *beneficiary.Beneficiary {
	dob, _ := changereq.ParseDate("15-06-1985")
	b := &beneficiary.Beneficiary{
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
	}
	depDOB, _ := changereq.ParseDate("02-09-2010")
	e.beneficiaries.Seed(b, &beneficiary.Dependent{
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
	return b
}

// baselineDTO mirrors the seeded beneficiary exactly, so every test mutation
// starts from a no-op payload.
func baselineDTO() *SubmitDTO {
	return &SubmitDTO{
		FirstName:   "Asha",
		LastName:    "Kulkarni",
		Gender:      "Female",
		DateOfBirth: "15-06-1985",
		BloodGroup:  "B+",
		Email:       "asha@example.org",
		Mobile:      "9812345678",
		Category:    "ops",
		Aadhaar:     "123412341234",
		Dependents: []DependentDTO{
			{
				ID:              51,
				FullName:        "Rohan Kulkarni",
				Relationship:    "son",
				Gender:          "Male",
				DateOfBirth:     "02-09-2010",
				AliveStatus:     "Alive",
				HealthDependent: true,
			},
		},
		UndertakingConfirmed: true,
	}
}
