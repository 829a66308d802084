package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/permissions"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/presentation/mappers"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/services"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/middleware"
)

// ProfileAPIController exposes the submitter endpoints. All routes act on
// the caller's own beneficiary profile.
type ProfileAPIController struct {
	submissions *services.ChangeRequestService
	masker      sensitive.Service
}

func NewProfileAPIController(submissions *services.ChangeRequestService, masker sensitive.Service) *ProfileAPIController {
	return &ProfileAPIController{submissions: submissions, masker: masker}
}

func (c *ProfileAPIController) Key() string {
	return "/api/v1/profile"
}

func (c *ProfileAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.Key()).Subrouter()
	router.HandleFunc("/change-requests", c.Submit).Methods(http.MethodPost)
	router.HandleFunc("/change-requests/preview", c.Preview).Methods(http.MethodPost)
	router.HandleFunc("/change-requests/{id}", c.Discard).Methods(http.MethodDelete)
	router.HandleFunc("/change-requests/{id}/resubmit", c.Resubmit).Methods(http.MethodPost)

	readRouter := r.PathPrefix(c.Key()).Subrouter()
	readRouter.Use(middleware.WithTransaction())
	readRouter.HandleFunc("/change-requests", c.List).Methods(http.MethodGet)
	readRouter.HandleFunc("/change-requests/{id}", c.Get).Methods(http.MethodGet)
}

func requestID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, &changereq.ValidationError{Field: "id", Message: "invalid request id"}
	}
	return id, nil
}

func (c *ProfileAPIController) Preview(w http.ResponseWriter, r *http.Request) {
	actor, err := composables.UseActor(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := composables.CanUser(r.Context(), permissions.EditBeneficiaryProfile); err != nil {
		writeError(w, r, err)
		return
	}

	var dto services.SubmitDTO
	if err := decodeBody(r, &dto); err != nil {
		writeError(w, r, err)
		return
	}
	diff, err := c.submissions.Preview(r.Context(), actor.BeneficiaryID, &dto)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.DiffToVM(diff, c.masker))
}

func (c *ProfileAPIController) Submit(w http.ResponseWriter, r *http.Request) {
	actor, err := composables.UseActor(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := composables.CanUser(r.Context(), permissions.EditBeneficiaryProfile); err != nil {
		writeError(w, r, err)
		return
	}

	var dto services.SubmitDTO
	if err := decodeBody(r, &dto); err != nil {
		writeError(w, r, err)
		return
	}
	cr, err := c.submissions.Submit(r.Context(), actor.BeneficiaryID, &dto)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.ChangeRequestToVM(cr, c.masker, true))
}

func (c *ProfileAPIController) Resubmit(w http.ResponseWriter, r *http.Request) {
	if err := composables.CanUser(r.Context(), permissions.EditBeneficiaryProfile); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := requestID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var dto services.SubmitDTO
	if err := decodeBody(r, &dto); err != nil {
		writeError(w, r, err)
		return
	}
	cr, err := c.submissions.Resubmit(r.Context(), id, &dto)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ChangeRequestToVM(cr, c.masker, true))
}

func (c *ProfileAPIController) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, total, err := c.submissions.ListOwn(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  mappers.ChangeRequestsToVM(list, c.masker),
		"total": total,
	})
}

func (c *ProfileAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cr, err := c.submissions.GetOwn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ChangeRequestToVM(cr, c.masker, true))
}

func (c *ProfileAPIController) Discard(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.submissions.DiscardDraft(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
