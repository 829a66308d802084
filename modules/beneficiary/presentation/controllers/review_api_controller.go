package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/presentation/mappers"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/services"
	"github.com/sevakendra/beneficiary-portal/pkg/middleware"
)

// ReviewAPIController exposes the reviewer endpoints: the queue, item-level
// decisions and the final request decision.
type ReviewAPIController struct {
	reviews *services.ReviewService
	masker  sensitive.Service
}

func NewReviewAPIController(reviews *services.ReviewService, masker sensitive.Service) *ReviewAPIController {
	return &ReviewAPIController{reviews: reviews, masker: masker}
}

func (c *ReviewAPIController) Key() string {
	return "/api/v1/review"
}

func (c *ReviewAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.Key()).Subrouter()
	router.HandleFunc("/requests/{id}/items/{itemID}", c.ReviewItem).Methods(http.MethodPost)
	router.HandleFunc("/requests/{id}/decision", c.Decide).Methods(http.MethodPost)

	readRouter := r.PathPrefix(c.Key()).Subrouter()
	readRouter.Use(middleware.WithTransaction())
	readRouter.HandleFunc("/queue", c.Queue).Methods(http.MethodGet)
	readRouter.HandleFunc("/requests/{id}", c.Get).Methods(http.MethodGet)
	readRouter.HandleFunc("/requests/{id}/audit", c.Audit).Methods(http.MethodGet)
}

type reviewItemRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type decisionRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (c *ReviewAPIController) Queue(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, total, err := c.reviews.Queue(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  mappers.ChangeRequestsToVM(list, c.masker),
		"total": total,
	})
}

func (c *ReviewAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cr, err := c.reviews.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ChangeRequestToVM(cr, c.masker, true))
}

func (c *ReviewAPIController) Audit(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trail, err := c.reviews.Audit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": mappers.AuditEntriesToVM(trail),
	})
}

func (c *ReviewAPIController) ReviewItem(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := uuid.Parse(mux.Vars(r)["itemID"])
	if err != nil {
		writeError(w, r, &changereq.ValidationError{Field: "itemID", Message: "invalid item id"})
		return
	}

	var body reviewItemRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := c.reviews.ReviewItem(r.Context(), id, itemID, changereq.ItemStatus(body.Status), body.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ChangeItemToVM(item, c.masker))
}

func (c *ReviewAPIController) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := requestID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body decisionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	cr, err := c.reviews.ReviewRequest(r.Context(), id, changereq.RequestStatus(body.Status), body.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ChangeRequestToVM(cr, c.masker, true))
}
