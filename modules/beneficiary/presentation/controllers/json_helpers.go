package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/aggregates/beneficiary"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/changereq"
	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/services"
	"github.com/sevakendra/beneficiary-portal/pkg/composables"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeAPIError(w http.ResponseWriter, status int, e apiError) {
	writeJSON(w, status, map[string]apiError{"error": e})
}

// writeError maps domain errors onto API statuses. Unknown errors are logged
// and reported as plain 500s without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *changereq.ValidationError
		conflict *changereq.VersionConflictError
		agg      *changereq.AggregateIncompleteError
		merge    *changereq.MergeFailureError
	)
	switch {
	case errors.As(err, &verr):
		writeAPIError(w, http.StatusUnprocessableEntity, apiError{
			Code: "validation_failed", Message: verr.Message, Field: verr.Field,
		})
	case errors.Is(err, changereq.ErrDuplicatePending):
		writeAPIError(w, http.StatusConflict, apiError{
			Code: "duplicate_pending_request", Message: err.Error(),
		})
	case errors.Is(err, changereq.ErrSubmissionConflict):
		writeAPIError(w, http.StatusConflict, apiError{
			Code: "submission_conflict", Message: err.Error(),
		})
	case errors.As(err, &conflict):
		writeAPIError(w, http.StatusConflict, apiError{
			Code: "version_conflict", Message: conflict.Error(),
		})
	case errors.As(err, &agg):
		writeAPIError(w, http.StatusConflict, apiError{
			Code: "items_unresolved", Message: agg.Error(),
		})
	case errors.As(err, &merge):
		writeAPIError(w, http.StatusInternalServerError, apiError{
			Code: "merge_failed", Message: "the approved changes could not be applied",
		})
	case errors.Is(err, changereq.ErrNotFound),
		errors.Is(err, changereq.ErrItemNotFound),
		errors.Is(err, beneficiary.ErrNotFound),
		errors.Is(err, beneficiary.ErrDependentNotFound):
		writeAPIError(w, http.StatusNotFound, apiError{Code: "not_found", Message: err.Error()})
	case errors.Is(err, services.ErrNotOwner), errors.Is(err, composables.ErrForbidden):
		writeAPIError(w, http.StatusForbidden, apiError{Code: "forbidden", Message: err.Error()})
	case errors.Is(err, composables.ErrNoActor):
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: "unauthorized", Message: err.Error()})
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("request failed")
		writeAPIError(w, http.StatusInternalServerError, apiError{
			Code: "internal", Message: "internal server error",
		})
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &changereq.ValidationError{Message: "invalid request body"}
	}
	return nil
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
