package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sevakendra/beneficiary-portal/pkg/composables"
)

const (
	actorIDHeader          = "X-Actor-ID"
	actorBeneficiaryHeader = "X-Actor-Beneficiary-ID"
	actorPermissionsHeader = "X-Actor-Permissions"
)

// ProvideActor trusts the identity headers set by the upstream auth gateway
// and installs the actor in context. Requests without an actor id are
// rejected; authentication itself happens outside this service.
func ProvideActor() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(actorIDHeader)), 10, 64)
			if err != nil || actorID <= 0 {
				http.Error(w, "missing actor identity", http.StatusUnauthorized)
				return
			}

			beneficiaryID, _ := strconv.ParseInt(strings.TrimSpace(r.Header.Get(actorBeneficiaryHeader)), 10, 64)

			var permissions []string
			for _, p := range strings.Split(r.Header.Get(actorPermissionsHeader), ",") {
				if p = strings.TrimSpace(p); p != "" {
					permissions = append(permissions, p)
				}
			}

			actor := &composables.Actor{
				ID:            actorID,
				BeneficiaryID: beneficiaryID,
				Permissions:   permissions,
			}
			next.ServeHTTP(w, r.WithContext(composables.WithActor(r.Context(), actor)))
		})
	}
}
