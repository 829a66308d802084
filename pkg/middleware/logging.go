package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/sevakendra/beneficiary-portal/pkg/composables"
	"github.com/sevakendra/beneficiary-portal/pkg/configuration"
)

// RequestLogger installs a request-scoped *logrus.Entry carrying the request
// id, and logs method/path/duration on completion.
func RequestLogger(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			header := strings.TrimSpace(configuration.Use().RequestIDHeader)
			if header == "" {
				header = "X-Request-ID"
			}
			requestID := strings.TrimSpace(r.Header.Get(header))
			if requestID == "" {
				requestID = uuid.NewString()
				w.Header().Set(header, requestID)
			}

			entry := logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			r = r.WithContext(composables.WithLogger(r.Context(), entry))

			next.ServeHTTP(w, r)

			entry.WithField("duration", time.Since(start).String()).Debug("request completed")
		})
	}
}
