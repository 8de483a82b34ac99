// Package middleware holds the HTTP middleware for the metrics endpoint.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/onnwee/reddit-broker/internal/errorreporting"
	"github.com/onnwee/reddit-broker/internal/logger"
)

// Recover turns handler panics into 500 responses instead of killing the
// broker process.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("metrics handler panicked",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
				)
				errorreporting.CaptureError(fmt.Errorf("metrics handler %s %s panicked: %v", r.Method, r.URL.Path, rec))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
