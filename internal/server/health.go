package server

import (
	"net/http"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
)

// HandleHealth returns the GET /healthz handler. It reports ready only
// when Hydra's public API answers its own readiness probe.
func HandleHealth(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			writeJSON(w, http.StatusOK, response{OK: true, Message: "ready"})
			return
		}

		if err := checker.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, response{
				OK:      false,
				Message: err.Error(),
				Error:   apperrors.KindUnavailable,
			})

			return
		}

		writeJSON(w, http.StatusOK, response{OK: true, Message: "ready"})
	}
}
