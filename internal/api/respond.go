package api

import (
	"encoding/json"
	"net/http"

	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/logger"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// writeError maps err to its HTTP status. Errors outside the taxonomy are
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		log.Error("unhandled error", map[string]interface{}{"error": err})
		writeErrorMessage(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	status := errors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", map[string]interface{}{
			"code":    stdErr.Code,
			"message": stdErr.Message,
			"details": stdErr.Details,
		})
	}

	details := stdErr.Details
	// Caller-facing auth errors carry internal reasons in Details.
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		details = ""
	}
	writeErrorMessage(w, status, stdErr.Message, details)
}
