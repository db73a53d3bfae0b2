package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondServiceError maps a service error onto the wire. Categorized
// errors carry their own status code; rate-limit rejections additionally
// set a Retry-After header.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		if catErr.Category == apperrors.CategoryRateLimit {
			if retry, ok := catErr.Details["retry_after_seconds"].(int); ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
		}
		if catErr.Category == apperrors.CategorySystem || catErr.Category == apperrors.CategoryCache {
			s.logger.WithError(catErr).Error("Request failed")
		}
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	s.logger.WithError(err).Error("Request failed with uncategorized error")
	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal server error occurred", nil)
}
