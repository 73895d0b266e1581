// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/greenstem/order-pipeline/internal/model"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, code model.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Code: string(code), Message: message})
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code model.Code) int {
	switch code {
	case model.CodePermissionDenied:
		return http.StatusForbidden
	case model.CodeInvalidArgument:
		return http.StatusBadRequest
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err onto the wire. Internal errors are replaced with a
// generic message so store details never reach a client.
func WriteError(w http.ResponseWriter, err error, generic string) {
	code := model.CodeOf(err)
	msg := err.Error()
	if code == model.CodeInternal {
		msg = generic
	}
	WriteJSONError(w, statusFor(code), code, msg)
}
