// Package output writes the JSON response envelope. Every handler reply goes
// through one of these helpers so that success and failure responses share
// the same shape: a status indicator plus either a payload or error detail.
package output

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

type envelope struct {
	Status int         `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func write(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.Encode(env)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, envelope{Status: status, Error: &errorBody{Code: code, Message: message}})
}

// OK writes a 200 response with the given payload.
func OK(w http.ResponseWriter, payload interface{}) {
	write(w, http.StatusOK, envelope{Status: http.StatusOK, Data: payload})
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// MissingParameter reports a required parameter that was not provided.
func MissingParameter(w http.ResponseWriter, field string) {
	writeError(w, http.StatusBadRequest, "missing_parameter", fmt.Sprintf("Missing parameter `%s`.", field))
}

// InvalidParameter reports a parameter that failed type validation.
func InvalidParameter(w http.ResponseWriter, field string) {
	writeError(w, http.StatusBadRequest, "invalid_parameter", fmt.Sprintf("Invalid parameter `%s`.", field))
}

// ValidationFailed reports a payload that failed validation with a specific reason.
func ValidationFailed(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, "validation_failed", message)
}

// NotAuthorized fails the request closed. An optional message overrides the default.
func NotAuthorized(w http.ResponseWriter, message ...string) {
	msg := "Not authorized."
	if len(message) > 0 {
		msg = message[0]
	}
	writeError(w, http.StatusUnauthorized, "not_authorized", msg)
}

// NotFound reports a missing resource with a custom message.
func NotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "not_found", message)
}

// ModelNotFound reports a missing entity by type and identifier.
func ModelNotFound(w http.ResponseWriter, model string, id interface{}) {
	writeError(w, http.StatusNotFound, "model_not_found", fmt.Sprintf("No %s found with identifier `%v`.", model, id))
}

// Conflict reports a uniqueness conflict (duplicate email etc.).
func Conflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, "conflict", message)
}

// DisabledResource reports a resource that exists but can no longer be used,
// like a claimed or expired password reset token.
func DisabledResource(w http.ResponseWriter, message string) {
	writeError(w, http.StatusGone, "disabled_resource", message)
}

// ServerError reports an unexpected failure. The underlying message is
// attached for diagnosis; callers suppress raw query text in production.
func ServerError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, "server_error", message)
}
