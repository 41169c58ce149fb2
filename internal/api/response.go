// Package api holds the JSON envelope shared by every HTTP handler.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/outreachai/internal/domain"
)

// StatusClientClosedRequest is reported when the caller went away mid-run.
const StatusClientClosedRequest = 499

// SuccessResponse is the envelope for 2xx bodies.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the envelope for error bodies. Code is the domain error
// code when one is known.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeStoreUnavailable: http.StatusServiceUnavailable,
	domain.ErrCodeModelCall:        http.StatusBadGateway,
}

// JSON writes body as JSON with status. A nil body writes headers only. The
// body is encoded before any header goes out, so an unencodable body becomes
// a 500 error envelope instead of a truncated success.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	if body == nil {
		w.WriteHeader(status)
		return
	}
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(ErrorResponse{Error: "encode response: " + err.Error(), Code: domain.ErrCodeInternalError})
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP picks the status for err. Wrapped domain errors match by
// code; anything unrecognized is a 500.
func DomainErrorToHTTP(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes the error envelope for err.
func HandleError(w http.ResponseWriter, err error) {
	body := ErrorResponse{Error: err.Error()}
	var de *domain.DomainError
	if errors.As(err, &de) {
		body.Code = de.Code
	}
	JSON(w, DomainErrorToHTTP(err), body)
}
