// Package api holds the JSON envelope shared by HTTP handlers and
// middleware.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// SuccessResponse is the envelope for every 2xx body.
type SuccessResponse struct {
	Data any `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:         http.StatusBadRequest,
	domain.ErrCodeInvalidTenant:      http.StatusBadRequest,
	domain.ErrCodeNotFound:           http.StatusNotFound,
	domain.ErrCodeAlreadyExists:      http.StatusConflict,
	domain.ErrCodeUnauthorized:       http.StatusUnauthorized,
	domain.ErrCodeForbidden:          http.StatusForbidden,
	domain.ErrCodeTenantAccessDenied: http.StatusForbidden,
	domain.ErrCodeRateLimited:        http.StatusTooManyRequests,
	domain.ErrCodeGroundingRejected:  http.StatusUnprocessableEntity,
	domain.ErrCodeIndexingFailed:     http.StatusBadGateway,
	domain.ErrCodeGenerationFailed:   http.StatusBadGateway,
	domain.ErrCodeRetrievalFailed:    http.StatusServiceUnavailable,
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func ErrorCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// DomainErrorToHTTP returns the status for err. Errors that carry no domain
// code are internal.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an error body. Only domain error messages reach
// the client.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	var de *domain.DomainError
	if errors.As(err, &de) {
		ErrorCode(w, status, de.Code, de.Message)
		return
	}
	ErrorCode(w, status, domain.ErrCodeInternalError, http.StatusText(status))
}
