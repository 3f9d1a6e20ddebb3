// Package handlers defines the HTTP-layer error codes used across all API
// endpoints. These symbolic constants give clients a stable, machine-readable
// taxonomy alongside the human-readable message; handlers pick the most
// specific matching code and pass it to fail() with the HTTP status.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-range-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeDetectionFailed  = "detection_failed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failServiceError translates service sentinels into the HTTP error taxonomy:
// validation errors → 400, foreign ownership → 403, absence → 404, duplicate
// numbers → 409, everything else → 500. Every handler error branch funnels
// through here so the mapping stays in one place.
func failServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTargetNumber),
		errors.Is(err, services.ErrInvalidScore),
		errors.Is(err, services.ErrInvalidScoringMode),
		errors.Is(err, services.ErrInvalidTargetOrder):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrNotSessionOwner):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrTargetNotFound),
		errors.Is(err, services.ErrShotNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateTargetNumber):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
