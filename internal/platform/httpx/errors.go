// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/expensa-app/expensa/internal/shared"
)

// Sentinel errors for handler-level failures.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Business
// rule rejections keep their wording; unknown errors collapse to 500 with no
// detail.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validation *shared.ValidationError
		forbidden  *shared.ForbiddenTransitionError
		noChain    *shared.NoApproversConfiguredError
		duplicate  *shared.DuplicateApproverError
		conflict   *shared.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:      "Validation Failed",
			Status:     http.StatusUnprocessableEntity,
			Detail:     validation.Error(),
			Violations: validation.Violations,
		})
	case errors.As(err, &forbidden):
		Problem(w, http.StatusForbidden, "Forbidden", forbidden.Error())
	case errors.As(err, &noChain):
		Problem(w, http.StatusConflict, "No Approvers Configured", noChain.Error())
	case errors.As(err, &duplicate):
		Problem(w, http.StatusConflict, "Duplicate Approver", duplicate.Error())
	case errors.As(err, &conflict):
		Problem(w, http.StatusConflict, "Conflict", conflict.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
