package handler

import (
	"errors"
	"net/http"

	"github.com/schoolms/schoolms-server/internal/model"
	"github.com/schoolms/schoolms-server/pkg/response"
)

// statusFor maps service errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, model.ErrInvalidCredentials.Error()
	case errors.Is(err, model.ErrTooManyAttempts):
		return http.StatusTooManyRequests, model.ErrTooManyAttempts.Error()
	case errors.Is(err, model.ErrWeakPassword):
		return http.StatusBadRequest, model.ErrWeakPassword.Error()
	case errors.Is(err, model.ErrDuplicateUser):
		return http.StatusBadRequest, model.ErrDuplicateUser.Error()
	case errors.Is(err, model.ErrInvalidRole):
		return http.StatusBadRequest, model.ErrInvalidRole.Error()
	case errors.Is(err, model.ErrTokenExpired):
		return http.StatusUnauthorized, model.ErrTokenExpired.Error()
	case model.IsTokenError(err), errors.Is(err, model.ErrRefreshTokenNotFound), errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid or revoked token"
	case errors.Is(err, model.ErrUserInactive):
		return http.StatusForbidden, model.ErrUserInactive.Error()
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, model.ErrForbidden.Error()
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "user not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, msg := statusFor(err)
	response.WriteError(w, code, msg)
}
