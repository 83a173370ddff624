package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/schoolms/schoolms-server/internal/model"
)

func handleError(err error) error {
	switch {
	case errors.Is(err, model.ErrUserInactive):
		return status.Error(codes.PermissionDenied, model.ErrUserInactive.Error())
	case errors.Is(err, model.ErrForbidden):
		return status.Error(codes.PermissionDenied, "insufficient permissions")
	case errors.Is(err, model.ErrUnauthorized), model.IsTokenError(err):
		return status.Error(codes.Unauthenticated, "invalid or expired token")
	case errors.Is(err, model.ErrInvalidRole):
		return status.Error(codes.InvalidArgument, model.ErrInvalidRole.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "user not found")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
