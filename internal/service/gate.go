package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/model"
)

// Gate authenticates access tokens against the live user record and
// enforces role allow-lists.
type Gate struct {
	codec  model.TokenCodec
	users  model.UserStore
	logger *logger.Logger
}

func NewGate(codec model.TokenCodec, users model.UserStore, logger *logger.Logger) *Gate {
	return &Gate{codec: codec, users: users, logger: logger}
}

// Authenticate resolves the user behind an access token. Invalid tokens and
// unknown subjects fail with ErrUnauthorized, accounts that cannot
// authenticate with ErrUserInactive.
func (g *Gate) Authenticate(ctx context.Context, accessToken string) (model.User, error) {
	claims, err := g.codec.Verify(accessToken, model.TokenKindAccess)
	if err != nil {
		g.logger.Debug("Gate: access token rejected",
			"error", err.Error())
		return model.User{}, fmt.Errorf("%w: %w", model.ErrUnauthorized, err)
	}

	user, err := g.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, model.ErrUnauthorized
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	if !user.CanAuthenticate() {
		g.logger.Info("Gate: inactive user presented a valid token",
			"user_id", user.ID)
		return model.User{}, model.ErrUserInactive
	}

	return user, nil
}

// Authorize returns ErrForbidden unless the role of user is in allowed.
func (g *Gate) Authorize(user model.User, allowed ...model.Role) error {
	return RequireRole(user.Role, allowed...)
}

// RequireRole returns ErrForbidden unless role is in allowed.
func RequireRole(role model.Role, allowed ...model.Role) error {
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s not permitted", model.ErrForbidden, role)
}
