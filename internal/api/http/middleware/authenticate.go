package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/model"
	"github.com/schoolms/schoolms-server/internal/service"
	"github.com/schoolms/schoolms-server/pkg/response"
)

// Authenticator resolves the user behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.User, error)
}

// Authenticate validates bearer tokens and injects the user into the request context.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authenticator Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, contextManager: contextManager, logger: logger}
}

// Handle rejects requests without a valid bearer token.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			response.WriteError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		user, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrUserInactive):
				response.WriteError(w, http.StatusForbidden, model.ErrUserInactive.Error())
			case errors.Is(err, model.ErrUnauthorized):
				response.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
			default:
				m.logger.Error("Authenticate middleware: failed to authenticate",
					"error", err.Error())
				response.WriteError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetUserToContext(r.Context(), user)))
	})
}

// RequireRoles rejects authenticated users whose role is not in allowed.
// It must run after Handle.
func (m *Authenticate) RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := m.contextManager.GetUserFromContext(r.Context())
			if !ok {
				response.WriteError(w, http.StatusUnauthorized, model.ErrUnauthorized.Error())
				return
			}

			if err := service.RequireRole(user.Role, allowed...); err != nil {
				m.logger.Info("Authenticate middleware: role not permitted",
					"user_id", user.ID,
					"role", user.Role,
					"path", r.URL.Path)
				response.WriteError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
