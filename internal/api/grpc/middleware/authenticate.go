package middleware

import (
	"context"
	"crypto/subtle"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/schoolms/schoolms-server/internal/logger"
)

// ServiceTokenHeader carries the shared secret of calling services.
const ServiceTokenHeader = "x-service-token"

// ServiceAuth admits only callers presenting the shared service token.
type ServiceAuth struct {
	token  []byte
	logger *logger.Logger
}

// NewServiceAuth creates a new ServiceAuth middleware instance.
func NewServiceAuth(token string, logger *logger.Logger) *ServiceAuth {
	return &ServiceAuth{token: []byte(token), logger: logger}
}

// AuthFunc checks the service token header.
func (m *ServiceAuth) AuthFunc(ctx context.Context) (context.Context, error) {
	values := metadata.ValueFromIncomingContext(ctx, ServiceTokenHeader)
	if len(values) == 0 || values[0] == "" {
		return nil, status.Error(codes.Unauthenticated, "missing service token")
	}

	if len(m.token) == 0 || subtle.ConstantTimeCompare([]byte(values[0]), m.token) != 1 {
		m.logger.Warn("ServiceAuth: rejected caller with invalid service token")
		return nil, status.Error(codes.Unauthenticated, "invalid service token")
	}

	return ctx, nil
}
