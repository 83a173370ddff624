package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/schoolms/schoolms-server/internal/api/grpc/handler"
	"github.com/schoolms/schoolms-server/internal/api/grpc/middleware"
	"github.com/schoolms/schoolms-server/internal/logger"
)

// Router represents the gRPC router of the internal identity service.
type Router struct {
	gate         handler.Gate
	serviceToken string
	health       *health.Server
	logger       *logger.Logger
}

// New creates new gRPC Router instance.
func New(gate handler.Gate, serviceToken string, logger *logger.Logger) *Router {
	return &Router{
		gate:         gate,
		serviceToken: serviceToken,
		health:       health.NewServer(),
		logger:       logger.With("transport", "grpc"),
	}
}

// Health returns the health server so callers can flip serving status on shutdown.
func (r *Router) Health() *health.Server {
	return r.health
}

func authRequired(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+healthpb.Health_ServiceDesc.ServiceName+"/")
}

// Register registers all gRPC services and middleware.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	serviceAuth := middleware.NewServiceAuth(r.serviceToken, r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(serviceAuth.AuthFunc),
				selector.MatchFunc(authRequired),
			),
		),
		grpc.ChainStreamInterceptor(
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(serviceAuth.AuthFunc),
				selector.MatchFunc(authRequired),
			),
		),
	)

	handler.RegisterIdentityServer(s, handler.NewIdentity(r.gate, r.logger))
	healthpb.RegisterHealthServer(s, r.health)
	r.health.SetServingStatus(handler.IdentityServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}
