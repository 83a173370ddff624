package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/schoolms/schoolms-server/internal/api/http/handler"
	"github.com/schoolms/schoolms-server/internal/api/http/middleware"
	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/model"
	"github.com/schoolms/schoolms-server/pkg/response"
)

// healthTimeout bounds the dependency check behind GET /health.
const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router wires the HTTP API.
type Router struct {
	authService    handler.AuthService
	authenticator  middleware.Authenticator
	contextManager model.ContextManager
	metrics        MetricsProvider
	pinger         Pinger
	trustProxy     bool
	logger         *logger.Logger
}

// MetricsProvider exposes latency observation and the scrape endpoint.
type MetricsProvider interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// New creates new HTTP Router instance. metrics and pinger may be nil.
// trustProxy takes client addresses from forwarding headers, which clients
// can forge unless a proxy in front overwrites them.
func New(
	authService handler.AuthService,
	authenticator middleware.Authenticator,
	contextManager model.ContextManager,
	metrics MetricsProvider,
	pinger Pinger,
	trustProxy bool,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		authenticator:  authenticator,
		contextManager: contextManager,
		metrics:        metrics,
		pinger:         pinger,
		trustProxy:     trustProxy,
		logger:         logger.With("transport", "http"),
	}
}

// Register builds the chi mux with every route and middleware.
func (r *Router) Register() http.Handler {
	var observer middleware.HTTPObserver
	if r.metrics != nil {
		observer = r.metrics
	}
	logging := middleware.NewLogging(r.logger, observer)
	authenticate := middleware.NewAuthenticate(r.authenticator, r.contextManager, r.logger)
	auth := handler.NewAuth(r.authService, r.contextManager, r.logger)

	mux := chi.NewRouter()
	mux.Use(chimiddleware.RequestID)
	if r.trustProxy {
		mux.Use(chimiddleware.RealIP)
	}
	mux.Use(logging.Handle)
	mux.Use(chimiddleware.Recoverer)

	mux.Get("/health", r.health)
	if r.metrics != nil {
		mux.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	}

	mux.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", auth.Register)
		ar.Post("/login", auth.Login)
		ar.Post("/refresh", auth.Refresh)
		ar.Post("/logout", auth.Logout)

		ar.Group(func(pr chi.Router) {
			pr.Use(authenticate.Handle)
			pr.Get("/me", auth.Me)
			pr.Get("/verify-token", auth.VerifyToken)
			pr.Post("/change-password", auth.ChangePassword)
			pr.With(authenticate.RequireRoles(model.RoleDistrictAdmin, model.RolePrincipal)).
				Get("/users/{userID}", auth.GetUser)
		})
	})

	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteError(w, http.StatusNotFound, "route not found")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return mux
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if r.pinger == nil {
		response.WriteSuccess(w, http.StatusOK, healthStatus{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
	defer cancel()

	if err := r.pinger.Ping(ctx); err != nil {
		r.logger.Warn("Router: health check failed",
			"error", err.Error())
		response.WriteSuccess(w, http.StatusServiceUnavailable, healthStatus{Status: "degraded", Database: "unreachable"})
		return
	}

	response.WriteSuccess(w, http.StatusOK, healthStatus{Status: "ok", Database: "ok"})
}
