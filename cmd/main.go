package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/reflection"

	grpcRouter "github.com/schoolms/schoolms-server/internal/api/grpc/router"
	grpcServer "github.com/schoolms/schoolms-server/internal/api/grpc/server"
	httpContext "github.com/schoolms/schoolms-server/internal/api/http/context"
	httpRouter "github.com/schoolms/schoolms-server/internal/api/http/router"
	httpServer "github.com/schoolms/schoolms-server/internal/api/http/server"
	"github.com/schoolms/schoolms-server/internal/config"
	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/metrics"
	"github.com/schoolms/schoolms-server/internal/model"
	"github.com/schoolms/schoolms-server/internal/password"
	"github.com/schoolms/schoolms-server/internal/ratelimit"
	"github.com/schoolms/schoolms-server/internal/repository/postgres"
	"github.com/schoolms/schoolms-server/internal/server"
	"github.com/schoolms/schoolms-server/internal/service"
	"github.com/schoolms/schoolms-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)

	hasher, err := password.NewHasher(password.Policy{
		MinLength:         cfg.Auth.PasswordMinLength,
		RequireComplexity: cfg.Auth.PasswordRequireComplexity,
	}, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to initialize password hasher", "error", err)
	}

	codec, err := token.NewCodec(token.Config{
		Secret:    cfg.JWT.Secret,
		Algorithm: cfg.JWT.Algorithm,
		Issuer:    cfg.JWT.Issuer,
	})
	if err != nil {
		logger.Fatal("failed to initialize token codec", "error", err)
	}

	throttle, closeThrottle := newLoginThrottle(ctx, cfg, logger)
	defer closeThrottle()

	authMetrics := metrics.New()

	tokenService := service.NewTokenService(codec, refreshTokenRepo, cfg.JWT.AccessTTL(), cfg.JWT.RefreshTTL(), logger)
	authService := service.NewAuth(
		userRepo,
		tokenService,
		db,
		hasher,
		throttle,
		authMetrics,
		service.AuthOptions{RevokeSessionsOnPasswordChange: cfg.Auth.RevokeSessionsOnPasswordChange},
		logger,
	)
	gate := service.NewGate(codec, userRepo, logger)

	servers := []model.Server{
		httpServer.NewHTTPServer(
			httpRouter.New(authService, gate, httpContext.NewManager(), authMetrics, db, cfg.HTTP.TrustProxyHeaders, logger).Register(),
			cfg.HTTP.Address,
			cfg.HTTP.ReadHeaderTimeout,
		),
	}
	if cfg.GRPC.ServiceToken != "" {
		servers = append(servers, registerGRPCServer(gate, cfg.GRPC.ServiceToken, fmt.Sprintf(":%s", cfg.GRPC.Port), logger))
	} else {
		logger.Info("GRPC_SERVICE_TOKEN is empty, identity server disabled")
	}

	sl := server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "server", s.Name(), "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "server", s.Name(), "error", err)
				stop()
			}
		}(s)
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "server", s.Name(), "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

// newLoginThrottle connects to Redis when configured. Without Redis, or when
// it is unreachable at startup, logins are not throttled.
func newLoginThrottle(ctx context.Context, cfg *config.Config, logger *logger.Logger) (model.LoginThrottle, func()) {
	if cfg.Redis.Address == "" {
		logger.Info("REDIS_ADDRESS is empty, login throttling disabled")
		return ratelimit.Noop{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis is unreachable, login throttle will fail open", "error", err)
	}

	limiter := ratelimit.NewLoginLimiter(client, cfg.Throttle.MaxLoginAttempts, cfg.Throttle.MaxLoginAttemptsPerEmail, cfg.Throttle.LoginWindow, logger)
	return limiter, func() { _ = client.Close() }
}

func registerGRPCServer(gate *service.Gate, serviceToken, addr string, logger *logger.Logger) *grpcServer.GRPCServer {
	r := grpcRouter.New(gate, serviceToken, logger)
	s := r.Register()

	reflection.Register(s)

	return grpcServer.NewGRPCServer(s, addr)
}
