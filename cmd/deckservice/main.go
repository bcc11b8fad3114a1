package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/deckpress/api"
	"github.com/example/deckpress/internal/auth"
	"github.com/example/deckpress/internal/config"
	"github.com/example/deckpress/internal/deck/domain"
	"github.com/example/deckpress/internal/deck/handler"
	"github.com/example/deckpress/internal/deck/render"
	"github.com/example/deckpress/internal/deck/repository"
	deckservice "github.com/example/deckpress/internal/deck/service"
	ratelimitmw "github.com/example/deckpress/internal/http/middleware"
	"github.com/example/deckpress/pkg/events"
	"github.com/example/deckpress/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, cfgErr := config.Load(os.Getenv("DOTENV_PATH"))

	logger := observability.SetupLogger("deck-service", cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck
	if cfgErr != nil {
		logger.Fatal("config", zap.Error(cfgErr))
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.SetupTracer(ctx, "deck-service")
		if err != nil {
			logger.Warn("tracer setup failed", zap.Error(err))
		} else {
			defer shutdown(context.Background()) //nolint:errcheck
		}
	}

	var checks []observability.Check

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, continuing without redis", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			checks = append(checks, observability.Check{Name: "redis", Ping: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}})
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("deckservice")); err == nil {
			natsConn = conn
			defer conn.Drain() //nolint:errcheck
			checks = append(checks, observability.Check{Name: "nats", Ping: func(context.Context) error {
				if !conn.IsConnected() {
					return errors.New(conn.Status().String())
				}
				return nil
			}})
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		logger.Fatal("generator", zap.Error(err))
	}

	var idem domain.IdempotencyRepository
	if redisClient != nil {
		idem = repository.NewRedisIdempotencyRepo(redisClient, "", cfg.IdempotencyTTL)
	} else {
		idem = repository.NewMemoryIdempotencyRepo(cfg.IdempotencyTTL)
	}
	publisher := events.NewPublisher(natsConn, cfg.NATSSubject)

	svc := deckservice.New(generator, publisher, idem, domain.SystemClock{}, logger.Named("deck"))

	limiter := ratelimitmw.NewRateLimiter(redisClient, ratelimitmw.RateConfig{
		Rate:  cfg.RateReadRPS,
		Burst: cfg.RateReadBurst,
	}, ratelimitmw.RateConfig{
		Rate:  cfg.RateGenRPS,
		Burst: cfg.RateGenBurst,
	}, logger.Named("ratelimit"))

	// a nil limiter passes requests straight through
	opts := handler.Options{MaxBodyBytes: cfg.MaxBodyBytes, Limit: limiter.Middleware}
	authCfg := auth.Config{Secret: cfg.JWTSecret, Roles: cfg.JWTRoles, Issuer: cfg.JWTIssuer}
	if authCfg.Enabled() {
		opts.Guard = auth.Middleware(authCfg)
	}
	deckHTTP := handler.NewHTTP(svc, logger.Named("http"), opts)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Logger, chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Client-ID"},
		ExposedHeaders: []string{"Content-Disposition", "Idempotent-Replayed"},
		MaxAge:         300,
	}))
	r.Mount("/observability", observability.MetricsRouter(checks...))
	r.Get("/docs/openapi.yaml", api.OpenAPIHandler)
	r.Mount("/", deckHTTP.Router())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("deck service listening", zap.String("addr", srv.Addr), zap.String("generator", generator.Name()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildGenerator(cfg config.Config, logger *zap.Logger) (domain.Generator, error) {
	if cfg.Generator == config.GeneratorScript {
		return render.NewScript(render.ScriptConfig{
			Command: cfg.ScriptCommand,
			Args:    cfg.ScriptArgs,
			Timeout: cfg.ScriptTimeout,
			TempDir: cfg.TempDir,
		}, logger.Named("script"))
	}
	return render.NewNative(logger.Named("native")), nil
}
