package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cyberprint/docs"
	"cyberprint/internal/config"
	"cyberprint/internal/database"
	"cyberprint/internal/database/migration"
	"cyberprint/internal/grant"
	handlers "cyberprint/internal/http/handler"
	"cyberprint/internal/http/middleware"
	"cyberprint/internal/logging"
	"cyberprint/internal/notify"
	"cyberprint/internal/otel"
	"cyberprint/internal/repository/postgres"
	"cyberprint/internal/retry"
	"cyberprint/internal/service"
	"cyberprint/internal/storage"
)

// multipartOverhead is added to the intake limit so boundaries and form fields fit in the body.
const multipartOverhead = 1 << 20

// @title Cyber Center Print API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log := logging.New(cfg.Log)
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.OTP.Pepper == "" {
		log.Fatal("OTP_PEPPER is required")
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			log.Warn("sentry_init_failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	retrier := retry.New(retry.FromConfig(cfg.Retry), log)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database, retrier)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal("failed to initialize object storage", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	cancel()

	var notifier notify.Notifier
	if cfg.NSQ.NSQDAddr != "" {
		producer, err := notify.NewProducer(cfg.NSQ.NSQDAddr)
		if err != nil {
			log.Fatal("failed to connect to nsqd", zap.Error(err))
		}
		defer producer.Stop()
		notifier = notify.NewNSQNotifier(producer, cfg.NSQ.Topic, log)
	} else {
		log.Warn("NSQD_ADDR not set, one-time codes are written to the log")
		notifier = notify.NewLogNotifier(log)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "cyberprint"),
	)
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal("failed to register http metrics", zap.Error(err))
	}

	// Initialize repositories and services
	store := postgres.NewStore(db)
	grants := grant.NewStore(rdb)

	dirSvc := service.NewDirectoryService(store.Centers(), cfg.PublicBaseURL)
	intakeSvc := service.NewIntakeService(store, objStore, dirSvc, retrier, log, metrics, cfg.Intake)
	otpSvc := service.NewOTPService(store, dirSvc, grants, notifier, retrier, log, metrics, cfg.OTP, cfg.Print.GrantTTL)
	printSvc := service.NewPrintService(store, objStore, dirSvc, grants, retrier, log, metrics)

	sweeper := service.NewSweeper(store, objStore, retrier, log, metrics, cfg.Print)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Intake.MaxBytes) + multipartOverhead,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, db, handlers.Services{
		Intake:    intakeSvc,
		Directory: dirSvc,
		OTP:       otpSvc,
		Print:     printSvc,
	}, middleware.AuthConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("http_server_starting", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			log.Error("http_server_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting_down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("http_shutdown_failed", zap.Error(err))
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFlush()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Error("tracing_shutdown_failed", zap.Error(err))
	}
}
