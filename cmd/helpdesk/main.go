package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clinica-central/helpdesk/internal/app"
	"github.com/clinica-central/helpdesk/internal/auth"
	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/catalog"
	"github.com/clinica-central/helpdesk/internal/observability"
	"github.com/clinica-central/helpdesk/internal/pictures"
	"github.com/clinica-central/helpdesk/internal/platform/cache"
	"github.com/clinica-central/helpdesk/internal/platform/db"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/roles"
	"github.com/clinica-central/helpdesk/internal/session"
	"github.com/clinica-central/helpdesk/internal/shared"
	"github.com/clinica-central/helpdesk/internal/telemetry"
	"github.com/clinica-central/helpdesk/internal/users"
	"github.com/clinica-central/helpdesk/jobs"
	"github.com/clinica-central/helpdesk/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	}, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if _, err := db.Migrate(ctx, dbpool, migrations.FS, logger); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cache.Options{Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var store pictures.FileStore
	switch cfg.PicturesBackend {
	case "minio":
		store, err = pictures.NewMinioStore(ctx, pictures.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		store, err = pictures.NewLocalStore(cfg.PicturesDir)
	}
	if err != nil {
		logger.Error("init picture store", slog.String("backend", cfg.PicturesBackend), slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	var catalogCache *cache.Versioned
	if redisClient != nil {
		catalogCache = cache.NewVersioned(redisClient, "helpdesk:catalog", cfg.CatalogCacheTTL)
	}
	catalogRepo := catalog.NewRepository(dbpool)
	lookup := catalog.NewLookup(catalogRepo, catalogCache, logger)
	catalogService := catalog.NewService(catalogRepo, lookup, logger)

	usersService := users.NewService(users.NewRepository(dbpool), logger)
	guard := authz.Guard{Actors: usersService, Logger: logger, TrustRoleHeader: cfg.AuthzTrustRoleHeader}

	sessions := session.NewResolver(
		session.NewCodec(cfg.SessionSecret, cfg.SessionTTL),
		cfg.SessionCookie,
		cfg.IsProduction(),
		logger,
	)

	authService := auth.NewService(auth.NewRepository(dbpool))

	requestsRepo := requests.NewRepository(dbpool)
	requestsService := requests.NewService(requestsRepo, lookup, logger)
	requestsService.SetNotifier(jobClient)
	requestsService.SetMetrics(metrics)

	picturesService := pictures.NewService(pictures.NewRepository(dbpool), requestsRepo, store, cfg.PicturesMaxBytes, logger)
	picturesService.SetPurger(jobClient)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Sessions:        sessions,
		AuthHandler:     auth.NewHandler(logger, authService, sessions, usersService, guard),
		RequestsHandler: requests.NewHandler(logger, requestsService, guard, idempotencyStore),
		PicturesHandler: pictures.NewHandler(logger, picturesService, guard),
		CatalogHandler:  catalog.NewHandler(logger, catalogService, guard),
		UsersHandler:    users.NewHandler(logger, usersService, guard),
		RolesHandler:    roles.NewHandler(logger, roles.NewRepository(dbpool), guard),
		JobHandler:      jobs.NewHandler(inspector, guard, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
