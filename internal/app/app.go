package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/cache"
	"github.com/aasim911-prog/department/internal/config"
	"github.com/aasim911-prog/department/internal/delivery/httpd"
	"github.com/aasim911-prog/department/internal/grading"
	"github.com/aasim911-prog/department/internal/metrics"
	"github.com/aasim911-prog/department/internal/middleware"
	"github.com/aasim911-prog/department/internal/repository"
	"github.com/aasim911-prog/department/internal/service"
	"github.com/aasim911-prog/department/internal/service/integration"
	"github.com/aasim911-prog/department/internal/worker"
	"github.com/aasim911-prog/department/internal/worker/queue"
)

type App struct {
	server             *http.Server
	logger             zerolog.Logger
	config             *config.Config
	db                 *sql.DB
	summaryCache       *cache.Cache[service.SummarySlot]
	publisher          integration.EventPublisher
	invalidationWorker worker.InvalidationWorker
	cancel             context.CancelFunc
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	m := metrics.NewDefault()

	aggregator, err := grading.NewAggregator(cfg.Grading.Policy())
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	ttl := cfg.Cache.TTL
	if !cfg.Cache.Enabled {
		ttl = 0
	}
	summaryCache := cache.New[service.SummarySlot](ttl)

	userRepo := repository.NewUserRepository(db, log)
	subjectRepo := repository.NewSubjectRepository(db, log)
	markRepo := repository.NewMarkRepository(db, log)

	// Messaging and storage are optional; the service keeps running without
	// them and the related features degrade.
	var publisher integration.EventPublisher
	if cfg.RabbitMQ.Enabled {
		p, err := integration.NewRabbitMQClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize RabbitMQ publisher, continuing without events")
		} else {
			publisher = p
		}
	}

	var storage repository.TranscriptStorage
	if cfg.Storage.Enabled {
		s, err := repository.NewMinIOStorage(cfg.Storage, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize transcript storage, exports disabled")
		} else {
			storage = s
		}
	}

	userService := service.NewUserService(userRepo, log)
	subjectService := service.NewSubjectService(subjectRepo, markRepo, userRepo, summaryCache, publisher, m, log)
	markService := service.NewMarkService(markRepo, subjectRepo, userRepo, aggregator.Policy(), summaryCache, publisher, m, log)
	dashboardService := service.NewDashboardService(
		userRepo,
		subjectRepo,
		markRepo,
		aggregator,
		summaryCache,
		storage,
		m,
		log,
		service.DashboardConfig{PresignExpiry: cfg.Storage.PresignExpiry},
	)

	var invalidationWorker worker.InvalidationWorker
	if cfg.RabbitMQ.Enabled {
		consumer, err := queue.NewRabbitMQConsumer(queue.ConsumerConfig{
			URL:           cfg.RabbitMQ.URL,
			Exchange:      cfg.RabbitMQ.Exchange,
			RoutingKey:    cfg.RabbitMQ.RoutingKey,
			QueueName:     cfg.RabbitMQ.QueueName,
			ConsumerTag:   cfg.RabbitMQ.ConsumerTag,
			PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize RabbitMQ consumer, relying on cache TTL")
		} else {
			pool := worker.NewWorkerPool(cfg.Worker.MaxWorkers, cfg.Worker.QueueSize, log)
			invalidationWorker = worker.NewInvalidationWorker(pool, consumer, summaryCache, m, log)
		}
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Leeway, log)

	handler := httpd.NewHandler(
		userService,
		subjectService,
		markService,
		dashboardService,
		auth,
		db,
		m.Handler(),
		httpd.RateLimit{
			Enabled:  cfg.RateLimit.Enabled,
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		log,
	)

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger(log, m))
	router.Use(middleware.Recovery(log))
	if cfg.Server.RequestTimeout > 0 {
		router.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:             server,
		logger:             log,
		config:             cfg,
		db:                 db,
		summaryCache:       summaryCache,
		publisher:          publisher,
		invalidationWorker: invalidationWorker,
	}, nil
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.summaryCache.RunJanitor(ctx, a.config.Cache.CleanupInterval)

	if a.invalidationWorker != nil {
		if err := a.invalidationWorker.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to start invalidation worker")
			return err
		}
	}

	a.logger.Info().Msgf("Starting department service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down department service...")

	// in-flight requests still need the database and the publisher
	serverErr := a.server.Shutdown(ctx)
	if serverErr != nil {
		a.logger.Error().Err(serverErr).Msg("Failed to shutdown HTTP server")
	}

	if a.invalidationWorker != nil {
		if err := a.invalidationWorker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop invalidation worker")
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info().Msg("Department service stopped")
	return nil
}
