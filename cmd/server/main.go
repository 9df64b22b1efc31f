package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	httpAdapter "github.com/iho/interbank/internal/adapter/http"
	"github.com/iho/interbank/internal/adapter/http/handler"
	postgresRepo "github.com/iho/interbank/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/interbank/internal/adapter/repository/redis"
	"github.com/iho/interbank/internal/directory"
	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/infrastructure/config"
	"github.com/iho/interbank/internal/infrastructure/logger"
	"github.com/iho/interbank/internal/infrastructure/metrics"
	"github.com/iho/interbank/internal/infrastructure/postgres"
	"github.com/iho/interbank/internal/infrastructure/redis"
	"github.com/iho/interbank/internal/keys"
	"github.com/iho/interbank/internal/peerclient"
	"github.com/iho/interbank/internal/rates"
	"github.com/iho/interbank/internal/usecase"
)

// staticRates is the last-resort conversion table used when no live rate
// source is configured or reachable.
var staticRates = map[string]decimal.Decimal{
	"USD:EUR": decimal.RequireFromString("0.92"),
	"USD:GBP": decimal.RequireFromString("0.79"),
	"EUR:GBP": decimal.RequireFromString("0.86"),
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger
	zerolog.DefaultContextLogger = &appLogger

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	appLogger.Info().Msg("connected to redis")

	// Signing keys
	custodian, err := keys.NewCustodian(cfg.KeyDir, cfg.BankName, appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signing keys")
	}

	appMetrics := metrics.New()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	transferRepo := postgresRepo.NewTransferRepository(pool)
	retrier := postgresRepo.NewRetrier(appLogger)
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)

	// Bank directory
	dirBackend := directory.NewHTTPBackend(cfg.DirectoryURL, cfg.DirectoryAPIKey, cfg.PeerTimeout)
	dirClient := directory.NewClient(dirBackend, cache, directory.Config{
		Self: domain.PeerBank{
			RoutingPrefix:    cfg.RoutingPrefix,
			Name:             cfg.BankName,
			TransferEndpoint: cfg.PublicBaseURL + "/api/b2b/transfer",
			KeySetEndpoint:   cfg.PublicBaseURL + "/.well-known/jwks.json",
		},
		TTL:              cfg.DirectoryTTL,
		RegistrationFile: cfg.DirectoryRegistration,
		KeyFetchTimeout:  cfg.KeyFetchTimeout,
	}, appMetrics, appLogger)

	// Registration is best effort: the fallback chain keeps outbound
	// settlement alive while the directory is down.
	if err := dirClient.Register(ctx); err != nil {
		appLogger.Warn().Err(err).Msg("directory registration failed, continuing")
	}

	// Currency conversion
	var rateSource rates.Source
	if cfg.RateSourceURL != "" {
		rateSource = rates.NewHTTPSource(cfg.RateSourceURL, cfg.PeerTimeout)
	}
	oracle := rates.NewOracle(rateSource, cache, cfg.RateTTL, staticRates, appMetrics, appLogger)

	// Peer transport
	peerGateway := peerclient.NewClient(cfg.PeerTimeout, appLogger)

	// Use cases
	accountUC := usecase.NewAccountUseCase(accountRepo, idGen, cfg.RoutingPrefix, appMetrics)
	settlementUC := usecase.NewSettlementUseCase(
		txManager,
		accountRepo,
		transferRepo,
		dirClient,
		custodian,
		keys.NewVerifier(),
		oracle,
		peerGateway,
		idGen,
		retrier,
		usecase.SettlementConfig{
			BankName:      cfg.BankName,
			RoutingPrefix: cfg.RoutingPrefix,
			PrefixLength:  cfg.PrefixLength,
		},
		appMetrics,
		appLogger,
	)

	// Router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:  handler.NewAccountHandler(accountUC),
		TransferHandler: handler.NewTransferHandler(settlementUC),
		B2BHandler:      handler.NewB2BHandler(settlementUC),
		PeerHandler:     handler.NewPeerHandler(dirClient),
		JWKSHandler:     handler.NewJWKSHandler(custodian),
		HealthHandler:   handler.NewHealthHandler(pool, redisClient),
		Logger:          appLogger,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		appLogger.Info().
			Str("port", cfg.HTTPPort).
			Str("bank", cfg.BankName).
			Str("prefix", cfg.RoutingPrefix).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server stopped")
}
