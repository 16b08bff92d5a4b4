package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/naruebet/identity-api/internal/config"
	"github.com/naruebet/identity-api/internal/discovery"
	"github.com/naruebet/identity-api/internal/handler"
	"github.com/naruebet/identity-api/internal/mailer"
	"github.com/naruebet/identity-api/internal/reaper"
	"github.com/naruebet/identity-api/internal/repository"
	"github.com/naruebet/identity-api/internal/security"
	"github.com/naruebet/identity-api/internal/token"
	"github.com/naruebet/identity-api/internal/usecase"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.New(&logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}

	db := client.Database(cfg.MongoDatabase)

	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)
	challengeRepo := repository.NewTwoFactorChallengeMongoRepository(ctx, &logger, db)
	revokedRepo := repository.NewRevokedRefreshTokenMongoRepository(ctx, &logger, db)

	hasher := security.NewHasher(cfg.Auth.Argon2TimeCost)
	jwtAuth := token.NewAuthenticator(cfg.Token.Issuer, nil)
	m := mailer.NewMailer(&logger)

	authUsecase := usecase.NewAuthUsecase(userRepo, challengeRepo, hasher, m, cfg, nil)
	sessionUsecase := usecase.NewSessionUsecase(userRepo, revokedRepo, jwtAuth, cfg, nil)
	accountUsecase := usecase.NewAccountUsecase(userRepo, challengeRepo, hasher, m, cfg, nil)

	expiryReaper := reaper.New(userRepo, challengeRepo, revokedRepo, cfg, &logger, nil)
	go expiryReaper.Run(ctx)

	h := handler.New(authUsecase, sessionUsecase, accountUsecase, jwtAuth, cfg, &logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	h.Register(router)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if cfg.ConsulAddr != "" {
		registrar, err := discovery.NewRegistrar(cfg.ConsulAddr, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create consul client")
		}

		host, port := serviceAddress(cfg.HTTPAddr, &logger)
		healthURL := fmt.Sprintf("http://%s:%d/healthz", host, port)
		if err := registrar.Register(cfg.ServiceName, host, port, healthURL); err != nil {
			logger.Fatal().Err(err).Msg("failed to register with consul")
		}
		defer registrar.Deregister()
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down http server")
	}
}

// serviceAddress resolves the host and port to advertise to consul from the
// listen address.
func serviceAddress(httpAddr string, logger *zerolog.Logger) (string, int) {
	host, portStr, err := net.SplitHostPort(httpAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid HTTP_ADDR")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid HTTP_ADDR port")
	}

	if host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to resolve hostname")
		}
		host = hostname
	}

	return host, port
}
