// Command echo-agent serves the echo assistant over a LangGraph-compatible
// HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/config"
	"github.com/deppfellow/agent-chat-backend/internal/database"
	"github.com/deppfellow/agent-chat-backend/internal/handler"
	"github.com/deppfellow/agent-chat-backend/internal/logger"
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/deppfellow/agent-chat-backend/internal/router"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/deppfellow/agent-chat-backend/internal/service"
)

// migrateTimeout bounds schema migrations at startup.
const migrateTimeout = time.Minute

func main() {
	os.Exit(run())
}

// run starts the service and blocks until it stops. It returns the process
// exit code so deferred flushes happen before the process exits.
func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	fail := func(err error, msg string) int {
		log.Error().Err(err).Msg(msg)
		return 1
	}

	if cfg.Storage.Driver == config.StoragePostgres {
		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		err := database.Migrate(ctx, &log, cfg)
		cancel()
		if err != nil {
			return fail(err, "failed to migrate database")
		}
	}

	srv, err := server.New(cfg, &log, loggerService)
	if err != nil {
		return fail(err, "failed to initialize server")
	}

	repos, err := repository.NewRepositories(srv)
	if err != nil {
		return fail(err, "failed to initialize repositories")
	}

	services, err := service.NewServices(srv, repos, service.NewAgentRegistry())
	if err != nil {
		return fail(err, "could not create services")
	}

	handlers := handler.NewHandlers(srv, repos, services)
	r := router.NewRouter(srv, handlers)
	srv.SetupHTTPServer(r)

	if srv.Job != nil {
		if err := srv.Job.Start(); err != nil {
			log.Error().Err(err).Msg("failed to start background jobs, continuing without them")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	code := 0
	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			code = 1
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
	return code
}
