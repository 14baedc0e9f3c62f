package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/danpasecinic/taskwarden/internal/api"
	"github.com/danpasecinic/taskwarden/internal/config"
	"github.com/danpasecinic/taskwarden/internal/journal"
	"github.com/danpasecinic/taskwarden/internal/logging"
	"github.com/danpasecinic/taskwarden/internal/task"
	"github.com/danpasecinic/taskwarden/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Infow("wardend starting", "version", types.Version, "listen", cfg.Listen)

	failures, closer := initJournal(cfg, log)
	defer func() {
		if err := closer(); err != nil {
			log.Errorw("error closing journal", "error", err)
		}
	}()

	workloads := newDemo(log)

	tcfg := cfg.TaskConfig()
	tcfg.Logger = log.Named("task")
	tcfg.Report = func(rec types.FailureRecord) {
		log.Errorw("task failure", "task", rec.Name, "id", rec.TaskID, "reason", rec.Reason)
		if err := failures.Append(rec); err != nil {
			log.Errorw("failed to journal failure", "id", rec.TaskID, "error", err)
		}
	}
	tcfg.OnRestart = workloads.restart

	registry, err := task.New(tcfg)
	if err != nil {
		log.Fatalw("failed to start task registry", "error", err)
	}
	workloads.reg = registry

	server := api.NewServer(registry, failures, log.Named("api"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(log.Named("http")))

	server.RegisterRoutes(e)

	go func() {
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("shutting down the server", "error", err)
		}
	}()

	demoCtx, stopDemo := context.WithCancel(context.Background())
	if cfg.Demo {
		go workloads.run(demoCtx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")
	stopDemo()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Errorw("server shutdown failed", "error", err)
	}

	if err := registry.Close(ctx); err != nil {
		log.Errorw("task registry shutdown failed", "error", err)
	}

	if registry.RebootRequested() {
		log.Warnw("a task with the reboot-system policy died during this run")
	}

	log.Infow("server stopped")
}

// initJournal initializes the failure journal based on the configuration
// Returns the journal and its closer
func initJournal(cfg config.Config, log *zap.SugaredLogger) (journal.Journal, func() error) {
	switch cfg.JournalType {
	case config.JournalPostgres:
		log.Infow("initializing PostgreSQL journal", "url", maskPassword(cfg.DatabaseURL))
		pg, err := journal.NewPostgresJournal(cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("failed to initialize PostgreSQL journal", "error", err)
		}

		log.Infow("PostgreSQL journal initialized successfully")
		return pg, pg.Close

	default:
		log.Infow("using in-memory journal (failures will not persist)")
		mem := journal.NewInMemoryJournal(journal.DefaultCapacity)
		return mem, mem.Close
	}
}

// maskPassword hides the password in a database URL for logging. Connection
// strings that are not URLs are masked completely.
func maskPassword(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***masked***"
	}
	return u.Redacted()
}

func requestLogger(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(
		middleware.RequestLoggerConfig{
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogError:   true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				if v.Error != nil {
					log.Warnw(
						"request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "error", v.Error,
					)
					return nil
				}
				log.Debugw("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
				return nil
			},
		},
	)
}
