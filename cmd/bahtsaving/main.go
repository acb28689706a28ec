package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/krizad/baht-saving-project/internal/amqp"
	"github.com/krizad/baht-saving-project/internal/backend"
	"github.com/krizad/baht-saving-project/internal/cache"
	"github.com/krizad/baht-saving-project/internal/cli"
	apphttp "github.com/krizad/baht-saving-project/internal/http"
	"github.com/krizad/baht-saving-project/internal/ledger"
	applog "github.com/krizad/baht-saving-project/internal/log"
	"github.com/krizad/baht-saving-project/internal/metrics"
	"github.com/krizad/baht-saving-project/internal/session"
)

const (
	sessionSweepInterval = 5 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", "error", envErr)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	res, err := backend.Open(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Deposit events are optional; the API keeps working without a broker.
	var ledgerOpts []ledger.Option
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without deposit events", "error", err)
			amqpClient = nil
		} else {
			ledgerOpts = append(ledgerOpts, ledger.WithPublisher(amqpClient))
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	sessions := session.NewStore(res.Store,
		session.WithTTL(cfg.SessionTTL),
		session.WithMaxEntries(cfg.SessionMaxEntries))

	janitor := cache.NewManager()
	janitor.Register(cache.CleanerFunc(sessions.Sweep))
	janitor.StartCleanup(sessionSweepInterval)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions:           sessions,
		Ledger:             ledger.New(res.Store, ledgerOpts...),
		Store:              res.Store,
		Metrics:            metrics.NewCollector(prometheus.DefaultRegisterer),
		Gatherer:           prometheus.DefaultGatherer,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		RequestTimeout:     cfg.RequestTimeout,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	})

	_, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		janitor.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	})

	logger.Info("Starting bahtsaving server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
