// Command ledger-worker mirrors deposits recorded by the API into the
// Google spreadsheet. It consumes deposit events and, at start-up and on a
// timer, reconciles the spreadsheet with the API's record store to catch
// events lost while either side was down.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krizad/baht-saving-project/internal/amqp"
	"github.com/krizad/baht-saving-project/internal/backend"
	"github.com/krizad/baht-saving-project/internal/cli"
	"github.com/krizad/baht-saving-project/internal/config"
	applog "github.com/krizad/baht-saving-project/internal/log"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
	"github.com/krizad/baht-saving-project/internal/worker"
)

const (
	reconcileInterval = 15 * time.Minute
	shutdownTimeout   = 15 * time.Second
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", "error", envErr)
	}

	logger.Info("Starting ledger-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.DataBackend == config.BackendSheets {
		logger.Error("The API already writes to the spreadsheet; nothing to mirror", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the ledger worker")
		os.Exit(1)
	}

	sheetsClient, err := backend.NewSheetsClient(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	source, err := backend.Open(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to open source backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer source.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(sheetsClient)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	reconcile(ctx, logger, mirror, source.Store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeDepositEvents(gctx, mirror.HandleMessage)
	})
	g.Go(func() error {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				reconcile(gctx, logger, mirror, source.Store)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger worker stopped", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("Ledger worker stopped gracefully")
}

func reconcile(ctx context.Context, logger *applog.Logger, mirror *worker.MirrorWorker, source ports.DepositStore) {
	n, err := mirror.Reconcile(ctx, source)
	if err != nil {
		logger.Error("Reconcile failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("Reconciled spreadsheet with record store", "changes", n)
	}
}
