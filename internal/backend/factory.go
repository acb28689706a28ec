package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krizad/baht-saving-project/internal/config"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
	gsheet "github.com/krizad/baht-saving-project/internal/sheets/google"
	"github.com/krizad/baht-saving-project/internal/sheets/memory"
	"github.com/krizad/baht-saving-project/internal/storage"
)

// Open builds the record store named by cfg.DataBackend. The memory and
// sqlite backends are seeded from cfg.SeedDir; the spreadsheet is the
// source of truth and is never seeded.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := Type(cfg.DataBackend)
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid backend type %q: must be one of %v", cfg.DataBackend, Types())
	}
	switch t {
	case Memory:
		return openMemory(cfg, logger)
	case SQLite:
		return openSQLite(ctx, cfg, logger)
	default:
		return openSheets(ctx, cfg, logger)
	}
}

func openMemory(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	store, err := memory.NewFromFiles(cfg.SeedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}
	logger.Info("Initialized memory backend", "seed_dir", cfg.SeedDir)
	return &Result{Type: Memory, Store: store}, nil
}

func openSQLite(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	seed, err := ports.LoadSeed(cfg.SeedDir)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to load seed: %w", err)
	}
	if err := repo.Seed(ctx, seed); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to seed SQLite repository: %w", err)
	}

	logger.Info("Initialized SQLite backend",
		"db_path", cfg.SQLiteDBPath,
		"seed_users", len(seed.Users),
		"seed_members", len(seed.Members))
	return &Result{Type: SQLite, Store: repo, Cleanup: repo.Close}, nil
}

func openSheets(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	cli, err := NewSheetsClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized Google Sheets backend", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return &Result{Type: Sheets, Store: cli}, nil
}

// NewSheetsClient opens the spreadsheet named in cfg. The mirror worker
// uses it directly as its write target.
func NewSheetsClient(ctx context.Context, cfg *config.Config) (*gsheet.Client, error) {
	if err := cfg.ValidateSheets(); err != nil {
		return nil, err
	}
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		UserSheet:       cfg.SheetUser,
		MemberSheet:     cfg.SheetMember,
		DepositSheet:    cfg.SheetDeposit,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}
