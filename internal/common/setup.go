package common

import (
	"context"
	"log"
	"strings"

	"rebate-ledger-go/internal/accounts"
	"rebate-ledger-go/internal/api"
	"rebate-ledger-go/internal/database"
	"rebate-ledger-go/internal/ledger"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/platform"
	"rebate-ledger-go/internal/rebate"
	"rebate-ledger-go/internal/settlement"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService       *database.Service
	PlatformService *platform.Service
	Rebates         *rebate.Engine
	Ledger          *ledger.Engine
	Settlement      *settlement.Job
	Refresher       *accounts.Refresher
	Api             *api.LedgerService
}

// InitializeLogger builds the global logger: coloured console output for
// "debug", JSON with ISO8601 timestamps otherwise.
func InitializeLogger(mode string) (*zap.Logger, func()) {
	var config zap.Config
	if mode == "debug" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := config.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the database, the platform bridge and every
// engine on top of them.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Connecting trading platform bridge", zap.String("base_url", cfg.Platform.BaseUrl))
	platformService, err := platform.NewService(cfg.Platform)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	settlementJob, err := settlement.NewJob(dbService, cfg.Settlement)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	ledgerEngine := ledger.NewEngine(dbService, platformService)
	return &Services{
		DbService:       dbService,
		PlatformService: platformService,
		Rebates:         rebate.NewEngine(dbService, cfg.Rebate),
		Ledger:          ledgerEngine,
		Settlement:      settlementJob,
		Refresher:       accounts.NewRefresher(dbService, platformService, cfg.Rebate),
		Api:             api.NewLedgerService(dbService, ledgerEngine),
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without the platform bridge
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
