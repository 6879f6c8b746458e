package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"shard-rewards-go/internal/accrual"
	"shard-rewards-go/internal/database"
	"shard-rewards-go/internal/formance"
	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/ranking"
	"shard-rewards-go/internal/referral"
	"shard-rewards-go/internal/season"
	"shard-rewards-go/internal/validation"
	"shard-rewards-go/internal/valuation"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// SupportedChains are the networks seasons can run on.
var SupportedChains = []models.Chain{models.ChainEthereum, models.ChainBase, models.ChainArbitrum}

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

// Services bundles the wired engines a binary needs.
type Services struct {
	DbService *database.Service
	Registry  *season.Registry
	Validator *validation.Validator
	Referrals *referral.Ledger
	Ranking   *ranking.Engine
	Mirror    *formance.Service
	Pricer    *valuation.PrimePricer
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
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

// InitializeServices wires the store and engines. The Formance mirror and
// Prime pricer are optional; they stay nil unless enabled in config.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{
		DbService: dbService,
		Registry:  season.NewRegistry(dbService),
		Referrals: referral.NewLedger(dbService, dbService, cfg.Referral),
		Ranking:   ranking.NewEngine(dbService),
	}
	services.Validator = validation.NewValidator(services.Registry, cfg.System)

	if cfg.Formance.Enabled {
		mirror, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		services.Mirror = mirror
	}

	if cfg.Prime.Enabled {
		zap.L().Info("Loading Prime API credentials")
		creds, err := loadPrimeCredentials()
		if err != nil {
			dbService.Close()
			return nil, err
		}
		pricer, err := valuation.NewPrimePricer(ctx, creds, cfg.Prime.PortfolioId)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		services.Pricer = pricer
	}

	return services, nil
}

// NewAccrualEngine builds the accrual engine over the wired services and the
// given feeds, attaching the audit mirror when one is configured.
func (cs *Services) NewAccrualEngine(vaults valuation.VaultValuationFeed,
	social valuation.SocialPointsFeed, devs valuation.DeveloperFeed,
	cfg models.AccrualConfig) *accrual.Engine {
	engine := accrual.NewEngine(cs.DbService, cs.DbService, vaults, social, devs, cs.Referrals, cfg)
	if cs.Mirror != nil {
		engine = engine.WithMirror(cs.Mirror)
	}
	return engine
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only binaries like the leaderboard CLI.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

func (cs *Services) Close() {
	if cs.Mirror != nil {
		cs.Mirror.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

// ParseDay parses a YYYY-MM-DD argument into midnight UTC.
func ParseDay(value string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return day, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
