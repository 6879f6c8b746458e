package validation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shard-rewards-go/internal/database"
	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/season"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	registry *season.Registry
	seasonId int64
	cleanup  func()
}

// setupFixture seeds an active Ethereum season with one active vault bound
// to it. Tests mutate the season config through the registry as needed.
func setupFixture(t *testing.T, spec func(*models.SeasonSpec)) *fixture {
	t.Helper()

	dbService, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	registry := season.NewRegistry(dbService).WithClock(func() time.Time { return testNow })

	seasonSpec := models.SeasonSpec{
		Name:      "Test Season",
		Chain:     models.ChainEthereum,
		StartDate: testNow.AddDate(0, -1, 0),
		Config: models.SeasonConfig{
			VaultRates:           map[string]decimal.Decimal{"ETH": decimal.NewFromInt(100)},
			SocialConversionRate: decimal.NewFromInt(100),
			DepositsEnabled:      true,
			WithdrawalsEnabled:   true,
		},
	}
	if spec != nil {
		spec(&seasonSpec)
	}

	ctx := context.Background()
	created, err := registry.CreateSeason(ctx, seasonSpec)
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}

	vault := &models.VaultSeasonConfig{
		Address:            "0xvault",
		Chain:              seasonSpec.Chain,
		SeasonId:           created.Id,
		Status:             models.VaultActive,
		UnderlyingAsset:    "ETH",
		WithdrawalsEnabled: true,
	}
	if err := registry.BindVault(ctx, vault); err != nil {
		t.Fatalf("BindVault failed: %v", err)
	}

	return &fixture{registry: registry, seasonId: created.Id, cleanup: dbService.Close}
}

func newTestValidator(registry *season.Registry, system models.SystemConfig) *Validator {
	return NewValidator(registry, system).WithClock(func() time.Time { return testNow })
}

func depositRequest(seasonId int64) models.ValidationRequest {
	amount := decimal.NewFromInt(100)
	return models.ValidationRequest{
		Operation:     models.OperationDeposit,
		SeasonId:      seasonId,
		VaultAddress:  "0xvault",
		WalletAddress: "0xwallet",
		Amount:        &amount,
	}
}

func hasMessage(messages []string, fragment string) bool {
	for _, msg := range messages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func TestValidate_MaintenanceMode(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{MaintenanceMode: true})
	result, err := validator.Validate(context.Background(), depositRequest(f.seasonId))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.IsValid {
		t.Error("Expected invalid result in maintenance mode")
	}
	if !hasMessage(result.Errors, "maintenance mode") {
		t.Errorf("Expected a maintenance mode error, got %v", result.Errors)
	}
}

func TestValidate_EmergencyModeWarnsNonWithdrawals(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{EmergencyMode: true})
	ctx := context.Background()

	result, err := validator.Validate(ctx, depositRequest(f.seasonId))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.IsValid {
		t.Errorf("Emergency mode should warn, not block: %v", result.Errors)
	}
	if !hasMessage(result.Warnings, "emergency mode") {
		t.Errorf("Expected an emergency mode warning, got %v", result.Warnings)
	}

	withdrawal := models.ValidationRequest{
		Operation:    models.OperationWithdrawal,
		SeasonId:     f.seasonId,
		VaultAddress: "0xvault",
	}
	result, err = validator.Validate(ctx, withdrawal)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if hasMessage(result.Warnings, "emergency mode") {
		t.Errorf("Withdrawals should not draw the emergency warning, got %v", result.Warnings)
	}
}

func TestValidate_MissingSeasonShortCircuits(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{})
	result, err := validator.Validate(context.Background(), depositRequest(999))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.IsValid {
		t.Error("Expected invalid result for a missing season")
	}
	if len(result.Errors) != 1 || !hasMessage(result.Errors, "season 999 not found") {
		t.Errorf("Expected only the missing-season error, got %v", result.Errors)
	}
}

func TestValidate_MissingVault(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{})
	req := depositRequest(f.seasonId)
	req.VaultAddress = "0xunknown"
	result, err := validator.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !hasMessage(result.Errors, "vault 0xunknown not found") {
		t.Errorf("Expected a missing-vault error, got %v", result.Errors)
	}
}

func TestValidate_DepositsDisabled(t *testing.T) {
	f := setupFixture(t, func(spec *models.SeasonSpec) {
		spec.Config.DepositsEnabled = false
	})
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{})
	result, err := validator.Validate(context.Background(), depositRequest(f.seasonId))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !hasMessage(result.Errors, "deposits are disabled") {
		t.Errorf("Expected a deposits-disabled error, got %v", result.Errors)
	}
}

func TestValidate_NonPositiveDepositAmount(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{})
	req := depositRequest(f.seasonId)
	zero := decimal.Zero
	req.Amount = &zero
	result, err := validator.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !hasMessage(result.Errors, "must be greater than zero") {
		t.Errorf("Expected an amount error, got %v", result.Errors)
	}
}

func TestValidate_DeprecatedVault(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	ctx := context.Background()
	deprecated := &models.VaultSeasonConfig{
		Address:            "0xold",
		Chain:              models.ChainEthereum,
		SeasonId:           f.seasonId,
		Status:             models.VaultDeprecated,
		UnderlyingAsset:    "ETH",
		WithdrawalsEnabled: true,
	}
	if err := f.registry.BindVault(ctx, deprecated); err != nil {
		t.Fatalf("BindVault failed: %v", err)
	}

	validator := newTestValidator(f.registry, models.SystemConfig{})

	// Deposits into a deprecated vault are blocked.
	req := depositRequest(f.seasonId)
	req.VaultAddress = "0xold"
	result, err := validator.Validate(ctx, req)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !hasMessage(result.Errors, "deprecated") {
		t.Errorf("Expected a deprecated-vault error for deposits, got %v", result.Errors)
	}

	// Withdrawals only draw a warning.
	result, err = validator.Validate(ctx, models.ValidationRequest{
		Operation:    models.OperationWithdrawal,
		SeasonId:     f.seasonId,
		VaultAddress: "0xold",
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.IsValid {
		t.Errorf("Withdrawal from a deprecated vault should pass, got %v", result.Errors)
	}
	if !hasMessage(result.Warnings, "deprecated") {
		t.Errorf("Expected a deprecated-vault warning, got %v", result.Warnings)
	}
}

func TestValidate_WithdrawalGates(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	ctx := context.Background()
	locked := &models.VaultSeasonConfig{
		Address:                "0xlocked",
		Chain:                  models.ChainEthereum,
		SeasonId:               f.seasonId,
		Status:                 models.VaultActive,
		UnderlyingAsset:        "ETH",
		WithdrawalsEnabled:     false,
		LockedUntilMainnet:     true,
		RedeemDelayDays:        5,
		EarlyWithdrawalPenalty: decimal.NewFromFloat(2.5),
	}
	if err := f.registry.BindVault(ctx, locked); err != nil {
		t.Fatalf("BindVault failed: %v", err)
	}

	validator := newTestValidator(f.registry, models.SystemConfig{})
	result, err := validator.Validate(ctx, models.ValidationRequest{
		Operation:    models.OperationWithdrawal,
		SeasonId:     f.seasonId,
		VaultAddress: "0xlocked",
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !hasMessage(result.Errors, "withdrawals are disabled") {
		t.Errorf("Expected a withdrawals-disabled error, got %v", result.Errors)
	}
	if !hasMessage(result.Errors, "locked until mainnet") {
		t.Errorf("Expected a locked-until-mainnet error, got %v", result.Errors)
	}
	if !hasMessage(result.Warnings, "5-day redeem delay") {
		t.Errorf("Expected a redeem delay warning, got %v", result.Warnings)
	}
	if !hasMessage(result.Warnings, "2.5% penalty") {
		t.Errorf("Expected a penalty warning, got %v", result.Warnings)
	}
}

func TestValidate_TransferMigrationTiming(t *testing.T) {
	makeMigration := func(start time.Time) *models.MigrationConfig {
		return &models.MigrationConfig{
			FromChain: models.ChainEthereum,
			ToChain:   models.ChainBase,
			StartTime: start,
			EndTime:   start.AddDate(0, 0, 14),
			Deadline:  start.AddDate(0, 0, 16),
		}
	}
	transfer := func(seasonId int64) models.ValidationRequest {
		return models.ValidationRequest{
			Operation:    models.OperationTransfer,
			SeasonId:     seasonId,
			VaultAddress: "0xvault",
		}
	}

	t.Run("before window opens", func(t *testing.T) {
		f := setupFixture(t, func(spec *models.SeasonSpec) {
			spec.Migration = makeMigration(testNow.AddDate(0, 1, 0))
		})
		defer f.cleanup()

		validator := newTestValidator(f.registry, models.SystemConfig{})
		result, err := validator.Validate(context.Background(), transfer(f.seasonId))
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if !hasMessage(result.Errors, "has not opened yet") {
			t.Errorf("Expected a window-not-open error, got %v", result.Errors)
		}
	})

	t.Run("deadline countdown inside window", func(t *testing.T) {
		// Window started 13 days ago: still migrating, deadline in 3 days.
		f := setupFixture(t, func(spec *models.SeasonSpec) {
			spec.Migration = makeMigration(testNow.AddDate(0, 0, -13))
		})
		defer f.cleanup()

		validator := newTestValidator(f.registry, models.SystemConfig{})
		result, err := validator.Validate(context.Background(), transfer(f.seasonId))
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if !result.IsValid {
			t.Errorf("Transfer inside the window should pass, got %v", result.Errors)
		}
		if !hasMessage(result.Warnings, "deadline in 3 day(s)") {
			t.Errorf("Expected a countdown warning, got %v", result.Warnings)
		}
	})

	t.Run("past deadline", func(t *testing.T) {
		f := setupFixture(t, func(spec *models.SeasonSpec) {
			spec.Migration = makeMigration(testNow.AddDate(0, -2, 0))
		})
		defer f.cleanup()

		validator := newTestValidator(f.registry, models.SystemConfig{})
		result, err := validator.Validate(context.Background(), transfer(f.seasonId))
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if !hasMessage(result.Errors, "deadline") {
			t.Errorf("Expected a deadline error, got %v", result.Errors)
		}
	})

	t.Run("no migration configured", func(t *testing.T) {
		f := setupFixture(t, nil)
		defer f.cleanup()

		validator := newTestValidator(f.registry, models.SystemConfig{})
		result, err := validator.Validate(context.Background(), transfer(f.seasonId))
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if !result.IsValid {
			t.Errorf("Transfer without a migration should pass, got %v", result.Errors)
		}
	})
}

func TestValidate_UnknownOperation(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{})
	result, err := validator.Validate(context.Background(), models.ValidationRequest{
		Operation:    models.Operation("teleport"),
		SeasonId:     f.seasonId,
		VaultAddress: "0xvault",
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !hasMessage(result.Errors, `unknown operation "teleport"`) {
		t.Errorf("Expected an unknown-operation error, got %v", result.Errors)
	}
}

func TestValidateSeasonTransition_AccumulatesEverything(t *testing.T) {
	f := setupFixture(t, nil)
	defer f.cleanup()

	validator := newTestValidator(f.registry, models.SystemConfig{})
	ctx := context.Background()

	// Non-consecutive ids plus a missing target: both errors land.
	result, err := validator.ValidateSeasonTransition(ctx, f.seasonId, f.seasonId+5)
	if err != nil {
		t.Fatalf("ValidateSeasonTransition failed: %v", err)
	}
	if result.IsValid {
		t.Error("Expected invalid transition result")
	}
	if !hasMessage(result.Errors, "must be consecutive") {
		t.Errorf("Expected a consecutive-seasons error, got %v", result.Errors)
	}
	if !hasMessage(result.Errors, "not found") {
		t.Errorf("Expected a missing-target error, got %v", result.Errors)
	}
}

func TestValidateSeasonTransition_SameChain(t *testing.T) {
	f := setupFixture(t, func(spec *models.SeasonSpec) {
		end := testNow.AddDate(0, 0, -5)
		spec.StartDate = testNow.AddDate(0, -2, 0)
		spec.EndDate = &end
	})
	defer f.cleanup()

	ctx := context.Background()
	next, err := f.registry.CreateSeason(ctx, models.SeasonSpec{
		Name:      "Next Season",
		Chain:     models.ChainEthereum,
		StartDate: testNow.AddDate(0, 0, -5),
		Config: models.SeasonConfig{
			VaultRates:           map[string]decimal.Decimal{"ETH": decimal.NewFromInt(100)},
			SocialConversionRate: decimal.NewFromInt(100),
		},
		Migration: &models.MigrationConfig{
			FromChain: models.ChainEthereum,
			ToChain:   models.ChainBase,
			StartTime: testNow.AddDate(0, 0, -2),
			EndTime:   testNow.AddDate(0, 0, 12),
			Deadline:  testNow.AddDate(0, 0, 14),
		},
	})
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}
	if next.Id != f.seasonId+1 {
		t.Fatalf("Expected consecutive season id, got %d after %d", next.Id, f.seasonId)
	}

	validator := newTestValidator(f.registry, models.SystemConfig{})
	result, err := validator.ValidateSeasonTransition(ctx, f.seasonId, next.Id)
	if err != nil {
		t.Fatalf("ValidateSeasonTransition failed: %v", err)
	}
	if result.IsValid {
		t.Error("Expected invalid transition result")
	}
	if !hasMessage(result.Errors, "both on chain ethereum") {
		t.Errorf("Expected a same-chain error, got %v", result.Errors)
	}
}

func TestValidate_InternalErrorDoesNotLeak(t *testing.T) {
	f := setupFixture(t, nil)
	f.cleanup() // closed database makes every lookup fail

	validator := newTestValidator(f.registry, models.SystemConfig{})
	_, err := validator.Validate(context.Background(), depositRequest(f.seasonId))
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("Expected ErrInternal, got %v", err)
	}
}

func TestValidateSeasonTransition_StoreFailureIsNotNotFound(t *testing.T) {
	f := setupFixture(t, nil)
	f.cleanup() // closed database makes every lookup fail

	validator := newTestValidator(f.registry, models.SystemConfig{})
	result, err := validator.ValidateSeasonTransition(context.Background(), f.seasonId, f.seasonId+1)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("Expected ErrInternal, got %v", err)
	}
	if result != nil {
		t.Errorf("A failed lookup must not produce a result, got %+v", result)
	}
}
