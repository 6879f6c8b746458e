package season

import (
	"context"
	"errors"
	"testing"
	"time"

	"shard-rewards-go/internal/database"
	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupRegistry(t *testing.T) (*Registry, func()) {
	t.Helper()

	// :memory: needs a single connection or each pooled connection gets
	// its own empty database.
	dbService, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	return NewRegistry(dbService), dbService.Close
}

func testSpec(chain models.Chain, start time.Time, end *time.Time) models.SeasonSpec {
	return models.SeasonSpec{
		Name:      "Test Season",
		Chain:     chain,
		StartDate: start,
		EndDate:   end,
		Config: models.SeasonConfig{
			VaultRates:           map[string]decimal.Decimal{"ETH": decimal.NewFromInt(100)},
			SocialConversionRate: decimal.NewFromInt(100),
			DepositsEnabled:      true,
			WithdrawalsEnabled:   true,
		},
	}
}

func TestCreateSeason_InitialStatusFromDates(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	registry.WithClock(func() time.Time { return now })

	ctx := context.Background()

	upcoming, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, now.AddDate(0, 1, 0), nil))
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}
	if upcoming.Status != models.SeasonUpcoming {
		t.Errorf("Expected upcoming, got %s", upcoming.Status)
	}

	active, err := registry.CreateSeason(ctx, testSpec(models.ChainBase, now.AddDate(0, 0, -1), nil))
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}
	if active.Status != models.SeasonActive {
		t.Errorf("Expected active, got %s", active.Status)
	}
}

func TestCreateSeason_RejectsOverlapSameChain(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	registry.WithClock(func() time.Time { return now })

	ctx := context.Background()
	end := now.AddDate(0, 3, 0)
	if _, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, now, &end)); err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}

	// Overlapping range on the same chain.
	_, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, now.AddDate(0, 1, 0), nil))
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// Same range on another chain is fine.
	if _, err := registry.CreateSeason(ctx, testSpec(models.ChainBase, now, &end)); err != nil {
		t.Fatalf("CreateSeason on another chain failed: %v", err)
	}

	// Back-to-back on the same chain is fine.
	if _, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, end, nil)); err != nil {
		t.Fatalf("Consecutive CreateSeason failed: %v", err)
	}
}

func TestCreateSeason_ValidatesMigrationConfig(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	registry.WithClock(func() time.Time { return now })

	spec := testSpec(models.ChainEthereum, now, nil)
	spec.Migration = &models.MigrationConfig{
		FromChain: models.ChainEthereum,
		ToChain:   models.ChainEthereum,
		StartTime: now,
		EndTime:   now.AddDate(0, 0, 14),
		Deadline:  now.AddDate(0, 1, 0),
	}
	if _, err := registry.CreateSeason(context.Background(), spec); err == nil {
		t.Error("Expected an error for identical source and target chains")
	}

	spec.Migration.ToChain = models.ChainBase
	spec.Migration.Deadline = now.AddDate(0, 0, 7)
	if _, err := registry.CreateSeason(context.Background(), spec); err == nil {
		t.Error("Expected an error for a deadline before the window end")
	}
}

func TestTransitionStatus_Table(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	registry.WithClock(func() time.Time { return now })

	ctx := context.Background()
	season, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, now.AddDate(0, 1, 0), nil))
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}

	// upcoming -> completed is not in the table.
	err = registry.TransitionStatus(ctx, season.Id, models.SeasonCompleted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	if err := registry.TransitionStatus(ctx, season.Id, models.SeasonActive); err != nil {
		t.Fatalf("upcoming -> active failed: %v", err)
	}
	if err := registry.TransitionStatus(ctx, season.Id, models.SeasonCompleted); err != nil {
		t.Fatalf("active -> completed failed: %v", err)
	}

	// completed is terminal.
	err = registry.TransitionStatus(ctx, season.Id, models.SeasonActive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition from terminal status, got %v", err)
	}
}

func TestCheckAndUpdateStatuses_Sweep(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	registry.WithClock(func() time.Time { return created })

	ctx := context.Background()
	end := created.AddDate(0, 0, 20)
	ending, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, created.AddDate(0, 0, 10), &end))
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}
	future, err := registry.CreateSeason(ctx, testSpec(models.ChainBase, created.AddDate(0, 6, 0), nil))
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}

	// Midway: the first season starts.
	transitions, err := registry.CheckAndUpdateStatuses(ctx, created.AddDate(0, 0, 15))
	if err != nil {
		t.Fatalf("CheckAndUpdateStatuses failed: %v", err)
	}
	if transitions != 1 {
		t.Errorf("Expected 1 transition, got %d", transitions)
	}
	got, err := registry.GetSeason(ctx, ending.Id)
	if err != nil {
		t.Fatalf("GetSeason failed: %v", err)
	}
	if got.Status != models.SeasonActive {
		t.Errorf("Expected active, got %s", got.Status)
	}

	// Past the end date: it completes. The far-future season stays upcoming.
	transitions, err = registry.CheckAndUpdateStatuses(ctx, created.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("CheckAndUpdateStatuses failed: %v", err)
	}
	if transitions != 1 {
		t.Errorf("Expected 1 transition, got %d", transitions)
	}
	got, err = registry.GetSeason(ctx, ending.Id)
	if err != nil {
		t.Fatalf("GetSeason failed: %v", err)
	}
	if got.Status != models.SeasonCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	got, err = registry.GetSeason(ctx, future.Id)
	if err != nil {
		t.Fatalf("GetSeason failed: %v", err)
	}
	if got.Status != models.SeasonUpcoming {
		t.Errorf("Expected upcoming, got %s", got.Status)
	}
}

func TestBindVault_ChainMustMatch(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	registry.WithClock(func() time.Time { return now })

	ctx := context.Background()
	season, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, now, nil))
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}

	vault := &models.VaultSeasonConfig{
		Address:         "0xvault",
		Chain:           models.ChainBase,
		SeasonId:        season.Id,
		Status:          models.VaultActive,
		UnderlyingAsset: "ETH",
	}
	err = registry.BindVault(ctx, vault)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected ErrConflict for a chain mismatch, got %v", err)
	}

	vault.Chain = models.ChainEthereum
	if err := registry.BindVault(ctx, vault); err != nil {
		t.Fatalf("BindVault failed: %v", err)
	}
}

func TestCheckAndUpdateStatuses_BothBoundariesInOnePass(t *testing.T) {
	registry, cleanup := setupRegistry(t)
	defer cleanup()

	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	registry.WithClock(func() time.Time { return created })

	ctx := context.Background()
	end := created.AddDate(0, 0, 5)
	season, err := registry.CreateSeason(ctx, testSpec(models.ChainEthereum, created.AddDate(0, 0, 1), &end))
	if err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}

	// One sweep past both boundaries activates and completes in order.
	transitions, err := registry.CheckAndUpdateStatuses(ctx, created.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("CheckAndUpdateStatuses failed: %v", err)
	}
	if transitions != 2 {
		t.Errorf("Expected 2 transitions, got %d", transitions)
	}
	got, err := registry.GetSeason(ctx, season.Id)
	if err != nil {
		t.Fatalf("GetSeason failed: %v", err)
	}
	if got.Status != models.SeasonCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
}
