package database

import (
	"context"
	"testing"
	"time"

	"shard-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestGetBalance_NoRow(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	balance, err := service.GetBalance(context.Background(), "0xwallet", 1)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != nil {
		t.Errorf("Expected nil balance for unknown wallet, got %+v", balance)
	}
}

func TestUpsertDailyEarning_ReplayDoesNotDoubleCount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	insertTestEarning(t, service, "0xaaa", seasonId, day, "300", "2.5", "0", "0")
	insertTestEarning(t, service, "0xaaa", seasonId, day, "300", "2.5", "0", "0")

	balance, err := service.GetBalance(ctx, "0xaaa", seasonId)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance == nil {
		t.Fatal("Expected a balance row")
	}
	if !balance.TotalShards.Equal(mustDecimal(t, "302.5")) {
		t.Errorf("Expected total 302.5 after replay, got %s", balance.TotalShards)
	}
	if !balance.StakingShards.Equal(mustDecimal(t, "300")) {
		t.Errorf("Expected staking 300, got %s", balance.StakingShards)
	}
}

func TestUpsertDailyEarning_AccumulatesAcrossDays(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day1 := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	insertTestEarning(t, service, "0xaaa", seasonId, day1, "100", "0", "0", "0")
	insertTestEarning(t, service, "0xaaa", seasonId, day2, "150", "5", "0", "10")

	balance, err := service.GetBalance(ctx, "0xaaa", seasonId)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.TotalShards.Equal(mustDecimal(t, "265")) {
		t.Errorf("Expected total 265, got %s", balance.TotalShards)
	}
	if !balance.ReferralShards.Equal(mustDecimal(t, "10")) {
		t.Errorf("Expected referral 10, got %s", balance.ReferralShards)
	}

	// Season totals refresh inside the same transaction.
	season, err := service.GetSeason(ctx, seasonId)
	if err != nil {
		t.Fatalf("GetSeason failed: %v", err)
	}
	if season.TotalParticipants != 1 {
		t.Errorf("Expected 1 participant, got %d", season.TotalParticipants)
	}
	if !season.TotalShardsIssued.Equal(mustDecimal(t, "265")) {
		t.Errorf("Expected 265 shards issued, got %s", season.TotalShardsIssued)
	}
}

func TestUpsertDailyEarning_RebuildStaysExactOverLongHistory(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, -14, 0), nil)
	start := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

	// A year of amounts chosen to fall off float64 precision when summed.
	staking := mustDecimal(t, "999999999.1234")
	social := mustDecimal(t, "0.0001")
	days := 365
	for i := 0; i < days; i++ {
		insertTestEarning(t, service, "0xaaa", seasonId, start.AddDate(0, 0, i),
			staking.String(), social.String(), "0", "0")
	}

	expected := staking.Add(social).Mul(decimal.NewFromInt(int64(days)))

	balance, err := service.GetBalance(ctx, "0xaaa", seasonId)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.TotalShards.Equal(expected) {
		t.Errorf("Expected exact total %s, got %s", expected, balance.TotalShards)
	}

	categorySum := balance.StakingShards.Add(balance.SocialShards).
		Add(balance.DeveloperShards).Add(balance.ReferralShards)
	if !balance.TotalShards.Equal(categorySum) {
		t.Errorf("Total %s must equal the category sum %s", balance.TotalShards, categorySum)
	}

	season, err := service.GetSeason(ctx, seasonId)
	if err != nil {
		t.Fatalf("GetSeason failed: %v", err)
	}
	if !season.TotalShardsIssued.Equal(expected) {
		t.Errorf("Expected exact season total %s, got %s", expected, season.TotalShardsIssued)
	}
}

func TestGetEarningEntry_AndHistory(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	entry, err := service.GetEarningEntry(ctx, "0xaaa", seasonId, day)
	if err != nil {
		t.Fatalf("GetEarningEntry failed: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil entry before accrual, got %+v", entry)
	}

	for i := 0; i < 3; i++ {
		insertTestEarning(t, service, "0xaaa", seasonId, day.AddDate(0, 0, i), "10", "0", "0", "0")
	}

	entry, err = service.GetEarningEntry(ctx, "0xaaa", seasonId, day)
	if err != nil {
		t.Fatalf("GetEarningEntry failed: %v", err)
	}
	if entry == nil {
		t.Fatal("Expected an entry")
	}
	if !entry.Date.Equal(day) {
		t.Errorf("Date mismatch: %v", entry.Date)
	}

	history, err := service.GetEarningHistory(ctx, "0xaaa", seasonId, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetEarningHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(history))
	}
}

func TestTrailingDailyTotals_ExcludesDate(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	for i := -3; i <= 0; i++ {
		insertTestEarning(t, service, "0xaaa", seasonId, day.AddDate(0, 0, i), "10", "0", "0", "0")
	}

	trailing, err := service.TrailingDailyTotals(ctx, "0xaaa", seasonId, day, 7)
	if err != nil {
		t.Fatalf("TrailingDailyTotals failed: %v", err)
	}
	if len(trailing) != 3 {
		t.Fatalf("Expected 3 trailing entries, got %d", len(trailing))
	}
	// Newest first, strictly before the date.
	if !trailing[0].Date.Equal(day.AddDate(0, 0, -1)) {
		t.Errorf("Expected newest trailing entry %v, got %v", day.AddDate(0, 0, -1), trailing[0].Date)
	}
}

func TestFraudFlags_InsertAndList(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)

	flag := &models.FraudFlag{
		WalletAddress: "0xaaa",
		SeasonId:      seasonId,
		Date:          time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Reason:        "daily total 5000 exceeds 10x the trailing 7-day average of 12",
	}
	if err := service.InsertFraudFlag(ctx, flag); err != nil {
		t.Fatalf("InsertFraudFlag failed: %v", err)
	}

	flags, err := service.GetFraudFlags(ctx, seasonId, 10)
	if err != nil {
		t.Fatalf("GetFraudFlags failed: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("Expected 1 flag, got %d", len(flags))
	}
	if flags[0].Reason != flag.Reason {
		t.Errorf("Reason mismatch: %s", flags[0].Reason)
	}
}
