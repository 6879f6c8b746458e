package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"shard-rewards-go/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) (*Service, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func insertTestSeason(t *testing.T, service *Service, chain models.Chain, start time.Time, end *time.Time) int64 {
	t.Helper()

	season := &models.Season{
		Name:      "Test Season",
		Chain:     chain,
		StartDate: start,
		EndDate:   end,
		Status:    models.SeasonActive,
		Config: models.SeasonConfig{
			VaultRates:           map[string]decimal.Decimal{"ETH": decimal.NewFromInt(100)},
			SocialConversionRate: decimal.NewFromInt(100),
			DepositsEnabled:      true,
			WithdrawalsEnabled:   true,
		},
	}
	id, err := service.InsertSeason(context.Background(), season)
	if err != nil {
		t.Fatalf("Failed to insert season: %v", err)
	}
	return id
}

func insertTestEarning(t *testing.T, service *Service, wallet string, seasonId int64, day time.Time, staking, social, developer, referral string) {
	t.Helper()

	entry := &models.EarningHistoryEntry{
		WalletAddress:   wallet,
		SeasonId:        seasonId,
		Date:            day,
		StakingShards:   mustDecimal(t, staking),
		SocialShards:    mustDecimal(t, social),
		DeveloperShards: mustDecimal(t, developer),
		ReferralShards:  mustDecimal(t, referral),
		CalculationHash: "hash-" + wallet + "-" + day.Format("2006-01-02"),
	}
	entry.DailyTotal = entry.StakingShards.Add(entry.SocialShards).
		Add(entry.DeveloperShards).Add(entry.ReferralShards)

	if err := service.UpsertDailyEarning(context.Background(), entry); err != nil {
		t.Fatalf("Failed to upsert earning: %v", err)
	}
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("Invalid decimal %q: %v", value, err)
	}
	return d
}
