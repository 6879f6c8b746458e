package database

import (
	"context"
	"testing"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"
)

func TestLeaderboard_OrderingAndPaging(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	insertTestEarning(t, service, "0xccc", seasonId, day, "100", "0", "0", "0")
	insertTestEarning(t, service, "0xaaa", seasonId, day, "300", "0", "0", "0")
	insertTestEarning(t, service, "0xbbb", seasonId, day, "200", "0", "0", "0")
	insertTestEarning(t, service, "0xddd", seasonId, day, "50", "0", "0", "0")

	page, err := service.Leaderboard(ctx, store.LeaderboardQuery{
		SeasonId: seasonId,
		Category: models.CategoryTotal,
		Limit:    10,
		Offset:   0,
	})
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(page) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(page))
	}
	order := []string{"0xaaa", "0xbbb", "0xccc", "0xddd"}
	for i, want := range order {
		if page[i].WalletAddress != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, page[i].WalletAddress)
		}
	}

	// Paging slices the same order.
	page, err = service.Leaderboard(ctx, store.LeaderboardQuery{
		SeasonId: seasonId,
		Category: models.CategoryTotal,
		Limit:    2,
		Offset:   2,
	})
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(page) != 2 || page[0].WalletAddress != "0xccc" || page[1].WalletAddress != "0xddd" {
		t.Errorf("Unexpected page at offset 2: %+v", page)
	}
}

func TestLeaderboard_TiesBreakOnWallet(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	insertTestEarning(t, service, "0xbbb", seasonId, day, "100", "0", "0", "0")
	insertTestEarning(t, service, "0xaaa", seasonId, day, "100", "0", "0", "0")

	page, err := service.Leaderboard(ctx, store.LeaderboardQuery{
		SeasonId: seasonId,
		Category: models.CategoryTotal,
		Limit:    10,
		Offset:   0,
	})
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if page[0].WalletAddress != "0xaaa" || page[1].WalletAddress != "0xbbb" {
		t.Errorf("Tie should break on ascending wallet, got %s then %s",
			page[0].WalletAddress, page[1].WalletAddress)
	}
}

func TestLeaderboard_CategoryColumn(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	// 0xaaa leads on total, 0xbbb leads on social.
	insertTestEarning(t, service, "0xaaa", seasonId, day, "300", "1", "0", "0")
	insertTestEarning(t, service, "0xbbb", seasonId, day, "100", "9", "0", "0")

	page, err := service.Leaderboard(ctx, store.LeaderboardQuery{
		SeasonId: seasonId,
		Category: models.CategorySocial,
		Limit:    10,
		Offset:   0,
	})
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if page[0].WalletAddress != "0xbbb" {
		t.Errorf("Expected 0xbbb to lead on social, got %s", page[0].WalletAddress)
	}

	_, err = service.Leaderboard(ctx, store.LeaderboardQuery{
		SeasonId: seasonId,
		Category: models.ShardCategory("bogus"),
		Limit:    10,
	})
	if err == nil {
		t.Error("Expected an error for an unknown category")
	}
}

func TestWalletRank(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seasonId := insertTestSeason(t, service, models.ChainEthereum, time.Now().UTC().AddDate(0, 0, -30), nil)
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	insertTestEarning(t, service, "0xaaa", seasonId, day, "300", "0", "0", "0")
	insertTestEarning(t, service, "0xbbb", seasonId, day, "200", "0", "0", "0")
	insertTestEarning(t, service, "0xccc", seasonId, day, "100", "0", "0", "0")

	rank, err := service.WalletRank(ctx, "0xbbb", seasonId, models.CategoryTotal)
	if err != nil {
		t.Fatalf("WalletRank failed: %v", err)
	}
	if rank != 2 {
		t.Errorf("Expected rank 2, got %d", rank)
	}

	rank, err = service.WalletRank(ctx, "0xmissing", seasonId, models.CategoryTotal)
	if err != nil {
		t.Fatalf("WalletRank failed: %v", err)
	}
	if rank != 0 {
		t.Errorf("Expected rank 0 for an absent wallet, got %d", rank)
	}
}
