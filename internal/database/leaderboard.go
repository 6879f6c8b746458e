package database

import (
	"context"
	"database/sql"
	"fmt"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"go.uber.org/zap"
)

// categoryColumns whitelists the sortable balance columns. Category input
// always goes through this map, never into SQL directly.
var categoryColumns = map[models.ShardCategory]string{
	models.CategoryTotal:     "total_shards",
	models.CategoryStaking:   "staking_shards",
	models.CategorySocial:    "social_shards",
	models.CategoryDeveloper: "developer_shards",
	models.CategoryReferral:  "referral_shards",
}

// Leaderboard returns one page ordered by the category value descending.
// Ties break on ascending wallet address so repeated reads are stable.
func (s *Service) Leaderboard(ctx context.Context, q store.LeaderboardQuery) ([]models.ShardBalance, error) {
	column, ok := categoryColumns[q.Category]
	if !ok {
		return nil, fmt.Errorf("unknown leaderboard category %q", q.Category)
	}

	query := fmt.Sprintf(`
		SELECT wallet_address, season_id, staking_shards, social_shards,
		       developer_shards, referral_shards, total_shards, last_calculated_at, version
		FROM shard_balances
		WHERE season_id = ?
		ORDER BY CAST(%s AS REAL) DESC, wallet_address ASC
		LIMIT ? OFFSET ?`, column)

	rows, err := s.db.QueryContext(ctx, query, q.SeasonId, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.ShardBalance
	for rows.Next() {
		balance, err := scanShardBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		balances = append(balances, *balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}
	return balances, nil
}

// WalletRank returns the 1-based rank within the category, or 0 when the
// wallet has no balance row this season.
func (s *Service) WalletRank(ctx context.Context, wallet string, seasonId int64, category models.ShardCategory) (int64, error) {
	column, ok := categoryColumns[category]
	if !ok {
		return 0, fmt.Errorf("unknown leaderboard category %q", category)
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shard_balances WHERE wallet_address = ? AND season_id = ?`,
		wallet, seasonId).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check wallet %s: %w", wallet, err)
	}
	if exists == 0 {
		return 0, nil
	}

	// Rank = 1 + wallets strictly ahead under the same (value desc, address asc) order.
	query := fmt.Sprintf(`
		SELECT COUNT(*) + 1
		FROM shard_balances other, shard_balances mine
		WHERE mine.wallet_address = ? AND mine.season_id = ?
		  AND other.season_id = mine.season_id
		  AND (CAST(other.%[1]s AS REAL) > CAST(mine.%[1]s AS REAL)
		       OR (CAST(other.%[1]s AS REAL) = CAST(mine.%[1]s AS REAL)
		           AND other.wallet_address < mine.wallet_address))`, column)

	var rank int64
	if err := s.db.QueryRowContext(ctx, query, wallet, seasonId).Scan(&rank); err != nil {
		return 0, fmt.Errorf("failed to compute rank for %s: %w", wallet, err)
	}
	return rank, nil
}
