package ranking

import (
	"context"
	"fmt"
	"strings"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var validCategories = map[models.ShardCategory]struct{}{
	models.CategoryTotal:     {},
	models.CategoryStaking:   {},
	models.CategorySocial:    {},
	models.CategoryDeveloper: {},
	models.CategoryReferral:  {},
}

// Entry is one leaderboard row with its absolute rank.
type Entry struct {
	Rank          int64           `json:"rank"`
	WalletAddress string          `json:"wallet_address"`
	Shards        decimal.Decimal `json:"shards"`
	TotalShards   decimal.Decimal `json:"total_shards"`
}

// Page is one leaderboard page plus pagination state.
type Page struct {
	SeasonId          int64                `json:"season_id"`
	Category          models.ShardCategory `json:"category"`
	Entries           []Entry              `json:"entries"`
	TotalParticipants int64                `json:"total_participants"`
	HasMore           bool                 `json:"has_more"`
}

// Position is one wallet's standing within a category.
type Position struct {
	WalletAddress     string               `json:"wallet_address"`
	SeasonId          int64                `json:"season_id"`
	Category          models.ShardCategory `json:"category"`
	Rank              int64                `json:"rank"`
	Shards            decimal.Decimal      `json:"shards"`
	TotalParticipants int64                `json:"total_participants"`
	// Percentile is omitted when the season has no participants.
	Percentile *decimal.Decimal `json:"percentile,omitempty"`
}

// Engine serves leaderboard reads. Ties break on wallet address ascending, so
// the same data always yields the same order.
type Engine struct {
	balances store.BalanceStore
}

func NewEngine(balances store.BalanceStore) *Engine {
	return &Engine{balances: balances}
}

// GetLeaderboard returns one page of a season's leaderboard for a category.
func (e *Engine) GetLeaderboard(ctx context.Context, seasonId int64, category models.ShardCategory, limit, offset int) (*Page, error) {
	if _, ok := validCategories[category]; !ok {
		return nil, fmt.Errorf("unknown leaderboard category %q", category)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	balances, err := e.balances.Leaderboard(ctx, store.LeaderboardQuery{
		SeasonId: seasonId,
		Category: category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	total, err := e.balances.CountParticipants(ctx, seasonId)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(balances))
	for i, balance := range balances {
		entries = append(entries, Entry{
			Rank:          int64(offset + i + 1),
			WalletAddress: balance.WalletAddress,
			Shards:        categoryShards(&balance, category),
			TotalShards:   balance.TotalShards,
		})
	}

	return &Page{
		SeasonId:          seasonId,
		Category:          category,
		Entries:           entries,
		TotalParticipants: total,
		HasMore:           int64(offset+limit) < total,
	}, nil
}

// GetWalletRank returns the 1-based rank of a wallet in a category, or 0 when
// the wallet has no shards this season.
func (e *Engine) GetWalletRank(ctx context.Context, wallet string, seasonId int64, category models.ShardCategory) (int64, error) {
	if _, ok := validCategories[category]; !ok {
		return 0, fmt.Errorf("unknown leaderboard category %q", category)
	}
	return e.balances.WalletRank(ctx, strings.ToLower(wallet), seasonId, category)
}

// GetUserPosition returns a wallet's rank, shards, and percentile. The
// percentile is the share of participants at or below the wallet's rank,
// rounded to two decimal places.
func (e *Engine) GetUserPosition(ctx context.Context, wallet string, seasonId int64, category models.ShardCategory) (*Position, error) {
	if _, ok := validCategories[category]; !ok {
		return nil, fmt.Errorf("unknown leaderboard category %q", category)
	}
	wallet = strings.ToLower(wallet)

	rank, err := e.balances.WalletRank(ctx, wallet, seasonId, category)
	if err != nil {
		return nil, err
	}
	total, err := e.balances.CountParticipants(ctx, seasonId)
	if err != nil {
		return nil, err
	}

	position := &Position{
		WalletAddress:     wallet,
		SeasonId:          seasonId,
		Category:          category,
		Rank:              rank,
		Shards:            decimal.Zero,
		TotalParticipants: total,
	}

	balance, err := e.balances.GetBalance(ctx, wallet, seasonId)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		position.Shards = categoryShards(balance, category)
	}

	if total > 0 && rank > 0 {
		percentile := decimal.NewFromInt(total - rank + 1).
			Div(decimal.NewFromInt(total)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		position.Percentile = &percentile
	}

	return position, nil
}

func categoryShards(balance *models.ShardBalance, category models.ShardCategory) decimal.Decimal {
	switch category {
	case models.CategoryStaking:
		return balance.StakingShards
	case models.CategorySocial:
		return balance.SocialShards
	case models.CategoryDeveloper:
		return balance.DeveloperShards
	case models.CategoryReferral:
		return balance.ReferralShards
	default:
		return balance.TotalShards
	}
}
