package store

import (
	"context"
	"errors"
	"time"

	"shard-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrSeasonNotFound         = errors.New("season not found")
	ErrVaultNotFound          = errors.New("vault not found")
	ErrReferralNotFound       = errors.New("referral not found")
	ErrDuplicateEntry         = errors.New("duplicate entry")
	ErrConflict               = errors.New("conflict")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// LeaderboardQuery selects one page of a season leaderboard.
type LeaderboardQuery struct {
	SeasonId int64
	Category models.ShardCategory
	Limit    int
	Offset   int
}

// SeasonStore persists seasons, migration windows, and vault bindings.
type SeasonStore interface {
	GetSeason(ctx context.Context, id int64) (*models.Season, error)
	GetAllSeasons(ctx context.Context) ([]models.Season, error)
	GetSeasonsByChain(ctx context.Context, chain models.Chain) ([]models.Season, error)
	GetActiveSeason(ctx context.Context, chain models.Chain) (*models.Season, error)
	InsertSeason(ctx context.Context, season *models.Season) (int64, error)
	UpdateSeason(ctx context.Context, season *models.Season) error
	// UpdateSeasonStatus transitions status only when the stored status still
	// equals from; otherwise it returns ErrConcurrentModification.
	UpdateSeasonStatus(ctx context.Context, id int64, from, to models.SeasonStatus) error

	GetVault(ctx context.Context, address string, seasonId int64) (*models.VaultSeasonConfig, error)
	GetVaultsBySeason(ctx context.Context, seasonId int64) ([]models.VaultSeasonConfig, error)
	BindVault(ctx context.Context, vault *models.VaultSeasonConfig) error
}

// BalanceStore persists shard balances (hot) and earning history (cold, append-only).
type BalanceStore interface {
	// GetBalance returns nil (no error) when the wallet has no balance row yet.
	GetBalance(ctx context.Context, wallet string, seasonId int64) (*models.ShardBalance, error)
	// GetEarningEntry returns nil (no error) when no entry exists for the date.
	GetEarningEntry(ctx context.Context, wallet string, seasonId int64, date time.Time) (*models.EarningHistoryEntry, error)
	GetEarningHistory(ctx context.Context, wallet string, seasonId int64, from, to time.Time) ([]models.EarningHistoryEntry, error)
	// UpsertDailyEarning writes the per-day entry keyed by (wallet, season, date)
	// and atomically replaces the balance row with totals aggregated from
	// history. Safe to replay with unchanged values.
	UpsertDailyEarning(ctx context.Context, entry *models.EarningHistoryEntry) error
	// TrailingDailyTotals returns the per-day entries for the given number of
	// days strictly before date, newest first.
	TrailingDailyTotals(ctx context.Context, wallet string, seasonId int64, date time.Time, days int) ([]models.EarningHistoryEntry, error)
	ListWallets(ctx context.Context, seasonId int64) ([]string, error)

	InsertFraudFlag(ctx context.Context, flag *models.FraudFlag) error
	GetFraudFlags(ctx context.Context, seasonId int64, limit int) ([]models.FraudFlag, error)

	Leaderboard(ctx context.Context, q LeaderboardQuery) ([]models.ShardBalance, error)
	CountParticipants(ctx context.Context, seasonId int64) (int64, error)
	// WalletRank returns the 1-based rank of the wallet within the category,
	// or 0 when the wallet has no balance row.
	WalletRank(ctx context.Context, wallet string, seasonId int64, category models.ShardCategory) (int64, error)
}

// ReferralStore persists referrals and their per-day bonus earnings.
type ReferralStore interface {
	InsertReferral(ctx context.Context, referral *models.Referral) error
	GetReferral(ctx context.Context, id string) (*models.Referral, error)
	// GetReferralByReferee returns nil (no error) when the referee has no referral this season.
	GetReferralByReferee(ctx context.Context, referee string, seasonId int64) (*models.Referral, error)
	CountByReferrer(ctx context.Context, referrer string, seasonId int64) (int, error)
	GetReferralsByReferrer(ctx context.Context, referrer string, seasonId int64) ([]models.Referral, error)
	GetReferralsByStatus(ctx context.Context, seasonId int64, status models.ReferralStatus) ([]models.Referral, error)
	// UpdateReferral applies the row only when the stored version still matches
	// referral.Version, then bumps the version. Returns ErrConcurrentModification otherwise.
	UpdateReferral(ctx context.Context, referral *models.Referral) error

	// UpsertReferralEarning records the bonus earned by a referral on one day
	// (replay-safe) and refreshes the referral's total.
	UpsertReferralEarning(ctx context.Context, referralId string, date time.Time, shards decimal.Decimal) error
	// ReferralEarningsExcluding sums a referral's recorded bonus earnings over
	// every day except the given one. Used for replay-safe cap enforcement.
	ReferralEarningsExcluding(ctx context.Context, referralId string, date time.Time) (decimal.Decimal, error)
}

// RewardsStore is the full persistence contract the SQLite backend satisfies.
type RewardsStore interface {
	SeasonStore
	BalanceStore
	ReferralStore
	Close()
}
