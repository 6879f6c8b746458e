package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShardCategory selects one of the four reward categories, or the total.
type ShardCategory string

const (
	CategoryTotal     ShardCategory = "total"
	CategoryStaking   ShardCategory = "staking"
	CategorySocial    ShardCategory = "social"
	CategoryDeveloper ShardCategory = "developer"
	CategoryReferral  ShardCategory = "referral"
)

// ShardBalance is the current per-wallet, per-season state (hot data).
// Totals are replaced wholesale on every accrual; history carries the per-day record.
type ShardBalance struct {
	WalletAddress    string          `db:"wallet_address"`
	SeasonId         int64           `db:"season_id"`
	StakingShards    decimal.Decimal `db:"staking_shards"`
	SocialShards     decimal.Decimal `db:"social_shards"`
	DeveloperShards  decimal.Decimal `db:"developer_shards"`
	ReferralShards   decimal.Decimal `db:"referral_shards"`
	TotalShards      decimal.Decimal `db:"total_shards"`
	LastCalculatedAt time.Time       `db:"last_calculated_at"`
	Version          int64           `db:"version"`
}

// VaultEarning is the per-vault contribution underlying a staking total.
type VaultEarning struct {
	VaultAddress string          `json:"vault_address"`
	Chain        Chain           `json:"chain"`
	Asset        string          `json:"asset"`
	UsdValue     decimal.Decimal `json:"usd_value"`
	Shards       decimal.Decimal `json:"shards"`
}

// DailyShards is the result of one day's accrual computation for a wallet.
type DailyShards struct {
	WalletAddress   string
	SeasonId        int64
	Date            time.Time // midnight UTC
	StakingShards   decimal.Decimal
	SocialShards    decimal.Decimal
	DeveloperShards decimal.Decimal
	ReferralShards  decimal.Decimal
	TotalShards     decimal.Decimal
	VaultBreakdown  []VaultEarning
	Flagged         bool
}

// EarningHistoryEntry is the immutable per-day record (cold data, append-only).
type EarningHistoryEntry struct {
	Id              string          `db:"id"`
	WalletAddress   string          `db:"wallet_address"`
	SeasonId        int64           `db:"season_id"`
	Date            time.Time       `db:"date"`
	StakingShards   decimal.Decimal `db:"staking_shards"`
	SocialShards    decimal.Decimal `db:"social_shards"`
	DeveloperShards decimal.Decimal `db:"developer_shards"`
	ReferralShards  decimal.Decimal `db:"referral_shards"`
	DailyTotal      decimal.Decimal `db:"daily_total"`
	VaultBreakdown  []VaultEarning  `db:"vault_breakdown"`
	CalculationHash string          `db:"calculation_hash"`
	CreatedAt       time.Time       `db:"created_at"`
}

// FraudFlag marks a day whose accrual deviated beyond the configured variance
// multiples. Flagged days are surfaced for review, never auto-zeroed.
type FraudFlag struct {
	Id            string    `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	SeasonId      int64     `db:"season_id" json:"season_id"`
	Date          time.Time `db:"date" json:"date"`
	Reason        string    `db:"reason" json:"reason"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// VaultPosition is one vault holding reported by the valuation feed.
type VaultPosition struct {
	VaultAddress string
	Chain        Chain
	Symbol       string
	UsdValue     decimal.Decimal
}

// ContributionKind is a developer contribution event type.
type ContributionKind string

const (
	ContributionDeployContract ContributionKind = "deploy_contract"
	ContributionDeployDapp     ContributionKind = "deploy_dapp"
	ContributionCode           ContributionKind = "code_contribution"
	ContributionBugFix         ContributionKind = "bug_fix"
	ContributionBounty         ContributionKind = "bounty"
)

// ContributionEvent is one developer contribution reported by the developer feed.
type ContributionEvent struct {
	Kind       ContributionKind
	Reference  string
	OccurredAt time.Time
}
