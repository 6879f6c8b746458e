package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chain identifies a supported network.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
)

// SeasonStatus is the lifecycle state of a season.
type SeasonStatus string

const (
	SeasonUpcoming  SeasonStatus = "upcoming"
	SeasonActive    SeasonStatus = "active"
	SeasonCompleted SeasonStatus = "completed"
	SeasonCancelled SeasonStatus = "cancelled"
)

// MigrationStatus is derived from the migration window versus "now".
// It is never persisted.
type MigrationStatus string

const (
	MigrationUpcoming  MigrationStatus = "upcoming"
	MigrationMigrating MigrationStatus = "migrating"
	MigrationCompleted MigrationStatus = "completed"
	MigrationStable    MigrationStatus = "stable"
)

// VaultStatus is the lifecycle state of a vault-season binding.
type VaultStatus string

const (
	VaultActive     VaultStatus = "active"
	VaultPlanned    VaultStatus = "planned"
	VaultDeprecated VaultStatus = "deprecated"
	VaultMigrating  VaultStatus = "migrating"
)

// SeasonConfig holds the per-season reward configuration.
type SeasonConfig struct {
	// VaultRates maps an asset symbol to shards earned per $1000 of vault value per day.
	VaultRates map[string]decimal.Decimal `db:"vault_rates"`
	// SocialConversionRate divides raw social points into shards.
	SocialConversionRate decimal.Decimal `db:"social_conversion_rate"`
	DepositsEnabled      bool            `db:"deposits_enabled"`
	WithdrawalsEnabled   bool            `db:"withdrawals_enabled"`
	VaultsLocked         bool            `db:"vaults_locked"`
	RedeemPeriodDays     int             `db:"redeem_period_days"`
}

// Season is a bounded (or open-ended) reward epoch bound to one chain.
type Season struct {
	Id                int64        `db:"id"`
	Name              string       `db:"name"`
	Chain             Chain        `db:"chain"`
	StartDate         time.Time    `db:"start_date"`
	EndDate           *time.Time   `db:"end_date"` // nil means open-ended
	Status            SeasonStatus `db:"status"`
	Config            SeasonConfig
	Migration         *MigrationConfig // nil when the season has no migration window
	TotalParticipants int64           `db:"total_participants"`
	TotalShardsIssued decimal.Decimal `db:"total_shards_issued"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// MigrationConfig describes the cross-chain migration window into a season.
type MigrationConfig struct {
	FromChain          Chain     `db:"from_chain" json:"from_chain"`
	ToChain            Chain     `db:"to_chain" json:"to_chain"`
	StartTime          time.Time `db:"start_time" json:"start_time"`
	EndTime            time.Time `db:"end_time" json:"end_time"`
	Deadline           time.Time `db:"deadline" json:"deadline"`
	UserActionRequired bool      `db:"user_action_required" json:"user_action_required"`
	SupportedVaults    []string  `db:"supported_vaults" json:"supported_vaults"`
}

// VaultSeasonConfig binds a vault to exactly one season with its mechanics.
type VaultSeasonConfig struct {
	Address            string      `db:"address" json:"address"`
	Chain              Chain       `db:"chain" json:"chain"`
	SeasonId           int64       `db:"season_id" json:"season_id"`
	Status             VaultStatus `db:"status" json:"status"`
	UnderlyingAsset    string      `db:"underlying_asset" json:"underlying_asset"`
	WithdrawalsEnabled bool        `db:"withdrawals_enabled" json:"withdrawals_enabled"`
	LockedUntilMainnet bool        `db:"locked_until_mainnet" json:"locked_until_mainnet"`
	RedeemDelayDays    int         `db:"redeem_delay_days" json:"redeem_delay_days"`
	// EarlyWithdrawalPenalty is a percentage applied to withdrawals before the
	// redeem delay elapses. Zero means no penalty.
	EarlyWithdrawalPenalty decimal.Decimal `db:"early_withdrawal_penalty" json:"early_withdrawal_penalty"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
}

// SeasonSpec is the input for creating a season.
type SeasonSpec struct {
	Name      string
	Chain     Chain
	StartDate time.Time
	EndDate   *time.Time
	Config    SeasonConfig
	Migration *MigrationConfig
}

// SeasonPatch carries optional updates for a season. Nil fields are left unchanged.
type SeasonPatch struct {
	Name      *string
	EndDate   *time.Time
	Config    *SeasonConfig
	Migration *MigrationConfig
}
