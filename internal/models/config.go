package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	API       APIConfig
	Scheduler SchedulerConfig
	Accrual   AccrualConfig
	Referral  ReferralConfig
	System    SystemConfig
	Formance  FormanceConfig
	Prime     PrimeConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// APIConfig holds HTTP read-layer settings
type APIConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// SchedulerConfig holds job timing settings. Hours are UTC; the scheduler
// never consults the host timezone.
type SchedulerConfig struct {
	AccrualCronSpec       string
	SeasonSweepCronSpec   string
	ReferralSweepCronSpec string
	ProcessingWindowStart int // UTC hour, inclusive
	ProcessingWindowEnd   int // UTC hour, exclusive
}

// AccrualConfig holds shard computation settings.
type AccrualConfig struct {
	// RewardsFile optionally points to a rewards.yaml overriding the defaults below.
	RewardsFile string
	// DeveloperRewards maps contribution kinds to fixed shard values.
	DeveloperRewards map[ContributionKind]decimal.Decimal
	// TotalVarianceMultiple flags a day whose total exceeds this multiple of the trailing average.
	TotalVarianceMultiple decimal.Decimal
	// CategoryVarianceMultiple flags a single category exceeding this multiple of its trailing average.
	CategoryVarianceMultiple decimal.Decimal
	// TrailingDays is the window used for the fraud-detection trailing average.
	TrailingDays int
}

// ReferralConfig holds referral program parameters.
type ReferralConfig struct {
	MaxReferralsPerWallet int
	ActivationThreshold   decimal.Decimal
	ReferrerBonusRate     decimal.Decimal
	RefereeMultiplier     decimal.Decimal
	MaxReferrerBonus      decimal.Decimal // cap per referral
	BonusDurationDays     int
}

// SystemConfig holds global operational gates.
type SystemConfig struct {
	MaintenanceMode bool
	EmergencyMode   bool
}

// FormanceConfig holds settings for the optional accrual audit mirror.
type FormanceConfig struct {
	Enabled      bool
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// PrimeConfig holds settings for the Prime-backed vault valuation feed.
type PrimeConfig struct {
	Enabled     bool
	PortfolioId string
}
