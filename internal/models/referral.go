package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralStatus is the lifecycle state of a referral.
type ReferralStatus string

const (
	ReferralPending ReferralStatus = "pending"
	ReferralActive  ReferralStatus = "active"
	ReferralExpired ReferralStatus = "expired"
)

// Referral links a referrer to a referee for one season.
// The entity is never deleted; once the bonus window lapses it is marked expired.
type Referral struct {
	Id                  string          `db:"id" json:"id"`
	ReferrerAddress     string          `db:"referrer_address" json:"referrer_address"`
	RefereeAddress      string          `db:"referee_address" json:"referee_address"`
	SeasonId            int64           `db:"season_id" json:"season_id"`
	Status              ReferralStatus  `db:"status" json:"status"`
	ActivationDate      *time.Time      `db:"activation_date" json:"activation_date,omitempty"`
	BalanceAtActivation decimal.Decimal `db:"balance_at_activation" json:"balance_at_activation"`
	TotalShardsEarned   decimal.Decimal `db:"total_shards_earned" json:"total_shards_earned"`
	Version             int64           `db:"version" json:"version"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// ReferralStats is the per-wallet referral rollup for a season.
type ReferralStats struct {
	WalletAddress     string          `json:"wallet_address"`
	SeasonId          int64           `json:"season_id"`
	TotalReferrals    int             `json:"total_referrals"`
	PendingReferrals  int             `json:"pending_referrals"`
	ActiveReferrals   int             `json:"active_referrals"`
	ExpiredReferrals  int             `json:"expired_referrals"`
	TotalBonusShards  decimal.Decimal `json:"total_bonus_shards"`
	ReferredBy        string          `json:"referred_by,omitempty"`
	RefereeBonusEnds  *time.Time      `json:"referee_bonus_ends,omitempty"`
}
