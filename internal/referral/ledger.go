package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// shardPlaces is the fixed-point precision for bonus shards.
const shardPlaces = 4

// BaseShardsFunc computes a wallet's non-referral shards for the day under
// accrual. Supplied by the accrual engine so referrer bonuses never depend on
// the order wallets are processed in.
type BaseShardsFunc func(ctx context.Context, wallet string) (decimal.Decimal, error)

// Ledger is the referral lifecycle state machine: pending referrals activate
// once the referee crosses the threshold, earn bonuses inside the window, and
// expire when it lapses. Rows are never deleted.
type Ledger struct {
	referrals store.ReferralStore
	balances  store.BalanceStore
	cfg       models.ReferralConfig
	now       func() time.Time
}

func NewLedger(referrals store.ReferralStore, balances store.BalanceStore, cfg models.ReferralConfig) *Ledger {
	return &Ledger{referrals: referrals, balances: balances, cfg: cfg, now: time.Now}
}

// WithClock overrides the ledger's time source. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// NormalizeAddress validates a wallet address and returns its canonical
// lowercase form. Referrals always compare addresses in this form, so case
// tricks cannot dodge the self-referral guard.
func NormalizeAddress(addr string) (string, error) {
	if !ethcommon.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid wallet address %q", addr)
	}
	return strings.ToLower(ethcommon.HexToAddress(addr).Hex()), nil
}

// CreateReferral registers a pending referral after the anti-abuse guards.
func (l *Ledger) CreateReferral(ctx context.Context, referrer, referee string, seasonId int64) (*models.Referral, error) {
	referrerAddr, err := NormalizeAddress(referrer)
	if err != nil {
		return nil, err
	}
	refereeAddr, err := NormalizeAddress(referee)
	if err != nil {
		return nil, err
	}

	if referrerAddr == refereeAddr {
		return nil, fmt.Errorf("%w: a wallet cannot refer itself", store.ErrConflict)
	}

	existing, err := l.referrals.GetReferralByReferee(ctx, refereeAddr, seasonId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: referee %s already has a referral in season %d",
			store.ErrConflict, refereeAddr, seasonId)
	}

	count, err := l.referrals.CountByReferrer(ctx, referrerAddr, seasonId)
	if err != nil {
		return nil, err
	}
	if count >= l.cfg.MaxReferralsPerWallet {
		return nil, fmt.Errorf("%w: referrer %s reached the limit of %d referrals per season",
			store.ErrConflict, referrerAddr, l.cfg.MaxReferralsPerWallet)
	}

	// Wallets that already earned shards this season cannot be claimed
	// retroactively.
	balance, err := l.balances.GetBalance(ctx, refereeAddr, seasonId)
	if err != nil {
		return nil, err
	}
	if balance != nil && balance.TotalShards.IsPositive() {
		return nil, fmt.Errorf("%w: referee %s already has %s shards in season %d",
			store.ErrConflict, refereeAddr, balance.TotalShards.String(), seasonId)
	}

	referral := &models.Referral{
		Id:                  uuid.New().String(),
		ReferrerAddress:     referrerAddr,
		RefereeAddress:      refereeAddr,
		SeasonId:            seasonId,
		Status:              models.ReferralPending,
		BalanceAtActivation: decimal.Zero,
		TotalShardsEarned:   decimal.Zero,
		Version:             1,
	}
	if err := l.referrals.InsertReferral(ctx, referral); err != nil {
		return nil, err
	}
	return referral, nil
}

// ActivateReferral flips a pending referral to active once the referee's
// balance clears the threshold. The version guard makes concurrent sweeps and
// direct calls race-safe: exactly one wins.
func (l *Ledger) ActivateReferral(ctx context.Context, referralId string) error {
	referral, err := l.referrals.GetReferral(ctx, referralId)
	if err != nil {
		return err
	}
	if referral.Status != models.ReferralPending {
		return fmt.Errorf("cannot activate referral %s: status is %s, expected pending",
			referralId, referral.Status)
	}

	balance, err := l.balances.GetBalance(ctx, referral.RefereeAddress, referral.SeasonId)
	if err != nil {
		return err
	}
	current := decimal.Zero
	if balance != nil {
		current = balance.TotalShards
	}
	if current.LessThan(l.cfg.ActivationThreshold) {
		return fmt.Errorf("referee balance %s is below the activation threshold of %s shards",
			current.String(), l.cfg.ActivationThreshold.String())
	}

	activatedAt := l.now().UTC()
	referral.Status = models.ReferralActive
	referral.ActivationDate = &activatedAt
	referral.BalanceAtActivation = current

	if err := l.referrals.UpdateReferral(ctx, referral); err != nil {
		return err
	}

	zap.L().Info("Referral activated",
		zap.String("referral_id", referral.Id),
		zap.String("referee", referral.RefereeAddress),
		zap.String("balance_at_activation", current.String()))
	return nil
}

// CheckAndActivatePending sweeps pending referrals and activates every one
// whose referee has crossed the threshold. Per-referral failures are logged
// and skipped; the count of activations is returned.
func (l *Ledger) CheckAndActivatePending(ctx context.Context, seasonId int64) (int, error) {
	pending, err := l.referrals.GetReferralsByStatus(ctx, seasonId, models.ReferralPending)
	if err != nil {
		return 0, err
	}

	activated := 0
	for _, referral := range pending {
		if err := ctx.Err(); err != nil {
			return activated, err
		}

		balance, err := l.balances.GetBalance(ctx, referral.RefereeAddress, seasonId)
		if err != nil {
			zap.L().Error("Failed to read referee balance during activation sweep",
				zap.String("referral_id", referral.Id), zap.Error(err))
			continue
		}
		if balance == nil || balance.TotalShards.LessThan(l.cfg.ActivationThreshold) {
			continue
		}

		if err := l.ActivateReferral(ctx, referral.Id); err != nil {
			// A concurrent direct activation may have won the race; that is fine.
			zap.L().Warn("Activation sweep skipped referral",
				zap.String("referral_id", referral.Id), zap.Error(err))
			continue
		}
		activated++
	}

	if activated > 0 {
		zap.L().Info("Referral activation sweep finished",
			zap.Int64("season_id", seasonId), zap.Int("activated", activated))
	}
	return activated, nil
}

// ExpireOutdatedBonuses flips active referrals whose bonus window has lapsed
// to expired. Safe to run repeatedly; already-expired referrals are untouched.
func (l *Ledger) ExpireOutdatedBonuses(ctx context.Context, seasonId int64) (int, error) {
	active, err := l.referrals.GetReferralsByStatus(ctx, seasonId, models.ReferralActive)
	if err != nil {
		return 0, err
	}

	now := l.now().UTC()
	expired := 0
	for _, referral := range active {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if referral.ActivationDate == nil {
			zap.L().Warn("Active referral has no activation date, skipping",
				zap.String("referral_id", referral.Id))
			continue
		}
		if now.Before(l.bonusWindowEnd(*referral.ActivationDate)) {
			continue
		}

		referral.Status = models.ReferralExpired
		if err := l.referrals.UpdateReferral(ctx, &referral); err != nil {
			zap.L().Error("Failed to expire referral",
				zap.String("referral_id", referral.Id), zap.Error(err))
			continue
		}
		expired++
	}

	if expired > 0 {
		zap.L().Info("Referral expiry sweep finished",
			zap.Int64("season_id", seasonId), zap.Int("expired", expired))
	}
	return expired, nil
}

// GetReferralStats returns the rollup for a wallet acting as referrer, plus
// its own referee-side window if any.
func (l *Ledger) GetReferralStats(ctx context.Context, wallet string, seasonId int64) (*models.ReferralStats, error) {
	addr, err := NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}

	referrals, err := l.referrals.GetReferralsByReferrer(ctx, addr, seasonId)
	if err != nil {
		return nil, err
	}

	stats := &models.ReferralStats{
		WalletAddress:    addr,
		SeasonId:         seasonId,
		TotalBonusShards: decimal.Zero,
	}
	for _, referral := range referrals {
		stats.TotalReferrals++
		switch referral.Status {
		case models.ReferralPending:
			stats.PendingReferrals++
		case models.ReferralActive:
			stats.ActiveReferrals++
		case models.ReferralExpired:
			stats.ExpiredReferrals++
		}
		stats.TotalBonusShards = stats.TotalBonusShards.Add(referral.TotalShardsEarned)
	}

	own, err := l.referrals.GetReferralByReferee(ctx, addr, seasonId)
	if err != nil {
		return nil, err
	}
	if own != nil {
		stats.ReferredBy = own.ReferrerAddress
		if own.Status == models.ReferralActive && own.ActivationDate != nil {
			end := l.bonusWindowEnd(*own.ActivationDate)
			stats.RefereeBonusEnds = &end
		}
	}
	return stats, nil
}

// DailyReferralShards computes the referral category for one wallet and day:
// the referee-side multiplier on its own base shards plus the referrer-side
// cut of each active referee's base, capped per referral. Per-day earnings are
// upserted so replaying a day never double-counts toward the cap.
func (l *Ledger) DailyReferralShards(ctx context.Context, wallet string, seasonId int64, date time.Time, ownBase decimal.Decimal, baseOf BaseShardsFunc) (decimal.Decimal, error) {
	total := decimal.Zero
	day := date.UTC().Truncate(24 * time.Hour)

	// Referee side: own non-referral shards earn the multiplier while the
	// wallet's own referral is active and inside the window.
	own, err := l.referrals.GetReferralByReferee(ctx, wallet, seasonId)
	if err != nil {
		return decimal.Zero, err
	}
	if own != nil && l.withinBonusWindow(own, day) {
		bonus := ownBase.Mul(l.cfg.RefereeMultiplier.Sub(decimal.NewFromInt(1)))
		total = total.Add(bonus)
	}

	// Referrer side: a cut of each active referee's base for the day.
	referrals, err := l.referrals.GetReferralsByReferrer(ctx, wallet, seasonId)
	if err != nil {
		return decimal.Zero, err
	}
	for _, referral := range referrals {
		if !l.withinBonusWindow(&referral, day) {
			continue
		}

		refereeBase, err := baseOf(ctx, referral.RefereeAddress)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to compute referee base shards for %s: %w",
				referral.RefereeAddress, err)
		}

		bonus := refereeBase.Mul(l.cfg.ReferrerBonusRate)
		earnedElsewhere, err := l.referrals.ReferralEarningsExcluding(ctx, referral.Id, day)
		if err != nil {
			return decimal.Zero, err
		}
		remaining := l.cfg.MaxReferrerBonus.Sub(earnedElsewhere)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		if bonus.GreaterThan(remaining) {
			bonus = remaining
		}
		bonus = bonus.Round(shardPlaces)

		if err := l.referrals.UpsertReferralEarning(ctx, referral.Id, day, bonus); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(bonus)
	}

	return total.Round(shardPlaces), nil
}

// bonusWindowEnd is the first instant outside the bonus period. The window
// runs in whole UTC days from the midnight of the activation day, so expiry
// and the per-day earning check agree on the same boundary.
func (l *Ledger) bonusWindowEnd(activation time.Time) time.Time {
	start := activation.UTC().Truncate(24 * time.Hour)
	return start.Add(time.Duration(l.cfg.BonusDurationDays) * 24 * time.Hour)
}

// withinBonusWindow reports whether the day falls inside the referral's bonus
// period. Only active referrals with an activation date qualify.
func (l *Ledger) withinBonusWindow(referral *models.Referral, day time.Time) bool {
	if referral.Status != models.ReferralActive || referral.ActivationDate == nil {
		return false
	}
	start := referral.ActivationDate.UTC().Truncate(24 * time.Hour)
	return !day.Before(start) && day.Before(l.bonusWindowEnd(*referral.ActivationDate))
}
