/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package accrual

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/referral"
	"shard-rewards-go/internal/store"
	"shard-rewards-go/internal/valuation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// shardPlaces is the fixed-point precision for all shard amounts.
	shardPlaces = 4

	dayFormat = "2006-01-02"
)

// usdPerShardUnit is the staking denominator: rates are shards per $1000 per day.
var usdPerShardUnit = decimal.NewFromInt(1000)

// AuditMirror receives every persisted accrual for double-entry bookkeeping.
// Mirror failures must never block or fail the accrual itself.
type AuditMirror interface {
	RecordAccrual(ctx context.Context, entry *models.EarningHistoryEntry) error
}

// Engine computes and persists daily shard accruals. One entry per wallet,
// season, and day; replays overwrite in place and never double-count.
type Engine struct {
	seasons   store.SeasonStore
	balances  store.BalanceStore
	vaults    valuation.VaultValuationFeed
	social    valuation.SocialPointsFeed
	devs      valuation.DeveloperFeed
	referrals *referral.Ledger
	cfg       models.AccrualConfig
	mirror    AuditMirror
}

func NewEngine(seasons store.SeasonStore, balances store.BalanceStore,
	vaults valuation.VaultValuationFeed, social valuation.SocialPointsFeed,
	devs valuation.DeveloperFeed, referrals *referral.Ledger, cfg models.AccrualConfig) *Engine {
	return &Engine{
		seasons:   seasons,
		balances:  balances,
		vaults:    vaults,
		social:    social,
		devs:      devs,
		referrals: referrals,
		cfg:       cfg,
	}
}

// WithMirror attaches an optional audit mirror.
func (e *Engine) WithMirror(mirror AuditMirror) *Engine {
	e.mirror = mirror
	return e
}

// ComputeDailyShards computes, fraud-checks, and persists one wallet's shards
// for one UTC day, returning the final breakdown.
func (e *Engine) ComputeDailyShards(ctx context.Context, wallet string, seasonId int64, date time.Time) (*models.DailyShards, error) {
	wallet = strings.ToLower(wallet)
	day := date.UTC().Truncate(24 * time.Hour)

	season, err := e.seasons.GetSeason(ctx, seasonId)
	if err != nil {
		return nil, err
	}

	staking, breakdown, err := e.stakingShards(ctx, wallet, season, day)
	if err != nil {
		return nil, err
	}
	social, err := e.socialShards(ctx, wallet, season, day)
	if err != nil {
		return nil, err
	}
	developer, err := e.developerShards(ctx, wallet, seasonId, day)
	if err != nil {
		return nil, err
	}

	base := staking.Add(social).Add(developer)
	referralShards, err := e.referrals.DailyReferralShards(ctx, wallet, seasonId, day, base,
		func(ctx context.Context, other string) (decimal.Decimal, error) {
			return e.baseShards(ctx, other, season, day)
		})
	if err != nil {
		return nil, err
	}

	result := &models.DailyShards{
		WalletAddress:   wallet,
		SeasonId:        seasonId,
		Date:            day,
		StakingShards:   staking,
		SocialShards:    social,
		DeveloperShards: developer,
		ReferralShards:  referralShards,
		TotalShards:     staking.Add(social).Add(developer).Add(referralShards),
		VaultBreakdown:  breakdown,
	}

	flagged, reasons, err := e.checkVariance(ctx, result)
	if err != nil {
		return nil, err
	}
	result.Flagged = flagged

	entry := &models.EarningHistoryEntry{
		Id:              uuid.New().String(),
		WalletAddress:   wallet,
		SeasonId:        seasonId,
		Date:            day,
		StakingShards:   staking,
		SocialShards:    social,
		DeveloperShards: developer,
		ReferralShards:  referralShards,
		DailyTotal:      result.TotalShards,
		VaultBreakdown:  breakdown,
		CalculationHash: calculationHash(wallet, seasonId, day),
	}
	if err := e.balances.UpsertDailyEarning(ctx, entry); err != nil {
		return nil, err
	}

	// Flagged days are persisted and surfaced for review, never zeroed.
	for _, reason := range reasons {
		flag := &models.FraudFlag{
			Id:            uuid.New().String(),
			WalletAddress: wallet,
			SeasonId:      seasonId,
			Date:          day,
			Reason:        reason,
		}
		if err := e.balances.InsertFraudFlag(ctx, flag); err != nil {
			zap.L().Error("Failed to record fraud flag",
				zap.String("wallet", wallet), zap.Error(err))
		}
	}

	if e.mirror != nil {
		if err := e.mirror.RecordAccrual(ctx, entry); err != nil {
			zap.L().Warn("Audit mirror rejected accrual, continuing",
				zap.String("wallet", wallet),
				zap.String("date", day.Format(dayFormat)),
				zap.Error(err))
		}
	}

	return result, nil
}

// RunDaily accrues every known wallet for the day: wallets with existing
// balance rows plus any extra wallets the feed knows about. Per-wallet
// failures are logged and skipped.
func (e *Engine) RunDaily(ctx context.Context, seasonId int64, date time.Time, extraWallets []string) (processed, flagged int, err error) {
	known, err := e.balances.ListWallets(ctx, seasonId)
	if err != nil {
		return 0, 0, err
	}

	seen := make(map[string]struct{}, len(known)+len(extraWallets))
	var wallets []string
	for _, w := range append(known, extraWallets...) {
		w = strings.ToLower(w)
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)

	for _, wallet := range wallets {
		if err := ctx.Err(); err != nil {
			return processed, flagged, err
		}

		result, err := e.ComputeDailyShards(ctx, wallet, seasonId, date)
		if err != nil {
			zap.L().Error("Accrual failed for wallet, skipping",
				zap.String("wallet", wallet),
				zap.Int64("season_id", seasonId),
				zap.Error(err))
			continue
		}
		processed++
		if result.Flagged {
			flagged++
		}
	}

	zap.L().Info("Daily accrual run finished",
		zap.Int64("season_id", seasonId),
		zap.String("date", date.UTC().Format(dayFormat)),
		zap.Int("processed", processed),
		zap.Int("flagged", flagged))
	return processed, flagged, nil
}

// baseShards is the non-referral sum for a wallet. The referral ledger calls
// it for referees, so referrer bonuses never depend on processing order.
func (e *Engine) baseShards(ctx context.Context, wallet string, season *models.Season, day time.Time) (decimal.Decimal, error) {
	staking, _, err := e.stakingShards(ctx, wallet, season, day)
	if err != nil {
		return decimal.Zero, err
	}
	social, err := e.socialShards(ctx, wallet, season, day)
	if err != nil {
		return decimal.Zero, err
	}
	developer, err := e.developerShards(ctx, wallet, season.Id, day)
	if err != nil {
		return decimal.Zero, err
	}
	return staking.Add(social).Add(developer), nil
}

// stakingShards sums (usd / 1000) * rate(symbol) over the wallet's vault
// positions. Symbols absent from the season's rate table earn nothing.
func (e *Engine) stakingShards(ctx context.Context, wallet string, season *models.Season, day time.Time) (decimal.Decimal, []models.VaultEarning, error) {
	positions, err := e.vaults.Positions(ctx, wallet, season.Id, day)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("vault valuation feed failed for %s: %w", wallet, err)
	}

	total := decimal.Zero
	var breakdown []models.VaultEarning
	for _, position := range positions {
		rate, ok := season.Config.VaultRates[position.Symbol]
		if !ok {
			continue
		}
		shards := position.UsdValue.Div(usdPerShardUnit).Mul(rate).Round(shardPlaces)
		total = total.Add(shards)
		breakdown = append(breakdown, models.VaultEarning{
			VaultAddress: position.VaultAddress,
			Chain:        position.Chain,
			Asset:        position.Symbol,
			UsdValue:     position.UsdValue,
			Shards:       shards,
		})
	}
	return total.Round(shardPlaces), breakdown, nil
}

func (e *Engine) socialShards(ctx context.Context, wallet string, season *models.Season, day time.Time) (decimal.Decimal, error) {
	points, err := e.social.Points(ctx, wallet, season.Id, day)
	if err != nil {
		return decimal.Zero, fmt.Errorf("social points feed failed for %s: %w", wallet, err)
	}
	if points.IsZero() {
		return decimal.Zero, nil
	}

	rate := season.Config.SocialConversionRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(100)
	}
	return points.Div(rate).Round(shardPlaces), nil
}

func (e *Engine) developerShards(ctx context.Context, wallet string, seasonId int64, day time.Time) (decimal.Decimal, error) {
	events, err := e.devs.Contributions(ctx, wallet, seasonId, day)
	if err != nil {
		return decimal.Zero, fmt.Errorf("developer feed failed for %s: %w", wallet, err)
	}

	total := decimal.Zero
	for _, event := range events {
		reward, ok := e.cfg.DeveloperRewards[event.Kind]
		if !ok {
			zap.L().Warn("Unknown contribution kind, no reward applied",
				zap.String("wallet", wallet),
				zap.String("kind", string(event.Kind)))
			continue
		}
		total = total.Add(reward)
	}
	return total.Round(shardPlaces), nil
}

// calculationHash identifies one (wallet, season, day) computation. Replays of
// the same day produce the same hash.
func calculationHash(wallet string, seasonId int64, day time.Time) string {
	data := fmt.Sprintf("%s:%d:%s", wallet, seasonId, day.Format(dayFormat))
	return fmt.Sprintf("%x", sha256.Sum256([]byte(data)))
}
