package accrual

import (
	"context"
	"fmt"

	"shard-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

// checkVariance compares the day's accrual against the trailing average and
// returns the review reasons, if any. The gate only engages once a full
// trailing window of history exists; early days have no meaningful baseline.
func (e *Engine) checkVariance(ctx context.Context, day *models.DailyShards) (bool, []string, error) {
	trailing, err := e.balances.TrailingDailyTotals(ctx, day.WalletAddress, day.SeasonId, day.Date, e.cfg.TrailingDays)
	if err != nil {
		return false, nil, err
	}
	if len(trailing) < e.cfg.TrailingDays {
		return false, nil, nil
	}

	count := decimal.NewFromInt(int64(len(trailing)))
	sums := map[models.ShardCategory]decimal.Decimal{
		models.CategoryTotal:     decimal.Zero,
		models.CategoryStaking:   decimal.Zero,
		models.CategorySocial:    decimal.Zero,
		models.CategoryDeveloper: decimal.Zero,
		models.CategoryReferral:  decimal.Zero,
	}
	for _, entry := range trailing {
		sums[models.CategoryTotal] = sums[models.CategoryTotal].Add(entry.DailyTotal)
		sums[models.CategoryStaking] = sums[models.CategoryStaking].Add(entry.StakingShards)
		sums[models.CategorySocial] = sums[models.CategorySocial].Add(entry.SocialShards)
		sums[models.CategoryDeveloper] = sums[models.CategoryDeveloper].Add(entry.DeveloperShards)
		sums[models.CategoryReferral] = sums[models.CategoryReferral].Add(entry.ReferralShards)
	}

	var reasons []string

	totalAvg := sums[models.CategoryTotal].Div(count)
	if exceeds(day.TotalShards, totalAvg, e.cfg.TotalVarianceMultiple) {
		reasons = append(reasons, fmt.Sprintf(
			"daily total %s exceeds %sx the trailing %d-day average of %s",
			day.TotalShards.String(), e.cfg.TotalVarianceMultiple.String(),
			len(trailing), totalAvg.String()))
	}

	categories := []struct {
		name  models.ShardCategory
		value decimal.Decimal
	}{
		{models.CategoryStaking, day.StakingShards},
		{models.CategorySocial, day.SocialShards},
		{models.CategoryDeveloper, day.DeveloperShards},
		{models.CategoryReferral, day.ReferralShards},
	}
	for _, category := range categories {
		avg := sums[category.name].Div(count)
		if exceeds(category.value, avg, e.cfg.CategoryVarianceMultiple) {
			reasons = append(reasons, fmt.Sprintf(
				"%s shards %s exceed %sx the trailing %d-day average of %s",
				category.name, category.value.String(),
				e.cfg.CategoryVarianceMultiple.String(), len(trailing), avg.String()))
		}
	}

	return len(reasons) > 0, reasons, nil
}

// exceeds reports whether value > multiple * average. A zero average never
// trips the gate: a wallet going from nothing to something is normal growth.
func exceeds(value, average, multiple decimal.Decimal) bool {
	if !average.IsPositive() {
		return false
	}
	return value.GreaterThan(average.Mul(multiple))
}
