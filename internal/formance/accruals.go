package formance

import (
	"context"
	"fmt"

	"shard-rewards-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// numscriptDailyAccrual mints one day's shards from per-category issuance
// accounts into the wallet's account. Each category posts separately so ledger
// aggregations can slice by source. All metadata is set inside the script so
// the Formance transaction is fully self-describing.
const numscriptDailyAccrual = `vars {
  asset $asset
  number $staking
  number $social
  number $developer
  number $referral
  account $wallet
  account $season
  string $date
  string $calculation_hash
}

send [$asset $staking] (
  source = @issuance:$season:staking allowing unbounded overdraft
  destination = @wallets:$wallet
)

send [$asset $social] (
  source = @issuance:$season:social allowing unbounded overdraft
  destination = @wallets:$wallet
)

send [$asset $developer] (
  source = @issuance:$season:developer allowing unbounded overdraft
  destination = @wallets:$wallet
)

send [$asset $referral] (
  source = @issuance:$season:referral allowing unbounded overdraft
  destination = @wallets:$wallet
)

set_tx_meta("event_type", "daily_accrual")
set_tx_meta("date", $date)
set_tx_meta("calculation_hash", $calculation_hash)
`

// RecordAccrual posts one day's accrual for a wallet. The calculation hash is
// the transaction reference, so replaying an already-mirrored day is a no-op.
func (s *Service) RecordAccrual(ctx context.Context, entry *models.EarningHistoryEntry) error {
	postTx := shared.V2PostTransaction{
		Reference: strPtr(entry.CalculationHash),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptDailyAccrual,
			Vars: map[string]string{
				"asset":            shardAsset,
				"staking":          ledgerAmount(entry.StakingShards),
				"social":           ledgerAmount(entry.SocialShards),
				"developer":        ledgerAmount(entry.DeveloperShards),
				"referral":         ledgerAmount(entry.ReferralShards),
				"wallet":           entry.WalletAddress,
				"season":           fmt.Sprintf("season%d", entry.SeasonId),
				"date":             entry.Date.Format("2006-01-02"),
				"calculation_hash": entry.CalculationHash,
			},
		},
	}
	timestamp := entry.Date
	postTx.Timestamp = &timestamp

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			// Already mirrored. Recomputed days keep the first posting.
			zap.L().Debug("Accrual already mirrored",
				zap.String("wallet", entry.WalletAddress),
				zap.String("hash", entry.CalculationHash))
			return nil
		}
		return fmt.Errorf("error mirroring accrual: %w", err)
	}

	zap.L().Debug("Accrual mirrored in Formance",
		zap.String("wallet", entry.WalletAddress),
		zap.Int64("season_id", entry.SeasonId),
		zap.String("total", entry.DailyTotal.String()))
	return nil
}

// ledgerAmount converts a shard amount to ledger minor units.
func ledgerAmount(amount decimal.Decimal) string {
	return amount.Shift(shardPrecision).BigInt().String()
}
