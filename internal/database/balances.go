package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shard-rewards-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// dayFormat is the date bucket key. Dates are bucketed in UTC everywhere.
const dayFormat = "2006-01-02"

// dbtx is satisfied by both *sql.DB and *sql.Tx, so the aggregation helpers
// run inside or outside a transaction.
type dbtx interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetBalance returns the current balance row, or nil when the wallet has not
// accrued anything this season.
func (s *Service) GetBalance(ctx context.Context, wallet string, seasonId int64) (*models.ShardBalance, error) {
	row := s.db.QueryRowContext(ctx, queryGetShardBalance, wallet, seasonId)
	balance, err := scanShardBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for %s: %w", wallet, err)
	}
	return balance, nil
}

func (s *Service) ListWallets(ctx context.Context, seasonId int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryListWallets, seasonId)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets for season %d: %w", seasonId, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var wallets []string
	for rows.Next() {
		var wallet string
		if err := rows.Scan(&wallet); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

func (s *Service) CountParticipants(ctx context.Context, seasonId int64) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, queryCountParticipants, seasonId).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants for season %d: %w", seasonId, err)
	}
	return count, nil
}

// UpsertDailyEarning writes one day's entry and rebuilds the balance row from
// the full history in the same transaction. Replaying the same day therefore
// never double-counts.
func (s *Service) UpsertDailyEarning(ctx context.Context, entry *models.EarningHistoryEntry) error {
	breakdownJSON, err := json.Marshal(entry.VaultBreakdown)
	if err != nil {
		return fmt.Errorf("failed to encode vault breakdown: %w", err)
	}
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	day := entry.Date.UTC().Format(dayFormat)
	_, err = tx.ExecContext(ctx, queryUpsertEarningEntry,
		entry.Id, entry.WalletAddress, entry.SeasonId, day,
		entry.StakingShards.String(), entry.SocialShards.String(),
		entry.DeveloperShards.String(), entry.ReferralShards.String(),
		entry.DailyTotal.String(), string(breakdownJSON), entry.CalculationHash)
	if err != nil {
		return fmt.Errorf("failed to upsert earning entry: %w", err)
	}

	if err := rebuildShardBalance(ctx, tx, entry.WalletAddress, entry.SeasonId); err != nil {
		return err
	}

	if err := refreshSeasonTotals(ctx, tx, entry.SeasonId); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit earning entry: %w", err)
	}

	zap.L().Debug("Daily earning recorded",
		zap.String("wallet", entry.WalletAddress),
		zap.Int64("season_id", entry.SeasonId),
		zap.String("date", day),
		zap.String("daily_total", entry.DailyTotal.String()))
	return nil
}

// rebuildShardBalance replaces the balance row with category totals summed
// from the earning history. The sums run in Go with decimal arithmetic; a SQL
// SUM over the TEXT columns would go through float64 and drift off the exact
// category totals.
func rebuildShardBalance(ctx context.Context, q dbtx, wallet string, seasonId int64) error {
	rows, err := q.QueryContext(ctx, queryEarningCategoryRows, wallet, seasonId)
	if err != nil {
		return fmt.Errorf("failed to query earning history for %s: %w", wallet, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var staking, social, developer, referral, total decimal.Decimal
	entries := 0
	for rows.Next() {
		var rawStaking, rawSocial, rawDeveloper, rawReferral, rawTotal string
		if err := rows.Scan(&rawStaking, &rawSocial, &rawDeveloper, &rawReferral, &rawTotal); err != nil {
			return fmt.Errorf("failed to scan earning entry for %s: %w", wallet, err)
		}
		if err := addShards(&staking, rawStaking, "staking shards"); err != nil {
			return err
		}
		if err := addShards(&social, rawSocial, "social shards"); err != nil {
			return err
		}
		if err := addShards(&developer, rawDeveloper, "developer shards"); err != nil {
			return err
		}
		if err := addShards(&referral, rawReferral, "referral shards"); err != nil {
			return err
		}
		if err := addShards(&total, rawTotal, "daily total"); err != nil {
			return err
		}
		entries++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating earning rows: %w", err)
	}
	if entries == 0 {
		return nil
	}

	_, err = q.ExecContext(ctx, queryUpsertShardBalance,
		wallet, seasonId, staking.String(), social.String(),
		developer.String(), referral.String(), total.String())
	if err != nil {
		return fmt.Errorf("failed to rebuild shard balance for %s: %w", wallet, err)
	}
	return nil
}

// refreshSeasonTotals recomputes total_participants and total_shards_issued
// from the balance table, again summing in Go to keep the totals exact.
func refreshSeasonTotals(ctx context.Context, q dbtx, seasonId int64) error {
	rows, err := q.QueryContext(ctx, querySeasonBalanceTotals, seasonId)
	if err != nil {
		return fmt.Errorf("failed to query balance totals for season %d: %w", seasonId, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var (
		participants int64
		issued       decimal.Decimal
	)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("failed to scan balance total: %w", err)
		}
		if err := addShards(&issued, raw, "total shards"); err != nil {
			return err
		}
		participants++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating balance rows: %w", err)
	}

	_, err = q.ExecContext(ctx, queryWriteSeasonTotals, participants, issued.String(), seasonId)
	if err != nil {
		return fmt.Errorf("failed to write season %d totals: %w", seasonId, err)
	}
	return nil
}

func addShards(dst *decimal.Decimal, raw, column string) error {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("failed to parse %s %q: %w", column, raw, err)
	}
	*dst = dst.Add(value)
	return nil
}

// GetEarningEntry returns the entry for one day, or nil when absent.
func (s *Service) GetEarningEntry(ctx context.Context, wallet string, seasonId int64, date time.Time) (*models.EarningHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, queryGetEarningEntry, wallet, seasonId, date.UTC().Format(dayFormat))
	entry, err := scanEarningEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get earning entry: %w", err)
	}
	return entry, nil
}

func (s *Service) GetEarningHistory(ctx context.Context, wallet string, seasonId int64, from, to time.Time) ([]models.EarningHistoryEntry, error) {
	return s.queryEarnings(ctx, queryGetEarningHistory,
		wallet, seasonId, from.UTC().Format(dayFormat), to.UTC().Format(dayFormat))
}

func (s *Service) TrailingDailyTotals(ctx context.Context, wallet string, seasonId int64, date time.Time, days int) ([]models.EarningHistoryEntry, error) {
	return s.queryEarnings(ctx, queryTrailingEntries,
		wallet, seasonId, date.UTC().Format(dayFormat), days)
}

func (s *Service) InsertFraudFlag(ctx context.Context, flag *models.FraudFlag) error {
	if flag.Id == "" {
		flag.Id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, queryInsertFraudFlag,
		flag.Id, flag.WalletAddress, flag.SeasonId, flag.Date.UTC().Format(dayFormat), flag.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert fraud flag: %w", err)
	}
	zap.L().Warn("Accrual flagged for review",
		zap.String("wallet", flag.WalletAddress),
		zap.Int64("season_id", flag.SeasonId),
		zap.String("reason", flag.Reason))
	return nil
}

func (s *Service) GetFraudFlags(ctx context.Context, seasonId int64, limit int) ([]models.FraudFlag, error) {
	rows, err := s.db.QueryContext(ctx, queryGetFraudFlags, seasonId, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fraud flags: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var flags []models.FraudFlag
	for rows.Next() {
		var (
			flag models.FraudFlag
			day  string
		)
		if err := rows.Scan(&flag.Id, &flag.WalletAddress, &flag.SeasonId, &day, &flag.Reason, &flag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fraud flag: %w", err)
		}
		flag.Date, err = time.ParseInLocation(dayFormat, day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse flag date %q: %w", day, err)
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fraud flag rows: %w", err)
	}
	return flags, nil
}

func (s *Service) queryEarnings(ctx context.Context, query string, args ...any) ([]models.EarningHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query earning history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.EarningHistoryEntry
	for rows.Next() {
		entry, err := scanEarningEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earning rows: %w", err)
	}
	return entries, nil
}

func scanShardBalance(row rowScanner) (*models.ShardBalance, error) {
	var (
		balance                                  models.ShardBalance
		staking, social, developer, referral, tt string
	)
	err := row.Scan(&balance.WalletAddress, &balance.SeasonId, &staking, &social,
		&developer, &referral, &tt, &balance.LastCalculatedAt, &balance.Version)
	if err != nil {
		return nil, err
	}
	if balance.StakingShards, err = decimal.NewFromString(staking); err != nil {
		return nil, fmt.Errorf("failed to parse staking shards %q: %w", staking, err)
	}
	if balance.SocialShards, err = decimal.NewFromString(social); err != nil {
		return nil, fmt.Errorf("failed to parse social shards %q: %w", social, err)
	}
	if balance.DeveloperShards, err = decimal.NewFromString(developer); err != nil {
		return nil, fmt.Errorf("failed to parse developer shards %q: %w", developer, err)
	}
	if balance.ReferralShards, err = decimal.NewFromString(referral); err != nil {
		return nil, fmt.Errorf("failed to parse referral shards %q: %w", referral, err)
	}
	if balance.TotalShards, err = decimal.NewFromString(tt); err != nil {
		return nil, fmt.Errorf("failed to parse total shards %q: %w", tt, err)
	}
	return &balance, nil
}

func scanEarningEntry(row rowScanner) (*models.EarningHistoryEntry, error) {
	var (
		entry                                       models.EarningHistoryEntry
		day                                         string
		staking, social, developer, referral, total string
		breakdownJSON                               string
	)
	err := row.Scan(&entry.Id, &entry.WalletAddress, &entry.SeasonId, &day,
		&staking, &social, &developer, &referral, &total, &breakdownJSON,
		&entry.CalculationHash, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.Date, err = time.ParseInLocation(dayFormat, day, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry date %q: %w", day, err)
	}
	if entry.StakingShards, err = decimal.NewFromString(staking); err != nil {
		return nil, fmt.Errorf("failed to parse staking shards %q: %w", staking, err)
	}
	if entry.SocialShards, err = decimal.NewFromString(social); err != nil {
		return nil, fmt.Errorf("failed to parse social shards %q: %w", social, err)
	}
	if entry.DeveloperShards, err = decimal.NewFromString(developer); err != nil {
		return nil, fmt.Errorf("failed to parse developer shards %q: %w", developer, err)
	}
	if entry.ReferralShards, err = decimal.NewFromString(referral); err != nil {
		return nil, fmt.Errorf("failed to parse referral shards %q: %w", referral, err)
	}
	if entry.DailyTotal, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to parse daily total %q: %w", total, err)
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &entry.VaultBreakdown); err != nil {
		return nil, fmt.Errorf("failed to decode vault breakdown: %w", err)
	}
	return &entry, nil
}
