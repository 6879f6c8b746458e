package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) InsertReferral(ctx context.Context, referral *models.Referral) error {
	_, err := s.db.ExecContext(ctx, queryInsertReferral,
		referral.Id, referral.ReferrerAddress, referral.RefereeAddress,
		referral.SeasonId, string(referral.Status))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: referee %s already has a referral in season %d",
				store.ErrDuplicateEntry, referral.RefereeAddress, referral.SeasonId)
		}
		return fmt.Errorf("failed to insert referral: %w", err)
	}

	zap.L().Info("Referral created",
		zap.String("referral_id", referral.Id),
		zap.String("referrer", referral.ReferrerAddress),
		zap.String("referee", referral.RefereeAddress),
		zap.Int64("season_id", referral.SeasonId))
	return nil
}

func (s *Service) GetReferral(ctx context.Context, id string) (*models.Referral, error) {
	row := s.db.QueryRowContext(ctx, queryGetReferral, id)
	referral, err := scanReferral(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: referral %s", store.ErrReferralNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral %s: %w", id, err)
	}
	return referral, nil
}

// GetReferralByReferee returns nil when the referee has no referral this season.
func (s *Service) GetReferralByReferee(ctx context.Context, referee string, seasonId int64) (*models.Referral, error) {
	row := s.db.QueryRowContext(ctx, queryGetReferralByReferee, referee, seasonId)
	referral, err := scanReferral(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral for referee %s: %w", referee, err)
	}
	return referral, nil
}

func (s *Service) CountByReferrer(ctx context.Context, referrer string, seasonId int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountByReferrer, referrer, seasonId).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count referrals for %s: %w", referrer, err)
	}
	return count, nil
}

func (s *Service) GetReferralsByReferrer(ctx context.Context, referrer string, seasonId int64) ([]models.Referral, error) {
	return s.queryReferrals(ctx, queryGetReferralsByReferrer, referrer, seasonId)
}

func (s *Service) GetReferralsByStatus(ctx context.Context, seasonId int64, status models.ReferralStatus) ([]models.Referral, error) {
	return s.queryReferrals(ctx, queryGetReferralsByStatus, seasonId, string(status))
}

// UpdateReferral writes the row guarded by the version the caller read.
// A concurrent activation or expiry bumps the version and makes this fail.
func (s *Service) UpdateReferral(ctx context.Context, referral *models.Referral) error {
	result, err := s.db.ExecContext(ctx, queryUpdateReferral,
		string(referral.Status), nullableTime(referral.ActivationDate),
		referral.BalanceAtActivation.String(), referral.TotalShardsEarned.String(),
		referral.Id, referral.Version)
	if err != nil {
		return fmt.Errorf("failed to update referral %s: %w", referral.Id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: referral %s was modified concurrently", store.ErrConcurrentModification, referral.Id)
	}
	referral.Version++
	return nil
}

func (s *Service) UpsertReferralEarning(ctx context.Context, referralId string, date time.Time, shards decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	day := date.UTC().Format(dayFormat)
	if _, err := tx.ExecContext(ctx, queryUpsertReferralEarning, referralId, day, shards.String()); err != nil {
		return fmt.Errorf("failed to upsert referral earning: %w", err)
	}
	total, err := sumReferralShards(ctx, tx, queryReferralEarnings, referralId)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, queryWriteReferralTotal, total.String(), referralId); err != nil {
		return fmt.Errorf("failed to refresh referral total: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit referral earning: %w", err)
	}
	return nil
}

func (s *Service) ReferralEarningsExcluding(ctx context.Context, referralId string, date time.Time) (decimal.Decimal, error) {
	day := date.UTC().Format(dayFormat)
	return sumReferralShards(ctx, s.db, queryReferralEarningsExcluding, referralId, day)
}

// sumReferralShards adds the shards column in Go with decimal arithmetic.
// SQLite's SUM runs in float64 and rounds the stored amounts.
func sumReferralShards(ctx context.Context, q dbtx, query string, args ...any) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query referral earnings: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan referral earning: %w", err)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse referral shards %q: %w", raw, err)
		}
		sum = sum.Add(value)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating referral earning rows: %w", err)
	}
	return sum, nil
}

func (s *Service) queryReferrals(ctx context.Context, query string, args ...any) ([]models.Referral, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query referrals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var referrals []models.Referral
	for rows.Next() {
		referral, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, *referral)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral rows: %w", err)
	}
	return referrals, nil
}

func scanReferral(row rowScanner) (*models.Referral, error) {
	var (
		referral             models.Referral
		status               string
		activationDate       sql.NullTime
		balanceAtActivation  string
		totalShardsEarned    string
	)
	err := row.Scan(&referral.Id, &referral.ReferrerAddress, &referral.RefereeAddress,
		&referral.SeasonId, &status, &activationDate, &balanceAtActivation,
		&totalShardsEarned, &referral.Version, &referral.CreatedAt, &referral.UpdatedAt)
	if err != nil {
		return nil, err
	}
	referral.Status = models.ReferralStatus(status)
	if activationDate.Valid {
		t := activationDate.Time
		referral.ActivationDate = &t
	}
	if referral.BalanceAtActivation, err = decimal.NewFromString(balanceAtActivation); err != nil {
		return nil, fmt.Errorf("failed to parse balance at activation %q: %w", balanceAtActivation, err)
	}
	if referral.TotalShardsEarned, err = decimal.NewFromString(totalShardsEarned); err != nil {
		return nil, fmt.Errorf("failed to parse total shards earned %q: %w", totalShardsEarned, err)
	}
	return &referral, nil
}
