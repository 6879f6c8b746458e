package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) GetSeason(ctx context.Context, id int64) (*models.Season, error) {
	row := s.db.QueryRowContext(ctx, queryGetSeason, id)
	season, err := scanSeason(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: season %d", store.ErrSeasonNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get season %d: %w", id, err)
	}
	if err := s.attachMigration(ctx, season); err != nil {
		return nil, err
	}
	return season, nil
}

func (s *Service) GetAllSeasons(ctx context.Context) ([]models.Season, error) {
	return s.querySeasons(ctx, queryGetAllSeasons)
}

func (s *Service) GetSeasonsByChain(ctx context.Context, chain models.Chain) ([]models.Season, error) {
	return s.querySeasons(ctx, queryGetSeasonsByChain, string(chain))
}

func (s *Service) GetActiveSeason(ctx context.Context, chain models.Chain) (*models.Season, error) {
	row := s.db.QueryRowContext(ctx, queryGetActiveSeason, string(chain))
	season, err := scanSeason(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no active season on chain %s", store.ErrSeasonNotFound, chain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active season for %s: %w", chain, err)
	}
	if err := s.attachMigration(ctx, season); err != nil {
		return nil, err
	}
	return season, nil
}

func (s *Service) InsertSeason(ctx context.Context, season *models.Season) (int64, error) {
	ratesJSON, err := json.Marshal(season.Config.VaultRates)
	if err != nil {
		return 0, fmt.Errorf("failed to encode vault rates: %w", err)
	}

	result, err := s.db.ExecContext(ctx, queryInsertSeason,
		season.Name, string(season.Chain), season.StartDate.UTC(), nullableTime(season.EndDate),
		string(season.Status), string(ratesJSON), season.Config.SocialConversionRate.String(),
		season.Config.DepositsEnabled, season.Config.WithdrawalsEnabled,
		season.Config.VaultsLocked, season.Config.RedeemPeriodDays)
	if err != nil {
		return 0, fmt.Errorf("failed to insert season: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read season id: %w", err)
	}

	if season.Migration != nil {
		if err := s.upsertMigrationConfig(ctx, id, season.Migration); err != nil {
			return 0, err
		}
	}

	zap.L().Info("Season created",
		zap.Int64("season_id", id),
		zap.String("name", season.Name),
		zap.String("chain", string(season.Chain)),
		zap.String("status", string(season.Status)))
	return id, nil
}

func (s *Service) UpdateSeason(ctx context.Context, season *models.Season) error {
	ratesJSON, err := json.Marshal(season.Config.VaultRates)
	if err != nil {
		return fmt.Errorf("failed to encode vault rates: %w", err)
	}

	result, err := s.db.ExecContext(ctx, queryUpdateSeason,
		season.Name, nullableTime(season.EndDate), string(ratesJSON),
		season.Config.SocialConversionRate.String(),
		season.Config.DepositsEnabled, season.Config.WithdrawalsEnabled,
		season.Config.VaultsLocked, season.Config.RedeemPeriodDays, season.Id)
	if err != nil {
		return fmt.Errorf("failed to update season %d: %w", season.Id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: season %d", store.ErrSeasonNotFound, season.Id)
	}

	if season.Migration != nil {
		if err := s.upsertMigrationConfig(ctx, season.Id, season.Migration); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) UpdateSeasonStatus(ctx context.Context, id int64, from, to models.SeasonStatus) error {
	result, err := s.db.ExecContext(ctx, queryUpdateSeasonStatus, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update season %d status: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either the season is gone or someone else moved it first.
		var status string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM seasons WHERE id = ?`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: season %d", store.ErrSeasonNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to check season %d status: %w", id, err)
		}
		return fmt.Errorf("%w: season %d is %s, expected %s", store.ErrConcurrentModification, id, status, from)
	}

	zap.L().Info("Season status updated",
		zap.Int64("season_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// RefreshSeasonTotals recomputes total_participants and total_shards_issued
// from the balance table. Called after accrual writes.
func (s *Service) RefreshSeasonTotals(ctx context.Context, seasonId int64) error {
	return refreshSeasonTotals(ctx, s.db, seasonId)
}

func (s *Service) upsertMigrationConfig(ctx context.Context, seasonId int64, cfg *models.MigrationConfig) error {
	vaultsJSON, err := json.Marshal(cfg.SupportedVaults)
	if err != nil {
		return fmt.Errorf("failed to encode supported vaults: %w", err)
	}
	_, err = s.db.ExecContext(ctx, queryUpsertMigrationConfig,
		seasonId, string(cfg.FromChain), string(cfg.ToChain),
		cfg.StartTime.UTC(), cfg.EndTime.UTC(), cfg.Deadline.UTC(),
		cfg.UserActionRequired, string(vaultsJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert migration config for season %d: %w", seasonId, err)
	}
	return nil
}

func (s *Service) attachMigration(ctx context.Context, season *models.Season) error {
	var (
		seasonId       int64
		fromChain      string
		toChain        string
		start, end     time.Time
		deadline       time.Time
		actionRequired bool
		vaultsJSON     string
	)
	err := s.db.QueryRowContext(ctx, queryGetMigrationConfig, season.Id).
		Scan(&seasonId, &fromChain, &toChain, &start, &end, &deadline, &actionRequired, &vaultsJSON)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration config for season %d: %w", season.Id, err)
	}

	var vaults []string
	if err := json.Unmarshal([]byte(vaultsJSON), &vaults); err != nil {
		return fmt.Errorf("failed to decode supported vaults for season %d: %w", season.Id, err)
	}

	season.Migration = &models.MigrationConfig{
		FromChain:          models.Chain(fromChain),
		ToChain:            models.Chain(toChain),
		StartTime:          start,
		EndTime:            end,
		Deadline:           deadline,
		UserActionRequired: actionRequired,
		SupportedVaults:    vaults,
	}
	return nil
}

func (s *Service) querySeasons(ctx context.Context, query string, args ...any) ([]models.Season, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query seasons: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var seasons []models.Season
	for rows.Next() {
		season, err := scanSeason(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan season: %w", err)
		}
		seasons = append(seasons, *season)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating season rows: %w", err)
	}

	for i := range seasons {
		if err := s.attachMigration(ctx, &seasons[i]); err != nil {
			return nil, err
		}
	}
	return seasons, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeason(row rowScanner) (*models.Season, error) {
	var (
		season         models.Season
		chain, status  string
		endDate        sql.NullTime
		ratesJSON      string
		conversionRate string
		totalIssued    string
	)
	err := row.Scan(&season.Id, &season.Name, &chain, &season.StartDate, &endDate, &status,
		&ratesJSON, &conversionRate, &season.Config.DepositsEnabled, &season.Config.WithdrawalsEnabled,
		&season.Config.VaultsLocked, &season.Config.RedeemPeriodDays,
		&season.TotalParticipants, &totalIssued, &season.CreatedAt, &season.UpdatedAt)
	if err != nil {
		return nil, err
	}

	season.Chain = models.Chain(chain)
	season.Status = models.SeasonStatus(status)
	if endDate.Valid {
		t := endDate.Time
		season.EndDate = &t
	}
	if err := json.Unmarshal([]byte(ratesJSON), &season.Config.VaultRates); err != nil {
		return nil, fmt.Errorf("failed to decode vault rates: %w", err)
	}
	season.Config.SocialConversionRate, err = decimal.NewFromString(conversionRate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse social conversion rate %q: %w", conversionRate, err)
	}
	season.TotalShardsIssued, err = decimal.NewFromString(totalIssued)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total shards issued %q: %w", totalIssued, err)
	}
	return &season, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
