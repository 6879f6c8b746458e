package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) GetVault(ctx context.Context, address string, seasonId int64) (*models.VaultSeasonConfig, error) {
	row := s.db.QueryRowContext(ctx, queryGetVault, address, seasonId)
	vault, err := scanVault(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: vault %s in season %d", store.ErrVaultNotFound, address, seasonId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault %s: %w", address, err)
	}
	return vault, nil
}

func (s *Service) GetVaultsBySeason(ctx context.Context, seasonId int64) ([]models.VaultSeasonConfig, error) {
	rows, err := s.db.QueryContext(ctx, queryGetVaultsBySeason, seasonId)
	if err != nil {
		return nil, fmt.Errorf("failed to query vaults for season %d: %w", seasonId, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var vaults []models.VaultSeasonConfig
	for rows.Next() {
		vault, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault: %w", err)
		}
		vaults = append(vaults, *vault)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault rows: %w", err)
	}
	return vaults, nil
}

func (s *Service) BindVault(ctx context.Context, vault *models.VaultSeasonConfig) error {
	_, err := s.db.ExecContext(ctx, queryInsertVault,
		strings.ToLower(vault.Address), vault.SeasonId, string(vault.Chain), string(vault.Status),
		vault.UnderlyingAsset, vault.WithdrawalsEnabled, vault.LockedUntilMainnet,
		vault.RedeemDelayDays, vault.EarlyWithdrawalPenalty.String())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: vault %s already bound to season %d", store.ErrDuplicateEntry, vault.Address, vault.SeasonId)
		}
		return fmt.Errorf("failed to bind vault %s to season %d: %w", vault.Address, vault.SeasonId, err)
	}

	zap.L().Info("Vault bound to season",
		zap.String("vault", vault.Address),
		zap.Int64("season_id", vault.SeasonId),
		zap.String("status", string(vault.Status)))
	return nil
}

func scanVault(row rowScanner) (*models.VaultSeasonConfig, error) {
	var (
		vault         models.VaultSeasonConfig
		chain, status string
		penalty       string
	)
	err := row.Scan(&vault.Address, &vault.SeasonId, &chain, &status, &vault.UnderlyingAsset,
		&vault.WithdrawalsEnabled, &vault.LockedUntilMainnet, &vault.RedeemDelayDays,
		&penalty, &vault.CreatedAt)
	if err != nil {
		return nil, err
	}
	vault.Chain = models.Chain(chain)
	vault.Status = models.VaultStatus(status)
	vault.EarlyWithdrawalPenalty, err = decimal.NewFromString(penalty)
	if err != nil {
		return nil, fmt.Errorf("failed to parse early withdrawal penalty %q: %w", penalty, err)
	}
	return &vault, nil
}
