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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.RewardsStore.
var _ store.RewardsStore = (*Service)(nil)

// Service is the SQLite implementation of the rewards stores.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Seasons (reward epochs, one active per chain)
	CREATE TABLE IF NOT EXISTS seasons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		chain TEXT NOT NULL,
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP,
		status TEXT NOT NULL,
		vault_rates TEXT NOT NULL DEFAULT '{}',
		social_conversion_rate TEXT NOT NULL DEFAULT '100',
		deposits_enabled BOOLEAN NOT NULL DEFAULT 1,
		withdrawals_enabled BOOLEAN NOT NULL DEFAULT 1,
		vaults_locked BOOLEAN NOT NULL DEFAULT 0,
		redeem_period_days INTEGER NOT NULL DEFAULT 0,
		total_participants INTEGER NOT NULL DEFAULT 0,
		total_shards_issued TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_seasons_chain_status ON seasons(chain, status);

	-- Migration windows (at most one per season; status is always derived, never stored)
	CREATE TABLE IF NOT EXISTS migration_configs (
		season_id INTEGER PRIMARY KEY REFERENCES seasons(id),
		from_chain TEXT NOT NULL,
		to_chain TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		deadline TIMESTAMP NOT NULL,
		user_action_required BOOLEAN NOT NULL DEFAULT 0,
		supported_vaults TEXT NOT NULL DEFAULT '[]'
	);

	-- Vault-season bindings
	CREATE TABLE IF NOT EXISTS vault_configs (
		address TEXT NOT NULL,
		season_id INTEGER NOT NULL REFERENCES seasons(id),
		chain TEXT NOT NULL,
		status TEXT NOT NULL,
		underlying_asset TEXT NOT NULL,
		withdrawals_enabled BOOLEAN NOT NULL DEFAULT 1,
		locked_until_mainnet BOOLEAN NOT NULL DEFAULT 0,
		redeem_delay_days INTEGER NOT NULL DEFAULT 0,
		early_withdrawal_penalty TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (address, season_id)
	);

	CREATE INDEX IF NOT EXISTS idx_vault_configs_season ON vault_configs(season_id);

	-- Shard balances (current state - hot data)
	CREATE TABLE IF NOT EXISTS shard_balances (
		wallet_address TEXT NOT NULL,
		season_id INTEGER NOT NULL,
		staking_shards TEXT NOT NULL DEFAULT '0',
		social_shards TEXT NOT NULL DEFAULT '0',
		developer_shards TEXT NOT NULL DEFAULT '0',
		referral_shards TEXT NOT NULL DEFAULT '0',
		total_shards TEXT NOT NULL DEFAULT '0',
		last_calculated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (wallet_address, season_id)
	);

	CREATE INDEX IF NOT EXISTS idx_shard_balances_season ON shard_balances(season_id);

	-- Earning history (audit trail - cold data, append-only)
	CREATE TABLE IF NOT EXISTS earning_history (
		id TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL,
		season_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		staking_shards TEXT NOT NULL,
		social_shards TEXT NOT NULL,
		developer_shards TEXT NOT NULL,
		referral_shards TEXT NOT NULL,
		daily_total TEXT NOT NULL,
		vault_breakdown TEXT NOT NULL DEFAULT '[]',
		calculation_hash TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (wallet_address, season_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_earning_history_wallet ON earning_history(wallet_address, season_id, date);
	CREATE INDEX IF NOT EXISTS idx_earning_history_hash ON earning_history(calculation_hash);

	-- Fraud review flags (surfaced, never auto-applied)
	CREATE TABLE IF NOT EXISTS fraud_flags (
		id TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL,
		season_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_fraud_flags_season ON fraud_flags(season_id, created_at);

	-- Referrals (one per referee per season)
	CREATE TABLE IF NOT EXISTS referrals (
		id TEXT PRIMARY KEY,
		referrer_address TEXT NOT NULL,
		referee_address TEXT NOT NULL,
		season_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		activation_date TIMESTAMP,
		balance_at_activation TEXT NOT NULL DEFAULT '0',
		total_shards_earned TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (referee_address, season_id)
	);

	CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_address, season_id);
	CREATE INDEX IF NOT EXISTS idx_referrals_season_status ON referrals(season_id, status);

	-- Per-day referral bonus earnings (replay-safe cap accounting)
	CREATE TABLE IF NOT EXISTS referral_earnings (
		referral_id TEXT NOT NULL REFERENCES referrals(id),
		date TEXT NOT NULL,
		shards TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (referral_id, date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
