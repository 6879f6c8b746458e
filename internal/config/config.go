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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"shard-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("API_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	accrual, err := loadAccrualConfig()
	if err != nil {
		return nil, err
	}

	referralCfg, err := loadReferralConfig()
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "rewards.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		API: models.APIConfig{
			ListenAddr:      getEnvString("API_LISTEN_ADDR", ":8080"),
			ShutdownTimeout: shutdownTimeout,
		},
		Scheduler: models.SchedulerConfig{
			AccrualCronSpec:       getEnvString("ACCRUAL_CRON", "30 0 * * *"),
			SeasonSweepCronSpec:   getEnvString("SEASON_SWEEP_CRON", "*/5 * * * *"),
			ReferralSweepCronSpec: getEnvString("REFERRAL_SWEEP_CRON", "0 * * * *"),
			ProcessingWindowStart: getEnvInt("PROCESSING_WINDOW_START", 0),
			ProcessingWindowEnd:   getEnvInt("PROCESSING_WINDOW_END", 6),
		},
		Accrual:  accrual,
		Referral: referralCfg,
		System: models.SystemConfig{
			MaintenanceMode: getEnvBool("MAINTENANCE_MODE", false),
			EmergencyMode:   getEnvBool("EMERGENCY_MODE", false),
		},
		Formance: models.FormanceConfig{
			Enabled:      getEnvBool("FORMANCE_ENABLED", false),
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "shard-rewards"),
		},
		Prime: models.PrimeConfig{
			Enabled:     getEnvBool("PRIME_ENABLED", false),
			PortfolioId: getEnvString("PRIME_PORTFOLIO_ID", ""),
		},
	}, nil
}

func loadAccrualConfig() (models.AccrualConfig, error) {
	totalMultiple, err := getEnvDecimal("FRAUD_TOTAL_VARIANCE_MULTIPLE", decimal.NewFromInt(10))
	if err != nil {
		return models.AccrualConfig{}, err
	}
	categoryMultiple, err := getEnvDecimal("FRAUD_CATEGORY_VARIANCE_MULTIPLE", decimal.NewFromInt(5))
	if err != nil {
		return models.AccrualConfig{}, err
	}

	cfg := models.AccrualConfig{
		RewardsFile:              getEnvString("REWARDS_FILE", ""),
		DeveloperRewards:         defaultDeveloperRewards(),
		TotalVarianceMultiple:    totalMultiple,
		CategoryVarianceMultiple: categoryMultiple,
		TrailingDays:             getEnvInt("FRAUD_TRAILING_DAYS", 7),
	}

	if cfg.RewardsFile != "" {
		rewards, err := LoadRewardsFile(cfg.RewardsFile)
		if err != nil {
			return models.AccrualConfig{}, err
		}
		cfg.DeveloperRewards = rewards
	}
	return cfg, nil
}

func loadReferralConfig() (models.ReferralConfig, error) {
	threshold, err := getEnvDecimal("REFERRAL_ACTIVATION_THRESHOLD", decimal.NewFromInt(100))
	if err != nil {
		return models.ReferralConfig{}, err
	}
	bonusRate, err := getEnvDecimal("REFERRER_BONUS_RATE", decimal.NewFromFloat(0.10))
	if err != nil {
		return models.ReferralConfig{}, err
	}
	multiplier, err := getEnvDecimal("REFEREE_MULTIPLIER", decimal.NewFromFloat(1.05))
	if err != nil {
		return models.ReferralConfig{}, err
	}
	maxBonus, err := getEnvDecimal("MAX_REFERRER_BONUS", decimal.NewFromInt(1000))
	if err != nil {
		return models.ReferralConfig{}, err
	}

	return models.ReferralConfig{
		MaxReferralsPerWallet: getEnvInt("MAX_REFERRALS_PER_WALLET", 10),
		ActivationThreshold:   threshold,
		ReferrerBonusRate:     bonusRate,
		RefereeMultiplier:     multiplier,
		MaxReferrerBonus:      maxBonus,
		BonusDurationDays:     getEnvInt("REFERRAL_BONUS_DURATION_DAYS", 30),
	}, nil
}

func defaultDeveloperRewards() map[models.ContributionKind]decimal.Decimal {
	return map[models.ContributionKind]decimal.Decimal{
		models.ContributionDeployContract: decimal.NewFromInt(500),
		models.ContributionDeployDapp:     decimal.NewFromInt(250),
		models.ContributionCode:           decimal.NewFromInt(100),
		models.ContributionBugFix:         decimal.NewFromInt(150),
		models.ContributionBounty:         decimal.NewFromInt(300),
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
