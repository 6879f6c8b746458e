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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"shard-rewards-go/internal/common"
	"shard-rewards-go/internal/config"
	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/season"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type vaultSpec struct {
	Address                string `yaml:"address"`
	Status                 string `yaml:"status"`
	UnderlyingAsset        string `yaml:"underlying_asset"`
	WithdrawalsEnabled     bool   `yaml:"withdrawals_enabled"`
	LockedUntilMainnet     bool   `yaml:"locked_until_mainnet"`
	RedeemDelayDays        int    `yaml:"redeem_delay_days"`
	EarlyWithdrawalPenalty string `yaml:"early_withdrawal_penalty"`
}

type migrationSpec struct {
	FromChain          string    `yaml:"from_chain"`
	ToChain            string    `yaml:"to_chain"`
	StartTime          time.Time `yaml:"start_time"`
	EndTime            time.Time `yaml:"end_time"`
	Deadline           time.Time `yaml:"deadline"`
	UserActionRequired bool      `yaml:"user_action_required"`
	SupportedVaults    []string  `yaml:"supported_vaults"`
}

type seasonFile struct {
	Name                 string            `yaml:"name"`
	Chain                string            `yaml:"chain"`
	StartDate            time.Time         `yaml:"start_date"`
	EndDate              *time.Time        `yaml:"end_date"`
	VaultRates           map[string]string `yaml:"vault_rates"`
	SocialConversionRate string            `yaml:"social_conversion_rate"`
	DepositsEnabled      bool              `yaml:"deposits_enabled"`
	WithdrawalsEnabled   bool              `yaml:"withdrawals_enabled"`
	VaultsLocked         bool              `yaml:"vaults_locked"`
	RedeemPeriodDays     int               `yaml:"redeem_period_days"`
	Migration            *migrationSpec    `yaml:"migration"`
	Vaults               []vaultSpec       `yaml:"vaults"`
}

func main() {
	list := flag.Bool("list", false, "List all seasons")
	create := flag.String("create", "", "Create a season from a YAML spec file")
	transition := flag.Int64("transition", 0, "Season id to transition")
	target := flag.String("to", "", "Target status for -transition (active|completed|cancelled)")
	sweep := flag.Bool("sweep", false, "Apply date-driven status transitions once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	registry := season.NewRegistry(dbService)

	switch {
	case *list:
		listSeasons(ctx, registry)
	case *create != "":
		createSeason(ctx, registry, *create)
	case *transition != 0:
		if *target == "" {
			zap.L().Fatal("-transition requires -to")
		}
		if err := registry.TransitionStatus(ctx, *transition, models.SeasonStatus(*target)); err != nil {
			zap.L().Fatal("Transition failed", zap.Error(err))
		}
		fmt.Printf("Season %d transitioned to %s\n", *transition, *target)
	case *sweep:
		count, err := registry.CheckAndUpdateStatuses(ctx, time.Now().UTC())
		if err != nil {
			zap.L().Fatal("Sweep failed", zap.Error(err))
		}
		fmt.Printf("Applied %d status transition(s)\n", count)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func listSeasons(ctx context.Context, registry *season.Registry) {
	seasons, err := registry.GetAllSeasons(ctx)
	if err != nil {
		zap.L().Fatal("Failed to list seasons", zap.Error(err))
	}

	common.PrintHeader("Seasons", common.DefaultWidth)
	now := time.Now().UTC()
	for i, s := range seasons {
		isLast := i == len(seasons)-1
		end := "open-ended"
		if s.EndDate != nil {
			end = s.EndDate.Format("2006-01-02")
		}
		line := fmt.Sprintf("%s#%d %-20s chain=%-9s status=%-9s %s -> %s participants=%d shards=%s",
			common.BoxPrefix(isLast), s.Id, s.Name, s.Chain, s.Status,
			s.StartDate.Format("2006-01-02"), end, s.TotalParticipants, s.TotalShardsIssued)
		if status, ok := season.DeriveMigrationStatus(s.Migration, now); ok {
			line += fmt.Sprintf(" migration=%s", status)
		}
		fmt.Println(line)
	}
	common.PrintFooter(fmt.Sprintf("%d season(s)", len(seasons)), common.DefaultWidth)
}

func createSeason(ctx context.Context, registry *season.Registry, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		zap.L().Fatal("Failed to read season spec", zap.Error(err))
	}
	var file seasonFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		zap.L().Fatal("Failed to parse season spec", zap.Error(err))
	}

	spec, err := toSeasonSpec(&file)
	if err != nil {
		zap.L().Fatal("Invalid season spec", zap.Error(err))
	}

	created, err := registry.CreateSeason(ctx, *spec)
	if err != nil {
		zap.L().Fatal("Failed to create season", zap.Error(err))
	}
	fmt.Printf("Created season %d (%s) on %s, status %s\n",
		created.Id, created.Name, created.Chain, created.Status)

	for _, v := range file.Vaults {
		vault, err := toVaultConfig(&v, created)
		if err != nil {
			zap.L().Fatal("Invalid vault spec", zap.String("vault", v.Address), zap.Error(err))
		}
		if err := registry.BindVault(ctx, vault); err != nil {
			zap.L().Fatal("Failed to bind vault", zap.String("vault", v.Address), zap.Error(err))
		}
		fmt.Printf("Bound vault %s (%s)\n", vault.Address, vault.Status)
	}
}

func toSeasonSpec(file *seasonFile) (*models.SeasonSpec, error) {
	rates := make(map[string]decimal.Decimal, len(file.VaultRates))
	for symbol, raw := range file.VaultRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid vault rate for %s: %w", symbol, err)
		}
		rates[symbol] = rate
	}

	conversion := decimal.NewFromInt(100)
	if file.SocialConversionRate != "" {
		var err error
		conversion, err = decimal.NewFromString(file.SocialConversionRate)
		if err != nil {
			return nil, fmt.Errorf("invalid social conversion rate: %w", err)
		}
	}

	spec := &models.SeasonSpec{
		Name:      file.Name,
		Chain:     models.Chain(file.Chain),
		StartDate: file.StartDate,
		EndDate:   file.EndDate,
		Config: models.SeasonConfig{
			VaultRates:           rates,
			SocialConversionRate: conversion,
			DepositsEnabled:      file.DepositsEnabled,
			WithdrawalsEnabled:   file.WithdrawalsEnabled,
			VaultsLocked:         file.VaultsLocked,
			RedeemPeriodDays:     file.RedeemPeriodDays,
		},
	}
	if file.Migration != nil {
		spec.Migration = &models.MigrationConfig{
			FromChain:          models.Chain(file.Migration.FromChain),
			ToChain:            models.Chain(file.Migration.ToChain),
			StartTime:          file.Migration.StartTime,
			EndTime:            file.Migration.EndTime,
			Deadline:           file.Migration.Deadline,
			UserActionRequired: file.Migration.UserActionRequired,
			SupportedVaults:    file.Migration.SupportedVaults,
		}
	}
	return spec, nil
}

func toVaultConfig(v *vaultSpec, s *models.Season) (*models.VaultSeasonConfig, error) {
	penalty := decimal.Zero
	if v.EarlyWithdrawalPenalty != "" {
		var err error
		penalty, err = decimal.NewFromString(v.EarlyWithdrawalPenalty)
		if err != nil {
			return nil, fmt.Errorf("invalid early withdrawal penalty: %w", err)
		}
	}

	status := models.VaultStatus(v.Status)
	if v.Status == "" {
		status = models.VaultActive
	}

	return &models.VaultSeasonConfig{
		Address:                v.Address,
		Chain:                  s.Chain,
		SeasonId:               s.Id,
		Status:                 status,
		UnderlyingAsset:        v.UnderlyingAsset,
		WithdrawalsEnabled:     v.WithdrawalsEnabled,
		LockedUntilMainnet:     v.LockedUntilMainnet,
		RedeemDelayDays:        v.RedeemDelayDays,
		EarlyWithdrawalPenalty: penalty,
	}, nil
}
