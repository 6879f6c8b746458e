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
	"os"
	"os/signal"
	"syscall"

	"shard-rewards-go/internal/api"
	"shard-rewards-go/internal/common"
	"shard-rewards-go/internal/config"
	"shard-rewards-go/internal/scheduler"
	"shard-rewards-go/internal/valuation"

	"go.uber.org/zap"
)

func main() {
	snapshotFile := flag.String("snapshot", "", "Path to a feed snapshot JSON file for scheduled accruals")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting shard rewards daemon")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *snapshotFile == "" {
		zap.L().Fatal("A --snapshot feed file is required for scheduled accruals")
	}
	feed, err := valuation.LoadSnapshot(*snapshotFile, services.Pricer)
	if err != nil {
		zap.L().Fatal("Failed to load feed snapshot", zap.Error(err))
	}

	engine := services.NewAccrualEngine(feed, feed, feed, cfg.Accrual)

	jobs := scheduler.New(services.Registry, engine, services.Referrals, cfg.Scheduler, common.SupportedChains)
	if err := jobs.Start(); err != nil {
		zap.L().Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer jobs.Stop()

	apiService := api.NewService(services.Registry, services.Validator,
		services.Ranking, services.Referrals, services.DbService, cfg.API)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiService.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zap.L().Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			zap.L().Error("API server failed", zap.Error(err))
		}
	}

	if err := apiService.Stop(ctx); err != nil {
		zap.L().Warn("API shutdown incomplete", zap.Error(err))
	}
	zap.L().Info("Daemon stopped")
}
