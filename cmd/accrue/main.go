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
	"time"

	"shard-rewards-go/internal/common"
	"shard-rewards-go/internal/config"
	"shard-rewards-go/internal/valuation"

	"go.uber.org/zap"
)

// accrue runs one day's shard accrual from a feed snapshot file. Safe to
// re-run: replayed days overwrite in place without double-counting.
func main() {
	snapshotFile := flag.String("snapshot", "", "Path to the feed snapshot JSON file (required)")
	seasonId := flag.Int64("season", 0, "Season id (default: the snapshot's season)")
	dateArg := flag.String("date", "", "UTC day to accrue as YYYY-MM-DD (default: yesterday)")
	wallet := flag.String("wallet", "", "Accrue a single wallet instead of the full set")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *snapshotFile == "" {
		zap.L().Fatal("--snapshot is required")
	}

	ctx := context.Background()
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	feed, err := valuation.LoadSnapshot(*snapshotFile, services.Pricer)
	if err != nil {
		zap.L().Fatal("Failed to load feed snapshot", zap.Error(err))
	}

	season := *seasonId
	if season == 0 {
		season = feed.SeasonId()
	}

	date := time.Now().UTC().AddDate(0, 0, -1)
	if *dateArg != "" {
		date, err = common.ParseDay(*dateArg)
		if err != nil {
			zap.L().Fatal("Invalid --date", zap.Error(err))
		}
	}

	engine := services.NewAccrualEngine(feed, feed, feed, cfg.Accrual)

	if *wallet != "" {
		result, err := engine.ComputeDailyShards(ctx, *wallet, season, date)
		if err != nil {
			zap.L().Fatal("Accrual failed", zap.Error(err))
		}
		fmt.Printf("%s on %s: staking=%s social=%s developer=%s referral=%s total=%s flagged=%v\n",
			result.WalletAddress, result.Date.Format("2006-01-02"),
			result.StakingShards, result.SocialShards, result.DeveloperShards,
			result.ReferralShards, result.TotalShards, result.Flagged)
		return
	}

	processed, flagged, err := engine.RunDaily(ctx, season, date, feed.Wallets())
	if err != nil {
		zap.L().Fatal("Accrual run failed", zap.Error(err))
	}
	fmt.Printf("Accrued %d wallet(s) for %s, %d flagged for review\n",
		processed, date.Format("2006-01-02"), flagged)
}
