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

	"shard-rewards-go/internal/common"
	"shard-rewards-go/internal/config"
	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/ranking"

	"go.uber.org/zap"
)

func main() {
	seasonId := flag.Int64("season", 1, "Season id")
	category := flag.String("category", "total", "Category: total|staking|social|developer|referral")
	limit := flag.Int("limit", 25, "Page size")
	offset := flag.Int("offset", 0, "Page offset")
	wallet := flag.String("wallet", "", "Show one wallet's position instead of a page")
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

	engine := ranking.NewEngine(dbService)
	cat := models.ShardCategory(*category)

	if *wallet != "" {
		position, err := engine.GetUserPosition(ctx, *wallet, *seasonId, cat)
		if err != nil {
			zap.L().Fatal("Failed to get position", zap.Error(err))
		}
		if position.Rank == 0 {
			fmt.Printf("%s has no %s shards in season %d\n", *wallet, cat, *seasonId)
			return
		}
		line := fmt.Sprintf("%s: rank %d of %d, %s shards",
			position.WalletAddress, position.Rank, position.TotalParticipants, position.Shards)
		if position.Percentile != nil {
			line += fmt.Sprintf(" (top %s%%)", position.Percentile)
		}
		fmt.Println(line)
		return
	}

	page, err := engine.GetLeaderboard(ctx, *seasonId, cat, *limit, *offset)
	if err != nil {
		zap.L().Fatal("Failed to get leaderboard", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Season %d leaderboard (%s)", *seasonId, cat), common.DefaultWidth)
	for i, entry := range page.Entries {
		isLast := i == len(page.Entries)-1
		fmt.Printf("%s#%-5d %-44s %18s\n",
			common.BoxPrefix(isLast), entry.Rank, entry.WalletAddress, entry.Shards.StringFixed(4))
	}
	footer := fmt.Sprintf("%d participant(s)", page.TotalParticipants)
	if page.HasMore {
		footer += fmt.Sprintf(", next offset %d", *offset+*limit)
	}
	common.PrintFooter(footer, common.DefaultWidth)
}
