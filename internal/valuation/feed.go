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

package valuation

import (
	"context"
	"time"

	"shard-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

// VaultValuationFeed reports a wallet's USD-valued vault positions for one day.
type VaultValuationFeed interface {
	Positions(ctx context.Context, wallet string, seasonId int64, date time.Time) ([]models.VaultPosition, error)
}

// SocialPointsFeed reports the social points a wallet earned on one day.
type SocialPointsFeed interface {
	Points(ctx context.Context, wallet string, seasonId int64, date time.Time) (decimal.Decimal, error)
}

// DeveloperFeed reports a wallet's developer contribution events for one day.
type DeveloperFeed interface {
	Contributions(ctx context.Context, wallet string, seasonId int64, date time.Time) ([]models.ContributionEvent, error)
}

// Pricer converts a token symbol to its USD unit price.
type Pricer interface {
	UsdPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
