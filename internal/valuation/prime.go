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
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coinbase-samples/prime-sdk-go/balances"
	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// priceCacheTTL bounds how stale a cached unit price may be. Accrual runs once
// a day, so a short TTL only matters for long batch runs.
const priceCacheTTL = 15 * time.Minute

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// PrimePricer derives USD unit prices from Prime portfolio balances: the
// fiat value of a holding divided by its token amount.
type PrimePricer struct {
	client        client.RestClient
	portfoliosSvc portfolios.PortfoliosService
	balancesSvc   balances.BalancesService
	portfolioId   string

	mu    sync.Mutex
	cache map[string]cachedPrice
	now   func() time.Time
}

func NewPrimePricer(ctx context.Context, creds *credentials.Credentials, portfolioId string) (*PrimePricer, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	restClient := client.NewRestClient(creds, httpClient)

	pricer := &PrimePricer{
		client:        restClient,
		portfoliosSvc: portfolios.NewPortfoliosService(restClient),
		balancesSvc:   balances.NewBalancesService(restClient),
		portfolioId:   portfolioId,
		cache:         make(map[string]cachedPrice),
		now:           time.Now,
	}

	if pricer.portfolioId == "" {
		id, err := pricer.findDefaultPortfolio(ctx)
		if err != nil {
			return nil, err
		}
		pricer.portfolioId = id
	}

	zap.L().Info("Prime pricer initialized", zap.String("portfolio_id", pricer.portfolioId))
	return pricer, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			DualStack: true,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

func (p *PrimePricer) findDefaultPortfolio(ctx context.Context) (string, error) {
	response, err := p.portfoliosSvc.ListPortfolios(ctx, &portfolios.ListPortfoliosRequest{})
	if err != nil {
		return "", fmt.Errorf("unable to list portfolios: %w", err)
	}

	for _, portfolio := range response.Portfolios {
		if portfolio.Name == "Default Portfolio" {
			return portfolio.Id, nil
		}
	}
	return "", fmt.Errorf("default portfolio not found")
}

// UsdPrice returns the USD unit price for a symbol, or an error when the
// portfolio holds none of it.
func (p *PrimePricer) UsdPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)

	p.mu.Lock()
	cached, ok := p.cache[symbol]
	p.mu.Unlock()
	if ok && p.now().Sub(cached.fetchedAt) < priceCacheTTL {
		return cached.price, nil
	}

	request := &balances.ListPortfolioBalancesRequest{
		PortfolioId: p.portfolioId,
		Symbols:     []string{symbol},
	}
	response, err := p.balancesSvc.ListPortfolioBalances(ctx, request)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to list portfolio balances for %s: %w", symbol, err)
	}

	for _, balance := range response.Balances {
		if !strings.EqualFold(balance.Symbol, symbol) {
			continue
		}
		amount, err := decimal.NewFromString(balance.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unable to parse balance amount %q for %s: %w", balance.Amount, symbol, err)
		}
		if amount.IsZero() {
			break
		}
		fiat, err := decimal.NewFromString(balance.FiatAmount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unable to parse fiat amount %q for %s: %w", balance.FiatAmount, symbol, err)
		}

		price := fiat.Div(amount)
		p.mu.Lock()
		p.cache[symbol] = cachedPrice{price: price, fetchedAt: p.now()}
		p.mu.Unlock()

		zap.L().Debug("Fetched unit price from Prime",
			zap.String("symbol", symbol),
			zap.String("price", price.String()))
		return price, nil
	}

	return decimal.Zero, fmt.Errorf("no priced holding for symbol %s in portfolio %s", symbol, p.portfolioId)
}
