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

package api

import (
	"context"
	"errors"
	"net/http"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/ranking"
	"shard-rewards-go/internal/referral"
	"shard-rewards-go/internal/season"
	"shard-rewards-go/internal/store"
	"shard-rewards-go/internal/validation"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service is the HTTP read layer plus the two write paths (referral creation
// and operation validation).
type Service struct {
	registry  *season.Registry
	validator *validation.Validator
	ranking   *ranking.Engine
	referrals *referral.Ledger
	balances  store.BalanceStore
	cfg       models.APIConfig
	server    *http.Server
}

func NewService(registry *season.Registry, validator *validation.Validator,
	rankingEngine *ranking.Engine, referrals *referral.Ledger,
	balances store.BalanceStore, cfg models.APIConfig) *Service {
	s := &Service{
		registry:  registry,
		validator: validator,
		ranking:   rankingEngine,
		referrals: referrals,
		balances:  balances,
		cfg:       cfg,
	}

	router := mux.NewRouter()
	router.Path("/health").Methods(http.MethodGet).HandlerFunc(s.handleHealth)
	router.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.Handler())

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Path("/seasons").Methods(http.MethodGet).HandlerFunc(s.handleListSeasons)
	v1.Path("/seasons/{id:[0-9]+}").Methods(http.MethodGet).HandlerFunc(s.handleGetSeason)
	v1.Path("/seasons/{id:[0-9]+}/vaults").Methods(http.MethodGet).HandlerFunc(s.handleListVaults)
	v1.Path("/seasons/{id:[0-9]+}/leaderboard").Methods(http.MethodGet).HandlerFunc(s.handleLeaderboard)
	v1.Path("/seasons/{id:[0-9]+}/wallets/{address}/rank").Methods(http.MethodGet).HandlerFunc(s.handleWalletRank)
	v1.Path("/seasons/{id:[0-9]+}/wallets/{address}/position").Methods(http.MethodGet).HandlerFunc(s.handleWalletPosition)
	v1.Path("/seasons/{id:[0-9]+}/wallets/{address}/referrals").Methods(http.MethodGet).HandlerFunc(s.handleReferralStats)
	v1.Path("/seasons/{id:[0-9]+}/fraud-flags").Methods(http.MethodGet).HandlerFunc(s.handleFraudFlags)
	v1.Path("/referrals").Methods(http.MethodPost).HandlerFunc(s.handleCreateReferral)
	v1.Path("/validate").Methods(http.MethodPost).HandlerFunc(s.handleValidate)

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)(handler)

	s.server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}
	return s
}

// Start blocks serving HTTP until Stop is called or the listener fails.
func (s *Service) Start() error {
	zap.L().Info("API server listening", zap.String("addr", s.cfg.ListenAddr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests within the configured shutdown timeout.
func (s *Service) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
