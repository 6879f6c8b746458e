package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"shard-rewards-go/internal/metrics"
	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/season"
	"shard-rewards-go/internal/store"
	"shard-rewards-go/internal/validation"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultFraudFlagLimit = 100

type errorResponse struct {
	Error string `json:"error"`
}

type seasonResponse struct {
	Id                int64                   `json:"id"`
	Name              string                  `json:"name"`
	Chain             models.Chain            `json:"chain"`
	StartDate         time.Time               `json:"start_date"`
	EndDate           *time.Time              `json:"end_date,omitempty"`
	Status            models.SeasonStatus     `json:"status"`
	MigrationStatus   *models.MigrationStatus `json:"migration_status,omitempty"`
	Migration         *models.MigrationConfig `json:"migration,omitempty"`
	TotalParticipants int64                   `json:"total_participants"`
	TotalShardsIssued decimal.Decimal         `json:"total_shards_issued"`
}

func newSeasonResponse(s *models.Season, now time.Time) seasonResponse {
	resp := seasonResponse{
		Id:                s.Id,
		Name:              s.Name,
		Chain:             s.Chain,
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		Status:            s.Status,
		Migration:         s.Migration,
		TotalParticipants: s.TotalParticipants,
		TotalShardsIssued: s.TotalShardsIssued,
	}
	if status, ok := season.DeriveMigrationStatus(s.Migration, now); ok {
		resp.MigrationStatus = &status
	}
	return resp
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.balances.CountParticipants(r.Context(), 0); err != nil {
		s.writeError(w, "health", http.StatusServiceUnavailable, fmt.Errorf("database unreachable: %w", err))
		return
	}
	s.writeJSON(w, "health", http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleListSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := s.registry.GetAllSeasons(r.Context())
	if err != nil {
		s.writeError(w, "seasons", statusFor(err), err)
		return
	}

	now := time.Now().UTC()
	resp := make([]seasonResponse, 0, len(seasons))
	for i := range seasons {
		resp = append(resp, newSeasonResponse(&seasons[i], now))
	}
	s.writeJSON(w, "seasons", http.StatusOK, resp)
}

func (s *Service) handleGetSeason(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		s.writeError(w, "season", http.StatusBadRequest, err)
		return
	}

	rec, err := s.registry.GetSeason(r.Context(), id)
	if err != nil {
		s.writeError(w, "season", statusFor(err), err)
		return
	}
	s.writeJSON(w, "season", http.StatusOK, newSeasonResponse(rec, time.Now().UTC()))
}

func (s *Service) handleListVaults(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		s.writeError(w, "vaults", http.StatusBadRequest, err)
		return
	}

	vaults, err := s.registry.GetVaultsBySeason(r.Context(), id)
	if err != nil {
		s.writeError(w, "vaults", statusFor(err), err)
		return
	}
	s.writeJSON(w, "vaults", http.StatusOK, vaults)
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		s.writeError(w, "leaderboard", http.StatusBadRequest, err)
		return
	}

	category := queryCategory(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := s.ranking.GetLeaderboard(r.Context(), id, category, limit, offset)
	if err != nil {
		s.writeError(w, "leaderboard", statusFor(err), err)
		return
	}
	s.writeJSON(w, "leaderboard", http.StatusOK, page)
}

func (s *Service) handleWalletRank(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		s.writeError(w, "rank", http.StatusBadRequest, err)
		return
	}

	rank, err := s.ranking.GetWalletRank(r.Context(), mux.Vars(r)["address"], id, queryCategory(r))
	if err != nil {
		s.writeError(w, "rank", statusFor(err), err)
		return
	}
	s.writeJSON(w, "rank", http.StatusOK, map[string]int64{"rank": rank})
}

func (s *Service) handleWalletPosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		s.writeError(w, "position", http.StatusBadRequest, err)
		return
	}

	position, err := s.ranking.GetUserPosition(r.Context(), mux.Vars(r)["address"], id, queryCategory(r))
	if err != nil {
		s.writeError(w, "position", statusFor(err), err)
		return
	}
	s.writeJSON(w, "position", http.StatusOK, position)
}

func (s *Service) handleReferralStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		s.writeError(w, "referral_stats", http.StatusBadRequest, err)
		return
	}

	stats, err := s.referrals.GetReferralStats(r.Context(), mux.Vars(r)["address"], id)
	if err != nil {
		s.writeError(w, "referral_stats", statusFor(err), err)
		return
	}
	s.writeJSON(w, "referral_stats", http.StatusOK, stats)
}

func (s *Service) handleFraudFlags(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		s.writeError(w, "fraud_flags", http.StatusBadRequest, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultFraudFlagLimit
	}

	flags, err := s.balances.GetFraudFlags(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, "fraud_flags", statusFor(err), err)
		return
	}
	s.writeJSON(w, "fraud_flags", http.StatusOK, flags)
}

type createReferralRequest struct {
	ReferrerAddress string `json:"referrer_address"`
	RefereeAddress  string `json:"referee_address"`
	SeasonId        int64  `json:"season_id"`
}

func (s *Service) handleCreateReferral(w http.ResponseWriter, r *http.Request) {
	var req createReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "create_referral", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	referral, err := s.referrals.CreateReferral(r.Context(), req.ReferrerAddress, req.RefereeAddress, req.SeasonId)
	if err != nil {
		s.writeError(w, "create_referral", statusFor(err), err)
		return
	}

	metrics.ReferralsCreated.Inc()
	s.writeJSON(w, "create_referral", http.StatusCreated, referral)
}

type validateRequest struct {
	Operation     models.Operation `json:"operation"`
	SeasonId      int64            `json:"season_id"`
	VaultAddress  string           `json:"vault_address"`
	WalletAddress string           `json:"wallet_address"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

func (s *Service) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "validate", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.validator.Validate(r.Context(), models.ValidationRequest{
		Operation:     req.Operation,
		SeasonId:      req.SeasonId,
		VaultAddress:  req.VaultAddress,
		WalletAddress: req.WalletAddress,
		Amount:        req.Amount,
	})
	if err != nil {
		s.writeError(w, "validate", statusFor(err), err)
		return
	}

	outcome := "valid"
	if !result.IsValid {
		outcome = "invalid"
	}
	metrics.ValidationRequests.WithLabelValues(string(req.Operation), outcome).Inc()
	s.writeJSON(w, "validate", http.StatusOK, result)
}

func pathId(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid season id")
	}
	return id, nil
}

func queryCategory(r *http.Request) models.ShardCategory {
	if c := r.URL.Query().Get("category"); c != "" {
		return models.ShardCategory(c)
	}
	return models.CategoryTotal
}

// statusFor maps store sentinels to HTTP codes. Unknown errors stay 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrSeasonNotFound),
		errors.Is(err, store.ErrVaultNotFound),
		errors.Is(err, store.ErrReferralNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicateEntry),
		errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, validation.ErrInternal):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (s *Service) writeJSON(w http.ResponseWriter, route string, code int, payload any) {
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("Failed to encode response", zap.String("route", route), zap.Error(err))
	}
}

func (s *Service) writeError(w http.ResponseWriter, route string, code int, err error) {
	if code == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.String("route", route), zap.Error(err))
	}
	s.writeJSON(w, route, code, errorResponse{Error: err.Error()})
}
