package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestReferral(referrer, referee string, seasonId int64) *models.Referral {
	return &models.Referral{
		Id:                  uuid.New().String(),
		ReferrerAddress:     referrer,
		RefereeAddress:      referee,
		SeasonId:            seasonId,
		Status:              models.ReferralPending,
		BalanceAtActivation: decimal.Zero,
		TotalShardsEarned:   decimal.Zero,
		Version:             1,
	}
}

func TestInsertReferral_OnePerRefereePerSeason(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first := newTestReferral("0xref", "0xnew", 1)
	if err := service.InsertReferral(ctx, first); err != nil {
		t.Fatalf("InsertReferral failed: %v", err)
	}

	second := newTestReferral("0xother", "0xnew", 1)
	err := service.InsertReferral(ctx, second)
	if !errors.Is(err, store.ErrDuplicateEntry) {
		t.Fatalf("Expected ErrDuplicateEntry, got %v", err)
	}

	// Same referee in another season is fine.
	third := newTestReferral("0xother", "0xnew", 2)
	if err := service.InsertReferral(ctx, third); err != nil {
		t.Fatalf("InsertReferral in another season failed: %v", err)
	}
}

func TestGetReferralByReferee_NilWhenAbsent(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	referral, err := service.GetReferralByReferee(context.Background(), "0xnobody", 1)
	if err != nil {
		t.Fatalf("GetReferralByReferee failed: %v", err)
	}
	if referral != nil {
		t.Errorf("Expected nil, got %+v", referral)
	}
}

func TestUpdateReferral_VersionGuard(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	referral := newTestReferral("0xref", "0xnew", 1)
	if err := service.InsertReferral(ctx, referral); err != nil {
		t.Fatalf("InsertReferral failed: %v", err)
	}

	activatedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	referral.Status = models.ReferralActive
	referral.ActivationDate = &activatedAt
	referral.BalanceAtActivation = decimal.NewFromInt(120)

	if err := service.UpdateReferral(ctx, referral); err != nil {
		t.Fatalf("UpdateReferral failed: %v", err)
	}
	if referral.Version != 2 {
		t.Errorf("Expected version bump to 2, got %d", referral.Version)
	}

	// A stale copy loses the race.
	stale := newTestReferral("0xref", "0xnew", 1)
	stale.Id = referral.Id
	stale.Version = 1
	stale.Status = models.ReferralExpired
	err := service.UpdateReferral(ctx, stale)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	got, err := service.GetReferral(ctx, referral.Id)
	if err != nil {
		t.Fatalf("GetReferral failed: %v", err)
	}
	if got.Status != models.ReferralActive {
		t.Errorf("Stale update must not apply, status is %s", got.Status)
	}
	if got.ActivationDate == nil || !got.ActivationDate.Equal(activatedAt) {
		t.Errorf("Activation date mismatch: %v", got.ActivationDate)
	}
}

func TestReferralEarnings_ReplaySafeSum(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	referral := newTestReferral("0xref", "0xnew", 1)
	if err := service.InsertReferral(ctx, referral); err != nil {
		t.Fatalf("InsertReferral failed: %v", err)
	}

	day1 := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	if err := service.UpsertReferralEarning(ctx, referral.Id, day1, decimal.NewFromInt(30)); err != nil {
		t.Fatalf("UpsertReferralEarning failed: %v", err)
	}
	if err := service.UpsertReferralEarning(ctx, referral.Id, day2, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("UpsertReferralEarning failed: %v", err)
	}
	// Replaying day2 with a corrected value overwrites, never adds.
	if err := service.UpsertReferralEarning(ctx, referral.Id, day2, decimal.NewFromInt(25)); err != nil {
		t.Fatalf("UpsertReferralEarning replay failed: %v", err)
	}

	other, err := service.ReferralEarningsExcluding(ctx, referral.Id, day2)
	if err != nil {
		t.Fatalf("ReferralEarningsExcluding failed: %v", err)
	}
	if !other.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Expected 30 excluding day2, got %s", other)
	}

	got, err := service.GetReferral(ctx, referral.Id)
	if err != nil {
		t.Fatalf("GetReferral failed: %v", err)
	}
	if !got.TotalShardsEarned.Equal(decimal.NewFromInt(55)) {
		t.Errorf("Expected total earned 55, got %s", got.TotalShardsEarned)
	}
}

func TestReferralEarnings_SumStaysExactOverLongHistory(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	referral := newTestReferral("0xref", "0xnew", 1)
	if err := service.InsertReferral(ctx, referral); err != nil {
		t.Fatalf("InsertReferral failed: %v", err)
	}

	// A daily amount whose running sum falls off float64 precision.
	daily := mustDecimal(t, "999999999.1234")
	start := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	days := 365
	for i := 0; i < days; i++ {
		if err := service.UpsertReferralEarning(ctx, referral.Id, start.AddDate(0, 0, i), daily); err != nil {
			t.Fatalf("UpsertReferralEarning failed: %v", err)
		}
	}

	expected := daily.Mul(decimal.NewFromInt(int64(days)))
	got, err := service.GetReferral(ctx, referral.Id)
	if err != nil {
		t.Fatalf("GetReferral failed: %v", err)
	}
	if !got.TotalShardsEarned.Equal(expected) {
		t.Errorf("Expected exact total %s, got %s", expected, got.TotalShardsEarned)
	}

	excluding, err := service.ReferralEarningsExcluding(ctx, referral.Id, start)
	if err != nil {
		t.Fatalf("ReferralEarningsExcluding failed: %v", err)
	}
	if !excluding.Equal(expected.Sub(daily)) {
		t.Errorf("Expected exact sum %s excluding the first day, got %s", expected.Sub(daily), excluding)
	}
}

func TestGetReferralsByStatus(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	a := newTestReferral("0xref", "0xone", 1)
	b := newTestReferral("0xref", "0xtwo", 1)
	for _, r := range []*models.Referral{a, b} {
		if err := service.InsertReferral(ctx, r); err != nil {
			t.Fatalf("InsertReferral failed: %v", err)
		}
	}

	activatedAt := time.Now().UTC()
	a.Status = models.ReferralActive
	a.ActivationDate = &activatedAt
	if err := service.UpdateReferral(ctx, a); err != nil {
		t.Fatalf("UpdateReferral failed: %v", err)
	}

	pending, err := service.GetReferralsByStatus(ctx, 1, models.ReferralPending)
	if err != nil {
		t.Fatalf("GetReferralsByStatus failed: %v", err)
	}
	if len(pending) != 1 || pending[0].RefereeAddress != "0xtwo" {
		t.Errorf("Unexpected pending set: %+v", pending)
	}

	count, err := service.CountByReferrer(ctx, "0xref", 1)
	if err != nil {
		t.Fatalf("CountByReferrer failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 referrals, got %d", count)
	}
}
