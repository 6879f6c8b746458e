package scheduler

import (
	"context"
	"time"

	"shard-rewards-go/internal/accrual"
	"shard-rewards-go/internal/metrics"
	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/referral"
	"shard-rewards-go/internal/season"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives the recurring jobs: daily accrual, season status sweeps,
// and referral activation/expiry sweeps. All cron specs evaluate in UTC.
type Scheduler struct {
	cron      *cron.Cron
	registry  *season.Registry
	engine    *accrual.Engine
	referrals *referral.Ledger
	cfg       models.SchedulerConfig
	chains    []models.Chain
	now       func() time.Time
}

func New(registry *season.Registry, engine *accrual.Engine, referrals *referral.Ledger,
	cfg models.SchedulerConfig, chains []models.Chain) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		registry:  registry,
		engine:    engine,
		referrals: referrals,
		cfg:       cfg,
		chains:    chains,
		now:       time.Now,
	}
}

// WithClock overrides the scheduler's time source. Used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.AccrualCronSpec, s.runAccrual); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.SeasonSweepCronSpec, s.runSeasonSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ReferralSweepCronSpec, s.runReferralSweep); err != nil {
		return err
	}

	s.cron.Start()
	zap.L().Info("Scheduler started",
		zap.String("accrual", s.cfg.AccrualCronSpec),
		zap.String("season_sweep", s.cfg.SeasonSweepCronSpec),
		zap.String("referral_sweep", s.cfg.ReferralSweepCronSpec))
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.L().Info("Scheduler stopped")
}

// InProcessingWindow reports whether the UTC hour falls inside the configured
// accrual window. A window wrapping midnight (e.g. 22..2) is supported.
func (s *Scheduler) InProcessingWindow(now time.Time) bool {
	hour := now.UTC().Hour()
	start, end := s.cfg.ProcessingWindowStart, s.cfg.ProcessingWindowEnd
	if start == end {
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// runAccrual accrues the previous UTC day for the active season on each chain.
func (s *Scheduler) runAccrual() {
	now := s.now().UTC()
	if !s.InProcessingWindow(now) {
		zap.L().Warn("Accrual tick outside processing window, skipping",
			zap.Int("hour", now.Hour()),
			zap.Int("window_start", s.cfg.ProcessingWindowStart),
			zap.Int("window_end", s.cfg.ProcessingWindowEnd))
		return
	}

	ctx := context.Background()
	date := now.AddDate(0, 0, -1).Truncate(24 * time.Hour)

	for _, chain := range s.chains {
		active, err := s.registry.GetActiveSeason(ctx, chain)
		if err != nil {
			zap.L().Debug("No active season for chain, skipping accrual",
				zap.String("chain", string(chain)), zap.Error(err))
			continue
		}

		processed, flagged, err := s.engine.RunDaily(ctx, active.Id, date, nil)
		if err != nil {
			zap.L().Error("Accrual run failed",
				zap.String("chain", string(chain)),
				zap.Int64("season_id", active.Id),
				zap.Error(err))
			continue
		}
		metrics.AccrualsProcessed.Add(float64(processed))
		metrics.AccrualsFlagged.Add(float64(flagged))
	}
}

// runSeasonSweep moves seasons whose dates have passed their boundaries.
func (s *Scheduler) runSeasonSweep() {
	transitioned, err := s.registry.CheckAndUpdateStatuses(context.Background(), s.now().UTC())
	if err != nil {
		zap.L().Error("Season sweep failed", zap.Error(err))
		return
	}
	metrics.SeasonTransitions.Add(float64(transitioned))
}

// runReferralSweep activates eligible pending referrals and expires lapsed
// bonus windows for every active season.
func (s *Scheduler) runReferralSweep() {
	ctx := context.Background()
	for _, chain := range s.chains {
		active, err := s.registry.GetActiveSeason(ctx, chain)
		if err != nil {
			continue
		}

		activated, err := s.referrals.CheckAndActivatePending(ctx, active.Id)
		if err != nil {
			zap.L().Error("Referral activation sweep failed",
				zap.Int64("season_id", active.Id), zap.Error(err))
		}
		metrics.ReferralsActivated.Add(float64(activated))

		if _, err := s.referrals.ExpireOutdatedBonuses(ctx, active.Id); err != nil {
			zap.L().Error("Referral expiry sweep failed",
				zap.Int64("season_id", active.Id), zap.Error(err))
		}
	}
}
