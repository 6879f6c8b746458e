package season

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/store"

	"go.uber.org/zap"
)

// ErrInvalidTransition marks an illegal season status change. The wrapped
// message always names the source and target statuses.
var ErrInvalidTransition = errors.New("invalid season status transition")

// allowedTransitions is the full season lifecycle. completed and cancelled
// are terminal.
var allowedTransitions = map[models.SeasonStatus][]models.SeasonStatus{
	models.SeasonUpcoming: {models.SeasonActive, models.SeasonCancelled},
	models.SeasonActive:   {models.SeasonCompleted, models.SeasonCancelled},
}

// farFuture stands in for a missing end date during overlap checks.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Registry owns season and vault-season configuration. All mutation goes
// through the transition table; seasons are never deleted, only cancelled.
type Registry struct {
	store store.SeasonStore
	now   func() time.Time
}

func NewRegistry(seasonStore store.SeasonStore) *Registry {
	return &Registry{store: seasonStore, now: time.Now}
}

// WithClock overrides the registry's time source. Used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) GetSeason(ctx context.Context, id int64) (*models.Season, error) {
	return r.store.GetSeason(ctx, id)
}

func (r *Registry) GetActiveSeason(ctx context.Context, chain models.Chain) (*models.Season, error) {
	return r.store.GetActiveSeason(ctx, chain)
}

func (r *Registry) GetAllSeasons(ctx context.Context) ([]models.Season, error) {
	return r.store.GetAllSeasons(ctx)
}

// CreateSeason validates the spec, computes the initial status from its dates,
// and persists the season.
func (r *Registry) CreateSeason(ctx context.Context, spec models.SeasonSpec) (*models.Season, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("season name cannot be empty")
	}
	if spec.Chain == "" {
		return nil, fmt.Errorf("season chain cannot be empty")
	}
	if spec.EndDate != nil && !spec.EndDate.After(spec.StartDate) {
		return nil, fmt.Errorf("season end date %s must be after start date %s",
			spec.EndDate.Format(time.RFC3339), spec.StartDate.Format(time.RFC3339))
	}
	if spec.Migration != nil {
		if err := validateMigrationConfig(spec.Migration); err != nil {
			return nil, err
		}
	}

	now := r.now().UTC()
	if err := r.checkOverlap(ctx, spec, now); err != nil {
		return nil, err
	}

	season := &models.Season{
		Name:      spec.Name,
		Chain:     spec.Chain,
		StartDate: spec.StartDate.UTC(),
		EndDate:   spec.EndDate,
		Status:    initialStatus(spec.StartDate, spec.EndDate, now),
		Config:    spec.Config,
		Migration: spec.Migration,
	}

	id, err := r.store.InsertSeason(ctx, season)
	if err != nil {
		return nil, err
	}
	season.Id = id
	return season, nil
}

// UpdateSeason applies a patch to mutable season fields. Status changes go
// through TransitionStatus, never through here.
func (r *Registry) UpdateSeason(ctx context.Context, id int64, patch models.SeasonPatch) (*models.Season, error) {
	season, err := r.store.GetSeason(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		season.Name = *patch.Name
	}
	if patch.EndDate != nil {
		if !patch.EndDate.After(season.StartDate) {
			return nil, fmt.Errorf("season end date %s must be after start date %s",
				patch.EndDate.Format(time.RFC3339), season.StartDate.Format(time.RFC3339))
		}
		season.EndDate = patch.EndDate
	}
	if patch.Config != nil {
		season.Config = *patch.Config
	}
	if patch.Migration != nil {
		if err := validateMigrationConfig(patch.Migration); err != nil {
			return nil, err
		}
		season.Migration = patch.Migration
	}

	if err := r.store.UpdateSeason(ctx, season); err != nil {
		return nil, err
	}
	return season, nil
}

// TransitionStatus moves a season through the lifecycle table. Illegal pairs
// fail with ErrInvalidTransition naming both statuses.
func (r *Registry) TransitionStatus(ctx context.Context, id int64, target models.SeasonStatus) error {
	season, err := r.store.GetSeason(ctx, id)
	if err != nil {
		return err
	}

	if !transitionAllowed(season.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, season.Status, target)
	}
	return r.store.UpdateSeasonStatus(ctx, id, season.Status, target)
}

// CheckAndUpdateStatuses sweeps every season and applies date-driven
// transitions: upcoming seasons whose start has passed become active, active
// seasons whose end has passed become completed. Per-season failures are
// logged and skipped; the count of applied transitions is returned.
func (r *Registry) CheckAndUpdateStatuses(ctx context.Context, now time.Time) (int, error) {
	seasons, err := r.store.GetAllSeasons(ctx)
	if err != nil {
		return 0, err
	}

	transitions := 0
	for _, season := range seasons {
		if err := ctx.Err(); err != nil {
			return transitions, err
		}

		switch season.Status {
		case models.SeasonUpcoming:
			if !season.StartDate.After(now) {
				if err := r.store.UpdateSeasonStatus(ctx, season.Id, models.SeasonUpcoming, models.SeasonActive); err != nil {
					zap.L().Error("Failed to activate season", zap.Int64("season_id", season.Id), zap.Error(err))
					continue
				}
				transitions++
				season.Status = models.SeasonActive
			}
		}

		if season.Status == models.SeasonActive && season.EndDate != nil && season.EndDate.Before(now) {
			if err := r.store.UpdateSeasonStatus(ctx, season.Id, models.SeasonActive, models.SeasonCompleted); err != nil {
				zap.L().Error("Failed to complete season", zap.Int64("season_id", season.Id), zap.Error(err))
				continue
			}
			transitions++
		}
	}

	if transitions > 0 {
		zap.L().Info("Season status sweep applied transitions", zap.Int("count", transitions))
	}
	return transitions, nil
}

func (r *Registry) GetVault(ctx context.Context, address string, seasonId int64) (*models.VaultSeasonConfig, error) {
	return r.store.GetVault(ctx, address, seasonId)
}

func (r *Registry) GetVaultsBySeason(ctx context.Context, seasonId int64) ([]models.VaultSeasonConfig, error) {
	return r.store.GetVaultsBySeason(ctx, seasonId)
}

// BindVault attaches a vault to a season. The season must exist and the vault
// chain must match the season chain.
func (r *Registry) BindVault(ctx context.Context, vault *models.VaultSeasonConfig) error {
	season, err := r.store.GetSeason(ctx, vault.SeasonId)
	if err != nil {
		return err
	}
	if vault.Chain != season.Chain {
		return fmt.Errorf("%w: vault %s is on %s but season %d is on %s",
			store.ErrConflict, vault.Address, vault.Chain, season.Id, season.Chain)
	}
	return r.store.BindVault(ctx, vault)
}

func transitionAllowed(from, to models.SeasonStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func initialStatus(start time.Time, end *time.Time, now time.Time) models.SeasonStatus {
	if start.After(now) {
		return models.SeasonUpcoming
	}
	if end != nil && end.Before(now) {
		return models.SeasonCompleted
	}
	return models.SeasonActive
}

// checkOverlap rejects a new season whose date range intersects any
// non-terminal season on the same chain. A missing end date is treated as
// far-future on both sides.
func (r *Registry) checkOverlap(ctx context.Context, spec models.SeasonSpec, now time.Time) error {
	existing, err := r.store.GetSeasonsByChain(ctx, spec.Chain)
	if err != nil {
		return err
	}

	newStart := spec.StartDate
	newEnd := farFuture
	if spec.EndDate != nil {
		newEnd = *spec.EndDate
	}

	for _, season := range existing {
		if season.Status == models.SeasonCancelled || season.Status == models.SeasonCompleted {
			continue
		}
		existingEnd := farFuture
		if season.EndDate != nil {
			existingEnd = *season.EndDate
		}
		if newStart.Before(existingEnd) && season.StartDate.Before(newEnd) {
			return fmt.Errorf("%w: date range overlaps season %d (%s) on chain %s",
				store.ErrConflict, season.Id, season.Name, spec.Chain)
		}
	}
	return nil
}

func validateMigrationConfig(cfg *models.MigrationConfig) error {
	if !cfg.StartTime.Before(cfg.EndTime) {
		return fmt.Errorf("migration start %s must be before end %s",
			cfg.StartTime.Format(time.RFC3339), cfg.EndTime.Format(time.RFC3339))
	}
	if cfg.Deadline.Before(cfg.EndTime) {
		return fmt.Errorf("migration deadline %s cannot be before end %s",
			cfg.Deadline.Format(time.RFC3339), cfg.EndTime.Format(time.RFC3339))
	}
	if cfg.FromChain == cfg.ToChain {
		return fmt.Errorf("migration source and target chains must differ, both are %s", cfg.FromChain)
	}
	return nil
}
