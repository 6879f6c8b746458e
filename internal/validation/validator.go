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

package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shard-rewards-go/internal/models"
	"shard-rewards-go/internal/season"
	"shard-rewards-go/internal/store"

	"go.uber.org/zap"
)

// deadlineWarningWindow is how close to the migration deadline a transfer
// starts drawing a countdown warning.
const deadlineWarningWindow = 7 * 24 * time.Hour

// ErrInternal is what callers see when the registry itself fails. Storage
// details never leak past the validator.
var ErrInternal = errors.New("internal validation error")

// Validator decides operation legality against season, vault, and migration
// state. Business-rule violations accumulate into the result; a Go error
// means the check itself could not run.
type Validator struct {
	registry *season.Registry
	system   models.SystemConfig
	now      func() time.Time
}

func NewValidator(registry *season.Registry, system models.SystemConfig) *Validator {
	return &Validator{registry: registry, system: system, now: time.Now}
}

// WithClock overrides the validator's time source. Used by tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs the full gate pipeline for one operation. Only a missing
// season or vault short-circuits; every other rule appends to the result so
// the caller sees the complete picture in one pass.
func (v *Validator) Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResult, error) {
	result := &models.ValidationResult{IsValid: true}
	now := v.now().UTC()

	// Global gates.
	if v.system.MaintenanceMode {
		result.AddError("system is in maintenance mode, operations are temporarily disabled")
	}
	if v.system.EmergencyMode && req.Operation != models.OperationWithdrawal {
		result.AddWarning("system is in emergency mode, only withdrawals are being processed")
	}

	// Season-state gates. A missing season stops the pipeline, nothing else
	// can be checked without it.
	seasonRec, err := v.registry.GetSeason(ctx, req.SeasonId)
	if err != nil {
		if errors.Is(err, store.ErrSeasonNotFound) {
			result.AddError(fmt.Sprintf("season %d not found", req.SeasonId))
			return result, nil
		}
		zap.L().Error("Season lookup failed during validation",
			zap.Int64("season_id", req.SeasonId), zap.Error(err))
		return nil, ErrInternal
	}
	v.checkSeasonState(seasonRec, req.Operation, now, result)

	// Vault-binding gates.
	vault, err := v.registry.GetVault(ctx, req.VaultAddress, req.SeasonId)
	if err != nil {
		if errors.Is(err, store.ErrVaultNotFound) {
			result.AddError(fmt.Sprintf("vault %s not found in season %d", req.VaultAddress, req.SeasonId))
			return result, nil
		}
		zap.L().Error("Vault lookup failed during validation",
			zap.String("vault", req.VaultAddress), zap.Error(err))
		return nil, ErrInternal
	}
	v.checkVaultBinding(vault, req, result)

	// Operation-specific gates.
	switch req.Operation {
	case models.OperationDeposit:
		v.checkDeposit(seasonRec, req, now, result)
	case models.OperationWithdrawal:
		v.checkWithdrawal(seasonRec, vault, result)
	case models.OperationTransfer:
		v.checkTransfer(seasonRec, now, result)
	case models.OperationMigration:
		transition, err := v.ValidateSeasonTransition(ctx, req.SeasonId, req.SeasonId+1)
		if err != nil {
			return nil, err
		}
		result.Errors = append(result.Errors, transition.Errors...)
		result.Warnings = append(result.Warnings, transition.Warnings...)
		if !transition.IsValid {
			result.IsValid = false
		}
	default:
		result.AddError(fmt.Sprintf("unknown operation %q", req.Operation))
	}

	// Migration timing gates apply to transfers only.
	if req.Operation == models.OperationTransfer && seasonRec.Migration != nil {
		v.checkMigrationTiming(seasonRec.Migration, now, result)
	}

	return result, nil
}

func (v *Validator) checkSeasonState(s *models.Season, op models.Operation, now time.Time, result *models.ValidationResult) {
	switch s.Status {
	case models.SeasonUpcoming:
		if now.Before(s.StartDate) {
			result.AddError(fmt.Sprintf("season %d has not started yet (starts %s)",
				s.Id, s.StartDate.Format(time.RFC3339)))
		}
	case models.SeasonCompleted:
		result.AddError(fmt.Sprintf("season %d has ended", s.Id))
	case models.SeasonCancelled:
		result.AddError(fmt.Sprintf("season %d was cancelled", s.Id))
	}

	// Past the end date but not yet swept to completed: deposits close first.
	if s.Status == models.SeasonActive && s.EndDate != nil && now.After(*s.EndDate) && op == models.OperationDeposit {
		result.AddError(fmt.Sprintf("season %d end date has passed, deposits are closed", s.Id))
	}
}

func (v *Validator) checkVaultBinding(vault *models.VaultSeasonConfig, req models.ValidationRequest, result *models.ValidationResult) {
	if vault.SeasonId != req.SeasonId {
		result.AddError(fmt.Sprintf("vault %s belongs to season %d, not season %d",
			vault.Address, vault.SeasonId, req.SeasonId))
	}

	switch vault.Status {
	case models.VaultActive, models.VaultPlanned:
		// fine
	case models.VaultDeprecated:
		if req.Operation == models.OperationDeposit {
			result.AddError(fmt.Sprintf("vault %s is deprecated, deposits are not accepted", vault.Address))
		} else {
			result.AddWarning(fmt.Sprintf("vault %s is deprecated", vault.Address))
		}
	default:
		result.AddError(fmt.Sprintf("vault %s is in status %s and cannot accept operations",
			vault.Address, vault.Status))
	}
}

func (v *Validator) checkDeposit(s *models.Season, req models.ValidationRequest, now time.Time, result *models.ValidationResult) {
	if !s.Config.DepositsEnabled {
		result.AddError(fmt.Sprintf("deposits are disabled for season %d", s.Id))
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		result.AddError(fmt.Sprintf("deposit amount must be greater than zero, got %s", req.Amount.String()))
	}
	if status, ok := season.DeriveMigrationStatus(s.Migration, now); ok && status == models.MigrationMigrating {
		result.AddWarning(fmt.Sprintf("migration to %s is in progress, deposited funds will need to migrate", s.Migration.ToChain))
	}
}

func (v *Validator) checkWithdrawal(s *models.Season, vault *models.VaultSeasonConfig, result *models.ValidationResult) {
	// Both the season feature flag and the per-vault field must allow it.
	if !s.Config.WithdrawalsEnabled || !vault.WithdrawalsEnabled {
		result.AddError(fmt.Sprintf("withdrawals are disabled for vault %s in season %d", vault.Address, s.Id))
	}
	if vault.LockedUntilMainnet {
		result.AddError(fmt.Sprintf("vault %s is locked until mainnet launch", vault.Address))
	}
	if vault.RedeemDelayDays > 0 {
		result.AddWarning(fmt.Sprintf("withdrawals from vault %s are subject to a %d-day redeem delay",
			vault.Address, vault.RedeemDelayDays))
	}
	if vault.EarlyWithdrawalPenalty.IsPositive() {
		result.AddWarning(fmt.Sprintf("early withdrawal from vault %s incurs a %s%% penalty",
			vault.Address, vault.EarlyWithdrawalPenalty.String()))
	}
}

func (v *Validator) checkTransfer(s *models.Season, now time.Time, result *models.ValidationResult) {
	status, ok := season.DeriveMigrationStatus(s.Migration, now)
	if !ok {
		return
	}
	switch status {
	case models.MigrationStable:
		result.AddWarning(fmt.Sprintf("no active migration for season %d", s.Id))
	case models.MigrationCompleted:
		result.AddError(fmt.Sprintf("migration window for season %d is closed to new transfers", s.Id))
	}
}

// checkMigrationTiming gates transfers against the raw window instants.
func (v *Validator) checkMigrationTiming(cfg *models.MigrationConfig, now time.Time, result *models.ValidationResult) {
	if now.Before(cfg.StartTime) {
		result.AddError(fmt.Sprintf("migration window has not opened yet (opens %s)",
			cfg.StartTime.Format(time.RFC3339)))
		return
	}
	if now.After(cfg.Deadline) {
		result.AddError(fmt.Sprintf("migration deadline %s has passed",
			cfg.Deadline.Format(time.RFC3339)))
		return
	}
	if now.After(cfg.EndTime) {
		result.AddWarning(fmt.Sprintf("migration window ended %s, transfers accepted until the %s deadline",
			cfg.EndTime.Format(time.RFC3339), cfg.Deadline.Format(time.RFC3339)))
	}
	if remaining := cfg.Deadline.Sub(now); remaining <= deadlineWarningWindow {
		days := int(remaining.Hours() / 24)
		result.AddWarning(fmt.Sprintf("migration deadline in %d day(s)", days))
	}
}

// ValidateSeasonTransition checks a cross-season migration from one season to
// the next. Every failed rule lands in the result, nothing stops early. A Go
// error means a season lookup itself failed, not that a rule was violated.
func (v *Validator) ValidateSeasonTransition(ctx context.Context, fromId, toId int64) (*models.ValidationResult, error) {
	result := &models.ValidationResult{IsValid: true}
	now := v.now().UTC()

	from, err := v.registry.GetSeason(ctx, fromId)
	if err != nil {
		if !errors.Is(err, store.ErrSeasonNotFound) {
			zap.L().Error("Season lookup failed during transition validation",
				zap.Int64("season_id", fromId), zap.Error(err))
			return nil, ErrInternal
		}
		result.AddError(fmt.Sprintf("source season %d not found", fromId))
	}
	to, err := v.registry.GetSeason(ctx, toId)
	if err != nil {
		if !errors.Is(err, store.ErrSeasonNotFound) {
			zap.L().Error("Season lookup failed during transition validation",
				zap.Int64("season_id", toId), zap.Error(err))
			return nil, ErrInternal
		}
		result.AddError(fmt.Sprintf("target season %d not found", toId))
	}

	if toId != fromId+1 {
		result.AddError(fmt.Sprintf("seasons must be consecutive, cannot migrate from %d to %d", fromId, toId))
	}

	if to != nil {
		if to.Migration == nil {
			result.AddError(fmt.Sprintf("target season %d has no migration window configured", toId))
		} else {
			if now.Before(to.Migration.StartTime) || now.After(to.Migration.EndTime) {
				result.AddError(fmt.Sprintf("current time is outside the migration window (%s to %s)",
					to.Migration.StartTime.Format(time.RFC3339), to.Migration.EndTime.Format(time.RFC3339)))
			}
		}
	}

	if from != nil && to != nil && from.Chain == to.Chain {
		result.AddError(fmt.Sprintf("source and target seasons are both on chain %s, migration requires a chain change", from.Chain))
	}

	return result, nil
}
