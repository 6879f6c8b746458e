package season

import (
	"time"

	"shard-rewards-go/internal/models"
)

// DeriveMigrationStatus computes the migration phase from the window config
// and the supplied instant. It is the single place this derivation lives;
// every caller goes through here so the phase boundaries cannot drift.
//
// The boolean is false when the season carries no migration window, in which
// case the status is absent rather than defaulted.
func DeriveMigrationStatus(cfg *models.MigrationConfig, now time.Time) (models.MigrationStatus, bool) {
	if cfg == nil {
		return "", false
	}
	switch {
	case now.Before(cfg.StartTime):
		return models.MigrationUpcoming, true
	case !now.After(cfg.EndTime):
		// start <= now <= end
		return models.MigrationMigrating, true
	case !now.After(cfg.Deadline):
		// end < now <= deadline
		return models.MigrationCompleted, true
	default:
		return models.MigrationStable, true
	}
}
