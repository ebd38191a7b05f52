package seed

import (
	"context"
	"time"

	"statushub/internal/models"
	"statushub/internal/repositories"
	"statushub/internal/types"
	"statushub/pkg/logger"

	"gorm.io/gorm"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

// Sessions returns a small history of finished sessions ending at now
func Sessions(now time.Time) []types.RecoverySessionState {
	errorTime := now.Add(-50 * time.Minute)

	return []types.RecoverySessionState{
		{
			State:          types.RecoveryComplete,
			SessionID:      "seed-automatic-1",
			Trigger:        types.TriggerAutomatic,
			StartTime:      timePtr(now.Add(-3 * time.Hour)),
			EndTime:        timePtr(now.Add(-3*time.Hour + 90*time.Second)),
			BytesProcessed: 48 << 20,
			FilesProcessed: 12,
			FilesTotal:     12,
			Errors:         []types.FileErrorInfo{},
		},
		{
			State:          types.RecoveryComplete,
			SessionID:      "seed-manual-1",
			Trigger:        types.TriggerManual,
			StartTime:      timePtr(now.Add(-time.Hour)),
			EndTime:        timePtr(now.Add(-50 * time.Minute)),
			BytesProcessed: 3 << 20,
			FilesProcessed: 3,
			FilesTotal:     4,
			ErrorCount:     1,
			Errors: []types.FileErrorInfo{{
				Error:     "permission denied",
				Path:      "/data/roms/Pokemon.gba",
				Filename:  "Pokemon.gba",
				Timestamp: errorTime,
				ErrorType: "permission",
			}},
		},
		{
			State:         types.RecoveryError,
			SessionID:     "seed-external-1",
			Trigger:       types.TriggerExternal,
			StartTime:     timePtr(now.Add(-10 * time.Minute)),
			EndTime:       timePtr(now.Add(-9 * time.Minute)),
			FilesTotal:    7,
			FailureReason: "cloud container unavailable",
			RetryAttempt:  1,
			Errors:        []types.FileErrorInfo{},
		},
	}
}

func Seed(
	ctx context.Context,
	db *gorm.DB,
	repo repositories.RecoverySessionRepository,
	log logger.Logger,
) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	for _, state := range Sessions(time.Now()) {
		if _, err := repo.GetBySessionID(ctx, db, state.SessionID); err == nil {
			log.Info("Session already exists", "sessionID", state.SessionID)
			continue
		}

		if err := repo.Create(ctx, db, models.NewRecoverySession(state)); err != nil {
			return log.Err("failed to create session", err, "sessionID", state.SessionID)
		}
		log.Info("Seeded session", "sessionID", state.SessionID, "state", state.State)
	}

	return nil
}
