package jobs

import (
	"statushub/config"
	"statushub/internal/services"
	"statushub/pkg/logger"
)

// Import schedule constants
const (
	Hourly       = services.Hourly
	Daily        = services.Daily
	RecoveryScan = services.RecoveryScan
)

func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	services services.Service,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")
	log.Info("Registering jobs")

	if config.RecoveryWatchDir != "" && services.RecoveryScan != nil {
		recoveryScanJob := NewRecoveryScanJob(services.RecoveryScan, RecoveryScan)
		if err := schedulerService.AddJob(recoveryScanJob); err != nil {
			return log.Err("failed to register recovery scan job", err)
		}
		log.Info("Registered recovery scan job", "interval", config.RecoveryScanInterval())
	}

	if config.TempDir != "" {
		tempCleanupJob := NewTempCleanupJob(services.TempCleanup, Hourly)
		if err := schedulerService.AddJob(tempCleanupJob); err != nil {
			return log.Err("failed to register temp cleanup job", err)
		}
		log.Info("Registered temp cleanup job", "schedule", "hourly")
	}

	return nil
}
