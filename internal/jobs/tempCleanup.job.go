package jobs

import (
	"context"

	"statushub/internal/services"
	"statushub/pkg/logger"
)

type TempCleanupJob struct {
	tempCleanup *services.TempCleanupService
	log         logger.Logger
	schedule    services.Schedule
}

func NewTempCleanupJob(
	tempCleanup *services.TempCleanupService,
	schedule services.Schedule,
) *TempCleanupJob {
	log := logger.New("tempCleanupJob")
	log.Info("Creating new temp cleanup job", "schedule", schedule)

	return &TempCleanupJob{
		tempCleanup: tempCleanup,
		log:         log,
		schedule:    schedule,
	}
}

func (j *TempCleanupJob) Name() string {
	return "TempCleanup"
}

func (j *TempCleanupJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	removed, err := j.tempCleanup.CleanupExpiredFiles(ctx)
	if err != nil {
		return log.Err("scheduled cleanup failed", err)
	}

	log.Info("Scheduled temp cleanup completed", "removed", removed)
	return nil
}

func (j *TempCleanupJob) Schedule() services.Schedule {
	return j.schedule
}
