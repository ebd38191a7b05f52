package jobs

import (
	"context"

	"statushub/internal/services"
	"statushub/pkg/logger"
)

type RecoveryScanJob struct {
	scan     *services.RecoveryScanService
	log      logger.Logger
	schedule services.Schedule
}

func NewRecoveryScanJob(scan *services.RecoveryScanService, schedule services.Schedule) *RecoveryScanJob {
	return &RecoveryScanJob{
		scan:     scan,
		log:      logger.New("recoveryScanJob"),
		schedule: schedule,
	}
}

func (j *RecoveryScanJob) Name() string {
	return "RecoveryScan"
}

func (j *RecoveryScanJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	pending, err := j.scan.Scan(ctx)
	if err != nil {
		return log.Err("scheduled recovery scan failed", err)
	}

	log.Info("Scheduled recovery scan completed", "pending", pending)
	return nil
}

func (j *RecoveryScanJob) Schedule() services.Schedule {
	return j.schedule
}
