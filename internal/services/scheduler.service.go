package services

import (
	"context"
	"sync"
	"time"

	"statushub/config"
	"statushub/pkg/logger"

	"github.com/go-co-op/gocron"
)

const SCHEDULER_SERVICE_NAME = "scheduler"

type Schedule int

const (
	Hourly       Schedule = iota
	Daily                 // Start at 02:00 UTC every day
	RecoveryScan          // Every RECOVERY_SCAN_MINUTES
)

func (s Schedule) String() string {
	switch s {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case RecoveryScan:
		return "recoveryScan"
	default:
		return "unknown"
	}
}

// Job represents a scheduled task that can be executed by the scheduler
type Job interface {
	// Name returns a human-readable name for the job
	Name() string

	// Execute runs the job with the given context
	// Context can be used for cancellation and timeout handling
	Execute(ctx context.Context) error
	Schedule() Schedule
}

// SchedulerService runs the background jobs. It is also a toggleable
// service: stopping it pauses every job until it is started again.
type SchedulerService struct {
	scanInterval time.Duration
	scheduler    *gocron.Scheduler
	jobs         []Job
	log          logger.Logger
	started      bool
	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewSchedulerService(config config.Config) *SchedulerService {
	return &SchedulerService{
		scanInterval: config.RecoveryScanInterval(),
		jobs:         make([]Job, 0),
		log:          logger.New("scheduler"),
	}
}

func (s *SchedulerService) Name() string {
	return SCHEDULER_SERVICE_NAME
}

func (s *SchedulerService) executeJob(ctx context.Context, job Job, log logger.Logger) {
	log.Info("Executing scheduled job", "job", job.Name())
	if err := job.Execute(ctx); err != nil {
		_ = log.Err("Job execution failed", err, "job", job.Name())
	} else {
		log.Info("Job execution completed successfully", "job", job.Name())
	}
}

// AddJob registers a job. Jobs added while running are scheduled at once.
func (s *SchedulerService) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("AddJob")

	if s.started {
		if err := s.schedule(s.scheduler, job); err != nil {
			return log.Err("failed to register job with scheduler", err, "job", job.Name())
		}
	}

	s.jobs = append(s.jobs, job)
	log.Info("Job registered successfully", "job", job.Name(), "schedule", job.Schedule())

	return nil
}

func (s *SchedulerService) schedule(scheduler *gocron.Scheduler, job Job) error {
	log := s.log.Function("schedule")
	ctx := s.ctx
	run := func() {
		s.executeJob(ctx, job, log)
	}

	var err error
	switch job.Schedule() {
	case Daily:
		_, err = scheduler.Every(1).Day().At("02:00").Do(run)
	case Hourly:
		_, err = scheduler.Every(1).Hour().Do(run)
	case RecoveryScan:
		_, err = scheduler.Every(s.scanInterval).Do(run)
	default:
		return log.Error("unknown job schedule", "job", job.Name(), "schedule", int(job.Schedule()))
	}

	return err
}

// Start schedules every registered job on a fresh gocron scheduler
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Start")

	if s.started {
		log.Info("Scheduler already started")
		return nil
	}

	// Job context outlives the caller's request context
	s.ctx, s.cancel = context.WithCancel(context.Background())

	scheduler := gocron.NewScheduler(time.UTC)
	for _, job := range s.jobs {
		if err := s.schedule(scheduler, job); err != nil {
			s.cancel()
			return log.Err("failed to schedule job", err, "job", job.Name())
		}
	}

	log.Info("Starting scheduler", "jobCount", len(s.jobs))
	scheduler.StartAsync()
	s.scheduler = scheduler
	s.started = true

	for _, job := range scheduler.Jobs() {
		log.Info("Job scheduled", "nextRun", job.NextRun())
	}

	return nil
}

// Stop gracefully shuts down the scheduler
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Stop")

	if !s.started {
		log.Info("Scheduler not started, nothing to stop")
		return nil
	}

	log.Info("Stopping scheduler")

	// Cancel the context to signal running jobs to stop
	s.cancel()
	s.scheduler.Stop()
	s.scheduler = nil
	s.started = false

	log.Info("Scheduler stopped successfully")
	return nil
}

// Running returns whether the scheduler is currently running
func (s *SchedulerService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// GetJobCount returns the number of registered jobs
func (s *SchedulerService) GetJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// GetNextRunTime returns the next scheduled run time if scheduler is running
func (s *SchedulerService) GetNextRunTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || len(s.scheduler.Jobs()) == 0 {
		return nil
	}

	nextRun := s.scheduler.Jobs()[0].NextRun()
	return &nextRun
}
