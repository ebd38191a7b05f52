package services

import (
	"context"
	"strconv"
	"time"

	"statushub/config"
	"statushub/internal/events"
	"statushub/internal/types"
	"statushub/pkg/logger"
)

// RecoveryTrigger starts an automatic session or reports the running one
type RecoveryTrigger interface {
	TriggerAutomaticRecovery(ctx context.Context) (string, bool, error)
}

type RecoveryScanService struct {
	channel  *events.Channel
	trigger  RecoveryTrigger
	reporter *events.Reporter
	dir      string
	suffix   string
	log      logger.Logger
}

func NewRecoveryScanService(
	config config.Config,
	channel *events.Channel,
	trigger RecoveryTrigger,
) *RecoveryScanService {
	return &RecoveryScanService{
		channel:  channel,
		trigger:  trigger,
		reporter: events.NewReporter(channel, types.OpRecoveryScan),
		dir:      config.RecoveryWatchDir,
		suffix:   config.RecoveryPlaceholder,
		log:      logger.New("recoveryScanService"),
	}
}

// Scan reports every placeholder as pending recovery and asks for an
// automatic session when any were found. Returns the pending count.
func (s *RecoveryScanService) Scan(ctx context.Context) (int, error) {
	log := s.log.Function("Scan")

	if s.dir == "" {
		log.Debug("No watch directory configured, skipping scan")
		return 0, nil
	}

	s.reporter.Start(0, map[string]string{"dir": s.dir})

	placeholders, failures, err := FindPlaceholders(s.dir, s.suffix)
	if err != nil {
		s.reporter.Fail(err)
		return 0, log.Err("failed to scan watch directory", err, "dir", s.dir)
	}

	for _, failure := range failures {
		s.publish(failure)
	}

	total := int64(len(placeholders))
	for i, placeholder := range placeholders {
		s.publish(events.FilePendingRecovery{
			Path:      placeholder.Path,
			Filename:  placeholder.Filename,
			Timestamp: time.Now(),
		})
		s.reporter.Update(int64(i+1), total, placeholder.Filename)
	}

	s.reporter.Finish(map[string]string{"pending": strconv.Itoa(len(placeholders))})
	log.Info("Scan finished", "pending", len(placeholders), "unreadable", len(failures))

	if len(placeholders) == 0 {
		return 0, nil
	}

	sessionID, started, err := s.trigger.TriggerAutomaticRecovery(ctx)
	if err != nil {
		return len(placeholders), log.Err("failed to trigger automatic recovery", err)
	}
	log.Info("Automatic recovery requested", "sessionID", sessionID, "started", started)

	return len(placeholders), nil
}

func (s *RecoveryScanService) publish(event events.Event) {
	if err := s.channel.Publish(event); err != nil {
		s.log.Function("publish").Warn("Failed to publish scan event", "kind", event.Kind(), "error", err)
	}
}
