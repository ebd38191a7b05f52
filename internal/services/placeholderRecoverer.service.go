package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"statushub/config"
	"statushub/internal/events"
	"statushub/pkg/logger"
)

var ErrWatchDirNotConfigured = errors.New("recovery watch directory not configured")

// PlaceholderRecoverer materializes every placeholder under the watch
// directory by renaming it to its real name. The aggregator publishes the
// terminal session event from the returned error.
type PlaceholderRecoverer struct {
	channel *events.Channel
	dir     string
	suffix  string
	log     logger.Logger
}

func NewPlaceholderRecoverer(config config.Config, channel *events.Channel) *PlaceholderRecoverer {
	return &PlaceholderRecoverer{
		channel: channel,
		dir:     config.RecoveryWatchDir,
		suffix:  config.RecoveryPlaceholder,
		log:     logger.New("placeholderRecoverer"),
	}
}

func (r *PlaceholderRecoverer) Recover(ctx context.Context, sessionID string) error {
	log := r.log.Function("Recover").With("sessionID", sessionID)

	if r.dir == "" {
		return log.Err("cannot recover files", ErrWatchDirNotConfigured)
	}

	placeholders, failures, err := FindPlaceholders(r.dir, r.suffix)
	if err != nil {
		return log.Err("failed to list placeholders", err, "dir", r.dir)
	}

	for _, failure := range failures {
		r.publish(events.RecoveryFileFailed{
			SessionID: sessionID,
			Path:      failure.Path,
			Filename:  failure.Filename,
			Error:     failure.Error,
			ErrorType: failure.ErrorType,
			Timestamp: failure.Timestamp,
		})
	}

	total := len(placeholders)
	log.Info("Recovering placeholders", "count", total, "unreadable", len(failures))
	r.publish(events.RecoveryProgress{SessionID: sessionID, FilesTotal: total, Timestamp: time.Now()})

	var bytes uint64
	for i, placeholder := range placeholders {
		if err := ctx.Err(); err != nil {
			return log.Err("recovery cancelled", err, "processed", i, "total", total)
		}

		if err := r.materialize(placeholder); err != nil {
			log.Warn("Failed to recover file", "path", placeholder.Path, "error", err)
			r.publish(events.RecoveryFileFailed{
				SessionID: sessionID,
				Path:      placeholder.Path,
				Filename:  placeholder.Filename,
				Error:     err.Error(),
				ErrorType: "recovery",
				Timestamp: time.Now(),
			})
		} else {
			bytes += uint64(placeholder.Size)
			r.publish(events.RecoveryFileRecovered{
				SessionID: sessionID,
				Path:      placeholder.Path,
				Filename:  placeholder.Filename,
				Timestamp: time.Now(),
			})
		}

		r.publish(events.RecoveryProgress{
			SessionID:      sessionID,
			Path:           placeholder.Path,
			Filename:       placeholder.Filename,
			BytesProcessed: bytes,
			FilesProcessed: i + 1,
			FilesTotal:     total,
			Timestamp:      time.Now(),
		})
	}

	log.Info("Recovery pass finished", "processed", total, "bytes", bytes)
	return nil
}

func (r *PlaceholderRecoverer) materialize(placeholder Placeholder) error {
	if _, err := os.Lstat(placeholder.Target); err == nil {
		return fmt.Errorf("%s already exists", placeholder.Filename)
	}

	return os.Rename(placeholder.Path, placeholder.Target)
}

func (r *PlaceholderRecoverer) publish(event events.Event) {
	if err := r.channel.Publish(event); err != nil {
		r.log.Function("publish").Warn("Failed to publish recovery event", "kind", event.Kind(), "error", err)
	}
}
