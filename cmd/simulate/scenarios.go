package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"statushub/internal/events"
	"statushub/internal/types"

	"github.com/google/uuid"
)

type ProgressScenario struct {
	Operation string
	Steps     int
	Total     int64
	Interval  time.Duration
	FailAt    int
}

type RecoveryScenario struct {
	Dir       string
	Files     int
	FileSize  uint64
	FailEvery int
	Interval  time.Duration
	Fatal     bool
}

var errSimulatedFailure = errors.New("simulated failure")

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunProgress drives one operation from start to its terminal event. FailAt
// greater than zero fails the operation at that step.
func RunProgress(ctx context.Context, publisher Publisher, scenario ProgressScenario) error {
	if scenario.Operation == "" {
		return fmt.Errorf("operation is required")
	}
	if scenario.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", scenario.Steps)
	}

	total := scenario.Total
	if total <= 0 {
		total = int64(scenario.Steps)
	}

	publish := func(event events.Event) error {
		return publisher.Publish(ctx, event)
	}

	if err := publish(events.OperationStarted{Operation: scenario.Operation}); err != nil {
		return err
	}

	for step := 1; step <= scenario.Steps; step++ {
		if scenario.FailAt > 0 && step == scenario.FailAt {
			if err := publish(events.ProgressRemoved{ID: scenario.Operation}); err != nil {
				return err
			}
			return publish(events.OperationFailed{
				Operation: scenario.Operation,
				Error:     fmt.Sprintf("%s at step %d", errSimulatedFailure, step),
			})
		}

		current := total * int64(step) / int64(scenario.Steps)
		update := events.ProgressUpdated{
			ID:      scenario.Operation,
			Current: current,
			Total:   total,
			Detail:  fmt.Sprintf("step %d of %d", step, scenario.Steps),
		}
		if err := publish(update); err != nil {
			return err
		}

		if err := sleep(ctx, scenario.Interval); err != nil {
			return err
		}
	}

	if err := publish(events.ProgressRemoved{ID: scenario.Operation}); err != nil {
		return err
	}
	return publish(events.OperationCompleted{
		Operation: scenario.Operation,
		Metadata:  map[string]string{"steps": fmt.Sprint(scenario.Steps)},
	})
}

// RunRecovery plays an external recovery session with its own session id
func RunRecovery(ctx context.Context, publisher Publisher, scenario RecoveryScenario) (string, error) {
	if scenario.Files <= 0 {
		return "", fmt.Errorf("files must be positive, got %d", scenario.Files)
	}

	sessionID := uuid.NewString()
	publish := func(event events.Event) error {
		return publisher.Publish(ctx, event)
	}

	now := time.Now()
	for i := range scenario.Files {
		name := simulatedFilename(i)
		err := publish(events.FilePendingRecovery{
			Path:      filepath.Join(scenario.Dir, name),
			Filename:  name,
			Timestamp: now,
		})
		if err != nil {
			return sessionID, err
		}
	}

	err := publish(events.RecoveryStarted{
		SessionID:  sessionID,
		FilesTotal: scenario.Files,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return sessionID, err
	}

	var bytesProcessed uint64
	for i := range scenario.Files {
		name := simulatedFilename(i)
		path := filepath.Join(scenario.Dir, name)

		if scenario.Fatal && i == scenario.Files/2 {
			return sessionID, publish(events.RecoveryFailed{
				SessionID: sessionID,
				Error:     errSimulatedFailure.Error(),
				Timestamp: time.Now(),
			})
		}

		if scenario.FailEvery > 0 && (i+1)%scenario.FailEvery == 0 {
			err = publish(events.RecoveryFileFailed{
				SessionID: sessionID,
				Path:      path,
				Filename:  name,
				Error:     errSimulatedFailure.Error(),
				ErrorType: "io",
				Timestamp: time.Now(),
			})
		} else {
			bytesProcessed += scenario.FileSize
			err = publish(events.RecoveryFileRecovered{
				SessionID: sessionID,
				Path:      path,
				Filename:  name,
				Timestamp: time.Now(),
			})
		}
		if err != nil {
			return sessionID, err
		}

		err = publish(events.RecoveryProgress{
			SessionID:      sessionID,
			Path:           path,
			Filename:       name,
			BytesProcessed: bytesProcessed,
			FilesProcessed: i + 1,
			FilesTotal:     scenario.Files,
			Timestamp:      time.Now(),
		})
		if err != nil {
			return sessionID, err
		}

		if err := sleep(ctx, scenario.Interval); err != nil {
			return sessionID, err
		}
	}

	return sessionID, publish(events.RecoveryCompleted{SessionID: sessionID, Timestamp: time.Now()})
}

func RunMessage(ctx context.Context, publisher Publisher, message string, messageType types.MessageType) error {
	if message == "" {
		return fmt.Errorf("message is required")
	}
	return publisher.Publish(ctx, events.StatusMessagePosted{Message: message, Type: messageType})
}

func simulatedFilename(i int) string {
	return fmt.Sprintf("file-%03d.bin", i+1)
}
