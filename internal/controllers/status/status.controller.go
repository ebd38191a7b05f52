package statusController

import (
	"context"
	"errors"
	"fmt"
	"time"

	"statushub/internal/alerts"
	"statushub/internal/events"
	"statushub/internal/progress"
	"statushub/internal/status"
	"statushub/internal/types"
	"statushub/pkg/logger"
)

const MAX_SESSIONS_LIMIT = 100

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

// Aggregator is the subset of the status aggregator the controller drives
type Aggregator interface {
	Snapshot(ctx context.Context) (status.Snapshot, error)
	TriggerManualRecovery(ctx context.Context) (string, bool, error)
	ToggleExternalService(ctx context.Context, name string) (bool, error)
	ClearMessages(ctx context.Context) error
	DismissAlert(ctx context.Context) error
	ClearPendingRecovery(ctx context.Context) (int, error)
}

type SessionHistory interface {
	Recent(ctx context.Context, limit int) ([]types.RecoverySessionState, error)
}

type StatusController struct {
	aggregator Aggregator
	history    SessionHistory
	channel    *events.Channel
	log        logger.Logger
}

type ProgressResponse struct {
	Progress   []types.ProgressInfo             `json:"progress"`
	Gauge      progress.Gauge                   `json:"gauge"`
	Operations map[string]status.OperationState `json:"operations"`
}

type ErrorsResponse struct {
	FileErrors     []types.FileErrorInfo `json:"fileErrors"`
	RecoveryErrors []types.FileErrorInfo `json:"recoveryErrors"`
	LastErrorTime  *time.Time            `json:"lastErrorTime,omitempty"`
	CurrentAlert   *alerts.Alert         `json:"currentAlert,omitempty"`
	Messages       []types.StatusMessage `json:"messages"`
}

type TriggerResponse struct {
	SessionID string `json:"sessionId"`
	Started   bool   `json:"started"`
}

type ToggleResponse struct {
	Service string `json:"service"`
	Running bool   `json:"running"`
}

type PublishResponse struct {
	ID   string      `json:"id"`
	Kind events.Kind `json:"kind"`
}

type StatusControllerInterface interface {
	GetStatus(ctx context.Context) (status.Snapshot, error)
	GetProgress(ctx context.Context) (*ProgressResponse, error)
	GetErrors(ctx context.Context) (*ErrorsResponse, error)
	TriggerRecovery(ctx context.Context) (*TriggerResponse, error)
	ClearPendingRecovery(ctx context.Context) (int, error)
	ToggleService(ctx context.Context, name string) (*ToggleResponse, error)
	ClearMessages(ctx context.Context) error
	DismissAlert(ctx context.Context) error
	PublishEvent(ctx context.Context, body []byte) (*PublishResponse, error)
	RecentSessions(ctx context.Context, limit int) ([]types.RecoverySessionState, error)
}

func New(aggregator Aggregator, history SessionHistory, channel *events.Channel) *StatusController {
	return &StatusController{
		aggregator: aggregator,
		history:    history,
		channel:    channel,
		log:        logger.New("statusController"),
	}
}

func (c *StatusController) GetStatus(ctx context.Context) (status.Snapshot, error) {
	snapshot, err := c.aggregator.Snapshot(ctx)
	if err != nil {
		return status.Snapshot{}, c.log.Function("GetStatus").Err("failed to get snapshot", err)
	}
	return snapshot, nil
}

func (c *StatusController) GetProgress(ctx context.Context) (*ProgressResponse, error) {
	snapshot, err := c.GetStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &ProgressResponse{
		Progress:   snapshot.Progress,
		Gauge:      snapshot.Gauge,
		Operations: snapshot.Operations,
	}, nil
}

func (c *StatusController) GetErrors(ctx context.Context) (*ErrorsResponse, error) {
	snapshot, err := c.GetStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &ErrorsResponse{
		FileErrors:     snapshot.FileErrors,
		RecoveryErrors: snapshot.RecoveryErrors,
		LastErrorTime:  snapshot.LastErrorTime,
		CurrentAlert:   snapshot.CurrentAlert,
		Messages:       snapshot.Messages,
	}, nil
}

func (c *StatusController) TriggerRecovery(ctx context.Context) (*TriggerResponse, error) {
	log := logger.NewWithContext(ctx, "statusController").Function("TriggerRecovery")

	sessionID, started, err := c.aggregator.TriggerManualRecovery(ctx)
	if err != nil {
		return nil, log.Err("failed to trigger recovery", err)
	}

	log.Info("Manual recovery requested", "sessionID", sessionID, "started", started)
	return &TriggerResponse{SessionID: sessionID, Started: started}, nil
}

func (c *StatusController) ClearPendingRecovery(ctx context.Context) (int, error) {
	cleared, err := c.aggregator.ClearPendingRecovery(ctx)
	if err != nil {
		return 0, c.log.Function("ClearPendingRecovery").Err("failed to clear pending recovery", err)
	}
	return cleared, nil
}

func (c *StatusController) ToggleService(ctx context.Context, name string) (*ToggleResponse, error) {
	log := logger.NewWithContext(ctx, "statusController").Function("ToggleService")

	if name == "" {
		return nil, fmt.Errorf("%w: service name is required", ErrValidation)
	}

	running, err := c.aggregator.ToggleExternalService(ctx, name)
	if errors.Is(err, status.ErrUnknownService) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, log.Err("failed to toggle service", err, "service", name)
	}

	return &ToggleResponse{Service: name, Running: running}, nil
}

func (c *StatusController) ClearMessages(ctx context.Context) error {
	return c.aggregator.ClearMessages(ctx)
}

func (c *StatusController) DismissAlert(ctx context.Context) error {
	return c.aggregator.DismissAlert(ctx)
}

// PublishEvent ingests an envelope from an external producer
func (c *StatusController) PublishEvent(ctx context.Context, body []byte) (*PublishResponse, error) {
	log := logger.NewWithContext(ctx, "statusController").Function("PublishEvent")

	envelope, event, err := events.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if update, ok := event.(events.ProgressUpdated); ok && update.ID == "" {
		return nil, fmt.Errorf("%w: progress id is required", ErrValidation)
	}

	if err := c.channel.Publish(event); err != nil {
		return nil, log.Err("failed to publish event", err, "kind", envelope.Kind)
	}

	log.Debug("External event published", "id", envelope.ID, "kind", envelope.Kind, "origin", envelope.Origin)
	return &PublishResponse{ID: envelope.ID, Kind: envelope.Kind}, nil
}

func (c *StatusController) RecentSessions(ctx context.Context, limit int) ([]types.RecoverySessionState, error) {
	if limit < 0 || limit > MAX_SESSIONS_LIMIT {
		return nil, fmt.Errorf("%w: limit must be between 0 and %d", ErrValidation, MAX_SESSIONS_LIMIT)
	}

	return c.history.Recent(ctx, limit)
}
