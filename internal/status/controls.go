package status

import (
	"context"
	"fmt"
	"sort"

	"statushub/internal/events"
	"statushub/internal/types"
)

// Snapshot returns the current state, bypassing the debounce window
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := a.do(ctx, func() {
		snapshot = a.snapshot()
	})
	return snapshot, err
}

// Subscribe returns a stream of debounced snapshots starting with the
// current one. It also asks producers to re-publish their progress.
func (a *Aggregator) Subscribe(ctx context.Context) (*SnapshotSubscription, error) {
	sub := newSnapshotSubscription(a)
	err := a.do(ctx, func() {
		a.subscribers[sub] = struct{}{}
		sub.offer(a.snapshot())
	})
	if err != nil {
		return nil, err
	}

	a.RequestCurrentState()
	return sub, nil
}

// RequestCurrentState asks active producers to re-publish their latest progress
func (a *Aggregator) RequestCurrentState() {
	if err := a.channel.Publish(events.StateRequested{}); err != nil {
		a.log.Function("RequestCurrentState").Warn("Failed to request current state", "error", err)
	}
}

// TriggerManualRecovery starts a session, or returns the running session's
// id with started=false.
func (a *Aggregator) TriggerManualRecovery(ctx context.Context) (string, bool, error) {
	return a.trigger(ctx, types.TriggerManual)
}

// TriggerAutomaticRecovery is used by scanners that found stuck files
func (a *Aggregator) TriggerAutomaticRecovery(ctx context.Context) (string, bool, error) {
	return a.trigger(ctx, types.TriggerAutomatic)
}

func (a *Aggregator) trigger(ctx context.Context, trigger types.RecoveryTrigger) (string, bool, error) {
	var (
		sessionID string
		started   bool
	)
	err := a.do(ctx, func() {
		sessionID, started = a.beginSession(trigger, "", 0)
		if started {
			a.markDirty()
			a.runRecoverer(sessionID)
		}
	})
	if err != nil {
		return "", false, err
	}

	return sessionID, started, nil
}

// runRecoverer runs the session outside the loop. Its outcome re-enters
// through the event channel like any other producer's. Called on the loop.
func (a *Aggregator) runRecoverer(sessionID string) {
	if a.recoverer == nil {
		a.log.Function("runRecoverer").Warn("No recoverer configured, session waits for external events", "sessionID", sessionID)
		return
	}

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		log := a.log.Function("runRecoverer")

		err := a.recoverer.Recover(a.ctx, sessionID)
		var terminal events.Event = events.RecoveryCompleted{SessionID: sessionID, Timestamp: a.opts.Clock()}
		if err != nil {
			log.Er("recovery session failed", err, "sessionID", sessionID)
			terminal = events.RecoveryFailed{SessionID: sessionID, Error: err.Error(), Timestamp: a.opts.Clock()}
		}

		// a recoverer that already ended the session makes this a no-op
		if err := a.channel.Publish(terminal); err != nil {
			log.Warn("Failed to publish recovery outcome", "sessionID", sessionID, "error", err)
		}
	}()
}

// ToggleExternalService starts a stopped service or stops a running one and
// returns its new state. The flag itself moves when the resulting
// ServiceStateChanged event is applied.
func (a *Aggregator) ToggleExternalService(ctx context.Context, name string) (bool, error) {
	log := a.log.Function("ToggleExternalService")

	controller, ok := a.controllers[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}

	running := controller.Running()
	var err error
	if running {
		err = controller.Stop(ctx)
	} else {
		err = controller.Start(ctx)
	}
	if err != nil {
		_ = a.channel.Publish(events.StatusMessagePosted{
			Message: fmt.Sprintf("Failed to toggle %s: %v", name, err),
			Type:    types.MessageError,
		})
		return running, log.Err("failed to toggle service", err, "service", name, "wasRunning", running)
	}

	now := controller.Running()
	if err := a.channel.Publish(events.ServiceStateChanged{Service: name, Running: now}); err != nil {
		return now, log.Err("failed to publish service state", err, "service", name)
	}

	log.Info("Service toggled", "service", name, "running", now)
	return now, nil
}

// Services lists the toggleable service names
func (a *Aggregator) Services() []string {
	names := make([]string, 0, len(a.controllers))
	for name := range a.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearMessages empties the message history and the temporary status line
func (a *Aggregator) ClearMessages(ctx context.Context) error {
	return a.do(ctx, func() {
		a.messages = nil
		a.clearTemporary()
		a.markDirty()
	})
}

func (a *Aggregator) DismissAlert(ctx context.Context) error {
	return a.do(ctx, func() {
		a.collector.DismissAlert()
		a.markDirty()
	})
}

// ClearPendingRecovery empties the pending backlog and returns how many
// entries were removed
func (a *Aggregator) ClearPendingRecovery(ctx context.Context) (int, error) {
	var cleared int
	err := a.do(ctx, func() {
		cleared = a.coordinator.ClearPending()
		a.markDirty()
	})
	return cleared, err
}
