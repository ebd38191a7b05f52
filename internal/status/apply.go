package status

import (
	"errors"
	"fmt"
	"time"

	"statushub/internal/alerts"
	"statushub/internal/events"
	"statushub/internal/recovery"
	"statushub/internal/types"
)

const (
	messageKey = "message"
	serviceKey = "service:"
)

func (a *Aggregator) apply(event events.Event) {
	switch e := event.(type) {
	case events.ProgressUpdated:
		a.applyProgress(e)
	case events.ProgressRemoved:
		a.removeProgress(e.ID)
	case events.OperationStarted:
		a.applyOperationStarted(e)
	case events.OperationCompleted:
		a.applyOperationCompleted(e)
	case events.OperationFailed:
		a.applyOperationFailed(e)
	case events.StatusMessagePosted:
		a.applyStatusMessage(e)
	case events.StateRequested:
		// answered by producers
		return
	case events.ServiceStateChanged:
		a.applyServiceState(e)
	case events.FileAccessError:
		a.collector.RecordFileAccessError(e.Info())
	case events.FilePendingRecovery:
		a.coordinator.AddPending(e.Info())
	case events.RecoveryStarted:
		a.beginSession(types.TriggerExternal, e.SessionID, e.FilesTotal)
	case events.RecoveryProgress:
		a.applyRecoveryProgress(e)
	case events.RecoveryFileFailed:
		a.applyRecoveryFileFailed(e)
	case events.RecoveryFileRecovered:
		a.coordinator.FileRecovered(e.Path)
	case events.RecoveryCompleted:
		a.applyRecoveryCompleted(e)
	case events.RecoveryFailed:
		a.applyRecoveryFailed(e)
	case events.RecoveryRetryScheduled:
		a.coordinator.RetryScheduled(e.Attempt, e.QueueCount)
	default:
		a.log.Function("apply").Warn("Unhandled event kind", "kind", event.Kind())
		return
	}

	a.markDirty()
}

func (a *Aggregator) applyProgress(e events.ProgressUpdated) {
	info := e.Info()
	if info.ID == "" {
		a.log.Function("applyProgress").Warn("Progress update without id ignored")
		return
	}
	if err := info.Validate(); err != nil {
		a.log.Function("applyProgress").Debug("Normalizing progress", "error", err)
		info = info.Normalized()
	}

	a.registry.Upsert(info)

	state := a.operation(info.ID)
	state.Current = info.Current
	state.Total = info.Total
	state.Detail = info.Detail
	state.Active = true
	a.operations[info.ID] = state

	a.setTemporary(info.ID, progressLine(info), types.MessageProgress)
}

// removeProgress ends an entry. A status line still showing that entry is
// dismissed after the grace period unless something newer replaces it.
func (a *Aggregator) removeProgress(id string) {
	a.registry.Remove(id)
	if state, ok := a.operations[id]; ok {
		state.Active = false
		state.UpdatedAt = a.opts.Clock()
		a.operations[id] = state
	}
	if a.temporary.Key == id && a.temporary.Message != "" {
		a.scheduleDismissal(id, a.temporary.Generation, "")
	}
}

func (a *Aggregator) applyOperationStarted(e events.OperationStarted) {
	state := a.operation(e.Operation)
	state.Active = true
	state.LastError = ""
	a.operations[e.Operation] = state

	a.setTemporary(e.Operation, types.OperationLabel(e.Operation)+"...", types.MessageInfo)
}

func (a *Aggregator) applyOperationCompleted(e events.OperationCompleted) {
	a.removeProgress(e.Operation)
	a.operations[e.Operation] = a.operation(e.Operation)

	generation := a.setTemporary(e.Operation, types.OperationLabel(e.Operation)+" complete", types.MessageSuccess)
	a.scheduleDismissal(e.Operation, generation, "")
}

// applyOperationFailed treats the failure as fatal for that operation: it is
// alerted unconditionally.
func (a *Aggregator) applyOperationFailed(e events.OperationFailed) {
	a.removeProgress(e.Operation)
	state := a.operation(e.Operation)
	state.LastError = e.Error
	a.operations[e.Operation] = state

	line := fmt.Sprintf("%s failed: %s", types.OperationLabel(e.Operation), e.Error)
	a.appendMessage(line, types.MessageError)
	a.collector.SetAlert(alerts.Alert{Message: line, Type: types.MessageError, Timestamp: a.opts.Clock()})

	generation := a.setTemporary(e.Operation, line, types.MessageError)
	a.scheduleDismissal(e.Operation, generation, "")
}

func (a *Aggregator) applyStatusMessage(e events.StatusMessagePosted) {
	messageType := e.Type
	if !messageType.Valid() {
		messageType = types.MessageInfo
	}

	message := a.appendMessage(e.Message, messageType)
	a.collector.OfferAlert(alerts.Alert{Message: message.Message, Type: message.Type, Timestamp: message.Timestamp})

	generation := a.setTemporary(messageKey, message.Message, message.Type)
	a.scheduleDismissal(messageKey, generation, "")
}

func (a *Aggregator) applyServiceState(e events.ServiceStateChanged) {
	if e.Service == "" {
		return
	}
	a.services[e.Service] = e.Running

	verb := "stopped"
	if e.Running {
		verb = "started"
	}
	key := serviceKey + e.Service
	generation := a.setTemporary(key, e.Service+" "+verb, types.MessageInfo)
	a.scheduleDismissal(key, generation, "")
}

// beginSession starts a recovery session unless one is running. Starting a
// new session cancels the dismissal still pending for the previous one.
func (a *Aggregator) beginSession(trigger types.RecoveryTrigger, sessionID string, filesTotal int) (string, bool) {
	log := a.log.Function("beginSession")

	id, started := a.coordinator.Begin(trigger, sessionID)
	if !started {
		log.Debug("Recovery already in progress, trigger ignored", "sessionID", id, "trigger", trigger)
		return id, false
	}

	a.cancelDismissal(types.OpFileRecovery)
	a.collector.ResetRecoveryErrors()
	if filesTotal > 0 {
		_ = a.coordinator.SetFilesTotal(id, filesTotal)
	}

	info := types.ProgressInfo{ID: types.OpFileRecovery, Total: int64(filesTotal)}
	a.registry.Upsert(info)
	state := a.operation(types.OpFileRecovery)
	state.Active = true
	state.Current = 0
	state.Total = info.Total
	state.Detail = ""
	state.LastError = ""
	a.operations[types.OpFileRecovery] = state

	a.setTemporary(types.OpFileRecovery, types.OperationLabel(types.OpFileRecovery)+"...", types.MessageProgress)
	log.Info("Recovery session started", "sessionID", id, "trigger", trigger, "pending", a.coordinator.PendingCount())

	return id, true
}

func (a *Aggregator) applyRecoveryProgress(e events.RecoveryProgress) {
	if !a.coordinator.Active() {
		a.beginSession(types.TriggerExternal, e.SessionID, e.FilesTotal)
	}

	info, err := a.coordinator.Progress(recovery.ProgressReport{
		SessionID:      e.SessionID,
		Filename:       e.Filename,
		BytesProcessed: e.BytesProcessed,
		FilesProcessed: e.FilesProcessed,
		FilesTotal:     e.FilesTotal,
	})
	if err != nil {
		a.log.Function("applyRecoveryProgress").Debug("Stale recovery progress ignored", "sessionID", e.SessionID, "error", err)
		return
	}

	a.registry.Upsert(info)
	state := a.operation(types.OpFileRecovery)
	state.Current = info.Current
	state.Total = info.Total
	state.Detail = info.Detail
	state.Active = true
	a.operations[types.OpFileRecovery] = state

	a.setTemporary(types.OpFileRecovery, progressLine(info), types.MessageProgress)
}

// applyRecoveryFileFailed is a file level failure: recorded, never alerted
func (a *Aggregator) applyRecoveryFileFailed(e events.RecoveryFileFailed) {
	info := e.Info()
	if info.Timestamp.IsZero() {
		info.Timestamp = a.opts.Clock()
	}
	a.collector.RecordRecoveryError(info)

	if err := a.coordinator.FileFailed(e.SessionID, info); err != nil {
		a.log.Function("applyRecoveryFileFailed").Debug("File failure outside the active session", "path", e.Path, "error", err)
	}
}

func (a *Aggregator) applyRecoveryCompleted(e events.RecoveryCompleted) {
	session, err := a.coordinator.Complete(e.SessionID)
	if err != nil {
		a.log.Function("applyRecoveryCompleted").Debug("Completion for inactive session ignored", "sessionID", e.SessionID, "error", err)
		return
	}

	a.endRecoveryProgress("")

	line := fmt.Sprintf("Recovery complete: %d files processed", session.FilesProcessed)
	if session.ErrorCount > 0 {
		line = fmt.Sprintf("%s, %d failed", line, session.ErrorCount)
	}
	a.appendMessage(line, types.MessageSuccess)

	generation := a.setTemporary(types.OpFileRecovery, line, types.MessageSuccess)
	a.scheduleDismissal(types.OpFileRecovery, generation, session.SessionID)
	a.recordSession(session)
}

// applyRecoveryFailed always raises the alert, even when no session matches,
// so a fatal error is never lost.
func (a *Aggregator) applyRecoveryFailed(e events.RecoveryFailed) {
	reason := e.Error
	if reason == "" {
		reason = "unknown error"
	}
	line := "Recovery failed: " + reason

	a.appendMessage(line, types.MessageError)
	a.collector.SetAlert(alerts.Alert{Message: line, Type: types.MessageError, Timestamp: a.opts.Clock()})

	session, err := a.coordinator.Fail(e.SessionID, reason)
	if err != nil {
		if !errors.Is(err, recovery.ErrNoActiveSession) {
			a.log.Function("applyRecoveryFailed").Warn("Failure for another session", "sessionID", e.SessionID, "error", err)
		}
		return
	}

	a.endRecoveryProgress(reason)

	generation := a.setTemporary(types.OpFileRecovery, line, types.MessageError)
	a.scheduleDismissal(types.OpFileRecovery, generation, session.SessionID)
	a.recordSession(session)
}

func (a *Aggregator) endRecoveryProgress(lastError string) {
	a.removeProgress(types.OpFileRecovery)
	state := a.operation(types.OpFileRecovery)
	state.Active = false
	state.LastError = lastError
	a.operations[types.OpFileRecovery] = state
}

func (a *Aggregator) operation(id string) OperationState {
	state, ok := a.operations[id]
	if !ok {
		state = OperationState{ID: id, Label: types.OperationLabel(id)}
	}
	state.UpdatedAt = a.opts.Clock()
	return state
}

func (a *Aggregator) appendMessage(text string, messageType types.MessageType) types.StatusMessage {
	message := types.StatusMessage{Message: text, Type: messageType, Timestamp: a.opts.Clock()}
	a.messages = append(a.messages, message)
	if overflow := len(a.messages) - a.opts.MaxMessages; overflow > 0 {
		a.messages = append([]types.StatusMessage(nil), a.messages[overflow:]...)
	}
	return message
}

// setTemporary replaces the temporary status line and returns its generation.
// A pending dismissal for an older generation will no longer clear it.
func (a *Aggregator) setTemporary(key, message string, messageType types.MessageType) uint64 {
	a.generation++
	at := a.opts.Clock()
	a.temporary = TemporaryStatus{
		Message:    message,
		Type:       messageType,
		Key:        key,
		Generation: a.generation,
		SetAt:      &at,
	}
	return a.generation
}

func (a *Aggregator) clearTemporary() {
	a.generation++
	a.temporary = TemporaryStatus{Generation: a.generation}
}

// scheduleDismissal clears the temporary line after the grace period if it
// still has the same key and generation. A non-empty sessionID also returns
// that session to idle.
func (a *Aggregator) scheduleDismissal(key string, generation uint64, sessionID string) {
	a.cancelDismissal(key)

	var timer *time.Timer
	timer = time.AfterFunc(a.opts.DismissalGrace, func() {
		a.post(func() {
			if a.dismissals[key] == timer {
				delete(a.dismissals, key)
			}
			a.dismiss(key, generation, sessionID)
		})
	})
	a.dismissals[key] = timer
}

func (a *Aggregator) cancelDismissal(key string) {
	if timer, ok := a.dismissals[key]; ok {
		timer.Stop()
		delete(a.dismissals, key)
	}
}

func (a *Aggregator) dismiss(key string, generation uint64, sessionID string) {
	changed := false
	if sessionID != "" && a.coordinator.Reset(sessionID) {
		changed = true
	}
	if a.temporary.Key == key && a.temporary.Generation == generation {
		a.clearTemporary()
		changed = true
	}
	if changed {
		a.markDirty()
	}
}

func (a *Aggregator) recordSession(session types.RecoverySessionState) {
	if a.recorder == nil {
		return
	}

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		if err := a.recorder.RecordSession(a.ctx, session); err != nil {
			a.log.Function("recordSession").Er("failed to record recovery session", err, "sessionID", session.SessionID)
		}
	}()
}

func progressLine(info types.ProgressInfo) string {
	line := types.OperationLabel(info.ID)
	if info.Detail != "" {
		line += ": " + info.Detail
	}
	if info.Total > 0 {
		line += fmt.Sprintf(" (%d/%d)", info.Current, info.Total)
	}
	return line
}
