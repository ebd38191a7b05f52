// Package recovery implements the recovery session state machine and the
// pending recovery backlog.
package recovery

import (
	"errors"
	"fmt"
	"time"

	"statushub/internal/alerts"
	"statushub/internal/types"

	"github.com/google/uuid"
)

var (
	ErrNoActiveSession = errors.New("no recovery session in progress")
	ErrSessionMismatch = errors.New("event belongs to a different recovery session")
)

// ProgressReport is one progress step of the active session
type ProgressReport struct {
	SessionID      string
	Filename       string
	BytesProcessed uint64
	FilesProcessed int
	FilesTotal     int
}

// Coordinator drives idle -> inProgress -> complete|error -> idle. It holds
// no goroutines or timers; the owner calls Reset when the dismissal fires.
type Coordinator struct {
	session   types.RecoverySessionState
	errors    *alerts.Ring[types.FileErrorInfo]
	pending   []types.PendingRecoveryInfo
	maxErrors int
	now       func() time.Time
	newID     func() string
}

type Option func(*Coordinator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator replaces the uuid session id generator
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// WithMaxErrors bounds the per-session error list
func WithMaxErrors(max int) Option {
	return func(c *Coordinator) { c.maxErrors = max }
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		session:   types.RecoverySessionState{State: types.RecoveryIdle},
		maxErrors: alerts.DEFAULT_MAX_ERRORS,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.errors = alerts.NewRing[types.FileErrorInfo](c.maxErrors)
	return c
}

// Begin starts a new session unless one is already in progress, in which case
// the running session's id is returned with started=false. A terminal session
// is replaced directly without passing through idle. sessionID may be empty.
func (c *Coordinator) Begin(trigger types.RecoveryTrigger, sessionID string) (string, bool) {
	if c.session.State == types.RecoveryInProgress {
		return c.session.SessionID, false
	}

	if sessionID == "" {
		sessionID = c.newID()
	}
	start := c.now()
	c.errors.Reset()
	c.session = types.RecoverySessionState{
		State:           types.RecoveryInProgress,
		SessionID:       sessionID,
		Trigger:         trigger,
		StartTime:       &start,
		RetryQueueCount: c.session.RetryQueueCount,
		RetryAttempt:    c.session.RetryAttempt,
	}

	return sessionID, true
}

// SetFilesTotal records how many files the session expects to handle
func (c *Coordinator) SetFilesTotal(sessionID string, total int) error {
	if err := c.checkActive(sessionID); err != nil {
		return err
	}
	if total > 0 {
		c.session.FilesTotal = total
	}
	return nil
}

// Progress applies a step and returns the entry to publish under the
// fileRecovery progress id. BytesProcessed and FilesProcessed never go back.
func (c *Coordinator) Progress(report ProgressReport) (types.ProgressInfo, error) {
	if err := c.checkActive(report.SessionID); err != nil {
		return types.ProgressInfo{}, err
	}

	if report.BytesProcessed > c.session.BytesProcessed {
		c.session.BytesProcessed = report.BytesProcessed
	}
	if report.FilesProcessed > c.session.FilesProcessed {
		c.session.FilesProcessed = report.FilesProcessed
	}
	if report.FilesTotal > 0 {
		c.session.FilesTotal = report.FilesTotal
	}

	return c.progressInfo(report.Filename), nil
}

// FileFailed records a file-level failure. The session keeps running.
func (c *Coordinator) FileFailed(sessionID string, info types.FileErrorInfo) error {
	if err := c.checkActive(sessionID); err != nil {
		return err
	}
	if info.Timestamp.IsZero() {
		info.Timestamp = c.now()
	}
	c.errors.Append(info)
	c.session.ErrorCount++
	return nil
}

// FileRecovered drops the pending entry with exactly this path
func (c *Coordinator) FileRecovered(path string) bool {
	return c.RemovePending(path)
}

// Complete ends the active session successfully
func (c *Coordinator) Complete(sessionID string) (types.RecoverySessionState, error) {
	if err := c.checkActive(sessionID); err != nil {
		return types.RecoverySessionState{}, err
	}
	c.finish(types.RecoveryComplete, "")
	return c.State(), nil
}

// Fail ends the active session with a session-level error
func (c *Coordinator) Fail(sessionID, reason string) (types.RecoverySessionState, error) {
	if err := c.checkActive(sessionID); err != nil {
		return types.RecoverySessionState{}, err
	}
	c.finish(types.RecoveryError, reason)
	return c.State(), nil
}

// Reset moves a terminal session back to idle. Only the session with the
// given id is reset so a stale dismissal cannot touch a newer session.
func (c *Coordinator) Reset(sessionID string) bool {
	if !c.session.State.Terminal() || c.session.SessionID != sessionID {
		return false
	}
	c.errors.Reset()
	c.session = types.RecoverySessionState{
		State:           types.RecoveryIdle,
		RetryQueueCount: c.session.RetryQueueCount,
		RetryAttempt:    c.session.RetryAttempt,
	}
	return true
}

// RetryScheduled records the external retry policy's counters
func (c *Coordinator) RetryScheduled(attempt, queueCount int) {
	if attempt < 0 {
		attempt = 0
	}
	if queueCount < 0 {
		queueCount = 0
	}
	c.session.RetryAttempt = attempt
	c.session.RetryQueueCount = queueCount
}

// AddPending adds a file to the backlog. A path already pending only has its
// timestamp refreshed. Returns true when the path is new.
func (c *Coordinator) AddPending(info types.PendingRecoveryInfo) bool {
	if info.Timestamp.IsZero() {
		info.Timestamp = c.now()
	}
	for i, existing := range c.pending {
		if existing.Path == info.Path {
			c.pending[i].Timestamp = info.Timestamp
			return false
		}
	}
	c.pending = append(c.pending, info)
	return true
}

func (c *Coordinator) RemovePending(path string) bool {
	for i, existing := range c.pending {
		if existing.Path == path {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// ClearPending empties the backlog and returns how many entries were dropped
func (c *Coordinator) ClearPending() int {
	cleared := len(c.pending)
	c.pending = nil
	return cleared
}

func (c *Coordinator) Pending() []types.PendingRecoveryInfo {
	return append([]types.PendingRecoveryInfo{}, c.pending...)
}

func (c *Coordinator) PendingCount() int {
	return len(c.pending)
}

// State returns a copy of the session
func (c *Coordinator) State() types.RecoverySessionState {
	state := c.session.Clone()
	state.Errors = c.errors.Items()
	if state.Errors == nil {
		state.Errors = []types.FileErrorInfo{}
	}
	return state
}

func (c *Coordinator) Active() bool {
	return c.session.State == types.RecoveryInProgress
}

func (c *Coordinator) SessionID() string {
	return c.session.SessionID
}

func (c *Coordinator) checkActive(sessionID string) error {
	if c.session.State != types.RecoveryInProgress {
		return ErrNoActiveSession
	}
	if sessionID != "" && sessionID != c.session.SessionID {
		return fmt.Errorf("%w: got %s, active %s", ErrSessionMismatch, sessionID, c.session.SessionID)
	}
	return nil
}

func (c *Coordinator) finish(state types.RecoveryState, reason string) {
	end := c.now()
	c.session.State = state
	c.session.EndTime = &end
	c.session.FailureReason = reason
}

func (c *Coordinator) progressInfo(detail string) types.ProgressInfo {
	return types.ProgressInfo{
		ID:      types.OpFileRecovery,
		Current: int64(c.session.FilesProcessed),
		Total:   int64(c.session.FilesTotal),
		Detail:  detail,
	}.Normalized()
}
