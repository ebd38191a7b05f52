package types

import "time"

// FileErrorInfo describes one failed file access or recovery. Immutable once created.
type FileErrorInfo struct {
	Error     string    `json:"error"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	ErrorType string    `json:"errorType,omitempty"`
}

// PendingRecoveryInfo is a file known to need recovery but not yet retried
type PendingRecoveryInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// RecoveryState is the coarse state of the recovery session machine
type RecoveryState string

const (
	RecoveryIdle       RecoveryState = "idle"
	RecoveryInProgress RecoveryState = "inProgress"
	RecoveryError      RecoveryState = "error"
	RecoveryComplete   RecoveryState = "complete"
)

// Terminal reports whether the state ends a session
func (s RecoveryState) Terminal() bool {
	return s == RecoveryError || s == RecoveryComplete
}

// RecoveryTrigger records what started a session
type RecoveryTrigger string

const (
	TriggerAutomatic RecoveryTrigger = "automatic"
	TriggerManual    RecoveryTrigger = "manual"
	TriggerExternal  RecoveryTrigger = "external"
)

type RecoverySessionState struct {
	State           RecoveryState   `json:"state"`
	SessionID       string          `json:"sessionId,omitempty"`
	Trigger         RecoveryTrigger `json:"trigger,omitempty"`
	StartTime       *time.Time      `json:"startTime,omitempty"`
	EndTime         *time.Time      `json:"endTime,omitempty"`
	BytesProcessed  uint64          `json:"bytesProcessed"`
	FilesProcessed  int             `json:"filesProcessed"`
	FilesTotal      int             `json:"filesTotal"`
	Errors          []FileErrorInfo `json:"errors"`
	ErrorCount      int             `json:"errorCount"`
	FailureReason   string          `json:"failureReason,omitempty"`
	RetryQueueCount int             `json:"retryQueueCount"`
	RetryAttempt    int             `json:"retryAttempt"`
}

// Clone returns a deep copy safe to hand to other goroutines
func (s RecoverySessionState) Clone() RecoverySessionState {
	clone := s
	clone.Errors = append([]FileErrorInfo{}, s.Errors...)
	if s.StartTime != nil {
		start := *s.StartTime
		clone.StartTime = &start
	}
	if s.EndTime != nil {
		end := *s.EndTime
		clone.EndTime = &end
	}
	return clone
}

// Duration of the session so far, or of the whole session once it ended
func (s RecoverySessionState) Duration(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return now.Sub(*s.StartTime)
}
