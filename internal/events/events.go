package events

import (
	"time"

	"statushub/internal/types"
)

// Kind identifies an event family. The set is closed: every Kind has exactly
// one payload struct in this file.
type Kind string

func (k Kind) String() string {
	return string(k)
}

const (
	KindProgressUpdated        Kind = "progressUpdated"
	KindProgressRemoved        Kind = "progressRemoved"
	KindOperationStarted       Kind = "operationStarted"
	KindOperationCompleted     Kind = "operationCompleted"
	KindOperationFailed        Kind = "operationFailed"
	KindStatusMessagePosted    Kind = "statusMessagePosted"
	KindStateRequested         Kind = "stateRequested"
	KindServiceStateChanged    Kind = "serviceStateChanged"
	KindFileAccessError        Kind = "fileAccessError"
	KindFilePendingRecovery    Kind = "filePendingRecovery"
	KindRecoveryStarted        Kind = "recoveryStarted"
	KindRecoveryProgress       Kind = "recoveryProgress"
	KindRecoveryFileFailed     Kind = "recoveryFileFailed"
	KindRecoveryFileRecovered  Kind = "recoveryFileRecovered"
	KindRecoveryCompleted      Kind = "recoveryCompleted"
	KindRecoveryFailed         Kind = "recoveryFailed"
	KindRecoveryRetryScheduled Kind = "recoveryRetryScheduled"
)

// Event is implemented only by the payload types below
type Event interface {
	Kind() Kind
	sealed()
}

type ProgressUpdated struct {
	ID      string `json:"id"`
	Current int64  `json:"current"`
	Total   int64  `json:"total"`
	Detail  string `json:"detail,omitempty"`
}

// Info converts the event into the registry representation
func (e ProgressUpdated) Info() types.ProgressInfo {
	return types.ProgressInfo{ID: e.ID, Current: e.Current, Total: e.Total, Detail: e.Detail}
}

type ProgressRemoved struct {
	ID string `json:"id"`
}

type OperationStarted struct {
	Operation string            `json:"operation"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type OperationCompleted struct {
	Operation string            `json:"operation"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type OperationFailed struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

type StatusMessagePosted struct {
	Message string            `json:"message"`
	Type    types.MessageType `json:"type"`
}

// StateRequested asks active producers to re-publish their latest progress
type StateRequested struct{}

// ServiceStateChanged is the only event that moves the coarse service flags
type ServiceStateChanged struct {
	Service string `json:"service"`
	Running bool   `json:"running"`
}

// FileAccessError is a file-system failure not tied to a recovery session
type FileAccessError struct {
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Error     string    `json:"error"`
	ErrorType string    `json:"errorType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e FileAccessError) Info() types.FileErrorInfo {
	return types.FileErrorInfo{
		Error:     e.Error,
		Path:      e.Path,
		Filename:  e.Filename,
		Timestamp: e.Timestamp,
		ErrorType: e.ErrorType,
	}
}

type FilePendingRecovery struct {
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

func (e FilePendingRecovery) Info() types.PendingRecoveryInfo {
	return types.PendingRecoveryInfo{Filename: e.Filename, Path: e.Path, Timestamp: e.Timestamp}
}

type RecoveryStarted struct {
	SessionID  string    `json:"sessionId,omitempty"`
	FilesTotal int       `json:"filesTotal,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type RecoveryProgress struct {
	SessionID      string    `json:"sessionId,omitempty"`
	Path           string    `json:"path,omitempty"`
	Filename       string    `json:"filename,omitempty"`
	BytesProcessed uint64    `json:"bytesProcessed"`
	FilesProcessed int       `json:"filesProcessed"`
	FilesTotal     int       `json:"filesTotal"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecoveryFileFailed is a file-level failure; the session keeps going
type RecoveryFileFailed struct {
	SessionID string    `json:"sessionId,omitempty"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Error     string    `json:"error"`
	ErrorType string    `json:"errorType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e RecoveryFileFailed) Info() types.FileErrorInfo {
	return types.FileErrorInfo{
		Error:     e.Error,
		Path:      e.Path,
		Filename:  e.Filename,
		Timestamp: e.Timestamp,
		ErrorType: e.ErrorType,
	}
}

type RecoveryFileRecovered struct {
	SessionID string    `json:"sessionId,omitempty"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

type RecoveryCompleted struct {
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RecoveryFailed is session-fatal
type RecoveryFailed struct {
	SessionID string    `json:"sessionId,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// RecoveryRetryScheduled carries the external retry policy's counters
type RecoveryRetryScheduled struct {
	Attempt    int `json:"attempt"`
	QueueCount int `json:"queueCount"`
}

func (ProgressUpdated) Kind() Kind        { return KindProgressUpdated }
func (ProgressRemoved) Kind() Kind        { return KindProgressRemoved }
func (OperationStarted) Kind() Kind       { return KindOperationStarted }
func (OperationCompleted) Kind() Kind     { return KindOperationCompleted }
func (OperationFailed) Kind() Kind        { return KindOperationFailed }
func (StatusMessagePosted) Kind() Kind    { return KindStatusMessagePosted }
func (StateRequested) Kind() Kind         { return KindStateRequested }
func (ServiceStateChanged) Kind() Kind    { return KindServiceStateChanged }
func (FileAccessError) Kind() Kind        { return KindFileAccessError }
func (FilePendingRecovery) Kind() Kind    { return KindFilePendingRecovery }
func (RecoveryStarted) Kind() Kind        { return KindRecoveryStarted }
func (RecoveryProgress) Kind() Kind       { return KindRecoveryProgress }
func (RecoveryFileFailed) Kind() Kind     { return KindRecoveryFileFailed }
func (RecoveryFileRecovered) Kind() Kind  { return KindRecoveryFileRecovered }
func (RecoveryCompleted) Kind() Kind      { return KindRecoveryCompleted }
func (RecoveryFailed) Kind() Kind         { return KindRecoveryFailed }
func (RecoveryRetryScheduled) Kind() Kind { return KindRecoveryRetryScheduled }

func (ProgressUpdated) sealed()        {}
func (ProgressRemoved) sealed()        {}
func (OperationStarted) sealed()       {}
func (OperationCompleted) sealed()     {}
func (OperationFailed) sealed()        {}
func (StatusMessagePosted) sealed()    {}
func (StateRequested) sealed()         {}
func (ServiceStateChanged) sealed()    {}
func (FileAccessError) sealed()        {}
func (FilePendingRecovery) sealed()    {}
func (RecoveryStarted) sealed()        {}
func (RecoveryProgress) sealed()       {}
func (RecoveryFileFailed) sealed()     {}
func (RecoveryFileRecovered) sealed()  {}
func (RecoveryCompleted) sealed()      {}
func (RecoveryFailed) sealed()         {}
func (RecoveryRetryScheduled) sealed() {}

// coalescing keys: a queued event with a key is replaced by a newer event with
// the same key until an event closing that key is queued behind it.

func (e ProgressUpdated) coalesceKey() string  { return "progress:" + e.ID }
func (e RecoveryProgress) coalesceKey() string { return "recovery:" + e.SessionID }

func (e ProgressRemoved) closesKey() string   { return "progress:" + e.ID }
func (e RecoveryCompleted) closesKey() string { return "recovery:" + e.SessionID }
func (e RecoveryFailed) closesKey() string    { return "recovery:" + e.SessionID }

type coalescer interface {
	coalesceKey() string
}

type keyCloser interface {
	closesKey() string
}

// essential events carry lifecycle or session-fatal state. A full mailbox
// still takes them into a reserve of the same size; everything else is
// dropped once the mailbox reaches its capacity.
func essential(event Event) bool {
	switch e := event.(type) {
	case ProgressUpdated, ProgressRemoved,
		OperationStarted, OperationCompleted, OperationFailed,
		RecoveryStarted, RecoveryCompleted, RecoveryFailed,
		RecoveryRetryScheduled, ServiceStateChanged:
		return true
	case StatusMessagePosted:
		return e.Type != types.MessageInfo && e.Type != types.MessageProgress
	default:
		return false
	}
}
