package models

import (
	"time"

	"statushub/internal/types"

	"gorm.io/datatypes"
)

// RecoverySession is a finished recovery session kept for history
type RecoverySession struct {
	BaseUUIDModel
	SessionID       string                                   `gorm:"type:text;not null;uniqueIndex" json:"sessionId"`
	State           types.RecoveryState                      `gorm:"type:text;not null;index"       json:"state"`
	Trigger         types.RecoveryTrigger                    `gorm:"type:text"                      json:"trigger"`
	StartedAt       *time.Time                               `                                      json:"startedAt"`
	EndedAt         *time.Time                               `gorm:"index"                          json:"endedAt"`
	DurationMs      int64                                    `gorm:"not null;default:0"             json:"durationMs"`
	BytesProcessed  int64                                    `gorm:"not null;default:0"             json:"bytesProcessed"`
	FilesProcessed  int                                      `gorm:"not null;default:0"             json:"filesProcessed"`
	FilesTotal      int                                      `gorm:"not null;default:0"             json:"filesTotal"`
	ErrorCount      int                                      `gorm:"not null;default:0"             json:"errorCount"`
	FailureReason   string                                   `gorm:"type:text"                      json:"failureReason,omitempty"`
	RetryAttempt    int                                      `gorm:"not null;default:0"             json:"retryAttempt"`
	RetryQueueCount int                                      `gorm:"not null;default:0"             json:"retryQueueCount"`
	Errors          datatypes.JSONSlice[types.FileErrorInfo] `                                      json:"errors"`
}

// NewRecoverySession converts a terminal session state into a history row
func NewRecoverySession(state types.RecoverySessionState) *RecoverySession {
	end := time.Now()
	if state.EndTime != nil {
		end = *state.EndTime
	}

	return &RecoverySession{
		SessionID:       state.SessionID,
		State:           state.State,
		Trigger:         state.Trigger,
		StartedAt:       state.StartTime,
		EndedAt:         &end,
		DurationMs:      state.Duration(end).Milliseconds(),
		BytesProcessed:  int64(state.BytesProcessed),
		FilesProcessed:  state.FilesProcessed,
		FilesTotal:      state.FilesTotal,
		ErrorCount:      state.ErrorCount,
		FailureReason:   state.FailureReason,
		RetryAttempt:    state.RetryAttempt,
		RetryQueueCount: state.RetryQueueCount,
		Errors:          datatypes.JSONSlice[types.FileErrorInfo](state.Errors),
	}
}

// SessionState converts the row back into the published session shape
func (m *RecoverySession) SessionState() types.RecoverySessionState {
	errs := []types.FileErrorInfo(m.Errors)
	if errs == nil {
		errs = []types.FileErrorInfo{}
	}

	return types.RecoverySessionState{
		State:           m.State,
		SessionID:       m.SessionID,
		Trigger:         m.Trigger,
		StartTime:       m.StartedAt,
		EndTime:         m.EndedAt,
		BytesProcessed:  uint64(m.BytesProcessed),
		FilesProcessed:  m.FilesProcessed,
		FilesTotal:      m.FilesTotal,
		Errors:          errs,
		ErrorCount:      m.ErrorCount,
		FailureReason:   m.FailureReason,
		RetryQueueCount: m.RetryQueueCount,
		RetryAttempt:    m.RetryAttempt,
	}
}
