package types

import "time"

// MessageType classifies a status message
type MessageType string

const (
	MessageInfo     MessageType = "info"
	MessageSuccess  MessageType = "success"
	MessageWarning  MessageType = "warning"
	MessageError    MessageType = "error"
	MessageProgress MessageType = "progress"
)

// Severity orders message types for alert replacement. Progress messages
// rank below everything and never become alerts.
func (t MessageType) Severity() int {
	switch t {
	case MessageInfo:
		return 1
	case MessageSuccess:
		return 2
	case MessageWarning:
		return 3
	case MessageError:
		return 4
	default:
		return 0
	}
}

// Alertable reports whether messages of this type may occupy the alert slot
func (t MessageType) Alertable() bool {
	return t.Severity() > 0
}

// Valid reports whether t is one of the known message types
func (t MessageType) Valid() bool {
	return t == MessageProgress || t.Severity() > 0
}

type StatusMessage struct {
	Message   string      `json:"message"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewStatusMessage stamps a message with the current time
func NewStatusMessage(message string, messageType MessageType) StatusMessage {
	return StatusMessage{
		Message:   message,
		Type:      messageType,
		Timestamp: time.Now(),
	}
}

// Service names understood by the toggle control and the service flags
const (
	ServiceWebServer = "webServer"
	ServiceCloudSync = "cloudSync"
	ServiceScheduler = "scheduler"
)
