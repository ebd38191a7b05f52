// Package alerts holds the bounded error history and the single current alert.
package alerts

import (
	"time"

	"statushub/internal/types"
)

const DEFAULT_MAX_ERRORS = 10

// Ring is a fixed-capacity FIFO: once full, each append evicts the oldest entry
type Ring[T any] struct {
	items    []T
	capacity int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DEFAULT_MAX_ERRORS
	}
	return &Ring[T]{items: make([]T, 0, capacity), capacity: capacity}
}

func (r *Ring[T]) Append(item T) {
	if len(r.items) == r.capacity {
		copy(r.items, r.items[1:])
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, item)
}

// Items returns the entries oldest first
func (r *Ring[T]) Items() []T {
	return append([]T(nil), r.items...)
}

func (r *Ring[T]) Len() int {
	return len(r.items)
}

func (r *Ring[T]) Reset() {
	r.items = r.items[:0]
}

// Alert is the single visible alert
type Alert struct {
	Message   string            `json:"message"`
	Type      types.MessageType `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
}

// Collector keeps recent file access and recovery errors plus the current
// alert. Like the registry it is owned by the aggregator loop and is not
// safe for concurrent use.
type Collector struct {
	fileErrors     *Ring[types.FileErrorInfo]
	recoveryErrors *Ring[types.FileErrorInfo]
	lastErrorTime  *time.Time
	alert          *Alert
}

func NewCollector(maxErrors int) *Collector {
	return &Collector{
		fileErrors:     NewRing[types.FileErrorInfo](maxErrors),
		recoveryErrors: NewRing[types.FileErrorInfo](maxErrors),
	}
}

// RecordFileAccessError stores the error and raises an error alert for it
func (c *Collector) RecordFileAccessError(info types.FileErrorInfo) {
	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now()
	}
	c.fileErrors.Append(info)
	at := info.Timestamp
	c.lastErrorTime = &at

	c.SetAlert(Alert{
		Message:   fileErrorMessage(info),
		Type:      types.MessageError,
		Timestamp: info.Timestamp,
	})
}

// RecordRecoveryError stores a recovery file failure without raising an alert
func (c *Collector) RecordRecoveryError(info types.FileErrorInfo) {
	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now()
	}
	c.recoveryErrors.Append(info)
}

// ResetRecoveryErrors is called when a new recovery session starts
func (c *Collector) ResetRecoveryErrors() {
	c.recoveryErrors.Reset()
}

// SetAlert replaces the current alert unconditionally
func (c *Collector) SetAlert(alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	c.alert = &alert
}

// OfferAlert sets the alert only if it is at least as severe as the current
// one. Progress messages are never accepted. Returns whether it was taken.
func (c *Collector) OfferAlert(alert Alert) bool {
	if !alert.Type.Alertable() {
		return false
	}
	if c.alert != nil && alert.Type.Severity() < c.alert.Type.Severity() {
		return false
	}
	c.SetAlert(alert)
	return true
}

func (c *Collector) DismissAlert() {
	c.alert = nil
}

func (c *Collector) CurrentAlert() *Alert {
	if c.alert == nil {
		return nil
	}
	alert := *c.alert
	return &alert
}

func (c *Collector) FileErrors() []types.FileErrorInfo {
	return c.fileErrors.Items()
}

func (c *Collector) RecoveryErrors() []types.FileErrorInfo {
	return c.recoveryErrors.Items()
}

func (c *Collector) LastErrorTime() *time.Time {
	if c.lastErrorTime == nil {
		return nil
	}
	at := *c.lastErrorTime
	return &at
}

func fileErrorMessage(info types.FileErrorInfo) string {
	name := info.Filename
	if name == "" {
		name = info.Path
	}
	if name == "" {
		return info.Error
	}
	return "Cannot access " + name + ": " + info.Error
}
