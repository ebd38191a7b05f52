package status

import (
	"sync"
	"time"

	"statushub/internal/alerts"
	"statushub/internal/progress"
	"statushub/internal/types"
)

// OperationState is the published view of one operation kind
type OperationState struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Current   int64     `json:"current"`
	Total     int64     `json:"total"`
	Detail    string    `json:"detail,omitempty"`
	Active    bool      `json:"active"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TemporaryStatus is the single most recent human relevant line. Key and
// Generation identify it for delayed dismissal.
type TemporaryStatus struct {
	Message    string            `json:"message"`
	Type       types.MessageType `json:"type,omitempty"`
	Key        string            `json:"key,omitempty"`
	Generation uint64            `json:"generation"`
	SetAt      *time.Time        `json:"setAt,omitempty"`
}

// Snapshot is an immutable copy of everything the aggregator publishes
type Snapshot struct {
	Version              uint64                      `json:"version"`
	Progress             []types.ProgressInfo        `json:"progress"`
	Gauge                progress.Gauge              `json:"gauge"`
	Operations           map[string]OperationState   `json:"operations"`
	Recovery             types.RecoverySessionState  `json:"recovery"`
	PendingRecovery      []types.PendingRecoveryInfo `json:"pendingRecovery"`
	PendingRecoveryCount int                         `json:"pendingRecoveryCount"`
	FileErrors           []types.FileErrorInfo       `json:"fileErrors"`
	RecoveryErrors       []types.FileErrorInfo       `json:"recoveryErrors"`
	LastErrorTime        *time.Time                  `json:"lastErrorTime,omitempty"`
	CurrentAlert         *alerts.Alert               `json:"currentAlert,omitempty"`
	Messages             []types.StatusMessage       `json:"messages"`
	TemporaryStatus      TemporaryStatus             `json:"temporaryStatus"`
	Services             map[string]bool             `json:"services"`
	UpdatedAt            time.Time                   `json:"updatedAt"`
}

// SnapshotSubscription receives debounced snapshots. Only the latest
// undelivered snapshot is kept, so a slow reader skips intermediate states.
type SnapshotSubscription struct {
	ch         chan Snapshot
	aggregator *Aggregator
	closeOnce  sync.Once
}

func newSnapshotSubscription(aggregator *Aggregator) *SnapshotSubscription {
	return &SnapshotSubscription{
		ch:         make(chan Snapshot, 1),
		aggregator: aggregator,
	}
}

// C is closed when the subscription or the aggregator stops
func (s *SnapshotSubscription) C() <-chan Snapshot {
	return s.ch
}

func (s *SnapshotSubscription) Close() {
	s.closeOnce.Do(func() {
		s.aggregator.unsubscribe(s)
	})
}

// offer replaces any undelivered snapshot. Only the aggregator loop calls it.
func (s *SnapshotSubscription) offer(snapshot Snapshot) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snapshot
}
