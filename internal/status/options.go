package status

import (
	"context"
	"errors"
	"time"

	"statushub/internal/types"
)

const (
	DEFAULT_DEBOUNCE_WINDOW = 100 * time.Millisecond
	DEFAULT_DISMISSAL_GRACE = 4 * time.Second
	DEFAULT_MAX_MESSAGES    = 100
	DEFAULT_MAX_FILE_ERRORS = 10
	DEFAULT_MAILBOX_SIZE    = 256

	// NO_DEBOUNCE pushes a snapshot after every applied batch
	NO_DEBOUNCE time.Duration = -1
)

var (
	ErrStopped        = errors.New("status aggregator is not running")
	ErrUnknownService = errors.New("unknown service")
)

// Recoverer performs a recovery session. It reports through the event
// channel and returns once the session is over. A returned error fails the
// session.
type Recoverer interface {
	Recover(ctx context.Context, sessionID string) error
}

// ServiceController starts and stops one external service
type ServiceController interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
}

// SessionRecorder persists recovery sessions once they end
type SessionRecorder interface {
	RecordSession(ctx context.Context, session types.RecoverySessionState) error
}

type Options struct {
	// DebounceWindow coalesces bursts into one pushed snapshot. Zero falls
	// back to DEFAULT_DEBOUNCE_WINDOW; NO_DEBOUNCE (any negative value)
	// pushes after every batch.
	DebounceWindow time.Duration
	// DismissalGrace is how long a completion line stays visible
	DismissalGrace time.Duration
	MaxMessages    int
	MaxFileErrors  int
	MailboxSize    int

	Clock        func() time.Time
	NewSessionID func() string
}

func DefaultOptions() Options {
	return Options{
		DebounceWindow: DEFAULT_DEBOUNCE_WINDOW,
		DismissalGrace: DEFAULT_DISMISSAL_GRACE,
		MaxMessages:    DEFAULT_MAX_MESSAGES,
		MaxFileErrors:  DEFAULT_MAX_FILE_ERRORS,
		MailboxSize:    DEFAULT_MAILBOX_SIZE,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.DismissalGrace <= 0 {
		o.DismissalGrace = defaults.DismissalGrace
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = defaults.MaxMessages
	}
	if o.MaxFileErrors <= 0 {
		o.MaxFileErrors = defaults.MaxFileErrors
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = defaults.MailboxSize
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
