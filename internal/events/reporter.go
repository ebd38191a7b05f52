package events

import (
	"context"
	"errors"
	"sync"

	"statushub/pkg/logger"
)

// Reporter is the producer side of one operation's progress. It keeps
// current monotonic within a run, always emits the terminal ProgressRemoved
// and re-publishes its latest progress when someone asks for current state.
type Reporter struct {
	channel *Channel
	id      string
	log     logger.Logger

	mu     sync.Mutex
	last   ProgressUpdated
	active bool
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReporter(channel *Channel, id string) *Reporter {
	return &Reporter{
		channel: channel,
		id:      id,
		log:     logger.New("events").File("reporter").With("operation", id),
	}
}

// Start begins a run. Starting an active reporter is a no-op.
func (r *Reporter) Start(total int64, metadata map[string]string) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return
	}
	r.active = true
	r.last = ProgressUpdated{ID: r.id, Total: total}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	sub := r.channel.Subscribe("reporter:"+r.id, KindStateRequested)
	r.mu.Unlock()

	go r.answerStateRequests(ctx, sub)

	r.publish(OperationStarted{Operation: r.id, Metadata: metadata})
	r.publish(r.last)
}

// Update reports progress. A current lower than the last reported value is
// raised to it so consumers never see progress go backwards.
func (r *Reporter) Update(current, total int64, detail string) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		r.log.Function("Update").Warn("Update on inactive reporter ignored")
		return
	}
	if current < r.last.Current {
		current = r.last.Current
	}
	r.last = ProgressUpdated{ID: r.id, Current: current, Total: total, Detail: detail}
	update := r.last
	r.mu.Unlock()

	r.publish(update)
}

// Finish ends the run successfully
func (r *Reporter) Finish(metadata map[string]string) {
	if !r.stop() {
		return
	}
	r.publish(ProgressRemoved{ID: r.id})
	r.publish(OperationCompleted{Operation: r.id, Metadata: metadata})
}

// Fail ends the run with an error
func (r *Reporter) Fail(err error) {
	if !r.stop() {
		return
	}
	if err == nil {
		err = errors.New("operation failed")
	}
	r.publish(ProgressRemoved{ID: r.id})
	r.publish(OperationFailed{Operation: r.id, Error: err.Error()})
}

// Active reports whether a run is in progress
func (r *Reporter) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Reporter) stop() bool {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return false
	}
	r.active = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	return true
}

func (r *Reporter) answerStateRequests(ctx context.Context, sub *Subscription) {
	defer close(r.done)
	defer sub.Close()

	for {
		if _, err := sub.Next(ctx); err != nil {
			return
		}

		r.mu.Lock()
		last, active := r.last, r.active
		r.mu.Unlock()

		if active {
			r.publish(last)
		}
	}
}

func (r *Reporter) publish(event Event) {
	if err := r.channel.Publish(event); err != nil {
		r.log.Function("publish").Warn("Failed to publish event", "kind", event.Kind(), "error", err)
	}
}
