// Package status owns every piece of published operation state. One loop
// goroutine consumes the event channel and applies controls; everything else
// reads immutable snapshots.
package status

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"statushub/internal/alerts"
	"statushub/internal/events"
	"statushub/internal/progress"
	"statushub/internal/recovery"
	"statushub/internal/types"
	"statushub/pkg/logger"
)

type Aggregator struct {
	channel *events.Channel
	sub     *events.Subscription
	opts    Options
	log     logger.Logger

	recoverer   Recoverer
	recorder    SessionRecorder
	controllers map[string]ServiceController

	// loop owned
	registry    *progress.Registry
	projector   *progress.Projector
	coordinator *recovery.Coordinator
	collector   *alerts.Collector
	operations  map[string]OperationState
	services    map[string]bool
	messages    []types.StatusMessage
	temporary   TemporaryStatus
	generation  uint64
	version     uint64
	dirty       bool
	debounce    *time.Timer
	dismissals  map[string]*time.Timer
	subscribers map[*SnapshotSubscription]struct{}

	commands chan func()
	started  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	workers  sync.WaitGroup
	stopOnce sync.Once
}

type Dependency func(*Aggregator)

// WithRecoverer sets who performs triggered recovery sessions
func WithRecoverer(recoverer Recoverer) Dependency {
	return func(a *Aggregator) { a.recoverer = recoverer }
}

func WithSessionRecorder(recorder SessionRecorder) Dependency {
	return func(a *Aggregator) { a.recorder = recorder }
}

// WithServices registers toggleable services by their Name
func WithServices(controllers ...ServiceController) Dependency {
	return func(a *Aggregator) {
		for _, controller := range controllers {
			if controller != nil {
				a.controllers[controller.Name()] = controller
			}
		}
	}
}

// NewAggregator subscribes to channel immediately so nothing published after
// construction is missed. Call Start to begin applying events.
func NewAggregator(channel *events.Channel, opts Options, deps ...Dependency) *Aggregator {
	opts = opts.withDefaults()

	coordinatorOpts := []recovery.Option{
		recovery.WithClock(opts.Clock),
		recovery.WithMaxErrors(opts.MaxFileErrors),
	}
	if opts.NewSessionID != nil {
		coordinatorOpts = append(coordinatorOpts, recovery.WithIDGenerator(opts.NewSessionID))
	}

	projector := progress.NewProjector(nil)
	ctx, cancel := context.WithCancel(context.Background())

	a := &Aggregator{
		channel:     channel,
		sub:         channel.Subscribe("statusAggregator"),
		opts:        opts,
		log:         logger.New("status"),
		controllers: make(map[string]ServiceController),
		registry:    progress.NewRegistry(projector),
		projector:   projector,
		coordinator: recovery.NewCoordinator(coordinatorOpts...),
		collector:   alerts.NewCollector(opts.MaxFileErrors),
		operations:  make(map[string]OperationState),
		services:    make(map[string]bool),
		dismissals:  make(map[string]*time.Timer),
		subscribers: make(map[*SnapshotSubscription]struct{}),
		commands:    make(chan func()),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	for _, dep := range deps {
		dep(a)
	}
	for name, controller := range a.controllers {
		a.services[name] = controller.Running()
	}

	return a
}

// Start launches the loop. Calling it twice is a no-op.
func (a *Aggregator) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	a.log.Function("Start").Info("Starting status aggregator",
		"debounce", a.opts.DebounceWindow,
		"dismissalGrace", a.opts.DismissalGrace,
		"services", len(a.controllers),
	)
	go a.run()
}

// Stop ends the loop, closes snapshot subscriptions and waits for
// background recoveries to return.
func (a *Aggregator) Stop() error {
	a.stopOnce.Do(func() {
		a.cancel()
		a.sub.Close()
		if a.started.CompareAndSwap(false, true) {
			// never started, keep Start from launching a loop later
			close(a.done)
		} else {
			<-a.done
		}
		a.workers.Wait()
		a.log.Function("Stop").Info("Status aggregator stopped")
	})
	return nil
}

func (a *Aggregator) run() {
	defer close(a.done)
	defer a.shutdown()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.sub.Ready():
			batch := a.sub.Drain()
			if len(batch) == 0 && a.sub.Closed() {
				a.log.Function("run").Warn("Event subscription closed, stopping aggregator")
				return
			}
			for _, event := range batch {
				a.apply(event)
			}
		case command := <-a.commands:
			command()
		}
		a.afterMutation()
	}
}

func (a *Aggregator) shutdown() {
	if a.debounce != nil {
		a.debounce.Stop()
	}
	a.registry.Clear()
	for key, timer := range a.dismissals {
		timer.Stop()
		delete(a.dismissals, key)
	}
	for sub := range a.subscribers {
		delete(a.subscribers, sub)
		close(sub.ch)
	}
}

// do runs fn on the loop and waits for it
func (a *Aggregator) do(ctx context.Context, fn func()) error {
	if !a.started.Load() {
		return ErrStopped
	}

	finished := make(chan struct{})
	select {
	case a.commands <- func() { fn(); close(finished) }:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// post queues fn from a timer goroutine; dropped once the loop is gone
func (a *Aggregator) post(fn func()) {
	select {
	case a.commands <- fn:
	case <-a.done:
	}
}

func (a *Aggregator) markDirty() {
	a.dirty = true
	a.version++
}

// afterMutation pushes to subscribers, at most once per debounce window
// counted from the first unpushed change.
func (a *Aggregator) afterMutation() {
	if !a.dirty || a.debounce != nil {
		return
	}
	if a.opts.DebounceWindow <= 0 {
		a.flush()
		return
	}
	a.debounce = time.AfterFunc(a.opts.DebounceWindow, func() {
		a.post(func() {
			a.debounce = nil
			a.flush()
		})
	})
}

func (a *Aggregator) flush() {
	if !a.dirty {
		return
	}
	a.dirty = false
	if len(a.subscribers) == 0 {
		return
	}
	snapshot := a.snapshot()
	for sub := range a.subscribers {
		sub.offer(snapshot)
	}
}

func (a *Aggregator) unsubscribe(sub *SnapshotSubscription) {
	_ = a.do(context.Background(), func() {
		if _, ok := a.subscribers[sub]; ok {
			delete(a.subscribers, sub)
			close(sub.ch)
		}
	})
}

func (a *Aggregator) snapshot() Snapshot {
	operations := make(map[string]OperationState, len(a.operations))
	for id, state := range a.operations {
		operations[id] = state
	}
	services := make(map[string]bool, len(a.services))
	for name, running := range a.services {
		services[name] = running
	}

	temporary := a.temporary
	if temporary.SetAt != nil {
		at := *temporary.SetAt
		temporary.SetAt = &at
	}

	pending := a.coordinator.Pending()

	return Snapshot{
		Version:              a.version,
		Progress:             a.registry.Snapshot(),
		Gauge:                a.projector.Gauge(),
		Operations:           operations,
		Recovery:             a.coordinator.State(),
		PendingRecovery:      pending,
		PendingRecoveryCount: len(pending),
		FileErrors:           a.collector.FileErrors(),
		RecoveryErrors:       a.collector.RecoveryErrors(),
		LastErrorTime:        a.collector.LastErrorTime(),
		CurrentAlert:         a.collector.CurrentAlert(),
		Messages:             append([]types.StatusMessage{}, a.messages...),
		TemporaryStatus:      temporary,
		Services:             services,
		UpdatedAt:            a.opts.Clock(),
	}
}
