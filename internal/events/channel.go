package events

import (
	"context"
	"errors"
	"sync"

	"statushub/pkg/logger"
)

const (
	DEFAULT_MAILBOX_SIZE = 256

	// a mailbox never holds more than capacity * MAILBOX_RESERVE_FACTOR events
	MAILBOX_RESERVE_FACTOR = 2
)

var (
	ErrClosed   = errors.New("event channel closed")
	ErrNilEvent = errors.New("event is nil")
)

// Channel is an in-process, multi-producer multi-consumer event channel.
// Publish never blocks; each subscriber owns a mailbox that coalesces
// progress updates for the same key.
type Channel struct {
	mu          sync.RWMutex
	subs        map[uint64]*Subscription
	nextID      uint64
	mailboxSize int
	closed      bool
	log         logger.Logger
}

func NewChannel(mailboxSize int) *Channel {
	if mailboxSize <= 0 {
		mailboxSize = DEFAULT_MAILBOX_SIZE
	}

	return &Channel{
		subs:        make(map[uint64]*Subscription),
		mailboxSize: mailboxSize,
		log:         logger.New("events"),
	}
}

// Publish delivers the event to every subscriber interested in its kind.
// Safe for concurrent use from any goroutine.
func (c *Channel) Publish(event Event) error {
	return c.publish(event, nil)
}

// PublishExcept delivers to everyone but the given subscription. The bridge
// uses it so remote events are not echoed back to the bus they came from.
func (c *Channel) PublishExcept(event Event, except *Subscription) error {
	return c.publish(event, except)
}

func (c *Channel) publish(event Event, except *Subscription) error {
	if event == nil {
		return ErrNilEvent
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	for _, sub := range c.subs {
		if sub == except || !sub.accepts(event.Kind()) {
			continue
		}
		if !sub.deliver(event) {
			c.log.Function("Publish").
				Warn("Subscriber mailbox full, dropping event", "subscription", sub.name, "kind", event.Kind())
		}
	}

	return nil
}

// Subscribe attaches a new subscriber. No kinds means every kind.
// Events published before the call are never delivered.
func (c *Channel) Subscribe(name string, kinds ...Kind) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	sub := &Subscription{
		id:       c.nextID,
		name:     name,
		channel:  c,
		kinds:    make(map[Kind]struct{}, len(kinds)),
		keyed:    make(map[string]int),
		capacity: c.mailboxSize,
		ready:    make(chan struct{}, 1),
	}
	for _, kind := range kinds {
		sub.kinds[kind] = struct{}{}
	}

	if c.closed {
		sub.closed = true
		close(sub.ready)
		return sub
	}

	c.subs[sub.id] = sub
	c.log.Function("Subscribe").Debug("Subscriber attached", "subscription", name, "kinds", kinds)

	return sub
}

// SubscriberCount is mostly useful for tests and health output
func (c *Channel) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Close detaches every subscriber and rejects further publishes
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = make(map[uint64]*Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}

	c.log.Function("Close").Info("Event channel closed", "subscriberCount", len(subs))
	return nil
}

func (c *Channel) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	delete(c.subs, sub.id)
	c.mu.Unlock()
}

// Subscription is one consumer's mailbox
type Subscription struct {
	id      uint64
	name    string
	channel *Channel
	kinds   map[Kind]struct{}

	mu       sync.Mutex
	pending  []Event
	keyed    map[string]int
	capacity int
	dropped  uint64
	closed   bool
	ready    chan struct{}

	// only touched by Next, which has a single caller by contract
	buffered []Event
}

func (s *Subscription) accepts(kind Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

func (s *Subscription) deliver(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}

	if c, ok := event.(coalescer); ok {
		if idx, queued := s.keyed[c.coalesceKey()]; queued {
			s.pending[idx] = event
			return true
		}
	}

	limit := s.capacity
	if essential(event) {
		limit = MAILBOX_RESERVE_FACTOR * s.capacity
	}
	if len(s.pending) >= limit {
		s.dropped++
		return false
	}

	if closer, ok := event.(keyCloser); ok {
		delete(s.keyed, closer.closesKey())
	}

	s.pending = append(s.pending, event)
	if c, ok := event.(coalescer); ok {
		s.keyed[c.coalesceKey()] = len(s.pending) - 1
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}

	return true
}

// Ready signals that Drain will return at least one event. It is closed
// when the subscription is closed.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Drain takes every queued event in delivery order
func (s *Subscription) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	drained := s.pending
	s.pending = nil
	s.keyed = make(map[string]int)

	return drained
}

// Next blocks until an event is available, the context ends or the
// subscription closes. Use either Next or Ready/Drain on one subscription.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		if len(s.buffered) > 0 {
			event := s.buffered[0]
			s.buffered = s.buffered[1:]
			return event, nil
		}

		if drained := s.Drain(); len(drained) > 0 {
			s.buffered = drained
			continue
		}

		if s.Closed() {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ready:
		}
	}
}

// Dropped counts events discarded because the mailbox was full
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) Name() string {
	return s.name
}

// Close detaches the subscription. Queued events can still be drained.
func (s *Subscription) Close() {
	s.channel.unsubscribe(s)
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ready)
}

// Closed reports whether the subscription was closed
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
