package events

import (
	"context"
	"sync"
	"time"

	"statushub/pkg/logger"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const (
	DEFAULT_BRIDGE_CHANNEL = "statushub.events"
	BRIDGE_PUBLISH_TIMEOUT = 5 * time.Second
)

// Bridge mirrors the local channel onto a valkey pub/sub channel so hubs in
// other processes see the same events. Remote events are re-published
// locally without being echoed back.
type Bridge struct {
	client      valkey.Client
	channel     *Channel
	channelName string
	origin      string
	sub         *Subscription
	log         logger.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewBridge(client valkey.Client, channel *Channel, channelName string) *Bridge {
	if channelName == "" {
		channelName = DEFAULT_BRIDGE_CHANNEL
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		client:      client,
		channel:     channel,
		channelName: channelName,
		origin:      uuid.New().String(),
		log:         logger.New("events").File("bridge"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Origin identifies this process on the shared channel
func (b *Bridge) Origin() string {
	return b.origin
}

func (b *Bridge) Start() {
	log := b.log.Function("Start")

	b.sub = b.channel.Subscribe("bridge")

	b.wg.Add(2)
	go b.forward()
	go b.listen()

	log.Info("Event bridge started", "channel", b.channelName, "origin", b.origin)
}

func (b *Bridge) forward() {
	defer b.wg.Done()
	log := b.log.Function("forward")

	for {
		event, err := b.sub.Next(b.ctx)
		if err != nil {
			return
		}

		data, err := Encode(event, b.origin)
		if err != nil {
			log.Er("failed to encode event", err, "kind", event.Kind())
			continue
		}

		ctx, cancel := context.WithTimeout(b.ctx, BRIDGE_PUBLISH_TIMEOUT)
		err = b.client.Do(ctx, b.client.B().Publish().Channel(b.channelName).Message(string(data)).Build()).
			Error()
		cancel()
		if err != nil {
			log.Er("failed to publish event to valkey", err, "channel", b.channelName, "kind", event.Kind())
		}
	}
}

func (b *Bridge) listen() {
	defer b.wg.Done()
	log := b.log.Function("listen")

	err := b.client.Receive(
		b.ctx,
		b.client.B().Subscribe().Channel(b.channelName).Build(),
		func(msg valkey.PubSubMessage) {
			b.handleRemote([]byte(msg.Message))
		},
	)
	if err != nil && b.ctx.Err() == nil {
		log.Er("failed to listen to channel", err, "channel", b.channelName)
	}
}

func (b *Bridge) handleRemote(data []byte) {
	log := b.log.Function("handleRemote")

	envelope, event, err := Decode(data)
	if err != nil {
		log.Er("failed to decode remote event", err)
		return
	}

	if envelope.Origin == b.origin {
		return
	}

	if err := b.channel.PublishExcept(event, b.sub); err != nil {
		log.Warn("Failed to republish remote event", "kind", envelope.Kind, "error", err)
	}
}

func (b *Bridge) Close() error {
	b.cancel()
	if b.sub != nil {
		b.sub.Close()
	}
	b.wg.Wait()

	b.log.Function("Close").Info("Event bridge closed")
	return nil
}
