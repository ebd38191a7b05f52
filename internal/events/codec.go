package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of an event. The same schema is used by the
// valkey bridge and by the HTTP ingest endpoint.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

var decoders = map[Kind]func(json.RawMessage) (Event, error){
	KindProgressUpdated:        decodeAs[ProgressUpdated],
	KindProgressRemoved:        decodeAs[ProgressRemoved],
	KindOperationStarted:       decodeAs[OperationStarted],
	KindOperationCompleted:     decodeAs[OperationCompleted],
	KindOperationFailed:        decodeAs[OperationFailed],
	KindStatusMessagePosted:    decodeAs[StatusMessagePosted],
	KindStateRequested:         decodeAs[StateRequested],
	KindServiceStateChanged:    decodeAs[ServiceStateChanged],
	KindFileAccessError:        decodeAs[FileAccessError],
	KindFilePendingRecovery:    decodeAs[FilePendingRecovery],
	KindRecoveryStarted:        decodeAs[RecoveryStarted],
	KindRecoveryProgress:       decodeAs[RecoveryProgress],
	KindRecoveryFileFailed:     decodeAs[RecoveryFileFailed],
	KindRecoveryFileRecovered:  decodeAs[RecoveryFileRecovered],
	KindRecoveryCompleted:      decodeAs[RecoveryCompleted],
	KindRecoveryFailed:         decodeAs[RecoveryFailed],
	KindRecoveryRetryScheduled: decodeAs[RecoveryRetryScheduled],
}

func decodeAs[T Event](payload json.RawMessage) (Event, error) {
	var event T
	if len(payload) == 0 || string(payload) == "null" {
		return event, nil
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}

// Wrap builds an envelope for event with a fresh id
func Wrap(event Event, origin string) (Envelope, error) {
	if event == nil {
		return Envelope{}, ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event.Kind(), err)
	}

	return Envelope{
		ID:        uuid.New().String(),
		Kind:      event.Kind(),
		Origin:    origin,
		Timestamp: time.Now(),
		Payload:   payload,
	}, nil
}

// Open decodes the envelope payload into its typed event
func (e Envelope) Open() (Event, error) {
	decode, ok := decoders[e.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}

	event, err := decode(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}

	return event, nil
}

// Encode marshals event into envelope JSON
func Encode(event Event, origin string) ([]byte, error) {
	envelope, err := Wrap(event, origin)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// Decode parses envelope JSON and returns the envelope with its typed event
func Decode(data []byte) (Envelope, Event, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	event, err := envelope.Open()
	if err != nil {
		return envelope, nil, err
	}

	return envelope, event, nil
}
