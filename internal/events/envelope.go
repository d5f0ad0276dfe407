package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped into every envelope for forward compatibility.
const SchemaVersion = "1.0"

// Envelope is the shared wire contract for all events. The payload is kept
// as raw JSON so producers and consumers can use typed schemas without the
// envelope knowing about them.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       string          `json:"version"`
	SourceService string          `json:"source_service"`
	CorrelationID *int64          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEnvelope builds an envelope around the given payload. EventID and
// Timestamp are set here and never touched again. A nil correlationID means
// the event is system-internal and carries no partition key.
func NewEnvelope(eventType, sourceService string, correlationID *int64, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Version:       SchemaVersion,
		SourceService: sourceService,
		CorrelationID: correlationID,
		Data:          data,
	}, nil
}

// PartitionKey returns the broker message key. Events sharing a correlation
// id land on the same partition and are therefore delivered in order.
func (e Envelope) PartitionKey() string {
	if e.CorrelationID == nil {
		return ""
	}
	return strconv.FormatInt(*e.CorrelationID, 10)
}

func (e Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("missing event_id")
	}
	if e.EventType == "" {
		return fmt.Errorf("missing event_type")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	return nil
}

func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	return env, nil
}
