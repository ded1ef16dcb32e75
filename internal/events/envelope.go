package events

import (
	"encoding/json"
	"time"
)

// Envelope is the frame every socket message and every Redis fan-out payload
// travels in. AckID is set when the emitter expects a directed reply; the
// reply comes back as an "ack" event carrying the same AckID.
type Envelope struct {
	Event      string          `json:"event"`
	AckID      string          `json:"ack_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Event:      event,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
