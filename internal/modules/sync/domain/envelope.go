package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const KindSessionSync = "session-sync"

var ErrInvalidEnvelope = errors.New("invalid sync envelope")

// Envelope is the only message surfaces exchange.
type Envelope struct {
	Kind     string          `json:"kind"`
	Snapshot json.RawMessage `json:"snapshot"`
	Revision int64           `json:"revision"`
	Origin   string          `json:"origin"`
	SentAt   time.Time       `json:"sent_at"`
}

func NewEnvelope(snapshot json.RawMessage, revision int64, origin string, sentAt time.Time) Envelope {
	return Envelope{
		Kind:     KindSessionSync,
		Snapshot: snapshot,
		Revision: revision,
		Origin:   origin,
		SentAt:   sentAt.UTC(),
	}
}

func (e Envelope) Validate() error {
	switch {
	case e.Kind != KindSessionSync:
		return fmt.Errorf("%w: kind %q", ErrInvalidEnvelope, e.Kind)
	case e.Origin == "":
		return fmt.Errorf("%w: origin is required", ErrInvalidEnvelope)
	case e.Revision < 0:
		return fmt.Errorf("%w: negative revision %d", ErrInvalidEnvelope, e.Revision)
	case len(e.Snapshot) == 0:
		return fmt.Errorf("%w: snapshot is required", ErrInvalidEnvelope)
	}
	return nil
}

func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return payload, nil
}

func Decode(raw []byte) (Envelope, error) {
	e := Envelope{}
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
