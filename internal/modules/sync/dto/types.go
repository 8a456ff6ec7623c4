package dto

import (
	"encoding/json"
	"time"
)

// Snapshot is a session snapshot as it crosses surfaces. Payload is the
// encoded session; Revision and Origin gate adoption.
type Snapshot struct {
	Revision int64
	Origin   string
	Payload  json.RawMessage
	SentAt   time.Time
}
