package domain

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "focuskit/internal/platform/errors"
)

const SchemaVersion = 1

// Snapshot is the persisted and broadcast form of a Session.
type Snapshot struct {
	SchemaVersion            int        `json:"schema_version"`
	SessionID                string     `json:"session_id"`
	Status                   Status     `json:"status"`
	StartedAt                *time.Time `json:"started_at"`
	TargetDurationSeconds    int64      `json:"target_duration_seconds"`
	PausedAccumulatedSeconds int64      `json:"paused_accumulated_seconds"`
	LastPausedAt             *time.Time `json:"last_paused_at"`
	CompletedAt              *time.Time `json:"completed_at,omitempty"`
	TaskRef                  *string    `json:"task_ref"`
	StrictMode               bool       `json:"strict_mode"`
	Revision                 int64      `json:"revision"`
	Origin                   string     `json:"origin"`
}

func ToSnapshot(s Session) Snapshot {
	snap := Snapshot{
		SchemaVersion:            SchemaVersion,
		SessionID:                s.ID,
		Status:                   s.Status,
		StartedAt:                timePtr(s.StartedAt),
		TargetDurationSeconds:    s.TargetSeconds,
		PausedAccumulatedSeconds: s.PausedSeconds,
		LastPausedAt:             timePtr(s.LastPausedAt),
		CompletedAt:              timePtr(s.CompletedAt),
		StrictMode:               s.StrictMode,
		Revision:                 s.Revision,
		Origin:                   s.Origin,
	}
	if s.TaskRef != "" {
		ref := s.TaskRef
		snap.TaskRef = &ref
	}
	return snap
}

func (snap Snapshot) Session() Session {
	s := Session{
		ID:            snap.SessionID,
		Status:        snap.Status,
		TargetSeconds: snap.TargetDurationSeconds,
		PausedSeconds: snap.PausedAccumulatedSeconds,
		StrictMode:    snap.StrictMode,
		Revision:      snap.Revision,
		Origin:        snap.Origin,
	}
	if snap.StartedAt != nil {
		s.StartedAt = snap.StartedAt.UTC()
	}
	if snap.LastPausedAt != nil {
		s.LastPausedAt = snap.LastPausedAt.UTC()
	}
	if snap.CompletedAt != nil {
		s.CompletedAt = snap.CompletedAt.UTC()
	}
	if snap.TaskRef != nil {
		s.TaskRef = *snap.TaskRef
	}
	return s
}

func EncodeSnapshot(s Session) ([]byte, error) {
	payload, err := json.Marshal(ToSnapshot(s))
	if err != nil {
		return nil, fmt.Errorf("marshal session snapshot: %w", err)
	}
	return payload, nil
}

// DecodeSnapshot parses and validates a snapshot. Every failure wraps
// ErrCorruptState.
func DecodeSnapshot(raw []byte) (Session, error) {
	snap := Snapshot{}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Session{}, fmt.Errorf("%w: decode snapshot: %v", apperrors.ErrCorruptState, err)
	}
	if snap.SchemaVersion != SchemaVersion {
		return Session{}, fmt.Errorf("%w: schema version %d, want %d", apperrors.ErrCorruptState, snap.SchemaVersion, SchemaVersion)
	}
	s := snap.Session()
	if err := s.Validate(); err != nil {
		return Session{}, fmt.Errorf("%w: %v", apperrors.ErrCorruptState, err)
	}
	return s, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
