package domain

import (
	"fmt"
	"time"

	apperrors "focuskit/internal/platform/errors"
)

type Status string

const (
	StatusInactive  Status = "inactive"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusPaused, StatusCompleted:
		return true
	default:
		return false
	}
}

// Session is one countdown run. All durations are whole seconds.
type Session struct {
	ID            string
	Status        Status
	StartedAt     time.Time
	TargetSeconds int64
	PausedSeconds int64
	LastPausedAt  time.Time
	CompletedAt   time.Time
	TaskRef       string
	StrictMode    bool
	Revision      int64
	Origin        string
}

// Inactive returns the empty session carrying the given revision.
func Inactive(revision int64, origin string) Session {
	return Session{Status: StatusInactive, Revision: revision, Origin: origin}
}

func New(id string, now time.Time, targetSeconds int64, taskRef string, strict bool) (Session, error) {
	if targetSeconds <= 0 {
		return Session{}, apperrors.Op("start", string(StatusInactive), fmt.Errorf("%w: target must be positive, got %d", apperrors.ErrInvalidInput, targetSeconds))
	}
	return Session{
		ID:            id,
		Status:        StatusActive,
		StartedAt:     now,
		TargetSeconds: targetSeconds,
		TaskRef:       taskRef,
		StrictMode:    strict,
	}, nil
}

// Elapsed is the focused time at now: wall time since start minus every
// pause, including the pause still open. Completed sessions are frozen at
// their completion instant and clamped to the target.
func (s Session) Elapsed(now time.Time) int64 {
	switch s.Status {
	case StatusInactive:
		return 0
	case StatusCompleted:
		if !s.CompletedAt.IsZero() {
			now = s.CompletedAt
		}
		return min(s.rawElapsed(now), s.TargetSeconds)
	default:
		return s.rawElapsed(now)
	}
}

func (s Session) rawElapsed(now time.Time) int64 {
	if s.StartedAt.IsZero() {
		return 0
	}
	elapsed := seconds(now.Sub(s.StartedAt)) - s.PausedSeconds
	if s.Status == StatusPaused && !s.LastPausedAt.IsZero() {
		elapsed -= seconds(now.Sub(s.LastPausedAt))
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (s Session) Remaining(now time.Time) int64 {
	if s.Status == StatusInactive {
		return 0
	}
	return max(s.TargetSeconds-s.Elapsed(now), 0)
}

// Progress is the completed fraction in [0,1].
func (s Session) Progress(now time.Time) float64 {
	if s.TargetSeconds <= 0 {
		return 0
	}
	return float64(min(s.Elapsed(now), s.TargetSeconds)) / float64(s.TargetSeconds)
}

// Due reports whether an active session has reached its target.
func (s Session) Due(now time.Time) bool {
	return s.Status == StatusActive && s.rawElapsed(now) >= s.TargetSeconds
}

// DueAt is the instant an uninterrupted active session reaches its target.
func (s Session) DueAt() time.Time {
	return s.StartedAt.Add(time.Duration(s.PausedSeconds+s.TargetSeconds) * time.Second)
}

func (s Session) Pause(now time.Time) (Session, error) {
	if s.StrictMode {
		return s, apperrors.Op("pause", string(s.Status), apperrors.ErrStrictMode)
	}
	if s.Status != StatusActive {
		return s, apperrors.Op("pause", string(s.Status), apperrors.ErrInvalidState)
	}
	s.Status = StatusPaused
	s.LastPausedAt = now
	return s, nil
}

func (s Session) Resume(now time.Time) (Session, error) {
	if s.Status != StatusPaused {
		return s, apperrors.Op("resume", string(s.Status), apperrors.ErrInvalidState)
	}
	s.PausedSeconds += max(seconds(now.Sub(s.LastPausedAt)), 0)
	s.LastPausedAt = time.Time{}
	s.Status = StatusActive
	return s, nil
}

// Complete closes an active or paused session at now. An open pause is
// folded into the paused total.
func (s Session) Complete(now time.Time) (Session, error) {
	switch s.Status {
	case StatusCompleted:
		return s, nil
	case StatusActive, StatusPaused:
	default:
		return s, apperrors.Op("complete", string(s.Status), apperrors.ErrInvalidState)
	}
	if s.Status == StatusPaused {
		s.PausedSeconds += max(seconds(now.Sub(s.LastPausedAt)), 0)
		s.LastPausedAt = time.Time{}
	}
	s.Status = StatusCompleted
	s.CompletedAt = now
	return s, nil
}

// Validate checks the rules a persisted or received session must satisfy.
func (s Session) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("unknown status %q", s.Status)
	}
	if s.Revision < 0 {
		return fmt.Errorf("negative revision %d", s.Revision)
	}
	if s.Status == StatusInactive {
		return nil
	}
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	if s.TargetSeconds <= 0 {
		return fmt.Errorf("target must be positive, got %d", s.TargetSeconds)
	}
	if s.PausedSeconds < 0 {
		return fmt.Errorf("paused total must not be negative, got %d", s.PausedSeconds)
	}
	if (s.Status == StatusPaused) != !s.LastPausedAt.IsZero() {
		return fmt.Errorf("last_paused_at must be set exactly when paused")
	}
	if s.Status == StatusCompleted && s.CompletedAt.IsZero() {
		return fmt.Errorf("completed_at is required once completed")
	}
	return nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
