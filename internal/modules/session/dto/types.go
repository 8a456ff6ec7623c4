package dto

import "time"

type StartInput struct {
	TargetSeconds int64
	TaskRef       string
	StrictMode    bool
}

// SessionView is the read model handed to surfaces.
type SessionView struct {
	SessionID        string
	Status           string
	TaskRef          string
	StrictMode       bool
	StartedAt        time.Time
	TargetSeconds    int64
	ElapsedSeconds   int64
	RemainingSeconds int64
	Progress         float64
	Revision         int64
	Origin           string
	ObservedAt       time.Time
}

func (v SessionView) Running() bool {
	return v.Status == "active" || v.Status == "paused"
}
