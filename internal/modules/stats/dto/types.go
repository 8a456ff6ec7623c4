package dto

import "time"

// CreditInput credits focus time to a day. SessionID makes the credit
// idempotent; an empty id is always applied.
type CreditInput struct {
	SessionID string
	DateKey   string
	Seconds   int64
	// At is when the session earned the credit. Zero means now.
	At time.Time
}

type DailyStatOutput struct {
	DateKey        string
	CompletedCount int
	PartialCount   int
	FocusSeconds   int64
	FocusMinutes   int64
	Target         int
	TargetType     string
	Progress       float64
}

type TotalsOutput struct {
	Days           int
	CompletedCount int
	PartialCount   int
	FocusSeconds   int64
	FocusMinutes   int64
}
