package domain

import (
	"fmt"
	"time"

	apperrors "focuskit/internal/platform/errors"
)

const dateLayout = "2006-01-02"

type TargetType string

const (
	TargetCount   TargetType = "count"
	TargetMinutes TargetType = "minutes"
)

func (t TargetType) Validate() error {
	switch t {
	case TargetCount, TargetMinutes:
		return nil
	default:
		return fmt.Errorf("%w: unknown target type %q", apperrors.ErrInvalidInput, t)
	}
}

// Target is the daily goal captured on a DailyStat when the day is first
// credited.
type Target struct {
	Value int
	Type  TargetType
}

type CreditKind string

const (
	CreditCompleted CreditKind = "completed"
	CreditPartial   CreditKind = "partial"
)

type Credit struct {
	SessionID  string
	DateKey    string
	Seconds    int64
	Kind       CreditKind
	CreditedAt time.Time
}

func (c Credit) Validate() error {
	if err := ValidDateKey(c.DateKey); err != nil {
		return err
	}
	if c.Seconds < 0 {
		return fmt.Errorf("%w: negative credit", apperrors.ErrInvalidInput)
	}
	switch c.Kind {
	case CreditCompleted, CreditPartial:
		return nil
	default:
		return fmt.Errorf("%w: unknown credit kind %q", apperrors.ErrInvalidInput, c.Kind)
	}
}

type DailyStat struct {
	DateKey        string
	CompletedCount int
	PartialCount   int
	FocusSeconds   int64
	Target         Target
}

func NewDailyStat(dateKey string, target Target) DailyStat {
	return DailyStat{DateKey: dateKey, Target: target}
}

// Apply folds one credit into the day.
func (d DailyStat) Apply(credit Credit) DailyStat {
	switch credit.Kind {
	case CreditCompleted:
		d.CompletedCount++
	case CreditPartial:
		d.PartialCount++
	}
	d.FocusSeconds += credit.Seconds
	return d
}

func (d DailyStat) FocusMinutes() int64 {
	return d.FocusSeconds / 60
}

// Progress toward the daily target, capped at 1.
func (d DailyStat) Progress() float64 {
	if d.Target.Value <= 0 {
		return 0
	}
	var done float64
	switch d.Target.Type {
	case TargetMinutes:
		done = float64(d.FocusMinutes())
	default:
		done = float64(d.CompletedCount)
	}
	progress := done / float64(d.Target.Value)
	if progress > 1 {
		return 1
	}
	return progress
}

type Totals struct {
	Days           int
	CompletedCount int
	PartialCount   int
	FocusSeconds   int64
}

func (t Totals) FocusMinutes() int64 {
	return t.FocusSeconds / 60
}

func Fold(days []DailyStat) Totals {
	totals := Totals{Days: len(days)}
	for _, day := range days {
		totals.CompletedCount += day.CompletedCount
		totals.PartialCount += day.PartialCount
		totals.FocusSeconds += day.FocusSeconds
	}
	return totals
}

// DateKey is the calendar day of at in loc, formatted YYYY-MM-DD.
func DateKey(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return at.In(loc).Format(dateLayout)
}

func ValidDateKey(key string) error {
	if _, err := time.Parse(dateLayout, key); err != nil {
		return fmt.Errorf("%w: date key %q", apperrors.ErrInvalidInput, key)
	}
	return nil
}
