package domain_test

import (
	"errors"
	"testing"
	"time"

	"focuskit/internal/modules/stats/domain"
	apperrors "focuskit/internal/platform/errors"
)

func TestDateKeyUsesLocation(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)
	if got := domain.DateKey(at, time.UTC); got != "2026-03-01" {
		t.Fatalf("utc key = %s", got)
	}
	if got := domain.DateKey(at, tokyo); got != "2026-03-02" {
		t.Fatalf("tokyo key = %s", got)
	}
}

func TestValidDateKey(t *testing.T) {
	t.Parallel()
	if err := domain.ValidDateKey("2026-02-28"); err != nil {
		t.Fatalf("expected valid key: %v", err)
	}
	for _, bad := range []string{"", "2026-2-28", "2026-02-30", "yesterday"} {
		if err := domain.ValidDateKey(bad); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", bad, err)
		}
	}
}

func TestDailyStatApplyAndProgress(t *testing.T) {
	t.Parallel()
	day := domain.NewDailyStat("2026-03-01", domain.Target{Value: 4, Type: domain.TargetCount})
	day = day.Apply(domain.Credit{Kind: domain.CreditCompleted, Seconds: 1500})
	day = day.Apply(domain.Credit{Kind: domain.CreditPartial, Seconds: 31})
	if day.CompletedCount != 1 || day.PartialCount != 1 || day.FocusSeconds != 1531 {
		t.Fatalf("unexpected day %+v", day)
	}
	if day.FocusMinutes() != 25 {
		t.Fatalf("expected floor minutes 25, got %d", day.FocusMinutes())
	}
	if day.Progress() != 0.25 {
		t.Fatalf("expected count progress 0.25, got %v", day.Progress())
	}

	day.Target = domain.Target{Value: 50, Type: domain.TargetMinutes}
	if day.Progress() != 0.5 {
		t.Fatalf("expected minutes progress 0.5, got %v", day.Progress())
	}
	day.Target.Value = 10
	if day.Progress() != 1 {
		t.Fatalf("progress must cap at 1, got %v", day.Progress())
	}
}

func TestFold(t *testing.T) {
	t.Parallel()
	totals := domain.Fold([]domain.DailyStat{
		{DateKey: "2026-03-01", CompletedCount: 2, FocusSeconds: 3000},
		{DateKey: "2026-03-02", CompletedCount: 1, PartialCount: 1, FocusSeconds: 1559},
	})
	if totals.Days != 2 || totals.CompletedCount != 3 || totals.PartialCount != 1 || totals.FocusSeconds != 4559 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.FocusMinutes() != 75 {
		t.Fatalf("expected 75 minutes, got %d", totals.FocusMinutes())
	}
}

func TestCreditValidate(t *testing.T) {
	t.Parallel()
	ok := domain.Credit{DateKey: "2026-03-01", Seconds: 10, Kind: domain.CreditPartial}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid credit: %v", err)
	}
	negative := ok
	negative.Seconds = -1
	if err := negative.Validate(); err == nil {
		t.Fatalf("expected negative credit to fail")
	}
	kind := ok
	kind.Kind = "bonus"
	if err := kind.Validate(); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}
