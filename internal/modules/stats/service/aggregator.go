package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"focuskit/internal/modules/stats/domain"
	statsout "focuskit/internal/modules/stats/port/out"
	"focuskit/internal/platform/metrics"

	"github.com/rs/zerolog"
)

const defaultTotalsTTL = 30 * time.Second

// Aggregator credits focus time to days and folds days into totals. The
// folded totals are cached until the next applied credit or until the TTL
// passes, since other processes may credit the same store.
type Aggregator struct {
	store    statsout.StatStore
	target   domain.Target
	location *time.Location
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	now      func() time.Time
	ttl      time.Duration
	totals   *domain.Totals
	foldedAt time.Time
}

func NewAggregator(store statsout.StatStore, target domain.Target, location *time.Location, logger zerolog.Logger, m *metrics.Metrics) (*Aggregator, error) {
	if err := target.Type.Validate(); err != nil {
		return nil, err
	}
	if location == nil {
		location = time.Local
	}
	return &Aggregator{
		store:    store,
		target:   target,
		location: location,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		ttl:      defaultTotalsTTL,
	}, nil
}

// SetClock replaces the time source used to stamp credits and expire the
// totals cache.
func (a *Aggregator) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// SetTotalsTTL bounds how long folded totals are served from cache. Zero
// disables caching.
func (a *Aggregator) SetTotalsTTL(ttl time.Duration) {
	if ttl < 0 {
		return
	}
	a.mu.Lock()
	a.ttl = ttl
	a.mu.Unlock()
}

func (a *Aggregator) DateKey(at time.Time) string {
	return domain.DateKey(at, a.location)
}

func (a *Aggregator) Target() domain.Target {
	return a.target
}

func (a *Aggregator) Credit(ctx context.Context, credit domain.Credit) error {
	if err := credit.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if credit.CreditedAt.IsZero() {
		credit.CreditedAt = a.now()
	}
	applied, err := a.store.Credit(ctx, credit, a.target)
	if err != nil {
		return fmt.Errorf("credit %s: %w", credit.DateKey, err)
	}
	if !applied {
		a.logger.Debug().Str("session_id", credit.SessionID).Str("kind", string(credit.Kind)).Msg("credit already applied")
		return nil
	}
	a.totals = nil
	if credit.Kind == domain.CreditPartial {
		a.metrics.PartialCredit()
	}
	a.logger.Info().
		Str("date", credit.DateKey).
		Str("kind", string(credit.Kind)).
		Int64("seconds", credit.Seconds).
		Msg("focus credited")
	return nil
}

// Day returns the stat for dateKey. A day with no credits yet reads as an
// empty day carrying the configured target.
func (a *Aggregator) Day(ctx context.Context, dateKey string) (domain.DailyStat, error) {
	if err := domain.ValidDateKey(dateKey); err != nil {
		return domain.DailyStat{}, err
	}
	stat, ok, err := a.store.Get(ctx, dateKey)
	if err != nil {
		return domain.DailyStat{}, fmt.Errorf("get day %s: %w", dateKey, err)
	}
	if !ok {
		return domain.NewDailyStat(dateKey, a.target), nil
	}
	return stat, nil
}

func (a *Aggregator) Totals(ctx context.Context) (domain.Totals, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if a.totals != nil && now.Sub(a.foldedAt) < a.ttl {
		return *a.totals, nil
	}
	days, err := a.store.List(ctx)
	if err != nil {
		return domain.Totals{}, fmt.Errorf("list days: %w", err)
	}
	totals := domain.Fold(days)
	a.totals = &totals
	a.foldedAt = now
	return totals, nil
}
