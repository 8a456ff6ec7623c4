package out

import (
	"context"
	"sort"
	"sync"

	"focuskit/internal/modules/stats/domain"
	statsout "focuskit/internal/modules/stats/port/out"
)

type MemoryStatStore struct {
	mu       sync.Mutex
	days     map[string]domain.DailyStat
	credited map[string]struct{}
}

func NewMemoryStatStore() *MemoryStatStore {
	return &MemoryStatStore{days: map[string]domain.DailyStat{}, credited: map[string]struct{}{}}
}

func (s *MemoryStatStore) Credit(_ context.Context, credit domain.Credit, target domain.Target) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if credit.SessionID != "" {
		if _, ok := s.credited[credit.SessionID]; ok {
			return false, nil
		}
		s.credited[credit.SessionID] = struct{}{}
	}
	day, ok := s.days[credit.DateKey]
	if !ok {
		day = domain.NewDailyStat(credit.DateKey, target)
	}
	s.days[credit.DateKey] = day.Apply(credit)
	return true, nil
}

func (s *MemoryStatStore) Get(_ context.Context, dateKey string) (domain.DailyStat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.days[dateKey]
	return day, ok, nil
}

func (s *MemoryStatStore) List(_ context.Context) ([]domain.DailyStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DailyStat, 0, len(s.days))
	for _, day := range s.days {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey < out[j].DateKey })
	return out, nil
}

var _ statsout.StatStore = (*MemoryStatStore)(nil)
