package usecase

import (
	"context"
	"time"

	"focuskit/internal/modules/stats/domain"
	"focuskit/internal/modules/stats/dto"
	statsin "focuskit/internal/modules/stats/port/in"
	"focuskit/internal/modules/stats/service"
)

type Interactor struct {
	svc *service.Aggregator
}

func NewInteractor(svc *service.Aggregator) statsin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) DateKey(at time.Time) string {
	return i.svc.DateKey(at)
}

func (i *Interactor) RecordCompletion(ctx context.Context, input dto.CreditInput) error {
	return i.svc.Credit(ctx, toCredit(input, domain.CreditCompleted))
}

func (i *Interactor) RecordPartial(ctx context.Context, input dto.CreditInput) error {
	return i.svc.Credit(ctx, toCredit(input, domain.CreditPartial))
}

func (i *Interactor) GetDailyStat(ctx context.Context, dateKey string) (dto.DailyStatOutput, error) {
	stat, err := i.svc.Day(ctx, dateKey)
	if err != nil {
		return dto.DailyStatOutput{}, err
	}
	return dto.DailyStatOutput{
		DateKey:        stat.DateKey,
		CompletedCount: stat.CompletedCount,
		PartialCount:   stat.PartialCount,
		FocusSeconds:   stat.FocusSeconds,
		FocusMinutes:   stat.FocusMinutes(),
		Target:         stat.Target.Value,
		TargetType:     string(stat.Target.Type),
		Progress:       stat.Progress(),
	}, nil
}

func (i *Interactor) GetTotal(ctx context.Context) (dto.TotalsOutput, error) {
	totals, err := i.svc.Totals(ctx)
	if err != nil {
		return dto.TotalsOutput{}, err
	}
	return dto.TotalsOutput{
		Days:           totals.Days,
		CompletedCount: totals.CompletedCount,
		PartialCount:   totals.PartialCount,
		FocusSeconds:   totals.FocusSeconds,
		FocusMinutes:   totals.FocusMinutes(),
	}, nil
}

func toCredit(input dto.CreditInput, kind domain.CreditKind) domain.Credit {
	return domain.Credit{SessionID: input.SessionID, DateKey: input.DateKey, Seconds: input.Seconds, Kind: kind, CreditedAt: input.At}
}
