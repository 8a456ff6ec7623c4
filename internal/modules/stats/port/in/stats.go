package in

import (
	"context"
	"time"

	"focuskit/internal/modules/stats/dto"
)

type Usecase interface {
	DateKey(at time.Time) string
	RecordCompletion(ctx context.Context, input dto.CreditInput) error
	RecordPartial(ctx context.Context, input dto.CreditInput) error
	GetDailyStat(ctx context.Context, dateKey string) (dto.DailyStatOutput, error)
	GetTotal(ctx context.Context) (dto.TotalsOutput, error)
}
