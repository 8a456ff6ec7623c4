package in

import (
	"context"
	"time"

	"focuskit/internal/modules/stats/dto"
	statsin "focuskit/internal/modules/stats/port/in"
)

type CLIHandler struct {
	usecase statsin.Usecase
}

func NewCLIHandler(usecase statsin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Day reads one day. An empty date means today.
func (h CLIHandler) Day(ctx context.Context, date string, now time.Time) (dto.DailyStatOutput, error) {
	if date == "" {
		date = h.usecase.DateKey(now)
	}
	return h.usecase.GetDailyStat(ctx, date)
}

func (h CLIHandler) Total(ctx context.Context) (dto.TotalsOutput, error) {
	return h.usecase.GetTotal(ctx)
}
