package out

import (
	"context"

	"focuskit/internal/modules/stats/domain"
)

type StatStore interface {
	// Credit applies credit to its day, creating the day with target if
	// absent. A credit whose SessionID was already applied is ignored and
	// reported as not applied.
	Credit(ctx context.Context, credit domain.Credit, target domain.Target) (bool, error)
	Get(ctx context.Context, dateKey string) (domain.DailyStat, bool, error)
	List(ctx context.Context) ([]domain.DailyStat, error)
}
