package in

import (
	"context"

	"focuskit/internal/modules/notify/dto"
)

// Usecase delivers lifecycle notifications. Notify never fails.
type Usecase interface {
	Notify(ctx context.Context, input dto.NotifyInput)
	Notifiers() []dto.NotifierOutput
}
