package in

import (
	"context"

	"focuskit/internal/modules/notify/dto"
	notifyin "focuskit/internal/modules/notify/port/in"
)

type CLIHandler struct {
	usecase notifyin.Usecase
}

func NewCLIHandler(usecase notifyin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List() []dto.NotifierOutput {
	return h.usecase.Notifiers()
}

// Test sends a sample notification of kind through every notifier.
func (h CLIHandler) Test(ctx context.Context, kind string) {
	h.usecase.Notify(ctx, dto.NotifyInput{
		Kind:           kind,
		SessionID:      "test",
		TaskRef:        "notifier-check",
		TargetSeconds:  25 * 60,
		ElapsedSeconds: 25 * 60,
		Detail:         "this is a test notification",
	})
}
