package in

import (
	"context"
	"time"

	sessiondto "focuskit/internal/modules/session/dto"
	sessionin "focuskit/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Start begins a session. A zero duration uses the configured default.
func (h CLIHandler) Start(ctx context.Context, duration time.Duration, taskRef string, strict bool) (sessiondto.SessionView, error) {
	return h.usecase.Start(ctx, sessiondto.StartInput{
		TargetSeconds: int64(duration / time.Second),
		TaskRef:       taskRef,
		StrictMode:    strict,
	})
}

func (h CLIHandler) Pause(ctx context.Context) (sessiondto.SessionView, error) {
	return h.usecase.Pause(ctx)
}

func (h CLIHandler) Resume(ctx context.Context) (sessiondto.SessionView, error) {
	return h.usecase.Resume(ctx)
}

func (h CLIHandler) Complete(ctx context.Context) (sessiondto.SessionView, error) {
	return h.usecase.Complete(ctx)
}

func (h CLIHandler) Reset(ctx context.Context) (sessiondto.SessionView, error) {
	return h.usecase.Reset(ctx)
}

func (h CLIHandler) Acknowledge(ctx context.Context) (sessiondto.SessionView, error) {
	return h.usecase.Acknowledge(ctx)
}

func (h CLIHandler) Status(ctx context.Context) sessiondto.SessionView {
	return h.usecase.Current(ctx)
}

func (h CLIHandler) Watch(buffer int) (<-chan sessiondto.SessionView, func()) {
	return h.usecase.Watch(buffer)
}
