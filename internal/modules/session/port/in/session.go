package in

import (
	"context"

	"focuskit/internal/modules/session/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.SessionView, error)
	Pause(ctx context.Context) (dto.SessionView, error)
	Resume(ctx context.Context) (dto.SessionView, error)
	Complete(ctx context.Context) (dto.SessionView, error)
	Reset(ctx context.Context) (dto.SessionView, error)
	Acknowledge(ctx context.Context) (dto.SessionView, error)
	Recover(ctx context.Context) (dto.SessionView, error)
	Current(ctx context.Context) dto.SessionView
	Watch(buffer int) (<-chan dto.SessionView, func())
	Close(ctx context.Context) error
}
