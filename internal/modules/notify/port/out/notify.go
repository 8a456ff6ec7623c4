package out

import (
	"context"

	"focuskit/internal/modules/notify/domain"
)

type Notifier interface {
	Name() string
	Type() string
	Send(ctx context.Context, msg domain.Message) error
}

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}
