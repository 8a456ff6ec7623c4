package in

import (
	"context"

	"focuskit/internal/modules/sync/dto"
)

type Handler func(ctx context.Context, snapshot dto.Snapshot)

// Bridge carries snapshots between surfaces. Handlers only see snapshots
// from other origins that pass the revision gate.
type Bridge interface {
	Origin() string
	Publish(ctx context.Context, snapshot dto.Snapshot) error
	Subscribe(handler Handler) func()
	Close() error
}
