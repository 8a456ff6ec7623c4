package out

import (
	"context"
	"time"

	"focuskit/internal/modules/session/domain"
)

// Storage is an opaque key-value store. Get reports false for missing keys.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type StateStore interface {
	Load(ctx context.Context) (domain.Session, bool)
	Save(ctx context.Context, session domain.Session) error
	Clear(ctx context.Context, revision int64) error
	Reconcile(session domain.Session, now time.Time) (domain.Session, bool)
	LastRevision(ctx context.Context) int64
}

// TaskRegistry is read-only and advisory.
type TaskRegistry interface {
	TaskExists(ctx context.Context, ref string) (bool, error)
}
