package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sessionout "focuskit/internal/modules/session/adapter/out"
	"focuskit/internal/modules/session/domain"
	"focuskit/internal/modules/session/service"
	apperrors "focuskit/internal/platform/errors"
	"focuskit/internal/platform/logging"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk gone")
}
func (brokenStorage) Set(context.Context, string, []byte) error { return errors.New("disk gone") }
func (brokenStorage) Delete(context.Context, string) error      { return errors.New("disk gone") }

func TestSaveLoadClearKeepsRevisionWatermark(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := service.NewStateStore(sessionout.NewMemoryStorage(), logging.Nop(), nil)

	_, ok := store.Load(ctx)
	require.False(t, ok)
	require.Zero(t, store.LastRevision(ctx))

	session, err := domain.New("s1", now, 1500, "task", false)
	require.NoError(t, err)
	session.Revision = 4
	require.NoError(t, store.Save(ctx, session))

	loaded, ok := store.Load(ctx)
	require.True(t, ok)
	require.Equal(t, session, loaded)

	require.NoError(t, store.Clear(ctx, 5))
	_, ok = store.Load(ctx)
	require.False(t, ok)
	require.EqualValues(t, 5, store.LastRevision(ctx), "revision must survive clear")

	session.Revision = 6
	require.NoError(t, store.Save(ctx, session))
	require.EqualValues(t, 6, store.LastRevision(ctx))
}

func TestSaveAndClearRefuseOlderRevisions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := service.NewStateStore(sessionout.NewMemoryStorage(), logging.Nop(), nil)

	running, err := domain.New("s1", now, 1500, "", false)
	require.NoError(t, err)
	running.Revision = 1
	require.NoError(t, store.Save(ctx, running))

	paused, err := running.Pause(now.Add(time.Minute))
	require.NoError(t, err)
	paused.Revision = 2
	require.NoError(t, store.Save(ctx, paused))

	// A surface still holding revision 1 checkpoints.
	err = store.Save(ctx, running)
	require.ErrorIs(t, err, apperrors.ErrStaleRevision)
	var opErr *apperrors.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "save", opErr.Op)

	err = store.Clear(ctx, 1)
	require.ErrorIs(t, err, apperrors.ErrStaleRevision)

	loaded, ok := store.Load(ctx)
	require.True(t, ok)
	require.Equal(t, domain.StatusPaused, loaded.Status)
	require.EqualValues(t, 2, loaded.Revision)

	// Equal revisions are allowed so a surface can rewrite its own snapshot.
	require.NoError(t, store.Save(ctx, paused))
	require.NoError(t, store.Clear(ctx, 3))
	require.EqualValues(t, 3, store.LastRevision(ctx))
}

func TestLoadTreatsCorruptSnapshotAsNoSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := sessionout.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, service.SnapshotKey, []byte(`{"schema_version":9}`)))
	store := service.NewStateStore(storage, logging.Nop(), nil)
	_, ok := store.Load(ctx)
	require.False(t, ok)

	require.NoError(t, storage.Set(ctx, service.SnapshotKey, []byte(`garbage`)))
	_, ok = store.Load(ctx)
	require.False(t, ok)
}

func TestStorageFailuresSurfaceAsPersistenceErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := service.NewStateStore(brokenStorage{}, logging.Nop(), nil)
	session, _ := domain.New("s1", now, 60, "", false)

	_, ok := store.Load(ctx)
	require.False(t, ok)
	err := store.Save(ctx, session)
	require.ErrorIs(t, err, apperrors.ErrPersistence)
	var opErr *apperrors.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "save", opErr.Op)
	require.ErrorIs(t, store.Clear(ctx, 1), apperrors.ErrPersistence)
}

func TestReconcileCompletesOverdueActiveSession(t *testing.T) {
	t.Parallel()
	store := service.NewStateStore(sessionout.NewMemoryStorage(), logging.Nop(), nil)
	stale, _ := domain.New("s1", now.Add(-3600*time.Second), 1500, "", false)

	resolved, due := store.Reconcile(stale, now)
	require.True(t, due)
	require.Equal(t, domain.StatusCompleted, resolved.Status)
	require.Equal(t, now.Add(-2100*time.Second), resolved.CompletedAt, "completion is stamped at the due instant")
	require.EqualValues(t, 1500, resolved.Elapsed(now))

	fresh, _ := domain.New("s2", now.Add(-100*time.Second), 1500, "", false)
	_, due = store.Reconcile(fresh, now)
	require.False(t, due)

	paused, _ := stale.Pause(now.Add(-3500 * time.Second))
	_, due = store.Reconcile(paused, now)
	require.False(t, due, "paused sessions are never resolved on load")
}
