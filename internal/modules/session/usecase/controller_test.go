package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	notifydto "focuskit/internal/modules/notify/dto"
	sessionout "focuskit/internal/modules/session/adapter/out"
	"focuskit/internal/modules/session/domain"
	sessiondto "focuskit/internal/modules/session/dto"
	"focuskit/internal/modules/session/service"
	"focuskit/internal/modules/session/usecase"
	statsdto "focuskit/internal/modules/stats/dto"
	syncout "focuskit/internal/modules/sync/adapter/out"
	syncservice "focuskit/internal/modules/sync/service"
	"focuskit/internal/platform/clock"
	apperrors "focuskit/internal/platform/errors"
	"focuskit/internal/platform/logging"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeStats struct {
	mu          sync.Mutex
	completions []statsdto.CreditInput
	partials    []statsdto.CreditInput
}

func (f *fakeStats) DateKey(at time.Time) string { return at.UTC().Format("2006-01-02") }

func (f *fakeStats) RecordCompletion(_ context.Context, input statsdto.CreditInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, input)
	return nil
}

func (f *fakeStats) RecordPartial(_ context.Context, input statsdto.CreditInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, input)
	return nil
}

func (f *fakeStats) GetDailyStat(context.Context, string) (statsdto.DailyStatOutput, error) {
	return statsdto.DailyStatOutput{}, nil
}

func (f *fakeStats) GetTotal(context.Context) (statsdto.TotalsOutput, error) {
	return statsdto.TotalsOutput{}, nil
}

func (f *fakeStats) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completions), len(f.partials)
}

type fakeNotify struct {
	mu    sync.Mutex
	notes []notifydto.NotifyInput
}

func (f *fakeNotify) Notify(_ context.Context, input notifydto.NotifyInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, input)
}

func (f *fakeNotify) Notifiers() []notifydto.NotifierOutput { return nil }

func (f *fakeNotify) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.notes))
	for _, note := range f.notes {
		out = append(out, note.Kind)
	}
	return out
}

type flakyStorage struct {
	*sessionout.MemoryStorage
	fail atomic.Bool
	sets atomic.Int64
}

func (s *flakyStorage) Set(ctx context.Context, key string, value []byte) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	s.sets.Add(1)
	return s.MemoryStorage.Set(ctx, key, value)
}

func (s *flakyStorage) Delete(ctx context.Context, key string) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.MemoryStorage.Delete(ctx, key)
}

type harness struct {
	clk     *clock.Manual
	storage *flakyStorage
	stats   *fakeStats
	notify  *fakeNotify
	ctrl    *usecase.Controller
}

func newHarness(t *testing.T, storage *flakyStorage, clk *clock.Manual) *harness {
	t.Helper()
	return newSurface(t, "test", storage, clk)
}

// newSurface builds a controller named origin. Surfaces given the same
// storage share one snapshot without a bridge between them.
func newSurface(t *testing.T, origin string, storage *flakyStorage, clk *clock.Manual) *harness {
	t.Helper()
	if storage == nil {
		storage = &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}
	}
	if clk == nil {
		clk = clock.NewManual(t0)
	}
	h := &harness{clk: clk, storage: storage, stats: &fakeStats{}, notify: &fakeNotify{}}
	h.ctrl = usecase.NewController(context.Background(), usecase.Deps{
		Clock:  clk,
		Store:  service.NewStateStore(storage, logging.Nop(), nil),
		Stats:  h.stats,
		Notify: h.notify,
		Logger: logging.Nop(),
	}, usecase.Options{Origin: origin})
	t.Cleanup(func() { _ = h.ctrl.Close(context.Background()) })
	return h
}

func TestPauseResumeThenTickCompletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)

	view, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500, TaskRef: "write-report"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Status != string(domain.StatusActive) || view.Revision != 1 || view.RemainingSeconds != 1500 {
		t.Fatalf("unexpected start view %+v", view)
	}
	if h.clk.Subscriptions() != 1 {
		t.Fatalf("expected one tick subscription, got %d", h.clk.Subscriptions())
	}

	h.clk.Advance(400 * time.Second)
	if _, err := h.ctrl.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if h.clk.Subscriptions() != 0 {
		t.Fatalf("tick must stop while paused")
	}
	h.clk.Advance(600 * time.Second)
	if view, err = h.ctrl.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if view.ElapsedSeconds != 400 {
		t.Fatalf("expected 400s elapsed after resume, got %d", view.ElapsedSeconds)
	}

	h.clk.AdvanceAndFire(1099 * time.Second)
	if got := h.ctrl.Current(ctx); got.Status != string(domain.StatusActive) || got.RemainingSeconds != 1 {
		t.Fatalf("expected one second left, got %+v", got)
	}
	h.clk.AdvanceAndFire(time.Second)

	done := h.ctrl.Current(ctx)
	if done.Status != string(domain.StatusCompleted) || done.ElapsedSeconds != 1500 || done.Progress != 1 {
		t.Fatalf("expected completed session, got %+v", done)
	}
	completions, partials := h.stats.counts()
	if completions != 1 || partials != 0 {
		t.Fatalf("expected one completion credit, got %d/%d", completions, partials)
	}
	credit := h.stats.completions[0]
	if credit.Seconds != 1500 || credit.DateKey != "2026-03-02" || credit.SessionID != done.SessionID {
		t.Fatalf("unexpected credit %+v", credit)
	}
	if kinds := h.notify.kinds(); len(kinds) != 2 || kinds[0] != notifydto.KindStarted || kinds[1] != notifydto.KindCompleted {
		t.Fatalf("unexpected notifications %v", kinds)
	}
	if h.clk.Subscriptions() != 0 {
		t.Fatalf("tick must be cancelled after completion")
	}
}

func TestActiveSessionIsCheckpointedEveryMinute(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	_, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	afterStart := h.storage.sets.Load()

	h.clk.AdvanceAndFire(30 * time.Second)
	if got := h.storage.sets.Load(); got != afterStart {
		t.Fatalf("expected no checkpoint before a minute, got %d writes", got-afterStart)
	}
	h.clk.AdvanceAndFire(31 * time.Second)
	if got := h.storage.sets.Load(); got <= afterStart {
		t.Fatalf("expected a checkpoint after a minute")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	if _, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 600}); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clk.Advance(200 * time.Second)
	first, err := h.ctrl.Complete(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	h.clk.AdvanceAndFire(time.Hour)
	second, err := h.ctrl.Complete(ctx)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if first.Revision != second.Revision || second.ElapsedSeconds != 200 {
		t.Fatalf("second complete must not change the session: %+v vs %+v", first, second)
	}
	if completions, _ := h.stats.counts(); completions != 1 {
		t.Fatalf("expected stats recorded once, got %d", completions)
	}
}

func TestCompleteFromInactiveFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, nil)
	_, err := h.ctrl.Complete(context.Background())
	if !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestRecoverCompletesSessionThatFinishedWhileDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}
	first := newHarness(t, storage, nil)
	started, err := first.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	restarted := newHarness(t, storage, clock.NewManual(t0.Add(time.Hour)))
	view, err := restarted.ctrl.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if view.Status != string(domain.StatusCompleted) || view.ElapsedSeconds != 1500 || view.SessionID != started.SessionID {
		t.Fatalf("expected recovered completion, got %+v", view)
	}
	if view.Revision != started.Revision+1 {
		t.Fatalf("expected revision %d, got %d", started.Revision+1, view.Revision)
	}
	if completions, _ := restarted.stats.counts(); completions != 1 {
		t.Fatalf("expected recovery to credit stats once, got %d", completions)
	}
	if restarted.clk.Subscriptions() != 0 {
		t.Fatalf("a resolved session must not tick")
	}
}

func TestRecoverResumesRunningAndKeepsPaused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}
	first := newHarness(t, storage, nil)
	if _, err := first.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500}); err != nil {
		t.Fatalf("start: %v", err)
	}

	running := newHarness(t, storage, clock.NewManual(t0.Add(10*time.Minute)))
	view, err := running.ctrl.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if view.Status != string(domain.StatusActive) || view.ElapsedSeconds != 600 {
		t.Fatalf("expected running session, got %+v", view)
	}
	if running.clk.Subscriptions() != 1 {
		t.Fatalf("recovered active session must tick")
	}
	if _, err := running.ctrl.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}

	later := newHarness(t, storage, clock.NewManual(t0.Add(24*time.Hour)))
	view, err = later.ctrl.Recover(ctx)
	if err != nil {
		t.Fatalf("recover paused: %v", err)
	}
	if view.Status != string(domain.StatusPaused) || view.ElapsedSeconds != 600 {
		t.Fatalf("paused session must survive restart untouched, got %+v", view)
	}
	if completions, _ := later.stats.counts(); completions != 0 {
		t.Fatalf("paused session must not be credited")
	}
}

func TestStrictModeRejectsPause(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	if _, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500, StrictMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := h.ctrl.Pause(ctx)
	if !errors.Is(err, apperrors.ErrStrictMode) {
		t.Fatalf("expected strict mode error, got %v", err)
	}
	var opErr *apperrors.OperationError
	if !errors.As(err, &opErr) || opErr.Op != "pause" || opErr.Status != string(domain.StatusActive) {
		t.Fatalf("expected operation error for pause from active, got %v", err)
	}
	if view.Status != string(domain.StatusActive) {
		t.Fatalf("session must keep running, got %s", view.Status)
	}
	if _, err := h.ctrl.Reset(ctx); err != nil {
		t.Fatalf("reset must be allowed in strict mode: %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	if _, err := h.ctrl.Pause(ctx); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("pause from inactive: %v", err)
	}
	if _, err := h.ctrl.Acknowledge(ctx); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("acknowledge from inactive: %v", err)
	}
	if _, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: -5}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("negative target: %v", err)
	}
	if _, err := h.ctrl.Start(ctx, sessiondto.StartInput{}); err != nil {
		t.Fatalf("default target start: %v", err)
	}
	if view := h.ctrl.Current(ctx); view.TargetSeconds != 1500 {
		t.Fatalf("expected default 25 minute target, got %d", view.TargetSeconds)
	}
	if _, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 60}); !errors.Is(err, apperrors.ErrAlreadyActive) {
		t.Fatalf("start while active: %v", err)
	}
	if _, err := h.ctrl.Resume(ctx); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("resume while active: %v", err)
	}
}

func TestResetPartialCreditThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)

	if _, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500}); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clk.Advance(29 * time.Second)
	if _, err := h.ctrl.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, partials := h.stats.counts(); partials != 0 {
		t.Fatalf("29s must not earn partial credit")
	}

	if _, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	h.clk.Advance(31 * time.Second)
	view, err := h.ctrl.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if view.Status != string(domain.StatusInactive) {
		t.Fatalf("expected inactive after reset, got %s", view.Status)
	}
	if _, partials := h.stats.counts(); partials != 1 || h.stats.partials[0].Seconds != 31 {
		t.Fatalf("expected one 31s partial credit, got %+v", h.stats.partials)
	}
	if h.clk.Subscriptions() != 0 {
		t.Fatalf("reset must cancel the tick")
	}
	h.clk.AdvanceAndFire(time.Hour)
	if completions, _ := h.stats.counts(); completions != 0 {
		t.Fatalf("a reset session must never complete")
	}
}

func TestResetFromInactiveKeepsRevision(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, nil)
	view, err := h.ctrl.Reset(context.Background())
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if view.Revision != 0 {
		t.Fatalf("reset of nothing must not bump the revision, got %d", view.Revision)
	}
}

func TestAcknowledgeClearsAndWatermarkSurvivesRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}
	h := newHarness(t, storage, nil)
	_, _ = h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 60})
	_, _ = h.ctrl.Complete(ctx)
	view, err := h.ctrl.Acknowledge(ctx)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if view.Status != string(domain.StatusInactive) || view.Revision != 3 {
		t.Fatalf("unexpected view after acknowledge %+v", view)
	}
	if _, ok, _ := storage.Get(ctx, service.SnapshotKey); ok {
		t.Fatalf("acknowledge must clear the persisted snapshot")
	}

	restarted := newHarness(t, storage, nil)
	next, err := restarted.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 60})
	if err != nil {
		t.Fatalf("start after restart: %v", err)
	}
	if next.Revision != 4 {
		t.Fatalf("revision must continue from the watermark, got %d", next.Revision)
	}
}

func TestStartAfterCompletedReplacesSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	first, _ := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 60})
	_, _ = h.ctrl.Complete(ctx)
	second, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 60})
	if err != nil {
		t.Fatalf("start from completed: %v", err)
	}
	if second.SessionID == first.SessionID || second.Status != string(domain.StatusActive) {
		t.Fatalf("expected a fresh active session, got %+v", second)
	}
}

func TestPersistenceFailureKeepsSessionInMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	h.storage.fail.Store(true)

	view, err := h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500})
	if err != nil {
		t.Fatalf("start must succeed without storage: %v", err)
	}
	if view.Status != string(domain.StatusActive) {
		t.Fatalf("expected active session, got %s", view.Status)
	}
	h.clk.AdvanceAndFire(time.Second)
	h.clk.AdvanceAndFire(time.Second)

	errorsSeen := 0
	for _, kind := range h.notify.kinds() {
		if kind == notifydto.KindError {
			errorsSeen++
		}
	}
	if errorsSeen != 1 {
		t.Fatalf("expected a single error notification, got %v", h.notify.kinds())
	}
	if _, ok, _ := h.storage.Get(ctx, service.SnapshotKey); ok {
		t.Fatalf("nothing should be persisted while storage fails")
	}

	h.storage.fail.Store(false)
	h.clk.AdvanceAndFire(time.Second)
	if _, ok, _ := h.storage.Get(ctx, service.SnapshotKey); !ok {
		t.Fatalf("the next tick must flush the pending snapshot")
	}
	if got := h.ctrl.Current(ctx); got.ElapsedSeconds != 3 {
		t.Fatalf("timer must keep running, got %d", got.ElapsedSeconds)
	}
}

func TestWatchStreamsChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	views, stop := h.ctrl.Watch(8)

	initial := <-views
	if initial.Status != string(domain.StatusInactive) {
		t.Fatalf("expected inactive first view, got %s", initial.Status)
	}
	_, _ = h.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 60})
	h.clk.AdvanceAndFire(time.Second)

	started := <-views
	ticked := <-views
	if started.Status != string(domain.StatusActive) || ticked.ElapsedSeconds != 1 {
		t.Fatalf("unexpected views %+v then %+v", started, ticked)
	}

	stop()
	stop()
	if _, open := <-views; open {
		t.Fatalf("watch channel must close after stop")
	}
}

func TestCloseClosesWatchers(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil, nil)
	views, _ := h.ctrl.Watch(1)
	<-views
	if err := h.ctrl.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, open := <-views; open {
		t.Fatalf("close must close watchers")
	}
	late, _ := h.ctrl.Watch(1)
	if _, open := <-late; open {
		t.Fatalf("watch after close must return a closed channel")
	}
}

func TestSurfacesConvergeOverBridge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	hub := syncout.NewMemoryHub()
	clk := clock.NewManual(t0)

	surface := func(origin string) *harness {
		bridge, err := syncservice.NewBridge(ctx, hub.Connect(), origin, clk, logging.Nop(), nil)
		if err != nil {
			t.Fatalf("bridge: %v", err)
		}
		t.Cleanup(func() { _ = bridge.Close() })
		h := &harness{clk: clk, storage: &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}, stats: &fakeStats{}, notify: &fakeNotify{}}
		h.ctrl = usecase.NewController(ctx, usecase.Deps{
			Clock:  clk,
			Store:  service.NewStateStore(h.storage, logging.Nop(), nil),
			Stats:  h.stats,
			Notify: h.notify,
			Bridge: bridge,
			Logger: logging.Nop(),
		}, usecase.Options{})
		t.Cleanup(func() { _ = h.ctrl.Close(ctx) })
		return h
	}
	cli := surface("cli")
	tui := surface("tui")
	if cli.ctrl.Origin() != "cli" {
		t.Fatalf("controller must take the bridge origin, got %s", cli.ctrl.Origin())
	}

	started, err := cli.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 120})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	mirrored := tui.ctrl.Current(ctx)
	if mirrored.SessionID != started.SessionID || mirrored.Revision != 1 || mirrored.Origin != "cli" {
		t.Fatalf("tui did not adopt the cli session: %+v", mirrored)
	}
	if _, ok, _ := tui.storage.Get(ctx, service.SnapshotKey); !ok {
		t.Fatalf("adopted session must be persisted locally")
	}

	clk.Advance(30 * time.Second)
	if _, err := tui.ctrl.Pause(ctx); err != nil {
		t.Fatalf("pause from tui: %v", err)
	}
	paused := cli.ctrl.Current(ctx)
	if paused.Status != string(domain.StatusPaused) || paused.Revision != 2 || paused.Origin != "tui" {
		t.Fatalf("cli did not follow the tui pause: %+v", paused)
	}

	if _, err := cli.ctrl.Complete(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := tui.ctrl.Current(ctx); got.Status != string(domain.StatusCompleted) || got.Revision != 3 {
		t.Fatalf("tui did not follow completion: %+v", got)
	}
	cliCompletions, _ := cli.stats.counts()
	tuiCompletions, _ := tui.stats.counts()
	if cliCompletions != 1 || tuiCompletions != 0 {
		t.Fatalf("only the completing surface credits stats, got cli=%d tui=%d", cliCompletions, tuiCompletions)
	}
	if len(tui.notify.kinds()) != 0 {
		t.Fatalf("adopting surfaces must not notify, got %v", tui.notify.kinds())
	}
	if clk.Subscriptions() != 0 {
		t.Fatalf("no surface should tick a completed session, got %d", clk.Subscriptions())
	}
}

func TestCheckpointDoesNotOverwriteNewerSnapshotFromSharedStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := clock.NewManual(t0)
	storage := &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}
	cli := newSurface(t, "cli", storage, clk)
	tui := newSurface(t, "tui", storage, clk)

	started, err := cli.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 120})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view, err := tui.ctrl.Recover(ctx); err != nil || view.SessionID != started.SessionID {
		t.Fatalf("tui did not pick up the running session: %+v %v", view, err)
	}

	clk.Advance(10 * time.Second)
	paused, err := cli.ctrl.Pause(ctx)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}

	// The tui still believes the session runs; its next checkpoint is due.
	clk.AdvanceAndFire(70 * time.Second)

	store := service.NewStateStore(storage, logging.Nop(), nil)
	stored, ok := store.Load(ctx)
	if !ok || stored.Status != domain.StatusPaused || stored.Revision != paused.Revision {
		t.Fatalf("paused snapshot was overwritten: %+v", stored)
	}
	if got := tui.ctrl.Current(ctx); got.Status != string(domain.StatusPaused) || got.Revision != paused.Revision || got.ElapsedSeconds != 10 {
		t.Fatalf("tui must reload the paused session, got %+v", got)
	}
	if clk.Subscriptions() != 0 {
		t.Fatalf("nobody should tick a paused session, got %d", clk.Subscriptions())
	}

	clk.AdvanceAndFire(time.Hour)
	cliDone, _ := cli.stats.counts()
	tuiDone, _ := tui.stats.counts()
	if cliDone != 0 || tuiDone != 0 {
		t.Fatalf("paused session must not be credited, got cli=%d tui=%d", cliDone, tuiDone)
	}
	if len(tui.notify.kinds()) != 0 {
		t.Fatalf("reloading must not notify, got %v", tui.notify.kinds())
	}
}

func TestStaleSurfaceCompletesSessionOnlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := clock.NewManual(t0)
	storage := &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}
	cli := newSurface(t, "cli", storage, clk)
	tui := newSurface(t, "tui", storage, clk)

	if _, err := cli.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 60}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := tui.ctrl.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	// Both surfaces tick past the target; the first to fire completes it.
	clk.AdvanceAndFire(61 * time.Second)

	cliDone, _ := cli.stats.counts()
	tuiDone, _ := tui.stats.counts()
	if cliDone+tuiDone != 1 {
		t.Fatalf("expected exactly one completion credit, got cli=%d tui=%d", cliDone, tuiDone)
	}
	for _, h := range []*harness{cli, tui} {
		if got := h.ctrl.Current(ctx); got.Status != string(domain.StatusCompleted) || got.Revision != 2 {
			t.Fatalf("surface %s did not settle on the completion: %+v", h.ctrl.Origin(), got)
		}
	}
}

func TestOperationOnStaleSurfaceActsOnStoredSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := clock.NewManual(t0)
	storage := &flakyStorage{MemoryStorage: sessionout.NewMemoryStorage()}
	cli := newSurface(t, "cli", storage, clk)
	tui := newSurface(t, "tui", storage, clk)

	if _, err := cli.ctrl.Start(ctx, sessiondto.StartInput{TargetSeconds: 1500}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := tui.ctrl.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if _, err := cli.ctrl.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	view, err := tui.ctrl.Pause(ctx)
	if !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("pausing a session reset elsewhere must fail, got %v", err)
	}
	if view.Status != string(domain.StatusInactive) || view.Revision != 2 {
		t.Fatalf("tui must show the reset, got %+v", view)
	}
	if _, ok, _ := storage.Get(ctx, service.SnapshotKey); ok {
		t.Fatalf("the reset session must not be resurrected")
	}
}
