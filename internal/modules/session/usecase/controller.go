package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	notifydto "focuskit/internal/modules/notify/dto"
	notifyin "focuskit/internal/modules/notify/port/in"
	"focuskit/internal/modules/session/domain"
	sessiondto "focuskit/internal/modules/session/dto"
	sessionin "focuskit/internal/modules/session/port/in"
	sessionout "focuskit/internal/modules/session/port/out"
	statsdto "focuskit/internal/modules/stats/dto"
	statsin "focuskit/internal/modules/stats/port/in"
	syncdto "focuskit/internal/modules/sync/dto"
	syncin "focuskit/internal/modules/sync/port/in"
	"focuskit/internal/platform/clock"
	apperrors "focuskit/internal/platform/errors"
	"focuskit/internal/platform/id"
	"focuskit/internal/platform/metrics"

	"github.com/rs/zerolog"
)

type Options struct {
	DefaultTargetSeconds   int64
	PartialCreditThreshold int64
	CheckpointInterval     time.Duration
	TickInterval           time.Duration
	// Origin names this surface when no bridge is attached.
	Origin string
}

type Deps struct {
	Clock   clock.Ticker
	IDs     id.Generator
	Store   sessionout.StateStore
	Tasks   sessionout.TaskRegistry
	Stats   statsin.Usecase
	Notify  notifyin.Usecase
	Bridge  syncin.Bridge
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Controller owns the session of one surface. Operations and tick callbacks
// are serialized by mu; notifications, stats and bridge publishes run after
// it is released.
type Controller struct {
	clock    clock.Ticker
	ids      id.Generator
	store    sessionout.StateStore
	tasks    sessionout.TaskRegistry
	stats    statsin.Usecase
	notifier notifyin.Usecase
	bridge   syncin.Bridge
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	opts     Options
	origin   string

	mu          sync.Mutex
	session     domain.Session
	revision    int64
	cancelTick  clock.CancelFunc
	tickGen     uint64
	dirty       bool
	lastSave    time.Time
	watchers    map[int]chan sessiondto.SessionView
	nextWatcher int
	unsubscribe func()
	closed      bool
}

type credit struct {
	partial bool
	id      string
	at      time.Time
	seconds int64
}

type effects struct {
	credit  *credit
	notes   []notifydto.NotifyInput
	publish *domain.Session
}

func NewController(ctx context.Context, deps Deps, opts Options) *Controller {
	if opts.DefaultTargetSeconds <= 0 {
		opts.DefaultTargetSeconds = 25 * 60
	}
	if opts.PartialCreditThreshold <= 0 {
		opts.PartialCreditThreshold = 30
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = time.Minute
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if deps.IDs == nil {
		deps.IDs = id.UUID{}
	}
	origin := opts.Origin
	if deps.Bridge != nil {
		origin = deps.Bridge.Origin()
	}
	if origin == "" {
		origin = deps.IDs.New()
	}
	c := &Controller{
		clock:    deps.Clock,
		ids:      deps.IDs,
		store:    deps.Store,
		tasks:    deps.Tasks,
		stats:    deps.Stats,
		notifier: deps.Notify,
		bridge:   deps.Bridge,
		logger:   deps.Logger.With().Str("component", "session").Str("origin", origin).Logger(),
		metrics:  deps.Metrics,
		opts:     opts,
		origin:   origin,
		watchers: map[int]chan sessiondto.SessionView{},
	}
	c.revision = c.store.LastRevision(ctx)
	c.session = domain.Inactive(c.revision, "")
	if c.bridge != nil {
		c.unsubscribe = c.bridge.Subscribe(c.applyRemote)
	}
	return c
}

var _ sessionin.Usecase = (*Controller)(nil)

func (c *Controller) Origin() string {
	return c.origin
}

func (c *Controller) Start(ctx context.Context, input sessiondto.StartInput) (sessiondto.SessionView, error) {
	if input.TaskRef != "" && c.tasks != nil {
		exists, err := c.tasks.TaskExists(ctx, input.TaskRef)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("task", input.TaskRef).Msg("task lookup failed")
		case !exists:
			c.logger.Info().Str("task", input.TaskRef).Msg("starting session for unknown task")
		}
	}

	now := c.clock.Now()
	c.mu.Lock()
	c.refreshLocked(ctx, now)
	status := c.session.Status
	if status != domain.StatusInactive && status != domain.StatusCompleted {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, apperrors.Op("start", string(status), apperrors.ErrAlreadyActive)
	}
	target := input.TargetSeconds
	if target == 0 {
		target = c.opts.DefaultTargetSeconds
	}
	next, err := domain.New(c.ids.New(), now, target, input.TaskRef, input.StrictMode)
	if err != nil {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, err
	}
	eff := effects{}
	if !c.commitLocked(ctx, next, now, "start", &eff) {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, apperrors.Op("start", view.Status, apperrors.ErrStaleRevision)
	}
	eff.notes = append(eff.notes, c.noteLocked(notifydto.KindStarted, now, ""))
	view := c.viewLocked(now)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return view, nil
}

func (c *Controller) Pause(ctx context.Context) (sessiondto.SessionView, error) {
	return c.transition(ctx, "pause", domain.Session.Pause)
}

func (c *Controller) Resume(ctx context.Context) (sessiondto.SessionView, error) {
	return c.transition(ctx, "resume", domain.Session.Resume)
}

func (c *Controller) transition(ctx context.Context, op string, step func(domain.Session, time.Time) (domain.Session, error)) (sessiondto.SessionView, error) {
	now := c.clock.Now()
	c.mu.Lock()
	c.refreshLocked(ctx, now)
	next, err := step(c.session, now)
	if err != nil {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, err
	}
	eff := effects{}
	if !c.commitLocked(ctx, next, now, op, &eff) {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, apperrors.Op(op, view.Status, apperrors.ErrStaleRevision)
	}
	view := c.viewLocked(now)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return view, nil
}

// Complete is a no-op once the session is completed.
func (c *Controller) Complete(ctx context.Context) (sessiondto.SessionView, error) {
	now := c.clock.Now()
	c.mu.Lock()
	c.refreshLocked(ctx, now)
	switch c.session.Status {
	case domain.StatusCompleted:
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, nil
	case domain.StatusInactive:
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, apperrors.Op("complete", string(domain.StatusInactive), apperrors.ErrInvalidState)
	}
	eff := effects{}
	c.completeLocked(ctx, now, "complete", &eff)
	view := c.viewLocked(now)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return view, nil
}

// Reset discards the session from any state. A running session past the
// partial credit threshold is credited first.
func (c *Controller) Reset(ctx context.Context) (sessiondto.SessionView, error) {
	now := c.clock.Now()
	c.mu.Lock()
	c.refreshLocked(ctx, now)
	c.stopTickLocked()
	eff := effects{}
	switch c.session.Status {
	case domain.StatusInactive:
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, nil
	case domain.StatusActive, domain.StatusPaused:
		if elapsed := c.session.Elapsed(now); elapsed > c.opts.PartialCreditThreshold {
			eff.credit = &credit{partial: true, id: c.session.ID, at: now, seconds: elapsed}
		}
	}
	if !c.commitLocked(ctx, domain.Inactive(0, ""), now, "reset", &eff) {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, apperrors.Op("reset", view.Status, apperrors.ErrStaleRevision)
	}
	view := c.viewLocked(now)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return view, nil
}

// Acknowledge clears a completed session.
func (c *Controller) Acknowledge(ctx context.Context) (sessiondto.SessionView, error) {
	now := c.clock.Now()
	c.mu.Lock()
	c.refreshLocked(ctx, now)
	if c.session.Status != domain.StatusCompleted {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, apperrors.Op("acknowledge", string(c.session.Status), apperrors.ErrInvalidState)
	}
	eff := effects{}
	if !c.commitLocked(ctx, domain.Inactive(0, ""), now, "acknowledge", &eff) {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, apperrors.Op("acknowledge", view.Status, apperrors.ErrStaleRevision)
	}
	view := c.viewLocked(now)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return view, nil
}

// Recover loads the persisted session. An active session whose target
// passed while no surface was running is completed on the spot.
func (c *Controller) Recover(ctx context.Context) (sessiondto.SessionView, error) {
	now := c.clock.Now()
	c.mu.Lock()
	if c.session.Status != domain.StatusInactive {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, nil
	}
	loaded, ok := c.store.Load(ctx)
	if !ok {
		view := c.viewLocked(now)
		c.mu.Unlock()
		return view, nil
	}
	if loaded.Revision > c.revision {
		c.revision = loaded.Revision
	}
	c.session = loaded
	eff := effects{}
	if resolved, due := c.store.Reconcile(loaded, now); due {
		c.logger.Info().Str("session", loaded.ID).Time("due_at", resolved.CompletedAt).Msg("resolving session that finished while unobserved")
		if c.commitLocked(ctx, resolved, now, "recover", &eff) {
			c.creditCompletionLocked(resolved, &eff)
		}
	} else {
		c.lastSave = now
		c.syncTickLocked()
		c.broadcastLocked(now)
	}
	view := c.viewLocked(now)
	c.mu.Unlock()

	c.apply(ctx, eff)
	return view, nil
}

func (c *Controller) Current(_ context.Context) sessiondto.SessionView {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(now)
}

// Watch streams a view on every change and tick. Slow readers miss
// intermediate views rather than block the controller.
func (c *Controller) Watch(buffer int) (<-chan sessiondto.SessionView, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan sessiondto.SessionView, buffer)
	now := c.clock.Now()
	c.mu.Lock()
	if c.closed {
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	key := c.nextWatcher
	c.nextWatcher++
	c.watchers[key] = ch
	ch <- c.viewLocked(now)
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if existing, ok := c.watchers[key]; ok {
				delete(c.watchers, key)
				close(existing)
			}
		})
	}
}

// Close stops the tick, flushes a pending snapshot and detaches watchers
// and the bridge. The persisted session is left for the next Recover.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTickLocked()
	var err error
	if c.dirty {
		if c.session.Status == domain.StatusInactive {
			err = c.store.Clear(ctx, c.revision)
		} else {
			err = c.store.Save(ctx, c.session)
		}
		if errors.Is(err, apperrors.ErrStaleRevision) {
			err = nil
		}
	}
	for key, ch := range c.watchers {
		delete(c.watchers, key)
		close(ch)
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	return err
}

func (c *Controller) onTick(gen uint64, now time.Time) {
	ctx := context.Background()
	c.mu.Lock()
	if c.closed || gen != c.tickGen || c.session.Status != domain.StatusActive {
		c.mu.Unlock()
		return
	}
	eff := effects{}
	due := c.session.Due(now)
	checkpoint := c.dirty || now.Sub(c.lastSave) >= c.opts.CheckpointInterval
	switch {
	case (due || checkpoint) && c.refreshLocked(ctx, now):
	case due:
		c.completeLocked(ctx, now, "tick", &eff)
	case checkpoint:
		if c.persistLocked(ctx, "checkpoint", now, &eff) {
			c.broadcastLocked(now)
		}
	default:
		c.broadcastLocked(now)
	}
	c.mu.Unlock()

	c.apply(ctx, eff)
}

// applyRemote adopts a snapshot from another surface when it is newer than
// the local revision. Adoption persists locally but never credits stats or
// notifies; the publishing surface already did.
func (c *Controller) applyRemote(ctx context.Context, snapshot syncdto.Snapshot) {
	remote, err := domain.DecodeSnapshot(snapshot.Payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("from", snapshot.Origin).Msg("discarding remote snapshot")
		c.metrics.SyncSnapshot("corrupt")
		return
	}
	if remote.Origin == "" {
		remote.Origin = snapshot.Origin
	}
	now := c.clock.Now()
	c.mu.Lock()
	if c.closed || !supersedes(remote, c.revision, c.session.Origin) {
		c.mu.Unlock()
		c.metrics.SyncSnapshot("stale")
		return
	}
	c.revision = remote.Revision
	c.session = remote
	eff := effects{}
	c.persistLocked(ctx, "adopt", now, &eff)
	c.syncTickLocked()
	c.broadcastLocked(now)
	c.mu.Unlock()

	c.metrics.SyncSnapshot("adopted")
	c.logger.Debug().Int64("revision", remote.Revision).Str("from", remote.Origin).Str("status", string(remote.Status)).Msg("adopted remote session")
	c.apply(ctx, eff)
}

// supersedes orders snapshots by revision, breaking ties by origin so two
// surfaces that raced to the same revision converge on one of them.
func supersedes(remote domain.Session, revision int64, origin string) bool {
	if remote.Revision != revision {
		return remote.Revision > revision
	}
	return remote.Origin > origin
}

func (c *Controller) completeLocked(ctx context.Context, now time.Time, op string, eff *effects) {
	c.stopTickLocked()
	done, err := c.session.Complete(now)
	if err != nil {
		c.logger.Error().Err(err).Msg("complete")
		return
	}
	if c.commitLocked(ctx, done, now, op, eff) {
		c.creditCompletionLocked(done, eff)
	}
}

func (c *Controller) creditCompletionLocked(done domain.Session, eff *effects) {
	elapsed := done.Elapsed(done.CompletedAt)
	eff.credit = &credit{id: done.ID, at: done.CompletedAt, seconds: elapsed}
	eff.notes = append(eff.notes, c.noteLocked(notifydto.KindCompleted, done.CompletedAt, ""))
}

// commitLocked installs next as the current session under a fresh revision,
// persists it and schedules the broadcast. It reports false when another
// surface sharing the store had already moved past this revision; the
// stored session is adopted instead and next is dropped.
func (c *Controller) commitLocked(ctx context.Context, next domain.Session, now time.Time, op string, eff *effects) bool {
	c.revision++
	next.Revision = c.revision
	next.Origin = c.origin
	c.session = next
	if !c.persistLocked(ctx, op, now, eff) {
		return false
	}
	c.syncTickLocked()
	published := c.session
	eff.publish = &published
	c.metrics.Transition(op)
	c.broadcastLocked(now)
	c.logger.Debug().Str("op", op).Str("status", string(next.Status)).Int64("revision", next.Revision).Msg("session transition")
	return true
}

// persistLocked writes the current session. Storage failures keep the
// session in memory and mark it dirty for the next tick. It reports false
// only when the write was refused as stale and a newer session was loaded.
func (c *Controller) persistLocked(ctx context.Context, op string, now time.Time, eff *effects) bool {
	var err error
	if c.session.Status == domain.StatusInactive {
		err = c.store.Clear(ctx, c.revision)
	} else {
		err = c.store.Save(ctx, c.session)
	}
	if errors.Is(err, apperrors.ErrStaleRevision) && c.refreshLocked(ctx, now) {
		return false
	}
	if err != nil {
		if !c.dirty {
			c.logger.Error().Err(err).Str("op", op).Msg("session kept in memory only")
			eff.notes = append(eff.notes, c.noteLocked(notifydto.KindError, now, err.Error()))
		} else {
			c.logger.Debug().Err(err).Str("op", op).Msg("snapshot retry failed")
		}
		c.dirty = true
		return true
	}
	if c.dirty {
		c.logger.Info().Str("op", op).Msg("session persistence recovered")
	}
	c.dirty = false
	c.lastSave = now
	return true
}

// refreshLocked adopts a session that another surface sharing the store
// committed after this one last did. Adoption never credits stats or
// notifies. It reports whether anything was adopted.
func (c *Controller) refreshLocked(ctx context.Context, now time.Time) bool {
	latest := c.store.LastRevision(ctx)
	if latest <= c.revision {
		return false
	}
	stored, ok := c.store.Load(ctx)
	if !ok {
		stored = domain.Inactive(latest, "")
	}
	c.revision = latest
	c.session = stored
	c.dirty = false
	c.lastSave = now
	c.syncTickLocked()
	c.broadcastLocked(now)
	c.metrics.SyncSnapshot("reloaded")
	c.logger.Info().Int64("revision", latest).Str("status", string(stored.Status)).Str("from", stored.Origin).Msg("reloaded session committed by another surface")
	return true
}

func (c *Controller) syncTickLocked() {
	if c.session.Status == domain.StatusActive {
		if c.cancelTick == nil {
			c.tickGen++
			gen := c.tickGen
			c.cancelTick = c.clock.Every(c.opts.TickInterval, func(now time.Time) { c.onTick(gen, now) })
		}
		return
	}
	c.stopTickLocked()
}

func (c *Controller) stopTickLocked() {
	if c.cancelTick == nil {
		return
	}
	c.cancelTick()
	c.cancelTick = nil
	c.tickGen++
}

func (c *Controller) broadcastLocked(now time.Time) {
	if len(c.watchers) == 0 {
		return
	}
	view := c.viewLocked(now)
	for _, ch := range c.watchers {
		select {
		case ch <- view:
		default:
		}
	}
}

func (c *Controller) viewLocked(now time.Time) sessiondto.SessionView {
	s := c.session
	return sessiondto.SessionView{
		SessionID:        s.ID,
		Status:           string(s.Status),
		TaskRef:          s.TaskRef,
		StrictMode:       s.StrictMode,
		StartedAt:        s.StartedAt,
		TargetSeconds:    s.TargetSeconds,
		ElapsedSeconds:   s.Elapsed(now),
		RemainingSeconds: s.Remaining(now),
		Progress:         s.Progress(now),
		Revision:         s.Revision,
		Origin:           s.Origin,
		ObservedAt:       now,
	}
}

func (c *Controller) noteLocked(kind string, now time.Time, detail string) notifydto.NotifyInput {
	return notifydto.NotifyInput{
		Kind:           kind,
		SessionID:      c.session.ID,
		TaskRef:        c.session.TaskRef,
		TargetSeconds:  c.session.TargetSeconds,
		ElapsedSeconds: c.session.Elapsed(now),
		Detail:         detail,
	}
}

func (c *Controller) apply(ctx context.Context, eff effects) {
	if eff.credit != nil && c.stats != nil {
		input := statsdto.CreditInput{
			SessionID: eff.credit.id,
			DateKey:   c.stats.DateKey(eff.credit.at),
			Seconds:   eff.credit.seconds,
			At:        eff.credit.at,
		}
		var err error
		if eff.credit.partial {
			err = c.stats.RecordPartial(ctx, input)
		} else {
			err = c.stats.RecordCompletion(ctx, input)
		}
		if err != nil {
			c.logger.Error().Err(err).Str("session", input.SessionID).Msg("record stats")
			eff.notes = append(eff.notes, notifydto.NotifyInput{Kind: notifydto.KindError, SessionID: input.SessionID, Detail: err.Error()})
		}
	}
	if c.notifier != nil {
		for _, note := range eff.notes {
			c.notifier.Notify(ctx, note)
		}
	}
	if eff.publish != nil && c.bridge != nil {
		payload, err := domain.EncodeSnapshot(*eff.publish)
		if err == nil {
			err = c.bridge.Publish(ctx, syncdto.Snapshot{
				Revision: eff.publish.Revision,
				Origin:   c.origin,
				Payload:  payload,
				SentAt:   c.clock.Now(),
			})
		}
		if err != nil {
			c.logger.Warn().Err(err).Int64("revision", eff.publish.Revision).Msg("publish snapshot")
		}
	}
}
