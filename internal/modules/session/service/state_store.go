package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"focuskit/internal/modules/session/domain"
	sessionout "focuskit/internal/modules/session/port/out"
	apperrors "focuskit/internal/platform/errors"
	"focuskit/internal/platform/metrics"

	"github.com/rs/zerolog"
)

const (
	SnapshotKey = "session/current"
	RevisionKey = "session/revision"
)

// StateStore persists the canonical session through an opaque Storage and
// keeps a revision watermark that survives Clear.
type StateStore struct {
	storage sessionout.Storage
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewStateStore(storage sessionout.Storage, logger zerolog.Logger, m *metrics.Metrics) *StateStore {
	return &StateStore{storage: storage, logger: logger, metrics: m}
}

// Load never fails: unreadable or corrupt snapshots are logged and reported
// as no session.
func (s *StateStore) Load(ctx context.Context) (domain.Session, bool) {
	raw, ok, err := s.storage.Get(ctx, SnapshotKey)
	if err != nil {
		s.logger.Error().Err(fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)).Str("op", "load").Msg("read session snapshot")
		return domain.Session{}, false
	}
	if !ok || len(raw) == 0 {
		return domain.Session{}, false
	}
	session, err := domain.DecodeSnapshot(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding persisted session")
		return domain.Session{}, false
	}
	if session.Status == domain.StatusInactive {
		return domain.Session{}, false
	}
	return session, true
}

// Save refuses to overwrite a snapshot written at a higher revision. Surfaces
// sharing one Storage must reload instead of clobbering each other.
func (s *StateStore) Save(ctx context.Context, session domain.Session) error {
	if mark, ok := s.watermark(ctx); ok && mark > session.Revision {
		return apperrors.Op("save", string(session.Status), apperrors.ErrStaleRevision)
	}
	payload, err := domain.EncodeSnapshot(session)
	if err != nil {
		return apperrors.Op("save", string(session.Status), fmt.Errorf("%w: %v", apperrors.ErrPersistence, err))
	}
	if err := s.storage.Set(ctx, SnapshotKey, payload); err != nil {
		s.metrics.PersistenceFailure("save")
		return apperrors.Op("save", string(session.Status), fmt.Errorf("%w: %v", apperrors.ErrPersistence, err))
	}
	if err := s.writeRevision(ctx, session.Revision); err != nil {
		s.metrics.PersistenceFailure("save")
		return apperrors.Op("save", string(session.Status), err)
	}
	return nil
}

// Clear removes the snapshot and records revision as the watermark.
func (s *StateStore) Clear(ctx context.Context, revision int64) error {
	if mark, ok := s.watermark(ctx); ok && mark > revision {
		return apperrors.Op("clear", string(domain.StatusInactive), apperrors.ErrStaleRevision)
	}
	if err := s.storage.Delete(ctx, SnapshotKey); err != nil {
		s.metrics.PersistenceFailure("clear")
		return apperrors.Op("clear", string(domain.StatusInactive), fmt.Errorf("%w: %v", apperrors.ErrPersistence, err))
	}
	if err := s.writeRevision(ctx, revision); err != nil {
		s.metrics.PersistenceFailure("clear")
		return apperrors.Op("clear", string(domain.StatusInactive), err)
	}
	return nil
}

// Reconcile resolves an active session whose target passed while nobody was
// watching. The returned session is completed at the instant it became due.
func (s *StateStore) Reconcile(session domain.Session, now time.Time) (domain.Session, bool) {
	if !session.Due(now) {
		return session, false
	}
	completed, err := session.Complete(session.DueAt())
	if err != nil {
		return session, false
	}
	return completed, true
}

// LastRevision returns the highest revision this store has written.
func (s *StateStore) LastRevision(ctx context.Context) int64 {
	revision, _ := s.watermark(ctx)
	if session, ok := s.Load(ctx); ok && session.Revision > revision {
		revision = session.Revision
	}
	return revision
}

// watermark reads the stored revision counter. ok is false when it is missing
// or unreadable.
func (s *StateStore) watermark(ctx context.Context) (int64, bool) {
	raw, ok, err := s.storage.Get(ctx, RevisionKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read revision watermark")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		s.logger.Warn().Err(err).Msg("ignoring malformed revision watermark")
		return 0, false
	}
	return parsed, true
}

func (s *StateStore) writeRevision(ctx context.Context, revision int64) error {
	current, ok, err := s.storage.Get(ctx, RevisionKey)
	if err == nil && ok {
		if parsed, parseErr := strconv.ParseInt(string(current), 10, 64); parseErr == nil && parsed >= revision {
			return nil
		}
	}
	if err := s.storage.Set(ctx, RevisionKey, []byte(strconv.FormatInt(revision, 10))); err != nil {
		return fmt.Errorf("%w: write revision watermark: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

var _ sessionout.StateStore = (*StateStore)(nil)
