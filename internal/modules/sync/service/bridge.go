package service

import (
	"context"
	"fmt"
	"sync"

	"focuskit/internal/modules/sync/domain"
	syncdto "focuskit/internal/modules/sync/dto"
	syncin "focuskit/internal/modules/sync/port/in"
	syncout "focuskit/internal/modules/sync/port/out"
	"focuskit/internal/platform/clock"
	"focuskit/internal/platform/metrics"

	"github.com/rs/zerolog"
)

// Bridge wraps snapshots in envelopes, drops its own echoes and gates
// inbound snapshots by revision before handing them to subscribers.
type Bridge struct {
	transport syncout.Transport
	origin    string
	clock     clock.Clock
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	gate      domain.RevisionGate

	mu       sync.RWMutex
	handlers map[int]syncin.Handler
	next     int

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewBridge(ctx context.Context, transport syncout.Transport, origin string, clk clock.Clock, logger zerolog.Logger, m *metrics.Metrics) (*Bridge, error) {
	if origin == "" {
		return nil, fmt.Errorf("bridge origin is required")
	}
	listenCtx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		transport: transport,
		origin:    origin,
		clock:     clk,
		logger:    logger.With().Str("component", "sync").Str("origin", origin).Logger(),
		metrics:   m,
		handlers:  map[int]syncin.Handler{},
		cancel:    cancel,
	}
	if err := transport.Listen(listenCtx, b.receive); err != nil {
		cancel()
		return nil, fmt.Errorf("listen for snapshots: %w", err)
	}
	return b, nil
}

var _ syncin.Bridge = (*Bridge)(nil)

func (b *Bridge) Origin() string {
	return b.origin
}

func (b *Bridge) Publish(ctx context.Context, snapshot syncdto.Snapshot) error {
	b.gate.Observe(snapshot.Revision, b.origin)
	sentAt := snapshot.SentAt
	if sentAt.IsZero() {
		sentAt = b.clock.Now()
	}
	payload, err := domain.Encode(domain.NewEnvelope(snapshot.Payload, snapshot.Revision, b.origin, sentAt))
	if err != nil {
		return err
	}
	if err := b.transport.Publish(ctx, payload); err != nil {
		return fmt.Errorf("publish revision %d: %w", snapshot.Revision, err)
	}
	b.metrics.SyncSnapshot("published")
	return nil
}

func (b *Bridge) Subscribe(handler syncin.Handler) func() {
	b.mu.Lock()
	key := b.next
	b.next++
	b.handlers[key] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, key)
			b.mu.Unlock()
		})
	}
}

func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		err = b.transport.Close()
	})
	return err
}

func (b *Bridge) receive(raw []byte) {
	envelope, err := domain.Decode(raw)
	if err != nil {
		b.logger.Warn().Err(err).Msg("dropping sync message")
		b.metrics.SyncSnapshot("corrupt")
		return
	}
	if envelope.Origin == b.origin {
		return
	}
	if !b.gate.Admit(envelope.Revision, envelope.Origin) {
		b.logger.Debug().Int64("revision", envelope.Revision).Str("from", envelope.Origin).Msg("discarding stale snapshot")
		b.metrics.SyncSnapshot("discarded")
		return
	}

	snapshot := syncdto.Snapshot{
		Revision: envelope.Revision,
		Origin:   envelope.Origin,
		Payload:  envelope.Snapshot,
		SentAt:   envelope.SentAt,
	}
	b.mu.RLock()
	handlers := make([]syncin.Handler, 0, len(b.handlers))
	for _, handler := range b.handlers {
		handlers = append(handlers, handler)
	}
	b.mu.RUnlock()
	for _, handler := range handlers {
		handler(context.Background(), snapshot)
	}
}
