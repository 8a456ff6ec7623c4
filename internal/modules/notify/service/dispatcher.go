package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"focuskit/internal/modules/notify/domain"
	"focuskit/internal/modules/notify/dto"
	notifyin "focuskit/internal/modules/notify/port/in"
	notifyout "focuskit/internal/modules/notify/port/out"
	"focuskit/internal/platform/metrics"

	"github.com/rs/zerolog"
)

const defaultSendTimeout = 5 * time.Second

type route struct {
	notifier notifyout.Notifier
	filter   domain.Route
}

// Dispatcher fans a rendered message out to every registered notifier.
// Delivery is synchronous; failures and panics are logged and counted.
type Dispatcher struct {
	mu      sync.RWMutex
	routes  []route
	logger  zerolog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

var _ notifyin.Usecase = (*Dispatcher)(nil)

func NewDispatcher(logger zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{logger: logger, metrics: m, timeout: defaultSendTimeout}
}

// SetTimeout bounds each individual Send.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	d.mu.Lock()
	d.timeout = timeout
	d.mu.Unlock()
}

// Register adds a notifier. Without kinds it receives every notification.
func (d *Dispatcher) Register(notifier notifyout.Notifier, kinds ...domain.Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, route{notifier: notifier, filter: domain.Route{Name: notifier.Name(), Kinds: kinds}})
}

// RegisterPlugins loads manifests and registers every enabled notifier whose
// binary exists and matches its checksum. Rejected manifests are logged and
// skipped. An unreadable manifest file is logged and counted against the
// "manifests" notifier; the session engine runs without plugins.
func (d *Dispatcher) RegisterPlugins(ctx context.Context, store notifyout.ManifestStore, build func(domain.Manifest) notifyout.Notifier) int {
	manifests, err := store.Load(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("load notifier manifests; continuing without plugins")
		d.metrics.NotificationFailure("manifests")
		return 0
	}
	seen := map[string]struct{}{}
	registered := 0
	for _, manifest := range manifests {
		log := d.logger.With().Str("notifier", manifest.Name).Logger()
		if err := manifest.Validate(); err != nil {
			log.Warn().Err(err).Msg("skipping invalid notifier manifest")
			continue
		}
		if _, ok := seen[manifest.Name]; ok {
			log.Warn().Msg("skipping duplicate notifier")
			continue
		}
		seen[manifest.Name] = struct{}{}
		if !manifest.Enabled {
			log.Debug().Err(domain.ErrNotifierDisabled).Msg("notifier not registered")
			continue
		}
		if err := checksumMatches(manifest.Binary, manifest.SHA256); err != nil {
			log.Warn().Err(err).Msg("skipping notifier")
			continue
		}
		d.Register(build(manifest), manifest.Kinds...)
		registered++
	}
	return registered
}

func (d *Dispatcher) Notify(ctx context.Context, input dto.NotifyInput) {
	msg, err := domain.Render(input)
	if err != nil {
		d.logger.Warn().Err(err).Str("session_id", input.SessionID).Msg("dropping notification")
		return
	}
	d.mu.RLock()
	routes := append([]route(nil), d.routes...)
	timeout := d.timeout
	d.mu.RUnlock()

	for _, r := range routes {
		if !r.filter.Accepts(msg.Kind) {
			continue
		}
		d.send(ctx, r.notifier, msg, timeout)
	}
}

func (d *Dispatcher) send(ctx context.Context, notifier notifyout.Notifier, msg domain.Message, timeout time.Duration) {
	name := notifier.Name()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error().Str("notifier", name).Interface("panic", rec).Msg("notifier panicked")
			d.metrics.NotificationFailure(name)
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := notifier.Send(sendCtx, msg); err != nil {
		d.logger.Warn().Err(err).Str("notifier", name).Str("kind", string(msg.Kind)).Msg("notification failed")
		d.metrics.NotificationFailure(name)
	}
}

func (d *Dispatcher) Notifiers() []dto.NotifierOutput {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]dto.NotifierOutput, 0, len(d.routes))
	for _, r := range d.routes {
		kinds := make([]string, 0, len(r.filter.Kinds))
		for _, kind := range r.filter.Kinds {
			kinds = append(kinds, string(kind))
		}
		out = append(out, dto.NotifierOutput{Name: r.filter.Name, Type: r.notifier.Type(), Kinds: kinds})
	}
	return out
}

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read notifier binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	if hex.EncodeToString(hash[:]) != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}
