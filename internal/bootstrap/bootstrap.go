package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	notifyinadapter "focuskit/internal/modules/notify/adapter/in"
	notifyoutadapter "focuskit/internal/modules/notify/adapter/out"
	notifydomain "focuskit/internal/modules/notify/domain"
	notifyport "focuskit/internal/modules/notify/port/out"
	notifyservice "focuskit/internal/modules/notify/service"
	sessioninadapter "focuskit/internal/modules/session/adapter/in"
	sessionoutadapter "focuskit/internal/modules/session/adapter/out"
	sessionport "focuskit/internal/modules/session/port/out"
	sessionservice "focuskit/internal/modules/session/service"
	sessionusecase "focuskit/internal/modules/session/usecase"
	statsinadapter "focuskit/internal/modules/stats/adapter/in"
	statsoutadapter "focuskit/internal/modules/stats/adapter/out"
	statsdomain "focuskit/internal/modules/stats/domain"
	statsport "focuskit/internal/modules/stats/port/out"
	statsservice "focuskit/internal/modules/stats/service"
	statsusecase "focuskit/internal/modules/stats/usecase"
	syncinadapter "focuskit/internal/modules/sync/adapter/in"
	syncoutadapter "focuskit/internal/modules/sync/adapter/out"
	syncport "focuskit/internal/modules/sync/port/out"
	syncservice "focuskit/internal/modules/sync/service"
	"focuskit/internal/platform/clock"
	"focuskit/internal/platform/config"
	"focuskit/internal/platform/id"
	"focuskit/internal/platform/logging"
	"focuskit/internal/platform/metrics"
	uiapp "focuskit/internal/ui/app"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Options describe the surface being assembled.
type Options struct {
	// Surface prefixes the sync origin, e.g. "cli" or "tui".
	Surface string
	// LogOutput receives application logs. Nil means stderr.
	LogOutput io.Writer
	// Clock overrides the system clock.
	Clock clock.Ticker
}

type App struct {
	Config     config.Config
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	SessionCLI sessioninadapter.CLIHandler
	StatsCLI   statsinadapter.CLIHandler
	NotifyCLI  notifyinadapter.CLIHandler

	controller *sessionusecase.Controller
	closers    []func() error
}

// New wires one surface: storage and stats per the storage backend, the sync
// bridge per the transport, notifiers, and a session controller that has
// already recovered any persisted session.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, out)
	m := metrics.New(prometheus.NewRegistry())
	var clk clock.Ticker = clock.SystemClock{}
	if opts.Clock != nil {
		clk = opts.Clock
	}
	ids := id.UUID{}
	app := &App{Config: cfg, Logger: logger, Metrics: m}

	storage, stats, err := app.openStores(cfg, logger)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	aggregator, err := statsservice.NewAggregator(
		stats,
		statsdomain.Target{Value: cfg.Stats.DailyTarget, Type: statsdomain.TargetType(cfg.Stats.TargetType)},
		cfg.Stats.Location,
		logging.Component(logger, "stats"),
		m,
	)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("new stats aggregator: %w", err)
	}
	aggregator.SetClock(clk.Now)
	statsUC := statsusecase.NewInteractor(aggregator)

	dispatcher := newDispatcher(ctx, cfg, logging.Component(logger, "notify"), m)

	surface := opts.Surface
	if surface == "" {
		surface = "cli"
	}
	origin := fmt.Sprintf("%s-%s", surface, ids.New()[:8])
	var bridge *syncservice.Bridge
	if cfg.Sync.Transport != config.TransportNone {
		transport, err := openTransport(ctx, cfg, origin, logging.Component(logger, "sync"))
		if err != nil {
			_ = app.Close(ctx)
			return nil, err
		}
		bridge, err = syncservice.NewBridge(ctx, transport, origin, clk, logger, m)
		if err != nil {
			_ = transport.Close()
			_ = app.Close(ctx)
			return nil, fmt.Errorf("new sync bridge: %w", err)
		}
		app.closers = append(app.closers, bridge.Close)
	}

	deps := sessionusecase.Deps{
		Clock:   clk,
		IDs:     ids,
		Store:   sessionservice.NewStateStore(storage, logging.Component(logger, "store"), m),
		Tasks:   sessionoutadapter.NewYAMLTaskRegistry(cfg.Session.TasksPath),
		Stats:   statsUC,
		Notify:  dispatcher,
		Logger:  logger,
		Metrics: m,
	}
	if bridge != nil {
		deps.Bridge = bridge
	}
	controller := sessionusecase.NewController(ctx, deps, sessionusecase.Options{
		DefaultTargetSeconds:   int64(cfg.Session.DefaultDuration / time.Second),
		PartialCreditThreshold: int64(cfg.Session.PartialCreditThreshold / time.Second),
		CheckpointInterval:     cfg.Session.CheckpointInterval,
		Origin:                 origin,
	})
	app.controller = controller
	if _, err := controller.Recover(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("recover session: %w", err)
	}

	app.SessionCLI = sessioninadapter.NewCLIHandler(controller)
	app.StatsCLI = statsinadapter.NewCLIHandler(statsUC)
	app.NotifyCLI = notifyinadapter.NewCLIHandler(dispatcher)
	return app, nil
}

// Close flushes the session and releases every connection in reverse order
// of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.controller != nil {
		errs = append(errs, a.controller.Close(ctx))
		a.controller = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStores(cfg config.Config, logger zerolog.Logger) (sessionport.Storage, statsport.StatStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return sessionoutadapter.NewMemoryStorage(), statsoutadapter.NewMemoryStatStore(), nil
	case config.StorageRedis:
		storage, err := sessionoutadapter.NewRedisStorage(sessionoutadapter.RedisConfig{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis storage: %w", err)
		}
		a.closers = append(a.closers, storage.Close)
		return storage, statsoutadapter.NewRedisStatStore(storage.Client(), cfg.Storage.Redis.KeyPrefix), nil
	}

	stats, err := statsoutadapter.NewSQLiteStatStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open stats store: %w", err)
	}
	a.closers = append(a.closers, stats.Close)
	if cfg.Storage.Backend == config.StorageSQLite {
		storage, err := sessionoutadapter.NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		a.closers = append(a.closers, storage.Close)
		return storage, stats, nil
	}
	logger.Debug().Str("dir", cfg.DataDir).Msg("using file session storage")
	return sessionoutadapter.NewFileStorage(cfg.DataDir), stats, nil
}

func newDispatcher(ctx context.Context, cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) *notifyservice.Dispatcher {
	dispatcher := notifyservice.NewDispatcher(logger, m)
	if cfg.Notify.LogNotifier {
		dispatcher.Register(notifyoutadapter.NewLogNotifier(logger))
	}
	hostLog := logging.Component(logger, "notifier-host")
	registered := dispatcher.RegisterPlugins(ctx, notifyoutadapter.NewFileManifestStore(cfg.Notify.ManifestPath), func(manifest notifydomain.Manifest) notifyport.Notifier {
		return notifyoutadapter.NewPluginNotifier(manifest, hostLog)
	})
	if registered > 0 {
		logger.Debug().Int("count", registered).Msg("notifier plugins registered")
	}
	return dispatcher
}

func openTransport(ctx context.Context, cfg config.Config, origin string, logger zerolog.Logger) (syncport.Transport, error) {
	var (
		transport syncport.Transport
		err       error
	)
	switch cfg.Sync.Transport {
	case config.TransportRedis:
		transport, err = syncoutadapter.NewRedisTransport(syncoutadapter.RedisOptions{
			Addr:     cfg.Sync.Redis.Addr,
			Password: cfg.Sync.Redis.Password,
			DB:       cfg.Sync.Redis.DB,
		}, cfg.Sync.Channel)
	case config.TransportMQTT:
		transport, err = syncoutadapter.NewMQTTTransport(cfg.Sync.MQTTBroker, cfg.Sync.Channel, origin, logger)
	case config.TransportWebsocket:
		transport, err = syncoutadapter.NewWebsocketTransport(ctx, cfg.Sync.WebsocketURL, logger)
	case config.TransportKafka:
		transport, err = syncoutadapter.NewKafkaTransport(cfg.Sync.KafkaBrokers, cfg.Sync.Channel, logger)
	default:
		return nil, fmt.Errorf("unknown sync transport: %s", cfg.Sync.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s transport: %w", cfg.Sync.Transport, err)
	}
	return transport, nil
}

// OpenLogFile returns the log file used while the TUI owns the terminal.
func OpenLogFile(cfg config.Config) (*os.File, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return os.OpenFile(filepath.Join(cfg.DataDir, "focuskit.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func RunTUI(ctx context.Context, app *App) error {
	model := uiapp.NewModel(ctx, app.SessionCLI, app.StatsCLI, uiapp.Options{
		DefaultDuration: app.Config.Session.DefaultDuration,
		StrictMode:      app.Config.Session.StrictMode,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// RunHub serves the websocket relay until ctx is cancelled.
func RunHub(ctx context.Context, addr string, logger zerolog.Logger, m *metrics.Metrics) error {
	hub := syncinadapter.NewHub(logging.Component(logger, "hub"), m)
	logger.Info().Str("addr", addr).Msg("sync hub listening")
	return serve(ctx, addr, hub.Router())
}

// ServeMetrics exposes the app's registry on the configured address until
// ctx is cancelled. It is a no-op unless metrics are enabled.
func ServeMetrics(ctx context.Context, app *App) error {
	if !app.Config.Metrics {
		return nil
	}
	app.Logger.Info().Str("addr", app.Config.MetricsAddr).Msg("metrics listening")
	return serve(ctx, app.Config.MetricsAddr, MetricsRouter(app))
}

// MetricsRouter exposes the surface's registry at /metrics.
func MetricsRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", app.Metrics.Handler())
	return r
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
