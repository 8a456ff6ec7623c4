package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"focuskit/internal/bootstrap"
	notifydto "focuskit/internal/modules/notify/dto"
	sessiondto "focuskit/internal/modules/session/dto"
	"focuskit/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	dataDir    string
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "focuskit",
		Short:         "Focus timer shared by terminals, the TUI and other machines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $FOCUSKIT_HOME or the user config dir)")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: <data-dir>/focuskit.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level")

	root.AddCommand(newSessionCmd(flags))
	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newStatsCmd(flags))
	root.AddCommand(newSyncCmd(flags))
	root.AddCommand(newNotifyCmd(flags))
	return root
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	dataDir := flags.dataDir
	if strings.TrimSpace(dataDir) == "" {
		dir, err := config.DefaultDataDir()
		if err != nil {
			return config.Config{}, err
		}
		dataDir = dir
	}
	cfg, err := config.Load(dataDir, flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

func loadApp(ctx context.Context, flags *rootFlags, surface string, logOut io.Writer) (*bootstrap.App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, bootstrap.Options{Surface: surface, LogOutput: logOut})
}

// withApp runs fn against a freshly wired CLI surface and flushes it
// afterwards.
func withApp(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, app *bootstrap.App) error) (err error) {
	ctx := cmd.Context()
	app, err := loadApp(ctx, flags, "cli", cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, app)
}

func newSessionCmd(flags *rootFlags) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Focus session lifecycle"}

	var (
		duration time.Duration
		taskRef  string
		strict   bool
	)
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a focus session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Zero means the configured default; targets are whole seconds.
			if duration < 0 || (duration > 0 && duration < time.Second) {
				return fmt.Errorf("--duration must be at least 1s, got %s", duration)
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				strictMode := strict || (app.Config.Session.StrictMode && !cmd.Flags().Changed("strict"))
				view, err := app.SessionCLI.Start(ctx, duration, taskRef, strictMode)
				if err != nil {
					return err
				}
				printView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	start.Flags().DurationVar(&duration, "duration", 0, "session length, e.g. 25m (default from config)")
	start.Flags().StringVar(&taskRef, "task", "", "task reference")
	start.Flags().BoolVar(&strict, "strict", false, "forbid pausing this session")

	ops := []struct {
		use, short string
		call       func(ctx context.Context, app *bootstrap.App) (sessiondto.SessionView, error)
	}{
		{"pause", "Pause the running session", func(ctx context.Context, app *bootstrap.App) (sessiondto.SessionView, error) {
			return app.SessionCLI.Pause(ctx)
		}},
		{"resume", "Resume a paused session", func(ctx context.Context, app *bootstrap.App) (sessiondto.SessionView, error) {
			return app.SessionCLI.Resume(ctx)
		}},
		{"complete", "Finish the session now and credit it", func(ctx context.Context, app *bootstrap.App) (sessiondto.SessionView, error) {
			return app.SessionCLI.Complete(ctx)
		}},
		{"reset", "Abandon the session", func(ctx context.Context, app *bootstrap.App) (sessiondto.SessionView, error) {
			return app.SessionCLI.Reset(ctx)
		}},
		{"ack", "Acknowledge a completed session", func(ctx context.Context, app *bootstrap.App) (sessiondto.SessionView, error) {
			return app.SessionCLI.Acknowledge(ctx)
		}},
	}
	for _, op := range ops {
		op := op
		session.AddCommand(&cobra.Command{
			Use:   op.use,
			Short: op.short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
					view, err := op.call(ctx, app)
					if err != nil {
						return err
					}
					printView(cmd.OutOrStdout(), view)
					return nil
				})
			},
		})
	}

	session.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				printView(cmd.OutOrStdout(), app.SessionCLI.Status(ctx))
				return nil
			})
		},
	})

	var every time.Duration
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Follow the session until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, flags, "watch", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.WithoutCancel(ctx)) }()

			go func() {
				if err := bootstrap.ServeMetrics(ctx, app); err != nil {
					app.Logger.Error().Err(err).Msg("metrics server")
				}
			}()

			views, unsubscribe := app.SessionCLI.Watch(16)
			defer unsubscribe()
			var last sessiondto.SessionView
			var lastPrinted time.Time
			for {
				select {
				case <-ctx.Done():
					return nil
				case view, ok := <-views:
					if !ok {
						return nil
					}
					changed := view.Status != last.Status || view.Revision != last.Revision
					if changed || (view.Status == "active" && view.ObservedAt.Sub(lastPrinted) >= every) {
						printView(cmd.OutOrStdout(), view)
						lastPrinted = view.ObservedAt
					}
					last = view
				}
			}
		},
	}
	watch.Flags().DurationVar(&every, "every", time.Minute, "how often to print progress while active")
	session.AddCommand(start, watch)
	return session
}

func newTUICmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the focuskit terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logFile, err := bootstrap.OpenLogFile(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logFile.Close() }()

			ctx := cmd.Context()
			app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Surface: "tui", LogOutput: logFile})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.WithoutCancel(ctx)) }()
			return bootstrap.RunTUI(ctx, app)
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	stats := &cobra.Command{Use: "stats", Short: "Daily focus statistics"}

	var date string
	day := &cobra.Command{
		Use:   "day",
		Short: "Show one day (default today)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.StatsCLI.Day(ctx, date, time.Now())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "date=%s completed=%d partial=%d focus=%dmin target=%d/%s progress=%.0f%%\n",
					out.DateKey, out.CompletedCount, out.PartialCount, out.FocusMinutes, out.Target, out.TargetType, out.Progress*100)
				return nil
			})
		},
	}
	day.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD")

	total := &cobra.Command{
		Use:   "total",
		Short: "Show totals across every day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.StatsCLI.Total(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "days=%d completed=%d partial=%d focus=%dmin\n",
					out.Days, out.CompletedCount, out.PartialCount, out.FocusMinutes)
				return nil
			})
		},
	}

	stats.AddCommand(day, total)
	return stats
}

func newSyncCmd(flags *rootFlags) *cobra.Command {
	sync := &cobra.Command{Use: "sync", Short: "Cross-surface synchronisation"}

	var addr string
	hub := &cobra.Command{
		Use:   "hub",
		Short: "Run the websocket relay for surfaces on this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := bootstrap.New(ctx, withoutSync(cfg), bootstrap.Options{Surface: "hub", LogOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.WithoutCancel(ctx)) }()
			return bootstrap.RunHub(ctx, addr, app.Logger, app.Metrics)
		},
	}
	hub.Flags().StringVar(&addr, "addr", "127.0.0.1:7777", "listen address")

	sync.AddCommand(hub)
	return sync
}

// withoutSync keeps the hub process from dialing itself.
func withoutSync(cfg config.Config) config.Config {
	cfg.Sync.Transport = config.TransportNone
	cfg.Storage.Backend = config.StorageMemory
	return cfg
}

func newNotifyCmd(flags *rootFlags) *cobra.Command {
	notify := &cobra.Command{Use: "notify", Short: "Completion notifiers"}

	notify.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered notifiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, app *bootstrap.App) error {
				notifiers := app.NotifyCLI.List()
				if len(notifiers) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no notifiers configured")
					return nil
				}
				for _, n := range notifiers {
					kinds := "all"
					if len(n.Kinds) > 0 {
						kinds = strings.Join(n.Kinds, ",")
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", n.Name, n.Type, kinds)
				}
				return nil
			})
		},
	})

	var kind string
	test := &cobra.Command{
		Use:   "test",
		Short: "Send a sample notification through every notifier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch kind {
			case notifydto.KindStarted, notifydto.KindCompleted, notifydto.KindError:
			default:
				return fmt.Errorf("--kind must be started, completed or error")
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				app.NotifyCLI.Test(ctx, kind)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent %s notification to %d notifier(s)\n", kind, len(app.NotifyCLI.List()))
				return nil
			})
		},
	}
	test.Flags().StringVar(&kind, "kind", notifydto.KindCompleted, "notification kind")

	notify.AddCommand(test)
	return notify
}

func printView(w io.Writer, view sessiondto.SessionView) {
	if view.Status == "inactive" || view.Status == "" {
		_, _ = fmt.Fprintln(w, "no session")
		return
	}
	_, _ = fmt.Fprintf(w, "%s remaining=%s elapsed=%s target=%s progress=%.0f%%",
		view.Status, clock(view.RemainingSeconds), clock(view.ElapsedSeconds), clock(view.TargetSeconds), view.Progress*100)
	if view.TaskRef != "" {
		_, _ = fmt.Fprintf(w, " task=%q", view.TaskRef)
	}
	if view.StrictMode {
		_, _ = fmt.Fprint(w, " strict")
	}
	_, _ = fmt.Fprintf(w, " rev=%d id=%s\n", view.Revision, view.SessionID)
}

func clock(seconds int64) string {
	d := (time.Duration(seconds) * time.Second).Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
