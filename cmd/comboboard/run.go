package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"comboboard/internal/audio"
	"comboboard/internal/board"
	"comboboard/internal/config"
	"comboboard/internal/health"
	"comboboard/internal/keystroke"
	"comboboard/internal/listener"
	"comboboard/internal/logging"
	"comboboard/internal/metrics"
	"comboboard/internal/store"
)

const (
	// housekeepingInterval paces uptime and health refreshes.
	housekeepingInterval = 15 * time.Second
	crashRetention       = 30 * 24 * time.Hour
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the soundboard until the quit combo or a signal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd, opts)
		},
	}
}

func runBoard(cmd *cobra.Command, opts *globalOptions) error {
	loader, err := opts.loader()
	if err != nil {
		return err
	}
	// A first run writes the defaults so there is a file to hot reload.
	_, created, err := config.LoadOrCreate(loader.Path())
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load %s: %w", loader.Path(), err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	log, err := opts.newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer log.Close()
	logging.SetDefault(log)
	if created {
		log.Info("wrote default config", "path", loader.Path())
	}

	crash := logging.NewCrashHandler(&logging.CrashHandlerConfig{
		Version:   Version,
		Component: "comboboard",
	})
	logging.SetDefaultCrashHandler(crash)
	defer crash.RecoverAndExit(map[string]interface{}{"goroutine": "main"})
	if n, err := crash.CleanupOldCrashReports(crashRetention); err != nil {
		log.Warn("crash report cleanup failed", "error", err)
	} else if n > 0 {
		log.Info("removed old crash reports", "count", n)
	}

	tap, err := keystroke.New(cfg.Listener.Backend, keystroke.Options{
		Devices:   cfg.Listener.Devices,
		QueueSize: cfg.Listener.QueueSize,
	})
	if err != nil {
		return err
	}
	if ok, reason := tap.Available(); !ok {
		return fmt.Errorf("%s tap unavailable: %s", tap.Name(), reason)
	}

	hub, err := listener.Open(tap, listener.Options{
		IdleWindow: cfg.IdleWindow(),
		Logger:     log.WithComponent("listener"),
		Crash:      crash,
	})
	if err != nil {
		return err
	}
	defer hub.Close()

	sink, err := openSink(cfg, opts.noAudio)
	if err != nil {
		return err
	}
	defer sink.Close()

	var st *store.Store
	if cfg.Storage.Enabled {
		st, err = store.OpenWithOptions(cfg.StoragePath(), store.Options{
			BusyTimeout: time.Duration(cfg.Storage.BusyTimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer st.Close()
	}

	registry := metrics.NewRegistry("comboboard", "")
	bm := metrics.NewBoardMetrics(registry)

	d := board.NewDispatcher(listener.NewWatcher[board.Action](hub), board.Options{
		Sink:      sink,
		Store:     st,
		Metrics:   bm,
		Logger:    log.WithComponent("board"),
		MaxVolume: cfg.Audio.MaxVolume,
		Version:   Version,
	})
	crash.SetRunID(d.RunID())
	// Entries that fail to load are logged by Reload and left out.
	_ = d.Reload(cfg)

	checker := health.NewChecker(health.DefaultTimeout)
	checker.Add("tap", true, health.TapCheck(hub.TapName(), hub.Healthy))
	checker.Add("audio", false, health.AudioCheck(sink))
	if st != nil {
		checker.Add("store", false, health.StoreCheck(st.Ping))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithRunID(ctx, d.RunID())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Quit ends the whole group.
		defer stop()
		return d.Run(ctx)
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return health.Serve(ctx, cfg.Metrics.ListenAddr, health.NewMux(registry, checker), log.WithComponent("metrics").WithContext(ctx))
		})
	}

	g.Go(func() error {
		housekeeping(ctx, bm, checker)
		return nil
	})

	if err := loader.Watch(); err != nil {
		log.Warn("config hot reload disabled", "error", err)
	} else {
		defer loader.Close()
		idle := cfg.IdleWindow()
		loader.OnChange(func(next *config.Config) {
			if next.IdleWindow() != idle {
				log.Warn("idle_window_ms changes take effect after a restart")
			}
			// A panic in Reload is reported and the previous table stays.
			if !crash.Recover(map[string]interface{}{"goroutine": "config.reload"}, func() { _ = d.Reload(next) }) {
				log.Error("config reload panicked, keeping the previous combos")
			}
		})
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-loader.Errors():
					log.Warn("config reload rejected", "error", err)
				}
			}
		})
	}

	checker.SetReady(true)
	log.Info("comboboard running",
		"version", Version,
		"config", loader.Path(),
		"backend", tap.Name(),
		"audio", !opts.noAudio && cfg.Audio.Enabled,
	)

	err = g.Wait()
	checker.SetReady(false)
	return err
}

// openSink opens the speaker, or a silent sink when audio is off.
func openSink(cfg *config.Config, noAudio bool) (audio.Sink, error) {
	a := cfg.Audio
	if noAudio || !a.Enabled {
		return audio.NewMemorySink(a.InitialVolume, a.MaxVolume), nil
	}
	return audio.NewBeepSink(audio.Config{
		Device:     a.Device,
		SampleRate: a.SampleRate,
		Buffer:     time.Duration(a.BufferMs) * time.Millisecond,
		Volume:     a.InitialVolume,
		MaxVolume:  a.MaxVolume,
	})
}

func housekeeping(ctx context.Context, bm *metrics.BoardMetrics, checker *health.Checker) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()
	for {
		bm.UpdateUptime()
		checker.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
