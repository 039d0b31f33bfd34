package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lanecal/internal/clock"
	"lanecal/internal/config"
	"lanecal/internal/layout"
	appLog "lanecal/internal/log"
	"lanecal/internal/printer"
	"lanecal/internal/source"
	"lanecal/internal/store"
	"lanecal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("lanecal starting", "version", version)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"window_start", conf.WindowStart,
		"window_end", conf.WindowEnd,
		"source_count", len(conf.Sources),
		"once", flags.once,
	)

	clk, err := clock.New(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	st := store.New()
	loader := store.NewLoader(conf, clk, source.NewFetcher(conf.CacheDir))
	refresher := store.NewRefresher(conf.RefreshCron, clk.Location(), loader, st)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if flags.once {
		if err := runOnce(ctx, conf, clk, refresher, st); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	go func() {
		if err := refresher.Start(ctx); err != nil {
			appLog.Error("refresher failed to start", err)
			cancel()
		}
	}()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, clk, st).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
	refresher.Stop()
	appLog.Info("lanecal exiting")
}

// runOnce loads every source, computes the layout and prints it.
func runOnce(ctx context.Context, conf *config.Config, clk *clock.Clock, refresher *store.Refresher, st *store.Store) error {
	if err := refresher.Refresh(ctx); err != nil {
		return err
	}

	defaults, err := conf.DefaultTimes()
	if err != nil {
		return err
	}
	window, err := conf.Window()
	if err != nil {
		return err
	}

	l := st.Snapshot().Layout(layout.Options{Clock: clk, Defaults: defaults, Window: window})

	printer.New(os.Stdout).Layout(l)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/lanecal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load sources once, print the layout and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
