// Package main is the entry point for txd, the Tado X dashboard.
// It runs the TUI by default, a headless service with "serve" and the
// device login flow with "login".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/tadox-dashboard-tui/internal/app"
	"github.com/j-veylop/tadox-dashboard-tui/internal/config"
	"github.com/j-veylop/tadox-dashboard-tui/internal/httpapi"
	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/mqttpub"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/tabs/devices"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/tabs/info"
	"github.com/j-veylop/tadox-dashboard-tui/internal/ui/tabs/rooms"
	"github.com/j-veylop/tadox-dashboard-tui/internal/version"
)

const (
	startupTimeout  = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "-v", "--version":
			fmt.Println(version.Info())
			os.Exit(0)
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		}
	}

	var err error
	switch {
	case len(args) > 0 && args[0] == "login":
		err = runLogin(args[1:])
	case len(args) > 0 && args[0] == "logout":
		err = runLogout()
	case len(args) > 0 && args[0] == "serve":
		err = runServe()
	case len(args) == 0:
		err = runTUI()
	default:
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration, points the logger at w and builds the
// service manager.
func setup(w io.Writer) (*config.Config, *services.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(w, cfg.LogLevel, cfg.LogFormat)

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return cfg, mgr, nil
}

func closeManager(mgr *services.Manager) {
	if err := mgr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", err)
	}
}

// runLogin performs the device authorization flow and binds a home.
func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	homeID := fs.Int64("home", 0, "home ID to bind (default: first home of the account)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, mgr, err := setup(os.Stderr)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	da, err := mgr.BeginLogin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start login: %w", err)
	}

	uri := da.VerificationURIComplete
	if uri == "" {
		uri = da.VerificationURI
	}
	fmt.Printf("Open %s and confirm the code %s\n", uri, da.UserCode)
	fmt.Println("Waiting for approval...")

	home, err := mgr.CompleteLogin(ctx, da, *homeID)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Signed in. Using home %q (%d).\n", home.Name, home.ID)
	return nil
}

func runLogout() error {
	_, mgr, err := setup(os.Stderr)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	if err := mgr.Logout(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

// runServe polls without a terminal UI and exposes the optional HTTP API and
// MQTT mirror until interrupted.
func runServe() error {
	cfg, mgr, err := setup(os.Stderr)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	err = mgr.Start(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv, err := httpapi.Listen(cfg.HTTPAddr, httpapi.RouterConfig{
			Controller: mgr,
			Metrics:    mgr.Metrics().Handler(),
		})
		if err != nil {
			return err
		}
		g.Go(srv.Serve)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.MQTTBroker != "" {
		pub, err := mqttpub.New(mqttpub.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		if err != nil {
			return err
		}
		defer pub.Close()

		events, _ := mgr.Subscribe()
		pub.PublishSnapshot(mgr.Snapshot())
		pub.PublishQuota(mgr.Quota())
		go pub.Consume(events)
		g.Go(func() error {
			<-gctx.Done()
			mgr.Unsubscribe(events)
			return nil
		})
	}

	logger.Info("txd running", "version", version.GetVersion(), "http", cfg.HTTPAddr, "mqtt", cfg.MQTTBroker)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// runTUI starts polling in the background and runs the Bubble Tea program.
// Logs go to the log file since the terminal belongs to the UI.
func runTUI() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger.Setup(logFile, cfg.LogLevel, cfg.LogFormat)

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer closeManager(mgr)

	model := app.NewModel(mgr)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		rooms.New(state),
		devices.New(state),
		info.New(state, cfg),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			p.Send(tea.Quit())
		case <-ctx.Done():
		}
	}()

	go func() {
		startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()
		if err := mgr.Start(startCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("startup failed", "error", err)
			p.Send(app.ErrorMsg{Context: "Startup", Error: err})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`txd - Tado X heating dashboard

Usage:
  txd                 Run the terminal dashboard
  txd login [--home ID]
                      Sign in with the device code flow and pick a home
  txd logout          Forget the stored tokens
  txd serve           Poll headless, serving HTTP_ADDR and MQTT_BROKER if set

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Keyboard Shortcuts:
  1-3             Switch between tabs (Rooms, Devices, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Select room / scroll
  +/-             Nudge the room target by 0.5°C for 30 minutes
  m, s, x         Hold target, resume schedule, room off
  B, O, A         Boost all, all off, resume all
  r               Refresh now
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  DATABASE_PATH        SQLite database path
  OPTIONS_PATH         Options JSON file path (watched for changes)
  LOG_PATH             Log file used by the dashboard
  LOG_LEVEL            debug, info, warn or error (default: info)
  LOG_FORMAT           text or json (default: text)
  HTTP_ADDR            Listen address of the local API, e.g. 127.0.0.1:8080
  MQTT_BROKER          Broker URL, e.g. tcp://localhost:1883
  MQTT_TOPIC_PREFIX    Topic prefix (default: tadox)
  QUOTA_WARN_PERCENT   Desktop notification threshold

Configuration:
  The application looks for .env files in the current directory and
  ~/.config/tadox/.env or ~/.tadox/.env`)
}
