package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/compilin/latgraph/internal/config"
	"github.com/compilin/latgraph/internal/history"
	"github.com/compilin/latgraph/internal/output"
	"github.com/compilin/latgraph/internal/session"
)

// Display refresh cadence. Independent of the probe rate: the display polls
// snapshots, it is not driven by the probe loop.
const displayInterval = 100 * time.Millisecond

const (
	minRate = 10 * time.Millisecond
	maxRate = 10 * time.Second
)

func main() {
	args, err := config.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logFile, err := config.SetupLogging(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	settingsPath := resolveSettingsPath(args)
	settings := config.DefaultSettings()
	if settingsPath != "" {
		var fieldErrs []error
		settings, fieldErrs, err = config.LoadSettings(settingsPath)
		if err != nil {
			slog.Warn("Could not load settings file", "path", settingsPath, "error", err)
		}
		for _, fe := range fieldErrs {
			slog.Warn("Falling back to default", "error", fe)
		}
	}
	settings = config.Merge(settings, args)

	slog.Debug("Starting latgraph",
		"remote", settings.Remote,
		"rate", settings.Rate(),
		"timeout", settings.Timeout(),
		"history", settings.History,
		"running", settings.Running,
	)

	sess := session.New()
	ctrl := &sessionControl{
		sess: sess,
		cfg: session.Config{
			Target:   settings.Remote,
			Interval: settings.Rate(),
			Timeout:  settings.Timeout(),
			Capacity: int(settings.History),
		},
	}

	om := &output.OutputManager{}
	var tui *output.TUIOutput
	if args.Json {
		jsonOut, err := output.NewJSONOutput("") // empty string = stdout
		if err == nil {
			om.Register(jsonOut)
		}
	} else {
		tui = output.NewTUIOutput(ctrl)
		tui.Start()
		om.Register(tui)
	}
	if args.JsonFile != "" {
		jsonOut, err := output.NewJSONOutput(args.JsonFile)
		if err == nil {
			om.Register(jsonOut)
		} else {
			slog.Warn("Failed to create JSON file output", "error", err)
		}
	}

	if settings.Running && settings.Remote != "" {
		if err := sess.Start(ctrl.config()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Display loop: poll snapshots at the display cadence and fan them out.
	displayStop := make(chan struct{})
	var displayWg sync.WaitGroup
	displayWg.Add(1)
	go func() {
		defer displayWg.Done()
		runDisplayLoop(sess, ctrl, om, displayStop)
	}()

	// Wait for Ctrl+C or the user quitting the TUI
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var quitCh <-chan struct{}
	if tui != nil {
		quitCh = tui.QuitChan()
	}
	select {
	case <-sigChan:
		slog.Debug("Received interrupt signal, stopping")
	case <-quitCh:
		slog.Debug("User quit TUI, stopping")
	}

	close(displayStop)
	displayWg.Wait()
	sess.Stop()
	om.Close()

	if settingsPath != "" && !args.NoConfigSave {
		if err := config.SaveSettings(settingsPath, ctrl.settings()); err != nil {
			slog.Error("Couldn't save settings", "path", settingsPath, "error", err)
		}
	}
}

// resolveSettingsPath maps the --config flag to a file path: empty means
// the default location, "-" disables the settings file entirely.
func resolveSettingsPath(args config.Args) string {
	if args.ConfigPath == "-" {
		return ""
	}
	if args.ConfigPath != "" {
		return args.ConfigPath
	}
	path, err := config.DefaultPath()
	if err != nil {
		slog.Warn("Could not determine default config path, settings file disabled", "error", err)
		return ""
	}
	return path
}

// runDisplayLoop polls the session history and pushes display frames until
// stopped.
func runDisplayLoop(sess *session.Session, ctrl *sessionControl, om *output.OutputManager, stop <-chan struct{}) {
	ticker := time.NewTicker(displayInterval)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-stop:
			return
		case err := <-sess.Errors():
			lastErr = err.Error()
		case <-ticker.C:
			store := sess.History()
			total := store.Total()
			snap := store.Snapshot()
			cfg := ctrl.config()
			om.Update(output.Frame{
				Outcomes: snap,
				Summary:  history.Summarize(snap),
				Status: output.Status{
					Target:   cfg.Target,
					Running:  sess.State() == session.StateRunning,
					Interval: cfg.Interval,
					Timeout:  cfg.Timeout,
					LastErr:  lastErr,
				},
				Total: total,
			})
		}
	}
}

// sessionControl adapts TUI key presses to session transitions.
type sessionControl struct {
	mu   sync.Mutex
	sess *session.Session
	cfg  session.Config
}

func (c *sessionControl) config() session.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// settings returns the current configuration as a persistable record.
func (c *sessionControl) settings() config.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return config.Settings{
		Remote:    c.cfg.Target,
		RateMS:    uint(c.cfg.Interval.Milliseconds()),
		TimeoutMS: uint(c.cfg.Timeout.Milliseconds()),
		History:   uint(c.cfg.Capacity),
		Running:   c.sess.State() == session.StateRunning,
	}
}

func (c *sessionControl) TogglePause() {
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	if c.sess.State() == session.StateRunning {
		c.sess.Stop()
		return
	}
	if cfg.Target == "" {
		return
	}
	if err := c.sess.Start(cfg); err != nil {
		slog.Error("Could not restart session", "error", err)
	}
}

func (c *sessionControl) Faster() {
	c.adjustRate(0.8)
}

func (c *sessionControl) Slower() {
	c.adjustRate(1.25)
}

func (c *sessionControl) adjustRate(factor float64) {
	c.mu.Lock()
	interval := time.Duration(float64(c.cfg.Interval) * factor)
	if interval < minRate {
		interval = minRate
	}
	if interval > maxRate {
		interval = maxRate
	}
	c.cfg.Interval = interval
	c.mu.Unlock()

	c.sess.Reconfigure(interval)
	slog.Debug("Poll rate changed", "interval", interval)
}
