package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/compilin/latgraph/internal/version"
)

// DefaultEchoPort is the IANA Echo service port, assumed when the remote
// address carries no port.
const DefaultEchoPort = "7"

type Args struct {
	Remote string

	// Timing and retention
	Rate    time.Duration
	Timeout time.Duration
	History uint

	// Initial session state
	Paused  bool
	Running bool

	// Settings file
	ConfigPath   string
	NoConfigSave bool

	// Output
	Json     bool   // output outcomes as JSON lines to stdout (disables TUI)
	JsonFile string // output outcomes as JSON lines to file while showing TUI

	// Logging
	Log      string // log file path, empty means no logging
	LogLevel string // log level: debug, info, warn, error

	// Which flags were given explicitly, so they override the settings file.
	set map[string]bool
}

// Changed reports whether the named flag was given on the command line.
func (a Args) Changed(name string) bool {
	return a.set[name]
}

func ParseArgs() (Args, error) {
	var args Args
	var showVersion bool

	// Set custom usage message
	flag.Usage = func() {
		println("latgraph - Real-time network latency graph")
		println()
		println("Probes a UDP Echo server at a fixed rate and graphs the round-trip latency.")
		println()
		println("Usage:")
		println("  latgraph [OPTIONS]")
		println()
		println("Examples:")
		println("  latgraph -r example.org              # Poll example.org:7 every 100ms")
		println("  latgraph -r 10.0.0.1:4207 -t 250ms   # Custom port and poll rate")
		println("  latgraph -r example.org -J           # JSON lines to stdout, no TUI")
		println()
		println("Options:")
		flag.PrintDefaults()
	}

	flag.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flag.StringVarP(&args.Remote, "remote", "r", "", "Remote UDP Echo server. Port 7 is assumed if not included (example.org == example.org:7)")
	flag.DurationVarP(&args.Rate, "rate", "t", 100*time.Millisecond, "Polling rate, the delay between probes")
	flag.DurationVar(&args.Timeout, "timeout", time.Second, "Time before an unanswered probe counts as lost")
	flag.UintVar(&args.History, "history", 600, "Number of probe outcomes to retain for display")
	flag.BoolVarP(&args.Paused, "paused", "p", false, "Don't immediately start polling the server")
	flag.BoolVarP(&args.Running, "running", "P", true, "Immediately start polling the server")
	flag.StringVarP(&args.ConfigPath, "config", "c", "", "Settings file to load/save. Empty string uses the default location, '-' disables the settings file")
	flag.BoolVarP(&args.NoConfigSave, "no-config-save", "C", false, "Read the settings file on startup but never write it")
	flag.BoolVarP(&args.Json, "json", "J", false, "Write outcomes as JSON lines to stdout (disables TUI)")
	flag.StringVarP(&args.JsonFile, "json-file", "j", "", "Write outcomes as JSON lines to file (keeps TUI)")
	flag.StringVarP(&args.Log, "log", "l", "", "Diagnostic log file (empty = no logging)")
	flag.StringVar(&args.LogLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.Parse()

	// Handle version flag
	if showVersion {
		fmt.Println(version.FullVersion())
		os.Exit(0)
	}

	args.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		args.set[f.Name] = true
	})

	switch {
	case args.set["paused"] && args.set["running"]:
		return args, errors.New("cannot use both --paused and --running")
	case args.Json && args.JsonFile != "":
		return args, errors.New("cannot use both --json and --json-file")
	case args.Rate <= 0:
		return args, errors.New("rate must be positive")
	case args.Timeout <= 0:
		return args, errors.New("timeout must be positive")
	case args.History == 0:
		return args, errors.New("history must be at least 1")
	}

	if args.Remote != "" {
		args.Remote = EnsurePort(args.Remote)
	}

	return args, nil
}

// EnsurePort appends the default Echo port to an address that has none.
func EnsurePort(remote string) string {
	if _, _, err := net.SplitHostPort(remote); err == nil {
		return remote
	}
	return net.JoinHostPort(remote, DefaultEchoPort)
}
