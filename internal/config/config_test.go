package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
)

func TestParseArgs_Validation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name: "no arguments",
			args: []string{},
		},
		{
			name: "remote only",
			args: []string{"--remote", "example.org"},
		},
		{
			name:    "both paused and running",
			args:    []string{"--paused", "--running", "--remote", "example.org"},
			wantErr: "cannot use both --paused and --running",
		},
		{
			name:    "both json and json-file",
			args:    []string{"--json", "--json-file", "test.json", "--remote", "example.org"},
			wantErr: "cannot use both --json and --json-file",
		},
		{
			name:    "zero rate",
			args:    []string{"--rate", "0s", "--remote", "example.org"},
			wantErr: "rate must be positive",
		},
		{
			name:    "negative timeout",
			args:    []string{"--timeout", "-1s", "--remote", "example.org"},
			wantErr: "timeout must be positive",
		},
		{
			name:    "zero history",
			args:    []string{"--history", "0", "--remote", "example.org"},
			wantErr: "history must be at least 1",
		},
		{
			name: "valid with custom rate and timeout",
			args: []string{"-r", "example.org", "-t", "250ms", "--timeout", "2s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flag package for each test
			flag.CommandLine = flag.NewFlagSet("test", flag.ContinueOnError)

			oldArgs := os.Args
			os.Args = append([]string{"cmd"}, tt.args...)
			defer func() { os.Args = oldArgs }()

			_, err := ParseArgs()

			if tt.wantErr != "" {
				if err == nil {
					t.Errorf("ParseArgs() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("ParseArgs() error = %v, want %v", err.Error(), tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("ParseArgs() unexpected error: %v", err)
			}
		})
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet("test", flag.ContinueOnError)
	oldArgs := os.Args
	os.Args = []string{"cmd", "--remote", "example.org"}
	defer func() { os.Args = oldArgs }()

	args, err := ParseArgs()
	if err != nil {
		t.Fatalf("ParseArgs() error: %v", err)
	}

	if args.Remote != "example.org:7" {
		t.Errorf("Remote = %q, want default echo port appended", args.Remote)
	}
	if args.Rate != 100*time.Millisecond {
		t.Errorf("Rate = %v, want 100ms", args.Rate)
	}
	if args.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", args.Timeout)
	}
	if args.History != 600 {
		t.Errorf("History = %d, want 600", args.History)
	}
	if !args.Changed("remote") {
		t.Error("Changed(remote) = false for an explicit flag")
	}
	if args.Changed("rate") {
		t.Error("Changed(rate) = true for a defaulted flag")
	}
}

func TestEnsurePort(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"example.org", "example.org:7"},
		{"example.org:4207", "example.org:4207"},
		{"10.1.2.3", "10.1.2.3:7"},
		{"10.1.2.3:7777", "10.1.2.3:7777"},
		{"::1", "[::1]:7"},
		{"[::1]:9", "[::1]:9"},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			if got := EnsurePort(tt.remote); got != tt.want {
				t.Errorf("EnsurePort(%q) = %q, want %q", tt.remote, got, tt.want)
			}
		})
	}
}

func TestSettings_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	saved := Settings{
		Remote:    "example.org:7",
		RateMS:    250,
		TimeoutMS: 2000,
		History:   300,
		Running:   true,
	}
	if err := SaveSettings(path, saved); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	loaded, fieldErrs, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(fieldErrs) != 0 {
		t.Fatalf("LoadSettings field errors: %v", fieldErrs)
	}
	if loaded != saved {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, saved)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	loaded, fieldErrs, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings on missing file: %v", err)
	}
	if len(fieldErrs) != 0 {
		t.Fatalf("unexpected field errors: %v", fieldErrs)
	}
	if loaded != DefaultSettings() {
		t.Errorf("missing file should yield defaults, got %+v", loaded)
	}
}

func TestLoadSettings_AbsentFieldsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	// Only the remote is given; everything else must keep its default,
	// notably running staying true rather than decaying to false.
	if err := os.WriteFile(path, []byte("remote: example.org\n"), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, fieldErrs, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(fieldErrs) != 0 {
		t.Fatalf("unexpected field errors for absent fields: %v", fieldErrs)
	}

	defaults := DefaultSettings()
	if !loaded.Running {
		t.Error("Running = false for a file that does not mention it, want default true")
	}
	if loaded.RateMS != defaults.RateMS || loaded.TimeoutMS != defaults.TimeoutMS || loaded.History != defaults.History {
		t.Errorf("absent fields did not keep defaults: %+v", loaded)
	}
	if loaded.Remote != "example.org:7" {
		t.Errorf("Remote = %q, want port appended", loaded.Remote)
	}
}

func TestLoadSettings_InvalidFieldsFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "remote: example.org\nrate_ms: 0\ntimeout_ms: 0\nhistory: 0\nrunning: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, fieldErrs, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(fieldErrs) != 3 {
		t.Fatalf("got %d field errors, want 3: %v", len(fieldErrs), fieldErrs)
	}
	defaults := DefaultSettings()
	if loaded.RateMS != defaults.RateMS || loaded.TimeoutMS != defaults.TimeoutMS || loaded.History != defaults.History {
		t.Errorf("invalid fields not replaced by defaults: %+v", loaded)
	}
	if loaded.Remote != "example.org:7" {
		t.Errorf("Remote = %q, want port appended", loaded.Remote)
	}
}

func TestMerge(t *testing.T) {
	settings := Settings{
		Remote:    "fromfile.example:7",
		RateMS:    500,
		TimeoutMS: 1500,
		History:   100,
		Running:   true,
	}

	t.Run("explicit flags override", func(t *testing.T) {
		args := Args{
			Remote: "cli.example:7",
			Rate:   50 * time.Millisecond,
			set:    map[string]bool{"remote": true, "rate": true},
		}
		merged := Merge(settings, args)
		if merged.Remote != "cli.example:7" {
			t.Errorf("Remote = %q, want CLI value", merged.Remote)
		}
		if merged.RateMS != 50 {
			t.Errorf("RateMS = %d, want 50", merged.RateMS)
		}
		if merged.TimeoutMS != 1500 {
			t.Errorf("TimeoutMS = %d, file value should survive", merged.TimeoutMS)
		}
	})

	t.Run("defaulted flags do not override", func(t *testing.T) {
		args := Args{Remote: "", Rate: 100 * time.Millisecond, set: map[string]bool{}}
		merged := Merge(settings, args)
		if merged != settings {
			t.Errorf("Merge changed settings without explicit flags: %+v", merged)
		}
	})

	t.Run("paused flag wins over file", func(t *testing.T) {
		args := Args{Paused: true, set: map[string]bool{"paused": true}}
		merged := Merge(settings, args)
		if merged.Running {
			t.Error("Running = true despite --paused")
		}
	})

	t.Run("no remote forces not running", func(t *testing.T) {
		empty := settings
		empty.Remote = ""
		merged := Merge(empty, Args{set: map[string]bool{}})
		if merged.Running {
			t.Error("Running = true with no target to poll")
		}
	})
}

func Test_parseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := parseLogLevel(tt.level); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "rate_ms", Msg: "must be positive"}
	want := `invalid setting "rate_ms": must be positive`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
