package output

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/compilin/latgraph/internal/history"
	"github.com/compilin/latgraph/internal/probe"
)

// fakeOutput records frames for manager tests.
type fakeOutput struct {
	frames []Frame
	closed bool
}

func (f *fakeOutput) Update(frame Frame) { f.frames = append(f.frames, frame) }
func (f *fakeOutput) Close() error       { f.closed = true; return nil }

func TestOutputManager_FanOut(t *testing.T) {
	om := &OutputManager{}
	a := &fakeOutput{}
	b := &fakeOutput{}
	om.Register(a)
	om.Register(b)

	om.Update(Frame{Total: 1})
	om.Update(Frame{Total: 2})
	om.Close()

	for name, o := range map[string]*fakeOutput{"first": a, "second": b} {
		if len(o.frames) != 2 {
			t.Errorf("%s output received %d frames, want 2", name, len(o.frames))
		}
		if !o.closed {
			t.Errorf("%s output was not closed", name)
		}
	}
}

func frameWith(total uint64, outcomes ...probe.Outcome) Frame {
	return Frame{
		Outcomes: outcomes,
		Summary:  history.Summarize(outcomes),
		Total:    total,
	}
}

func TestJSONOutput_WritesFreshOutcomesOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	j, err := NewJSONOutput(path)
	if err != nil {
		t.Fatalf("NewJSONOutput: %v", err)
	}

	s1 := probe.Outcome{Seq: 0, Kind: probe.KindSample, Latency: 10 * time.Millisecond, Time: time.Now()}
	s2 := probe.Outcome{Seq: 1, Kind: probe.KindLost, Time: time.Now()}
	s3 := probe.Outcome{Seq: 2, Kind: probe.KindSample, Latency: 12 * time.Millisecond, Time: time.Now()}

	j.Update(frameWith(2, s1, s2))
	j.Update(frameWith(2, s1, s2)) // same frame again, nothing fresh
	j.Update(frameWith(3, s1, s2, s3))
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []jsonOutcome
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var o jsonOutcome
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", len(lines)+1, err)
		}
		lines = append(lines, o)
	}

	if len(lines) != 3 {
		t.Fatalf("wrote %d lines, want 3", len(lines))
	}
	if lines[0].Kind != "sample" || lines[0].LatencyUS != 10000 {
		t.Errorf("line 0 = %+v, want sample at 10000µs", lines[0])
	}
	if lines[1].Kind != "lost" || lines[1].Seq != 1 {
		t.Errorf("line 1 = %+v, want lost seq 1", lines[1])
	}
	if lines[2].Seq != 2 {
		t.Errorf("line 2 seq = %d, want 2", lines[2].Seq)
	}
}

func TestJSONOutput_SessionRestartResetsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	j, err := NewJSONOutput(path)
	if err != nil {
		t.Fatalf("NewJSONOutput: %v", err)
	}

	o1 := probe.Outcome{Seq: 0, Kind: probe.KindSample, Latency: time.Millisecond}
	j.Update(frameWith(5, o1, o1, o1, o1, o1))
	// Restart: total drops below what was written
	j.Update(frameWith(1, o1))
	j.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 6 {
		t.Errorf("wrote %d lines, want 6 (5 before restart, 1 after)", got)
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		width     int
		alignment cellAlignment
		want      string
	}{
		{
			name:      "left align short",
			value:     "hello",
			width:     10,
			alignment: alignLeft,
			want:      "hello     ",
		},
		{
			name:      "right align short",
			value:     "world",
			width:     10,
			alignment: alignRight,
			want:      "     world",
		},
		{
			name:      "exact width",
			value:     "12345",
			width:     5,
			alignment: alignLeft,
			want:      "12345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCell(tt.value, tt.width, tt.alignment); got != tt.want {
				t.Errorf("formatCell(%q, %d) = %q, want %q", tt.value, tt.width, got, tt.want)
			}
		})
	}
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    string
	}{
		{500 * time.Microsecond, "0.50ms"},
		{time.Millisecond, "1.0ms"},
		{12340 * time.Microsecond, "12.3ms"},
		{2 * time.Second, "2000.0ms"},
	}

	for _, tt := range tests {
		if got := formatLatency(tt.latency); got != tt.want {
			t.Errorf("formatLatency(%v) = %q, want %q", tt.latency, got, tt.want)
		}
	}
}

func TestRenderGraph(t *testing.T) {
	outcomes := []probe.Outcome{
		{Seq: 0, Kind: probe.KindSample, Latency: 5 * time.Millisecond},
		{Seq: 1, Kind: probe.KindLost},
		{Seq: 2, Kind: probe.KindStale},
		{Seq: 3, Kind: probe.KindSample, Latency: 20 * time.Millisecond},
	}

	graph := renderGraph(outcomes, 40)

	if !strings.Contains(graph, "✕") {
		t.Error("graph does not mark the lost probe")
	}
	if !strings.Contains(graph, "·") {
		t.Error("graph does not mark the stale reply")
	}
	if !strings.Contains(graph, string(sparks[len(sparks)-1])) {
		t.Error("largest latency should render as a full bar")
	}
	if !strings.Contains(graph, "20.0ms") {
		t.Error("graph scale does not show the max latency")
	}
}

func TestRenderGraph_TruncatesToWidth(t *testing.T) {
	outcomes := make([]probe.Outcome, 50)
	for i := range outcomes {
		outcomes[i] = probe.Outcome{Seq: uint64(i), Kind: probe.KindLost}
	}

	graph := renderGraph(outcomes, 10)
	if got := strings.Count(graph, "✕"); got != 10 {
		t.Errorf("graph shows %d outcomes, want the newest 10", got)
	}
}

func TestRenderGraph_Empty(t *testing.T) {
	graph := renderGraph(nil, 20)
	if !strings.Contains(graph, "no samples yet") {
		t.Error("empty graph should state there are no samples")
	}
}
