package output

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// JSONOutput writes each probe outcome as one JSON line to a file or
// stdout. Frames carry snapshots, so the writer tracks how many outcomes it
// has already emitted and only writes the tail of each frame.
type JSONOutput struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	toStdout bool
	written  uint64
}

type jsonOutcome struct {
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	LatencyUS int64     `json:"latency_us,omitempty"`
	Time      time.Time `json:"time"`
}

func NewJSONOutput(filename string) (*JSONOutput, error) {
	if filename == "" {
		// Output to stdout
		return &JSONOutput{
			file:     os.Stdout,
			enc:      json.NewEncoder(os.Stdout),
			toStdout: true,
		}, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONOutput{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Update implements the Output interface
func (j *JSONOutput) Update(frame Frame) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if frame.Total < j.written {
		// Session was restarted, the outcome counter reset
		j.written = 0
	}
	fresh := frame.Total - j.written
	if fresh == 0 {
		return
	}
	if fresh > uint64(len(frame.Outcomes)) {
		// Some outcomes were already evicted before we saw them
		fresh = uint64(len(frame.Outcomes))
	}

	for _, o := range frame.Outcomes[uint64(len(frame.Outcomes))-fresh:] {
		j.enc.Encode(jsonOutcome{
			Seq:       o.Seq,
			Kind:      o.Kind.String(),
			LatencyUS: o.Latency.Microseconds(),
			Time:      o.Time,
		})
	}
	j.written = frame.Total
}

// Close implements the Output interface
func (j *JSONOutput) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.toStdout {
		return nil
	}
	return j.file.Close()
}
