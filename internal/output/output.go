// Package output renders probe history for the user: an interactive TUI
// and/or JSON lines. Outputs consume point-in-time snapshots and never hold
// references into live session state.
package output

import (
	"time"

	"github.com/compilin/latgraph/internal/history"
	"github.com/compilin/latgraph/internal/probe"
)

// Status describes the session for display purposes.
type Status struct {
	Target   string
	Running  bool
	Interval time.Duration
	Timeout  time.Duration
	LastErr  string
}

// Frame is one display update: a history snapshot with its aggregate
// summary and the session status at snapshot time. Total counts every
// outcome produced since session start, including ones already evicted from
// the snapshot.
type Frame struct {
	Outcomes []probe.Outcome
	Summary  history.Summary
	Status   Status
	Total    uint64
}

// Output interface for different output types
type Output interface {
	Update(frame Frame)
	Close() error
}

// OutputManager fans frames out to all registered outputs
type OutputManager struct {
	outputs []Output
}

func (om *OutputManager) Register(o Output) {
	om.outputs = append(om.outputs, o)
}

func (om *OutputManager) Update(frame Frame) {
	for _, o := range om.outputs {
		o.Update(frame)
	}
}

func (om *OutputManager) Close() {
	for _, o := range om.outputs {
		o.Close()
	}
}
