// Package session composes the scheduler, correlator and transport into a
// running probe session against a single UDP echo target.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/compilin/latgraph/internal/history"
	"github.com/compilin/latgraph/internal/probe"
)

// State of the session state machine.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Config holds the parameters of one probing session.
type Config struct {
	Target   string
	Interval time.Duration
	Timeout  time.Duration
	Capacity int
}

// How long the coordination loop blocks waiting for the first reply of an
// iteration. Must stay below the fastest poll interval, or this wait rather
// than the scheduler becomes the probe cadence floor.
const receiveWait = 5 * time.Millisecond

// How long follow-up drain reads wait once a reply has arrived. Must be
// positive: a read deadline in the past expires before already-buffered
// datagrams are seen.
const drainWait = time.Millisecond

// At most this many replies are drained per iteration so a reply flood
// cannot starve the timeout sweep.
const maxDrainPerIteration = 16

// Session owns the transport, correlator and scheduler for the lifetime of
// one Running session and runs the coordination loop on its own goroutine.
// The history store is the only state shared with the display; it is
// recreated fresh on every start.
type Session struct {
	mu    sync.Mutex
	state State
	cfg   Config

	store     *history.Store
	transport *probe.Transport
	corr      *probe.Correlator
	sched     *probe.Scheduler

	stop chan struct{}
	done chan struct{}
	errs chan error

	id  string
	log *slog.Logger
}

// New creates a stopped session.
func New() *Session {
	return &Session{
		state: StateStopped,
		store: history.NewStore(1),
		errs:  make(chan error, 4),
		log:   slog.Default(),
	}
}

// Start transitions Stopped -> Running: connects the transport, creates a
// fresh store, correlator and scheduler, and launches the coordination
// loop. Starting an already running session is a no-op. A BindError is
// returned when the target address cannot be resolved or the local socket
// cannot be created; the session stays Stopped in that case.
func (s *Session) Start(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return nil
	}

	transport, err := probe.DialTransport(cfg.Target)
	if err != nil {
		return err
	}

	s.id = uuid.NewString()
	s.cfg = cfg
	s.transport = transport
	s.store = history.NewStore(cfg.Capacity)
	// Remember retired ids for a few timeout windows so late replies are
	// still classified as stale rather than foreign.
	s.corr = probe.NewCorrelator(10 * cfg.Timeout)
	s.sched = probe.NewScheduler(cfg.Interval)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.state = StateRunning

	s.log.Info("session started",
		"session_id", s.id,
		"target", cfg.Target,
		"interval", cfg.Interval,
		"timeout", cfg.Timeout,
		"history", cfg.Capacity,
		"local_addr", transport.LocalAddr().String(),
	)

	go s.run(s.stop, s.done, transport, s.corr, s.store, cfg.Timeout)

	return nil
}

// Stop transitions Running -> Stopped and waits for the coordination loop
// to exit. In-flight probes are dropped, not reported as lost, since the
// session is ending. Stopping a stopped session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.teardown()
	s.log.Info("session stopped", "session_id", s.id)
}

// Reconfigure replaces the tick interval of a running session. The
// correlator, in-flight table and history store are preserved; only the
// scheduler is restarted. A no-op unless Running.
func (s *Session) Reconfigure(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || interval <= 0 {
		return
	}

	old := s.sched
	s.sched = probe.NewScheduler(interval)
	s.cfg.Interval = interval
	old.Stop()

	s.log.Info("session reconfigured", "session_id", s.id, "interval", interval)
}

// SetHistory resizes the history store. Takes effect immediately; shrinking
// truncates from the oldest end.
func (s *Session) SetHistory(capacity int) {
	s.mu.Lock()
	store := s.store
	s.cfg.Capacity = capacity
	s.mu.Unlock()
	store.Resize(capacity)
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the most recent session configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Snapshot returns a point-in-time copy of the outcome history.
func (s *Session) Snapshot() []probe.Outcome {
	return s.History().Snapshot()
}

// History returns the current history store. The store is replaced on every
// Start, so consumers should re-fetch it per read rather than hold on to it.
func (s *Session) History() *history.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Errors delivers fatal session errors, such as a send failure that forced
// the session back to Stopped.
func (s *Session) Errors() <-chan error {
	return s.errs
}

// run is the coordination loop: drain replies, sweep timeouts, and emit one
// probe per scheduler tick. Every outcome is pushed to the store within the
// iteration that produced it.
func (s *Session) run(stop chan struct{}, done chan struct{}, transport *probe.Transport, corr *probe.Correlator, store *history.Store, timeout time.Duration) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		// Drain available replies, blocking only on the first read.
		wait := receiveWait
		for i := 0; i < maxDrainPerIteration; i++ {
			payload, ok, err := transport.TryReceive(wait)
			if err != nil {
				// A closed socket during shutdown surfaces here; the stop
				// check at the top of the loop sorts that out.
				s.log.Debug("receive error", "session_id", s.id, "error", err)
				break
			}
			if !ok {
				break
			}
			wait = drainWait

			seq, ok := probe.DecodeSeq(payload)
			if !ok {
				continue
			}
			outcome, issued := corr.OnReply(seq, time.Now())
			if !issued {
				s.log.Debug("discarding foreign reply", "session_id", s.id, "seq", seq)
				continue
			}
			store.Push(outcome)
		}

		for _, outcome := range corr.SweepTimeouts(time.Now(), timeout) {
			s.log.Debug("probe lost", "session_id", s.id, "seq", outcome.Seq)
			store.Push(outcome)
		}

		select {
		case <-s.ticks():
			p := corr.BeginProbe()
			if err := transport.Send(probe.EncodePayload(p.Seq)); err != nil {
				s.fail(stop, err)
				return
			}
		default:
		}
	}
}

// ticks returns the current scheduler's tick channel, which Reconfigure may
// have swapped since the previous iteration.
func (s *Session) ticks() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil {
		return nil
	}
	return s.sched.Ticks()
}

// fail reports a fatal error and transitions the session to Stopped, unless
// a concurrent Stop already did.
func (s *Session) fail(stop chan struct{}, err error) {
	s.log.Error("session failed", "session_id", s.id, "error", err)

	select {
	case s.errs <- err:
	default:
	}

	s.mu.Lock()
	if s.state != StateRunning || s.stop != stop {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.mu.Unlock()
	s.teardown()
}

// teardown releases the per-session resources. Called with the loop already
// exited or exiting.
func (s *Session) teardown() {
	s.mu.Lock()
	transport, corr, sched := s.transport, s.corr, s.sched
	s.transport, s.corr, s.sched = nil, nil, nil
	s.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	if transport != nil {
		transport.Close()
	}
	if corr != nil {
		corr.Close()
	}
}
