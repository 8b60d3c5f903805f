package probe

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Correlator assigns sequence ids to outgoing probes, matches inbound
// replies, and detects timeouts. It is owned by a single coordination loop
// and is not safe for concurrent use.
//
// Retired ids (already resolved as Sample or Lost) are remembered in a
// TTL-bounded cache so that a late or duplicate reply can be told apart
// from a stray datagram this session never issued: the former is surfaced
// as a Stale outcome, the latter is dropped.
type Correlator struct {
	next     uint64
	inflight map[uint64]Probe
	retired  *ttlcache.Cache[uint64, time.Time]
	now      func() time.Time
}

// NewCorrelator creates a correlator. retireTTL bounds how long a resolved
// sequence id is still recognized when a late reply shows up.
func NewCorrelator(retireTTL time.Duration) *Correlator {
	retired := ttlcache.New(
		ttlcache.WithTTL[uint64, time.Time](retireTTL),
		ttlcache.WithDisableTouchOnHit[uint64, time.Time](),
	)
	go retired.Start()

	return &Correlator{
		inflight: make(map[uint64]Probe),
		retired:  retired,
		now:      time.Now,
	}
}

// BeginProbe allocates the next sequence id, records the send time and
// inserts the probe into the in-flight table. The counter wraps; collisions
// are acceptable because in-flight entries age out via the timeout sweep
// long before the id space is exhausted.
func (c *Correlator) BeginProbe() Probe {
	p := Probe{
		Seq:    c.next,
		SentAt: c.now(),
	}
	c.next++
	c.inflight[p.Seq] = p
	return p
}

// OnReply resolves a reply for the given sequence id. If the id is
// in-flight it is retired and a Sample with the measured latency is
// returned. If the id was issued but already retired, a Stale outcome is
// returned. Ids this session never issued return ok == false and must be
// discarded silently.
//
// Latency is clamped to zero so a clock stepping backwards mid-session
// cannot produce a negative measurement.
func (c *Correlator) OnReply(seq uint64, receiveTime time.Time) (Outcome, bool) {
	p, ok := c.inflight[seq]
	if !ok {
		if c.retired.Has(seq) {
			return Outcome{Seq: seq, Kind: KindStale, Time: receiveTime}, true
		}
		return Outcome{}, false
	}

	delete(c.inflight, seq)
	c.retired.Set(seq, receiveTime, ttlcache.DefaultTTL)

	latency := receiveTime.Sub(p.SentAt)
	if latency < 0 {
		latency = 0
	}
	return Outcome{Seq: seq, Kind: KindSample, Latency: latency, Time: receiveTime}, true
}

// SweepTimeouts retires every in-flight probe older than timeout and
// returns one Lost outcome per retired probe. Entries at or below the
// timeout age are left untouched.
func (c *Correlator) SweepTimeouts(now time.Time, timeout time.Duration) []Outcome {
	var lost []Outcome
	for seq, p := range c.inflight {
		if now.Sub(p.SentAt) > timeout {
			delete(c.inflight, seq)
			c.retired.Set(seq, now, ttlcache.DefaultTTL)
			lost = append(lost, Outcome{Seq: seq, Kind: KindLost, Time: now})
		}
	}
	return lost
}

// InFlight returns the number of probes awaiting resolution.
func (c *Correlator) InFlight() int {
	return len(c.inflight)
}

// Close stops the retired-id cache. The correlator must not be used after
// Close.
func (c *Correlator) Close() {
	c.retired.Stop()
}
