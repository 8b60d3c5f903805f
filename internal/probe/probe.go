package probe

import (
	"encoding/binary"
	"time"
)

// HeaderSize is the number of leading payload bytes that carry the
// big-endian sequence id. Anything after the header is filler the echo
// endpoint returns unchanged.
const HeaderSize = 8

// PayloadSize is the total datagram size sent per probe. The filler beyond
// the header gives the echo a realistically sized packet to return.
const PayloadSize = 32

// Probe is one outgoing latency measurement request. Immutable once sent;
// retired on a matching reply or a timeout sweep.
type Probe struct {
	Seq    uint64
	SentAt time.Time
}

// OutcomeKind classifies the terminal result of a probe.
type OutcomeKind int

const (
	// KindSample is a measured round-trip.
	KindSample OutcomeKind = iota
	// KindLost marks a probe that timed out without a reply.
	KindLost
	// KindStale marks a reply that arrived after its probe was already
	// retired. Recorded in history but not a fresh measurement.
	KindStale
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSample:
		return "sample"
	case KindLost:
		return "lost"
	case KindStale:
		return "stale"
	}
	return "unknown"
}

// Outcome is the terminal result of exactly one probe.
type Outcome struct {
	Seq     uint64        `json:"seq"`
	Kind    OutcomeKind   `json:"kind"`
	Latency time.Duration `json:"latency"` // zero unless Kind == KindSample
	Time    time.Time     `json:"time"`    // when the outcome was decided
}

// EncodePayload builds the probe datagram: 8 bytes of big-endian sequence
// id followed by zero filler up to PayloadSize.
func EncodePayload(seq uint64) []byte {
	buf := make([]byte, PayloadSize)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

// DecodeSeq extracts the sequence id from an echoed datagram. Returns false
// for datagrams shorter than the header, which are malformed and must be
// discarded rather than matched.
func DecodeSeq(payload []byte) (uint64, bool) {
	if len(payload) < HeaderSize {
		return 0, false
	}
	return binary.BigEndian.Uint64(payload), true
}
