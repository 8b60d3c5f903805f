package probe

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// BindError reports a failure to set up the local UDP socket for a target,
// either because the address did not parse/resolve or because the socket
// could not be created. It is fatal to starting a session; it says nothing
// about remote reachability.
type BindError struct {
	Target string
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot open UDP socket for %s: %v", e.Target, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Transport sends and receives UDP datagrams on a socket connected to a
// single echo target. Connecting the socket makes the kernel drop datagrams
// from any other source, so every received payload is from the target.
type Transport struct {
	conn *net.UDPConn
}

// DialTransport resolves the target address and connects a UDP socket to
// it. UDP is connectionless, so success here does not imply the remote is
// reachable; a dead target simply surfaces as timeouts.
func DialTransport(target string) (*Transport, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, &BindError{Target: target, Err: err}
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, &BindError{Target: target, Err: err}
	}
	return &Transport{conn: conn}, nil
}

// Send transmits one datagram. A failure is fatal to the session that owns
// the transport; no retry happens at this layer. ECONNREFUSED is not a
// failure: a connected UDP socket reports it after an ICMP port unreachable
// from a dead target, and that probe should resolve as a timeout.
func (t *Transport) Send(payload []byte) error {
	if _, err := t.conn.Write(payload); err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil
		}
		return fmt.Errorf("send probe: %w", err)
	}
	return nil
}

// TryReceive waits up to maxWait for one datagram and returns its payload.
// A quiet socket returns (nil, false, nil) once the deadline passes, so the
// owning loop can interleave timeout sweeps without stalling on a silent
// network. maxWait must be positive: a deadline already in the past expires
// before queued datagrams are seen. Datagrams shorter than the sequence
// header are malformed and reported the same way as no datagram at all.
func (t *Transport) TryReceive(maxWait time.Duration) ([]byte, bool, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(maxWait)); err != nil {
		return nil, false, err
	}

	buf := make([]byte, 2048)
	n, err := t.conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, false, nil
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if n < HeaderSize {
		return nil, false, nil
	}
	return buf[:n], true, nil
}

// LocalAddr returns the bound local address.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}
