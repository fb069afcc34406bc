package transport

import (
	"fmt"
	"io"
	"net"
	"time"
)

// inactivityTimeout is the embedded-transport-derived idle timeout: if no
// bytes arrive for this long, the connection is considered dead.
const inactivityTimeout = 30 * time.Second

// pollInterval is how often RecvInto re-arms the read deadline while
// waiting, so a caller-initiated close is noticed promptly instead of after
// a full inactivity window.
const pollInterval = 300 * time.Millisecond

// TCP is the default Transport, a thin wrapper over net.Conn with the
// driver's 30-second inactivity timeout enforced via repeated short read
// deadlines rather than one long one, so the connection can be torn down
// promptly if the caller disconnects mid-wait.
type TCP struct {
	conn net.Conn
}

// NewTCP returns an unconnected TCP transport.
func NewTCP() *TCP {
	return &TCP{}
}

// Connect dials host:port with a dial timeout matching the inactivity
// window.
func (t *TCP) Connect(host string, port int) error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), inactivityTimeout)
	if err != nil {
		return fmt.Errorf("transport: dial %s:%d: %w", host, port, err)
	}
	t.conn = conn
	return nil
}

// Disconnect closes the underlying socket. Safe to call multiple times.
func (t *TCP) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Send writes header and payload as one gather write via net.Buffers,
// which a *net.TCPConn issues as a single writev.
func (t *TCP) Send(header, payload []byte) error {
	if t.conn == nil {
		return ErrClosed
	}
	bufs := net.Buffers{header}
	if len(payload) > 0 {
		bufs = append(bufs, payload)
	}
	if _, err := bufs.WriteTo(t.conn); err != nil {
		return fmt.Errorf("transport: write segment: %w", err)
	}
	return nil
}

// RecvInto reads exactly len(dst) bytes, re-arming a short read deadline
// every pollInterval so a stalled connection is detected within
// inactivityTimeout of the last successful read rather than only at the
// deadline's end.
func (t *TCP) RecvInto(dst []byte) error {
	if t.conn == nil {
		return ErrClosed
	}

	deadline := time.Now().Add(inactivityTimeout)
	total := 0
	for total < len(dst) {
		if time.Now().After(deadline) {
			t.Disconnect()
			return fmt.Errorf("transport: read timed out after %s", inactivityTimeout)
		}

		t.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := t.conn.Read(dst[total:])
		total += n
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // poll interval elapsed, not the inactivity window
			}
			if err == io.EOF {
				t.Disconnect()
				return fmt.Errorf("transport: connection closed by peer: %w", io.ErrUnexpectedEOF)
			}
			t.Disconnect()
			return fmt.Errorf("transport: read: %w", err)
		}
		if n > 0 {
			deadline = time.Now().Add(inactivityTimeout)
		}
	}
	return nil
}
