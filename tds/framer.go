package tds

import (
	"errors"
	"fmt"

	"github.com/tdsl-go/tdsl/tdsbuf"
	"github.com/tdsl-go/tdsl/transport"
)

// ErrUndersizedBuffer is returned by ReceivePDU when the negotiated packet
// size leaves no free span to make progress on a streamed segment.
var ErrUndersizedBuffer = errors.New("tds: buffer too small for this message at the negotiated packet size")

// PacketDataFunc is invoked by the framer with newly-arrived payload bytes
// streamed into buf's inuse span. It returns a hint of how many additional
// bytes it would need to make progress (Parser.Feed reports 1, the next
// token-type byte, once it has drained the buffer); the framer only uses this for diagnostic logging, never to change its own
// behaviour. The callback is free to leave unconsumed bytes in buf — on its
// own Reader.Close those are shifted to the front automatically.
type PacketDataFunc func(buf *tdsbuf.Buffer) (bytesNeeded int, err error)

// Framer segments outbound writes into TDS packets and reassembles inbound
// packets into a logical message stream, per TDS §2/§4.3.
type Framer struct {
	transport  transport.Transport
	packetSize int
	packetID   uint8

	// logf receives diagnostic messages (residue discarded, deficit hints).
	// Nil disables logging.
	logf func(format string, args ...interface{})
}

// NewFramer constructs a Framer over the given transport with an initial
// negotiated packet size.
func NewFramer(t transport.Transport, packetSize int) *Framer {
	return &Framer{
		transport:  t,
		packetSize: packetSize,
		packetID:   1,
	}
}

// SetLogger installs a diagnostic sink; pass nil to disable.
func (f *Framer) SetLogger(logf func(format string, args ...interface{})) {
	f.logf = logf
}

// PacketSize returns the negotiated packet size.
func (f *Framer) PacketSize() int {
	return f.packetSize
}

// SetPacketSize updates the negotiated packet size, e.g. in response to an
// ENVCHANGE-4 token. The new size is never silently lowered below
// MinPacketSize.
func (f *Framer) SetPacketSize(size int) {
	if size >= MinPacketSize && size <= MaxPacketSize {
		f.packetSize = size
	}
}

func (f *Framer) log(format string, args ...interface{}) {
	if f.logf != nil {
		f.logf(format, args...)
	}
}

// SendPDU writes buf's entire inuse span as one logical TDS message of the
// given type, splitting it into packetSize-8 segments. The buffer is fully
// consumed.
func (f *Framer) SendPDU(buf *tdsbuf.Buffer, msgType PacketType) error {
	r := buf.Reader()
	defer r.Close()

	segmentSize := f.packetSize - HeaderSize
	if segmentSize <= 0 {
		return fmt.Errorf("tds: packet size %d too small for a header", f.packetSize)
	}

	for {
		remaining := r.RemainingBytes()
		n := remaining
		isLast := true
		if n > segmentSize {
			n = segmentSize
			isLast = false
		}

		segment, _ := r.Read(n)

		status := StatusNormal
		if isLast {
			status = StatusEOM
		}
		hdr := Header{
			Type:     msgType,
			Status:   status,
			Length:   uint16(HeaderSize + len(segment)),
			Channel:  0,
			PacketID: f.packetID,
			Window:   0,
		}
		encoded := hdr.Encode()
		if err := f.transport.Send(encoded[:], segment); err != nil {
			return fmt.Errorf("tds: send segment: %w", err)
		}

		f.packetID++
		if f.packetID == 0 {
			f.packetID = 1
		}

		if isLast {
			return nil
		}
	}
}

// ReceivePDU reassembles one logical inbound TDS message, streaming
// decoded payload bytes to cb as they accumulate in buf. It returns the
// message's PacketType (taken from the first segment's header).
func (f *Framer) ReceivePDU(buf *tdsbuf.Buffer, cb PacketDataFunc) (PacketType, error) {
	var msgType PacketType
	first := true

	for {
		var hdrBytes [HeaderSize]byte
		if err := f.transport.RecvInto(hdrBytes[:]); err != nil {
			return 0, fmt.Errorf("tds: recv header: %w", err)
		}
		hdr, err := DecodeHeader(hdrBytes[:])
		if err != nil {
			return 0, err
		}
		if first {
			msgType = hdr.Type
			first = false
		}

		if hdr.Length < HeaderSize || int(hdr.Length) > MaxPacketSize {
			return 0, fmt.Errorf("tds: invalid length: %d", hdr.Length)
		}

		payloadLen := hdr.PayloadLength()

		if payloadLen > buf.FreeLen() {
			if err := f.receiveStreaming(buf, cb, payloadLen); err != nil {
				return 0, err
			}
		} else if payloadLen > 0 {
			w := buf.Writer()
			dst := w.FreeSpan()[:payloadLen]
			if err := f.transport.RecvInto(dst); err != nil {
				w.Close()
				return 0, fmt.Errorf("tds: recv payload: %w", err)
			}
			w.Advance(payloadLen)
			w.Close()

			needed, err := cb(buf)
			if err != nil {
				return 0, err
			}
			if needed > 0 {
				f.log("tds: token callback reports %d bytes still needed after a full segment", needed)
			}
		}

		if hdr.Status.IsEOM() {
			break
		}
	}

	if buf.InuseLen() > 0 {
		f.log("tds: discarding %d unparsed residual bytes after EOM", buf.InuseLen())
		buf.Reset()
	}

	return msgType, nil
}

// receiveStreaming pulls a segment's payload in chunks bounded by buf's
// free span, handing each chunk to cb as it arrives.
func (f *Framer) receiveStreaming(buf *tdsbuf.Buffer, cb PacketDataFunc, payloadLen int) error {
	pulled := 0
	for pulled < payloadLen {
		free := buf.FreeLen()
		if free == 0 {
			buf.Reset()
			return ErrUndersizedBuffer
		}

		chunk := payloadLen - pulled
		if chunk > free {
			chunk = free
		}

		w := buf.Writer()
		dst := w.FreeSpan()[:chunk]
		if err := f.transport.RecvInto(dst); err != nil {
			w.Close()
			return fmt.Errorf("tds: recv streamed chunk: %w", err)
		}
		w.Advance(chunk)
		w.Close()
		pulled += chunk

		needed, err := cb(buf)
		if err != nil {
			return err
		}
		if needed > 0 {
			f.log("tds: token callback reports %d bytes still needed mid-stream", needed)
		}
	}
	return nil
}
