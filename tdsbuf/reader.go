package tdsbuf

import "fmt"

// Reader consumes a Buffer's inuse span. On Close it left-shifts whatever it
// did not consume back to the front of the buffer, returning that head
// space to the writer. Exactly one Reader may be live on a Buffer at a
// time.
type Reader struct {
	buf    *Buffer
	off    int // absolute offset into buf.data of the next unread byte
	closed bool
}

// Close commits the reader's progress: bytes between the buffer's original
// read offset and the reader's current position are discarded, and any
// remaining unconsumed bytes are shifted to the front of the buffer.
func (r *Reader) Close() {
	if r.closed {
		return
	}
	r.closed = true

	consumed := r.off
	bound := r.buf.writeOff
	if consumed > 0 {
		r.buf.ShiftLeft(consumed, bound)
	}
	r.buf.writeOff = bound - consumed
	r.buf.readOff = 0
	r.buf.readerOut = false
}

// Checkpoint captures the reader's current offset for later Restore.
func (r *Reader) Checkpoint() int {
	return r.off
}

// Restore rewinds the reader to a previously captured checkpoint.
func (r *Reader) Restore(checkpoint int) {
	r.off = checkpoint
}

// RemainingBytes returns how many unread bytes remain.
func (r *Reader) RemainingBytes() int {
	return r.buf.writeOff - r.off
}

// HasBytes reports whether at least n unread bytes remain.
func (r *Reader) HasBytes(n int) bool {
	return r.RemainingBytes() >= n
}

// Advance moves the read cursor by delta bytes (positive or negative). It
// refuses to move outside [original-read-start, write-offset] and leaves
// the cursor unchanged on failure.
func (r *Reader) Advance(delta int) bool {
	next := r.off + delta
	if next < 0 || next > r.buf.writeOff {
		return false
	}
	r.off = next
	return true
}

// Seek moves the read cursor to an absolute offset within the buffer.
func (r *Reader) Seek(offset int) bool {
	if offset < 0 || offset > r.buf.writeOff {
		return false
	}
	r.off = offset
	return true
}

// Read returns the next n bytes without copying and advances the cursor.
// The returned slice aliases the buffer and is only valid until the next
// mutation of the buffer.
func (r *Reader) Read(n int) ([]byte, bool) {
	if !r.HasBytes(n) {
		return nil, false
	}
	p := r.buf.data[r.off : r.off+n]
	r.off += n
	return p, true
}

// Peek returns the next n bytes without advancing the cursor.
func (r *Reader) Peek(n int) ([]byte, bool) {
	if !r.HasBytes(n) {
		return nil, false
	}
	return r.buf.data[r.off : r.off+n], true
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, bool) {
	p, ok := r.Read(1)
	if !ok {
		return 0, false
	}
	return p[0], true
}

// ReadUint16 reads a 16-bit scalar in the given byte order.
func (r *Reader) ReadUint16(e Endianness) (uint16, bool) {
	p, ok := r.Read(2)
	if !ok {
		return 0, false
	}
	return e.order().Uint16(p), true
}

// ReadUint32 reads a 32-bit scalar in the given byte order.
func (r *Reader) ReadUint32(e Endianness) (uint32, bool) {
	p, ok := r.Read(4)
	if !ok {
		return 0, false
	}
	return e.order().Uint32(p), true
}

// ReadUint64 reads a 64-bit scalar in the given byte order.
func (r *Reader) ReadUint64(e Endianness) (uint64, bool) {
	p, ok := r.Read(8)
	if !ok {
		return 0, false
	}
	return e.order().Uint64(p), true
}

// ReadInt32 reads a signed 32-bit scalar in the given byte order.
func (r *Reader) ReadInt32(e Endianness) (int32, bool) {
	v, ok := r.ReadUint32(e)
	return int32(v), ok
}

// PeekUint8 peeks a single byte without advancing.
func (r *Reader) PeekUint8() (uint8, bool) {
	p, ok := r.Peek(1)
	if !ok {
		return 0, false
	}
	return p[0], true
}

// PeekUint16 peeks a 16-bit scalar without advancing.
func (r *Reader) PeekUint16(e Endianness) (uint16, bool) {
	p, ok := r.Peek(2)
	if !ok {
		return 0, false
	}
	return e.order().Uint16(p), true
}

// Sub returns a clamped reader over exactly the next n bytes, used by the
// token parser to bound a handler to a token's declared size. The parent
// reader's cursor is advanced past the n bytes regardless of how much the
// sub-reader itself consumes.
func (r *Reader) Sub(n int) (*subReader, error) {
	if !r.HasBytes(n) {
		return nil, fmt.Errorf("tdsbuf: sub-reader requires %d bytes, have %d", n, r.RemainingBytes())
	}
	start := r.off
	r.off += n
	return &subReader{data: r.buf.data[start : start+n]}, nil
}

// subReader is a bounded, buffer-independent cursor used for token bodies.
type subReader struct {
	data []byte
	off  int
}

func (s *subReader) RemainingBytes() int { return len(s.data) - s.off }
func (s *subReader) HasBytes(n int) bool { return s.RemainingBytes() >= n }

func (s *subReader) Read(n int) ([]byte, bool) {
	if !s.HasBytes(n) {
		return nil, false
	}
	p := s.data[s.off : s.off+n]
	s.off += n
	return p, true
}

func (s *subReader) ReadUint8() (uint8, bool) {
	p, ok := s.Read(1)
	if !ok {
		return 0, false
	}
	return p[0], true
}

func (s *subReader) ReadUint16(e Endianness) (uint16, bool) {
	p, ok := s.Read(2)
	if !ok {
		return 0, false
	}
	return e.order().Uint16(p), true
}

func (s *subReader) ReadUint32(e Endianness) (uint32, bool) {
	p, ok := s.Read(4)
	if !ok {
		return 0, false
	}
	return e.order().Uint32(p), true
}

func (s *subReader) ReadInt32(e Endianness) (int32, bool) {
	v, ok := s.ReadUint32(e)
	return int32(v), ok
}

func (s *subReader) ReadUint64(e Endianness) (uint64, bool) {
	p, ok := s.Read(8)
	if !ok {
		return 0, false
	}
	return e.order().Uint64(p), true
}
