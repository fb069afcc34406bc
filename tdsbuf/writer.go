package tdsbuf

import "fmt"

// Writer appends to a Buffer's free span. It advances the buffer's write
// offset as data is appended; it never rewinds. Exactly one Writer may be
// live on a Buffer at a time.
type Writer struct {
	buf    *Buffer
	closed bool
}

// Close releases the writer's exclusive hold on the buffer. It does not
// shift any bytes — that is the reader's job on its own Close.
func (w *Writer) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.buf.writerOut = false
}

// Offset returns the buffer's current write offset.
func (w *Writer) Offset() int {
	return w.buf.writeOff
}

// Remaining returns how many bytes of free space remain.
func (w *Writer) Remaining() int {
	return w.buf.FreeLen()
}

// FreeSpan exposes the buffer's unwritten tail directly, for callers that
// fill it in place (e.g. a transport reading straight off the wire) instead
// of copying through WriteBytes. Pair with Advance to commit what was
// filled.
func (w *Writer) FreeSpan() []byte {
	return w.buf.FreeSpan()
}

// Advance commits n bytes previously filled directly via FreeSpan.
func (w *Writer) Advance(n int) bool {
	if n < 0 || n > w.buf.FreeLen() {
		return false
	}
	w.buf.writeOff += n
	return true
}

// WriteBytes appends a raw byte slice unchanged.
func (w *Writer) WriteBytes(p []byte) bool {
	if len(p) > w.buf.FreeLen() {
		return false
	}
	n := copy(w.buf.data[w.buf.writeOff:], p)
	w.buf.writeOff += n
	return true
}

// WriteAt writes p at an absolute buffer offset without advancing the
// write cursor, used to patch placeholder fields (packet length, RPC
// parameter-string length) after the fact.
func (w *Writer) WriteAt(offset int, p []byte) error {
	if offset < 0 || offset+len(p) > len(w.buf.data) {
		return fmt.Errorf("tdsbuf: write_at out of bounds: offset=%d len=%d cap=%d", offset, len(p), len(w.buf.data))
	}
	copy(w.buf.data[offset:], p)
	return nil
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) bool {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 appends a 16-bit scalar in the given byte order.
func (w *Writer) WriteUint16(v uint16, e Endianness) bool {
	var b [2]byte
	e.order().PutUint16(b[:], v)
	return w.WriteBytes(b[:])
}

// WriteUint32 appends a 32-bit scalar in the given byte order.
func (w *Writer) WriteUint32(v uint32, e Endianness) bool {
	var b [4]byte
	e.order().PutUint32(b[:], v)
	return w.WriteBytes(b[:])
}

// WriteUint64 appends a 64-bit scalar in the given byte order.
func (w *Writer) WriteUint64(v uint64, e Endianness) bool {
	var b [8]byte
	e.order().PutUint64(b[:], v)
	return w.WriteBytes(b[:])
}

// WriteInt32 appends a signed 32-bit scalar in the given byte order.
func (w *Writer) WriteInt32(v int32, e Endianness) bool {
	return w.WriteUint32(uint32(v), e)
}
