// Package tdsbuf implements the shared scratch space used by the TDS framer
// and token parser: a single owned byte region plus an offset-carrying
// writer and a consuming reader, with endian-aware scalar access and
// checkpoint/rollback support.
//
// At most one Writer or one Reader may be checked out of a Buffer at any
// moment. Checking out a second one while the first is still open is a
// programming error and panics, mirroring the reader/writer exclusivity
// flag of the reference implementation.
package tdsbuf

import (
	"encoding/binary"
	"fmt"
)

// Endianness selects byte order for scalar reads and writes.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) order() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Buffer is a single owned byte region shared by a Framer's sender and
// receiver halves. It is not safe for concurrent use from multiple
// goroutines; callers serialise access the way the TDS context does.
type Buffer struct {
	data []byte

	writeOff int // one past the last byte written (head of the free span)
	readOff  int // one past the last byte consumed (head of the inuse span)

	writerOut bool
	readerOut bool
}

// New allocates a Buffer with the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the buffer's total capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// InuseSpan returns the slice of bytes written but not yet consumed.
func (b *Buffer) InuseSpan() []byte {
	return b.data[b.readOff:b.writeOff]
}

// FreeSpan returns the slice of unwritten tail capacity.
func (b *Buffer) FreeSpan() []byte {
	return b.data[b.writeOff:]
}

// InuseLen is the number of unread, written bytes.
func (b *Buffer) InuseLen() int {
	return b.writeOff - b.readOff
}

// FreeLen is the number of unwritten trailing bytes.
func (b *Buffer) FreeLen() int {
	return len(b.data) - b.writeOff
}

// Reset discards all written and read state, returning the buffer to empty.
// It does not check exclusivity; it is meant for use between messages once
// any outstanding Reader/Writer has been closed.
func (b *Buffer) Reset() {
	b.writeOff = 0
	b.readOff = 0
}

// ShiftLeft moves the span [n, bound) to [0, bound-n) and zeroes the
// trailing n bytes, returning that space to the writer. It is the mechanism
// by which a Reader's Close returns consumed bytes to the front of the
// buffer instead of leaving a hole.
func (b *Buffer) ShiftLeft(n, bound int) error {
	if n < 0 || bound < n || bound > len(b.data) {
		return fmt.Errorf("tdsbuf: shift_left out of bounds: n=%d bound=%d cap=%d", n, bound, len(b.data))
	}
	copy(b.data[0:bound-n], b.data[n:bound])
	for i := bound - n; i < bound; i++ {
		b.data[i] = 0
	}
	return nil
}

// Writer checks out the buffer's writer. It panics if a writer or reader is
// already checked out — violating exclusivity is a programming error, not a
// recoverable condition.
func (b *Buffer) Writer() *Writer {
	if b.writerOut || b.readerOut {
		panic("tdsbuf: Writer() called while a reader or writer is already checked out")
	}
	b.writerOut = true
	return &Writer{buf: b}
}

// Reader checks out the buffer's reader. It panics under the same
// exclusivity rule as Writer.
func (b *Buffer) Reader() *Reader {
	if b.writerOut || b.readerOut {
		panic("tdsbuf: Reader() called while a reader or writer is already checked out")
	}
	b.readerOut = true
	return &Reader{buf: b, off: b.readOff}
}
