package tdsbuf

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	buf := New(64)

	w := buf.Writer()
	if !w.WriteBytes([]byte("hello")) {
		t.Fatal("write failed")
	}
	w.Close()

	r := buf.Reader()
	defer r.Close()

	if !r.HasBytes(5) {
		t.Fatalf("expected 5 bytes available, got %d", r.RemainingBytes())
	}
	got, ok := r.Read(5)
	if !ok {
		t.Fatal("read failed")
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	if r.RemainingBytes() != 0 {
		t.Fatalf("expected buffer empty after full read, got %d remaining", r.RemainingBytes())
	}
}

func TestScalarRoundTrip(t *testing.T) {
	buf := New(32)

	w := buf.Writer()
	w.WriteUint16(0x1234, LittleEndian)
	w.WriteUint32(0xDEADBEEF, BigEndian)
	w.Close()

	r := buf.Reader()
	defer r.Close()

	v16, ok := r.ReadUint16(LittleEndian)
	if !ok || v16 != 0x1234 {
		t.Fatalf("ReadUint16 = %04x, %v", v16, ok)
	}
	v32, ok := r.ReadUint32(BigEndian)
	if !ok || v32 != 0xDEADBEEF {
		t.Fatalf("ReadUint32 = %08x, %v", v32, ok)
	}
}

func TestCheckpointRestore(t *testing.T) {
	buf := New(32)
	w := buf.Writer()
	w.WriteBytes([]byte{1, 2, 3, 4, 5})
	w.Close()

	r := buf.Reader()
	defer r.Close()

	cp := r.Checkpoint()
	r.Read(3)
	r.Restore(cp)

	b, ok := r.ReadUint8()
	if !ok || b != 1 {
		t.Fatalf("after restore, expected first byte 1, got %d, %v", b, ok)
	}
}

func TestExclusivityPanics(t *testing.T) {
	buf := New(16)
	w := buf.Writer()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on concurrent writer checkout")
		}
		w.Close()
	}()
	buf.Writer()
}

func TestExclusivityReaderBlocksWriter(t *testing.T) {
	buf := New(16)
	r := buf.Reader()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on writer checkout while reader is open")
		}
		r.Close()
	}()
	buf.Writer()
}

func TestReaderCloseShiftsLeftoverBytes(t *testing.T) {
	buf := New(16)
	w := buf.Writer()
	w.WriteBytes([]byte{1, 2, 3, 4, 5})
	w.Close()

	r := buf.Reader()
	r.Read(2) // consume first two bytes, leave {3,4,5}
	r.Close()

	if buf.InuseLen() != 3 {
		t.Fatalf("expected 3 leftover bytes after shift, got %d", buf.InuseLen())
	}
	r2 := buf.Reader()
	rest, ok := r2.Peek(3)
	if !ok || string(rest) != "\x03\x04\x05" {
		t.Fatalf("unexpected leftover bytes: %v", rest)
	}
	r2.Close()

	w2 := buf.Writer()
	defer w2.Close()
	if w2.Remaining() != 16-3 {
		t.Fatalf("expected %d bytes free after shift, got %d", 16-3, w2.Remaining())
	}
}

func TestShiftLeftZeroesTail(t *testing.T) {
	buf := New(8)
	w := buf.Writer()
	w.WriteBytes([]byte{1, 2, 3, 4, 5, 6})
	w.Close()

	if err := buf.ShiftLeft(2, 6); err != nil {
		t.Fatalf("ShiftLeft: %v", err)
	}

	want := []byte{3, 4, 5, 6, 0, 0, 0, 0}
	for i, b := range want {
		if buf.data[i] != b {
			t.Fatalf("byte %d = %d, want %d", i, buf.data[i], b)
		}
	}
}

func TestWriteAtPatchesPlaceholder(t *testing.T) {
	buf := New(16)
	w := buf.Writer()
	w.WriteUint32(0, LittleEndian) // placeholder
	w.WriteBytes([]byte("payload"))
	if err := w.WriteAt(0, []byte{0xAA, 0xBB, 0xCC, 0xDD}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	w.Close()

	r := buf.Reader()
	defer r.Close()
	patched, _ := r.Read(4)
	if patched[0] != 0xAA || patched[3] != 0xDD {
		t.Fatalf("patch did not take effect: %v", patched)
	}
}

func TestReadOutOfBoundsFailsWithoutMutating(t *testing.T) {
	buf := New(8)
	w := buf.Writer()
	w.WriteBytes([]byte{1, 2})
	w.Close()

	r := buf.Reader()
	defer r.Close()

	cp := r.Checkpoint()
	if _, ok := r.Read(10); ok {
		t.Fatal("expected out-of-bounds read to fail")
	}
	if r.Checkpoint() != cp {
		t.Fatal("failed read must not advance the cursor")
	}
}

func TestAdvanceOutOfBoundsRejected(t *testing.T) {
	buf := New(8)
	w := buf.Writer()
	w.WriteBytes([]byte{1, 2, 3})
	w.Close()

	r := buf.Reader()
	defer r.Close()

	if r.Advance(-1) {
		t.Fatal("expected negative advance past start to fail")
	}
	if r.Advance(100) {
		t.Fatal("expected advance past write offset to fail")
	}
}

func TestSubReaderBoundedIndependentOfConsumption(t *testing.T) {
	buf := New(16)
	w := buf.Writer()
	w.WriteBytes([]byte{1, 2, 3, 4, 5, 6})
	w.Close()

	r := buf.Reader()
	defer r.Close()

	sub, err := r.Sub(4)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	// Sub-reader only reads 1 byte, but the parent cursor already advanced
	// past the full 4-byte span.
	b, ok := sub.ReadUint8()
	if !ok || b != 1 {
		t.Fatalf("sub read = %d, %v", b, ok)
	}
	if r.RemainingBytes() != 2 {
		t.Fatalf("expected 2 bytes left in parent after 4-byte sub, got %d", r.RemainingBytes())
	}
}
