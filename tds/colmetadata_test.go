package tds

import (
	"testing"

	"github.com/tdsl-go/tdsl/tdsbuf"
)

// buildColMetadataBody assembles a COLMETADATA token body (sans the
// token-type byte and outer length prefix COLMETADATA doesn't have).
func buildColMetadataBody(t *testing.T, count uint16, cols func(w *tdsbuf.Writer)) *tdsbuf.Buffer {
	t.Helper()
	buf := tdsbuf.New(4096)
	w := buf.Writer()
	w.WriteUint16(count, tdsbuf.LittleEndian)
	if cols != nil {
		cols(w)
	}
	w.Close()
	return buf
}

func writeColumnName(t *testing.T, w *tdsbuf.Writer, name string) {
	t.Helper()
	b, err := encodeUCS2(name)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteUint8(uint8(len(b) / 2))
	w.WriteBytes(b)
}

func TestParseColMetadataFixedAndVariableColumns(t *testing.T) {
	buf := buildColMetadataBody(t, 2, func(w *tdsbuf.Writer) {
		// column 1: INT4, name "id"
		w.WriteUint16(0, tdsbuf.LittleEndian) // UserType
		w.WriteUint16(0x0001, tdsbuf.LittleEndian) // Flags: nullable
		w.WriteUint8(uint8(TypeInt4))
		writeColumnName(t, w, "id")

		// column 2: NVARCHAR(50), name "name"
		w.WriteUint16(0, tdsbuf.LittleEndian)
		w.WriteUint16(0, tdsbuf.LittleEndian)
		w.WriteUint8(uint8(TypeNVarChar))
		w.WriteUint16(100, tdsbuf.LittleEndian) // max byte length
		w.WriteBytes(DefaultCollation[:])
		writeColumnName(t, w, "name")
	})

	r := buf.Reader()
	defer r.Close()

	cols, ok, err := parseColMetadata(r)
	if err != nil {
		t.Fatalf("parseColMetadata: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true with a complete body")
	}
	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2", len(cols))
	}
	if cols[0].Name != "id" || cols[0].Type != TypeInt4 || !cols[0].Nullable() {
		t.Fatalf("column 0 = %+v", cols[0])
	}
	if cols[1].Name != "name" || cols[1].Type != TypeNVarChar || cols[1].Length != 100 || !cols[1].Unicode() {
		t.Fatalf("column 1 = %+v", cols[1])
	}
}

func TestParseColMetadataNoColumnsSentinel(t *testing.T) {
	buf := tdsbuf.New(16)
	w := buf.Writer()
	w.WriteUint16(0xFFFF, tdsbuf.LittleEndian)
	w.Close()

	r := buf.Reader()
	defer r.Close()

	cols, ok, err := parseColMetadata(r)
	if err != nil || !ok || cols != nil {
		t.Fatalf("parseColMetadata with 0xFFFF count = %v, %v, %v", cols, ok, err)
	}
}

func TestParseColMetadataShortBufferReportsNotOK(t *testing.T) {
	buf := tdsbuf.New(16)
	w := buf.Writer()
	w.WriteUint16(1, tdsbuf.LittleEndian)
	w.WriteUint16(0, tdsbuf.LittleEndian) // UserType only, column truncated here
	w.Close()

	r := buf.Reader()
	defer r.Close()
	cp := r.Checkpoint()

	_, ok, err := parseColMetadata(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a truncated column")
	}
	r.Restore(cp)
	if r.RemainingBytes() != 4 {
		t.Fatalf("after restore expected 4 remaining bytes, got %d", r.RemainingBytes())
	}
}

func TestParseColMetadataUnknownTypeByte(t *testing.T) {
	buf := tdsbuf.New(16)
	w := buf.Writer()
	w.WriteUint16(1, tdsbuf.LittleEndian)
	w.WriteUint16(0, tdsbuf.LittleEndian)
	w.WriteUint16(0, tdsbuf.LittleEndian)
	w.WriteUint8(0x99) // not a recognised SQLType
	w.Close()

	r := buf.Reader()
	defer r.Close()

	_, _, err := parseColMetadata(r)
	if err == nil {
		t.Fatal("expected an error for an unrecognised type byte")
	}
	pe, ok := err.(*ProtoError)
	if !ok || pe.Kind != ErrUnknownColumnSizeType {
		t.Fatalf("err = %v, want ErrUnknownColumnSizeType", err)
	}
}

func TestParseColMetadataLOBTypeRejected(t *testing.T) {
	buf := tdsbuf.New(16)
	w := buf.Writer()
	w.WriteUint16(1, tdsbuf.LittleEndian)
	w.WriteUint16(0, tdsbuf.LittleEndian)
	w.WriteUint16(0, tdsbuf.LittleEndian)
	w.WriteUint8(uint8(TypeText))
	w.Close()

	r := buf.Reader()
	defer r.Close()

	_, _, err := parseColMetadata(r)
	if err == nil {
		t.Fatal("expected LOB column type to be rejected")
	}
}
