package tds

import (
	"github.com/tdsl-go/tdsl/tdsbuf"
)

// Row is one decoded ROW token: one Field per column, in COLMETADATA order.
type Row []Field

// parseRow parses a ROW token body against the current column metadata. It
// returns ok=false, having consumed nothing durable, when the buffer does
// not yet hold the whole row — the caller restores to its pre-token
// checkpoint in that case.
func parseRow(r *tdsbuf.Reader, cols []Column) (Row, bool, error) {
	if cols == nil {
		return nil, false, newProtoError(ErrMissingPriorColMetadata, "ROW token arrived before any COLMETADATA")
	}

	row := make(Row, 0, len(cols))
	for _, col := range cols {
		f, ok, err := parseField(r, col)
		if err != nil || !ok {
			return nil, ok, err
		}
		row = append(row, f)
	}
	return row, true, nil
}

// parseField decodes one column's value out of a ROW (or NBCROW, with its
// NULL bitmap already consulted by the caller) token body.
func parseField(r *tdsbuf.Reader, col Column) (Field, bool, error) {
	class, known := classify(col.Type)
	if !known {
		return Field{}, false, newProtoError(ErrUnknownColumnSizeType, "0x%02X", uint8(col.Type))
	}

	switch class {
	case sizeFixed:
		width := fixedWidth(col.Type)
		if width == 0 {
			return Field{Type: col.Type, IsNil: true}, true, nil
		}
		raw, ok := r.Read(width)
		if !ok {
			return Field{}, false, nil
		}
		return Field{Type: col.Type, Raw: raw}, true, nil

	case sizeVarU8, sizePrecision:
		length, ok := r.ReadUint8()
		if !ok {
			return Field{}, false, nil
		}
		if length == 0 {
			return Field{Type: col.Type, IsNil: true}, true, nil
		}
		raw, ok := r.Read(int(length))
		if !ok {
			return Field{}, false, nil
		}
		return Field{Type: col.Type, Raw: raw}, true, nil

	case sizeVarLenU8:
		length, ok := r.ReadUint8()
		if !ok {
			return Field{}, false, nil
		}
		if length == 0xFF {
			return Field{Type: col.Type, IsNil: true}, true, nil
		}
		raw, ok := r.Read(int(length))
		if !ok {
			return Field{}, false, nil
		}
		return Field{Type: col.Type, Raw: raw}, true, nil

	case sizeVarLenU16:
		length, ok := r.ReadUint16(tdsbuf.LittleEndian)
		if !ok {
			return Field{}, false, nil
		}
		if length == 0xFFFF {
			return Field{Type: col.Type, IsNil: true}, true, nil
		}
		raw, ok := r.Read(int(length))
		if !ok {
			return Field{}, false, nil
		}
		return Field{Type: col.Type, Raw: raw}, true, nil

	default:
		return Field{}, false, newProtoError(ErrUnknownColumnSizeType, "%s: LOB columns are not supported", col.Type)
	}
}

// parseNBCRow parses an NBCROW token: identical to ROW except a leading
// bitmap (one bit per column, LSB-first, ceil(n/8) bytes) marks NULL columns
// up front instead of each field self-describing its own NULL-ness.
func parseNBCRow(r *tdsbuf.Reader, cols []Column) (Row, bool, error) {
	if cols == nil {
		return nil, false, newProtoError(ErrMissingPriorColMetadata, "NBCROW token arrived before any COLMETADATA")
	}

	bitmapLen := (len(cols) + 7) / 8
	bitmap, ok := r.Read(bitmapLen)
	if !ok {
		return nil, false, nil
	}

	row := make(Row, 0, len(cols))
	for i, col := range cols {
		isNull := bitmap[i/8]&(1<<uint(i%8)) != 0
		if isNull {
			row = append(row, Field{Type: col.Type, IsNil: true})
			continue
		}
		f, ok, err := parseFieldNoNullPrefix(r, col)
		if err != nil || !ok {
			return nil, ok, err
		}
		row = append(row, f)
	}
	return row, true, nil
}

// parseFieldNoNullPrefix decodes a non-NULL NBCROW field: the NULL marker
// has already been consulted via the bitmap, but variable-length columns
// still carry their own length prefix (it just can no longer mean NULL).
func parseFieldNoNullPrefix(r *tdsbuf.Reader, col Column) (Field, bool, error) {
	class, known := classify(col.Type)
	if !known {
		return Field{}, false, newProtoError(ErrUnknownColumnSizeType, "0x%02X", uint8(col.Type))
	}

	switch class {
	case sizeFixed:
		width := fixedWidth(col.Type)
		raw, ok := r.Read(width)
		if !ok {
			return Field{}, false, nil
		}
		return Field{Type: col.Type, Raw: raw}, true, nil
	default:
		return parseField(r, col)
	}
}
