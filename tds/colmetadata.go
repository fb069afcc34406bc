package tds

import (
	"github.com/tdsl-go/tdsl/tdsbuf"
)

// Column describes one column as declared by a COLMETADATA token.
type Column struct {
	Name      string
	Type      SQLType
	Length    uint32 // declared max length for variable-length types
	Precision uint8  // decimal/numeric only
	Scale     uint8  // decimal/numeric only
	Collation [5]byte
	UserType  uint16
	Flags     uint16
}

// Nullable reports whether the column's FLAGS bit marks it nullable.
func (c Column) Nullable() bool { return c.Flags&0x0001 != 0 }

// Unicode reports whether the column is an NCHAR/NVARCHAR column, so row
// decoding knows to run its bytes through the UCS-2LE codec.
func (c Column) Unicode() bool {
	return c.Type == TypeNChar || c.Type == TypeNVarChar
}

// parseColMetadata parses a COLMETADATA token body (no outer length prefix:
// the token is self-describing via its column count). On short input it
// returns ok=false without having consumed anything lasting — the caller is
// expected to have captured a checkpoint before the token-type byte and
// restore to it.
func parseColMetadata(r *tdsbuf.Reader) ([]Column, bool, error) {
	count, ok := r.ReadUint16(tdsbuf.LittleEndian)
	if !ok {
		return nil, false, nil
	}
	if count == 0xFFFF {
		// COLMETADATA with no columns (e.g. a DDL statement's result set).
		return nil, true, nil
	}

	cols := make([]Column, 0, count)
	for i := uint16(0); i < count; i++ {
		col, ok, err := parseOneColumn(r)
		if err != nil || !ok {
			return nil, ok, err
		}
		cols = append(cols, col)
	}
	return cols, true, nil
}

func parseOneColumn(r *tdsbuf.Reader) (Column, bool, error) {
	var col Column

	userType, ok := r.ReadUint16(tdsbuf.LittleEndian)
	if !ok {
		return col, false, nil
	}
	col.UserType = userType

	flags, ok := r.ReadUint16(tdsbuf.LittleEndian)
	if !ok {
		return col, false, nil
	}
	col.Flags = flags

	typeByte, ok := r.ReadUint8()
	if !ok {
		return col, false, nil
	}
	col.Type = SQLType(typeByte)

	class, known := classify(col.Type)
	if !known {
		return col, false, newProtoError(ErrUnknownColumnSizeType, "0x%02X", typeByte)
	}

	switch class {
	case sizeFixed:
		// no further TYPE_INFO bytes

	case sizeVarU8:
		size, ok := r.ReadUint8()
		if !ok {
			return col, false, nil
		}
		col.Length = uint32(size)

	case sizePrecision:
		size, ok := r.ReadUint8()
		if !ok {
			return col, false, nil
		}
		col.Length = uint32(size)
		prec, ok := r.ReadUint8()
		if !ok {
			return col, false, nil
		}
		col.Precision = prec
		scale, ok := r.ReadUint8()
		if !ok {
			return col, false, nil
		}
		col.Scale = scale

	case sizeVarLenU8:
		size, ok := r.ReadUint8()
		if !ok {
			return col, false, nil
		}
		col.Length = uint32(size)
		if col.Type == TypeChar || col.Type == TypeVarChar {
			collation, ok := r.Read(5)
			if !ok {
				return col, false, nil
			}
			copy(col.Collation[:], collation)
		}

	case sizeVarLenU16:
		size, ok := r.ReadUint16(tdsbuf.LittleEndian)
		if !ok {
			return col, false, nil
		}
		col.Length = uint32(size)
		if col.Type == TypeBigVarChar || col.Type == TypeBigChar || col.Type == TypeNVarChar || col.Type == TypeNChar {
			collation, ok := r.Read(5)
			if !ok {
				return col, false, nil
			}
			copy(col.Collation[:], collation)
		}

	case sizeVarLenU32:
		return col, false, newProtoError(ErrUnknownColumnSizeType, "%s: LOB columns are not supported", col.Type)
	}

	nameLen, ok := r.ReadUint8()
	if !ok {
		return col, false, nil
	}
	nameBytes, ok := r.Read(int(nameLen) * 2)
	if !ok {
		return col, false, nil
	}
	name, err := decodeUCS2(nameBytes)
	if err != nil {
		return col, false, err
	}
	col.Name = name

	return col, true, nil
}
