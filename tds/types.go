package tds

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCollation is the Latin1_General_CI_AS collation this driver
// stamps on outbound character parameters and column definitions; it does
// not attempt to honor the server's actual default collation.
var DefaultCollation = [5]byte{0x09, 0x04, 0xD0, 0x00, 0x34}

// SQLType is the wire byte identifying a column's or parameter's SQL type.
type SQLType uint8

const (
	TypeNull      SQLType = 0x1F
	TypeInt1      SQLType = 0x30
	TypeBit       SQLType = 0x32
	TypeInt2      SQLType = 0x34
	TypeInt4      SQLType = 0x38
	TypeDateTime4 SQLType = 0x3A
	TypeFloat4    SQLType = 0x3B
	TypeMoney     SQLType = 0x3C
	TypeDateTime  SQLType = 0x3D
	TypeFloat8    SQLType = 0x3E
	TypeMoney4    SQLType = 0x7A
	TypeInt8      SQLType = 0x7F

	TypeGUID            SQLType = 0x24
	TypeIntN            SQLType = 0x26
	TypeDecimal         SQLType = 0x37
	TypeNumeric         SQLType = 0x3F
	TypeBitN            SQLType = 0x68
	TypeDecimalN        SQLType = 0x6A
	TypeNumericN        SQLType = 0x6C
	TypeFloatN          SQLType = 0x6D
	TypeMoneyN          SQLType = 0x6E
	TypeDateTimeN       SQLType = 0x6F
	TypeDateN           SQLType = 0x28
	TypeTimeN           SQLType = 0x29
	TypeDateTime2N      SQLType = 0x2A
	TypeDateTimeOffsetN SQLType = 0x2B

	TypeChar      SQLType = 0x2F
	TypeVarChar   SQLType = 0x27
	TypeBinary    SQLType = 0x2D
	TypeVarBinary SQLType = 0x25

	TypeBigVarBin  SQLType = 0xA5
	TypeBigVarChar SQLType = 0xA7
	TypeBigBinary  SQLType = 0xAD
	TypeBigChar    SQLType = 0xAF
	TypeNVarChar   SQLType = 0xE7
	TypeNChar      SQLType = 0xEF
	TypeXML        SQLType = 0xF1
	TypeUDT        SQLType = 0xF0

	TypeText      SQLType = 0x23
	TypeImage     SQLType = 0x22
	TypeNText     SQLType = 0x63
	TypeSSVariant SQLType = 0x62
)

func (t SQLType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInt1:
		return "TINYINT"
	case TypeBit, TypeBitN:
		return "BIT"
	case TypeInt2:
		return "SMALLINT"
	case TypeInt4:
		return "INT"
	case TypeInt8:
		return "BIGINT"
	case TypeIntN:
		return "INTN"
	case TypeFloat4:
		return "REAL"
	case TypeFloat8:
		return "FLOAT"
	case TypeFloatN:
		return "FLOATN"
	case TypeDateTime:
		return "DATETIME"
	case TypeDateTime4:
		return "SMALLDATETIME"
	case TypeDateTimeN:
		return "DATETIMEN"
	case TypeMoney:
		return "MONEY"
	case TypeMoney4:
		return "SMALLMONEY"
	case TypeMoneyN:
		return "MONEYN"
	case TypeGUID:
		return "UNIQUEIDENTIFIER"
	case TypeDateN:
		return "DATE"
	case TypeTimeN:
		return "TIME"
	case TypeDateTime2N:
		return "DATETIME2"
	case TypeDateTimeOffsetN:
		return "DATETIMEOFFSET"
	case TypeDecimalN, TypeNumericN, TypeDecimal, TypeNumeric:
		return "DECIMAL"
	case TypeChar, TypeBigChar:
		return "CHAR"
	case TypeVarChar, TypeBigVarChar:
		return "VARCHAR"
	case TypeBinary, TypeBigBinary:
		return "BINARY"
	case TypeVarBinary, TypeBigVarBin:
		return "VARBINARY"
	case TypeNVarChar:
		return "NVARCHAR"
	case TypeNChar:
		return "NCHAR"
	case TypeText:
		return "TEXT"
	case TypeNText:
		return "NTEXT"
	case TypeImage:
		return "IMAGE"
	case TypeXML:
		return "XML"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// sizeClass distinguishes how a TYPE_INFO's length is encoded, per the size
// table in the wire spec: some types carry no size byte at all, some a
// single size byte that also selects the field width, some a 1/2/4-byte
// length prefix ahead of each value, and decimal/numeric carry a
// precision/scale pair after the length byte.
type sizeClass int

const (
	sizeFixed     sizeClass = iota // width implied by the type itself
	sizeVarU8                      // TYPE_INFO carries one size byte (IntN/FloatN/...)
	sizeVarLenU8                   // each value carries a 1-byte length prefix
	sizeVarLenU16                  // each value carries a 2-byte length prefix
	sizeVarLenU32                  // each value carries a 4-byte length prefix (TEXT/IMAGE/NTEXT)
	sizePrecision                  // decimal/numeric: TYPE_INFO byte + precision + scale
)

// classify reports how values of t size themselves on the wire. An unknown
// type is reported via ok=false so callers surface ErrUnknownColumnSizeType
// instead of guessing.
func classify(t SQLType) (sizeClass, bool) {
	switch t {
	case TypeInt1, TypeInt2, TypeInt4, TypeInt8, TypeBit,
		TypeFloat4, TypeFloat8, TypeMoney, TypeMoney4,
		TypeDateTime, TypeDateTime4, TypeNull:
		return sizeFixed, true
	case TypeIntN, TypeBitN, TypeFloatN, TypeMoneyN, TypeDateTimeN, TypeGUID, TypeDateN:
		return sizeVarU8, true
	case TypeTimeN, TypeDateTime2N, TypeDateTimeOffsetN:
		return sizeVarU8, true
	case TypeDecimalN, TypeNumericN, TypeDecimal, TypeNumeric:
		return sizePrecision, true
	case TypeChar, TypeVarChar, TypeBinary, TypeVarBinary:
		return sizeVarLenU8, true
	case TypeBigVarChar, TypeBigChar, TypeBigVarBin, TypeBigBinary, TypeNVarChar, TypeNChar:
		return sizeVarLenU16, true
	case TypeText, TypeNText, TypeImage, TypeXML, TypeSSVariant:
		return sizeVarLenU32, true
	default:
		return 0, false
	}
}

// fixedWidth returns the on-wire byte width of a sizeFixed type.
func fixedWidth(t SQLType) int {
	switch t {
	case TypeInt1, TypeBit:
		return 1
	case TypeInt2:
		return 2
	case TypeInt4, TypeFloat4, TypeMoney4, TypeDateTime4:
		return 4
	case TypeInt8, TypeFloat8, TypeMoney, TypeDateTime:
		return 8
	case TypeNull:
		return 0
	default:
		return 0
	}
}

// Field is a decoded column or RPC-return value: a NULL-or-present
// discriminant plus the raw wire bytes for the concrete type's decode
// method to interpret.
type Field struct {
	Type  SQLType
	IsNil bool
	Raw   []byte
}

// Int returns the field's integer value for the INTn/BIT family.
func (f Field) Int() (int64, error) {
	if f.IsNil {
		return 0, nil
	}
	switch len(f.Raw) {
	case 1:
		return int64(f.Raw[0]), nil
	case 2:
		return int64(int16(leUint16(f.Raw))), nil
	case 4:
		return int64(int32(leUint32(f.Raw))), nil
	case 8:
		return int64(leUint64(f.Raw)), nil
	default:
		return 0, newProtoError(ErrInvalidFieldLength, "int width %d", len(f.Raw))
	}
}

// Bool returns a BIT field's value.
func (f Field) Bool() (bool, error) {
	if f.IsNil {
		return false, nil
	}
	if len(f.Raw) != 1 {
		return false, newProtoError(ErrInvalidFieldLength, "bit width %d", len(f.Raw))
	}
	return f.Raw[0] != 0, nil
}

// Float returns a REAL/FLOAT field's value.
func (f Field) Float() (float64, error) {
	if f.IsNil {
		return 0, nil
	}
	switch len(f.Raw) {
	case 4:
		return float64(math.Float32frombits(leUint32(f.Raw))), nil
	case 8:
		return math.Float64frombits(leUint64(f.Raw)), nil
	default:
		return 0, newProtoError(ErrInvalidFieldLength, "float width %d", len(f.Raw))
	}
}

// Money returns a MONEY/SMALLMONEY field's value as a decimal, per the
// fixed-point ×10^4 encoding: smallmoney is a signed 4-byte integer,
// money is a signed 8-byte integer split into high/low 32-bit halves.
func (f Field) Money() (decimal.Decimal, error) {
	if f.IsNil {
		return decimal.Zero, nil
	}
	var scaled int64
	switch len(f.Raw) {
	case 4:
		scaled = int64(int32(leUint32(f.Raw)))
	case 8:
		hi := int32(leUint32(f.Raw[4:8]))
		lo := leUint32(f.Raw[0:4])
		scaled = int64(hi)<<32 | int64(lo)
	default:
		return decimal.Zero, newProtoError(ErrInvalidFieldLength, "money width %d", len(f.Raw))
	}
	return decimal.New(scaled, -4), nil
}

// sqlEpoch is the datetime/smalldatetime base date per TDS.
var sqlEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// DateTime returns a DATETIME field's value: a 4-byte day count since
// sqlEpoch and a 4-byte tick count in 1/300th-second units.
func (f Field) DateTime() (time.Time, error) {
	if f.IsNil {
		return time.Time{}, nil
	}
	if len(f.Raw) != 8 {
		return time.Time{}, newProtoError(ErrInvalidFieldLength, "datetime width %d", len(f.Raw))
	}
	days := int32(leUint32(f.Raw[0:4]))
	ticks := int32(leUint32(f.Raw[4:8]))
	ms := (int64(ticks) * 10) / 3
	return sqlEpoch.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond), nil
}

// SmallDateTime returns a SMALLDATETIME field's value: a 2-byte day count
// and a 2-byte minute-of-day count, both since sqlEpoch.
func (f Field) SmallDateTime() (time.Time, error) {
	if f.IsNil {
		return time.Time{}, nil
	}
	if len(f.Raw) != 4 {
		return time.Time{}, newProtoError(ErrInvalidFieldLength, "smalldatetime width %d", len(f.Raw))
	}
	days := leUint16(f.Raw[0:2])
	minutes := leUint16(f.Raw[2:4])
	return sqlEpoch.AddDate(0, 0, int(days)).Add(time.Duration(minutes) * time.Minute), nil
}

// maxSupportedDecimalPrecision is the widest precision the 4-group (16-byte
// magnitude) layout carries. Decimal() does not consult it: it rejects any
// magnitude whose value does not fit in the low 8 bytes.
const maxSupportedDecimalPrecision = 38

// Decimal returns a DECIMAL/NUMERIC field's value: a 1-byte sign (1 =
// positive, 0 = negative) followed by a 4/8/12/16-byte little-endian
// unsigned magnitude, scaled by the column's declared scale.
func (f Field) Decimal(scale uint8) (decimal.Decimal, error) {
	if f.IsNil {
		return decimal.Zero, nil
	}
	if len(f.Raw) < 1 {
		return decimal.Zero, newProtoError(ErrInvalidFieldLength, "decimal has no sign byte")
	}
	sign := f.Raw[0]
	mag := f.Raw[1:]
	switch len(mag) {
	case 4, 8, 12, 16:
	default:
		return decimal.Zero, newProtoError(ErrInvalidFieldLength, "decimal magnitude width %d", len(mag))
	}

	var coeff uint64
	var big [16]byte
	copy(big[:], mag)
	// Only the low 8 bytes are representable in a uint64; wider magnitudes
	// (precision > 19) are rejected rather than silently truncated.
	if len(mag) > 8 {
		for i := 8; i < len(mag); i++ {
			if mag[i] != 0 {
				return decimal.Zero, newProtoError(ErrInvalidFieldLength, "decimal precision beyond 19 digits is not supported")
			}
		}
	}
	coeff = leUint64(big[0:8])

	v := decimal.New(int64(coeff), -int32(scale))
	if sign == 0 {
		v = v.Neg()
	}
	return v, nil
}

// invalidGUID is the sentinel GUID() returns for malformed input instead of
// an error, matching the original driver's behavior.
const invalidGUID = "<INVALID>"

// GUID returns a UNIQUEIDENTIFIER field's canonical string form. The wire
// format stores the first three groups little-endian and the last two
// groups big-endian (mixed-endian, matching Windows GUID byte order). A
// field whose raw bytes aren't exactly 16 bytes long yields invalidGUID
// rather than an error.
func (f Field) GUID() (string, error) {
	if f.IsNil {
		return "", nil
	}
	if len(f.Raw) != 16 {
		return invalidGUID, nil
	}
	b := f.Raw
	return fmt.Sprintf("%02X%02X%02X%02X-%02X%02X-%02X%02X-%02X%02X-%02X%02X%02X%02X%02X%02X",
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	), nil
}

// String returns a CHAR/VARCHAR field's value unchanged (the wire bytes are
// already the column's collation-encoded text; this driver does not
// transcode non-Unicode collations) or an NCHAR/NVARCHAR field decoded from
// UCS-2LE.
func (f Field) String(isUnicode bool) (string, error) {
	if f.IsNil {
		return "", nil
	}
	if isUnicode {
		return decodeUCS2(f.Raw)
	}
	return string(f.Raw), nil
}

// Bytes returns a BINARY/VARBINARY field's raw value.
func (f Field) Bytes() []byte {
	if f.IsNil {
		return nil
	}
	return f.Raw
}

func leUint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
