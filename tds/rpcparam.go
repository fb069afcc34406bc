package tds

import (
	"fmt"
	"math"
)

// Parameter is one bound RPC/sp_executesql parameter: a name (referenced
// from the SQL text as @name), a wire type and width, and its value.
type Parameter struct {
	Name   string
	Type   SQLType
	Length uint32 // only meaningful for the variable-length wire types
	Value  interface{}
	Output bool
}

// fixedToVariable maps the fixed-width wire type a Go value would naturally
// decode to onto the nullable ("N") wire type RPC parameters must actually
// use — LOGIN7/ROW can send INT4 or BIT directly, but an RPC parameter's
// TYPE_INFO always uses the "N" family so the server can tell a present
// zero from an absent (NULL) parameter.
var fixedToVariable = map[SQLType]SQLType{
	TypeInt1:      TypeIntN,
	TypeInt2:      TypeIntN,
	TypeInt4:      TypeIntN,
	TypeInt8:      TypeIntN,
	TypeBit:       TypeBitN,
	TypeFloat4:    TypeFloatN,
	TypeFloat8:    TypeFloatN,
	TypeMoney:     TypeMoneyN,
	TypeMoney4:    TypeMoneyN,
	TypeDateTime:  TypeDateTimeN,
	TypeDateTime4: TypeDateTimeN,
}

// widthOf returns the fixed byte width backing an IntN/FloatN/MoneyN/
// DateTimeN parameter, derived from the original fixed type it was
// converted from.
func widthOf(original SQLType) uint8 {
	switch original {
	case TypeInt1, TypeBit:
		return 1
	case TypeInt2:
		return 2
	case TypeInt4, TypeFloat4, TypeMoney4, TypeDateTime4:
		return 4
	case TypeInt8, TypeFloat8, TypeMoney, TypeDateTime:
		return 8
	default:
		return 0
	}
}

// NewIntParam builds an integer parameter of the narrowest width given.
func NewIntParam(name string, v int64, width uint8) Parameter {
	orig := TypeInt4
	switch width {
	case 1:
		orig = TypeInt1
	case 2:
		orig = TypeInt2
	case 8:
		orig = TypeInt8
	}
	return Parameter{Name: name, Type: fixedToVariable[orig], Length: uint32(widthOf(orig)), Value: v}
}

// NewNVarCharParam builds an NVARCHAR(n) parameter.
func NewNVarCharParam(name, v string, maxChars uint32) Parameter {
	return Parameter{Name: name, Type: TypeNVarChar, Length: maxChars * 2, Value: v}
}

// declareType renders the SQL declaration type string for a parameter, as
// used in sp_executesql's @params argument (e.g. "int", "nvarchar(50)");
// buildParamDefs prefixes the parameter name.
func declareType(p Parameter) (string, error) {
	switch p.Type {
	case TypeIntN:
		switch widthFromLength(p) {
		case 1:
			return "tinyint", nil
		case 2:
			return "smallint", nil
		case 4:
			return "int", nil
		case 8:
			return "bigint", nil
		}
		return "int", nil
	case TypeBitN:
		return "bit", nil
	case TypeFloatN:
		if p.Length == 4 {
			return "real", nil
		}
		return "float", nil
	case TypeMoneyN:
		if p.Length == 4 {
			return "smallmoney", nil
		}
		return "money", nil
	case TypeDateTimeN:
		if p.Length == 4 {
			return "smalldatetime", nil
		}
		return "datetime", nil
	case TypeNVarChar:
		n := p.Length / 2
		if n == 0 {
			return "nvarchar(max)", nil
		}
		return fmt.Sprintf("nvarchar(%d)", n), nil
	case TypeNChar:
		return fmt.Sprintf("nchar(%d)", p.Length/2), nil
	case TypeBigVarChar:
		if p.Length == 0 {
			return "varchar(max)", nil
		}
		return fmt.Sprintf("varchar(%d)", p.Length), nil
	case TypeBigChar:
		return fmt.Sprintf("char(%d)", p.Length), nil
	case TypeBigVarBin:
		if p.Length == 0 {
			return "varbinary(max)", nil
		}
		return fmt.Sprintf("varbinary(%d)", p.Length), nil
	case TypeGUID:
		return "uniqueidentifier", nil
	default:
		return "", fmt.Errorf("tds: no SQL declaration known for wire type %s", p.Type)
	}
}

func widthFromLength(p Parameter) uint32 { return p.Length }

// buildParamDefs renders the full "@p1 int,@p2 nvarchar(50) output,..."
// string sp_executesql expects as its second argument.
func buildParamDefs(params []Parameter) (string, error) {
	s := ""
	for i, p := range params {
		decl, err := declareType(p)
		if err != nil {
			return "", err
		}
		if i > 0 {
			s += ","
		}
		s += "@" + p.Name + " " + decl
		if p.Output {
			s += " output"
		}
	}
	return s, nil
}

// encodeParamValue renders a parameter's TYPE_INFO + value bytes exactly as
// they belong in an RPC parameter record.
func encodeParamValue(w *paramWriter, p Parameter) error {
	w.writeBVarChar("@" + p.Name)
	status := uint8(0)
	if p.Output {
		status = 0x01
	}
	w.writeUint8(status)

	w.writeUint8(byte(p.Type))
	switch p.Type {
	case TypeIntN, TypeBitN, TypeFloatN, TypeMoneyN, TypeDateTimeN:
		w.writeUint8(byte(p.Length))
	case TypeNVarChar, TypeNChar, TypeBigVarChar, TypeBigChar, TypeBigVarBin, TypeBigBinary:
		ln := p.Length
		if ln == 0 {
			ln = 4000
		}
		w.writeUint16(uint16(ln))
		if p.Type == TypeNVarChar || p.Type == TypeNChar || p.Type == TypeBigVarChar || p.Type == TypeBigChar {
			w.writeBytes(DefaultCollation[:])
		}
	case TypeGUID:
		w.writeUint8(16)
	}

	return writeParamValueBody(w, p)
}

func writeParamValueBody(w *paramWriter, p Parameter) error {
	if p.Value == nil {
		return writeNullParamValue(w, p)
	}

	switch p.Type {
	case TypeIntN:
		v, ok := toI64(p.Value)
		if !ok {
			return fmt.Errorf("tds: parameter %q: cannot convert %T to integer", p.Name, p.Value)
		}
		w.writeUint8(byte(p.Length))
		switch p.Length {
		case 1:
			w.writeUint8(byte(v))
		case 2:
			w.writeUint16(uint16(int16(v)))
		case 4:
			w.writeUint32(uint32(int32(v)))
		case 8:
			w.writeUint64(uint64(v))
		}

	case TypeBitN:
		v, ok := p.Value.(bool)
		if !ok {
			return fmt.Errorf("tds: parameter %q: cannot convert %T to bit", p.Name, p.Value)
		}
		w.writeUint8(1)
		if v {
			w.writeUint8(1)
		} else {
			w.writeUint8(0)
		}

	case TypeFloatN:
		v, ok := toF64(p.Value)
		if !ok {
			return fmt.Errorf("tds: parameter %q: cannot convert %T to float", p.Name, p.Value)
		}
		w.writeUint8(byte(p.Length))
		if p.Length == 4 {
			w.writeUint32(math.Float32bits(float32(v)))
		} else {
			w.writeUint64(math.Float64bits(v))
		}

	case TypeNVarChar, TypeNChar:
		s, ok := p.Value.(string)
		if !ok {
			return fmt.Errorf("tds: parameter %q: cannot convert %T to string", p.Name, p.Value)
		}
		b, err := encodeUCS2(s)
		if err != nil {
			return err
		}
		w.writeUint16(uint16(len(b)))
		w.writeBytes(b)

	case TypeBigVarChar, TypeBigChar:
		s, ok := p.Value.(string)
		if !ok {
			return fmt.Errorf("tds: parameter %q: cannot convert %T to string", p.Name, p.Value)
		}
		w.writeUint16(uint16(len(s)))
		w.writeBytes([]byte(s))

	case TypeBigVarBin, TypeBigBinary:
		b, ok := p.Value.([]byte)
		if !ok {
			return fmt.Errorf("tds: parameter %q: cannot convert %T to bytes", p.Name, p.Value)
		}
		w.writeUint16(uint16(len(b)))
		w.writeBytes(b)

	default:
		return fmt.Errorf("tds: parameter %q: unsupported wire type %s", p.Name, p.Type)
	}
	return nil
}

func writeNullParamValue(w *paramWriter, p Parameter) error {
	switch p.Type {
	case TypeIntN, TypeBitN, TypeFloatN, TypeMoneyN, TypeDateTimeN, TypeGUID, TypeDecimalN, TypeNumericN:
		w.writeUint8(0)
	case TypeNVarChar, TypeNChar, TypeBigVarChar, TypeBigChar, TypeBigVarBin, TypeBigBinary:
		w.writeUint16(0xFFFF)
	default:
		w.writeUint8(0)
	}
	return nil
}

func toI64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

func toF64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
