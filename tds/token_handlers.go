package tds

import "github.com/tdsl-go/tdsl/tdsbuf"

const (
	leOrder = tdsbuf.LittleEndian
	beOrder = tdsbuf.BigEndian
)

// handleEnvChange decodes an ENVCHANGE token body: a 1-byte sub-type
// followed by a B_VARCHAR new value and a B_VARCHAR old value (both
// character-counted, UCS-2LE encoded), except the collation sub-type whose
// "strings" are raw 5-byte collation blobs rather than text.
func (p *Parser) handleEnvChange(sub subBody) error {
	subType, ok := sub.ReadUint8()
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "ENVCHANGE: missing sub-type")
	}

	readVal := func() ([]byte, error) {
		n, ok := sub.ReadUint8()
		if !ok {
			return nil, newProtoError(ErrInvalidFieldLength, "ENVCHANGE: truncated value length")
		}
		if n == 0 {
			return nil, nil
		}
		width := int(n) * 2
		if subType == EnvSQLCollation {
			width = int(n)
		}
		b, ok := sub.Read(width)
		if !ok {
			return nil, newProtoError(ErrInvalidFieldLength, "ENVCHANGE: truncated value body")
		}
		return b, nil
	}

	newVal, err := readVal()
	if err != nil {
		return err
	}
	oldVal, err := readVal()
	if err != nil {
		return err
	}

	ec := EnvChange{Type: subType, NewValue: newVal, OldValue: oldVal}
	if p.OnEnvChange != nil {
		p.OnEnvChange(ec)
	}
	return nil
}

// handleInfoError decodes the shared INFO/ERROR token body: a LONG error
// number, a BYTE state, a BYTE class, a US_VARCHAR message, a B_VARCHAR
// server name, a B_VARCHAR proc name and a LONG line number.
func (p *Parser) handleInfoError(tt TokenType, sub subBody) error {
	number, ok := sub.ReadInt32(leOrder)
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "%s: truncated number", tt)
	}
	state, ok := sub.ReadUint8()
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "%s: truncated state", tt)
	}
	class, ok := sub.ReadUint8()
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "%s: truncated class", tt)
	}

	msg, err := readUSVarChar(sub)
	if err != nil {
		return err
	}
	server, err := readBVarChar(sub)
	if err != nil {
		return err
	}
	proc, err := readBVarChar(sub)
	if err != nil {
		return err
	}
	line, ok := sub.ReadInt32(leOrder)
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "%s: truncated line number", tt)
	}

	im := InfoMsg{
		Number:     number,
		State:      state,
		Class:      class,
		Message:    msg,
		ServerName: server,
		ProcName:   proc,
		LineNumber: line,
		IsError:    tt == TokenError,
	}
	if p.OnInfo != nil {
		p.OnInfo(im)
	}
	return nil
}

// handleLoginAck decodes a LOGINACK token body: interface byte, big-endian
// TDS version, B_VARCHAR program name, big-endian program version.
func (p *Parser) handleLoginAck(sub subBody) error {
	iface, ok := sub.ReadUint8()
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "LOGINACK: truncated interface")
	}
	tdsVersion, ok := sub.ReadUint32(beOrder)
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "LOGINACK: truncated tds version")
	}
	progName, err := readBVarChar(sub)
	if err != nil {
		return err
	}
	progVersion, ok := sub.ReadUint32(beOrder)
	if !ok {
		return newProtoError(ErrInvalidFieldLength, "LOGINACK: truncated program version")
	}

	ack := LoginAck{
		Interface:   LoginAckInterface(iface),
		TDSVersion:  tdsVersion,
		ProgName:    progName,
		ProgVersion: progVersion,
	}
	if p.OnLoginAck != nil {
		p.OnLoginAck(ack)
	}
	return nil
}

// readBVarChar reads a B_VARCHAR: a 1-byte character count followed by that
// many UCS-2LE characters.
func readBVarChar(sub subBody) (string, error) {
	n, ok := sub.ReadUint8()
	if !ok {
		return "", newProtoError(ErrInvalidFieldLength, "truncated B_VARCHAR length")
	}
	if n == 0 {
		return "", nil
	}
	b, ok := sub.Read(int(n) * 2)
	if !ok {
		return "", newProtoError(ErrInvalidFieldLength, "truncated B_VARCHAR body")
	}
	return decodeUCS2(b)
}

// readUSVarChar reads a US_VARCHAR: a 2-byte character count followed by
// that many UCS-2LE characters, used for the longer INFO/ERROR message
// field.
func readUSVarChar(sub subBody) (string, error) {
	n, ok := sub.ReadUint16(leOrder)
	if !ok {
		return "", newProtoError(ErrInvalidFieldLength, "truncated US_VARCHAR length")
	}
	if n == 0 {
		return "", nil
	}
	b, ok := sub.Read(int(n) * 2)
	if !ok {
		return "", newProtoError(ErrInvalidFieldLength, "truncated US_VARCHAR body")
	}
	return decodeUCS2(b)
}
