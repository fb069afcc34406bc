package tds

import (
	"encoding/binary"
	"fmt"
)

// Login7HeaderSize is the fixed portion of a LOGIN7 packet, ending right
// before the variable-length data block the offset/length table points
// into: a 36-byte scalar prefix plus the 12-entry offset/length table (11
// normal 4-byte entries plus the 6-byte client-ID field in place of one of
// them).
const Login7HeaderSize = 86

// LOGIN7 option-flag bits this driver sets explicitly; the rest are left at
// zero (server defaults).
const (
	flag1ByteOrderLittleEndian uint8 = 0x00
	flag1CharsetASCII          uint8 = 0x00
	flag1FloatIEEE             uint8 = 0x00
	flag1UseDB                 uint8 = 0x20
	flag1InitDBFatal           uint8 = 0x40

	flag2ODBCDriver uint8 = 0x02

	typeFlagsSQLDefault uint8 = 0x00
)

const clientTDSVersion uint32 = 0x71000001 // SQL Server 2000 SP1, sent big-endian

// LoginParams supplies the fields the caller controls when connecting.
type LoginParams struct {
	Host       string
	Port       int
	UserName   string
	Password   string
	AppName    string
	ServerName string
	Database   string
	ClientPID  uint32
}

// manglePassword applies the LOGIN7 password obfuscation: each UCS-2LE byte
// has its nibbles swapped, then is XORed with 0xA5. The transform is its
// own inverse in the other direction (swap-then-XOR vs. XOR-then-swap), so
// a server undoes it by reversing the two steps.
func manglePassword(ucs2 []byte) []byte {
	out := make([]byte, len(ucs2))
	for i, b := range ucs2 {
		swapped := (b << 4) | (b >> 4)
		out[i] = swapped ^ 0xA5
	}
	return out
}

// buildLogin7 assembles a complete LOGIN7 packet body: the fixed header
// with its 12-entry offset/length table, followed by each field's UCS-2LE
// bytes back to back in table order. Only client_name, user_name,
// password, app_name, server_name, library_name and database_name carry
// real data; unused and sspi are always zero, and locale and atchdbfile
// report the current data offset with a zero length.
func buildLogin7(p LoginParams) ([]byte, error) {
	type strField struct {
		value   string
		mangled bool
	}
	// In table order, skipping the entries with no data of their own
	// (unused, locale, client_id, sspi, atchdbfile).
	dataFields := []strField{
		{p.Host, false},       // client_name
		{p.UserName, false},   // user_name
		{p.Password, true},    // password
		{p.AppName, false},    // app_name
		{p.ServerName, false}, // server_name
		{"tdsl-go", false},    // library_name
		{p.Database, false},   // database_name
	}

	encoded := make([][]byte, len(dataFields))
	charLens := make([]uint16, len(dataFields))
	for i, f := range dataFields {
		b, err := encodeUCS2(f.value)
		if err != nil {
			return nil, fmt.Errorf("tds: encode login field %d: %w", i, err)
		}
		if f.mangled {
			b = manglePassword(b)
		}
		encoded[i] = b
		charLens[i] = uint16(len(b) / 2)
	}

	dataLen := 0
	for _, b := range encoded {
		dataLen += len(b)
	}
	totalLen := Login7HeaderSize + dataLen

	buf := make([]byte, totalLen)
	w := 0
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[w:], v); w += 4 }
	putU32BE := func(v uint32) { binary.BigEndian.PutUint32(buf[w:], v); w += 4 }
	putI32 := func(v int32) { binary.LittleEndian.PutUint32(buf[w:], uint32(v)); w += 4 }
	putU8 := func(v uint8) { buf[w] = v; w++ }
	putU16 := func(v uint16) { binary.LittleEndian.PutUint16(buf[w:], v); w += 2 }

	putU32(uint32(totalLen))
	putU32BE(clientTDSVersion)
	putU32(uint32(DefaultPacketSize))
	putU32(0x00000001) // ClientProgVer
	putU32(p.ClientPID)
	putU32(0) // ConnectionID

	putU8(flag1UseDB | flag1InitDBFatal | flag1ByteOrderLittleEndian | flag1CharsetASCII | flag1FloatIEEE)
	putU8(flag2ODBCDriver)
	putU8(typeFlagsSQLDefault)
	putU8(0) // OptionFlags3
	putI32(0) // ClientTimeZone
	putU32(0) // ClientLCID

	idx := 0
	dataOffset := uint16(Login7HeaderSize)
	nextField := func() (uint16, uint16) {
		off, ln := dataOffset, charLens[idx]
		dataOffset += uint16(len(encoded[idx]))
		idx++
		return off, ln
	}

	off, ln := nextField() // client_name
	putU16(off)
	putU16(ln)
	off, ln = nextField() // user_name
	putU16(off)
	putU16(ln)
	off, ln = nextField() // password
	putU16(off)
	putU16(ln)
	off, ln = nextField() // app_name
	putU16(off)
	putU16(ln)
	off, ln = nextField() // server_name
	putU16(off)
	putU16(ln)
	putU16(0) // unused
	putU16(0)
	off, ln = nextField() // library_name
	putU16(off)
	putU16(ln)
	putU16(dataOffset) // locale: current offset, zero length
	putU16(0)
	off, ln = nextField() // database_name
	putU16(off)
	putU16(ln)

	buf[w] = 0 // client_id[0..5]
	w += 6

	putU16(0) // sspi
	putU16(0)
	putU16(dataOffset) // atchdbfile: current offset, zero length
	putU16(0)

	if w != Login7HeaderSize {
		return nil, fmt.Errorf("tds: internal error: login7 header built to %d bytes, want %d", w, Login7HeaderSize)
	}

	for _, b := range encoded {
		w += copy(buf[w:], b)
	}

	return buf, nil
}

// ConnectResult is the outcome of a Connect call.
type ConnectResult int

const (
	ConnectSuccess ConnectResult = iota
	ConnectFailedTransport
	ConnectFailedLogin
)

// Connect dials, sends LOGIN7, and drives the response stream until a
// LOGINACK or a fatal DONE arrives.
func Connect(c *Context, p LoginParams) (ConnectResult, error) {
	if err := c.Dial(p.Host, p.Port); err != nil {
		return ConnectFailedTransport, err
	}

	body, err := buildLogin7(p)
	if err != nil {
		c.Close()
		return ConnectFailedTransport, err
	}

	w := c.Buffer.Writer()
	if !w.WriteBytes(body) {
		w.Close()
		c.Close()
		return ConnectFailedTransport, fmt.Errorf("tds: login7 packet (%d bytes) exceeds buffer capacity", len(body))
	}
	w.Close()

	if err := c.Framer.SendPDU(c.Buffer, PacketLogin); err != nil {
		c.Close()
		return ConnectFailedTransport, err
	}

	var loginFailed bool
	var lastError InfoMsg
	done := false

	parser := &Parser{
		OnInfo: func(im InfoMsg) {
			if im.IsError {
				lastError = im
			}
			if c.InfoCallback != nil {
				c.InfoCallback(im)
			}
		},
		OnLoginAck: func(LoginAck) {
			c.Authenticated = true
		},
		OnEnvChange: c.applyEnvChange,
		OnDone: func(_ TokenType, d DoneStatus) {
			if d.SrvError() || d.HasError() {
				loginFailed = true
			}
			if !d.More() {
				done = true
			}
		},
	}

	for !done {
		_, err := c.Framer.ReceivePDU(c.Buffer, parser.Feed)
		if err != nil {
			c.Close()
			return ConnectFailedTransport, err
		}
	}

	if loginFailed || !c.Authenticated {
		c.Close()
		msg := "login failed"
		if lastError.Message != "" {
			msg = lastError.Message
		}
		return ConnectFailedLogin, fmt.Errorf("tds: %s", msg)
	}

	return ConnectSuccess, nil
}
