// Package tds implements the client-side core of the Tabular Data Stream
// protocol (TDS 7.1/7.2): packet framing, the token-stream parser, and the
// login/command state machines used by Microsoft SQL Server and Sybase
// clients.
//
// This package does not itself dial a socket — it consumes a
// transport.Transport — and it does not implement a general-purpose SQL
// layer: no result caching, no prepared-statement cache, no connection
// pooling. See the driver package for the caller-facing facade.
package tds

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PacketType identifies the type of TDS packet carried by a header.
type PacketType uint8

const (
	PacketSQLBatch     PacketType = 1
	PacketRPC          PacketType = 3
	PacketTabularResult PacketType = 4
	PacketAttention    PacketType = 6
	PacketBulkLoad     PacketType = 7
	PacketLogin        PacketType = 16
)

func (p PacketType) String() string {
	switch p {
	case PacketSQLBatch:
		return "SQL_BATCH"
	case PacketRPC:
		return "RPC"
	case PacketTabularResult:
		return "TABULAR_RESULT"
	case PacketAttention:
		return "ATTENTION"
	case PacketBulkLoad:
		return "BULK_LOAD"
	case PacketLogin:
		return "LOGIN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(p))
	}
}

// PacketStatus is the TDS header status byte; bit 0 marks end-of-message.
type PacketStatus uint8

const (
	StatusNormal PacketStatus = 0x00
	StatusEOM    PacketStatus = 0x01
)

// IsEOM reports whether the end-of-message bit is set.
func (s PacketStatus) IsEOM() bool {
	return s&StatusEOM != 0
}

// HeaderSize is the size in bytes of a TDS packet header.
const HeaderSize = 8

// DefaultPacketSize is the packet size negotiated before any ENVCHANGE-4.
const DefaultPacketSize = 4096

// MinPacketSize and MaxPacketSize bound the negotiable packet size.
const (
	MinPacketSize = 512
	MaxPacketSize = 32767
)

// Header is the fixed 8-byte TDS packet header. Length, Channel are
// transmitted big-endian; the rest are single bytes.
type Header struct {
	Type     PacketType
	Status   PacketStatus
	Length   uint16 // total packet length, including this header
	Channel  uint16
	PacketID uint8
	Window   uint8
}

// PayloadLength returns the number of bytes following the header.
func (h Header) PayloadLength() int {
	if int(h.Length) <= HeaderSize {
		return 0
	}
	return int(h.Length) - HeaderSize
}

// Encode writes the header into an 8-byte array in wire order.
func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = byte(h.Type)
	b[1] = byte(h.Status)
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	binary.BigEndian.PutUint16(b[4:6], h.Channel)
	b[6] = h.PacketID
	b[7] = h.Window
	return b
}

// DecodeHeader parses an 8-byte header previously read off the wire.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("tds: short header: %d bytes", len(b))
	}
	return Header{
		Type:     PacketType(b[0]),
		Status:   PacketStatus(b[1]),
		Length:   binary.BigEndian.Uint16(b[2:4]),
		Channel:  binary.BigEndian.Uint16(b[4:6]),
		PacketID: b[6],
		Window:   b[7],
	}, nil
}

// ReadHeader reads and decodes a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf[:])
}
