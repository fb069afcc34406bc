package transport

import (
	"bytes"
	"errors"
	"io"
)

// Mock is an in-memory Transport for unit tests of the framer and state
// machines: writes accumulate in Sent, reads are served from a preloaded
// Inbound buffer.
type Mock struct {
	Sent     bytes.Buffer
	Inbound  bytes.Buffer
	Closed   bool
	ConnErr  error // returned by Connect, if set
	SendErr  error // returned by every Send, if set
	RecvErr  error // returned once Inbound is exhausted, if set (default io.ErrUnexpectedEOF)
	Host     string
	Port     int
}

// NewMock returns an empty Mock transport.
func NewMock() *Mock {
	return &Mock{}
}

// Feed appends bytes to the inbound queue for subsequent RecvInto calls.
func (m *Mock) Feed(p []byte) {
	m.Inbound.Write(p)
}

func (m *Mock) Connect(host string, port int) error {
	if m.ConnErr != nil {
		return m.ConnErr
	}
	m.Host, m.Port = host, port
	return nil
}

func (m *Mock) Disconnect() error {
	m.Closed = true
	return nil
}

func (m *Mock) Send(header, payload []byte) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent.Write(header)
	m.Sent.Write(payload)
	return nil
}

func (m *Mock) RecvInto(dst []byte) error {
	n, err := io.ReadFull(&m.Inbound, dst)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if m.RecvErr != nil {
				return m.RecvErr
			}
			return io.ErrUnexpectedEOF
		}
		return err
	}
	_ = n
	return nil
}
