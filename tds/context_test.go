package tds

import (
	"errors"
	"testing"

	"github.com/tdsl-go/tdsl/transport"
)

func TestNewContextWiresBufferAndFramer(t *testing.T) {
	m := transport.NewMock()
	c := NewContext(m, 4096, DefaultPacketSize)
	if c.Buffer == nil || c.Framer == nil {
		t.Fatal("NewContext left Buffer or Framer nil")
	}
	if c.Framer.PacketSize() != DefaultPacketSize {
		t.Fatalf("PacketSize() = %d, want %d", c.Framer.PacketSize(), DefaultPacketSize)
	}
}

func TestContextDialAndClose(t *testing.T) {
	m := transport.NewMock()
	c := NewContext(m, 4096, DefaultPacketSize)

	if err := c.Dial("db.example.com", 1433); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if m.Host != "db.example.com" || m.Port != 1433 {
		t.Fatalf("mock transport connected to %s:%d", m.Host, m.Port)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !m.Closed {
		t.Fatal("expected the transport to be disconnected")
	}
}

func TestContextDialSurfacesTransportError(t *testing.T) {
	m := transport.NewMock()
	m.ConnErr = errors.New("refused")
	c := NewContext(m, 4096, DefaultPacketSize)

	if err := c.Dial("db.example.com", 1433); err == nil {
		t.Fatal("expected Dial to surface the transport's connection error")
	}
}

func TestContextSetLoggerReachesFramer(t *testing.T) {
	m := transport.NewMock()
	c := NewContext(m, 4096, DefaultPacketSize)

	var logged []string
	c.SetLogger(func(format string, args ...interface{}) {
		logged = append(logged, format)
	})
	c.log("hello %d", 1)
	if len(logged) != 1 {
		t.Fatalf("expected the context's own log() to reach the installed sink, got %d calls", len(logged))
	}
	c.Framer.log("framer %d", 2)
	if len(logged) != 2 {
		t.Fatalf("expected the framer's log() to reach the installed sink, got %d calls", len(logged))
	}
}
