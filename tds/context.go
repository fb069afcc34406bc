package tds

import (
	"fmt"
	"strconv"

	"github.com/tdsl-go/tdsl/tdsbuf"
	"github.com/tdsl-go/tdsl/transport"
)

// Context is the shared state a connection's login and command state
// machines operate on: the scratch buffer, the framer built over it, and
// whether LOGIN7/LOGINACK has completed.
type Context struct {
	Buffer        *tdsbuf.Buffer
	Framer        *Framer
	Transport     transport.Transport
	Authenticated bool

	// InfoCallback receives every INFO and ERROR token the server sends,
	// including ones that arrive outside of a command (e.g. login-time
	// banners). Installed by the driver facade.
	InfoCallback func(InfoMsg)

	logf func(format string, args ...interface{})
}

// NewContext builds a Context over a fresh bufCap-byte buffer and a framer
// bound to the given transport at packetSize.
func NewContext(t transport.Transport, bufCap, packetSize int) *Context {
	buf := tdsbuf.New(bufCap)
	return &Context{
		Buffer:    buf,
		Framer:    NewFramer(t, packetSize),
		Transport: t,
	}
}

// SetLogger installs a diagnostic sink shared by the framer and the
// context's own log calls. Pass nil to disable.
func (c *Context) SetLogger(logf func(format string, args ...interface{})) {
	c.logf = logf
	c.Framer.SetLogger(logf)
}

func (c *Context) log(format string, args ...interface{}) {
	if c.logf != nil {
		c.logf(format, args...)
	}
}

// Dial connects the underlying transport.
func (c *Context) Dial(host string, port int) error {
	if err := c.Transport.Connect(host, port); err != nil {
		return fmt.Errorf("tds: connect %s:%d: %w", host, port, err)
	}
	return nil
}

// Close tears down the transport.
func (c *Context) Close() error {
	return c.Transport.Disconnect()
}

// applyEnvChange reacts to ENVCHANGE-4 (packet size): the server echoes the
// new packet size as a UCS-2LE decimal ASCII string, and both sides must
// switch to it for subsequent PDUs per TDS §2.2.6.4.
func (c *Context) applyEnvChange(ec EnvChange) {
	if ec.Type != EnvPacketSize {
		return
	}
	s, err := decodeUCS2(ec.NewValue)
	if err != nil {
		c.log("tds: ENVCHANGE-4: undecodable new value: %v", err)
		return
	}
	size, err := strconv.Atoi(s)
	if err != nil {
		c.log("tds: ENVCHANGE-4: non-numeric new value %q: %v", s, err)
		return
	}
	c.Framer.SetPacketSize(size)
}
