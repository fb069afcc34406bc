// Package driver is the thin glue the original spec calls the driver
// facade: validate connection parameters, construct a tds.Context, and
// expose connect/execute_query/execute_rpc as a single caller-facing type.
package driver

import (
	"github.com/tdsl-go/tdsl/internal/errors"
	"github.com/tdsl-go/tdsl/internal/log"
	"github.com/tdsl-go/tdsl/tds"
	"github.com/tdsl-go/tdsl/transport"
)

// defaultBufferCapacity sizes the scratch buffer generously above
// DefaultPacketSize so a handful of back-to-back PDUs can be reassembled
// without the reader ever blocking on a ShiftLeft.
const defaultBufferCapacity = 64 * 1024

// Params are the connection parameters a caller supplies to Connect.
type Params struct {
	Host       string
	Port       int
	UserName   string
	Password   string
	AppName    string
	ServerName string
	Database   string
	ClientPID  uint32
	PacketSize int // 0 selects tds.DefaultPacketSize
}

// validate enforces the two parameter invariants the login state machine
// depends on: a non-empty server name and a packet size in the protocol's
// legal range.
func (p Params) validate() error {
	if p.Host == "" {
		return errors.InvalidParam("host", "server name must not be empty").Err()
	}
	if p.PacketSize != 0 && (p.PacketSize < tds.MinPacketSize || p.PacketSize > tds.MaxPacketSize) {
		return errors.InvalidParam("packet_size", "must be between 512 and 32767").Err()
	}
	return nil
}

// ConnectOutcome is the caller-facing result of Connect.
type ConnectOutcome int

const (
	ConnectSuccess ConnectOutcome = iota
	ConnectFailedParams
	ConnectFailedTransport
	ConnectFailedLogin
)

func (o ConnectOutcome) String() string {
	switch o {
	case ConnectSuccess:
		return "success"
	case ConnectFailedParams:
		return "connection_param_invalid"
	case ConnectFailedTransport:
		return "connection_failed"
	case ConnectFailedLogin:
		return "login_failed"
	default:
		return "unknown"
	}
}

// Driver is a single TDS connection: validated login, a context, and the
// command state machine layered over it. Not safe for concurrent use by
// multiple goroutines, matching the single-threaded, blocking scheduling
// model the protocol's command layer assumes.
type Driver struct {
	ctx *tds.Context
	cmd *tds.Command

	logger *log.Logger
}

// New wraps t with a scratch buffer and framer, ready for Connect. Pass a
// non-nil logger to receive Connection/Protocol/Command category events;
// pass nil to log nowhere.
func New(t transport.Transport, logger *log.Logger) *Driver {
	packetSize := tds.DefaultPacketSize
	ctx := tds.NewContext(t, defaultBufferCapacity, packetSize)
	if logger != nil {
		ctx.SetLogger(logger.Protocol().Printf)
	}
	return &Driver{ctx: ctx, logger: logger}
}

// Connect validates params, dials the transport, and runs LOGIN7/LOGINACK.
// On any failure it reports which stage failed via the returned
// ConnectOutcome so callers can distinguish a bad parameter from a dead
// server from a rejected credential.
func (d *Driver) Connect(params Params) (ConnectOutcome, error) {
	if err := params.validate(); err != nil {
		return ConnectFailedParams, err
	}

	packetSize := params.PacketSize
	if packetSize == 0 {
		packetSize = tds.DefaultPacketSize
	}
	d.ctx.Framer.SetPacketSize(packetSize)

	loginParams := tds.LoginParams{
		Host:       params.Host,
		Port:       params.Port,
		UserName:   params.UserName,
		Password:   params.Password,
		AppName:    params.AppName,
		ServerName: params.ServerName,
		Database:   params.Database,
		ClientPID:  params.ClientPID,
	}

	if d.logger != nil {
		d.logger.Connection().Info("connecting", "host", params.Host, "port", params.Port)
	}

	result, err := tds.Connect(d.ctx, loginParams)
	switch result {
	case tds.ConnectSuccess:
		d.cmd = tds.NewCommand(d.ctx)
		if d.logger != nil {
			d.logger.Connection().Info("login succeeded", "host", params.Host)
		}
		return ConnectSuccess, nil
	case tds.ConnectFailedLogin:
		if d.logger != nil {
			d.logger.Connection().Error("login rejected", err, "host", params.Host)
		}
		return ConnectFailedLogin, errors.LoginFailed(err.Error()).Err()
	default:
		if d.logger != nil {
			d.logger.Connection().Error("connect failed", err, "host", params.Host)
		}
		return ConnectFailedTransport, errors.Wrap(err, errors.ErrCodeConnectionFailed, "connect").Err()
	}
}

// Close tears down the underlying transport.
func (d *Driver) Close() error {
	return d.ctx.Close()
}

// SetInfoCallback registers a callback that receives every INFO/ERROR token
// the server sends, both during login and during command execution.
func (d *Driver) SetInfoCallback(cb func(tds.InfoMsg)) {
	d.ctx.InfoCallback = cb
}

// ExecuteQuery sends sql as a SQL_BATCH and streams decoded rows to onRow.
func (d *Driver) ExecuteQuery(sql string, onRow tds.RowFunc) (tds.ExecuteResult, error) {
	if d.logger != nil {
		d.logger.Command().Debug("execute_query", "sql", sql)
	}
	result, err := d.cmd.ExecuteQuery(sql, onRow)
	if err != nil && d.logger != nil {
		d.logger.Command().Error("execute_query failed", err)
	}
	return result, err
}

// ExecuteRPC runs sql through sp_executesql with the given bound parameters.
// mode must be tds.RPCModeExecSQL; any other value is rejected with
// tds.ErrRPCInvalidMode.
func (d *Driver) ExecuteRPC(sql string, params []tds.Parameter, mode tds.RPCMode, onRow tds.RowFunc) (tds.ExecuteResult, error) {
	if d.logger != nil {
		d.logger.Command().Debug("execute_rpc", "sql", sql, "params", len(params))
	}
	result, err := d.cmd.ExecuteRPC(sql, params, mode, onRow)
	if err != nil && d.logger != nil {
		d.logger.Command().Error("execute_rpc failed", err)
	}
	return result, err
}
