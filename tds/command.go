package tds

import (
	"encoding/binary"
	"fmt"

	"github.com/tdsl-go/tdsl/tdsbuf"
)

// RowFunc is invoked once per decoded row, with the result set's current
// column metadata.
type RowFunc func(cols []Column, row Row)

// RPCMode selects how ExecuteRPC builds its call. RPCModeExecSQL wraps the
// SQL text and parameters in an sp_executesql call, generating the @params
// declaration string from the parameter list. RPCModePrepExec is reserved
// for a future prepare/execute split and is rejected with ErrRPCInvalidMode
// today.
type RPCMode int

const (
	RPCModeExecSQL RPCMode = iota
	RPCModePrepExec
)

// ErrRPCInvalidMode is returned by ExecuteRPC for any mode other than
// RPCModeExecSQL.
var ErrRPCInvalidMode = fmt.Errorf("tds: RPC mode not implemented")

const procIDSpExecuteSQL uint16 = 10

// ExecuteResult summarizes a completed batch or RPC call.
type ExecuteResult struct {
	AffectedRows uint64
	ReturnStatus int32
	HasReturn    bool
}

// Command drives SQL batch and RPC execution over an authenticated Context.
type Command struct {
	ctx  *Context
	cols []Column
}

// NewCommand wraps ctx for query/RPC execution. ctx must already have
// completed Connect.
func NewCommand(ctx *Context) *Command {
	return &Command{ctx: ctx}
}

// allHeaders builds the mandatory ALL_HEADERS block every TDS 7.2+
// SQLBatch/RPC packet begins with: a transaction-descriptor header with a
// zero descriptor (no transaction in progress) and one outstanding request.
func allHeaders() []byte {
	b := make([]byte, 22)
	binary.LittleEndian.PutUint32(b[0:4], 22) // TotalLength
	binary.LittleEndian.PutUint32(b[4:8], 18) // HeaderLength
	binary.LittleEndian.PutUint16(b[8:10], 0x0002)
	// bytes [10:18] transaction descriptor, left zero
	binary.LittleEndian.PutUint32(b[18:22], 1) // OutstandingRequestCount
	return b
}

// ExecuteQuery sends sql as a SQL_BATCH and streams the results to onRow.
func (cmd *Command) ExecuteQuery(sql string, onRow RowFunc) (ExecuteResult, error) {
	textBytes, err := encodeUCS2(sql)
	if err != nil {
		return ExecuteResult{}, err
	}

	payload := append(allHeaders(), textBytes...)

	w := cmd.ctx.Buffer.Writer()
	if !w.WriteBytes(payload) {
		w.Close()
		return ExecuteResult{}, fmt.Errorf("tds: SQL batch (%d bytes) exceeds buffer capacity", len(payload))
	}
	w.Close()

	if err := cmd.ctx.Framer.SendPDU(cmd.ctx.Buffer, PacketSQLBatch); err != nil {
		return ExecuteResult{}, err
	}

	return cmd.consumeResults(onRow)
}

// ExecuteRPC runs sql through sp_executesql (RPCModeExecSQL), binding params
// by name and streaming results to onRow. Any other mode is rejected with
// ErrRPCInvalidMode.
func (cmd *Command) ExecuteRPC(sql string, params []Parameter, mode RPCMode, onRow RowFunc) (ExecuteResult, error) {
	if mode != RPCModeExecSQL {
		return ExecuteResult{}, ErrRPCInvalidMode
	}

	defs, err := buildParamDefs(params)
	if err != nil {
		return ExecuteResult{}, err
	}
	effectiveParams := append([]Parameter{
		{Name: "stmt", Type: TypeNVarChar, Value: sql},
		{Name: "params", Type: TypeNVarChar, Value: defs},
	}, params...)

	pw := newParamWriter()
	pw.writeBytes(allHeaders())

	pw.writeUint16(0xFFFF)
	pw.writeUint16(procIDSpExecuteSQL)
	pw.writeUint16(0) // OptionFlags (no recompile, no no-metadata)

	for _, p := range effectiveParams {
		if err := encodeParamValue(pw, p); err != nil {
			return ExecuteResult{}, err
		}
	}

	w := cmd.ctx.Buffer.Writer()
	if !w.WriteBytes(pw.bytes()) {
		w.Close()
		return ExecuteResult{}, fmt.Errorf("tds: RPC payload (%d bytes) exceeds buffer capacity", len(pw.bytes()))
	}
	w.Close()

	if err := cmd.ctx.Framer.SendPDU(cmd.ctx.Buffer, PacketRPC); err != nil {
		return ExecuteResult{}, err
	}

	return cmd.consumeResults(onRow)
}

// consumeResults drives ReceivePDU/Parser.Feed until a non-More DONE token,
// installing the subtoken handler that intercepts COLMETADATA/ROW/NBCROW —
// the three tokens the generic length-prefixed dispatch cannot bound on its
// own.
func (cmd *Command) consumeResults(onRow RowFunc) (ExecuteResult, error) {
	var result ExecuteResult
	var lastError error
	done := false

	parser := &Parser{
		Subtoken: func(t TokenType, r *tdsbuf.Reader, cp int) (bool, error) {
			switch t {
			case TokenColMetadata:
				cols, ok, err := parseColMetadata(r)
				if err != nil {
					return true, err
				}
				if !ok {
					r.Restore(cp)
					return true, errNeedMore
				}
				cmd.cols = cols
				return true, nil

			case TokenRow:
				row, ok, err := parseRow(r, cmd.cols)
				if err != nil {
					return true, err
				}
				if !ok {
					r.Restore(cp)
					return true, errNeedMore
				}
				if onRow != nil {
					onRow(cmd.cols, row)
				}
				return true, nil

			case TokenNBCRow:
				row, ok, err := parseNBCRow(r, cmd.cols)
				if err != nil {
					return true, err
				}
				if !ok {
					r.Restore(cp)
					return true, errNeedMore
				}
				if onRow != nil {
					onRow(cmd.cols, row)
				}
				return true, nil

			default:
				return false, nil
			}
		},
		OnInfo: func(im InfoMsg) {
			if im.IsError {
				lastError = fmt.Errorf("tds: server error %d: %s", im.Number, im.Message)
			}
			if cmd.ctx.InfoCallback != nil {
				cmd.ctx.InfoCallback(im)
			}
		},
		OnEnvChange: cmd.ctx.applyEnvChange,
		OnReturnStatus: func(v int32) {
			result.ReturnStatus = v
			result.HasReturn = true
		},
		OnDone: func(_ TokenType, d DoneStatus) {
			if d.HasCount() {
				result.AffectedRows = d.RowCount
			}
			if !d.More() {
				done = true
			}
		},
	}

	for !done {
		_, err := cmd.ctx.Framer.ReceivePDU(cmd.ctx.Buffer, parser.Feed)
		if err != nil {
			return result, err
		}
	}

	cmd.cols = nil
	if lastError != nil {
		return result, lastError
	}
	return result, nil
}

// paramWriter accumulates an RPC payload's bytes in order; unlike
// tdsbuf.Writer it owns a plain growing slice since the full RPC payload
// size isn't known up front (it depends on each parameter's declaration).
type paramWriter struct {
	buf []byte
}

func newParamWriter() *paramWriter { return &paramWriter{} }

func (w *paramWriter) bytes() []byte { return w.buf }

func (w *paramWriter) writeBytes(p []byte) { w.buf = append(w.buf, p...) }

func (w *paramWriter) writeUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *paramWriter) writeUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.writeBytes(b[:])
}

func (w *paramWriter) writeUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.writeBytes(b[:])
}

func (w *paramWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.writeBytes(b[:])
}

// writeBVarChar writes a B_VARCHAR: a 1-byte character count followed by
// UCS-2LE bytes, used for RPC parameter names.
func (w *paramWriter) writeBVarChar(s string) {
	b, err := encodeUCS2(s)
	if err != nil {
		// encodeUCS2 only fails on malformed UTF-8 input, which callers
		// constructing names/SQL text from Go strings cannot produce.
		panic(fmt.Sprintf("tds: writeBVarChar: %v", err))
	}
	w.writeUint8(byte(len(b) / 2))
	w.writeBytes(b)
}

