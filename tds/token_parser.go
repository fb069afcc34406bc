package tds

import (
	"encoding/binary"
	"errors"

	"github.com/tdsl-go/tdsl/tdsbuf"
)

// errNeedMore is returned internally by subtoken handlers that recognised
// the token but could not find its whole body in the buffer yet. The
// handler restores the reader to the token's checkpoint before returning it.
var errNeedMore = errors.New("tds: token needs more bytes")

// SubtokenFunc intercepts a token before the parser's generic dispatch. It
// is how the command layer claims COLMETADATA/ROW/NBCROW, which (unlike
// ENVCHANGE/INFO/ERROR/LOGINACK/DONE) carry no generic length prefix the
// parser could use to bound them on its own.
//
// Returning handled=false leaves the reader positioned exactly where it was
// when the function was called (right after the token-type byte), so the
// parser can fall through to its own dispatch. Returning handled=true with
// err == nil means the handler fully consumed the token. Returning
// err == errNeedMore means the handler recognised the token, restored the
// reader to cp itself, and wants the parser to stop and wait for more data.
type SubtokenFunc func(t TokenType, r *tdsbuf.Reader, cp int) (handled bool, err error)

// Parser drives the token-stream dispatch loop described by the protocol:
// checkpoint, read a token-type byte, offer it to the installed subtoken
// handler, and otherwise size the body itself (fixed widths for
// DONE/DONEPROC/DONEINPROC/RETURNSTATUS, a generic 2-byte length prefix for
// everything else) before invoking the matching built-in handler.
type Parser struct {
	Subtoken SubtokenFunc

	OnEnvChange    func(EnvChange)
	OnInfo         func(InfoMsg)
	OnLoginAck     func(LoginAck)
	OnDone         func(t TokenType, d DoneStatus)
	OnReturnStatus func(int32)
}

// Feed implements PacketDataFunc: it parses as many complete tokens as the
// buffer currently holds, leaving any trailing partial token in place for
// the next Feed call (the Reader's Close left-shifts it to the front).
func (p *Parser) Feed(buf *tdsbuf.Buffer) (int, error) {
	r := buf.Reader()
	defer r.Close()

	for {
		cp := r.Checkpoint()
		ttByte, ok := r.ReadUint8()
		if !ok {
			r.Restore(cp)
			return 1, nil
		}
		tt := TokenType(ttByte)

		if p.Subtoken != nil {
			handled, err := p.Subtoken(tt, r, cp)
			if err == errNeedMore {
				return 1, nil // handler already restored to cp
			}
			if err != nil {
				return 0, err
			}
			if handled {
				continue
			}
			// Not handled: reader is still positioned right after the
			// token-type byte, fall through to generic dispatch below.
		}

		if size, isFixed := fixedTokenSize(tt); isFixed {
			body, ok := r.Read(size)
			if !ok {
				need := size - r.RemainingBytes()
				r.Restore(cp)
				return need + 1, nil
			}
			if err := p.dispatchFixed(tt, body); err != nil {
				return 0, err
			}
			continue
		}

		length, ok := r.ReadUint16(tdsbuf.LittleEndian)
		if !ok {
			r.Restore(cp)
			return 3, nil
		}
		sub, err := r.Sub(int(length))
		if err != nil {
			r.Restore(cp)
			return int(length) + 3, nil
		}
		if err := p.dispatchLengthPrefixed(tt, sub); err != nil {
			return 0, err
		}
	}
}

func (p *Parser) dispatchFixed(tt TokenType, body []byte) error {
	switch tt {
	case TokenDone, TokenDoneProc, TokenDoneInProc:
		d := DoneStatus{
			Status:   binary.LittleEndian.Uint16(body[0:2]),
			CurCmd:   binary.LittleEndian.Uint16(body[2:4]),
			RowCount: uint64(binary.LittleEndian.Uint32(body[4:8])),
		}
		if p.OnDone != nil {
			p.OnDone(tt, d)
		}
	case TokenReturnStatus:
		v := int32(binary.LittleEndian.Uint32(body))
		if p.OnReturnStatus != nil {
			p.OnReturnStatus(v)
		}
	}
	return nil
}

// subBody is the minimal interface both *tdsbuf.Reader and the sub-reader
// returned by its Sub method satisfy, used so dispatchLengthPrefixed's helpers read off
// whichever cursor the caller hands them.
type subBody interface {
	Read(n int) ([]byte, bool)
	ReadUint8() (uint8, bool)
	ReadUint16(e tdsbuf.Endianness) (uint16, bool)
	ReadUint32(e tdsbuf.Endianness) (uint32, bool)
	ReadInt32(e tdsbuf.Endianness) (int32, bool)
	RemainingBytes() int
}

func (p *Parser) dispatchLengthPrefixed(tt TokenType, sub subBody) error {
	switch tt {
	case TokenEnvChange:
		return p.handleEnvChange(sub)
	case TokenInfo, TokenError:
		return p.handleInfoError(tt, sub)
	case TokenLoginAck:
		return p.handleLoginAck(sub)
	default:
		// Unrecognised but well-formed (length-prefixed) token: the body
		// has already been fully consumed via Sub, so simply ignore it.
		return nil
	}
}
