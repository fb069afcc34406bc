package tds

import (
	"encoding/binary"
	"testing"

	"github.com/tdsl-go/tdsl/tdsbuf"
)

func TestParserFeedDispatchesDoneToken(t *testing.T) {
	buf := tdsbuf.New(64)
	w := buf.Writer()
	w.WriteUint8(byte(TokenDone))
	w.WriteUint16(uint16(DoneCount), tdsbuf.LittleEndian)
	w.WriteUint16(0, tdsbuf.LittleEndian)
	w.WriteUint32(42, tdsbuf.LittleEndian)
	w.Close()

	var got DoneStatus
	var gotType TokenType
	p := &Parser{OnDone: func(tt TokenType, d DoneStatus) {
		gotType = tt
		got = d
	}}

	needed, err := p.Feed(buf)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if needed != 1 {
		t.Fatalf("needed = %d, want 1 (buffer fully drained)", needed)
	}
	if gotType != TokenDone {
		t.Fatalf("token type = %v", gotType)
	}
	if !got.HasCount() || got.RowCount != 42 {
		t.Fatalf("DoneStatus = %+v", got)
	}
}

func TestParserFeedPartialFixedTokenRestoresCheckpoint(t *testing.T) {
	buf := tdsbuf.New(64)
	w := buf.Writer()
	w.WriteUint8(byte(TokenDone))
	w.WriteUint16(0, tdsbuf.LittleEndian) // only 2 of the 8 body bytes present
	w.Close()

	called := false
	p := &Parser{OnDone: func(TokenType, DoneStatus) { called = true }}

	_, err := p.Feed(buf)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if called {
		t.Fatal("OnDone should not fire on a truncated token")
	}
	if buf.InuseLen() != 3 {
		t.Fatalf("expected the token-type byte plus 2 body bytes left in place, got %d", buf.InuseLen())
	}
}

func TestParserFeedDispatchesEnvChange(t *testing.T) {
	buf := tdsbuf.New(128)
	w := buf.Writer()
	w.WriteUint8(byte(TokenEnvChange))

	body := make([]byte, 0, 16)
	appendU8 := func(v uint8) { body = append(body, v) }
	dbName, _ := encodeUCS2("master")
	appendU8(EnvDatabase)
	appendU8(uint8(len(dbName) / 2))
	body = append(body, dbName...)
	appendU8(0) // old value: zero-length

	w.WriteUint16(uint16(len(body)), tdsbuf.LittleEndian)
	w.WriteBytes(body)
	w.Close()

	var got EnvChange
	p := &Parser{OnEnvChange: func(ec EnvChange) { got = ec }}

	if _, err := p.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if got.Type != EnvDatabase {
		t.Fatalf("EnvChange.Type = %d", got.Type)
	}
	name, err := decodeUCS2(got.NewValue)
	if err != nil || name != "master" {
		t.Fatalf("EnvChange.NewValue decode = %q, %v", name, err)
	}
}

func TestParserFeedUnrecognisedLengthPrefixedTokenIgnored(t *testing.T) {
	buf := tdsbuf.New(32)
	w := buf.Writer()
	w.WriteUint8(0x50) // not a recognised token type, but well-formed (length-prefixed)
	w.WriteUint16(3, tdsbuf.LittleEndian)
	w.WriteBytes([]byte{1, 2, 3})
	w.Close()

	p := &Parser{}
	if _, err := p.Feed(buf); err != nil {
		t.Fatalf("Feed should silently skip unknown length-prefixed tokens: %v", err)
	}
	if buf.InuseLen() != 0 {
		t.Fatalf("expected the whole token consumed, got %d bytes left", buf.InuseLen())
	}
}

func TestParserFeedSubtokenHandledTrue(t *testing.T) {
	buf := tdsbuf.New(32)
	w := buf.Writer()
	w.WriteUint8(byte(TokenColMetadata))
	w.WriteUint16(0xFFFF, tdsbuf.LittleEndian) // no-column sentinel, a minimal complete body
	w.Close()

	var seenType TokenType
	p := &Parser{Subtoken: func(t TokenType, r *tdsbuf.Reader, cp int) (bool, error) {
		if t != TokenColMetadata {
			return false, nil
		}
		seenType = t
		r.ReadUint16(tdsbuf.LittleEndian) // consume the body
		return true, nil
	}}

	if _, err := p.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if seenType != TokenColMetadata {
		t.Fatal("subtoken handler was not offered COLMETADATA")
	}
	if buf.InuseLen() != 0 {
		t.Fatalf("expected fully consumed, got %d bytes left", buf.InuseLen())
	}
}

func TestParserFeedSubtokenNeedsMoreRestoresAndStops(t *testing.T) {
	buf := tdsbuf.New(32)
	w := buf.Writer()
	w.WriteUint8(byte(TokenColMetadata))
	w.WriteUint8(0x02) // only 1 of the 2 count bytes present
	w.Close()

	calls := 0
	p := &Parser{Subtoken: func(t TokenType, r *tdsbuf.Reader, cp int) (bool, error) {
		calls++
		if t != TokenColMetadata {
			return false, nil
		}
		r.Restore(cp)
		return true, errNeedMore
	}}

	needed, err := p.Feed(buf)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if needed != 1 {
		t.Fatalf("needed = %d", needed)
	}
	if calls != 1 {
		t.Fatalf("subtoken handler called %d times, want 1", calls)
	}
	if buf.InuseLen() != 2 {
		t.Fatalf("expected both bytes preserved for next Feed, got %d", buf.InuseLen())
	}
}

func TestParserFeedSubtokenFallsThroughWhenNotHandled(t *testing.T) {
	buf := tdsbuf.New(32)
	w := buf.Writer()
	w.WriteUint8(byte(TokenReturnStatus))
	w.WriteUint32(7, tdsbuf.LittleEndian)
	w.Close()

	var got int32
	p := &Parser{
		Subtoken: func(t TokenType, r *tdsbuf.Reader, cp int) (bool, error) {
			return false, nil // not interested in RETURNSTATUS
		},
		OnReturnStatus: func(v int32) { got = v },
	}

	if _, err := p.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if got != 7 {
		t.Fatalf("OnReturnStatus value = %d, want 7", got)
	}
}

func TestDispatchFixedMatchesBinaryLayout(t *testing.T) {
	// sanity check that DoneStatus fields line up with the wire layout the
	// generic dispatch assumes: status, curcmd, rowcount little-endian.
	body := make([]byte, 8)
	binary.LittleEndian.PutUint16(body[0:2], DoneMore)
	binary.LittleEndian.PutUint16(body[2:4], 0x00AA)
	binary.LittleEndian.PutUint32(body[4:8], 99)

	var got DoneStatus
	p := &Parser{OnDone: func(_ TokenType, d DoneStatus) { got = d }}
	if err := p.dispatchFixed(TokenDone, body); err != nil {
		t.Fatal(err)
	}
	if got.Status != DoneMore || got.CurCmd != 0x00AA || got.RowCount != 99 {
		t.Fatalf("DoneStatus = %+v", got)
	}
}
