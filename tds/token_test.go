package tds

import "testing"

func TestFixedTokenSize(t *testing.T) {
	cases := []struct {
		tt       TokenType
		wantSize int
		wantOK   bool
	}{
		{TokenDone, 8, true},
		{TokenDoneProc, 8, true},
		{TokenDoneInProc, 8, true},
		{TokenReturnStatus, 4, true},
		{TokenEnvChange, 0, false},
		{TokenRow, 0, false},
	}
	for _, c := range cases {
		size, ok := fixedTokenSize(c.tt)
		if ok != c.wantOK || (ok && size != c.wantSize) {
			t.Fatalf("fixedTokenSize(%v) = (%d, %v), want (%d, %v)", c.tt, size, ok, c.wantSize, c.wantOK)
		}
	}
}

func TestDoneStatusFlags(t *testing.T) {
	d := DoneStatus{Status: DoneMore | DoneCount}
	if !d.More() {
		t.Fatal("expected More()")
	}
	if d.HasError() {
		t.Fatal("did not expect HasError()")
	}
	if !d.HasCount() {
		t.Fatal("expected HasCount()")
	}
	if d.SrvError() {
		t.Fatal("did not expect SrvError()")
	}

	d = DoneStatus{Status: DoneError | DoneSrvError}
	if d.More() {
		t.Fatal("did not expect More()")
	}
	if !d.HasError() || !d.SrvError() {
		t.Fatal("expected HasError() and SrvError()")
	}
}

func TestTokenTypeStringKnownAndUnknown(t *testing.T) {
	if TokenRow.String() != "ROW" {
		t.Fatalf("TokenRow.String() = %q", TokenRow.String())
	}
	unknown := TokenType(0x77).String()
	if unknown != "UNKNOWN(0x77)" {
		t.Fatalf("unknown TokenType.String() = %q", unknown)
	}
}
