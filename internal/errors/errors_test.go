package errors

import (
	"errors"
	"testing"
)

func TestErrorMessageIncludesCauseChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, ErrCodeConnectionFailed, "dial failed").Err()
	want := "E2001: dial failed: connection reset"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCodeCategory(t *testing.T) {
	cases := []struct {
		code Code
		want string
	}{
		{ErrCodeConfigInvalid, "configuration"},
		{ErrCodeConnectionFailed, "connection"},
		{ErrCodeLoginFailed, "execution"},
		{ErrCodeInternal, "internal"},
		{Code(500), "unknown"},
	}
	for _, c := range cases {
		if got := c.code.Category(); got != c.want {
			t.Fatalf("Code(%d).Category() = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestGetCodeAndSeverityUnwrapThroughBuilder(t *testing.T) {
	err := LoginFailed("bad password").Err()
	if GetCode(err) != ErrCodeLoginFailed {
		t.Fatalf("GetCode = %v, want ErrCodeLoginFailed", GetCode(err))
	}
	if !IsSevere(err) {
		t.Fatal("LoginFailed should be built as Critical severity")
	}
	if !IsCategory(err, "execution") {
		t.Fatal("expected execution category")
	}
}

func TestGetCodeOnPlainErrorFallsBackToInternal(t *testing.T) {
	if GetCode(errors.New("boom")) != ErrCodeInternal {
		t.Fatal("expected ErrCodeInternal for a non-*Error")
	}
}

func TestWithFieldAccumulates(t *testing.T) {
	err := New(ErrCodeConnParamInvalid, "bad host").
		WithField("field", "host").
		WithField("value", "").
		Build()
	if err.Fields["field"] != "host" || err.Fields["value"] != "" {
		t.Fatalf("Fields = %+v", err.Fields)
	}
}

func TestIsCodeMatchesExactCode(t *testing.T) {
	err := New(ErrCodeRPCInvalidMode, "bad mode").Err()
	if !IsCode(err, ErrCodeRPCInvalidMode) {
		t.Fatal("expected IsCode to match")
	}
	if IsCode(err, ErrCodeLoginFailed) {
		t.Fatal("expected IsCode not to match a different code")
	}
}
