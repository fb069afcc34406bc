package tds

import "testing"

func TestProtoErrorMessage(t *testing.T) {
	err := newProtoError(ErrInvalidFieldLength, "width %d", 3)
	want := "tds: invalid_field_length: width 3"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestProtoErrorNoDetail(t *testing.T) {
	err := &ProtoError{Kind: ErrNotEnoughMemory}
	want := "tds: not_enough_memory"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNotEnoughBytes(t *testing.T) {
	err := notEnoughBytes(5)
	if err.Kind != ErrNotEnoughBytes {
		t.Fatalf("Kind = %v", err.Kind)
	}
	want := "tds: not_enough_bytes: need 5 more byte(s)"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
