package tds

import "testing"

func TestEncodeDecodeUCS2RoundTrip(t *testing.T) {
	cases := []string{"", "hello", "Müller", "日本語"}
	for _, s := range cases {
		b, err := encodeUCS2(s)
		if err != nil {
			t.Fatalf("encodeUCS2(%q): %v", s, err)
		}
		got, err := decodeUCS2(b)
		if err != nil {
			t.Fatalf("decodeUCS2 of encoded %q: %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}

func TestEncodeUCS2EmptyStringProducesNoBytes(t *testing.T) {
	b, err := encodeUCS2("")
	if err != nil || len(b) != 0 {
		t.Fatalf("encodeUCS2(\"\") = %v, %v", b, err)
	}
}

func TestUCS2CharLenCountsCharsNotBytes(t *testing.T) {
	n, err := ucs2CharLen("hello")
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("ucs2CharLen(\"hello\") = %d, want 5", n)
	}
}

func TestDecodeUCS2KnownBytes(t *testing.T) {
	// "AB" in UCS-2LE: 0x41 0x00 0x42 0x00
	got, err := decodeUCS2([]byte{0x41, 0x00, 0x42, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if got != "AB" {
		t.Fatalf("decodeUCS2 = %q, want AB", got)
	}
}
