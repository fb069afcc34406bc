package tds

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ucs2LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeUCS2 converts raw UCS-2LE bytes (as carried by LOGIN7 strings, NVARCHAR
// columns, and token text fields) to a Go string.
func decodeUCS2(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	out, _, err := transform.Bytes(ucs2LE.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// encodeUCS2 converts a Go string to UCS-2LE bytes, as required for every
// string field of the LOGIN7 packet and for NVARCHAR RPC parameters.
func encodeUCS2(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	out, _, err := transform.Bytes(ucs2LE.NewEncoder(), []byte(s))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ucs2CharLen returns the UCS-2 character count of s, i.e. half its encoded
// byte length, as used by the B_VARCHAR/US_VARCHAR length prefixes that
// count characters rather than bytes.
func ucs2CharLen(s string) (int, error) {
	b, err := encodeUCS2(s)
	if err != nil {
		return 0, err
	}
	return len(b) / 2, nil
}
