package tds

import "fmt"

// ErrKind classifies the protocol-level failures the parser and state
// machines can raise, independent of transport I/O errors.
type ErrKind int

const (
	ErrNotEnoughBytes ErrKind = iota
	ErrNotEnoughMemory
	ErrUnknownColumnSizeType
	ErrInvalidFieldLength
	ErrMissingPriorColMetadata
)

func (k ErrKind) String() string {
	switch k {
	case ErrNotEnoughBytes:
		return "not_enough_bytes"
	case ErrNotEnoughMemory:
		return "not_enough_memory"
	case ErrUnknownColumnSizeType:
		return "unknown_column_size_type"
	case ErrInvalidFieldLength:
		return "invalid_field_length"
	case ErrMissingPriorColMetadata:
		return "missing_prior_colmetadata"
	default:
		return "unknown"
	}
}

// ProtoError is a typed protocol error, distinguished from transport I/O
// failures so callers can tell "the server said something we can't parse"
// apart from "the socket broke".
type ProtoError struct {
	Kind   ErrKind
	Detail string
}

func (e *ProtoError) Error() string {
	if e.Detail == "" {
		return "tds: " + e.Kind.String()
	}
	return fmt.Sprintf("tds: %s: %s", e.Kind, e.Detail)
}

func newProtoError(kind ErrKind, format string, args ...interface{}) *ProtoError {
	return &ProtoError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// notEnoughBytes reports a short read during token parsing: the caller
// needed n more bytes than the current segment carried.
func notEnoughBytes(needed int) *ProtoError {
	return newProtoError(ErrNotEnoughBytes, "need %d more byte(s)", needed)
}
