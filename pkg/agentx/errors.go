package agentx

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPDU       = errors.New("malformed PDU")
	ErrUnknownPDUType     = fmt.Errorf("%w: unknown PDU type", ErrMalformedPDU)
	ErrUnknownValueType   = errors.New("unknown value type")
	ErrBadVersion         = fmt.Errorf("%w: unsupported AgentX version", ErrMalformedPDU)
	ErrReservedNonZero    = fmt.Errorf("%w: reserved byte is nonzero", ErrMalformedPDU)
	ErrShortPayload       = fmt.Errorf("%w: payload truncated", ErrMalformedPDU)
	ErrTrailingBytes      = fmt.Errorf("%w: trailing bytes after payload", ErrMalformedPDU)
	ErrOctetStringTooLong = errors.New("octet string exceeds 65535 bytes")
	ErrOIDTooLong         = errors.New("OID exceeds 128 sub-identifiers")
)
