package oid

import "errors"

var (
	ErrInvalidOID  = errors.New("invalid OID")
	ErrEmptyOID    = errors.New("empty OID")
	ErrOIDTooLong  = errors.New("OID exceeds 128 sub-identifiers")
	ErrSubIDRange  = errors.New("OID sub-identifier out of range")
	ErrLeadingZero = errors.New("OID sub-identifier has leading zero")
)
