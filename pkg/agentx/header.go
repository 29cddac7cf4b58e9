// Package agentx pkg/agentx/header.go
package agentx

import "fmt"

// Header is the fixed 20-byte PDU header (RFC 2741 section 6.1).
type Header struct {
	Version       uint8
	Type          PDUType
	Flags         Flags
	SessionID     uint32
	TransactionID uint32
	PacketID      uint32
	PayloadLength uint32
}

// NewHeader builds a header for a PDU this subagent originates.
func NewHeader(t PDUType, sessionID, transactionID, packetID uint32, flags Flags) Header {
	return Header{
		Version:       Version,
		Type:          t,
		Flags:         flags,
		SessionID:     sessionID,
		TransactionID: transactionID,
		PacketID:      packetID,
	}
}

// MarshalBinary encodes the header. Integer fields use the byte order
// the header's own NETWORK_BYTE_ORDER flag selects.
func (h Header) MarshalBinary() []byte {
	bo := h.Flags.ByteOrder()

	b := make([]byte, HeaderSize)
	b[0] = h.Version
	b[1] = uint8(h.Type)
	b[2] = uint8(h.Flags)
	// b[3] reserved
	bo.PutUint32(b[4:8], h.SessionID)
	bo.PutUint32(b[8:12], h.TransactionID)
	bo.PutUint32(b[12:16], h.PacketID)
	bo.PutUint32(b[16:20], h.PayloadLength)

	return b
}

// DecodeHeader parses and validates a 20-byte header. The integer
// fields sit at fixed offsets independent of the type and reserved
// bytes, so they are decoded before validation: when the returned
// error wraps ErrUnknownPDUType or ErrReservedNonZero the header's
// PayloadLength is still trustworthy and the caller can skip exactly
// that many bytes to stay in sync with the stream. A short buffer or a
// version mismatch leaves nothing to trust.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrMalformedPDU, HeaderSize, len(b))
	}

	h := Header{
		Version: b[0],
		Type:    PDUType(b[1]),
		Flags:   Flags(b[2]),
	}

	bo := h.Flags.ByteOrder()
	h.SessionID = bo.Uint32(b[4:8])
	h.TransactionID = bo.Uint32(b[8:12])
	h.PacketID = bo.Uint32(b[12:16])
	h.PayloadLength = bo.Uint32(b[16:20])

	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: version %d", ErrBadVersion, h.Version)
	}

	if !h.Type.valid() {
		return h, fmt.Errorf("%w: type %d", ErrUnknownPDUType, b[1])
	}

	if b[3] != 0 {
		return h, fmt.Errorf("%w: header byte 3", ErrReservedNonZero)
	}

	return h, nil
}
