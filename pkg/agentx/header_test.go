package agentx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(PDUOpen, 1, 2, 3, FlagNetworkByteOrder)
	h.PayloadLength = 100

	b := h.MarshalBinary()
	require.Len(t, b, HeaderSize)

	decoded, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestHeaderLittleEndian(t *testing.T) {
	h := NewHeader(PDUResponse, 0x01020304, 5, 6, 0)
	h.PayloadLength = 16

	b := h.MarshalBinary()

	// No NETWORK_BYTE_ORDER flag: little-endian session id.
	assert.Equal(t, byte(0x04), b[4])
	assert.Equal(t, byte(0x01), b[7])

	decoded, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), decoded.SessionID)
}

func TestHeaderFields(t *testing.T) {
	h := NewHeader(PDURegister, 42, 100, 200, FlagNetworkByteOrder|FlagInstanceRegistration)
	h.PayloadLength = 50

	assert.Equal(t, uint8(Version), h.Version)
	assert.Equal(t, PDURegister, h.Type)
	assert.Equal(t, uint32(42), h.SessionID)
	assert.Equal(t, uint32(100), h.TransactionID)
	assert.Equal(t, uint32(200), h.PacketID)
	assert.Equal(t, uint32(50), h.PayloadLength)
}

func TestDecodeHeaderRejects(t *testing.T) {
	hdr := NewHeader(PDUPing, 1, 1, 1, FlagNetworkByteOrder)
	hdr.PayloadLength = 12
	valid := hdr.MarshalBinary()

	t.Run("short buffer", func(t *testing.T) {
		_, err := DecodeHeader(valid[:10])
		assert.ErrorIs(t, err, ErrMalformedPDU)
	})

	t.Run("bad version", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[0] = 2
		_, err := DecodeHeader(b)
		assert.ErrorIs(t, err, ErrBadVersion)
	})

	// Unknown-type and reserved-byte errors still return the decoded
	// fixed-offset fields so readers can skip the payload and keep the
	// stream in sync.

	t.Run("unknown type", func(t *testing.T) {
		for _, typ := range []byte{0, 19, 255} {
			b := append([]byte(nil), valid...)
			b[1] = typ

			h, err := DecodeHeader(b)
			require.ErrorIs(t, err, ErrUnknownPDUType)
			assert.Equal(t, uint32(12), h.PayloadLength)
			assert.Equal(t, uint32(1), h.PacketID)
		}
	})

	t.Run("reserved nonzero", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[3] = 1

		h, err := DecodeHeader(b)
		require.ErrorIs(t, err, ErrReservedNonZero)
		assert.Equal(t, uint32(12), h.PayloadLength)
	})
}

func TestPDUTypeString(t *testing.T) {
	assert.Equal(t, "Open", PDUOpen.String())
	assert.Equal(t, "Response", PDUResponse.String())
	assert.Equal(t, "Unknown", PDUType(42).String())
}
