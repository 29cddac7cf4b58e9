// Package agentx pkg/agentx/codec.go
//
// Wire primitives shared by every PDU body: OIDs with 1.3.6.1.<prefix>
// compression, padded octet strings, values, variable bindings, and
// search ranges.
package agentx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/snmpkit/agentx/pkg/oid"
)

// writer accumulates a PDU payload in a single byte order.
type writer struct {
	buf bytes.Buffer
	bo  binary.ByteOrder
}

func newWriter(bo binary.ByteOrder) *writer {
	return &writer{bo: bo}
}

func (w *writer) byte(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u16(v uint16) {
	var b [2]byte

	w.bo.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte

	w.bo.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u64(v uint64) {
	var b [8]byte

	w.bo.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) raw(b []byte) {
	w.buf.Write(b)
}

func (w *writer) bytes() []byte {
	return w.buf.Bytes()
}

// reader walks a PDU payload with a sticky error, so decode code reads
// straight through and checks once.
type reader struct {
	b     []byte
	off   int
	bo    binary.ByteOrder
	flags Flags
	err   error
}

func newReader(b []byte, flags Flags) *reader {
	return &reader{b: b, bo: flags.ByteOrder(), flags: flags}
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) remaining() int {
	return len(r.b) - r.off
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}

	if r.remaining() < n {
		r.fail(fmt.Errorf("%w: need %d bytes, have %d", ErrShortPayload, n, r.remaining()))
		return nil
	}

	b := r.b[r.off : r.off+n]
	r.off += n

	return b
}

func (r *reader) byte() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}

	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}

	return r.bo.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}

	return r.bo.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}

	return r.bo.Uint64(b)
}

// reserved consumes one byte that must be zero.
func (r *reader) reserved(what string) {
	if v := r.byte(); v != 0 && r.err == nil {
		r.fail(fmt.Errorf("%w: %s", ErrReservedNonZero, what))
	}
}

// internetPrefix is the OID stem the wire format compresses (RFC 2741
// section 5.1): 1.3.6.1.<prefix> for prefix values 1..255.
var internetPrefix = oid.OID{1, 3, 6, 1}

func encodeOID(w *writer, o oid.OID, include bool) {
	prefix := uint8(0)
	start := 0

	if len(o) >= 5 && o.HasPrefix(internetPrefix) && o[4] <= 255 {
		prefix = uint8(o[4])
		start = 5
	}

	w.byte(uint8(len(o) - start))
	w.byte(prefix)

	if include {
		w.byte(1)
	} else {
		w.byte(0)
	}

	w.byte(0) // reserved

	for _, sub := range o[start:] {
		w.u32(sub)
	}
}

func decodeOID(r *reader) (oid.OID, bool) {
	nSubID := int(r.byte())
	prefix := r.byte()
	include := r.byte() != 0

	r.reserved("OID header")

	if r.err != nil {
		return nil, false
	}

	total := nSubID
	if prefix != 0 {
		total += 5
	}

	if total > oid.MaxSubIDs {
		r.fail(fmt.Errorf("%w: %w: %d sub-identifiers", ErrMalformedPDU, ErrOIDTooLong, total))
		return nil, false
	}

	if total == 0 {
		// The null OID: "no name".
		return nil, include
	}

	out := make(oid.OID, 0, total)
	if prefix != 0 {
		out = append(out, 1, 3, 6, 1, uint32(prefix))
	}

	for i := 0; i < nSubID; i++ {
		out = append(out, r.u32())
	}

	if r.err != nil {
		return nil, false
	}

	return out, include
}

func pad4(n int) int {
	return (4 - n%4) % 4
}

func encodeOctetString(w *writer, b []byte) {
	w.u32(uint32(len(b)))
	w.raw(b)

	for i := 0; i < pad4(len(b)); i++ {
		w.byte(0)
	}
}

func decodeOctetString(r *reader) []byte {
	n := int(r.u32())

	if r.err != nil {
		return nil
	}

	if n > MaxOctetStringLen {
		r.fail(fmt.Errorf("%w: %w: %d bytes", ErrMalformedPDU, ErrOctetStringTooLong, n))
		return nil
	}

	data := r.take(n)
	r.take(pad4(n))

	if r.err != nil || n == 0 {
		return nil
	}

	out := make([]byte, n)
	copy(out, data)

	return out
}

func encodeVarBind(w *writer, vb VarBind) {
	// The value's type tag leads the binding on the wire, then the name.
	w.u16(uint16(vb.Value.Type))
	w.u16(0) // reserved
	encodeOID(w, vb.Name, false)
	encodeValuePayload(w, vb.Value)
}

// encodeValuePayload writes just the data portion of a value; the tag
// was already emitted by encodeVarBind.
func encodeValuePayload(w *writer, v Value) {
	switch v.Type {
	case TypeInteger:
		w.u32(uint32(v.Int))
	case TypeOctetString, TypeOpaque:
		encodeOctetString(w, v.Bytes)
	case TypeObjectIdentifier:
		encodeOID(w, v.OID, false)
	case TypeIPAddress:
		encodeOctetString(w, v.IP[:])
	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		w.u32(v.Uint)
	case TypeCounter64:
		w.u64(v.Uint64)
	case TypeNull, TypeNoSuchObject, TypeNoSuchInstance, TypeEndOfMibView:
	}
}

func decodeVarBind(r *reader) VarBind {
	t := ValueType(r.u16())

	if v := r.u16(); v != 0 && r.err == nil {
		r.fail(fmt.Errorf("%w: varbind reserved field", ErrReservedNonZero))
	}

	name, _ := decodeOID(r)

	if r.err != nil {
		return VarBind{}
	}

	return VarBind{Name: name, Value: decodeValueOfType(r, t)}
}

func decodeValueOfType(r *reader, t ValueType) Value {
	switch t {
	case TypeInteger:
		return Value{Type: t, Int: int32(r.u32())}
	case TypeOctetString, TypeOpaque:
		return Value{Type: t, Bytes: decodeOctetString(r)}
	case TypeNull, TypeNoSuchObject, TypeNoSuchInstance, TypeEndOfMibView:
		return Value{Type: t}
	case TypeObjectIdentifier:
		o, _ := decodeOID(r)
		return Value{Type: t, OID: o}
	case TypeIPAddress:
		b := decodeOctetString(r)
		if r.err == nil && len(b) != 4 {
			r.fail(fmt.Errorf("%w: IpAddress length %d", ErrMalformedPDU, len(b)))
			return Value{}
		}

		v := Value{Type: t}
		copy(v.IP[:], b)

		return v
	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		return Value{Type: t, Uint: r.u32()}
	case TypeCounter64:
		return Value{Type: t, Uint64: r.u64()}
	default:
		r.fail(fmt.Errorf("%w: %w: %d", ErrMalformedPDU, ErrUnknownValueType, t))
		return Value{}
	}
}

func decodeVarBindList(r *reader) []VarBind {
	var out []VarBind

	for r.err == nil && r.remaining() > 0 {
		out = append(out, decodeVarBind(r))
	}

	return out
}

// SearchRange delimits a GetNext/GetBulk traversal. A nil End means the
// range is unbounded above.
type SearchRange struct {
	Start   oid.OID
	End     oid.OID
	Include bool
}

func (sr SearchRange) encode(w *writer) {
	encodeOID(w, sr.Start, sr.Include)
	encodeOID(w, sr.End, false)
}

func decodeSearchRange(r *reader) SearchRange {
	start, include := decodeOID(r)
	end, _ := decodeOID(r)

	return SearchRange{Start: start, End: end, Include: include}
}

func decodeSearchRangeList(r *reader) []SearchRange {
	var out []SearchRange

	for r.err == nil && r.remaining() > 0 {
		out = append(out, decodeSearchRange(r))
	}

	return out
}
