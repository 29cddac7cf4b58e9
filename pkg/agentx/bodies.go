// Package agentx pkg/agentx/bodies.go
//
// One struct per RFC 2741 PDU variant, plus Marshal/Unmarshal tying the
// bodies to the header codec.
package agentx

import (
	"encoding/binary"
	"fmt"

	"github.com/snmpkit/agentx/pkg/oid"
)

// PDU is an AgentX protocol data unit body. Encoding happens through
// Marshal, which prepends the header; decoding through Unmarshal.
type PDU interface {
	PDUType() PDUType
	encodePayload(w *writer)
	decodePayload(r *reader)
}

// Open requests a new session (section 6.2.1).
type Open struct {
	Timeout     uint8 // seconds
	ID          oid.OID
	Description []byte
}

func (*Open) PDUType() PDUType { return PDUOpen }

func (p *Open) encodePayload(w *writer) {
	w.byte(p.Timeout)
	w.byte(0)
	w.byte(0)
	w.byte(0)
	encodeOID(w, p.ID, false)
	encodeOctetString(w, p.Description)
}

func (p *Open) decodePayload(r *reader) {
	p.Timeout = r.byte()
	r.reserved("Open header")
	r.reserved("Open header")
	r.reserved("Open header")
	p.ID, _ = decodeOID(r)
	p.Description = decodeOctetString(r)
}

// Close ends a session (section 6.2.2).
type Close struct {
	Reason CloseReason
}

func (*Close) PDUType() PDUType { return PDUClose }

func (p *Close) encodePayload(w *writer) {
	w.byte(uint8(p.Reason))
	w.byte(0)
	w.byte(0)
	w.byte(0)
}

func (p *Close) decodePayload(r *reader) {
	p.Reason = CloseReason(r.byte())
	r.reserved("Close header")
	r.reserved("Close header")
	r.reserved("Close header")
}

// Register claims a subtree (section 6.2.3). UpperBound is carried on
// the wire only when RangeSubID is nonzero.
type Register struct {
	Context    []byte
	Timeout    uint8
	Priority   uint8
	RangeSubID uint8
	Subtree    oid.OID
	UpperBound uint32
	Instance   bool
}

func (*Register) PDUType() PDUType { return PDURegister }

func (p *Register) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	w.byte(p.Timeout)
	w.byte(p.Priority)
	w.byte(p.RangeSubID)
	w.byte(0)
	encodeOID(w, p.Subtree, false)

	if p.RangeSubID != 0 {
		w.u32(p.UpperBound)
	}
}

func (p *Register) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.Timeout = r.byte()
	p.Priority = r.byte()
	p.RangeSubID = r.byte()
	r.reserved("Register header")
	p.Subtree, _ = decodeOID(r)
	p.Instance = r.flags&FlagInstanceRegistration != 0

	if p.RangeSubID != 0 {
		p.UpperBound = r.u32()
	}
}

// Unregister releases a subtree (section 6.2.4).
type Unregister struct {
	Context    []byte
	Priority   uint8
	RangeSubID uint8
	Subtree    oid.OID
	UpperBound uint32
}

func (*Unregister) PDUType() PDUType { return PDUUnregister }

func (p *Unregister) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	w.byte(0)
	w.byte(p.Priority)
	w.byte(p.RangeSubID)
	w.byte(0)
	encodeOID(w, p.Subtree, false)

	if p.RangeSubID != 0 {
		w.u32(p.UpperBound)
	}
}

func (p *Unregister) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	r.reserved("Unregister header")
	p.Priority = r.byte()
	p.RangeSubID = r.byte()
	r.reserved("Unregister header")
	p.Subtree, _ = decodeOID(r)

	if p.RangeSubID != 0 {
		p.UpperBound = r.u32()
	}
}

// Get requests exact lookups (section 6.2.5). Per the RFC each range's
// end OID is null; only the starts name objects.
type Get struct {
	Context []byte
	Ranges  []SearchRange
}

func (*Get) PDUType() PDUType { return PDUGet }

func (p *Get) encodePayload(w *writer) {
	encodeContext(w, p.Context)

	for _, sr := range p.Ranges {
		sr.encode(w)
	}
}

func (p *Get) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.Ranges = decodeSearchRangeList(r)
}

// GetNext requests lexicographic successors (section 6.2.6).
type GetNext struct {
	Context []byte
	Ranges  []SearchRange
}

func (*GetNext) PDUType() PDUType { return PDUGetNext }

func (p *GetNext) encodePayload(w *writer) {
	encodeContext(w, p.Context)

	for _, sr := range p.Ranges {
		sr.encode(w)
	}
}

func (p *GetNext) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.Ranges = decodeSearchRangeList(r)
}

// GetBulk requests repeated successors (section 6.2.7).
type GetBulk struct {
	Context        []byte
	NonRepeaters   uint16
	MaxRepetitions uint16
	Ranges         []SearchRange
}

func (*GetBulk) PDUType() PDUType { return PDUGetBulk }

func (p *GetBulk) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	w.u16(p.NonRepeaters)
	w.u16(p.MaxRepetitions)

	for _, sr := range p.Ranges {
		sr.encode(w)
	}
}

func (p *GetBulk) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.NonRepeaters = r.u16()
	p.MaxRepetitions = r.u16()
	p.Ranges = decodeSearchRangeList(r)
}

// TestSet opens a SET transaction (section 6.2.8).
type TestSet struct {
	Context  []byte
	VarBinds []VarBind
}

func (*TestSet) PDUType() PDUType { return PDUTestSet }

func (p *TestSet) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	encodeVarBindList(w, p.VarBinds)
}

func (p *TestSet) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.VarBinds = decodeVarBindList(r)
}

// CommitSet, UndoSet, and CleanupSet carry no payload (section 6.2.9).

type CommitSet struct{}

func (*CommitSet) PDUType() PDUType      { return PDUCommitSet }
func (*CommitSet) encodePayload(*writer) {}
func (*CommitSet) decodePayload(*reader) {}

type UndoSet struct{}

func (*UndoSet) PDUType() PDUType      { return PDUUndoSet }
func (*UndoSet) encodePayload(*writer) {}
func (*UndoSet) decodePayload(*reader) {}

type CleanupSet struct{}

func (*CleanupSet) PDUType() PDUType      { return PDUCleanupSet }
func (*CleanupSet) encodePayload(*writer) {}
func (*CleanupSet) decodePayload(*reader) {}

// Notify forwards a notification through the master (section 6.2.10).
type Notify struct {
	Context  []byte
	VarBinds []VarBind
}

func (*Notify) PDUType() PDUType { return PDUNotify }

func (p *Notify) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	encodeVarBindList(w, p.VarBinds)
}

func (p *Notify) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.VarBinds = decodeVarBindList(r)
}

// Ping probes session liveness (section 6.2.11).
type Ping struct {
	Context []byte
}

func (*Ping) PDUType() PDUType { return PDUPing }

func (p *Ping) encodePayload(w *writer) {
	encodeContext(w, p.Context)
}

func (p *Ping) decodePayload(r *reader) {
	p.Context = decodeContext(r)
}

// IndexAllocate requests index values (section 6.2.12).
type IndexAllocate struct {
	Context  []byte
	VarBinds []VarBind
}

func (*IndexAllocate) PDUType() PDUType { return PDUIndexAllocate }

func (p *IndexAllocate) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	encodeVarBindList(w, p.VarBinds)
}

func (p *IndexAllocate) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.VarBinds = decodeVarBindList(r)
}

// IndexDeallocate releases index values (section 6.2.13).
type IndexDeallocate struct {
	Context  []byte
	VarBinds []VarBind
}

func (*IndexDeallocate) PDUType() PDUType { return PDUIndexDeallocate }

func (p *IndexDeallocate) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	encodeVarBindList(w, p.VarBinds)
}

func (p *IndexDeallocate) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.VarBinds = decodeVarBindList(r)
}

// AddAgentCaps advertises a capability (section 6.2.14).
type AddAgentCaps struct {
	Context     []byte
	ID          oid.OID
	Description []byte
}

func (*AddAgentCaps) PDUType() PDUType { return PDUAddAgentCaps }

func (p *AddAgentCaps) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	encodeOID(w, p.ID, false)
	encodeOctetString(w, p.Description)
}

func (p *AddAgentCaps) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.ID, _ = decodeOID(r)
	p.Description = decodeOctetString(r)
}

// RemoveAgentCaps withdraws a capability (section 6.2.15).
type RemoveAgentCaps struct {
	Context []byte
	ID      oid.OID
}

func (*RemoveAgentCaps) PDUType() PDUType { return PDURemoveAgentCaps }

func (p *RemoveAgentCaps) encodePayload(w *writer) {
	encodeContext(w, p.Context)
	encodeOID(w, p.ID, false)
}

func (p *RemoveAgentCaps) decodePayload(r *reader) {
	p.Context = decodeContext(r)
	p.ID, _ = decodeOID(r)
}

// Response answers any other PDU (section 6.2.16).
type Response struct {
	SysUpTime uint32 // hundredths of a second
	Error     ResponseError
	Index     uint16
	VarBinds  []VarBind
}

func (*Response) PDUType() PDUType { return PDUResponse }

func (p *Response) encodePayload(w *writer) {
	w.u32(p.SysUpTime)
	w.u16(uint16(p.Error))
	w.u16(p.Index)
	encodeVarBindList(w, p.VarBinds)
}

func (p *Response) decodePayload(r *reader) {
	p.SysUpTime = r.u32()
	p.Error = ResponseError(r.u16())
	p.Index = r.u16()
	p.VarBinds = decodeVarBindList(r)
}

func encodeContext(w *writer, ctx []byte) {
	if ctx != nil {
		encodeOctetString(w, ctx)
	}
}

func decodeContext(r *reader) []byte {
	if r.flags&FlagNonDefaultContext == 0 {
		return nil
	}

	return decodeOctetString(r)
}

// pduContext returns the non-default context a PDU carries, if its
// variant supports one.
func pduContext(p PDU) []byte {
	switch v := p.(type) {
	case *Register:
		return v.Context
	case *Unregister:
		return v.Context
	case *Get:
		return v.Context
	case *GetNext:
		return v.Context
	case *GetBulk:
		return v.Context
	case *TestSet:
		return v.Context
	case *Notify:
		return v.Context
	case *Ping:
		return v.Context
	case *IndexAllocate:
		return v.Context
	case *IndexDeallocate:
		return v.Context
	case *AddAgentCaps:
		return v.Context
	case *RemoveAgentCaps:
		return v.Context
	default:
		return nil
	}
}

// pduVarBinds returns the bindings a PDU carries, for pre-wire
// validation.
func pduVarBinds(p PDU) []VarBind {
	switch v := p.(type) {
	case *TestSet:
		return v.VarBinds
	case *Notify:
		return v.VarBinds
	case *IndexAllocate:
		return v.VarBinds
	case *IndexDeallocate:
		return v.VarBinds
	case *Response:
		return v.VarBinds
	default:
		return nil
	}
}

// Marshal encodes a complete PDU, header included, in native byte order.
func Marshal(p PDU, sessionID, transactionID, packetID uint32) ([]byte, error) {
	return MarshalOrder(p, sessionID, transactionID, packetID, binary.NativeEndian)
}

// MarshalOrder encodes a complete PDU in the given byte order. Replies
// to a master must use the order of the request PDU.
func MarshalOrder(p PDU, sessionID, transactionID, packetID uint32, bo binary.ByteOrder) ([]byte, error) {
	for i, vb := range pduVarBinds(p) {
		if err := vb.Value.Validate(); err != nil {
			return nil, fmt.Errorf("varbind %d (%s): %w", i+1, vb.Name, err)
		}

		if len(vb.Name) > oid.MaxSubIDs {
			return nil, fmt.Errorf("varbind %d: %w", i+1, ErrOIDTooLong)
		}
	}

	var flags Flags

	if isBigEndian(bo) {
		flags |= FlagNetworkByteOrder
	}

	if pduContext(p) != nil {
		flags |= FlagNonDefaultContext
	}

	if reg, ok := p.(*Register); ok && reg.Instance {
		flags |= FlagInstanceRegistration
	}

	h := NewHeader(p.PDUType(), sessionID, transactionID, packetID, flags)

	w := newWriter(h.Flags.ByteOrder())
	p.encodePayload(w)
	payload := w.bytes()

	h.PayloadLength = uint32(len(payload))

	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, h.MarshalBinary()...)
	out = append(out, payload...)

	return out, nil
}

// Unmarshal decodes the payload of a PDU whose header has already been
// parsed. The payload must be exactly h.PayloadLength bytes.
func Unmarshal(h Header, payload []byte) (PDU, error) {
	if uint32(len(payload)) != h.PayloadLength {
		return nil, fmt.Errorf("%w: header says %d payload bytes, have %d",
			ErrMalformedPDU, h.PayloadLength, len(payload))
	}

	var p PDU

	switch h.Type {
	case PDUOpen:
		p = &Open{}
	case PDUClose:
		p = &Close{}
	case PDURegister:
		p = &Register{}
	case PDUUnregister:
		p = &Unregister{}
	case PDUGet:
		p = &Get{}
	case PDUGetNext:
		p = &GetNext{}
	case PDUGetBulk:
		p = &GetBulk{}
	case PDUTestSet:
		p = &TestSet{}
	case PDUCommitSet:
		p = &CommitSet{}
	case PDUUndoSet:
		p = &UndoSet{}
	case PDUCleanupSet:
		p = &CleanupSet{}
	case PDUNotify:
		p = &Notify{}
	case PDUPing:
		p = &Ping{}
	case PDUIndexAllocate:
		p = &IndexAllocate{}
	case PDUIndexDeallocate:
		p = &IndexDeallocate{}
	case PDUAddAgentCaps:
		p = &AddAgentCaps{}
	case PDURemoveAgentCaps:
		p = &RemoveAgentCaps{}
	case PDUResponse:
		p = &Response{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPDUType, h.Type)
	}

	r := newReader(payload, h.Flags)
	p.decodePayload(r)

	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", h.Type, r.err)
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%s: %w: %d bytes", h.Type, ErrTrailingBytes, r.remaining())
	}

	return p, nil
}
