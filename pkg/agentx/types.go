// Package agentx pkg/agentx/types.go
//
// Package agentx implements the RFC 2741 AgentX wire protocol: the PDU
// header, variable bindings, search ranges, and every PDU variant a
// subagent exchanges with a master agent. Multi-byte fields honor the
// byte order selected per PDU by the NETWORK_BYTE_ORDER header flag.
package agentx

import "encoding/binary"

// Version is the AgentX protocol version this package speaks.
const Version = 1

// HeaderSize is the fixed PDU header length in bytes.
const HeaderSize = 20

// MaxOctetStringLen bounds octet string payloads.
const MaxOctetStringLen = 65535

// PDUType identifies an AgentX PDU variant (RFC 2741 section 6.1).
type PDUType uint8

const (
	PDUOpen            PDUType = 1
	PDUClose           PDUType = 2
	PDURegister        PDUType = 3
	PDUUnregister      PDUType = 4
	PDUGet             PDUType = 5
	PDUGetNext         PDUType = 6
	PDUGetBulk         PDUType = 7
	PDUTestSet         PDUType = 8
	PDUCommitSet       PDUType = 9
	PDUUndoSet         PDUType = 10
	PDUCleanupSet      PDUType = 11
	PDUNotify          PDUType = 12
	PDUPing            PDUType = 13
	PDUIndexAllocate   PDUType = 14
	PDUIndexDeallocate PDUType = 15
	PDUAddAgentCaps    PDUType = 16
	PDURemoveAgentCaps PDUType = 17
	PDUResponse        PDUType = 18
)

var pduTypeNames = map[PDUType]string{
	PDUOpen:            "Open",
	PDUClose:           "Close",
	PDURegister:        "Register",
	PDUUnregister:      "Unregister",
	PDUGet:             "Get",
	PDUGetNext:         "GetNext",
	PDUGetBulk:         "GetBulk",
	PDUTestSet:         "TestSet",
	PDUCommitSet:       "CommitSet",
	PDUUndoSet:         "UndoSet",
	PDUCleanupSet:      "CleanupSet",
	PDUNotify:          "Notify",
	PDUPing:            "Ping",
	PDUIndexAllocate:   "IndexAllocate",
	PDUIndexDeallocate: "IndexDeallocate",
	PDUAddAgentCaps:    "AddAgentCaps",
	PDURemoveAgentCaps: "RemoveAgentCaps",
	PDUResponse:        "Response",
}

func (t PDUType) String() string {
	if name, ok := pduTypeNames[t]; ok {
		return name
	}

	return "Unknown"
}

func (t PDUType) valid() bool {
	return t >= PDUOpen && t <= PDUResponse
}

// Flags is the header flag bitfield (RFC 2741 section 6.1).
type Flags uint8

const (
	FlagInstanceRegistration Flags = 0x01
	FlagNewIndex             Flags = 0x02
	FlagAnyIndex             Flags = 0x04
	FlagNonDefaultContext    Flags = 0x08
	FlagNetworkByteOrder     Flags = 0x10
)

// ByteOrder returns the integer byte order the PDU's fields use.
func (f Flags) ByteOrder() binary.ByteOrder {
	if f&FlagNetworkByteOrder != 0 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// CloseReason explains a Close PDU (RFC 2741 section 6.2.2).
type CloseReason uint8

const (
	CloseReasonOther         CloseReason = 1
	CloseReasonParseError    CloseReason = 2
	CloseReasonProtocolError CloseReason = 3
	CloseReasonTimeouts      CloseReason = 4
	CloseReasonShutdown      CloseReason = 5
	CloseReasonByManager     CloseReason = 6
)

// ResponseError is the error field of a Response PDU. Values below 256
// are SNMPv2 PDU error codes (RFC 3416); 256 and above are AgentX
// administrative codes (RFC 2741 section 6.2.16).
type ResponseError uint16

const (
	NoAgentXError ResponseError = 0

	// SNMPv2 error-status codes used in SET processing responses.
	GenErr              ResponseError = 5
	NoAccess            ResponseError = 6
	WrongType           ResponseError = 7
	WrongLength         ResponseError = 8
	WrongEncoding       ResponseError = 9
	WrongValue          ResponseError = 10
	NoCreation          ResponseError = 11
	InconsistentValue   ResponseError = 12
	ResourceUnavailable ResponseError = 13
	CommitFailed        ResponseError = 14
	UndoFailed          ResponseError = 15
	NotWritable         ResponseError = 17
	InconsistentName    ResponseError = 18

	// AgentX administrative codes.
	OpenFailed            ResponseError = 256
	NotOpen               ResponseError = 257
	IndexWrongType        ResponseError = 258
	IndexAlreadyAllocated ResponseError = 259
	IndexNoneAvailable    ResponseError = 260
	IndexNotAllocated     ResponseError = 261
	UnsupportedContext    ResponseError = 262
	DuplicateRegistration ResponseError = 263
	UnknownRegistration   ResponseError = 264
	UnknownAgentCaps      ResponseError = 265
	ParseError            ResponseError = 266
	RequestDenied         ResponseError = 267
	ProcessingError       ResponseError = 268
)

// isBigEndian probes a byte order without depending on its concrete type,
// so binary.NativeEndian works as well as the two named orders.
func isBigEndian(bo binary.ByteOrder) bool {
	var b [2]byte

	bo.PutUint16(b[:], 1)

	return b[0] == 0
}
