// Package agentx pkg/agentx/value.go
package agentx

import (
	"fmt"

	"github.com/snmpkit/agentx/pkg/oid"
)

// ValueType tags a variable-binding value (RFC 2741 section 5.4).
type ValueType uint16

const (
	TypeInteger          ValueType = 2
	TypeOctetString      ValueType = 4
	TypeNull             ValueType = 5
	TypeObjectIdentifier ValueType = 6
	TypeIPAddress        ValueType = 64
	TypeCounter32        ValueType = 65
	TypeGauge32          ValueType = 66
	TypeTimeTicks        ValueType = 67
	TypeOpaque           ValueType = 68
	TypeCounter64        ValueType = 70
	TypeNoSuchObject     ValueType = 128
	TypeNoSuchInstance   ValueType = 129
	TypeEndOfMibView     ValueType = 130
)

var valueTypeNames = map[ValueType]string{
	TypeInteger:          "Integer",
	TypeOctetString:      "OctetString",
	TypeNull:             "Null",
	TypeObjectIdentifier: "ObjectIdentifier",
	TypeIPAddress:        "IpAddress",
	TypeCounter32:        "Counter32",
	TypeGauge32:          "Gauge32",
	TypeTimeTicks:        "TimeTicks",
	TypeOpaque:           "Opaque",
	TypeCounter64:        "Counter64",
	TypeNoSuchObject:     "NoSuchObject",
	TypeNoSuchInstance:   "NoSuchInstance",
	TypeEndOfMibView:     "EndOfMibView",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}

	return "Unknown"
}

// Value is a tagged union over the AgentX datatypes. Only the field
// selected by Type is meaningful; the constructors below keep the two
// consistent.
type Value struct {
	Type   ValueType
	Int    int32   // Integer
	Uint   uint32  // Counter32, Gauge32, TimeTicks
	Uint64 uint64  // Counter64
	Bytes  []byte  // OctetString, Opaque
	OID    oid.OID // ObjectIdentifier
	IP     [4]byte // IpAddress
}

func IntegerValue(v int32) Value      { return Value{Type: TypeInteger, Int: v} }
func OctetStringValue(b []byte) Value { return Value{Type: TypeOctetString, Bytes: b} }
func StringValue(s string) Value      { return Value{Type: TypeOctetString, Bytes: []byte(s)} }
func NullValue() Value                { return Value{Type: TypeNull} }
func OIDValue(o oid.OID) Value        { return Value{Type: TypeObjectIdentifier, OID: o} }
func IPAddressValue(a, b, c, d byte) Value {
	return Value{Type: TypeIPAddress, IP: [4]byte{a, b, c, d}}
}
func Counter32Value(v uint32) Value { return Value{Type: TypeCounter32, Uint: v} }
func Gauge32Value(v uint32) Value   { return Value{Type: TypeGauge32, Uint: v} }
func TimeTicksValue(v uint32) Value { return Value{Type: TypeTimeTicks, Uint: v} }
func OpaqueValue(b []byte) Value    { return Value{Type: TypeOpaque, Bytes: b} }
func Counter64Value(v uint64) Value { return Value{Type: TypeCounter64, Uint64: v} }
func NoSuchObjectValue() Value      { return Value{Type: TypeNoSuchObject} }
func NoSuchInstanceValue() Value    { return Value{Type: TypeNoSuchInstance} }
func EndOfMibViewValue() Value      { return Value{Type: TypeEndOfMibView} }

// Validate checks the value against wire limits before encoding.
func (v Value) Validate() error {
	switch v.Type {
	case TypeOctetString, TypeOpaque:
		if len(v.Bytes) > MaxOctetStringLen {
			return fmt.Errorf("%s: %w", v.Type, ErrOctetStringTooLong)
		}
	case TypeObjectIdentifier:
		if len(v.OID) > oid.MaxSubIDs {
			return fmt.Errorf("%s: %w", v.Type, ErrOIDTooLong)
		}
	case TypeInteger, TypeNull, TypeIPAddress, TypeCounter32, TypeGauge32,
		TypeTimeTicks, TypeCounter64, TypeNoSuchObject, TypeNoSuchInstance,
		TypeEndOfMibView:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownValueType, v.Type)
	}

	return nil
}

// IsException reports whether the value is one of the three exception
// markers a subagent returns in place of data.
func (v Value) IsException() bool {
	return v.Type == TypeNoSuchObject || v.Type == TypeNoSuchInstance || v.Type == TypeEndOfMibView
}

func (v Value) String() string {
	switch v.Type {
	case TypeInteger:
		return fmt.Sprintf("Integer(%d)", v.Int)
	case TypeOctetString:
		return fmt.Sprintf("OctetString(%q)", v.Bytes)
	case TypeObjectIdentifier:
		return fmt.Sprintf("ObjectIdentifier(%s)", v.OID)
	case TypeIPAddress:
		return fmt.Sprintf("IpAddress(%d.%d.%d.%d)", v.IP[0], v.IP[1], v.IP[2], v.IP[3])
	case TypeCounter32:
		return fmt.Sprintf("Counter32(%d)", v.Uint)
	case TypeGauge32:
		return fmt.Sprintf("Gauge32(%d)", v.Uint)
	case TypeTimeTicks:
		return fmt.Sprintf("TimeTicks(%d)", v.Uint)
	case TypeOpaque:
		return fmt.Sprintf("Opaque(%x)", v.Bytes)
	case TypeCounter64:
		return fmt.Sprintf("Counter64(%d)", v.Uint64)
	default:
		return v.Type.String()
	}
}

// VarBind pairs an object name with its value.
type VarBind struct {
	Name  oid.OID
	Value Value
}

func (vb VarBind) String() string {
	return fmt.Sprintf("VarBind(%s, %s)", vb.Name, vb.Value)
}
