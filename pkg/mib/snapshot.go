// Package mib pkg/mib/snapshot.go
package mib

import (
	"fmt"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/oid"
)

// Snapshot is the frozen result of one updater refresh. Readers share
// it without locking; a newer refresh replaces the whole snapshot.
type Snapshot struct {
	root oid.OID
	tree *Tree
}

// Root returns the region root the snapshot serves.
func (s *Snapshot) Root() oid.OID {
	return s.root
}

// Len returns the number of bindings in the snapshot.
func (s *Snapshot) Len() int {
	return s.tree.Len()
}

// Get is an exact lookup of an absolute OID.
func (s *Snapshot) Get(o oid.OID) (agentx.Value, bool) {
	return s.tree.Get(o)
}

// Successor returns the smallest stored key ordered after o.
func (s *Snapshot) Successor(o oid.OID, inclusive bool) (oid.OID, agentx.Value, bool) {
	return s.tree.Successor(o, inclusive)
}

// Walk visits all bindings in order.
func (s *Snapshot) Walk(fn func(oid.OID, agentx.Value) bool) {
	s.tree.Walk(fn)
}

// Builder accumulates bindings for the next snapshot of a region. The
// typed setters take a suffix OID relative to the region root, the way
// values are named in updater code.
type Builder struct {
	root oid.OID
	tree *Tree
}

// NewBuilder starts an empty snapshot for the region rooted at root.
func NewBuilder(root oid.OID) *Builder {
	return &Builder{root: root.Clone(), tree: New()}
}

// Set stores a value at root+suffix after validating both parts.
func (b *Builder) Set(suffix oid.OID, value agentx.Value) error {
	if err := value.Validate(); err != nil {
		return err
	}

	full := b.root.Append(suffix)
	if len(full) > oid.MaxSubIDs {
		return fmt.Errorf("%w: %s.%s", oid.ErrOIDTooLong, b.root, suffix)
	}

	b.tree.Insert(full, value)

	return nil
}

// SetString parses a dotted suffix and stores a value there.
func (b *Builder) SetString(suffix string, value agentx.Value) error {
	o, err := oid.Parse(suffix)
	if err != nil {
		return err
	}

	return b.Set(o, value)
}

func (b *Builder) SetInteger(suffix string, v int32) error {
	return b.SetString(suffix, agentx.IntegerValue(v))
}

func (b *Builder) SetOctetString(suffix string, v []byte) error {
	return b.SetString(suffix, agentx.OctetStringValue(v))
}

func (b *Builder) SetNull(suffix string) error {
	return b.SetString(suffix, agentx.NullValue())
}

func (b *Builder) SetObjectIdentifier(suffix string, v oid.OID) error {
	return b.SetString(suffix, agentx.OIDValue(v))
}

func (b *Builder) SetIPAddress(suffix string, a, bb, c, d byte) error {
	return b.SetString(suffix, agentx.IPAddressValue(a, bb, c, d))
}

func (b *Builder) SetCounter32(suffix string, v uint32) error {
	return b.SetString(suffix, agentx.Counter32Value(v))
}

func (b *Builder) SetGauge32(suffix string, v uint32) error {
	return b.SetString(suffix, agentx.Gauge32Value(v))
}

func (b *Builder) SetTimeTicks(suffix string, v uint32) error {
	return b.SetString(suffix, agentx.TimeTicksValue(v))
}

func (b *Builder) SetOpaque(suffix string, v []byte) error {
	return b.SetString(suffix, agentx.OpaqueValue(v))
}

func (b *Builder) SetCounter64(suffix string, v uint64) error {
	return b.SetString(suffix, agentx.Counter64Value(v))
}

// Snapshot freezes the builder. The builder must not be used after.
func (b *Builder) Snapshot() *Snapshot {
	s := &Snapshot{root: b.root, tree: b.tree}
	b.tree = nil

	return s
}
