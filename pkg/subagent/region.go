// Package subagent pkg/subagent/region.go

package subagent

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/snmpkit/agentx/pkg/mib"
	"github.com/snmpkit/agentx/pkg/oid"
)

// DefaultPriority is the RFC 2741 default registration priority.
const DefaultPriority = 127

// RegionConfig declares one subtree to serve.
type RegionConfig struct {
	// Root of the claimed subtree.
	Root oid.OID

	// Updater refreshes the region's snapshot.
	Updater Updater

	// Interval between refreshes. Zero means DefaultRefreshInterval.
	Interval time.Duration

	// Priority of the registration; zero means DefaultPriority.
	Priority uint8

	// RangeSubID and UpperBound claim a range registration when
	// RangeSubID is nonzero.
	RangeSubID uint8
	UpperBound uint32

	// Context names a non-default context, if any.
	Context string

	// Handler processes SETs; a nil handler makes the region
	// read-only (TestSet answers notWritable).
	Handler SetHandler

	// Instance registers a fully-qualified instance rather than a
	// subtree.
	Instance bool
}

// Region is one registered subtree and its published snapshot.
type Region struct {
	root       oid.OID
	priority   uint8
	rangeSubID uint8
	upperBound uint32
	context    []byte
	instance   bool
	interval   time.Duration
	updater    Updater
	handler    SetHandler

	snap atomic.Pointer[mib.Snapshot]

	mu          sync.Mutex
	registered  bool
	lastErr     error
	lastRefresh time.Time
	cancel      func()
}

func newRegion(cfg RegionConfig) *Region {
	r := &Region{
		root:       cfg.Root.Clone(),
		priority:   cfg.Priority,
		rangeSubID: cfg.RangeSubID,
		upperBound: cfg.UpperBound,
		instance:   cfg.Instance,
		interval:   cfg.Interval,
		updater:    cfg.Updater,
		handler:    cfg.Handler,
	}

	if r.priority == 0 {
		r.priority = DefaultPriority
	}

	if cfg.Context != "" {
		r.context = []byte(cfg.Context)
	}

	return r
}

// Root returns the region's subtree root.
func (r *Region) Root() oid.OID {
	return r.root
}

// Snapshot returns the currently published snapshot, or nil before the
// first successful refresh.
func (r *Region) Snapshot() *mib.Snapshot {
	return r.snap.Load()
}

// publish atomically replaces the region's snapshot.
func (r *Region) publish(s *mib.Snapshot) {
	r.snap.Store(s)

	r.mu.Lock()
	r.lastRefresh = time.Now()
	r.mu.Unlock()
}

func (r *Region) setRegistered(ok bool, err error) {
	r.mu.Lock()
	r.registered = ok
	r.lastErr = err
	r.mu.Unlock()
}

// Err returns the region's registration error, if the master rejected
// it.
func (r *Region) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastErr
}

// contains reports whether o lies inside the region's subtree.
func (r *Region) contains(o oid.OID) bool {
	return o.HasPrefix(r.root)
}

// overlaps reports whether two regions claim intersecting subtrees.
func (r *Region) overlaps(other *Region) bool {
	return r.root.HasPrefix(other.root) || other.root.HasPrefix(r.root)
}
