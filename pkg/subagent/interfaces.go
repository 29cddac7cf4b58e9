// Package subagent pkg/subagent/interfaces.go

package subagent

import (
	"context"
	"fmt"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/mib"
)

//go:generate mockgen -destination=mock_subagent.go -package=subagent github.com/snmpkit/agentx/pkg/subagent Updater,SetHandler,Transport

// Updater refreshes the bindings of one region. Update fills the
// builder with the region's current values; on success the result is
// published atomically as the region's snapshot. On error the previous
// snapshot stays in place.
type Updater interface {
	Update(ctx context.Context, b *mib.Builder) error
}

// UpdaterFunc adapts a function to the Updater interface.
type UpdaterFunc func(ctx context.Context, b *mib.Builder) error

func (f UpdaterFunc) Update(ctx context.Context, b *mib.Builder) error {
	return f(ctx, b)
}

// SetHandler processes writes to a region through the AgentX two-phase
// commit. Each hook is invoked at most once per transaction, in the
// order test, commit, undo, cleanup, always with the transaction's full
// binding list for this region.
//
// Test returns nil to accept the transaction; return a *TestError to
// report a specific SNMP error code and failing binding. Any other
// error maps to genErr. Commit and Undo failures map to commitFailed
// and undoFailed.
type SetHandler interface {
	Test(ctx context.Context, varbinds []agentx.VarBind) error
	Commit(ctx context.Context, varbinds []agentx.VarBind) error
	Undo(ctx context.Context, varbinds []agentx.VarBind) error
	Cleanup(ctx context.Context, varbinds []agentx.VarBind)
}

// Transport is a framed, reliable byte stream to the master agent.
// Read returns one PDU frame: its decoded header and the raw payload.
type Transport interface {
	Connect(ctx context.Context) error
	Read() (agentx.Header, []byte, error)
	Write(b []byte) error
	Close() error
}

// TestError reports a TestSet rejection with its SNMP error code and
// the 1-based index of the failing binding.
type TestError struct {
	Code  agentx.ResponseError
	Index uint16
}

func (e *TestError) Error() string {
	return fmt.Sprintf("test failed: error %d at varbind %d", e.Code, e.Index)
}
