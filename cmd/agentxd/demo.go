package main

import (
	"bytes"
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/mib"
	"github.com/snmpkit/agentx/pkg/oid"
	"github.com/snmpkit/agentx/pkg/subagent"
)

const maxDescriptionLen = 255

// sysInfoUpdater publishes a small system-information subtree:
//
//	.1.0  uptime (TimeTicks)
//	.2.0  hostname (OctetString)
//	.3.0  goroutines (Gauge32)
//	.4.0  allocated bytes, cumulative (Counter64)
//	.5.0  pid (Integer)
//	.10.0 description (OctetString, writable)
type sysInfoUpdater struct {
	started  time.Time
	writable *writableString
}

func newSysInfoUpdater(w *writableString) *sysInfoUpdater {
	return &sysInfoUpdater{started: time.Now(), writable: w}
}

func (u *sysInfoUpdater) Update(_ context.Context, b *mib.Builder) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	var ms runtime.MemStats

	runtime.ReadMemStats(&ms)

	if err := b.SetTimeTicks("1.0", uint32(time.Since(u.started)/(10*time.Millisecond))); err != nil {
		return err
	}

	if err := b.SetOctetString("2.0", []byte(hostname)); err != nil {
		return err
	}

	if err := b.SetGauge32("3.0", uint32(runtime.NumGoroutine())); err != nil {
		return err
	}

	if err := b.SetCounter64("4.0", ms.TotalAlloc); err != nil {
		return err
	}

	if err := b.SetInteger("5.0", int32(os.Getpid())); err != nil {
		return err
	}

	return b.SetOctetString("10.0", u.writable.Get())
}

// writableString is the demo SET target: a single octet-string
// instance with full two-phase semantics.
type writableString struct {
	name oid.OID

	mu     sync.Mutex
	value  []byte
	prior  []byte
	staged []byte
}

func newWritableString(name oid.OID, initial []byte) *writableString {
	return &writableString{name: name, value: initial}
}

func (w *writableString) Get() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]byte(nil), w.value...)
}

func (w *writableString) Test(_ context.Context, varbinds []agentx.VarBind) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, vb := range varbinds {
		if !vb.Name.Equal(w.name) {
			return &subagent.TestError{Code: agentx.NotWritable, Index: uint16(i + 1)}
		}

		if vb.Value.Type != agentx.TypeOctetString {
			return &subagent.TestError{Code: agentx.WrongType, Index: uint16(i + 1)}
		}

		if len(vb.Value.Bytes) > maxDescriptionLen {
			return &subagent.TestError{Code: agentx.WrongLength, Index: uint16(i + 1)}
		}

		w.staged = append([]byte(nil), vb.Value.Bytes...)
	}

	return nil
}

func (w *writableString) Commit(_ context.Context, _ []agentx.VarBind) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prior = w.value
	w.value = w.staged

	return nil
}

func (w *writableString) Undo(_ context.Context, _ []agentx.VarBind) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !bytes.Equal(w.value, w.prior) {
		w.value = w.prior
	}

	return nil
}

func (w *writableString) Cleanup(_ context.Context, _ []agentx.VarBind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.staged = nil
	w.prior = nil
}
