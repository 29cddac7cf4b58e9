// Package agentx pkg/agentx/parallel.go
package agentx

import (
	"encoding/binary"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the varbind count above which list encoding fans
// out to a worker group. Below it the fixed goroutine cost outweighs the
// per-binding work.
const parallelThreshold = 32

// encodeVarBindList writes a varbind list, fanning large lists out over
// EncodeVarBinds. Output bytes are identical either way.
func encodeVarBindList(w *writer, vbs []VarBind) {
	if len(vbs) <= parallelThreshold {
		for _, vb := range vbs {
			encodeVarBind(w, vb)
		}

		return
	}

	for _, chunk := range EncodeVarBinds(w.bo, vbs) {
		w.raw(chunk)
	}
}

// EncodeVarBinds encodes each binding independently on a bounded worker
// group and returns the per-binding buffers in input order.
func EncodeVarBinds(bo binary.ByteOrder, vbs []VarBind) [][]byte {
	out := make([][]byte, len(vbs))

	var g errgroup.Group

	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, vb := range vbs {
		i, vb := i, vb
		g.Go(func() error {
			w := newWriter(bo)
			encodeVarBind(w, vb)
			out[i] = w.bytes()

			return nil
		})
	}

	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()

	return out
}

// ConcatBuffers joins per-binding buffers into one payload, preserving
// order.
func ConcatBuffers(buffers [][]byte) []byte {
	total := 0
	for _, b := range buffers {
		total += len(b)
	}

	out := make([]byte, 0, total)
	for _, b := range buffers {
		out = append(out, b...)
	}

	return out
}
