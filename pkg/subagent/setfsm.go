// Package subagent pkg/subagent/setfsm.go
//
// The two-phase SET state machine. One transaction exists per master
// transactionID from TestSet until CleanupSet (or garbage collection);
// each handler hook runs at most once per transaction.
package subagent

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/snmpkit/agentx/pkg/agentx"
)

type txPhase int

const (
	phaseTesting txPhase = iota
	phaseTestedOK
	phaseTestFailed
	phaseCommitted
	phaseCommitFailed
	phaseUndone
)

// txPart is one region's slice of a transaction: its handler, the
// bindings that fall under it, and their 1-based positions in the
// original varbind list.
type txPart struct {
	handler  SetHandler
	varbinds []agentx.VarBind
	indexes  []uint16
}

type setTransaction struct {
	id      uint32
	phase   txPhase
	parts   []txPart
	created time.Time
}

// handleTestSet opens a transaction and runs the test phase. The
// transaction stays alive whatever the outcome; only CleanupSet (or
// the GC sweep) removes it.
func (s *Session) handleTestSet(ctx context.Context, h agentx.Header, p *agentx.TestSet) *agentx.Response {
	tx := &setTransaction{id: h.TransactionID, created: time.Now()}
	s.transactions[h.TransactionID] = tx
	s.metrics.SetOpenTransactions(len(s.transactions))

	for i, vb := range p.VarBinds {
		region := s.regionFor(vb.Name)
		if region == nil || region.handler == nil {
			tx.phase = phaseTestFailed
			return s.newResponse(agentx.NotWritable, uint16(i+1))
		}

		part := tx.partFor(region.handler)
		part.varbinds = append(part.varbinds, vb)
		part.indexes = append(part.indexes, uint16(i+1))
	}

	for i := range tx.parts {
		part := &tx.parts[i]

		err := safeTest(ctx, part.handler, part.varbinds)
		if err == nil {
			continue
		}

		tx.phase = phaseTestFailed

		var te *TestError
		if errors.As(err, &te) {
			index := uint16(0)
			if int(te.Index) >= 1 && int(te.Index) <= len(part.indexes) {
				index = part.indexes[te.Index-1]
			}

			return s.newResponse(te.Code, index)
		}

		log.Printf("Set handler test failed for transaction %d: %v", tx.id, err)

		return s.newResponse(agentx.GenErr, part.indexes[0])
	}

	tx.phase = phaseTestedOK

	return s.newResponse(agentx.NoAgentXError, 0)
}

// handleCommitSet runs the commit phase; valid only after a clean test.
func (s *Session) handleCommitSet(ctx context.Context, h agentx.Header) *agentx.Response {
	tx, ok := s.transactions[h.TransactionID]
	if !ok || tx.phase != phaseTestedOK {
		return s.newResponse(agentx.ProcessingError, 0)
	}

	for i := range tx.parts {
		if err := safeCommit(ctx, tx.parts[i].handler, tx.parts[i].varbinds); err != nil {
			log.Printf("Set handler commit failed for transaction %d: %v", tx.id, err)
			tx.phase = phaseCommitFailed

			return s.newResponse(agentx.CommitFailed, 0)
		}
	}

	tx.phase = phaseCommitted

	return s.newResponse(agentx.NoAgentXError, 0)
}

// handleUndoSet rolls back a committed (or commit-failed) transaction.
func (s *Session) handleUndoSet(ctx context.Context, h agentx.Header) *agentx.Response {
	tx, ok := s.transactions[h.TransactionID]
	if !ok || (tx.phase != phaseCommitted && tx.phase != phaseCommitFailed) {
		return s.newResponse(agentx.ProcessingError, 0)
	}

	tx.phase = phaseUndone
	result := agentx.NoAgentXError

	for i := range tx.parts {
		if err := safeUndo(ctx, tx.parts[i].handler, tx.parts[i].varbinds); err != nil {
			log.Printf("Set handler undo failed for transaction %d: %v", tx.id, err)
			result = agentx.UndoFailed
		}
	}

	return s.newResponse(result, 0)
}

// handleCleanupSet releases a transaction. No response is sent.
func (s *Session) handleCleanupSet(ctx context.Context, h agentx.Header) {
	tx, ok := s.transactions[h.TransactionID]
	if !ok {
		return
	}

	s.cleanupTransaction(ctx, tx)
	delete(s.transactions, h.TransactionID)
	s.metrics.SetOpenTransactions(len(s.transactions))
}

func (s *Session) cleanupTransaction(ctx context.Context, tx *setTransaction) {
	for i := range tx.parts {
		safeCleanup(ctx, tx.parts[i].handler, tx.parts[i].varbinds)
	}
}

// sweepTransactions garbage-collects transactions whose master never
// sent CleanupSet, issuing the synthetic cleanup the handler contract
// promises.
func (s *Session) sweepTransactions(ctx context.Context, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	for id, tx := range s.transactions {
		if tx.created.After(cutoff) {
			continue
		}

		log.Printf("Garbage-collecting abandoned SET transaction %d", id)
		s.cleanupTransaction(ctx, tx)
		delete(s.transactions, id)
	}

	s.metrics.SetOpenTransactions(len(s.transactions))
}

// dropTransactions forgets all transaction state without callbacks,
// used when the transport dies: outstanding transactions are
// implicitly cleaned on reconnect.
func (s *Session) dropTransactions() {
	s.transactions = make(map[uint32]*setTransaction)
	s.metrics.SetOpenTransactions(0)
}

func (tx *setTransaction) partFor(h SetHandler) *txPart {
	for i := range tx.parts {
		if tx.parts[i].handler == h {
			return &tx.parts[i]
		}
	}

	tx.parts = append(tx.parts, txPart{handler: h})

	return &tx.parts[len(tx.parts)-1]
}

// The safe* wrappers keep handler panics away from the master; a panic
// is an application error and maps to the phase's failure code.

func safeTest(ctx context.Context, h SetHandler, vbs []agentx.VarBind) (err error) {
	defer recoverToError(&err)
	return h.Test(ctx, vbs)
}

func safeCommit(ctx context.Context, h SetHandler, vbs []agentx.VarBind) (err error) {
	defer recoverToError(&err)
	return h.Commit(ctx, vbs)
}

func safeUndo(ctx context.Context, h SetHandler, vbs []agentx.VarBind) (err error) {
	defer recoverToError(&err)
	return h.Undo(ctx, vbs)
}

func safeCleanup(ctx context.Context, h SetHandler, vbs []agentx.VarBind) {
	var err error

	defer recoverToError(&err)
	h.Cleanup(ctx, vbs)
}

func recoverToError(err *error) {
	if r := recover(); r != nil {
		log.Printf("Set handler panic: %v", r)
		*err = errHandlerPanic
	}
}

var errHandlerPanic = errors.New("set handler panicked")
