package subagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/oid"
)

func setVarBinds() []agentx.VarBind {
	return []agentx.VarBind{
		{Name: oid.MustParse(testRoot + ".10.0"), Value: agentx.StringValue("new value")},
	}
}

func txHeader(txID uint32) agentx.Header {
	return agentx.NewHeader(agentx.PDUTestSet, 1, txID, 1, 0)
}

func TestTwoPhaseSetCommitRollback(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	ctx := context.Background()
	vbs := setVarBinds()

	// The handler sees exactly test, commit, undo, cleanup, once
	// each, in order.
	gomock.InOrder(
		handler.EXPECT().Test(gomock.Any(), vbs).Return(nil),
		handler.EXPECT().Commit(gomock.Any(), vbs).Return(errors.New("disk full")),
		handler.EXPECT().Undo(gomock.Any(), vbs).Return(nil),
		handler.EXPECT().Cleanup(gomock.Any(), vbs),
	)

	h := txHeader(77)

	resp := s.handleTestSet(ctx, h, &agentx.TestSet{VarBinds: vbs})
	assert.Equal(t, agentx.NoAgentXError, resp.Error)

	resp = s.handleCommitSet(ctx, h)
	assert.Equal(t, agentx.CommitFailed, resp.Error)

	resp = s.handleUndoSet(ctx, h)
	assert.Equal(t, agentx.NoAgentXError, resp.Error)

	s.handleCleanupSet(ctx, h)
	assert.Empty(t, s.transactions)
}

func TestTwoPhaseSetHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	ctx := context.Background()
	vbs := setVarBinds()

	gomock.InOrder(
		handler.EXPECT().Test(gomock.Any(), vbs).Return(nil),
		handler.EXPECT().Commit(gomock.Any(), vbs).Return(nil),
		handler.EXPECT().Cleanup(gomock.Any(), vbs),
	)

	h := txHeader(78)

	assert.Equal(t, agentx.NoAgentXError, s.handleTestSet(ctx, h, &agentx.TestSet{VarBinds: vbs}).Error)
	assert.Equal(t, agentx.NoAgentXError, s.handleCommitSet(ctx, h).Error)
	s.handleCleanupSet(ctx, h)

	assert.Empty(t, s.transactions)
}

func TestTestSetErrorKeepsTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	ctx := context.Background()
	vbs := setVarBinds()

	handler.EXPECT().Test(gomock.Any(), vbs).Return(&TestError{Code: agentx.WrongValue, Index: 1})
	handler.EXPECT().Cleanup(gomock.Any(), vbs)

	h := txHeader(79)

	resp := s.handleTestSet(ctx, h, &agentx.TestSet{VarBinds: vbs})
	assert.Equal(t, agentx.WrongValue, resp.Error)
	assert.Equal(t, uint16(1), resp.Index)

	// The transaction survives a failed test until CleanupSet...
	require.Contains(t, s.transactions, uint32(79))

	// ...and commit is rejected in that state without touching the
	// handler.
	assert.Equal(t, agentx.ProcessingError, s.handleCommitSet(ctx, h).Error)

	s.handleCleanupSet(ctx, h)
	assert.Empty(t, s.transactions)
}

func TestTestSetUnknownErrorMapsToGenErr(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	handler.EXPECT().Test(gomock.Any(), gomock.Any()).Return(errors.New("boom"))

	resp := s.handleTestSet(context.Background(), txHeader(80), &agentx.TestSet{VarBinds: setVarBinds()})
	assert.Equal(t, agentx.GenErr, resp.Error)
	assert.Equal(t, uint16(1), resp.Index)
}

func TestTestSetPanicIsContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	handler.EXPECT().Test(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, []agentx.VarBind) error { panic("handler bug") })

	resp := s.handleTestSet(context.Background(), txHeader(81), &agentx.TestSet{VarBinds: setVarBinds()})
	assert.Equal(t, agentx.GenErr, resp.Error)
}

func TestTestSetWithoutHandlerIsNotWritable(t *testing.T) {
	s, _ := newServingSession(t, sampleValues(), nil)

	resp := s.handleTestSet(context.Background(), txHeader(82), &agentx.TestSet{VarBinds: setVarBinds()})
	assert.Equal(t, agentx.NotWritable, resp.Error)
	assert.Equal(t, uint16(1), resp.Index)
}

func TestSetOutOfOrderPhases(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	ctx := context.Background()

	// No transaction at all.
	assert.Equal(t, agentx.ProcessingError, s.handleCommitSet(ctx, txHeader(90)).Error)
	assert.Equal(t, agentx.ProcessingError, s.handleUndoSet(ctx, txHeader(90)).Error)

	// Undo before commit.
	handler.EXPECT().Test(gomock.Any(), gomock.Any()).Return(nil)

	h := txHeader(91)
	require.Equal(t, agentx.NoAgentXError, s.handleTestSet(ctx, h, &agentx.TestSet{VarBinds: setVarBinds()}).Error)
	assert.Equal(t, agentx.ProcessingError, s.handleUndoSet(ctx, h).Error)
}

func TestSweepTransactions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	ctx := context.Background()

	handler.EXPECT().Test(gomock.Any(), gomock.Any()).Return(nil)
	handler.EXPECT().Cleanup(gomock.Any(), gomock.Any())

	h := txHeader(100)
	require.Equal(t, agentx.NoAgentXError, s.handleTestSet(ctx, h, &agentx.TestSet{VarBinds: setVarBinds()}).Error)

	// Young transactions survive the sweep.
	s.sweepTransactions(ctx, time.Minute)
	assert.Contains(t, s.transactions, uint32(100))

	// Backdate it past the deadline: the sweep issues the synthetic
	// cleanup and drops it.
	s.transactions[100].created = time.Now().Add(-2 * time.Minute)
	s.sweepTransactions(ctx, time.Minute)
	assert.Empty(t, s.transactions)
}

func TestUndoFailureReportsUndoFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockSetHandler(ctrl)
	s, _ := newServingSession(t, sampleValues(), handler)

	ctx := context.Background()
	vbs := setVarBinds()

	gomock.InOrder(
		handler.EXPECT().Test(gomock.Any(), vbs).Return(nil),
		handler.EXPECT().Commit(gomock.Any(), vbs).Return(nil),
		handler.EXPECT().Undo(gomock.Any(), vbs).Return(errors.New("cannot roll back")),
	)

	h := txHeader(101)

	require.Equal(t, agentx.NoAgentXError, s.handleTestSet(ctx, h, &agentx.TestSet{VarBinds: vbs}).Error)
	require.Equal(t, agentx.NoAgentXError, s.handleCommitSet(ctx, h).Error)
	assert.Equal(t, agentx.UndoFailed, s.handleUndoSet(ctx, h).Error)
}
