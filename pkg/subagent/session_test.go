package subagent

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/config"
	"github.com/snmpkit/agentx/pkg/oid"
)

// fakeConn is one "connection" of the fake transport.
type fakeConn struct {
	in   chan frame
	done chan struct{}
	once sync.Once
}

func (c *fakeConn) drop() {
	c.once.Do(func() { close(c.done) })
}

// fakeTransport is an in-memory Transport; the test plays the master.
type fakeTransport struct {
	mu        sync.Mutex
	cur       *fakeConn
	out       chan []byte
	connected chan *fakeConn
	readErrs  chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		out:       make(chan []byte, 64),
		connected: make(chan *fakeConn, 4),
		readErrs:  make(chan error, 4),
	}
}

func (t *fakeTransport) Connect(context.Context) error {
	conn := &fakeConn{in: make(chan frame, 16), done: make(chan struct{})}

	t.mu.Lock()
	t.cur = conn
	t.mu.Unlock()

	t.connected <- conn

	return nil
}

func (t *fakeTransport) Read() (agentx.Header, []byte, error) {
	t.mu.Lock()
	conn := t.cur
	t.mu.Unlock()

	if conn == nil {
		return agentx.Header{}, nil, fmt.Errorf("%w: not connected", ErrConnection)
	}

	select {
	case err := <-t.readErrs:
		return agentx.Header{}, nil, err
	case f := <-conn.in:
		return f.h, f.payload, nil
	case <-conn.done:
		return agentx.Header{}, nil, fmt.Errorf("%w: connection dropped", ErrConnection)
	}
}

func (t *fakeTransport) Write(b []byte) error {
	t.out <- append([]byte(nil), b...)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	conn := t.cur
	t.mu.Unlock()

	if conn != nil {
		conn.drop()
	}

	return nil
}

// master drives the fake transport from the master agent's side.
type master struct {
	t         *testing.T
	tr        *fakeTransport
	conn      *fakeConn
	sessionID uint32
}

func newMaster(t *testing.T, tr *fakeTransport, sessionID uint32) *master {
	t.Helper()

	return &master{t: t, tr: tr, sessionID: sessionID}
}

func (m *master) accept() {
	m.t.Helper()

	select {
	case conn := <-m.tr.connected:
		m.conn = conn
	case <-time.After(5 * time.Second):
		m.t.Fatal("subagent never connected")
	}
}

func (m *master) recv() (agentx.Header, agentx.PDU) {
	m.t.Helper()

	select {
	case raw := <-m.tr.out:
		h, err := agentx.DecodeHeader(raw[:agentx.HeaderSize])
		require.NoError(m.t, err)

		pdu, err := agentx.Unmarshal(h, raw[agentx.HeaderSize:])
		require.NoError(m.t, err)

		return h, pdu
	case <-time.After(5 * time.Second):
		m.t.Fatal("no PDU from subagent")
		return agentx.Header{}, nil
	}
}

func (m *master) send(pdu agentx.PDU, transactionID, packetID uint32, bo binary.ByteOrder) {
	m.t.Helper()

	raw, err := agentx.MarshalOrder(pdu, m.sessionID, transactionID, packetID, bo)
	require.NoError(m.t, err)

	h, err := agentx.DecodeHeader(raw[:agentx.HeaderSize])
	require.NoError(m.t, err)

	m.conn.in <- frame{h: h, payload: raw[agentx.HeaderSize:]}
}

// serveHandshake answers the Open and single Register of a connecting
// subagent.
func (m *master) serveHandshake(regErr agentx.ResponseError) {
	m.t.Helper()

	h, pdu := m.recv()
	require.Equal(m.t, agentx.PDUOpen, h.Type)
	require.IsType(m.t, &agentx.Open{}, pdu)

	m.send(&agentx.Response{}, h.TransactionID, h.PacketID, binary.BigEndian)

	h, pdu = m.recv()
	require.Equal(m.t, agentx.PDURegister, h.Type)
	require.Equal(m.t, m.sessionID, h.SessionID)
	require.IsType(m.t, &agentx.Register{}, pdu)

	m.send(&agentx.Response{Error: regErr}, h.TransactionID, h.PacketID, binary.BigEndian)
}

func e2eConfig() *Config {
	return &Config{
		MasterAddress: "localhost:705",
		AgentID:       "1.3.6.1.4.1.12345.99",
		Description:   "test subagent",
		Timeout:       config.Duration(10 * time.Second),
		PingInterval:  config.Duration(-1), // keepalives off for determinism
	}
}

func startSession(t *testing.T) (*Session, *master, context.CancelFunc) {
	t.Helper()

	tr := newFakeTransport()

	s, err := NewSession(e2eConfig(), WithTransport(tr))
	require.NoError(t, err)

	_, err = s.Register(RegionConfig{
		Root:    oid.MustParse(testRoot),
		Updater: &staticUpdater{values: sampleValues()},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	m := newMaster(t, tr, 42)
	m.accept()
	m.serveHandshake(agentx.NoAgentXError)

	require.Eventually(t, func() bool { return s.State() == StateActive }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, uint32(42), s.SessionID())

	// The updater publishes its first snapshot at registration.
	require.Eventually(t, func() bool {
		return s.regionList()[0].Snapshot() != nil
	}, 5*time.Second, 10*time.Millisecond)

	return s, m, cancel
}

func TestSessionServesRequests(t *testing.T) {
	s, m, cancel := startSession(t)
	defer cancel()

	require.Equal(t, StateActive, s.State())

	t.Run("get", func(t *testing.T) {
		m.send(&agentx.Get{Ranges: []agentx.SearchRange{
			{Start: oid.MustParse(testRoot + ".1.0")},
		}}, 7, 100, binary.BigEndian)

		h, pdu := m.recv()
		require.Equal(t, agentx.PDUResponse, h.Type)
		assert.Equal(t, uint32(7), h.TransactionID)
		assert.Equal(t, uint32(100), h.PacketID)

		resp := pdu.(*agentx.Response)
		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, agentx.IntegerValue(42), resp.VarBinds[0].Value)
	})

	t.Run("getnext advances to the octet string", func(t *testing.T) {
		m.send(&agentx.GetNext{Ranges: []agentx.SearchRange{
			{Start: oid.MustParse(testRoot + ".1.0")},
		}}, 8, 101, binary.BigEndian)

		_, pdu := m.recv()
		resp := pdu.(*agentx.Response)
		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, testRoot+".2.0", resp.VarBinds[0].Name.String())
		assert.Equal(t, agentx.StringValue("hello"), resp.VarBinds[0].Value)
	})

	t.Run("getbulk ends with endOfMibView", func(t *testing.T) {
		m.send(&agentx.GetBulk{
			MaxRepetitions: 3,
			Ranges:         []agentx.SearchRange{{Start: oid.MustParse(testRoot + ".0")}},
		}, 9, 102, binary.BigEndian)

		_, pdu := m.recv()
		resp := pdu.(*agentx.Response)
		require.Len(t, resp.VarBinds, 3)
		assert.Equal(t, agentx.EndOfMibViewValue(), resp.VarBinds[2].Value)
	})

	t.Run("replies honor the request byte order", func(t *testing.T) {
		m.send(&agentx.Get{Ranges: []agentx.SearchRange{
			{Start: oid.MustParse(testRoot + ".1.0")},
		}}, 10, 103, binary.LittleEndian)

		h, _ := m.recv()
		assert.Zero(t, h.Flags&agentx.FlagNetworkByteOrder)
		assert.Equal(t, uint32(103), h.PacketID)
	})

	t.Run("responses keep request order", func(t *testing.T) {
		m.send(&agentx.Get{Ranges: []agentx.SearchRange{
			{Start: oid.MustParse(testRoot + ".1.0")},
		}}, 11, 104, binary.BigEndian)
		m.send(&agentx.Get{Ranges: []agentx.SearchRange{
			{Start: oid.MustParse(testRoot + ".2.0")},
		}}, 11, 105, binary.BigEndian)

		h1, _ := m.recv()
		h2, _ := m.recv()
		assert.Equal(t, uint32(104), h1.PacketID)
		assert.Equal(t, uint32(105), h2.PacketID)
	})

	t.Run("inbound ping gets a clean response", func(t *testing.T) {
		m.send(&agentx.Ping{}, 12, 106, binary.BigEndian)

		_, pdu := m.recv()
		assert.Equal(t, agentx.NoAgentXError, pdu.(*agentx.Response).Error)
	})
}

func TestSessionNotify(t *testing.T) {
	s, m, cancel := startSession(t)
	defer cancel()

	notifyErr := make(chan error, 1)

	go func() {
		notifyErr <- s.Notify(context.Background(), []agentx.VarBind{
			{Name: oid.MustParse("1.3.6.1.6.3.1.1.4.1.0"), Value: agentx.OIDValue(oid.MustParse(testRoot))},
		})
	}()

	h, pdu := m.recv()
	require.Equal(t, agentx.PDUNotify, h.Type)
	require.IsType(t, &agentx.Notify{}, pdu)

	m.send(&agentx.Response{}, h.TransactionID, h.PacketID, binary.BigEndian)

	select {
	case err := <-notifyErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("notify never completed")
	}
}

func TestSessionReconnectsAndReregisters(t *testing.T) {
	s, m, cancel := startSession(t)
	defer cancel()

	// Kill the transport out from under the session.
	m.conn.drop()

	// The subagent reconnects after its initial backoff, re-opens,
	// and re-registers the same region.
	m2 := newMaster(t, m.tr, 43)
	m2.accept()
	m2.serveHandshake(agentx.NoAgentXError)

	require.Eventually(t, func() bool {
		return s.State() == StateActive && s.SessionID() == 43
	}, 5*time.Second, 10*time.Millisecond)

	// And it serves again.
	m2.send(&agentx.Get{Ranges: []agentx.SearchRange{
		{Start: oid.MustParse(testRoot + ".1.0")},
	}}, 1, 200, binary.BigEndian)

	_, pdu := m2.recv()
	resp := pdu.(*agentx.Response)
	require.Len(t, resp.VarBinds, 1)
	assert.Equal(t, agentx.IntegerValue(42), resp.VarBinds[0].Value)
}

func TestSessionSurfacesRegistrationRejection(t *testing.T) {
	tr := newFakeTransport()

	s, err := NewSession(e2eConfig(), WithTransport(tr))
	require.NoError(t, err)

	r, err := s.Register(RegionConfig{
		Root:    oid.MustParse(testRoot),
		Updater: &staticUpdater{values: sampleValues()},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))

	m := newMaster(t, tr, 42)
	m.accept()
	m.serveHandshake(agentx.DuplicateRegistration)

	// The session stays up; the region carries the error.
	require.Eventually(t, func() bool { return s.State() == StateActive }, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, r.Err(), ErrRegistration)
}

func TestSessionStopSendsClose(t *testing.T) {
	s, m, cancel := startSession(t)
	defer cancel()

	stopErr := make(chan error, 1)

	go func() {
		ctx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelStop()
		stopErr <- s.Stop(ctx)
	}()

	h, pdu := m.recv()
	require.Equal(t, agentx.PDUClose, h.Type)
	assert.Equal(t, agentx.CloseReasonShutdown, pdu.(*agentx.Close).Reason)

	m.send(&agentx.Response{}, h.TransactionID, h.PacketID, binary.BigEndian)

	select {
	case err := <-stopErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session never stopped")
	}

	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionSurvivesDroppedFrames(t *testing.T) {
	s, m, cancel := startSession(t)
	defer cancel()

	// The transport reports a frame it discarded (unknown type,
	// payload skipped). The session must log it and stay up.
	m.tr.readErrs <- fmt.Errorf("%w: %w", ErrPDUDropped, agentx.ErrUnknownPDUType)

	m.send(&agentx.Get{Ranges: []agentx.SearchRange{
		{Start: oid.MustParse(testRoot + ".1.0")},
	}}, 3, 400, binary.BigEndian)

	h, pdu := m.recv()
	assert.Equal(t, uint32(400), h.PacketID)
	require.Len(t, pdu.(*agentx.Response).VarBinds, 1)

	assert.Equal(t, StateActive, s.State())
}

func TestSessionDropsMalformedPDUs(t *testing.T) {
	s, m, cancel := startSession(t)
	defer cancel()

	// A frame whose payload does not decode: valid header, garbage
	// payload for its type.
	h := agentx.NewHeader(agentx.PDUClose, 42, 1, 300, agentx.FlagNetworkByteOrder)
	h.PayloadLength = 3
	m.conn.in <- frame{h: h, payload: []byte{1, 2, 3}}

	// The session drops it and keeps serving.
	m.send(&agentx.Get{Ranges: []agentx.SearchRange{
		{Start: oid.MustParse(testRoot + ".1.0")},
	}}, 2, 301, binary.BigEndian)

	hr, pdu := m.recv()
	assert.Equal(t, uint32(301), hr.PacketID)
	require.Len(t, pdu.(*agentx.Response).VarBinds, 1)

	assert.Equal(t, StateActive, s.State())
}
