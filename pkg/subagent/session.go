// Package subagent pkg/subagent/session.go
//
// Package subagent implements an RFC 2741 AgentX subagent: a session
// to the master agent that registers OID regions, serves variable
// binding requests from updater-published snapshots, and processes
// writes through the two-phase SET protocol.
//
// The session runs one event loop that owns the transport, the pending
// request table, and all SET transaction state. Updaters run
// concurrently and only touch their region's snapshot pointer.
package subagent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/metrics"
	"github.com/snmpkit/agentx/pkg/oid"
)

// State is the session lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateRegistering
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRegistering:
		return "registering"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	backoffBase   = time.Second
	backoffCap    = 60 * time.Second
	backoffJitter = 0.25

	closeWait = 2 * time.Second
)

// frame is one inbound PDU, header decoded, payload still raw.
type frame struct {
	h       agentx.Header
	payload []byte
}

// outboundRequest is a PDU the session originates (Ping, Notify); the
// response is matched by packet id and delivered on resp.
type outboundRequest struct {
	pdu  agentx.PDU
	resp chan *agentx.Response
}

// Option customizes a session.
type Option func(*Session)

// WithTransport substitutes the stream transport, mainly for tests.
func WithTransport(t Transport) Option {
	return func(s *Session) { s.transport = t }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one AgentX subagent connection.
type Session struct {
	cfg       *Config
	agentID   oid.OID
	transport Transport
	metrics   *metrics.Metrics
	protoLog  *rate.Limiter

	packetID atomic.Uint32

	mu        sync.RWMutex
	state     State
	sessionID uint32
	regions   []*Region
	running   bool
	startedAt time.Time
	stopFn    context.CancelFunc
	done      chan struct{}

	outbox  chan outboundRequest
	unregCh chan *Region

	// Loop-confined state: only the serve loop touches these.
	pending      map[uint32]chan *agentx.Response
	transactions map[uint32]*setTransaction
}

// NewSession validates the configuration and prepares a session. Call
// Register to declare regions, then Start or Run.
func NewSession(cfg *Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	agentID, err := oid.Parse(cfg.AgentID)
	if err != nil {
		return nil, fmt.Errorf("agent_id: %w", err)
	}

	s := &Session{
		cfg:          cfg,
		agentID:      agentID,
		protoLog:     rate.NewLimiter(rate.Every(time.Second), 5),
		outbox:       make(chan outboundRequest, 16),
		unregCh:      make(chan *Region, 4),
		pending:      make(map[uint32]chan *agentx.Response),
		transactions: make(map[uint32]*setTransaction),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.transport == nil {
		s.transport = NewStreamTransport(cfg.MasterAddress)
	}

	return s, nil
}

// Register declares a region to serve. Regions are declared before the
// session starts; registration with the master happens during the
// connect handshake (and again after every reconnect).
func (s *Session) Register(cfg RegionConfig) (*Region, error) {
	if cfg.Updater == nil {
		return nil, ErrNoUpdater
	}

	if len(cfg.Root) == 0 {
		return nil, fmt.Errorf("%w: empty root", oid.ErrInvalidOID)
	}

	if cfg.Interval != 0 && cfg.Interval < minRefreshInterval {
		return nil, errIntervalTooSmall
	}

	region := newRegion(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrSessionRunning
	}

	for _, existing := range s.regions {
		if existing.overlaps(region) {
			return nil, fmt.Errorf("%w: %s vs %s", ErrRegionOverlap, region.root, existing.root)
		}
	}

	s.regions = append(s.regions, region)

	return region, nil
}

// Unregister withdraws a region. On a running session the master is
// told with an Unregister PDU and the region's updater stops.
func (s *Session) Unregister(r *Region) error {
	s.mu.Lock()

	idx := -1

	for i, existing := range s.regions {
		if existing == r {
			idx = i
			break
		}
	}

	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("region %s is not registered", r.root)
	}

	running := s.running
	s.mu.Unlock()

	if !running {
		s.removeRegion(r)
		return nil
	}

	select {
	case s.unregCh <- r:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) removeRegion(r *Region) {
	s.mu.Lock()

	for i, existing := range s.regions {
		if existing == r {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			break
		}
	}

	s.mu.Unlock()

	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Start launches the session loop in the background. Stop shuts it
// down.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		return ErrSessionRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.stopFn = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer s.finish()

		if err := s.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Session ended: %v", err)
		}
	}()

	return nil
}

// Run drives the session on the calling goroutine until ctx is
// cancelled or Stop is called.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		return ErrSessionRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.stopFn = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	defer s.finish()

	return s.run(runCtx)
}

func (s *Session) finish() {
	s.mu.Lock()
	s.running = false
	s.state = StateDisconnected
	done := s.done
	s.mu.Unlock()

	close(done)
}

// Stop cancels the session loop and waits for it to exit.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		return nil
	}

	stop := s.stopFn
	done := s.done
	s.mu.Unlock()

	stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for session to stop: %w", ErrTimeout, ctx.Err())
	}
}

// run is the reconnect loop: establish, serve, back off, repeat.
func (s *Session) run(ctx context.Context) error {
	backoff := backoffBase

	for {
		established, err := s.runOnce(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			log.Printf("Session error: %v", err)
		}

		if s.cfg.DisableReconnect {
			return err
		}

		if established {
			backoff = backoffBase
		}

		delay := withJitter(backoff)
		log.Printf("Reconnecting to %s in %v", s.cfg.MasterAddress, delay)
		s.metrics.Reconnect()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if backoff < backoffCap {
			backoff *= 2
			if backoff > backoffCap {
				backoff = backoffCap
			}
		}
	}
}

// withJitter spreads a delay by ±25% so a restarted master is not hit
// by synchronized subagents.
func withJitter(d time.Duration) time.Duration {
	f := 1 + backoffJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * f)
}

// runOnce performs one complete session: connect, open, register,
// serve. It reports whether the session reached the active state.
func (s *Session) runOnce(ctx context.Context) (established bool, err error) {
	s.setState(StateConnecting)

	if err := s.transport.Connect(ctx); err != nil {
		s.setState(StateDisconnected)
		return false, err
	}

	defer func() {
		_ = s.transport.Close()
		s.dropTransactions()
		s.dropPending()
		s.setState(StateDisconnected)
	}()

	if err := s.open(); err != nil {
		return false, err
	}

	s.setState(StateRegistering)

	if err := s.registerAll(); err != nil {
		return false, err
	}

	stopUpdaters := s.startUpdaters(ctx)
	defer stopUpdaters()

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.setState(StateActive)
	log.Printf("Session %d active, serving %d region(s)", s.SessionID(), len(s.regionList()))

	return true, s.serve(ctx)
}

// open performs the Open handshake and adopts the master's session id.
func (s *Session) open() error {
	pid := s.nextPacketID()

	raw, err := agentx.Marshal(&agentx.Open{
		Timeout:     s.cfg.timeoutSeconds(),
		ID:          s.agentID,
		Description: []byte(s.cfg.Description),
	}, 0, 0, pid)
	if err != nil {
		return err
	}

	if err := s.write(raw, agentx.PDUOpen); err != nil {
		return err
	}

	h, resp, err := s.awaitResponse(pid)
	if err != nil {
		return err
	}

	if resp.Error != agentx.NoAgentXError {
		return fmt.Errorf("%w: code %d", ErrOpenFailed, resp.Error)
	}

	s.mu.Lock()
	s.sessionID = h.SessionID
	s.state = StateOpen
	s.mu.Unlock()

	return nil
}

// registerAll registers every declared region. A master rejection
// marks the region failed and the session carries on; a transport
// failure aborts the whole session.
func (s *Session) registerAll() error {
	for _, r := range s.regionList() {
		pid := s.nextPacketID()

		raw, err := agentx.Marshal(&agentx.Register{
			Context:    r.context,
			Timeout:    s.cfg.timeoutSeconds(),
			Priority:   r.priority,
			RangeSubID: r.rangeSubID,
			Subtree:    r.root,
			UpperBound: r.upperBound,
			Instance:   r.instance,
		}, s.SessionID(), 0, pid)
		if err != nil {
			return err
		}

		if err := s.write(raw, agentx.PDURegister); err != nil {
			return err
		}

		_, resp, err := s.awaitResponse(pid)
		if err != nil {
			return err
		}

		if resp.Error != agentx.NoAgentXError {
			regErr := fmt.Errorf("%w: %s: code %d", ErrRegistration, r.root, resp.Error)
			r.setRegistered(false, regErr)
			log.Printf("Master rejected region %s: code %d", r.root, resp.Error)

			continue
		}

		r.setRegistered(true, nil)
	}

	return nil
}

// awaitResponse reads frames synchronously until the Response matching
// pid arrives. Used only during the handshake, before the serve loop
// owns the transport.
func (s *Session) awaitResponse(pid uint32) (agentx.Header, *agentx.Response, error) {
	for {
		h, payload, err := s.transport.Read()
		if err != nil {
			if errors.Is(err, ErrPDUDropped) {
				s.logProtocolError(err)
				continue
			}

			return agentx.Header{}, nil, err
		}

		pdu, err := agentx.Unmarshal(h, payload)
		if err != nil {
			s.logProtocolError(err)
			continue
		}

		resp, ok := pdu.(*agentx.Response)
		if !ok || h.PacketID != pid {
			s.logProtocolError(fmt.Errorf("unexpected %s during handshake", h.Type))
			continue
		}

		return h, resp, nil
	}
}

// serve is the dispatch loop. It is the sole writer of the transport
// and the sole owner of pending requests and SET transactions.
func (s *Session) serve(ctx context.Context) error {
	framec := make(chan frame, 8)
	readErr := make(chan error, 1)
	loopDone := make(chan struct{})

	defer close(loopDone)

	go func() {
		for {
			h, payload, err := s.transport.Read()
			if err != nil {
				// The transport discarded an unusable frame but the
				// stream is still in sync; keep reading.
				if errors.Is(err, ErrPDUDropped) {
					s.metrics.MalformedPDU()
					s.logProtocolError(err)

					continue
				}

				select {
				case readErr <- err:
				case <-loopDone:
				}

				return
			}

			select {
			case framec <- frame{h: h, payload: payload}:
			case <-loopDone:
				return
			}
		}
	}()

	var pingC <-chan time.Time

	if interval := time.Duration(s.cfg.PingInterval); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	gcTicker := time.NewTicker(time.Duration(s.cfg.Timeout))
	defer gcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.gracefulClose(framec)
			return ctx.Err()

		case err := <-readErr:
			return err

		case f := <-framec:
			if err := s.handleFrame(ctx, f); err != nil {
				return err
			}

		case req := <-s.outbox:
			s.sendRequest(req)

		case r := <-s.unregCh:
			s.sendUnregister(r)

		case <-pingC:
			s.sendPing()

		case <-gcTicker.C:
			s.sweepTransactions(ctx, time.Duration(s.cfg.Timeout))
		}
	}
}

// handleFrame decodes and dispatches one inbound PDU. Malformed
// payloads are dropped without killing the session; the stream itself
// is still framed correctly.
func (s *Session) handleFrame(ctx context.Context, f frame) error {
	s.metrics.PDUReceived(f.h.Type.String())

	pdu, err := agentx.Unmarshal(f.h, f.payload)
	if err != nil {
		s.metrics.MalformedPDU()
		s.logProtocolError(err)

		return nil
	}

	if f.h.SessionID != s.SessionID() && f.h.Type != agentx.PDUResponse {
		s.logProtocolError(fmt.Errorf("PDU for session %d on session %d", f.h.SessionID, s.SessionID()))
		return nil
	}

	switch p := pdu.(type) {
	case *agentx.Get:
		return s.respond(f.h, s.handleGet(p))
	case *agentx.GetNext:
		return s.respond(f.h, s.handleGetNext(p))
	case *agentx.GetBulk:
		return s.respond(f.h, s.handleGetBulk(p))
	case *agentx.TestSet:
		return s.respond(f.h, s.handleTestSet(ctx, f.h, p))
	case *agentx.CommitSet:
		return s.respond(f.h, s.handleCommitSet(ctx, f.h))
	case *agentx.UndoSet:
		return s.respond(f.h, s.handleUndoSet(ctx, f.h))
	case *agentx.CleanupSet:
		s.handleCleanupSet(ctx, f.h)
		return nil
	case *agentx.Response:
		s.handleResponse(f.h, p)
		return nil
	case *agentx.Close:
		_ = s.respond(f.h, s.newResponse(agentx.NoAgentXError, 0))
		return fmt.Errorf("%w: reason %d", ErrMasterClosed, p.Reason)
	default:
		// Administrative PDUs (Ping and friends) get an empty
		// success response.
		return s.respond(f.h, s.newResponse(agentx.NoAgentXError, 0))
	}
}

// respond sends a Response for an inbound request, echoing the
// request's ids and byte order.
func (s *Session) respond(req agentx.Header, resp *agentx.Response) error {
	raw, err := agentx.MarshalOrder(resp, s.SessionID(), req.TransactionID, req.PacketID, req.Flags.ByteOrder())
	if err != nil {
		// Response construction already degraded invalid values to
		// genErr/Null, so this is a programming error worth surfacing.
		return fmt.Errorf("marshal response: %w", err)
	}

	return s.write(raw, agentx.PDUResponse)
}

// handleResponse resolves a Response to a PDU this subagent sent.
func (s *Session) handleResponse(h agentx.Header, p *agentx.Response) {
	ch, ok := s.pending[h.PacketID]
	if !ok {
		s.logProtocolError(fmt.Errorf("response for unknown packet %d", h.PacketID))
		return
	}

	delete(s.pending, h.PacketID)

	if ch != nil {
		ch <- p
	}
}

// sendRequest writes a session-originated PDU and parks its reply
// channel in the pending table.
func (s *Session) sendRequest(req outboundRequest) {
	pid := s.nextPacketID()

	raw, err := agentx.Marshal(req.pdu, s.SessionID(), 0, pid)
	if err == nil {
		err = s.write(raw, req.pdu.PDUType())
	}

	if err != nil {
		log.Printf("Failed to send %s: %v", req.pdu.PDUType(), err)

		if req.resp != nil {
			close(req.resp)
		}

		return
	}

	s.pending[pid] = req.resp
}

func (s *Session) sendPing() {
	s.sendRequest(outboundRequest{pdu: &agentx.Ping{}})
}

// sendUnregister tells the master a region is gone and stops its
// updater.
func (s *Session) sendUnregister(r *Region) {
	pid := s.nextPacketID()

	raw, err := agentx.Marshal(&agentx.Unregister{
		Context:    r.context,
		Priority:   r.priority,
		RangeSubID: r.rangeSubID,
		Subtree:    r.root,
		UpperBound: r.upperBound,
	}, s.SessionID(), 0, pid)
	if err == nil {
		err = s.write(raw, agentx.PDUUnregister)
	}

	if err != nil {
		log.Printf("Failed to unregister region %s: %v", r.root, err)
	} else {
		s.pending[pid] = nil
	}

	s.removeRegion(r)
	r.setRegistered(false, nil)
}

// gracefulClose sends Close and waits briefly for the master's
// acknowledgment before the transport is torn down.
func (s *Session) gracefulClose(framec <-chan frame) {
	s.setState(StateClosing)

	raw, err := agentx.Marshal(&agentx.Close{Reason: agentx.CloseReasonShutdown},
		s.SessionID(), 0, s.nextPacketID())
	if err != nil || s.write(raw, agentx.PDUClose) != nil {
		return
	}

	timer := time.NewTimer(closeWait)
	defer timer.Stop()

	for {
		select {
		case f := <-framec:
			if f.h.Type == agentx.PDUResponse {
				return
			}
		case <-timer.C:
			return
		}
	}
}

// Notify sends a notification through the master and waits for its
// acknowledgment.
func (s *Session) Notify(ctx context.Context, varbinds []agentx.VarBind) error {
	return s.request(ctx, &agentx.Notify{VarBinds: varbinds})
}

// Ping sends an application-level keepalive and waits for the
// response.
func (s *Session) Ping(ctx context.Context) error {
	return s.request(ctx, &agentx.Ping{})
}

// request hands a session-originated PDU to the loop and waits for the
// master's Response.
func (s *Session) request(ctx context.Context, pdu agentx.PDU) error {
	req := outboundRequest{
		pdu:  pdu,
		resp: make(chan *agentx.Response, 1),
	}

	s.mu.RLock()
	running := s.running
	done := s.done
	s.mu.RUnlock()

	if !running {
		return ErrSessionClosed
	}

	select {
	case s.outbox <- req:
	case <-done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case resp, ok := <-req.resp:
		if !ok {
			return fmt.Errorf("%w: %s not sent", ErrConnection, pdu.PDUType())
		}

		if resp.Error != agentx.NoAgentXError {
			return fmt.Errorf("%s rejected by master: code %d", pdu.PDUType(), resp.Error)
		}

		return nil
	case <-done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) write(raw []byte, t agentx.PDUType) error {
	if err := s.transport.Write(raw); err != nil {
		return err
	}

	s.metrics.PDUSent(t.String())

	return nil
}

func (s *Session) dropPending() {
	for pid, ch := range s.pending {
		delete(s.pending, pid)

		if ch != nil {
			close(ch)
		}
	}
}

func (s *Session) nextPacketID() uint32 {
	return s.packetID.Add(1)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SessionID returns the id the master assigned, zero before Open.
func (s *Session) SessionID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sessionID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Session) regionList() []*Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]*Region(nil), s.regions...)
}

// newResponse stamps a Response with the session's uptime.
func (s *Session) newResponse(code agentx.ResponseError, index uint16) *agentx.Response {
	return &agentx.Response{SysUpTime: s.uptimeTicks(), Error: code, Index: index}
}

// uptimeTicks is the session age in hundredths of a second.
func (s *Session) uptimeTicks() uint32 {
	s.mu.RLock()
	started := s.startedAt
	s.mu.RUnlock()

	if started.IsZero() {
		return 0
	}

	return uint32(time.Since(started) / (10 * time.Millisecond))
}

func (s *Session) logProtocolError(err error) {
	if s.protoLog.Allow() {
		log.Printf("Protocol error (dropping PDU): %v", err)
	}
}
