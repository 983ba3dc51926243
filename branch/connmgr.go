package branch

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"net"
	"sync"
	"time"

	libgenerr "github.com/yohummus/yogi-framework-sub001/errors"
	libdef "github.com/yohummus/yogi-framework-sub001/internal/defaults"
	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	liblog "github.com/yohummus/yogi-framework-sub001/logger"
	libmsg "github.com/yohummus/yogi-framework-sub001/msgtransport"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
	libtrans "github.com/yohummus/yogi-framework-sub001/transport"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
	libtime "github.com/yohummus/yogi-framework-sub001/ytime"
)

// State is one node of the per-peer connection state machine (spec §4.I).
type State int

const (
	Idle State = iota
	AwaitingConnect
	Handshake
	Active
	Closing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case AwaitingConnect:
		return "AWAITING_CONNECT"
	case Handshake:
		return "HANDSHAKE"
	case Active:
		return "ACTIVE"
	case Closing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Connection is the tuple spec §3 defines: everything the manager tracks
// for one peer slot across its lifetime.
type Connection struct {
	PeerAddr           *net.TCPAddr
	Local              Info
	Remote             Info
	Msg                *libmsg.MsgTransport
	State              State
	CreatedFromIncoming bool
	ConnectedSince     time.Time
}

type slot struct {
	uuid libuid.UUID
	conn Connection
	tr   *libtrans.TCP
	hb   *Timer
	gen  uint64
}

// ManagerConfig bundles the local descriptor and limits a Manager needs
// to accept and originate connections.
type ManagerConfig struct {
	Local           Info
	Password        string
	ListenAddr      string
	TxQueueSize     int
	RxQueueSize     int
	TransceiveLimit int
	ConnectTimeout  time.Duration
}

// Manager is the connection manager (spec §4.I): one slot per known peer
// UUID, driven by advertising discoveries and incoming TCP accepts.
type Manager struct {
	reactor      *libreact.Context
	cfg          ManagerConfig
	passwordHash [sha256.Size]byte
	log          liblog.Logger

	ln       net.Listener
	tcpPort  uint16
	acceptG  *libtrans.Guard

	mu    sync.Mutex
	slots map[libuid.UUID]*slot

	events      *eventStream
	onBroadcast func(from libuid.UUID, payload []byte)
}

// NewManager opens a TCP listener on cfg.ListenAddr and begins accepting
// incoming handshakes. events is the Branch-owned event stream that
// BranchDiscovered/BranchQueried/ConnectFinished/ConnectionLost are
// published to; a ghost branch has no Manager, so it publishes
// BranchDiscovered to the same stream directly instead (spec §4.I).
// Ghost-mode branches should not call NewManager at all.
func NewManager(reactor *libreact.Context, cfg ManagerConfig, log liblog.Logger, events *eventStream) (*Manager, error) {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, liberr.ListenSocketFailed.Error(err)
	}

	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	m := &Manager{
		reactor:      reactor,
		cfg:          cfg,
		passwordHash: sha256.Sum256([]byte(cfg.Password)),
		log:          log,
		ln:           ln,
		tcpPort:      port,
		slots:        map[libuid.UUID]*slot{},
		events:       events,
	}

	m.acceptLoop()
	return m, nil
}

// TCPPort reports the port this Manager's listener is bound to.
func (m *Manager) TCPPort() uint16 { return m.tcpPort }

func (m *Manager) acceptLoop() {
	m.acceptG = libtrans.AcceptAsync(m.reactor, m.ln, m.cfg.TransceiveLimit, func(tr *libtrans.TCP, err error) {
		if err != nil {
			return
		}
		go m.runHandshake(tr, true, nil)
		m.acceptLoop()
	})
}

// OnDiscovered is the advertising receiver's callback: spec §4.I's
// discovery trigger. A UUID strictly greater than ours originates an
// outgoing connect; a strictly smaller one is left to connect to us; an
// equal UUID is a self-loop and is ignored.
func (m *Manager) OnDiscovered(uuid libuid.UUID, endpoint *net.TCPAddr) {
	if uuid == m.cfg.Local.UUID {
		return
	}

	m.mu.Lock()
	s, exists := m.slots[uuid]
	if !exists {
		s = &slot{uuid: uuid}
		m.slots[uuid] = s
	}
	shouldConnect := uuid.Compare(m.cfg.Local.UUID) > 0 && s.conn.State == Idle
	if shouldConnect {
		s.conn.State = AwaitingConnect
	}
	m.mu.Unlock()

	m.events.publish(Event{Type: BranchDiscovered, UUID: uuid})

	if !shouldConnect {
		return
	}

	libtrans.ConnectAsync(m.reactor, endpoint.String(), m.cfg.ConnectTimeout, m.cfg.TransceiveLimit, func(tr *libtrans.TCP, err error) {
		if err != nil {
			m.resetSlot(uuid)
			m.events.publish(Event{Type: ConnectFinished, UUID: uuid, Err: err})
			return
		}
		go m.runHandshake(tr, false, &uuid)
	})
}

// runHandshake performs the symmetric handshake (spec §4.I steps 1-8) on
// its own goroutine, synchronizing against the transport's async
// primitives with done channels, then posts the outcome back through the
// event stream on the reactor.
func (m *Manager) runHandshake(tr *libtrans.TCP, incoming bool, expectUUID *libuid.UUID) {
	timeout := m.cfg.ConnectTimeout

	// Step 1: send own info message.
	myMsg := buildInfoMessage(m.cfg.Local, m.tcpPort)
	if err := sendAllSync(tr, myMsg, timeout); err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(nil, err, incoming)
		return
	}

	// Step 2: receive peer's info message.
	prefix, err := receiveAllSync(tr, libdef.AdvertisingMessageSize, timeout)
	if err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(nil, err, incoming)
		return
	}
	peerUUID, peerPort, err := decodeAdvPrefix(prefix)
	if err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(nil, err, incoming)
		return
	}
	if peerUUID == m.cfg.Local.UUID {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, liberr.LoopbackConnection.Error(nil), incoming)
		return
	}
	if expectUUID != nil && peerUUID != *expectUUID {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, liberr.DeserializeMsgFailed.Error(fmt.Errorf("branch: peer uuid does not match the discovered endpoint")), incoming)
		return
	}

	lenBuf, err := receiveAllSync(tr, 4, timeout)
	if err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}
	bodyLen := be32(lenBuf)
	if bodyLen > libdef.MaxMessagePayloadSize {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, liberr.PayloadTooLarge.Error(nil), incoming)
		return
	}
	body, err := receiveAllSync(tr, int(bodyLen), timeout)
	if err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}
	peerInfo, err := DecodeBody(peerUUID, body)
	if err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}
	m.events.publish(Event{Type: BranchQueried, UUID: peerUUID, Info: peerInfo})

	// Step 3: exchange acks.
	if err := m.exchangeAck(tr, timeout); err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}

	// Steps 4-5: challenge/response.
	myChallenge := make([]byte, challengeSize)
	if _, err := rand.Read(myChallenge); err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, liberr.Unknown.Error(err), incoming)
		return
	}
	if err := sendAllSync(tr, myChallenge, timeout); err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}
	remoteChallenge, err := receiveAllSync(tr, challengeSize, timeout)
	if err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}

	mySolution := solutionOf(myChallenge, m.passwordHash)
	remoteSolution := solutionOf(remoteChallenge, m.passwordHash)

	if err := sendAllSync(tr, remoteSolution, timeout); err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}
	peerReply, err := receiveAllSync(tr, solutionSize, timeout)
	if err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}
	if !bytesEqual(peerReply, mySolution) {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, liberr.PasswordMismatch.Error(nil), incoming)
		return
	}

	// Step 6: exchange acks a second time.
	if err := m.exchangeAck(tr, timeout); err != nil {
		tr.Shutdown()
		m.reportHandshakeFailure(&peerUUID, err, incoming)
		return
	}

	// Step 7: validate against existing slots, on the reactor so no other
	// handshake can race the check-and-commit.
	done := make(chan error, 1)
	m.reactor.Post(func() {
		done <- m.admit(peerUUID, peerInfo, peerPort, tr, incoming)
	})
	if err := <-done; err != nil {
		tr.Shutdown()
		m.events.publish(Event{Type: ConnectFinished, UUID: peerUUID, Info: peerInfo, Err: err})
		return
	}

	m.events.publish(Event{Type: ConnectFinished, UUID: peerUUID, Info: peerInfo})
}

// admit runs on the reactor: it performs step 7's duplicate checks, builds
// the ACTIVE Connection, and arms the heartbeat timer (step 8).
func (m *Manager) admit(peerUUID libuid.UUID, peerInfo Info, peerPort uint16, tr *libtrans.TCP, incoming bool) error {
	if peerInfo.NetworkName != m.cfg.Local.NetworkName {
		return liberr.NetNameMismatch.Error(nil)
	}

	m.mu.Lock()
	for uuid, s := range m.slots {
		if uuid == peerUUID {
			continue
		}
		if s.conn.State == Active && s.conn.Remote.Name == peerInfo.Name {
			m.mu.Unlock()
			return liberr.DuplicateBranchName.Error(nil)
		}
		if s.conn.State == Active && s.conn.Remote.Path == peerInfo.Path {
			m.mu.Unlock()
			return liberr.DuplicateBranchPath.Error(nil)
		}
	}

	s, exists := m.slots[peerUUID]
	if !exists {
		s = &slot{uuid: peerUUID}
		m.slots[peerUUID] = s
	}

	// Both sides may have completed a handshake concurrently; the
	// higher-UUID connection wins (spec §4.I).
	if s.conn.State == Active {
		winnerIsIncoming := peerUUID.Compare(m.cfg.Local.UUID) < 0
		if winnerIsIncoming != incoming {
			m.mu.Unlock()
			return liberr.LoopbackConnection.Error(fmt.Errorf("duplicate connection superseded"))
		}
		s.tr.Shutdown()
	}

	msg := libmsg.New(m.reactor, tr, m.cfg.TxQueueSize, m.cfg.RxQueueSize)
	s.tr = tr
	s.gen++
	gen := s.gen
	s.conn = Connection{
		PeerAddr:            peerAddrOf(tr),
		Local:               m.cfg.Local,
		Remote:              peerInfo,
		Msg:                 msg,
		State:               Active,
		CreatedFromIncoming: incoming,
		ConnectedSince:      time.Now(),
	}
	s.hb = NewTimer(m.reactor)
	m.mu.Unlock()

	m.armHeartbeat(s, gen, peerInfo.Timeout)
	m.startReceiveLoop(s, gen)
	return nil
}

func peerAddrOf(tr *libtrans.TCP) *net.TCPAddr {
	addr, err := net.ResolveTCPAddr("tcp", tr.PeerDescription())
	if err != nil {
		return nil
	}
	return addr
}

func (m *Manager) armHeartbeat(s *slot, gen uint64, remoteTimeout libtime.Duration) {
	if remoteTimeout.IsInfinite() {
		return
	}
	period := remoteTimeout.Time() / 2
	var tick func()
	tick = func() {
		m.mu.Lock()
		if s.gen != gen || s.conn.State != Active {
			m.mu.Unlock()
			return
		}
		msg := s.conn.Msg
		m.mu.Unlock()

		msg.TrySend(nil)
		s.hb.StartAsync(period, func(err error) {
			if err == nil {
				tick()
			}
		})
	}
	s.hb.StartAsync(period, func(err error) {
		if err == nil {
			tick()
		}
	})
}

func (m *Manager) startReceiveLoop(s *slot, gen uint64) {
	buf := make([]byte, maxReceiveBuffer)
	var recv func()
	recv = func() {
		m.mu.Lock()
		if s.gen != gen || s.conn.State != Active {
			m.mu.Unlock()
			return
		}
		msg := s.conn.Msg
		m.mu.Unlock()

		msg.ReceiveAsync(buf, func(n, trueLen int, err error) {
			if err != nil && libgenerr.IsCode(err, liberr.BufferTooSmall) {
				recv()
				return
			}
			if err != nil {
				m.closeSlot(s, gen, err)
				return
			}
			if n > 0 && m.onBroadcast != nil {
				m.onBroadcast(s.uuid, append([]byte(nil), buf[:n]...))
			}
			recv()
		})
	}
	recv()
}

func (m *Manager) closeSlot(s *slot, gen uint64, err error) {
	m.mu.Lock()
	if s.gen != gen {
		m.mu.Unlock()
		return
	}
	s.conn.State = Closing
	if s.tr != nil {
		s.tr.Shutdown()
	}
	if s.hb != nil {
		s.hb.Destroy()
	}
	s.conn.State = Idle
	m.mu.Unlock()

	m.events.publish(Event{Type: ConnectionLost, UUID: s.uuid, Err: err})
}

func (m *Manager) resetSlot(uuid libuid.UUID) {
	m.mu.Lock()
	if s, ok := m.slots[uuid]; ok {
		s.conn.State = Idle
	}
	m.mu.Unlock()
}

func (m *Manager) reportHandshakeFailure(uuid *libuid.UUID, err error, incoming bool) {
	if uuid != nil {
		m.resetSlot(*uuid)
		m.events.publish(Event{Type: ConnectFinished, UUID: *uuid, Err: err})
		return
	}
	m.events.publish(Event{Type: ConnectFinished, Err: err})
}

func (m *Manager) exchangeAck(tr *libtrans.TCP, timeout time.Duration) error {
	if err := sendAllSync(tr, []byte{ackByte}, timeout); err != nil {
		return err
	}
	ack, err := receiveAllSync(tr, 1, timeout)
	if err != nil {
		return err
	}
	if ack[0] != ackByte {
		return liberr.DeserializeMsgFailed.Error(fmt.Errorf("branch: unexpected ack byte %#x", ack[0]))
	}
	return nil
}

// Close stops accepting new connections and shuts down every known slot.
func (m *Manager) Close() {
	if m.acceptG != nil {
		m.acceptG.Cancel()
	}
	_ = m.ln.Close()

	m.mu.Lock()
	slots := make([]*slot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	for _, s := range slots {
		m.mu.Lock()
		if s.tr != nil {
			s.tr.Shutdown()
		}
		if s.hb != nil {
			s.hb.Destroy()
		}
		s.conn.State = Idle
		m.mu.Unlock()
	}
}

// ActivePeers returns a snapshot of every peer currently in the ACTIVE
// state, used by the broadcast manager to fan out a payload.
func (m *Manager) ActivePeers() map[libuid.UUID]*libmsg.MsgTransport {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[libuid.UUID]*libmsg.MsgTransport{}
	for uuid, s := range m.slots {
		if s.conn.State == Active {
			out[uuid] = s.conn.Msg
		}
	}
	return out
}

// SetOnBroadcast installs the hook that routes inbound, non-heartbeat
// messages into the broadcast manager; NewBroadcastManager calls it.
func (m *Manager) SetOnBroadcast(fn func(from libuid.UUID, payload []byte)) {
	m.onBroadcast = fn
}

func solutionOf(challenge []byte, passwordHash [sha256.Size]byte) []byte {
	h := sha256.New()
	h.Write(challenge)
	h.Write(passwordHash[:])
	return h.Sum(nil)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
