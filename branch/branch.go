package branch

import (
	"fmt"
	"net"
	"time"

	libadv "github.com/yohummus/yogi-framework-sub001/advertising"
	libdef "github.com/yohummus/yogi-framework-sub001/internal/defaults"
	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	liblog "github.com/yohummus/yogi-framework-sub001/logger"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
)

// Config bundles everything needed to construct a Branch: the local
// descriptor plus the tunables spec §3 calls out for the local side only.
type Config struct {
	Info Info

	Password string

	AdvertisingInterfaces []string
	AdvertisingAddress    string
	AdvertisingPort       uint16

	TCPListenAddr string

	TxQueueSize     int
	RxQueueSize     int
	TransceiveLimit int

	// ConnectTimeout bounds both the outgoing TCP connect and every
	// handshake step; it is independent of Info.Timeout, which instead
	// governs session liveness once ACTIVE (spec §4.I).
	ConnectTimeout time.Duration

	GhostMode bool
}

// DefaultConfig returns a Config with every size/timeout left at the
// package defaults (spec §2/§6), for a branch named name on network
// networkName.
func DefaultConfig(name, description, networkName string) Config {
	return Config{
		Info:                NewLocalInfo(name, description, networkName),
		AdvertisingAddress:  libdef.DefaultAdvAddressIPv4,
		AdvertisingPort:     libdef.DefaultAdvPort,
		TCPListenAddr:       ":0",
		TxQueueSize:         libdef.DefaultTxQueueSize,
		RxQueueSize:         libdef.DefaultRxQueueSize,
		TransceiveLimit:     0,
		ConnectTimeout:      libdef.DefaultConnectionTimeout,
	}
}

// Branch wires the reactor, advertising sender/receiver, connection
// manager, and broadcast manager together (spec §4.K). It is the object
// the public API surfaces.
type Branch struct {
	reactor *libreact.Context
	cfg     Config
	log     liblog.Logger

	mgr       *Manager
	broadcast *BroadcastManager
	sender    *libadv.Sender
	receiver  *libadv.Receiver
	events    *eventStream
}

// New constructs and starts a Branch: it validates cfg, opens the TCP
// listener (unless GhostMode), joins advertising, and begins discovering
// peers. Destroy tears all of that down again.
func New(reactor *libreact.Context, cfg Config, log liblog.Logger) (*Branch, error) {
	cfg.Info.GhostMode = cfg.GhostMode
	if err := cfg.Info.Validate(); err != nil {
		return nil, err
	}

	br := &Branch{reactor: reactor, cfg: cfg, log: log, events: newEventStream(reactor)}

	if !cfg.GhostMode {
		mgr, err := NewManager(reactor, ManagerConfig{
			Local:           cfg.Info,
			Password:        cfg.Password,
			ListenAddr:      cfg.TCPListenAddr,
			TxQueueSize:     clampQueueSize(cfg.TxQueueSize),
			RxQueueSize:     clampQueueSize(cfg.RxQueueSize),
			TransceiveLimit: cfg.TransceiveLimit,
			ConnectTimeout:  cfg.ConnectTimeout,
		}, log, br.events)
		if err != nil {
			return nil, err
		}
		br.mgr = mgr
		br.broadcast = NewBroadcastManager(reactor, mgr)
	}

	group := &net.UDPAddr{IP: net.ParseIP(cfg.AdvertisingAddress), Port: int(cfg.AdvertisingPort)}

	var tcpPort uint16
	if br.mgr != nil {
		tcpPort = br.mgr.TCPPort()
	}

	if !cfg.Info.AdvertisingIntvl.IsInfinite() {
		br.sender = libadv.NewSender(group, cfg.Info.AdvertisingIntvl.Time(), cfg.Info.UUID, tcpPort, log)
		if err := br.sender.Start(cfg.AdvertisingInterfaces); err != nil {
			return nil, err
		}
	}

	br.receiver = libadv.NewReceiver(group, cfg.Info.UUID, br.onDiscovery, log)
	if err := br.receiver.Start(cfg.AdvertisingInterfaces); err != nil {
		return nil, err
	}

	return br, nil
}

func clampQueueSize(n int) int {
	if n < libdef.MinQueueSize {
		return libdef.MinQueueSize
	}
	if n > libdef.MaxQueueSize {
		return libdef.MaxQueueSize
	}
	return n
}

func (br *Branch) onDiscovery(d libadv.Discovery) {
	if br.mgr != nil {
		br.mgr.OnDiscovered(d.UUID, d.Endpoint)
		return
	}
	br.events.publish(Event{Type: BranchDiscovered, UUID: d.UUID})
}

// Info returns the branch's own descriptor.
func (br *Branch) Info() Info { return br.cfg.Info }

// AwaitEventAsync exposes the connection manager's event stream. Ghost
// branches receive only BranchDiscovered, never BranchQueried,
// ConnectFinished or ConnectionLost, since they never open sessions.
func (br *Branch) AwaitEventAsync(mask EventMask, handler func(Event)) error {
	br.events.AwaitEventAsync(mask, handler)
	return nil
}

// CancelAwaitEvent cancels a pending AwaitEventAsync.
func (br *Branch) CancelAwaitEvent() bool {
	return br.events.CancelAwaitEvent()
}

// SendBroadcast is the synchronous fan-out entry point (spec §4.J).
func (br *Branch) SendBroadcast(enc Encoding, payload []byte, block bool) error {
	if br.broadcast == nil {
		return liberr.InvalidHandle.Error(fmt.Errorf("branch: ghost branches cannot send broadcasts"))
	}
	return br.broadcast.SendBroadcast(enc, payload, block)
}

// SendBroadcastAsync is the asynchronous, cancelable fan-out entry point.
func (br *Branch) SendBroadcastAsync(enc Encoding, payload []byte, retry bool, handler func(err error)) (uint64, error) {
	if br.broadcast == nil {
		return 0, liberr.InvalidHandle.Error(fmt.Errorf("branch: ghost branches cannot send broadcasts"))
	}
	return br.broadcast.SendBroadcastAsync(enc, payload, retry, handler)
}

// CancelSendBroadcast cancels a pending send_broadcast_async operation.
func (br *Branch) CancelSendBroadcast(opID uint64) bool {
	if br.broadcast == nil {
		return false
	}
	return br.broadcast.CancelSendBroadcast(opID)
}

// ReceiveBroadcast registers the next inbound-broadcast handler.
func (br *Branch) ReceiveBroadcast(enc Encoding, buf []byte, handler func(n, trueLen int, from libuid.UUID, err error)) error {
	if br.broadcast == nil {
		return liberr.InvalidHandle.Error(fmt.Errorf("branch: ghost branches cannot receive broadcasts"))
	}
	br.broadcast.ReceiveBroadcast(enc, buf, handler)
	return nil
}

// ActivePeerCount reports how many peer sessions are currently ACTIVE.
func (br *Branch) ActivePeerCount() int {
	if br.mgr == nil {
		return 0
	}
	return len(br.mgr.ActivePeers())
}

// Destroy stops advertising, accepting, and every active session. It
// mirrors the registry's handle-destruction contract: safe to call once,
// idempotent-enough to tolerate a nil sender/receiver/mgr in ghost mode.
func (br *Branch) Destroy() {
	if br.sender != nil {
		br.sender.Stop()
	}
	if br.receiver != nil {
		br.receiver.Stop()
	}
	if br.mgr != nil {
		br.mgr.Close()
	}
}
