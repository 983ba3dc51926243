package advertising

import (
	"net"
	"sync"
	"time"

	liblog "github.com/yohummus/yogi-framework-sub001/logger"
	libnet "github.com/yohummus/yogi-framework-sub001/internal/netinfo"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
)

// Sender emits the advertising datagram on every selected interface, once
// per interval, toward the configured multicast group (spec §4.G). A
// per-interface send failure evicts that interface from the rotation; if
// every interface has been evicted, sending is silently disabled rather
// than treated as fatal.
type Sender struct {
	group    *net.UDPAddr
	interval time.Duration
	payload  []byte
	log      liblog.Logger

	mu    sync.Mutex
	conns map[string]*net.UDPConn
	stop  chan struct{}
	done  chan struct{}
}

// NewSender builds a Sender for the given multicast group/port, advertising
// uuid and tcpPort; the interfaces to send on are chosen by Start.
func NewSender(group *net.UDPAddr, interval time.Duration, uuid libuid.UUID, tcpPort uint16, log liblog.Logger) *Sender {
	return &Sender{
		group:    group,
		interval: interval,
		payload:  packet{uuid: uuid, tcpPort: tcpPort}.encode(),
		log:      log,
	}
}

// Start resolves selectors into interfaces, opens one UDP socket per
// interface, and begins the send loop. A selector set matching no
// interface is not an error: the loop simply has nothing to send on.
func (s *Sender) Start(selectors []string) error {
	ifcs, err := libnet.ResolveInterfaces(selectors)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conns = make(map[string]*net.UDPConn)
	for _, ifc := range ifcs {
		for _, ip := range libnet.MulticastAddresses([]net.Interface{ifc}) {
			conn, derr := net.ListenUDP(udpNetwork(s.group.IP), &net.UDPAddr{IP: ip})
			if derr != nil {
				continue
			}
			s.conns[ifc.Name] = conn
			break
		}
	}
	if len(s.conns) == 0 && s.log != nil {
		s.log.Warning("advertising: no usable interface to send on", nil)
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
	return nil
}

func udpNetwork(ip net.IP) string {
	if ip.To4() != nil {
		return "udp4"
	}
	return "udp6"
}

func (s *Sender) loop() {
	defer close(s.done)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.sendOnce()
		}
	}
}

func (s *Sender) sendOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, conn := range s.conns {
		if _, err := conn.WriteToUDP(s.payload, s.group); err != nil {
			conn.Close()
			delete(s.conns, name)
			if s.log != nil {
				s.log.Warning("advertising: dropping interface %s after send failure", err, name)
			}
		}
	}
}

// Stop halts the send loop and closes every socket it opened.
func (s *Sender) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-s.done

	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()
}
