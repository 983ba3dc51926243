package advertising

import (
	"fmt"
	"net"
	"sync"

	liblog "github.com/yohummus/yogi-framework-sub001/logger"
	libnet "github.com/yohummus/yogi-framework-sub001/internal/netinfo"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
)

// Discovery is delivered for every valid advertising datagram observed from
// a peer other than ourselves.
type Discovery struct {
	UUID     libuid.UUID
	Endpoint *net.TCPAddr
}

// Receiver joins the advertising multicast group on every selected
// interface and decodes incoming datagrams into Discovery events
// (spec §4.G). A join failure on one interface degrades rather than fails
// Start, as long as at least one interface joined.
type Receiver struct {
	group *net.UDPAddr
	self  libuid.UUID
	log   liblog.Logger

	onDiscovery func(Discovery)

	mu    sync.Mutex
	conns []*net.UDPConn
	wg    sync.WaitGroup
}

// NewReceiver builds a Receiver that reports discoveries of peers other
// than self to onDiscovery.
func NewReceiver(group *net.UDPAddr, self libuid.UUID, onDiscovery func(Discovery), log liblog.Logger) *Receiver {
	return &Receiver{group: group, self: self, onDiscovery: onDiscovery, log: log}
}

// Start resolves selectors into interfaces and joins the multicast group on
// each. It fails only if no interface could be joined at all.
func (r *Receiver) Start(selectors []string) error {
	ifcs, err := libnet.ResolveInterfaces(selectors)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ifc := range ifcs {
		ifcCopy := ifc
		conn, jerr := net.ListenMulticastUDP(udpNetwork(r.group.IP), &ifcCopy, r.group)
		if jerr != nil {
			if r.log != nil {
				r.log.Warning("advertising: failed to join multicast group on interface %s", jerr, ifc.Name)
			}
			continue
		}
		r.conns = append(r.conns, conn)
		r.wg.Add(1)
		go r.readLoop(conn)
	}

	if len(r.conns) == 0 {
		return fmt.Errorf("advertising: failed to join the multicast group on any interface")
	}
	return nil
}

func (r *Receiver) readLoop(conn *net.UDPConn) {
	defer r.wg.Done()

	buf := make([]byte, 512)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		p, derr := decodePacket(buf[:n])
		if derr != nil {
			continue
		}
		if p.uuid == r.self {
			continue
		}

		endpoint := &net.TCPAddr{IP: addr.IP, Port: int(p.tcpPort)}
		if r.onDiscovery != nil {
			r.onDiscovery(Discovery{UUID: p.uuid, Endpoint: endpoint})
		}
	}
}

// Stop closes every joined socket and waits for the read loops to exit.
func (r *Receiver) Stop() {
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	r.wg.Wait()
}
