// Package msgtransport overlays varint-framed messages on top of a raw
// transport.Transport (spec §4.F). Every message on the wire is
// <varint length><length bytes>; a zero-length message is a heartbeat and
// never reaches a caller's receive handler. A tx and an rx ringbuf.Buffer
// absorb the gap between "caller wants to send/receive" and "the OS socket
// is ready right now": try_send never blocks, and an internal drainer
// keeps pushing queued bytes out as the socket allows.
package msgtransport

import (
	"sync"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
	librb "github.com/yohummus/yogi-framework-sub001/ringbuf"
	libtrans "github.com/yohummus/yogi-framework-sub001/transport"
)

// pendingSend is a send_async call that try_send couldn't satisfy
// immediately: its bytes haven't entered the tx ring yet, so cancel_send
// can still remove it.
type pendingSend struct {
	tag     interface{}
	frame   []byte
	handler func(error)
}

// MsgTransport is the message-framed layer over one TCP connection.
type MsgTransport struct {
	tr      libtrans.Transport
	reactor *libreact.Context

	tx *librb.Buffer
	rx *librb.Buffer

	mu       sync.Mutex
	lastTx   error
	lastRx   error
	pending  []*pendingSend
	draining bool

	recvBuf     []byte
	recvHandler func(n int, trueLen int, err error)
	receiving   bool
}

// New wraps tr with tx/rx ring buffers of the given byte capacities.
func New(reactorCtx *libreact.Context, tr libtrans.Transport, txSize, rxSize int) *MsgTransport {
	return &MsgTransport{
		tr:      tr,
		reactor: reactorCtx,
		tx:      librb.New(txSize),
		rx:      librb.New(rxSize),
	}
}

// TrySend serializes msg into the tx ring if it fits without blocking,
// returning whether it did. It never suspends and never partially writes
// a frame: either the whole frame fits, or nothing is written.
func (m *MsgTransport) TrySend(msg []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trySendLocked(msg)
}

func (m *MsgTransport) trySendLocked(msg []byte) bool {
	if m.lastTx != nil {
		return false
	}

	frame := frameOf(msg)
	if len(frame) > m.tx.AvailableForWrite() {
		return false
	}

	n := m.tx.Write(frame)
	if n != len(frame) {
		panic("msgtransport: tx ring accepted a partial frame after a successful capacity check")
	}

	m.kickDrain()
	return true
}

func frameOf(msg []byte) []byte {
	header := encodeVarint(uint32(len(msg)))
	frame := make([]byte, 0, len(header)+len(msg))
	frame = append(frame, header...)
	frame = append(frame, msg...)
	return frame
}

// SendAsync attempts TrySend; on failure it queues a pending send under tag
// and keeps the tx drainer running until room frees up. handler fires Ok
// once the bytes have been handed to the OS, or the accumulated error.
func (m *MsgTransport) SendAsync(msg []byte, tag interface{}, handler func(err error)) {
	m.mu.Lock()

	if m.trySendLocked(msg) {
		m.mu.Unlock()
		m.reactor.Post(func() { handler(nil) })
		return
	}

	if m.lastTx != nil {
		err := m.lastTx
		m.mu.Unlock()
		m.reactor.Post(func() { handler(err) })
		return
	}

	m.pending = append(m.pending, &pendingSend{tag: tag, frame: frameOf(msg), handler: handler})
	m.mu.Unlock()
}

// CancelSend removes a queued pending send with the given tag, if it is
// still waiting for room in the tx ring, and fires its handler with
// Canceled. It has no effect once the bytes have entered the tx ring.
func (m *MsgTransport) CancelSend(tag interface{}) bool {
	m.mu.Lock()
	for i, p := range m.pending {
		if p.tag == tag {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			m.mu.Unlock()
			m.reactor.Post(func() { p.handler(liberr.Canceled.Error(nil)) })
			return true
		}
	}
	m.mu.Unlock()
	return false
}

// kickDrain starts the tx drainer goroutine if one isn't already running.
// Must be called with m.mu held.
func (m *MsgTransport) kickDrain() {
	if m.draining {
		return
	}
	m.draining = true
	go m.drainLoop()
}

func (m *MsgTransport) drainLoop() {
	for {
		m.mu.Lock()
		for m.lastTx == nil && m.tx.AvailableForWrite() > 0 && len(m.pending) > 0 {
			p := m.pending[0]
			if len(p.frame) > m.tx.AvailableForWrite() {
				break
			}
			m.tx.Write(p.frame)
			m.pending = m.pending[1:]
			h := p.handler
			m.reactor.Post(func() { h(nil) })
		}

		chunk := m.tx.FirstReadArray()
		if len(chunk) == 0 || m.lastTx != nil {
			m.draining = false
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		done := make(chan struct{})
		var n int
		var err error
		m.tr.SendSome(chunk, 0, func(sent int, sendErr error) {
			n, err = sent, sendErr
			close(done)
		})
		<-done

		m.mu.Lock()
		if n > 0 {
			m.tx.CommitFirstReadArray(n)
		}
		if err != nil {
			m.lastTx = err
			m.failPendingLocked(err)
		}
		m.mu.Unlock()
	}
}

func (m *MsgTransport) failPendingLocked(err error) {
	pending := m.pending
	m.pending = nil
	for _, p := range pending {
		h := p.handler
		m.reactor.Post(func() { h(err) })
	}
}

// ReceiveAsync completes with the next full message read into buf. If the
// message is larger than buf, buf is filled, the remainder is discarded,
// and the handler reports BufferTooSmall together with the true message
// length.
func (m *MsgTransport) ReceiveAsync(buf []byte, handler func(n int, trueLen int, err error)) {
	m.mu.Lock()
	if m.lastRx != nil {
		err := m.lastRx
		m.mu.Unlock()
		m.reactor.Post(func() { handler(0, 0, err) })
		return
	}

	m.recvBuf = buf
	m.recvHandler = handler
	already := m.receiving
	m.mu.Unlock()

	if m.tryDeliver() {
		return
	}
	if !already {
		go m.fillLoop()
	}
}

// CancelReceive cancels an outstanding ReceiveAsync, firing its handler
// with Canceled.
func (m *MsgTransport) CancelReceive() bool {
	m.mu.Lock()
	h := m.recvHandler
	if h == nil {
		m.mu.Unlock()
		return false
	}
	m.recvHandler = nil
	m.recvBuf = nil
	m.mu.Unlock()

	m.reactor.Post(func() { h(0, 0, liberr.Canceled.Error(nil)) })
	return true
}

// tryDeliver decodes and delivers one message from the rx ring to the
// currently registered handler, if both are ready. It returns whether a
// handler fired.
func (m *MsgTransport) tryDeliver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		header := m.rx.PeekAll(maxVarintBytes)
		declared, headerLen, complete, err := decodeVarint(header)
		if err != nil {
			m.lastRx = liberr.DeserializeMsgFailed.Error(err)
			m.failReceiveLocked(m.lastRx)
			return true
		}
		if !complete {
			return false
		}

		frameLen := headerLen + int(declared)
		if frameLen > m.rx.Cap() {
			m.lastRx = liberr.DeserializeMsgFailed.Error(nil)
			m.failReceiveLocked(m.lastRx)
			return true
		}
		if m.rx.AvailableForRead() < frameLen {
			return false
		}

		m.rx.Discard(headerLen)

		if declared == 0 {
			// heartbeat: silently consumed, keep scanning for a real message.
			continue
		}

		if m.recvHandler == nil {
			return false
		}

		n := copy(m.recvBuf, m.rx.PeekAll(int(declared)))
		m.rx.Discard(int(declared))

		h := m.recvHandler
		m.recvHandler = nil
		m.recvBuf = nil

		if n < int(declared) {
			m.reactor.Post(func() { h(n, int(declared), liberr.BufferTooSmall.Error(nil)) })
		} else {
			m.reactor.Post(func() { h(n, int(declared), nil) })
		}
		return true
	}
}

func (m *MsgTransport) failReceiveLocked(err error) {
	if m.recvHandler == nil {
		return
	}
	h := m.recvHandler
	m.recvHandler = nil
	m.recvBuf = nil
	m.reactor.Post(func() { h(0, 0, err) })
}

func (m *MsgTransport) fillLoop() {
	m.mu.Lock()
	if m.receiving {
		m.mu.Unlock()
		return
	}
	m.receiving = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.receiving = false
		m.mu.Unlock()
	}()

	for {
		if m.tryDeliver() {
			m.mu.Lock()
			noMoreWork := m.recvHandler == nil
			m.mu.Unlock()
			if noMoreWork {
				return
			}
		}

		m.mu.Lock()
		if m.lastRx != nil {
			m.mu.Unlock()
			return
		}
		chunk := m.rx.FirstWriteArray()
		m.mu.Unlock()

		if len(chunk) == 0 {
			return
		}

		done := make(chan struct{})
		var n int
		var err error
		m.tr.ReceiveSome(chunk, 0, func(read int, recvErr error) {
			n, err = read, recvErr
			close(done)
		})
		<-done

		m.mu.Lock()
		if n > 0 {
			m.rx.CommitFirstWriteArray(n)
		}
		if err != nil {
			m.lastRx = err
			m.failReceiveLocked(err)
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
	}
}

// LastTxError returns the sticky send-side error, if any.
func (m *MsgTransport) LastTxError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTx
}

// LastRxError returns the sticky receive-side error, if any.
func (m *MsgTransport) LastRxError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRx
}
