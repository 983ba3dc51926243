package branch

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/hashicorp/go-msgpack/codec"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libmsg "github.com/yohummus/yogi-framework-sub001/msgtransport"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
)

// broadcastTag is the one-byte wire prefix distinguishing an application
// broadcast from a heartbeat once it reaches the message transport layer
// (spec §6 "Broadcast message").
const broadcastTag byte = 0x02

// Encoding selects how a broadcast payload is represented at the API
// boundary; the wire encoding is always MessagePack (spec §4.J).
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingMsgpack
)

var msgpackHandle = &codec.MsgpackHandle{}

func encodeMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMsgpack(b []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewReader(b), msgpackHandle)
	return dec.Decode(v)
}

// toWire converts a caller-supplied payload in the given encoding into the
// canonical internal MessagePack bytes (without the tag byte). JSON input is
// parsed and converted; MessagePack input is validated by round-tripping it
// through a generic value.
func toWire(enc Encoding, payload []byte) ([]byte, error) {
	var v interface{}
	switch enc {
	case EncodingJSON:
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, liberr.ParsingJsonFailed.Error(err)
		}
		return encodeMsgpack(v)
	case EncodingMsgpack:
		if err := decodeMsgpack(payload, &v); err != nil {
			return nil, liberr.InvalidUserMsgpack.Error(err)
		}
		return payload, nil
	default:
		return nil, liberr.InvalidParam.Error(nil)
	}
}

// fromWire re-encodes internal MessagePack bytes into buf using the
// requested encoding, returning the number of bytes written and the true
// encoded length. If buf is too small, the write is truncated (JSON
// truncation preserves a terminating NUL in the last buffer byte) and the
// caller is told the true length via BufferTooSmall.
func fromWire(wire []byte, enc Encoding, buf []byte) (n int, trueLen int, err error) {
	var v interface{}
	if err := decodeMsgpack(wire, &v); err != nil {
		return 0, 0, liberr.DeserializeMsgFailed.Error(err)
	}

	var out []byte
	switch enc {
	case EncodingJSON:
		out, err = json.Marshal(v)
		if err != nil {
			return 0, 0, liberr.ParsingJsonFailed.Error(err)
		}
	case EncodingMsgpack:
		out = wire
	default:
		return 0, 0, liberr.InvalidParam.Error(nil)
	}

	trueLen = len(out)
	if len(buf) < trueLen {
		n = copy(buf, out)
		if enc == EncodingJSON && n > 0 {
			buf[n-1] = 0
		}
		return n, trueLen, liberr.BufferTooSmall.Error(nil)
	}
	n = copy(buf, out)
	return n, trueLen, nil
}

// broadcastOp tracks one send_broadcast_async call across every peer it
// fanned out to.
type broadcastOp struct {
	id       uint64
	mu       sync.Mutex
	pending  map[libuid.UUID]bool
	canceled bool
	handler  func(err error)
}

// BroadcastManager fans a single payload out to every ACTIVE peer's
// message transport (spec §4.J).
type BroadcastManager struct {
	mgr     *Manager
	reactor *libreact.Context

	nextOp uint64

	mu  sync.Mutex
	ops map[uint64]*broadcastOp

	recvHandler func(enc Encoding, n, trueLen int, from libuid.UUID, err error)
	recvBuf     []byte
	recvEnc     Encoding
}

// NewBroadcastManager builds a BroadcastManager fanning out over mgr's
// active peers.
func NewBroadcastManager(reactor *libreact.Context, mgr *Manager) *BroadcastManager {
	b := &BroadcastManager{
		mgr:     mgr,
		reactor: reactor,
		ops:     map[uint64]*broadcastOp{},
	}
	mgr.SetOnBroadcast(b.onBroadcast)
	return b
}

// SendBroadcast serializes payload once and walks every ACTIVE peer with
// try_send. If block is false and any peer's ring is full, it returns
// TxQueueFull; if block is true it is implemented as a synchronous wait
// over SendBroadcastAsync with retry=true.
func (b *BroadcastManager) SendBroadcast(enc Encoding, payload []byte, block bool) error {
	wire, err := toWire(enc, payload)
	if err != nil {
		return err
	}
	frame := append([]byte{broadcastTag}, wire...)

	if !block {
		full := false
		for _, msg := range b.mgr.ActivePeers() {
			if !msg.TrySend(frame) {
				full = true
			}
		}
		if full {
			return liberr.TxQueueFull.Error(nil)
		}
		return nil
	}

	done := make(chan error, 1)
	b.sendBroadcastAsync(frame, true, func(err error) { done <- err })
	return <-done
}

// SendBroadcastAsync fans frame out to every ACTIVE peer, returning an
// operation id the caller may later pass to CancelSendBroadcast.
func (b *BroadcastManager) SendBroadcastAsync(enc Encoding, payload []byte, retry bool, handler func(err error)) (uint64, error) {
	wire, err := toWire(enc, payload)
	if err != nil {
		return 0, err
	}
	frame := append([]byte{broadcastTag}, wire...)
	return b.sendBroadcastAsync(frame, retry, handler), nil
}

func (b *BroadcastManager) sendBroadcastAsync(frame []byte, retry bool, handler func(err error)) uint64 {
	peers := b.mgr.ActivePeers()

	b.mu.Lock()
	b.nextOp++
	id := b.nextOp
	op := &broadcastOp{id: id, pending: map[libuid.UUID]bool{}, handler: handler}
	b.ops[id] = op
	b.mu.Unlock()

	anyFull := false
	for uuid, msg := range peers {
		if msg.TrySend(frame) {
			continue
		}
		if !retry {
			anyFull = true
			continue
		}

		op.mu.Lock()
		op.pending[uuid] = true
		op.mu.Unlock()

		tag := opTag{id: id, uuid: uuid}
		msg.SendAsync(frame, tag, func(err error) {
			b.settlePeer(op, uuid, err)
		})
	}

	if !retry {
		b.mu.Lock()
		delete(b.ops, id)
		b.mu.Unlock()
		if anyFull {
			b.reactor.Post(func() { handler(liberr.TxQueueFull.Error(nil)) })
		} else {
			b.reactor.Post(func() { handler(nil) })
		}
		return id
	}

	op.mu.Lock()
	empty := len(op.pending) == 0
	op.mu.Unlock()
	if empty {
		b.finishOp(id, nil)
	}
	return id
}

type opTag struct {
	id   uint64
	uuid libuid.UUID
}

func (b *BroadcastManager) settlePeer(op *broadcastOp, uuid libuid.UUID, err error) {
	op.mu.Lock()
	delete(op.pending, uuid)
	empty := len(op.pending) == 0
	canceled := op.canceled
	op.mu.Unlock()

	if !empty {
		return
	}
	if canceled {
		b.finishOp(op.id, liberr.Canceled.Error(nil))
	} else {
		b.finishOp(op.id, err)
	}
}

func (b *BroadcastManager) finishOp(id uint64, err error) {
	b.mu.Lock()
	op, ok := b.ops[id]
	if ok {
		delete(b.ops, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	b.reactor.Post(func() { op.handler(err) })
}

// CancelSendBroadcast requests cancellation on every peer still holding a
// pending send for opID. It returns whether at least one peer had it
// pending.
func (b *BroadcastManager) CancelSendBroadcast(opID uint64) bool {
	b.mu.Lock()
	op, ok := b.ops[opID]
	b.mu.Unlock()
	if !ok {
		return false
	}

	op.mu.Lock()
	op.canceled = true
	peers := make([]libuid.UUID, 0, len(op.pending))
	for uuid := range op.pending {
		peers = append(peers, uuid)
	}
	op.mu.Unlock()

	if len(peers) == 0 {
		return false
	}

	active := b.mgr.ActivePeers()
	for _, uuid := range peers {
		if msg, ok := active[uuid]; ok {
			msg.CancelSend(opTag{id: opID, uuid: uuid})
		}
	}
	return true
}

// ReceiveBroadcast registers handler to fire on the next inbound
// broadcast, re-encoded into enc. At most one outstanding receive is kept;
// issuing a second one cancels the first.
func (b *BroadcastManager) ReceiveBroadcast(enc Encoding, buf []byte, handler func(n, trueLen int, from libuid.UUID, err error)) {
	b.mu.Lock()
	prev := b.recvHandler
	b.recvHandler = handler
	b.recvBuf = buf
	b.recvEnc = enc
	b.mu.Unlock()

	if prev != nil {
		b.reactor.Post(func() { prev(0, 0, libuid.Nil, liberr.Canceled.Error(nil)) })
	}
}

// onBroadcast is the Manager's per-peer receive callback: it strips the
// broadcast tag and delivers to the currently registered receiver, if any.
func (b *BroadcastManager) onBroadcast(from libuid.UUID, payload []byte) {
	if len(payload) == 0 || payload[0] != broadcastTag {
		return
	}
	wire := payload[1:]

	b.mu.Lock()
	h := b.recvHandler
	buf := b.recvBuf
	enc := b.recvEnc
	b.recvHandler = nil
	b.recvBuf = nil
	b.mu.Unlock()

	if h == nil {
		return
	}

	n, trueLen, err := fromWire(wire, enc, buf)
	b.reactor.Post(func() { h(n, trueLen, from, err) })
}
