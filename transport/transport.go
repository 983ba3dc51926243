// Package transport wraps a connected TCP socket with the four
// asynchronous primitives the message-transport and handshake layers build
// on: SendSome, SendAll, ReceiveSome, ReceiveAll (spec §4.E). Every
// completion handler runs on the owning reactor, so callers never need to
// synchronize against their own callbacks.
package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
)

// defaultTransceiveLimit caps how many bytes a single underlying Read/Write
// call is asked to move, so short reads and short writes are exercised even
// against a conn that would happily take the whole buffer at once.
const defaultTransceiveLimit = 1 << 16

// Transport is the capability set both the TCP implementation and test
// doubles satisfy (spec §9 "virtual Transport base").
type Transport interface {
	SendSome(p []byte, timeout time.Duration, handler func(n int, err error))
	SendAll(p []byte, timeout time.Duration, handler func(err error))
	ReceiveSome(p []byte, timeout time.Duration, handler func(n int, err error))
	ReceiveAll(p []byte, timeout time.Duration, handler func(err error))
	Shutdown()
	PeerDescription() string
	CreatedFromIncoming() bool
	Context() *libreact.Context
}

// TCP is a Transport backed by a connected net.TCPConn.
type TCP struct {
	conn      net.Conn
	reactor   *libreact.Context
	limit     int
	incoming  bool

	mu       sync.Mutex
	shutdown bool
}

// New wraps an already-connected conn. limit caps bytes moved per
// underlying Read/Write call; a value <= 0 uses defaultTransceiveLimit.
func New(reactor *libreact.Context, conn net.Conn, incoming bool, limit int) *TCP {
	if limit <= 0 {
		limit = defaultTransceiveLimit
	}
	return &TCP{conn: conn, reactor: reactor, limit: limit, incoming: incoming}
}

func (t *TCP) Context() *libreact.Context { return t.reactor }

func (t *TCP) PeerDescription() string {
	return t.conn.RemoteAddr().String()
}

func (t *TCP) CreatedFromIncoming() bool { return t.incoming }

// Shutdown closes the underlying socket exactly once. It is safe to call
// more than once and from any goroutine.
func (t *TCP) Shutdown() {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return
	}
	t.shutdown = true
	t.mu.Unlock()

	_ = t.conn.Close()
}

func (t *TCP) isShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

// SendSome writes at most one underlying chunk (capped at the transceive
// limit) of p and reports how many bytes made it onto the wire.
func (t *TCP) SendSome(p []byte, timeout time.Duration, handler func(n int, err error)) {
	t.async(func() (int, error) {
		chunk := p
		if len(chunk) > t.limit {
			chunk = chunk[:t.limit]
		}
		if err := t.conn.SetWriteDeadline(deadline(timeout)); err != nil {
			return 0, err
		}
		return t.conn.Write(chunk)
	}, func(n int, err error) { handler(n, err) })
}

// SendAll writes every byte of p, looping over short writes, and reports
// the first error encountered (if any).
func (t *TCP) SendAll(p []byte, timeout time.Duration, handler func(err error)) {
	pos := 0
	t.asyncLoop(func() (int, error) {
		if err := t.conn.SetWriteDeadline(deadline(timeout)); err != nil {
			return 0, err
		}
		chunk := p[pos:]
		if len(chunk) > t.limit {
			chunk = chunk[:t.limit]
		}
		n, err := t.conn.Write(chunk)
		pos += n
		return n, err
	}, len(p), func(err error) { handler(err) })
}

// ReceiveSome reads at most one underlying chunk into p and reports how
// many bytes were read.
func (t *TCP) ReceiveSome(p []byte, timeout time.Duration, handler func(n int, err error)) {
	t.async(func() (int, error) {
		buf := p
		if len(buf) > t.limit {
			buf = buf[:t.limit]
		}
		if err := t.conn.SetReadDeadline(deadline(timeout)); err != nil {
			return 0, err
		}
		return t.conn.Read(buf)
	}, func(n int, err error) { handler(n, err) })
}

// ReceiveAll fills p completely, looping over short reads, and reports the
// first error encountered (if any).
func (t *TCP) ReceiveAll(p []byte, timeout time.Duration, handler func(err error)) {
	pos := 0
	t.asyncLoop(func() (int, error) {
		if err := t.conn.SetReadDeadline(deadline(timeout)); err != nil {
			return 0, err
		}
		buf := p[pos:]
		if len(buf) > t.limit {
			buf = buf[:t.limit]
		}
		n, err := t.conn.Read(buf)
		pos += n
		return n, err
	}, len(p), func(err error) { handler(err) })
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// async runs op on its own goroutine and posts the result to the reactor.
func (t *TCP) async(op func() (int, error), handler func(n int, err error)) {
	go func() {
		n, err := op()
		err = t.classify(err)
		t.reactor.Post(func() { handler(n, err) })
	}()
}

// asyncLoop calls op repeatedly until total bytes have moved or an error
// occurs, then posts the terminal result to the reactor. Each call to op is
// expected to advance by the number of bytes it returns.
func (t *TCP) asyncLoop(op func() (int, error), total int, handler func(err error)) {
	go func() {
		moved := 0
		var err error
		for moved < total {
			var n int
			n, err = op()
			moved += n
			if err != nil {
				break
			}
			if n == 0 {
				err = io.ErrClosedPipe
				break
			}
		}
		err = t.classify(err)
		t.reactor.Post(func() { handler(err) })
	}()
}

func (t *TCP) classify(err error) error {
	if err == nil {
		return nil
	}

	if t.isShutdown() {
		return liberr.Canceled.Error(err)
	}

	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.Shutdown()
		return liberr.Timeout.Error(err)
	}

	t.Shutdown()
	return liberr.RwSocketFailed.Error(err)
}

// Guard cancels a pending AcceptAsync/ConnectAsync operation when Cancel is
// called. Dropping a Guard without calling Cancel does not cancel the
// operation.
type Guard struct {
	cancel context.CancelFunc
	once   sync.Once
}

// Cancel aborts the pending operation, if it has not already completed.
// The operation's handler then fires with a Canceled error.
func (g *Guard) Cancel() {
	g.once.Do(g.cancel)
}

// AcceptAsync accepts one connection on ln and wraps it in a TCP transport.
// Canceling the returned Guard before a peer connects makes handler fire
// with a Canceled error; it does not close ln.
func AcceptAsync(reactorCtx *libreact.Context, ln net.Listener, limit int, handler func(*TCP, error)) *Guard {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Guard{cancel: cancel}

	go func() {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)

		go func() {
			conn, err := ln.Accept()
			ch <- result{conn, err}
		}()

		select {
		case <-ctx.Done():
			reactorCtx.Post(func() { handler(nil, liberr.Canceled.Error(nil)) })
		case r := <-ch:
			if r.err != nil {
				reactorCtx.Post(func() { handler(nil, liberr.AcceptSocketFailed.Error(r.err)) })
				return
			}
			tr := New(reactorCtx, r.conn, true, limit)
			reactorCtx.Post(func() { handler(tr, nil) })
		}
	}()

	return g
}

// ConnectAsync dials addr and wraps the resulting connection in a TCP
// transport, enforcing timeout independently of the OS connect timeout.
// Canceling the returned Guard, or letting timeout elapse, makes handler
// fire with Canceled or Timeout respectively.
func ConnectAsync(reactorCtx *libreact.Context, addr string, timeout time.Duration, limit int, handler func(*TCP, error)) *Guard {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	g := &Guard{cancel: cancel}

	go func() {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				reactorCtx.Post(func() { handler(nil, liberr.Timeout.Error(err)) })
			} else if ctx.Err() == context.Canceled {
				reactorCtx.Post(func() { handler(nil, liberr.Canceled.Error(err)) })
			} else {
				reactorCtx.Post(func() { handler(nil, liberr.ConnectSocketFailed.Error(err)) })
			}
			return
		}

		tr := New(reactorCtx, conn, false, limit)
		reactorCtx.Post(func() { handler(tr, nil) })
	}()

	return g
}
