package branch

import (
	"sync"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
)

// Signal is one bit of the process-wide signal bitmask (spec §4.M).
type Signal uint16

const (
	SignalNone Signal = 0

	SignalInt Signal = 1 << iota
	SignalTerm
	SignalUsr1
	SignalUsr2
	SignalUsr3
	SignalUsr4
	SignalUsr5
	SignalUsr6
	SignalUsr7
	SignalUsr8
	SignalOther1
	SignalOther2
	SignalOther3
	SignalOther4
	SignalOther5

	SignalAll Signal = 0xFFFF
)

// signalDatum is one delivery of raise_signal: a signal bit plus an opaque
// argument and a cleanup closure that runs exactly once, after the last
// interested SignalSet has consumed it.
type signalDatum struct {
	bit    Signal
	sigarg interface{}

	mu       sync.Mutex
	pending  int
	cleanup  func()
}

func (d *signalDatum) consumed() {
	d.mu.Lock()
	d.pending--
	run := d.pending == 0 && d.cleanup != nil
	var cleanup func()
	if run {
		cleanup = d.cleanup
		d.cleanup = nil
	}
	d.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
}

var (
	registryMu  sync.Mutex
	liveSignals = map[*SignalSet]struct{}{}
)

// SignalSet awaits a subset of the process-wide signal bitmask. Deliveries
// that match its mask queue FIFO; at most one awaiter is served at a time.
type SignalSet struct {
	mask    Signal
	reactor *libreact.Context

	mu      sync.Mutex
	queue   []*signalDatum
	handler func(bit Signal, sigarg interface{}, err error)
}

// NewSignalSet registers a SignalSet interested in every bit set in mask.
// Destroy unregisters it.
func NewSignalSet(reactor *libreact.Context, mask Signal) *SignalSet {
	s := &SignalSet{mask: mask, reactor: reactor}
	registryMu.Lock()
	liveSignals[s] = struct{}{}
	registryMu.Unlock()
	return s
}

// RaiseSignal delivers one signal datum to every live SignalSet whose mask
// intersects bit. cleanup runs after the last interested set drains the
// datum, or immediately if no set matches.
func RaiseSignal(bit Signal, sigarg interface{}, cleanup func()) {
	registryMu.Lock()
	var targets []*SignalSet
	for s := range liveSignals {
		if s.mask&bit != 0 {
			targets = append(targets, s)
		}
	}
	registryMu.Unlock()

	if len(targets) == 0 {
		if cleanup != nil {
			cleanup()
		}
		return
	}

	d := &signalDatum{bit: bit, sigarg: sigarg, pending: len(targets), cleanup: cleanup}
	for _, s := range targets {
		s.enqueue(d)
	}
}

func (s *SignalSet) enqueue(d *signalDatum) {
	s.mu.Lock()
	if s.handler != nil && len(s.queue) == 0 {
		h := s.handler
		s.handler = nil
		s.mu.Unlock()
		s.reactor.Post(func() { h(d.bit, d.sigarg, nil) })
		d.consumed()
		return
	}
	s.queue = append(s.queue, d)
	s.mu.Unlock()
}

// AwaitAsync registers handler to receive the next signal datum matching
// this set's mask. Only one await may be outstanding; re-issuing supersedes
// the previous one, which fires with Canceled.
func (s *SignalSet) AwaitAsync(handler func(bit Signal, sigarg interface{}, err error)) {
	s.mu.Lock()
	prev := s.handler

	if len(s.queue) > 0 {
		d := s.queue[0]
		s.queue = s.queue[1:]
		s.handler = nil
		s.mu.Unlock()
		if prev != nil {
			s.reactor.Post(func() { prev(SignalNone, nil, liberr.Canceled.Error(nil)) })
		}
		s.reactor.Post(func() { handler(d.bit, d.sigarg, nil) })
		d.consumed()
		return
	}

	s.handler = handler
	s.mu.Unlock()

	if prev != nil {
		s.reactor.Post(func() { prev(SignalNone, nil, liberr.Canceled.Error(nil)) })
	}
}

// CancelAwait wakes an outstanding AwaitAsync with Canceled. It returns
// whether one was outstanding.
func (s *SignalSet) CancelAwait() bool {
	s.mu.Lock()
	h := s.handler
	s.handler = nil
	s.mu.Unlock()

	if h == nil {
		return false
	}
	s.reactor.Post(func() { h(SignalNone, nil, liberr.Canceled.Error(nil)) })
	return true
}

// Destroy unregisters the set and wakes any outstanding await with
// Canceled. Any datum still queued for this set is considered drained.
func (s *SignalSet) Destroy() {
	registryMu.Lock()
	delete(liveSignals, s)
	registryMu.Unlock()

	s.mu.Lock()
	h := s.handler
	s.handler = nil
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()

	if h != nil {
		s.reactor.Post(func() { h(SignalNone, nil, liberr.Canceled.Error(nil)) })
	}
	for _, d := range queue {
		d.consumed()
	}
}
