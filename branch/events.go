package branch

import (
	"sync"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
)

// EventType enumerates the four event kinds a Branch's event stream
// delivers (spec §4.I "Event stream").
type EventType int

const (
	BranchDiscovered EventType = iota
	BranchQueried
	ConnectFinished
	ConnectionLost
)

// EventMask selects a subset of EventTypes for AwaitEventAsync.
type EventMask uint8

func (t EventType) Mask() EventMask { return EventMask(1 << uint(t)) }

const EventMaskAll EventMask = EventMask(1<<BranchDiscovered) | EventMask(1<<BranchQueried) | EventMask(1<<ConnectFinished) | EventMask(1<<ConnectionLost)

// Event is one notification delivered through the event stream.
type Event struct {
	Type EventType
	UUID libuid.UUID
	Info Info
	Err  error
}

// eventStream implements the Branch's await_event_async surface: at most
// one pending await; re-issuing supersedes the previous one with
// Canceled; queued events not matching the current mask are skipped but
// not dropped, so a later await with a wider mask can still see them.
type eventStream struct {
	reactor *libreact.Context

	mu      sync.Mutex
	queue   []Event
	mask    EventMask
	handler func(Event)
}

func newEventStream(reactor *libreact.Context) *eventStream {
	return &eventStream{reactor: reactor}
}

// publish appends ev to the stream and delivers it immediately if an
// awaiter's mask matches.
func (e *eventStream) publish(ev Event) {
	e.mu.Lock()
	if e.handler != nil && e.mask&ev.Type.Mask() != 0 {
		h := e.handler
		e.handler = nil
		e.mu.Unlock()
		e.reactor.Post(func() { h(ev) })
		return
	}
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
}

// AwaitEventAsync registers handler for the next event matching mask.
// A previously registered handler, if any, fires immediately with
// Canceled.
func (e *eventStream) AwaitEventAsync(mask EventMask, handler func(Event)) {
	e.mu.Lock()
	prev := e.handler

	for i, ev := range e.queue {
		if mask&ev.Type.Mask() != 0 {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			e.handler = nil
			e.mu.Unlock()
			if prev != nil {
				e.reactor.Post(func() { prev(Event{Err: liberr.Canceled.Error(nil)}) })
			}
			e.reactor.Post(func() { handler(ev) })
			return
		}
	}

	e.mask = mask
	e.handler = handler
	e.mu.Unlock()

	if prev != nil {
		e.reactor.Post(func() { prev(Event{Err: liberr.Canceled.Error(nil)}) })
	}
}

// CancelAwaitEvent wakes a pending AwaitEventAsync with Canceled.
func (e *eventStream) CancelAwaitEvent() bool {
	e.mu.Lock()
	h := e.handler
	e.handler = nil
	e.mu.Unlock()

	if h == nil {
		return false
	}
	e.reactor.Post(func() { h(Event{Err: liberr.Canceled.Error(nil)}) })
	return true
}
