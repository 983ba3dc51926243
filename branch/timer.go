package branch

import (
	"sync"
	"time"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
)

// Timer is a single-shot timer whose expiry handler runs on the owning
// reactor (spec §4.N). Starting a Timer that is already armed cancels the
// previous arming first.
type Timer struct {
	reactor *libreact.Context

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	handler func(err error)
	running bool
}

// NewTimer creates an unarmed Timer attached to reactor.
func NewTimer(reactor *libreact.Context) *Timer {
	return &Timer{reactor: reactor}
}

// StartAsync arms the timer to fire handler(nil) after d elapses. Any
// previously armed handler fires immediately with Canceled.
func (t *Timer) StartAsync(d time.Duration, handler func(err error)) {
	t.mu.Lock()
	prevHandler := t.handler
	if t.timer != nil {
		t.timer.Stop()
	}

	t.gen++
	gen := t.gen
	t.handler = handler
	t.running = true

	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen || !t.running {
			t.mu.Unlock()
			return
		}
		t.running = false
		h := t.handler
		t.handler = nil
		t.mu.Unlock()

		if h != nil {
			t.reactor.Post(func() { h(nil) })
		}
	})
	t.mu.Unlock()

	if prevHandler != nil {
		t.reactor.Post(func() { prevHandler(liberr.Canceled.Error(nil)) })
	}
}

// Cancel stops an armed timer, firing its handler with Canceled, and
// reports whether a timer was actually running. If none was running, the
// public error path surfaces TimerExpired.
func (t *Timer) Cancel() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return liberr.TimerExpired.Error(nil)
	}

	t.running = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
	}
	h := t.handler
	t.handler = nil
	t.mu.Unlock()

	if h != nil {
		t.reactor.Post(func() { h(liberr.Canceled.Error(nil)) })
	}
	return nil
}

// Destroy cancels any armed timer without reporting TimerExpired if none
// was running.
func (t *Timer) Destroy() {
	_ = t.Cancel()
}
