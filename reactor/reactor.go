// Package reactor implements the single-threaded cooperative task runner
// every Context object drives its Branch, Timer, and operation callbacks
// through (spec §4.A). A reactor is a queue of posted functions plus a
// small set of ways to drain it: once, for a bounded time, or forever on a
// background goroutine. Exactly one goroutine executes queued functions at
// a time, so a handler never needs to guard against concurrent callbacks
// from the same Context.
package reactor

import (
	"sync"
	"time"
)

// Context is a cooperative executor. The zero value is not usable;
// construct with New.
type Context struct {
	mu    sync.Mutex
	queue []func()
	stop  bool

	active   bool
	gen      int
	notify   chan struct{}
	bgDone   chan struct{}
}

// New returns an idle, empty Context.
func New() *Context {
	return &Context{notify: make(chan struct{}, 1)}
}

// Post appends fn to the task queue. It returns false if the Context has
// been stopped and is no longer accepting work.
func (c *Context) Post(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop {
		return false
	}

	c.queue = append(c.queue, fn)
	c.wake()
	return true
}

func (c *Context) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Context) popAll() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queue
	c.queue = nil
	return q
}

func (c *Context) popOne() (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil, false
	}

	fn := c.queue[0]
	c.queue = c.queue[1:]
	return fn, true
}

func (c *Context) enterRunning() {
	c.mu.Lock()
	c.active = true
	c.gen++
	c.mu.Unlock()
}

func (c *Context) leaveRunning() {
	c.mu.Lock()
	c.active = false
	c.gen++
	c.mu.Unlock()
}

// Poll runs every task currently queued, without blocking for more, and
// returns how many ran.
func (c *Context) Poll() int {
	c.enterRunning()
	defer c.leaveRunning()

	n := 0
	for _, fn := range c.popAll() {
		fn()
		n++
	}
	return n
}

// PollOne runs at most one queued task, without blocking, and reports
// whether one was available.
func (c *Context) PollOne() bool {
	c.enterRunning()
	defer c.leaveRunning()

	fn, ok := c.popOne()
	if !ok {
		return false
	}
	fn()
	return true
}

// Run executes queued tasks, waiting for new ones as they arrive, until
// Stop is called or dur elapses, whichever comes first. It returns the
// number of tasks executed. A zero or negative dur means run until Stop is
// called.
func (c *Context) Run(dur time.Duration) int {
	c.enterRunning()
	defer c.leaveRunning()

	var deadline <-chan time.Time
	if dur > 0 {
		t := time.NewTimer(dur)
		defer t.Stop()
		deadline = t.C
	}

	n := 0
	for {
		for _, fn := range c.popAll() {
			fn()
			n++
		}

		c.mu.Lock()
		stopped := c.stop
		c.mu.Unlock()
		if stopped {
			return n
		}

		select {
		case <-c.notify:
		case <-deadline:
			return n
		}
	}
}

// RunOne blocks up to dur waiting for a single task and executes it,
// returning whether a task ran. A zero or negative dur waits indefinitely.
func (c *Context) RunOne(dur time.Duration) bool {
	c.enterRunning()
	defer c.leaveRunning()

	if fn, ok := c.popOne(); ok {
		fn()
		return true
	}

	var deadline <-chan time.Time
	if dur > 0 {
		t := time.NewTimer(dur)
		defer t.Stop()
		deadline = t.C
	}

	for {
		select {
		case <-c.notify:
			if fn, ok := c.popOne(); ok {
				fn()
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// RunInBackground starts a goroutine that drains the queue forever, until
// Stop is called. Calling it more than once before Stop is a no-op; the
// second call returns immediately.
func (c *Context) RunInBackground() {
	c.mu.Lock()
	if c.bgDone != nil {
		c.mu.Unlock()
		return
	}
	c.bgDone = make(chan struct{})
	done := c.bgDone
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.Run(0)
	}()
}

// Stop requests every Run/RunOne/RunInBackground loop to return after
// finishing the task it is currently executing, and prevents further Post
// calls from succeeding.
func (c *Context) Stop() {
	c.mu.Lock()
	c.stop = true
	c.mu.Unlock()
	c.wake()
}

// Reset clears the stop flag so the Context can be reused. Callers must
// ensure no goroutine is still inside Run/RunOne/RunInBackground first.
func (c *Context) Reset() {
	c.mu.Lock()
	c.stop = false
	c.bgDone = nil
	c.mu.Unlock()
}

// WaitForRunning blocks until some goroutine is actively executing tasks,
// or dur elapses, and reports which happened. A zero or negative dur
// polls once without blocking.
func (c *Context) WaitForRunning(dur time.Duration) bool {
	return c.waitForState(true, dur)
}

// WaitForStopped blocks until no goroutine is actively executing tasks, or
// dur elapses, and reports which happened.
func (c *Context) WaitForStopped(dur time.Duration) bool {
	return c.waitForState(false, dur)
}

func (c *Context) waitForState(want bool, dur time.Duration) bool {
	deadline := time.Now().Add(dur)
	for {
		c.mu.Lock()
		active := c.active
		c.mu.Unlock()

		if active == want {
			return true
		}
		if dur <= 0 || time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
