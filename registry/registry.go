// Package registry implements the handle-indexed object table every public
// Yogi object (Context, Branch, Timer, operation) is stored under (spec §3
// "Object id", §9 "cyclic ownership via handle and generation"). A handle is
// an opaque integer a caller can hold across API calls without pinning a Go
// pointer; the registry is what turns that integer back into the object
// and enforces that destruction only happens once, after every in-flight
// call against it has returned.
package registry

import (
	"sync/atomic"

	libatm "github.com/yohummus/yogi-framework-sub001/atomic"
)

// Handle identifies an object stored in a Registry. The zero Handle is never
// issued by Register.
type Handle uint64

// Object is anything the registry can own. Destroy is called exactly once,
// after Acquire-based access has drained, when the handle is removed.
type Object interface {
	Destroy()
}

// entry pairs a live object with the bookkeeping needed to know when it is
// safe to call Destroy: a reference count for in-flight Acquire calls, and
// a flag marking the handle as condemned so no new Acquire succeeds.
type entry struct {
	obj       Object
	refs      int64
	condemned atomic.Bool
	drained   chan struct{}
}

// Registry is a concurrent handle table. The zero value is not usable;
// construct with New.
type Registry struct {
	m       libatm.MapTyped[Handle, *entry]
	counter uint64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{m: libatm.NewMapTyped[Handle, *entry]()}
}

// Register stores obj under a freshly allocated handle and returns it.
func (r *Registry) Register(obj Object) Handle {
	h := Handle(atomic.AddUint64(&r.counter, 1))
	r.m.Store(h, &entry{obj: obj, drained: make(chan struct{})})
	return h
}

// Acquire looks up the object behind h and marks it in use, preventing
// Destroy from completing until the returned release function is called.
// ok is false if h is unknown or already condemned.
func (r *Registry) Acquire(h Handle) (obj Object, release func(), ok bool) {
	e, found := r.m.Load(h)
	if !found || e.condemned.Load() {
		return nil, nil, false
	}

	atomic.AddInt64(&e.refs, 1)
	if e.condemned.Load() {
		r.releaseEntry(e)
		return nil, nil, false
	}

	return e.obj, func() { r.releaseEntry(e) }, true
}

func (r *Registry) releaseEntry(e *entry) {
	if atomic.AddInt64(&e.refs, -1) == 0 && e.condemned.Load() {
		select {
		case <-e.drained:
		default:
			close(e.drained)
		}
	}
}

// Destroy condemns h, waits for every outstanding Acquire to release it,
// removes it from the table, and calls Destroy on the underlying object.
// ok is false if h is unknown or already condemned; calling Destroy twice
// on the same handle is a caller error the registry reports rather than
// silently accepting (spec §7 InvalidHandle).
func (r *Registry) Destroy(h Handle) (ok bool) {
	e, found := r.m.Load(h)
	if !found {
		return false
	}
	if !e.condemned.CompareAndSwap(false, true) {
		return false
	}

	r.m.Delete(h)

	if atomic.LoadInt64(&e.refs) > 0 {
		<-e.drained
	}

	e.obj.Destroy()
	return true
}

// DestroyAll condemns every live handle, waits for quiescence on each, and
// destroys them all. No Register call started before DestroyAll returns is
// guaranteed to survive it; this mirrors the original's requirement that a
// Context's DestroyAll leaves no object usable afterward.
func (r *Registry) DestroyAll() {
	var handles []Handle
	r.m.Range(func(h Handle, _ *entry) bool {
		handles = append(handles, h)
		return true
	})

	for _, h := range handles {
		r.Destroy(h)
	}
}

// Len returns the number of live (non-condemned) handles.
func (r *Registry) Len() int {
	n := 0
	r.m.Range(func(_ Handle, _ *entry) bool {
		n++
		return true
	})
	return n
}
