// Package ringbuf implements the single-producer/single-consumer byte ring
// buffer the transport and message-transport layers use to decouple a
// socket's read/write loop from the reactor thread that drains it
// (spec §4.C). One goroutine calls the write-side methods, a different
// goroutine calls the read-side methods; no lock is taken on the hot path,
// only the two atomic cursors are touched.
package ringbuf

import (
	"sync/atomic"
)

// cacheLinePad is sized to push the read and write cursors onto separate
// cache lines, so the producer and consumer goroutines don't ping-pong the
// same line back and forth on every push/pop.
const cacheLinePad = 64 - 8

// Buffer is a fixed-capacity SPSC ring buffer of bytes. The zero value is
// not usable; construct with New.
type Buffer struct {
	data []byte // len(data) == capacity+1; one slot is always left empty
	cap  int    // usable capacity (N), distinct from len(data)

	readIdx int64
	_       [cacheLinePad]byte
	writeIdx int64
	_        [cacheLinePad]byte
}

// New returns a Buffer able to hold up to capacity bytes before Full
// reports true.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		data: make([]byte, capacity+1),
		cap:  capacity,
	}
}

func (b *Buffer) size() int64 {
	return int64(len(b.data))
}

func (b *Buffer) loadRead() int64  { return atomic.LoadInt64(&b.readIdx) }
func (b *Buffer) loadWrite() int64 { return atomic.LoadInt64(&b.writeIdx) }

// Empty reports whether there is nothing left to read. Safe to call from
// either side.
func (b *Buffer) Empty() bool {
	return b.loadRead() == b.loadWrite()
}

// Full reports whether there is no room left to write. Safe to call from
// either side.
func (b *Buffer) Full() bool {
	return b.AvailableForWrite() == 0
}

// AvailableForRead returns the number of bytes a reader could Read right now.
func (b *Buffer) AvailableForRead() int {
	r, w, n := b.loadRead(), b.loadWrite(), b.size()
	if w >= r {
		return int(w - r)
	}
	return int(n - r + w)
}

// AvailableForWrite returns the number of bytes a writer could Write right
// now before the buffer reports Full.
func (b *Buffer) AvailableForWrite() int {
	return b.cap - b.AvailableForRead()
}

// Front returns the next byte that would be returned by Pop, without
// removing it. ok is false if the buffer is empty.
func (b *Buffer) Front() (c byte, ok bool) {
	r, w := b.loadRead(), b.loadWrite()
	if r == w {
		return 0, false
	}
	return b.data[r], true
}

// Pop removes and returns the next byte. ok is false if the buffer was
// empty.
func (b *Buffer) Pop() (c byte, ok bool) {
	c, ok = b.Front()
	if !ok {
		return 0, false
	}
	b.Discard(1)
	return c, true
}

// PopUntil reads and removes bytes one at a time until pred returns true for
// a byte (which is included in the result) or the buffer runs dry. found
// reports whether pred matched; when it is false, out holds every byte that
// was available, and the caller should treat the scan as incomplete.
func (b *Buffer) PopUntil(pred func(byte) bool) (out []byte, found bool) {
	for {
		c, ok := b.Front()
		if !ok {
			return out, false
		}
		b.Discard(1)
		out = append(out, c)
		if pred(c) {
			return out, true
		}
	}
}

// Write copies as much of p as fits into the buffer and returns the number
// of bytes copied. The caller must retry with the remainder if the result
// is less than len(p).
func (b *Buffer) Write(p []byte) int {
	n := b.AvailableForWrite()
	if n > len(p) {
		n = len(p)
	}
	written := 0
	for written < n {
		chunk := b.FirstWriteArray()
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > n-written {
			chunk = chunk[:n-written]
		}
		copy(chunk, p[written:])
		b.CommitFirstWriteArray(len(chunk))
		written += len(chunk)
	}
	return written
}

// Read copies as many available bytes as fit into p and returns the number
// of bytes copied.
func (b *Buffer) Read(p []byte) int {
	n := b.AvailableForRead()
	if n > len(p) {
		n = len(p)
	}
	read := 0
	for read < n {
		chunk := b.FirstReadArray()
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > n-read {
			chunk = chunk[:n-read]
		}
		copy(p[read:], chunk)
		b.CommitFirstReadArray(len(chunk))
		read += len(chunk)
	}
	return read
}

// Discard drops up to n bytes from the read side without copying them out,
// returning the number actually discarded.
func (b *Buffer) Discard(n int) int {
	avail := b.AvailableForRead()
	if n > avail {
		n = avail
	}
	r := b.loadRead()
	r = (r + int64(n)) % b.size()
	atomic.StoreInt64(&b.readIdx, r)
	return n
}

// FirstReadArray returns the largest contiguous slice of unread bytes
// starting at the current read cursor. Because the buffer wraps, this may
// be less than AvailableForRead(); a second call after
// CommitFirstReadArray exposes the rest. The caller must not retain the
// slice past the next write-side commit.
func (b *Buffer) FirstReadArray() []byte {
	r, w := b.loadRead(), b.loadWrite()
	if r == w {
		return nil
	}
	if w > r {
		return b.data[r:w]
	}
	return b.data[r:]
}

// FirstWriteArray returns the largest contiguous slice available to write
// into starting at the current write cursor. As with FirstReadArray, a
// wraparound may require a second call after CommitFirstWriteArray.
func (b *Buffer) FirstWriteArray() []byte {
	r, w := b.loadRead(), b.loadWrite()
	n := b.size()

	// one slot must always stay empty to distinguish full from empty.
	if w < r {
		return b.data[w : r-1]
	}
	if r == 0 {
		return b.data[w : n-1]
	}
	return b.data[w:]
}

// CommitFirstReadArray advances the read cursor by k bytes after the caller
// has consumed k bytes directly from the slice returned by FirstReadArray.
func (b *Buffer) CommitFirstReadArray(k int) {
	b.Discard(k)
}

// CommitFirstWriteArray advances the write cursor by k bytes after the
// caller has written k bytes directly into the slice returned by
// FirstWriteArray.
func (b *Buffer) CommitFirstWriteArray(k int) {
	w := b.loadWrite()
	w = (w + int64(k)) % b.size()
	atomic.StoreInt64(&b.writeIdx, w)
}

// Cap returns the usable capacity N the buffer was constructed with.
func (b *Buffer) Cap() int {
	return b.cap
}

// PeekAll copies up to maxLen available bytes into a freshly allocated
// slice without consuming them, stitching across the wraparound that
// FirstReadArray alone would expose as two calls. Callers that need to
// look ahead at a header before deciding whether to Discard it (the
// message-transport framing layer) use this instead of Read.
func (b *Buffer) PeekAll(maxLen int) []byte {
	avail := b.AvailableForRead()
	if maxLen > 0 && maxLen < avail {
		avail = maxLen
	}
	if avail == 0 {
		return nil
	}

	out := make([]byte, 0, avail)
	r := b.loadRead()
	for len(out) < avail {
		end := r + int64(avail-len(out))
		if end > b.size() {
			end = b.size()
		}
		out = append(out, b.data[r:end]...)
		r = end % b.size()
	}
	return out
}
