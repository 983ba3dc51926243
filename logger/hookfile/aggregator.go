/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package hookfile provides file-based logging hooks for logrus.
// This file manages a small reference-counted registry of open log files so several
// hooks pointed at the same path share one *os.File instead of each opening its own.
package hookfile

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	libatm "github.com/yohummus/yogi-framework-sub001/atomic"
)

// ErrClosedResources is returned by a shared file writer once every hook
// referencing it has closed and the underlying file has been released.
var ErrClosedResources = errors.New("hookfile: shared file writer closed")

type fileAgg struct {
	i *atomic.Int64
	f *os.File
}

func (a *fileAgg) Write(p []byte) (int, error) {
	if a.f == nil {
		return 0, ErrClosedResources
	}
	return a.f.Write(p)
}

var agg = libatm.NewMapTyped[string, *fileAgg]()

// setAgg retrieves or creates a file writer for the given file path, shared by
// every hook pointed at the same path.
func setAgg(k string, m os.FileMode, cre bool) (io.Writer, error) {
	if i, l := agg.Load(k); l && i != nil {
		i.i.Add(1)
		return i, nil
	}

	fl := os.O_WRONLY | os.O_APPEND
	if cre {
		fl |= os.O_CREATE
	}

	f, e := os.OpenFile(k, fl, m)
	if e != nil {
		return nil, e
	}

	if _, e = f.Seek(0, io.SeekEnd); e != nil {
		_ = f.Close()
		return nil, e
	}

	i := &fileAgg{i: new(atomic.Int64), f: f}
	i.i.Store(1)
	agg.Store(k, i)
	return i, nil
}

// delAgg decreases the reference count for the writer at the given path,
// closing the underlying file once the last reference is released.
func delAgg(k string) {
	i, l := agg.Load(k)
	if !l || i == nil {
		return
	}

	if i.i.Add(-1) > 0 {
		return
	}

	agg.Delete(k)
	_ = i.f.Close()
	i.f = nil
}

// ResetOpenFiles closes every open file writer and clears the registry. Used
// by tests to avoid leaking file descriptors across specs.
func ResetOpenFiles() {
	agg.Range(func(k string, v *fileAgg) bool {
		if v != nil && v.f != nil {
			_ = v.f.Close()
		}
		agg.Delete(k)
		return true
	})
}
