package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
)

// Watcher re-merges a Document's configured files whenever one of them
// changes on disk.
type Watcher struct {
	fsw  *fsnotify.Watcher
	once sync.Once
	done chan struct{}
}

// Watch starts watching every file currently matched by patterns and calls
// onChange after each reload attempt (nil error on success, the MergeFiles
// error otherwise). Stop ends the watch; it is always safe to call more
// than once.
func Watch(doc *Document, patterns []string, onChange func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, liberr.ParsingFileFailed.Error(err)
	}

	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true
			_ = fsw.Add(path)
		}
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go w.loop(doc, patterns, onChange)
	return w, nil
}

func (w *Watcher) loop(doc *Document, patterns []string, onChange func(error)) {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&relevant == 0 {
				continue
			}
			err := doc.MergeFiles(patterns)
			if onChange != nil {
				onChange(err)
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Stop ends the watch and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
}
