package filewatch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Arrivals watches a directory for files to be processed.
//
// A file arrives when it is created or written, and then stays unchanged
// for the settle duration. Files being written are not sent until they settle.
//
// # Args
//
// - ctx: context.Context. When it is done, watching stops and the channel is closed.
//
// - dir: directory to be watched. Subdirectories are not watched.
//
// - settle: quiet period after the last change of a file.
//
// - match: filter by file path. nil means all files.
//
// # Returns
//
// - <-chan string: paths of arrived files.
//
// - error: error caused when it fails to start watching.
func Arrivals(ctx context.Context, dir string, settle time.Duration, match func(string) bool) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	if match == nil {
		match = func(string) bool { return true }
	}

	out := make(chan string)
	ready := make(chan string)
	done := make(chan struct{})

	mu := sync.Mutex{}
	pending := map[string]*time.Timer{}

	go func() {
		defer close(out)
		defer close(done)
		defer w.Close()
		defer func() {
			mu.Lock()
			defer mu.Unlock()
			for _, t := range pending {
				t.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case p := <-ready:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				name := filepath.Clean(event.Name)
				if !match(name) {
					continue
				}

				mu.Lock()
				if t, ok := pending[name]; ok {
					t.Reset(settle)
				} else {
					pending[name] = time.AfterFunc(settle, func() {
						mu.Lock()
						delete(pending, name)
						mu.Unlock()
						select {
						case ready <- name:
						case <-done:
						}
					})
				}
				mu.Unlock()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}
