// Package watch follows a run's results log and reports records as they
// are appended.
package watch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/safebench/mmbench/internal/domain"
)

// RecordCallback is called for each newly appended result
type RecordCallback func(res *domain.Result)

// Watcher tails one results file. Partial trailing lines are held back
// until the rest of the line arrives.
type Watcher struct {
	path     string
	callback RecordCallback
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	offset int64
	timer  *time.Timer
	cancel context.CancelFunc
}

// New creates a watcher over the given results file
func New(path string, callback RecordCallback) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		callback: callback,
		watcher:  fsw,
		debounce: 200 * time.Millisecond, // Batch rapid appends
	}
	return w, nil
}

// Start replays existing records, then follows appends until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	// fsnotify watches directories more reliably than single files that
	// may be renamed around.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.consume()
	w.mu.Unlock()

	ctx, w.cancel = context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Stop ends the watch
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Name != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.consume()
	})
}

// consume reads from the stored offset to EOF and emits complete lines.
// Caller holds the lock.
func (w *Watcher) consume() {
	f, err := os.Open(w.path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// Incomplete trailing line: leave the offset before it and
			// pick it up once the writer finishes the record.
			return
		}
		w.offset += int64(len(line))
		w.emit(line)
	}
}

func (w *Watcher) emit(line []byte) {
	var res domain.Result
	if err := json.Unmarshal(line, &res); err != nil {
		return
	}
	if w.callback != nil {
		w.callback(&res)
	}
}
