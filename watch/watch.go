// Package watch turns file system changes under an asset root into
// pipeline invalidation events.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/shaderpipe/asset"
	"github.com/gogpu/shaderpipe/internal/logging"
	"github.com/gogpu/shaderpipe/pipeline"
)

// DefaultDebounce is the quiet period after the last change to an asset
// before its event is sent. Editors typically emit a create, a write and a
// chmod for one save.
const DefaultDebounce = 100 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the per-asset quiet period. 0 sends every change at
// once.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// Watcher watches an asset root recursively and sends a pipeline.Event
// for every changed, created, renamed or removed asset file. It never
// touches the cache directly: events are applied by Cache.BeginFrame.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	events   chan<- pipeline.Event
	debounce time.Duration

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New starts watching root and every directory below it.
func New(root string, events chan<- pipeline.Event, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{
		root:     abs,
		fsw:      fsw,
		events:   events,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addTree(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// addTree adds dir and its subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.L().Warn("watch error", "root", w.root, "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				logging.L().Warn("watch new directory", "dir", ev.Name, "err", err)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if filepath.Ext(ev.Name) != asset.Ext {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	id := filepath.ToSlash(rel)
	logging.L().Debug("asset changed", "asset", id, "op", ev.Op.String())
	w.schedule(id)
}

// schedule sends the event for id once no change has arrived for the
// debounce period. Each change restarts the period, so the event always
// follows the last write of a burst.
func (w *Watcher) schedule(id string) {
	if w.debounce <= 0 {
		w.send(id)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timers == nil {
		return
	}
	if t, ok := w.timers[id]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timers[id] == t {
			delete(w.timers, id)
		}
		w.mu.Unlock()
		w.send(id)
	})
	w.timers[id] = t
}

func (w *Watcher) send(id string) {
	select {
	case w.events <- pipeline.Event{AssetID: id}:
	case <-w.done:
	}
}

// Root returns the absolute path being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.timers = nil
		w.mu.Unlock()
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}
