// Package watcher reports changes to a configuration file.
//
// The parent directory is watched rather than the file itself so that
// editors which save by writing a temp file and renaming it are still seen.
// Bursts of events are debounced into one callback.
package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// Operation is the kind of change observed.
type Operation int

const (
	// OpWrite indicates the file was modified or replaced.
	OpWrite Operation = iota

	// OpRemove indicates the file was deleted or renamed away.
	OpRemove
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event describes a settled change to the watched file.
type Event struct {
	Path string
	Op   Operation
	Time time.Time
}

// Handler is called from the watcher goroutine after each settled change.
type Handler func(Event)

// Watcher monitors a single file.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	fs *fsnotify.Watcher

	mu       sync.Mutex
	handlers []Handler
	timer    *time.Timer
	pending  Operation

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce period. Zero reports every event.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New starts watching path. Call Close to stop.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	w.fs = fw

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// OnChange registers a handler for change events.
func (w *Watcher) OnChange(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Close stops the watcher and waits for its goroutine. Pending events are dropped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				w.queue(OpWrite)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				w.queue(OpRemove)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.Any("error", err))
		}
	}
}

// queue schedules op, replacing any change still inside the debounce window.
func (w *Watcher) queue(op Operation) {
	if w.debounce == 0 {
		w.emit(op)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		op := w.pending
		w.mu.Unlock()
		w.emit(op)
	})
}

func (w *Watcher) emit(op Operation) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	ev := Event{Path: w.path, Op: op, Time: time.Now()}
	for _, h := range handlers {
		h(ev)
	}
}
