package filemonitor

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultSettle is how long a file must stay unchanged before it is
// reported.
const DefaultSettle = 200 * time.Millisecond

type watcher struct {
	notify     *fsnotify.Watcher
	logger     logrus.FieldLogger
	accept     func(path string) bool
	onUpdateFn func(path string)
	settle     time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatch sets up monitoring on a slice of directories (non-recursive).
// onUpdateFn is called with the path of every created or written file
// that accept allows, once the file has settled. A nil accept allows
// every file.
func NewWatch(logger logrus.FieldLogger, pathsToWatch []string, accept func(string) bool, onUpdateFn func(string)) (*watcher, error) {
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, item := range pathsToWatch {
		if err := notify.Add(item); err != nil {
			notify.Close()
			return nil, err
		}
		logger.Debugf("monitoring path '%v'", item)
	}

	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &watcher{
		notify:     notify,
		logger:     logger,
		accept:     accept,
		onUpdateFn: onUpdateFn,
		settle:     DefaultSettle,
		pending:    make(map[string]*time.Timer),
	}, nil
}

// Run processes events until ctx is done.
func (w *watcher) Run(ctx context.Context) {
	go func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				w.notify.Close() // always returns nil for the error
				w.stopPending()
				w.logger.Debug("terminating watcher")
				return
			case event, ok := <-w.notify.Events:
				if !ok {
					return
				}
				w.logger.Debugf("watcher got event: %v", event)
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.accept(event.Name) {
					w.schedule(event.Name)
				}
			case err, ok := <-w.notify.Errors:
				if !ok {
					return
				}
				w.logger.Warnf("watcher got error: %v", err)
			}
		}
	}(ctx)
}

// schedule reports path once no event arrived for it during the settle
// period.
func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.onUpdateFn(path)
	})
}

func (w *watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
