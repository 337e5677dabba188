package terminal

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports terminals that go away. Shell sockets are watched with
// fsnotify; everything else is noticed by polling the Set.
type Watcher struct {
	set      *Set
	dirs     []string
	interval time.Duration
	log      *zap.Logger
}

type WatcherOptions struct {
	// Dirs are shell runtime directories to watch for removed sockets.
	Dirs []string

	// Interval between full rescans (default 2s).
	Interval time.Duration

	Logger *zap.Logger
}

func NewWatcher(set *Set, opts WatcherOptions) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{set: set, dirs: opts.Dirs, interval: opts.Interval, log: opts.Logger}
}

// Watch emits every known terminal once when it closes. The channel is
// closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan Handle, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fsw.Close()
			return nil, err
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	known := make(map[string]Handle)
	w.rescan(ctx, known, nil)

	out := make(chan Handle, 16)
	go func() {
		defer close(out)
		defer fsw.Close()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		emit := func(h Handle) bool {
			select {
			case out <- h:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					var closed []Handle
					w.rescan(ctx, known, &closed)
					for _, h := range closed {
						if !emit(h) {
							return
						}
					}
					continue
				}
				if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				id, ok := shellIDFromSocket(ev.Name)
				if !ok {
					continue
				}
				if h, ok := known[id]; ok {
					delete(known, id)
					w.log.Debug("shell socket removed", zap.String("id", id))
					if !emit(h) {
						return
					}
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", zap.Error(err))
			case <-ticker.C:
				var closed []Handle
				w.rescan(ctx, known, &closed)
				for _, h := range closed {
					if !emit(h) {
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// rescan refreshes known from the Set. Terminals that disappeared are
// appended to closed when it is non-nil.
func (w *Watcher) rescan(ctx context.Context, known map[string]Handle, closed *[]Handle) {
	all, err := w.set.All(ctx)
	if err != nil {
		w.log.Warn("list terminals", zap.Error(err))
		if len(all) == 0 {
			// a failing provider must not look like every terminal closing
			return
		}
	}
	current := make(map[string]Handle, len(all))
	for _, h := range all {
		current[h.ID()] = h
	}
	for id, h := range known {
		if _, ok := current[id]; ok {
			continue
		}
		delete(known, id)
		if closed != nil {
			*closed = append(*closed, h)
		}
	}
	for id, h := range current {
		known[id] = h
	}
}
