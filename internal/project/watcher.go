package project

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileTracker is the slice of the context file set the watcher needs:
// resolving event paths to tracked identities and re-flagging them for
// delivery.
type FileTracker interface {
	Normalize(path string) string
	MarkPending(path string) bool
	List() []string
}

// Watcher re-marks committed context files as pending when their on-disk
// content changes, so the next assembly re-sends file content without
// the user issuing another /add. Watch targets follow the tracker's
// committed list; directories are watched rather than files so editors
// that replace files on save are still observed.
type Watcher struct {
	fsw         *fsnotify.Watcher
	tracker     FileTracker
	workspace   string
	logger      *zap.Logger
	syncEvery   time.Duration
	debounceDur time.Duration
	lastEvent   map[string]time.Time
	watched     map[string]struct{}
}

// NewWatcher creates a Watcher over the given workspace. The returned
// watcher does nothing until Run is called.
func NewWatcher(workspace string, tracker FileTracker, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		fsw:         fsw,
		tracker:     tracker,
		workspace:   workspace,
		logger:      logger,
		syncEvery:   2 * time.Second,
		debounceDur: 500 * time.Millisecond, // debounce rapid saves
		lastEvent:   make(map[string]time.Time),
		watched:     make(map[string]struct{}),
	}, nil
}

// Run watches until ctx is cancelled. It periodically reconciles the
// watch list against the tracker's committed files, so files added after
// startup are picked up. Returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.syncTargets()

	ticker := time.NewTicker(w.syncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.syncTargets()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// syncTargets makes every committed file's parent directory watched.
// Directories are never unwatched; a stale watch on a dropped file's
// directory only costs ignored events.
func (w *Watcher) syncTargets() {
	for _, f := range w.tracker.List() {
		dir := filepath.Dir(f)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(w.workspace, dir)
		}
		if _, ok := w.watched[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Debug("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.watched[dir] = struct{}{}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	now := time.Now()
	if last, ok := w.lastEvent[event.Name]; ok && now.Sub(last) < w.debounceDur {
		return
	}
	w.lastEvent[event.Name] = now

	p := w.tracker.Normalize(event.Name)
	if w.tracker.MarkPending(p) {
		w.logger.Debug("context file changed, marked pending", zap.String("path", p))
	}
}
