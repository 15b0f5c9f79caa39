package ragblade

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watcher re-runs ingestion of the configured documents when one of them
// changes. Parent directories are watched instead of the files, because
// editors commonly save by renaming a new file over the old one.
type watcher struct {
	svc      Service
	paths    []string
	files    map[string]struct{}
	debounce time.Duration
	fs       *fsnotify.Watcher
	log      *zap.Logger
}

func newWatcher(svc Service, paths []string, debounce time.Duration) (*watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoDocuments
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &watcher{
		svc:      svc,
		paths:    paths,
		files:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		fs:       fs,
		log: zap.L().With(
			zap.String("component", "watcher"),
		),
	}

	dirs := make(map[string]struct{})
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			fs.Close()
			return nil, err
		}

		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}

	_, ok := w.files[abs]
	return ok
}

func (w *watcher) run(ctx context.Context) {
	log := w.log.With(
		zap.String("action", "watch"),
		zap.Duration("debounce", w.debounce),
	)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("done")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}

			if !w.relevant(event) {
				continue
			}

			log.Debug("document changed", zap.String("file", event.Name))
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}

			log.Error(err.Error())

		case <-timer.C:
			count, err := w.svc.Ingest(ctx, w.paths)
			if err != nil {
				log.Error(err.Error())
				continue
			}

			log.Info("documents reindexed", zap.Int("chunks", count))
		}
	}
}

func (w *watcher) Close() error {
	return w.fs.Close()
}
