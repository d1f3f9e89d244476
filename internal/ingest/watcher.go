package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/tax-portal/internal/common"
)

type WatchConfig struct {
	Roots       []string      // watched recursively
	InitialScan bool          // emit files already present
	SkipHidden  bool          // ignore dotfiles and dot-directories
	Debounce    time.Duration // coalesce create/write bursts per path
	Logger      *slog.Logger
}

// StartWatcher emits each settled uploadable file path under the roots. Both
// channels close once ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := common.LoggerOrDefault(cfg.Logger)
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, r := range cfg.Roots {
		if err := addTree(w, r, cfg.SkipHidden); err != nil {
			logger.Error("ingest.watch.add_root_fail", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("ingest.watch.start", "roots", cfg.Roots, "debounce_ms", cfg.Debounce.Milliseconds())

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_fail", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if cfg.InitialScan {
			for _, r := range cfg.Roots {
				paths, stats, err := ScanDirectory(r, cfg.SkipHidden)
				if err != nil {
					logger.Warn("ingest.watch.scan_fail", "root", r, "error", err)
				}
				logger.Info("ingest.watch.scan", "root", r, "scanned", stats.Scanned, "matched", stats.Matched)
				for _, p := range paths {
					if !emit(p) {
						return
					}
				}
			}
		}

		pending := map[string]struct{}{}
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()

		flush := func() bool {
			for p := range pending {
				delete(pending, p)
				if !emit(p) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := addTree(w, e.Name, cfg.SkipHidden); err != nil {
							logger.Warn("ingest.watch.add_dir_fail", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !Uploadable(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				timer.Reset(cfg.Debounce)
			case <-timer.C:
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func addTree(w *fsnotify.Watcher, root string, skipHidden bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipHidden && IsHidden(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
