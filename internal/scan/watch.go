package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/warden/internal/deps"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/lang"
)

// DefaultDebounce is the quiet period after the last change before a
// rescan.
const DefaultDebounce = 300 * time.Millisecond

// WatchOptions configure Watch.
type WatchOptions struct {
	Debounce time.Duration

	// OnReport receives the result of every scan, the initial one
	// included. It runs on the watch goroutine.
	OnReport func(*ir.Report, error)
}

// Watch scans root, then rescans whenever a source file or manifest under
// it changes, until ctx is done. Bursts of events within the debounce
// window produce one scan.
func (s *Scanner) Watch(ctx context.Context, root string, opts WatchOptions) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	report := opts.OnReport
	if report == nil {
		report = func(*ir.Report, error) {}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer w.Close()

	if err := s.watchTree(w, root); err != nil {
		return err
	}

	report(s.ScanProject(ctx, root))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed")
			}
			changed := s.relevant(root, ev.Name)
			// Files written into a new directory before it is watched
			// produce no events of their own.
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !s.skip[info.Name()] {
					if err := s.watchTree(w, ev.Name); err != nil {
						s.logger.Warn("watch: add directory", "dir", ev.Name, "error", err)
					}
					changed = true
				}
			}
			if !changed {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			s.logger.Debug("watch: rescanning", "root", root)
			report(s.ScanProject(ctx, root))

		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed")
			}
			s.logger.Warn("watch: fsnotify error", "error", err)
		}
	}
}

func (s *Scanner) watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && s.skip[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether a change to path can alter a report.
func (s *Scanner) relevant(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if s.skip[part] {
			return false
		}
	}
	if excluded(s.exclude, rel) {
		return false
	}
	return lang.Detect(rel) != lang.Unknown || deps.IsManifest(rel)
}
