// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/pkg/debounce"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

// Triggerer is woken when the source tree settles after a burst of events.
type Triggerer interface {
	Trigger()
}

// SourceWatcher watches the source tree and triggers a reconcile once
// created or renamed entries stop arriving for the debounce delay.
type SourceWatcher struct {
	cfg       *domain.Config
	target    Triggerer
	watcher   *fsnotify.Watcher
	coalescer *debounce.Coalescer

	mu      sync.Mutex
	watched map[string]struct{}
	stop    chan struct{}
	done    chan struct{}
}

func NewSourceWatcher(cfg *domain.Config, target Triggerer, delay time.Duration) (*SourceWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &SourceWatcher{
		cfg:     cfg,
		target:  target,
		watcher: fw,
		watched: make(map[string]struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	w.coalescer = debounce.New(delay, w.flush)
	return w, nil
}

// Start adds the source tree and begins processing events.
func (w *SourceWatcher) Start() error {
	if err := w.addRecursive(w.cfg.SourceDir); err != nil {
		return err
	}
	go w.eventLoop()

	w.mu.Lock()
	count := len(w.watched)
	w.mu.Unlock()
	log.Info().Str("source", w.cfg.SourceDir).Int("dirs", count).Msg("organizer: source watcher started")
	return nil
}

// Stop closes the watcher and flushes pending events.
func (w *SourceWatcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
	}
	_ = w.watcher.Close()
	<-w.done
	w.coalescer.Stop()
}

// Watched returns the number of watched directories.
func (w *SourceWatcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *SourceWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (w.cfg.IsBlacklisted(d.Name()) || pathcmp.HasPrefix(path, w.cfg.TargetDir)) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		_, seen := w.watched[path]
		w.mu.Unlock()
		if seen {
			return nil
		}

		if err := w.watcher.Add(path); err != nil {
			log.Debug().Err(err).Str("dir", path).Msg("organizer: could not watch directory")
			return nil
		}
		w.mu.Lock()
		w.watched[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

func (w *SourceWatcher) eventLoop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("organizer: source watcher error")
		}
	}
}

func (w *SourceWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.watched, event.Name)
		w.mu.Unlock()
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	info, err := os.Stat(event.Name)
	if err == nil && info.IsDir() {
		if err := w.addRecursive(event.Name); err != nil {
			log.Debug().Err(err).Str("dir", event.Name).Msg("organizer: could not watch new directory")
		}
		// a directory moved in may already hold media
		w.coalescer.Add(event.Name)
		return
	}

	// rename events name the old path, which no longer exists
	if err != nil && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.cfg.IsMedia(filepath.Ext(event.Name)) || w.cfg.IsBlacklisted(filepath.Base(event.Name)) {
		return
	}
	w.coalescer.Add(event.Name)
}

func (w *SourceWatcher) flush(paths []string) {
	log.Debug().Int("paths", len(paths)).Msg("organizer: source changes settled, triggering reconcile")
	w.target.Trigger()
}
