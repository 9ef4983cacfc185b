// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

// LinkPlan pairs a source file with its absolute link path.
type LinkPlan struct {
	File   MediaFile
	Target string
}

// Linker owns every link file in the target tree.
type Linker struct {
	cfg      *domain.Config
	mapper   *PathMapper
	symlinks *models.SymlinkStore
	logs     *models.OperationLogStore
	recorder Recorder
}

func NewLinker(cfg *domain.Config, mapper *PathMapper, symlinks *models.SymlinkStore, logs *models.OperationLogStore, recorder Recorder) *Linker {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Linker{cfg: cfg, mapper: mapper, symlinks: symlinks, logs: logs, recorder: recorder}
}

// LinkItem links every planned file and returns how many links were made.
// A failing file does not stop its siblings.
func (l *Linker) LinkItem(ctx context.Context, item *MediaItem, plans []LinkPlan) int {
	return len(plans) - len(l.LinkAll(ctx, item, plans))
}

// LinkAll links every plan of item and returns the source paths that could
// not be linked.
func (l *Linker) LinkAll(ctx context.Context, item *MediaItem, plans []LinkPlan) map[string]error {
	linked := 0
	var failures []string
	failed := make(map[string]error)

	for _, plan := range plans {
		if err := l.link(ctx, plan.File.Path, plan.Target); err != nil {
			log.Error().Err(err).Str("source", plan.File.Path).Str("target", plan.Target).Msg("linker: failed to link file")
			failures = append(failures, fmt.Sprintf("%s: %v", plan.File.Name(), err))
			failed[plan.File.Path] = err
			l.addLog(ctx, models.ActionError, plan.Target, fmt.Sprintf("Failed to link: %v", err))
			continue
		}
		linked++
	}

	l.recorder.LinksCreated(linked)
	l.recorder.LinkFailures(len(failures))

	title := item.TitleLocal
	if title == "" {
		title = item.Name
	}

	if linked > 0 {
		parent := l.itemFolder(plans[0].Target)
		log.Info().Int("count", linked).Str("title", title).Str("parent", parent).Msg("linker: linked files")
		l.addLog(ctx, models.ActionLink, title, fmt.Sprintf("Linked %d files for '%s' to %s", linked, title, parent))
	}
	if len(failures) > 0 {
		log.Warn().Msgf("linker: partial failures for '%s': %d failed. %s", item.Name, len(failures), strings.Join(failures, "; "))
	}

	return failed
}

// Relink points the link recorded at target at a moved source.
func (l *Linker) Relink(ctx context.Context, source, target string) error {
	if err := l.link(ctx, source, target); err != nil {
		return fmt.Errorf("relink %s: %w", source, err)
	}
	return nil
}

// RemoveLink removes the link of source. An empty recordedTarget falls back
// to the symlink table.
func (l *Linker) RemoveLink(ctx context.Context, source, recordedTarget string) error {
	targets := make(map[string]struct{})
	if recordedTarget != "" {
		targets[recordedTarget] = struct{}{}
	}
	if link, err := l.symlinks.GetBySource(ctx, source); err == nil {
		targets[link.LinkPath] = struct{}{}
	} else if !errors.Is(err, models.ErrRecordNotFound) {
		return fmt.Errorf("lookup link for %s: %w", source, err)
	}

	var errs []error
	for target := range targets {
		if err := l.removeLinkFile(target); err != nil {
			errs = append(errs, err)
		}
	}
	if err := l.symlinks.DeleteBySource(ctx, source); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Purge removes everything below the target root and recreates the
// top level library folders.
func (l *Linker) Purge(ctx context.Context) error {
	root := l.cfg.TargetDir
	entries, err := os.ReadDir(root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read target dir: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		path := filepath.Join(root, entry.Name())
		if pathcmp.HasPrefix(l.cfg.SourceDir, path) {
			log.Warn().Str("path", path).Msg("linker: refusing to purge directory holding the source tree")
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	for _, dir := range []string{MoviesDir, TVShowsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	log.Info().Str("target", root).Msg("linker: target tree purged")
	return nil
}

func (l *Linker) link(ctx context.Context, source, target string) error {
	if previous, err := l.symlinks.GetBySource(ctx, source); err == nil && previous.LinkPath != target {
		if err := l.removeLinkFile(previous.LinkPath); err != nil {
			log.Debug().Err(err).Str("link", previous.LinkPath).Msg("linker: could not remove previous link")
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}

	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() {
			return fmt.Errorf("target %s is a directory", target)
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("remove existing target: %w", err)
		}
	}

	if err := os.Symlink(l.mapper.ToServed(source), target); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}

	if err := l.symlinks.Upsert(ctx, source, target); err != nil {
		return fmt.Errorf("record symlink: %w", err)
	}
	return nil
}

// removeLinkFile deletes path if it is a symlink inside the target tree and
// prunes the folders it leaves empty.
func (l *Linker) removeLinkFile(path string) error {
	if !pathcmp.IsUnder(path, l.cfg.TargetDir) {
		return fmt.Errorf("link %s is outside the target dir", path)
	}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat link: %w", err)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return fmt.Errorf("%s is not a symlink", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove link: %w", err)
	}

	l.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

func (l *Linker) pruneEmptyDirs(dir string) {
	for pathcmp.IsUnder(dir, l.cfg.TargetDir) {
		// keep Movies and TV Shows
		if filepath.Dir(dir) == pathcmp.NormalizePath(l.cfg.TargetDir) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// itemFolder returns <target>/<category>/<name> for a link path.
func (l *Linker) itemFolder(target string) string {
	segments := pathcmp.Segments(target, l.cfg.TargetDir)
	if len(segments) < 3 {
		return filepath.Dir(target)
	}
	return filepath.Join(l.cfg.TargetDir, segments[0], segments[1])
}

func (l *Linker) addLog(ctx context.Context, action models.ActionKind, target, details string) {
	if err := l.logs.Add(ctx, action, target, details); err != nil {
		log.Error().Err(err).Str("action", string(action)).Msg("linker: failed to write operation log")
	}
}
