// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

// Scanner walks a tree and collects video and subtitle files.
type Scanner struct {
	cfg *domain.Config
}

func NewScanner(cfg *domain.Config) *Scanner {
	return &Scanner{cfg: cfg}
}

// Scan returns every media file below root. A missing root wraps fs.ErrNotExist.
func (s *Scanner) Scan(ctx context.Context, root string) ([]MediaFile, error) {
	root = pathcmp.NormalizePath(root)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		if file, ok := s.statFile(root); ok {
			return []MediaFile{file}, nil
		}
		return nil, nil
	}

	var files []MediaFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return fmt.Errorf("scan canceled: %w", ctx.Err())
		}

		if walkErr != nil {
			if path == root {
				return walkErr
			}
			log.Debug().Err(walkErr).Str("path", path).Msg("organizer: skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if s.cfg.IsBlacklisted(d.Name()) || s.isTargetDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.cfg.IsBlacklisted(d.Name()) {
			return nil
		}

		if file, ok := s.statFile(path); ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}

// statFile accepts regular files and symlinks that resolve to regular files.
func (s *Scanner) statFile(path string) (MediaFile, bool) {
	file := MediaFile{Path: path}
	if !s.cfg.IsMedia(filepath.Ext(path)) {
		return file, false
	}

	// os.Stat follows symlinks
	info, err := os.Stat(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("organizer: skipping file")
		return file, false
	}
	if !info.Mode().IsRegular() {
		return file, false
	}

	return NewMediaFile(path, info), true
}

func (s *Scanner) isTargetDir(path string) bool {
	return s.cfg.TargetDir != "" && pathcmp.HasPrefix(path, s.cfg.TargetDir)
}
