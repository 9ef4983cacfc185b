// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"path/filepath"
	"strings"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

const discDirName = "BDMV"

// Classifier decides whether an item is a movie or a show.
type Classifier struct {
	cfg *domain.Config
}

func NewClassifier(cfg *domain.Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify sets item.MediaType. Running it twice gives the same answer.
func (c *Classifier) Classify(item *MediaItem) {
	if isDiscItem(item) {
		item.MediaType = models.MediaTypeMovie
		return
	}

	folderTV := c.hasSeasonFolder(item)

	var videos []MediaFile
	for _, f := range item.Files {
		if c.cfg.IsVideo(f.Extension) {
			videos = append(videos, f)
		}
	}

	switch {
	case len(videos) > 1:
		episodes := 0
		for _, f := range videos {
			if hasEpisodePattern(f.Name()) {
				episodes++
			}
		}
		if episodes > 1 || folderTV {
			item.MediaType = models.MediaTypeTV
			return
		}
		item.MediaType = models.MediaTypeMovie
	case len(videos) == 1:
		if folderTV || hasEpisodePattern(videos[0].Name()) {
			item.MediaType = models.MediaTypeTV
			return
		}
		item.MediaType = models.MediaTypeMovie
	default:
		if folderTV {
			item.MediaType = models.MediaTypeTV
			return
		}
		for _, f := range item.Files {
			if hasEpisodePattern(f.Name()) {
				item.MediaType = models.MediaTypeTV
				return
			}
		}
		item.MediaType = models.MediaTypeMovie
	}
}

// hasSeasonFolder checks the directories of the item root and of every file
// below the source root. File names themselves are not considered.
func (c *Classifier) hasSeasonFolder(item *MediaItem) bool {
	seen := make(map[string]struct{})
	check := func(dir string) bool {
		if _, ok := seen[dir]; ok {
			return false
		}
		seen[dir] = struct{}{}
		for _, part := range c.dirParts(dir) {
			if isSeasonFolder(part) {
				return true
			}
		}
		return false
	}

	if check(item.Dir()) {
		return true
	}
	for _, f := range item.Files {
		if check(filepath.Dir(f.Path)) {
			return true
		}
	}
	return false
}

func (c *Classifier) dirParts(dir string) []string {
	if parts := pathcmp.Segments(dir, c.cfg.SourceDir); parts != nil {
		return parts
	}
	if pathcmp.NormalizePath(dir) == pathcmp.NormalizePath(c.cfg.SourceDir) {
		return nil
	}
	return strings.Split(strings.Trim(filepath.ToSlash(dir), "/"), "/")
}

func isDiscItem(item *MediaItem) bool {
	if hasDiscSegment(item.RootPath) {
		return true
	}
	for _, f := range item.Files {
		if hasDiscSegment(filepath.Dir(f.Path)) {
			return true
		}
	}
	return false
}

func hasDiscSegment(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.EqualFold(part, discDirName) {
			return true
		}
	}
	return false
}
