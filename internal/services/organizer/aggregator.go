// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

// Aggregator groups scanned files into items.
type Aggregator struct {
	cfg *domain.Config
}

func NewAggregator(cfg *domain.Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

type fileGroup struct {
	key   string
	name  string
	root  string
	loose bool
	files []MediaFile
}

// Aggregate groups files by their top level entry below the source root.
// Folders holding several differently dated movies are split into one item
// per file, and episodic items that share a phonetic key are merged.
func (a *Aggregator) Aggregate(files []MediaFile) []*MediaItem {
	groups := a.group(files)

	items := make([]*MediaItem, 0, len(groups))
	for _, g := range groups {
		if !g.loose && a.isMovieCollection(g.files) {
			for _, f := range g.files {
				items = append(items, newItem(f.Stem(), f.Path, []MediaFile{f}))
			}
			continue
		}
		items = append(items, newItem(g.name, g.root, g.files))
	}

	return mergeEpisodic(items)
}

func newItem(name, root string, files []MediaFile) *MediaItem {
	return &MediaItem{
		Name:      name,
		RootPath:  root,
		Files:     files,
		MediaType: models.MediaTypeUnknown,
		Status:    models.SearchStatusPending,
	}
}

func (a *Aggregator) group(files []MediaFile) []*fileGroup {
	byKey := make(map[string]*fileGroup)

	for _, f := range files {
		segments := pathcmp.Segments(f.Path, a.cfg.SourceDir)
		if len(segments) == 0 {
			log.Debug().Str("path", f.Path).Msg("organizer: file outside source root, skipping")
			continue
		}

		var key string
		g := &fileGroup{}
		if len(segments) == 1 {
			stem := f.Stem()
			if a.cfg.IsSubtitle(f.Extension) {
				stem, _ = splitLanguage(stem)
			}
			key = "file:" + stem
			g.name, g.root, g.loose = stem, f.Path, true
		} else {
			key = "dir:" + segments[0]
			g.name, g.root = segments[0], filepath.Join(a.cfg.SourceDir, segments[0])
		}

		existing, ok := byKey[key]
		if !ok {
			g.key = key
			byKey[key] = g
			existing = g
		}
		existing.files = append(existing.files, f)
		// a loose group is rooted at its video, not its subtitle
		if existing.loose && a.cfg.IsVideo(f.Extension) {
			existing.root = f.Path
		}
	}

	groups := make([]*fileGroup, 0, len(byKey))
	for _, g := range byKey {
		sort.SliceStable(g.files, func(i, j int) bool { return g.files[i].Path < g.files[j].Path })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

// isMovieCollection reports a folder of unrelated films: no episode markers
// and more than one distinct year.
func (a *Aggregator) isMovieCollection(files []MediaFile) bool {
	if len(files) < 2 {
		return false
	}
	years := make(map[int]struct{})
	for _, f := range files {
		if hasEpisodeMarker(f.Name()) {
			return false
		}
		if y := firstYear(f.Name()); y > 0 {
			years[y] = struct{}{}
		}
	}
	return len(years) > 1
}

func mergeEpisodic(items []*MediaItem) []*MediaItem {
	merged := make(map[string]*MediaItem)
	var order []string
	var standalone []*MediaItem

	for _, item := range items {
		if !itemHasMarker(item) {
			standalone = append(standalone, item)
			continue
		}
		key := phoneticKey(item.Name)
		if key == "" {
			standalone = append(standalone, item)
			continue
		}
		if first, ok := merged[key]; ok {
			first.Files = append(first.Files, item.Files...)
			continue
		}
		merged[key] = item
		order = append(order, key)
	}

	out := make([]*MediaItem, 0, len(order)+len(standalone))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return append(out, standalone...)
}

func itemHasMarker(item *MediaItem) bool {
	for _, f := range item.Files {
		if hasEpisodeMarker(f.Name()) {
			return true
		}
	}
	return false
}
