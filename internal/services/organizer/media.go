// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package organizer turns a tree of downloaded media into a library of
// symlinks named the way Plex, Jellyfin and Emby expect. It scans the source
// tree, groups files into items, identifies them against TMDB and links every
// file under the target tree.
package organizer

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/autobrr/linkarr/internal/models"
)

// MediaFile is a snapshot of one file taken during a scan.
type MediaFile struct {
	Path      string
	Extension string
	Size      int64
	ModTime   time.Time
}

// NewMediaFile builds a MediaFile from a stat result.
func NewMediaFile(path string, info fs.FileInfo) MediaFile {
	return MediaFile{
		Path:      path,
		Extension: strings.ToLower(filepath.Ext(path)),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
	}
}

// Name returns the base name of the file.
func (f MediaFile) Name() string {
	return filepath.Base(f.Path)
}

// Stem returns the base name without its extension.
func (f MediaFile) Stem() string {
	name := f.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// EpisodeOverride pins the season and episode of a single file.
type EpisodeOverride struct {
	Season  *int
	Episode *int
}

// MediaItem is one logical title: a movie, a show or a loose file.
type MediaItem struct {
	Name      string
	RootPath  string
	Files     []MediaFile
	MediaType models.MediaType

	TitleLocal string
	TitleAlt   string
	TMDBID     int
	Year       int
	Alias      string

	// Season and Episode are manual values that apply to every file.
	Season  *int
	Episode *int

	SeasonHint       int
	EpisodeOverrides map[string]EpisodeOverride

	Status models.SearchStatus
}

// EarliestModTime returns the oldest file mtime, or the zero time for an empty item.
func (i *MediaItem) EarliestModTime() time.Time {
	var earliest time.Time
	for idx, f := range i.Files {
		if idx == 0 || f.ModTime.Before(earliest) {
			earliest = f.ModTime
		}
	}
	return earliest
}

// Dir returns the directory holding the item. A file rooted item lives in
// the parent of its root.
func (i *MediaItem) Dir() string {
	for _, f := range i.Files {
		if f.Path == i.RootPath {
			return filepath.Dir(i.RootPath)
		}
	}
	return i.RootPath
}

// SetOverride records a per-file season and episode.
func (i *MediaItem) SetOverride(path string, season, episode *int) {
	if season == nil && episode == nil {
		return
	}
	if i.EpisodeOverrides == nil {
		i.EpisodeOverrides = make(map[string]EpisodeOverride)
	}
	i.EpisodeOverrides[path] = EpisodeOverride{Season: season, Episode: episode}
}

// ApplyCandidate copies catalog metadata onto the item.
func (i *MediaItem) ApplyCandidate(c Candidate) {
	i.TMDBID = c.TMDBID
	i.TitleLocal = c.TitleLocal
	i.TitleAlt = c.TitleAlt
	i.Year = c.Year
	if c.MediaType == models.MediaTypeMovie || c.MediaType == models.MediaTypeTV {
		i.MediaType = c.MediaType
	}
}

// applyRecord restores the metadata of a previously matched record.
func (i *MediaItem) applyRecord(r *models.MediaRecord) {
	i.TMDBID = r.TMDBID
	i.TitleLocal = r.TitleLocal
	i.TitleAlt = r.TitleAlt
	i.Year = r.Year
	if r.Alias != "" {
		i.Alias = r.Alias
	}
	if r.MediaType != models.MediaTypeUnknown && r.MediaType != "" {
		i.MediaType = r.MediaType
	}
}

func intPtr(v int) *int {
	return &v
}
