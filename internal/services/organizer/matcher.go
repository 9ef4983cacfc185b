// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

const siblingLookupLimit = 50

// Matcher resolves an item from stored state before falling back to a
// catalog search.
type Matcher struct {
	cfg      *domain.Config
	records  *models.MediaRecordStore
	logs     *models.OperationLogStore
	searcher *Searcher
}

func NewMatcher(cfg *domain.Config, records *models.MediaRecordStore, logs *models.OperationLogStore, searcher *Searcher) *Matcher {
	return &Matcher{cfg: cfg, records: records, logs: logs, searcher: searcher}
}

// Process sets the identity and status of item.
func (m *Matcher) Process(ctx context.Context, item *MediaItem) error {
	resolved, err := m.fromRecords(ctx, item)
	if err != nil {
		return err
	}
	if resolved {
		return nil
	}

	if m.canReuseSibling(item) {
		if m.matchSubtitleSibling(ctx, item) || m.matchTVSibling(ctx, item) {
			return nil
		}
	}

	if err := m.searcher.Search(ctx, item); err != nil {
		return fmt.Errorf("search %s: %w", item.Name, err)
	}

	if item.Status == models.SearchStatusFound && item.TMDBID > 0 {
		m.addLog(ctx, models.ActionMatch, item.Name, fmt.Sprintf("Matched with TMDB ID: %d", item.TMDBID))
	} else {
		m.addLog(ctx, models.ActionMatchFail, item.Name, fmt.Sprintf("Status: %s", item.Status))
	}
	return nil
}

// fromRecords restores hidden and found items from their stored records.
func (m *Matcher) fromRecords(ctx context.Context, item *MediaItem) (bool, error) {
	rootRecord, err := m.record(ctx, item.RootPath)
	if err != nil {
		return false, err
	}

	fileRecords := make([]*models.MediaRecord, len(item.Files))
	allHidden := len(item.Files) > 0
	for i, f := range item.Files {
		rec, err := m.record(ctx, f.Path)
		if err != nil {
			return false, err
		}
		fileRecords[i] = rec
		if rec == nil || rec.Status != models.SearchStatusHidden {
			allHidden = false
		}
	}

	if (rootRecord != nil && rootRecord.Status == models.SearchStatusHidden) || allHidden {
		item.Status = models.SearchStatusHidden
		return true, nil
	}

	source := rootRecord
	if !source.HasMatch() && len(fileRecords) > 0 {
		source = fileRecords[0]
	}
	if !source.HasMatch() {
		return false, nil
	}

	item.applyRecord(source)
	item.Status = models.SearchStatusFound
	for i, rec := range fileRecords {
		if rec != nil {
			item.SetOverride(item.Files[i].Path, rec.Season, rec.Episode)
		}
	}
	log.Debug().Str("item", item.Name).Int("tmdbId", item.TMDBID).Msg("organizer: restored match from database")
	return true, nil
}

func (m *Matcher) canReuseSibling(item *MediaItem) bool {
	return item.TMDBID == 0 && pathcmp.NormalizePath(item.Dir()) != pathcmp.NormalizePath(m.cfg.SourceDir)
}

// matchSubtitleSibling adopts the match of the video whose stem best fits
// the subtitle stems of item.
func (m *Matcher) matchSubtitleSibling(ctx context.Context, item *MediaItem) bool {
	if len(item.Files) == 0 {
		return false
	}
	for _, f := range item.Files {
		if !m.cfg.IsSubtitle(f.Extension) {
			return false
		}
	}

	found, err := m.records.ListFoundInDir(ctx, item.Dir(), siblingLookupLimit)
	if err != nil {
		log.Warn().Err(err).Str("dir", item.Dir()).Msg("organizer: sibling lookup failed")
		return false
	}

	var best *models.MediaRecord
	bestScore := 0
	for _, rec := range found {
		if !m.cfg.IsVideo(filepath.Ext(rec.OriginalPath)) {
			continue
		}
		videoStem := strings.TrimSuffix(filepath.Base(rec.OriginalPath), filepath.Ext(rec.OriginalPath))
		for _, f := range item.Files {
			subStem, _ := splitLanguage(f.Stem())
			if score := m.stemScore(videoStem, subStem); score > bestScore {
				best, bestScore = rec, score
			}
		}
	}

	if best == nil || bestScore < m.cfg.SubtitleMinScore {
		return false
	}

	m.adoptSibling(ctx, item, best, "subtitle")
	return true
}

func (m *Matcher) stemScore(video, subtitle string) int {
	video, subtitle = strings.ToLower(video), strings.ToLower(subtitle)
	switch {
	case video == "" || subtitle == "":
		return 0
	case video == subtitle:
		return m.cfg.SubtitleScoreExact
	case strings.HasPrefix(video, subtitle) || strings.HasPrefix(subtitle, video):
		return m.cfg.SubtitleScorePrefix
	case strings.Contains(video, subtitle) || strings.Contains(subtitle, video):
		return m.cfg.SubtitleScoreSubstring
	default:
		return 0
	}
}

func (m *Matcher) matchTVSibling(ctx context.Context, item *MediaItem) bool {
	if item.MediaType != models.MediaTypeTV {
		return false
	}

	sibling, err := m.records.GetFoundSibling(ctx, item.Dir())
	if err != nil {
		if !errors.Is(err, models.ErrRecordNotFound) {
			log.Warn().Err(err).Str("dir", item.Dir()).Msg("organizer: sibling lookup failed")
		}
		return false
	}

	m.adoptSibling(ctx, item, sibling, "tv")
	return true
}

func (m *Matcher) adoptSibling(ctx context.Context, item *MediaItem, sibling *models.MediaRecord, via string) {
	item.applyRecord(sibling)
	item.Status = models.SearchStatusFound

	title := sibling.TitleLocal
	if title == "" {
		title = sibling.TitleAlt
	}
	log.Debug().Str("item", item.Name).Str("via", via).Int("tmdbId", item.TMDBID).Msg("organizer: matched via sibling")
	m.addLog(ctx, models.ActionMatch, item.Name, fmt.Sprintf("Optimized match via sibling: %s (TMDB: %d)", title, item.TMDBID))
}

func (m *Matcher) record(ctx context.Context, path string) (*models.MediaRecord, error) {
	rec, err := m.records.GetByPath(ctx, path)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", path, err)
	}
	return rec, nil
}

func (m *Matcher) addLog(ctx context.Context, action models.ActionKind, target, details string) {
	if err := m.logs.Add(ctx, action, target, details); err != nil {
		log.Error().Err(err).Str("action", string(action)).Msg("organizer: failed to write operation log")
	}
}
