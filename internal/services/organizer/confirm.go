// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

var ErrInvalidConfirm = errors.New("invalid confirm request")

// ConfirmRequest is a manual identification of a file or directory.
type ConfirmRequest struct {
	Path       string
	TMDBID     int
	MediaType  models.MediaType
	TitleLocal string
	TitleAlt   string
	Year       int
	Alias      string
	Season     *int
	Episode    *int
	// Batch applies the match to every sibling of Path.
	Batch bool
}

// ConfirmResult reports how many files were matched and linked.
type ConfirmResult struct {
	Files  int `json:"files"`
	Linked int `json:"linked"`
}

// Confirm stores a manual match and links the affected files.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if req.TMDBID <= 0 {
		return nil, fmt.Errorf("%w: tmdb id must be a positive integer", ErrInvalidConfirm)
	}
	req.Path = filepath.Clean(req.Path)

	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, fmt.Errorf("confirm %s: %w", req.Path, err)
	}

	if err := s.fillFromCatalog(ctx, &req); err != nil {
		return nil, err
	}
	if req.MediaType != models.MediaTypeMovie && req.MediaType != models.MediaTypeTV {
		return nil, fmt.Errorf("%w: media type must be movie or tv", ErrInvalidConfirm)
	}

	var items []*MediaItem
	parent := filepath.Dir(req.Path)
	batch := req.Batch && !info.IsDir()
	if batch && pathcmp.NormalizePath(parent) == pathcmp.NormalizePath(s.cfg.SourceDir) {
		log.Warn().Str("path", req.Path).Msg("organizer: batch confirm of a file in the source root, matching the file only")
		batch = false
	}

	switch {
	case batch:
		files, err := s.scanner.Scan(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("scan siblings of %s: %w", req.Path, err)
		}
		items = s.batchItems(req, files)
	default:
		item, err := s.singleItem(ctx, req, info.IsDir())
		if err != nil {
			return nil, err
		}
		items = []*MediaItem{item}
	}

	result := &ConfirmResult{}
	for _, item := range items {
		for _, f := range item.Files {
			if err := s.records.Delete(ctx, f.Path); err != nil {
				return result, fmt.Errorf("replace record %s: %w", f.Path, err)
			}
		}
		linked, err := s.saveAndLink(ctx, item)
		if err != nil {
			return result, err
		}
		result.Files += len(item.Files)
		result.Linked += linked
	}

	title := req.TitleLocal
	if title == "" {
		title = req.Alias
	}
	log.Info().Str("path", req.Path).Int("files", result.Files).Bool("batch", batch).Msg("organizer: manual match confirmed")
	s.addLog(ctx, models.ActionConfirm, req.Path, fmt.Sprintf("Confirmed as '%s' (TMDB: %d), %d files", title, req.TMDBID, result.Files))
	return result, nil
}

// fillFromCatalog completes titles and year from the catalog when the
// request only carries an id. The catalog reported type wins.
func (s *Service) fillFromCatalog(ctx context.Context, req *ConfirmRequest) error {
	if req.TitleLocal != "" {
		return nil
	}

	alias := fmt.Sprintf("tmdb-%d", req.TMDBID)
	if req.MediaType == models.MediaTypeMovie || req.MediaType == models.MediaTypeTV {
		alias = fmt.Sprintf("tmdb-%s-%d", kindFor(req.MediaType), req.TMDBID)
	}

	candidates, err := s.searcher.SearchAll(ctx, alias, req.MediaType)
	if err != nil {
		return fmt.Errorf("lookup tmdb %d: %w", req.TMDBID, err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: title is required when tmdb %d cannot be looked up", ErrInvalidConfirm, req.TMDBID)
	}

	c := candidates[0]
	req.TitleLocal = c.TitleLocal
	if req.TitleAlt == "" {
		req.TitleAlt = c.TitleAlt
	}
	if req.Year == 0 {
		req.Year = c.Year
	}
	if c.MediaType != "" && c.MediaType != req.MediaType {
		log.Info().Str("from", string(req.MediaType)).Str("to", string(c.MediaType)).Msg("organizer: confirm type switched by catalog")
		req.MediaType = c.MediaType
	}
	return nil
}

func (s *Service) confirmedItem(req ConfirmRequest, name, root string, files []MediaFile) *MediaItem {
	return &MediaItem{
		Name:       name,
		RootPath:   root,
		Files:      files,
		MediaType:  req.MediaType,
		TitleLocal: req.TitleLocal,
		TitleAlt:   req.TitleAlt,
		TMDBID:     req.TMDBID,
		Year:       req.Year,
		Alias:      req.Alias,
		Season:     req.Season,
		Episode:    req.Episode,
		Status:     models.SearchStatusFound,
	}
}

// batchItems builds one item per sibling. Episodes that cannot be read from
// a file name are numbered by file name order.
func (s *Service) batchItems(req ConfirmRequest, files []MediaFile) []*MediaItem {
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	items := make([]*MediaItem, 0, len(files))
	for idx, f := range files {
		item := s.confirmedItem(req, f.Name(), f.Path, []MediaFile{f})
		item.Episode = nil

		if req.MediaType == models.MediaTypeTV {
			if _, episode := parseEpisode(f.Name()); episode == 0 {
				log.Debug().Str("file", f.Name()).Int("episode", idx+1).Msg("organizer: assigning episode by order")
				item.SetOverride(f.Path, nil, intPtr(idx+1))
			}
		}
		items = append(items, item)
	}
	return items
}

func (s *Service) singleItem(ctx context.Context, req ConfirmRequest, isDir bool) (*MediaItem, error) {
	var files []MediaFile
	if isDir {
		scanned, err := s.scanner.Scan(ctx, req.Path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", req.Path, err)
		}
		files = scanned
	} else {
		found, err := s.collect(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		files = found
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no media files at %s", ErrInvalidConfirm, req.Path)
	}

	item := s.confirmedItem(req, filepath.Base(req.Path), req.Path, files)
	if req.MediaType == models.MediaTypeTV {
		s.classifier.Classify(item)
		if item.MediaType != models.MediaTypeTV {
			log.Debug().Str("path", req.Path).Msg("organizer: classifier disagrees with confirmed type, keeping tv")
			item.MediaType = models.MediaTypeTV
		}
	}
	return item, nil
}
