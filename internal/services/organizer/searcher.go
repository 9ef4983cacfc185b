// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/releases"
	"github.com/autobrr/linkarr/pkg/tmdb"
)

// Catalog is the subset of the TMDB client the searcher needs.
type Catalog interface {
	Search(ctx context.Context, kind tmdb.Kind, query string, year int, lang string) ([]tmdb.Result, error)
	Details(ctx context.Context, kind tmdb.Kind, id int, lang string) (*tmdb.Result, error)
}

// Candidate is one possible identification of an item.
type Candidate struct {
	TMDBID     int              `json:"tmdbId"`
	TitleLocal string           `json:"titleLocal"`
	TitleAlt   string           `json:"titleAlt,omitempty"`
	Year       int              `json:"year,omitempty"`
	Overview   string           `json:"overview,omitempty"`
	PosterURL  string           `json:"posterUrl,omitempty"`
	VoteCount  int              `json:"voteCount"`
	MediaType  models.MediaType `json:"mediaType,omitempty"`
}

var (
	forcedIDPattern   = regexp.MustCompile(`(?i)[{\[(](?:tmdb|tmdbid)-(?:(tv|movie)-)?(\d+)[}\])]`)
	discPartPattern   = regexp.MustCompile(`(?i)^(?:disc|disk|part|cd)\s*\d+$`)
	asciiTitlePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-:.!?]+$`)
)

// Searcher identifies items against the catalog.
type Searcher struct {
	catalog Catalog
	cfg     *domain.Config
	parser  *releases.Parser
}

// NewSearcher returns a searcher. A nil catalog finds nothing.
func NewSearcher(catalog Catalog, cfg *domain.Config, parser *releases.Parser) *Searcher {
	if parser == nil {
		parser = releases.NewDefaultParser()
	}
	return &Searcher{catalog: catalog, cfg: cfg, parser: parser}
}

// Search resolves item in place and sets its status.
func (s *Searcher) Search(ctx context.Context, item *MediaItem) error {
	if alias := forcedAlias(item); alias != "" {
		log.Debug().Str("item", item.Name).Str("alias", alias).Msg("organizer: forced tmdb id in path")
		item.Alias = alias
	}

	if item.MediaType == models.MediaTypeMovie {
		if name := discTitle(item); name != "" {
			log.Debug().Str("item", item.Name).Str("name", name).Msg("organizer: deduced disc title")
			item.Name = name
		}
	}

	if item.SeasonHint == 0 {
		item.SeasonHint = parseSeason(item.Name)
	}

	query := item.Name
	if item.Alias != "" {
		query = item.Alias
	}

	candidates, err := s.SearchAll(ctx, query, item.MediaType)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("item", item.Name).Msg("organizer: catalog lookup failed")
		item.Status = models.SearchStatusNotFound
		return nil
	}

	if len(candidates) == 0 && item.Alias == "" {
		if fallback := leadingHan(item.Name); fallback != "" && fallback != query {
			log.Debug().Str("item", item.Name).Str("query", fallback).Msg("organizer: retrying with leading han title")
			candidates, err = s.SearchAll(ctx, fallback, item.MediaType)
			if err != nil {
				log.Warn().Err(err).Str("item", item.Name).Msg("organizer: fallback lookup failed")
				candidates = nil
			}
		}
	}

	if len(candidates) == 0 {
		item.Status = models.SearchStatusNotFound
		return nil
	}

	best := candidates[0]
	item.ApplyCandidate(best)
	item.Status = models.SearchStatusFound
	if len(candidates) > 1 && best.VoteCount < s.cfg.UncertainVoteThreshold {
		item.Status = models.SearchStatusUncertain
	}
	return nil
}

// SearchAll returns every candidate for name. Names of the form tmdb-ID,
// tmdb-tv-ID and tmdb-movie-ID are looked up directly.
func (s *Searcher) SearchAll(ctx context.Context, name string, mediaType models.MediaType) ([]Candidate, error) {
	if s.catalog == nil {
		return nil, nil
	}

	kind := kindFor(mediaType)
	if strings.HasPrefix(strings.ToLower(name), "tmdb-") {
		return s.lookupByID(ctx, name, kind)
	}

	query := CleanSearchTerm(name)
	if query == "" {
		query = s.parser.Title(name)
	}
	if query == "" {
		return nil, nil
	}

	year := firstYear(name)
	log.Debug().Str("query", query).Str("name", name).Int("year", year).Msg("organizer: searching tmdb")

	results, err := s.catalog.Search(ctx, kind, query, year, s.cfg.TMDBLanguage)
	if err != nil {
		return nil, fmt.Errorf("search %s %q: %w", kind, query, err)
	}
	if len(results) == 0 && year > 0 {
		results, err = s.catalog.Search(ctx, kind, query, 0, s.cfg.TMDBLanguage)
		if err != nil {
			return nil, fmt.Errorf("search %s %q: %w", kind, query, err)
		}
	}

	candidates := make([]Candidate, 0, len(results))
	for i, res := range results {
		c := candidateFrom(res, kind)
		if original := res.OriginalTitleFor(kind); original != "" && asciiTitlePattern.MatchString(original) {
			c.TitleAlt = original
		}
		if i < s.cfg.EnrichLimit {
			if alt := s.altTitle(ctx, kind, res.ID); alt != "" {
				c.TitleAlt = alt
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Searcher) lookupByID(ctx context.Context, alias string, kind tmdb.Kind) ([]Candidate, error) {
	forced, id, ok := parseAlias(alias)
	if !ok {
		log.Debug().Str("alias", alias).Msg("organizer: unparseable tmdb alias")
		return nil, nil
	}
	if forced != "" {
		kind = forced
	}

	res, err := s.catalog.Details(ctx, kind, id, s.cfg.TMDBLanguage)
	if errors.Is(err, tmdb.ErrNotFound) && forced == "" {
		log.Debug().Int("id", id).Str("kind", string(kind)).Msg("organizer: id not found, trying the other kind")
		kind = kind.Opposite()
		res, err = s.catalog.Details(ctx, kind, id, s.cfg.TMDBLanguage)
	}
	if errors.Is(err, tmdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s %d: %w", kind, id, err)
	}

	c := candidateFrom(*res, kind)
	c.MediaType = mediaTypeFor(kind)
	c.TitleAlt = s.altTitle(ctx, kind, id)
	return []Candidate{c}, nil
}

func (s *Searcher) altTitle(ctx context.Context, kind tmdb.Kind, id int) string {
	if s.cfg.TMDBAltLanguage == "" {
		return ""
	}
	res, err := s.catalog.Details(ctx, kind, id, s.cfg.TMDBAltLanguage)
	if err != nil {
		log.Debug().Err(err).Int("id", id).Msg("organizer: alternate title lookup failed")
		return ""
	}
	return res.LocalTitle(kind)
}

func candidateFrom(res tmdb.Result, kind tmdb.Kind) Candidate {
	return Candidate{
		TMDBID:     res.ID,
		TitleLocal: res.LocalTitle(kind),
		Year:       res.Year(kind),
		Overview:   res.Overview,
		PosterURL:  res.PosterURL(),
		VoteCount:  res.VoteCount,
	}
}

// parseAlias splits tmdb-ID, tmdb-tv-ID and tmdb-movie-ID.
func parseAlias(alias string) (forced tmdb.Kind, id int, ok bool) {
	parts := strings.Split(strings.ToLower(alias), "-")
	if len(parts) < 2 || parts[0] != "tmdb" {
		return "", 0, false
	}

	raw := parts[1]
	if len(parts) >= 3 && (parts[1] == string(tmdb.KindTV) || parts[1] == string(tmdb.KindMovie)) {
		forced = tmdb.Kind(parts[1])
		raw = parts[2]
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return forced, id, true
}

// forcedAlias scans the path from the file outwards for a {tmdb-ID} tag.
func forcedAlias(item *MediaItem) string {
	path := item.RootPath
	if len(item.Files) > 0 {
		path = item.Files[0].Path
	}

	parts := strings.Split(filepath.ToSlash(path), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		m := forcedIDPattern.FindStringSubmatch(parts[i])
		if m == nil {
			continue
		}
		if m[1] != "" {
			return fmt.Sprintf("tmdb-%s-%s", strings.ToLower(m[1]), m[2])
		}
		return "tmdb-" + m[2]
	}
	return ""
}

// discTitle finds the folder that names a Blu-ray structure, skipping a
// single Disc N style level.
func discTitle(item *MediaItem) string {
	paths := []string{item.RootPath}
	for _, f := range item.Files {
		paths = append(paths, f.Path)
	}

	for _, p := range paths {
		parts := strings.Split(filepath.ToSlash(p), "/")
		idx := -1
		for i := len(parts) - 1; i >= 0; i-- {
			if parts[i] == discDirName {
				idx = i
				break
			}
		}
		if idx <= 0 {
			continue
		}

		candidate := parts[idx-1]
		if discPartPattern.MatchString(candidate) {
			if idx < 2 {
				continue
			}
			candidate = parts[idx-2]
		}
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func kindFor(t models.MediaType) tmdb.Kind {
	if t == models.MediaTypeMovie {
		return tmdb.KindMovie
	}
	return tmdb.KindTV
}

func mediaTypeFor(k tmdb.Kind) models.MediaType {
	if k == tmdb.KindMovie {
		return models.MediaTypeMovie
	}
	return models.MediaTypeTV
}
