// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

// Top level directories of the target tree.
const (
	MoviesDir  = "Movies"
	TVShowsDir = "TV Shows"
	UnknownDir = "Unknown"
)

var (
	bracketTagPattern = regexp.MustCompile(`\[.*?\]`)
	dottedYearPattern = regexp.MustCompile(`[(.]\d{4}[).]`)
	qualityTagPattern = regexp.MustCompile(`(?i)1080[pi]|2160[pi]|720[pi]|4k\s*超清|4k|avc|hevc|h\.?264|h\.?265|x264|x265|bluray|bdrip|web-?dl`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	sanitizeReplacer = strings.NewReplacer(
		": ", " - ",
		":", "-",
		"/", "-",
		`\`, "-",
		"?", "",
		"*", "",
		"<", "",
		">", "",
		`"`, "",
		"|", "",
	)
	nameSeparators = strings.NewReplacer(".", " ", "_", " ", "-", " ")
)

// Sanitize makes name safe for SMB shares and Windows clients.
//   - "Blade Runner 2049: The Final Cut" → "Blade Runner 2049 - The Final Cut"
//   - "M*A*S*H" → "MASH"
//   - "AC/DC Live" → "AC-DC Live"
func Sanitize(name string) string {
	name = sanitizeReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

// CleanName strips bracket tags, years and quality tags from a raw release name.
func CleanName(name string) string {
	cleaned := bracketTagPattern.ReplaceAllString(name, "")
	cleaned = dottedYearPattern.ReplaceAllString(cleaned, " ")
	cleaned = qualityTagPattern.ReplaceAllString(cleaned, " ")
	cleaned = nameSeparators.Replace(cleaned)
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// Renamer computes where each file of an item belongs in the target tree.
type Renamer struct {
	cfg *domain.Config
}

func NewRenamer(cfg *domain.Config) *Renamer {
	return &Renamer{cfg: cfg}
}

// DisplayName is the folder name used for the item.
func (r *Renamer) DisplayName(item *MediaItem) string {
	if item.TitleLocal == "" {
		return Sanitize(CleanName(item.Name))
	}

	var sb strings.Builder
	sb.WriteString(item.TitleLocal)
	if item.TitleAlt != "" && item.TitleAlt != item.TitleLocal {
		fmt.Fprintf(&sb, " (%s)", item.TitleAlt)
	}
	if item.Year > 0 {
		fmt.Fprintf(&sb, " (%d)", item.Year)
	}
	if item.TMDBID > 0 {
		fmt.Fprintf(&sb, " {tmdb-%d}", item.TMDBID)
	}
	return Sanitize(sb.String())
}

// SuggestedPath returns the link location of file relative to the target root.
func (r *Renamer) SuggestedPath(item *MediaItem, file MediaFile) string {
	switch item.MediaType {
	case models.MediaTypeMovie:
		return filepath.Join(MoviesDir, r.DisplayName(item), Sanitize(file.Name()))
	case models.MediaTypeTV:
		return r.episodePath(item, file)
	case models.MediaTypeUnknown:
		return filepath.Join(UnknownDir, Sanitize(file.Name()))
	default:
		return filepath.Join(UnknownDir, Sanitize(file.Name()))
	}
}

func (r *Renamer) episodePath(item *MediaItem, file MediaFile) string {
	season, episode := r.SeasonEpisode(item, file)
	seasonDir := fmt.Sprintf("Season %d", season)
	showDir := r.DisplayName(item)

	if episode <= 0 {
		return filepath.Join(TVShowsDir, showDir, seasonDir, Sanitize(file.Name()))
	}

	var lang string
	if r.cfg.IsSubtitle(file.Extension) {
		_, lang = splitLanguage(file.Stem())
	}

	name := fmt.Sprintf("S%02dE%02d%s%s", season, episode, lang, file.Extension)
	if alt := Sanitize(item.TitleAlt); alt != "" {
		name = alt + " " + name
	}
	return filepath.Join(TVShowsDir, showDir, seasonDir, name)
}

// SeasonEpisode resolves the season and episode of a file. The episode is 0
// when it cannot be determined; the season defaults to 1.
func (r *Renamer) SeasonEpisode(item *MediaItem, file MediaFile) (season, episode int) {
	override := item.EpisodeOverrides[file.Path]
	fileSeason, fileEpisode := parseEpisode(file.Name())

	season = firstPositive(
		deref(item.Season),
		deref(override.Season),
		fileSeason,
		r.folderSeason(file),
		item.SeasonHint,
		1,
	)

	episode = firstPositive(
		deref(item.Episode),
		deref(override.Episode),
		fileEpisode,
	)
	if episode == 0 {
		_, episode = parseEpisode(filepath.Base(filepath.Dir(file.Path)))
	}
	return season, episode
}

// folderSeason looks at the parent directories of file, innermost first,
// stopping at the source root.
func (r *Renamer) folderSeason(file MediaFile) int {
	dir := filepath.Dir(file.Path)
	for dir != "" && !pathcmp.HasPrefix(r.cfg.SourceDir, dir) {
		if s := parseSeason(filepath.Base(dir)); s > 0 {
			return s
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return 0
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
