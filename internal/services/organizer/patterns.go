// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/autobrr/linkarr/pkg/stringutils"
)

const cjkDigits = `[0-9一二三四五六七八九十两]+`

var (
	// episode patterns, strongest first
	sxxEyyPattern    = regexp.MustCompile(`[Ss](\d{1,3})[Ee](\d{1,4})`)
	epPattern        = regexp.MustCompile(`(?:^|[^A-Za-z])[Ee][Pp]?(\d{1,4})(?:\D|$)`)
	cnEpisodePattern = regexp.MustCompile(`第\s*(` + cjkDigits + `)\s*[集话話期]`)
	bracketEpPattern = regexp.MustCompile(`\[(\d{1,3})\]`)
	loneNumberEp     = regexp.MustCompile(`\s(\d{1,3})\s`)

	// markers used for grouping
	episodeMarkerPattern = regexp.MustCompile(`(?i)s\d+e\d+|ep\d+|\[\d{1,3}\]`)

	seasonFolderPattern   = regexp.MustCompile(`(?i)\b(?:season|s)\s*\d+\b`)
	cnSeasonFolderPattern = regexp.MustCompile(`第\s*` + cjkDigits + `\s*[季部]`)

	seasonTokenPattern = regexp.MustCompile(`(?i)(?:^|[^A-Za-z])s(\d{1,3})(?:e\d+|[^A-Za-z0-9]|$)`)
	seasonWordPattern  = regexp.MustCompile(`(?i)season\s*(\d{1,3})`)
	cnSeasonPattern    = regexp.MustCompile(`第\s*(` + cjkDigits + `)\s*[季部]`)

	yearPattern = regexp.MustCompile(`(?:^|[^0-9A-Za-z])(19[89]\d|20\d{2})(?:[^0-9A-Za-z]|$)`)

	languageSuffixPattern = regexp.MustCompile(`(?i)\.([a-z]{2,3}(?:[-_][a-z]{2,4})?)$`)

	phoneticStripPattern = regexp.MustCompile(`(?i)ep\d+|s\d+|e\d+`)
	phoneticSeparators   = strings.NewReplacer(".", " ", "_", " ", "-", " ")
)

// hasEpisodeMarker reports whether name carries SxxEyy, EPxx or [N].
func hasEpisodeMarker(name string) bool {
	return episodeMarkerPattern.MatchString(name)
}

// hasEpisodePattern is the looser test used for classification.
func hasEpisodePattern(name string) bool {
	return sxxEyyPattern.MatchString(name) ||
		epPattern.MatchString(name) ||
		cnEpisodePattern.MatchString(name) ||
		bracketEpPattern.MatchString(name) ||
		loneNumberEp.MatchString(name)
}

func isSeasonFolder(name string) bool {
	return seasonFolderPattern.MatchString(name) || cnSeasonFolderPattern.MatchString(name)
}

// parseEpisode returns the season and episode named in s. Zero means absent.
func parseEpisode(s string) (season, episode int) {
	if m := sxxEyyPattern.FindStringSubmatch(s); m != nil {
		season, _ = strconv.Atoi(m[1])
		episode, _ = strconv.Atoi(m[2])
		return season, episode
	}

	for _, re := range []*regexp.Regexp{epPattern, cnEpisodePattern, bracketEpPattern, loneNumberEp} {
		if m := re.FindStringSubmatch(s); m != nil {
			if n, ok := parseNumber(m[1]); ok {
				episode = n
				break
			}
		}
	}

	return parseSeason(s), episode
}

// parseSeason finds Sxx, Season N or 第N季 in s.
func parseSeason(s string) int {
	for _, re := range []*regexp.Regexp{seasonWordPattern, seasonTokenPattern, cnSeasonPattern} {
		if m := re.FindStringSubmatch(s); m != nil {
			if n, ok := parseNumber(m[1]); ok && n > 0 {
				return n
			}
		}
	}
	return 0
}

// firstYear returns the first plausible release year in s, or 0.
func firstYear(s string) int {
	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	year, _ := strconv.Atoi(m[1])
	return year
}

// splitLanguage separates a trailing subtitle language code from stem.
// "Movie.2020.eng" yields ("Movie.2020", ".eng").
func splitLanguage(stem string) (base, lang string) {
	loc := languageSuffixPattern.FindStringIndex(stem)
	if loc == nil || loc[0] == 0 {
		return stem, ""
	}
	return stem[:loc[0]], stem[loc[0]:]
}

// phoneticKey reduces a show name to a transliterated first word so that
// "黑镜" folders and their pinyin spelled siblings group together.
func phoneticKey(name string) string {
	cleaned := phoneticStripPattern.ReplaceAllString(name, "")
	cleaned = strings.TrimSpace(phoneticSeparators.Replace(cleaned))
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	return stringutils.Latinize(fields[0])
}

var cjkNumerals = map[rune]int{
	'一': 1, '二': 2, '两': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

// parseNumber accepts ASCII digits and CJK numerals up to 九十九.
func parseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	runes := []rune(s)
	tens, ones := 0, 0
	switch {
	case len(runes) == 1 && runes[0] == '十':
		return 10, true
	case len(runes) == 1:
		v, ok := cjkNumerals[runes[0]]
		return v, ok
	case len(runes) == 2 && runes[0] == '十':
		v, ok := cjkNumerals[runes[1]]
		return 10 + v, ok
	case len(runes) == 2 && runes[1] == '十':
		v, ok := cjkNumerals[runes[0]]
		return v * 10, ok
	case len(runes) == 3 && runes[1] == '十':
		var ok bool
		if tens, ok = cjkNumerals[runes[0]]; !ok {
			return 0, false
		}
		if ones, ok = cjkNumerals[runes[2]]; !ok {
			return 0, false
		}
		return tens*10 + ones, true
	default:
		return 0, false
	}
}
