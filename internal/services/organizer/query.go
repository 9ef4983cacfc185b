// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/autobrr/linkarr/pkg/stringutils"
)

var (
	bracketHanPrefix  = regexp.MustCompile(`^\[([\x{4e00}-\x{9fa5}]+)\]\.`)
	leadingBracketTag = regexp.MustCompile(`^\[.*?\]`)
	bilingualPrefix   = regexp.MustCompile(`^([\x{4e00}-\x{9fa5}]{2,})\.`)
	querySeparators   = regexp.MustCompile(`[._-]`)

	// the first of these ends the title part of a release name
	titleTerminator = regexp.MustCompile(strings.Join([]string{
		`(?i:\b(?:19[89]\d|20\d{2})\b)`,
		`(?i:\bs\d+(?:[-s]\d+)?\b)`,
		`(?i:\bs\d+e\d+)`,
		`(?i:\bseason\s*\d+\b)`,
		`第[一二三四五六七八九十\d]+[季部]`,
		`(?i:\be\d+\b)`,
		`(?i:\b\d{3,4}[pi]\b)`,
		`(?i:\b[hx]\.?26[45]\b)`,
		`(?i:\b(?:hevc|avc|hdr|dv|dovi)\b)`,
		`(?i:\b(?:bluray|bdrip|web\s?dl|web)\b)`,
		`(?i:\b(?:atmos|truehd|ddp|dts)\b)`,
		`\b(?:MAX|NF|AMZN|iQIYI|Hami)\b`,
	}, "|"))
)

// CleanSearchTerm extracts the title part of a release name.
//   - "[绝命毒师].Breaking.Bad.S01" → "绝命毒师"
//   - "流浪地球.The.Wandering.Earth.2019.2160p" → "流浪地球"
//   - "Gintama.S01E29.1080p.WEB-DL" → "Gintama"
func CleanSearchTerm(term string) string {
	if m := bracketHanPrefix.FindStringSubmatch(term); m != nil {
		return strings.TrimSpace(m[1])
	}

	cleaned := strings.TrimSpace(leadingBracketTag.ReplaceAllString(term, ""))
	if m := bilingualPrefix.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}

	cleaned = strings.TrimSpace(querySeparators.ReplaceAllString(cleaned, " "))
	if loc := titleTerminator.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[:loc[0]]
	}

	cleaned = bracketTagPattern.ReplaceAllString(cleaned, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	// "Movie (2020)" leaves a dangling "("
	return strings.TrimRight(strings.TrimSpace(cleaned), ". ([{")
}

// leadingHan returns the leading run of Han characters when it is at least
// two characters long.
func leadingHan(name string) string {
	run := stringutils.LeadingHan(name)
	if utf8.RuneCountInString(run) < 2 {
		return ""
	}
	return run
}
