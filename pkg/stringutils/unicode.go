// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	diacriticFolder = NewFolder(entryTTL, foldDiacritics)
	matchingFolder  = NewFolder(entryTTL, normalized)
	latinFolder     = NewFolder(entryTTL, latinize)

	pinyinArgs = pinyin.NewArgs()
)

func foldDiacritics(s string) string {
	// letters NFKD does not decompose
	s = strings.NewReplacer(
		"æ", "ae", "Æ", "AE",
		"œ", "oe", "Œ", "OE",
		"ø", "o", "Ø", "O",
		"ß", "ss",
		"ð", "d", "Ð", "D",
		"þ", "th", "Þ", "TH",
	).Replace(s)

	// transform.Chain is not safe for concurrent use
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

func normalized(s string) string {
	s = diacriticFolder.Apply(s)
	s = strings.ToLower(strings.TrimSpace(s))

	s = strings.NewReplacer(
		"'", "", "’", "", "‘", "", "`", "",
		":", "",
		"&", " and ",
		"-", " ", ".", " ", "_", " ",
	).Replace(s)

	return strings.Join(strings.Fields(s), " ")
}

// latinize transliterates Han runes to toneless pinyin, folds diacritics and lowercases.
func latinize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 2)

	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			if py := pinyin.SinglePinyin(r, pinyinArgs); len(py) > 0 && py[0] != "" {
				sb.WriteString(py[0])
				continue
			}
		}
		sb.WriteRune(r)
	}

	return strings.ToLower(diacriticFolder.Apply(sb.String()))
}

// NormalizeUnicode removes diacritics and decomposes ligatures.
//   - "Shōgun" → "Shogun"
//   - "Amélie" → "Amelie"
//   - "ﬁ" → "fi"
func NormalizeUnicode(s string) string {
	return diacriticFolder.Apply(s)
}

// NormalizeForMatching folds unicode, lowercases, drops apostrophes and colons,
// turns '&' into "and" and the separators "-._" into spaces.
//   - "Bob's Burgers" → "bobs burgers"
//   - "Breaking.Bad" → "breaking bad"
func NormalizeForMatching(s string) string {
	return matchingFolder.Apply(s)
}

// Latinize returns a lowercase latin rendering of s suitable as a grouping key.
//   - "绝命毒师" → "juemingdushi"
//   - "Pokémon" → "pokemon"
func Latinize(s string) string {
	return latinFolder.Apply(s)
}

// HasHan reports whether s contains any Han rune.
func HasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// LeadingHan returns the leading run of Han runes in s.
func LeadingHan(s string) string {
	end := 0
	for i, r := range s {
		if !unicode.Is(unicode.Han, r) {
			break
		}
		end = i + len(string(r))
	}
	return s[:end]
}
