// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathcmp provides path comparison helpers that respect segment
// boundaries, so "/media/tv" is never treated as a prefix of "/media/tv2".
package pathcmp

import (
	"path/filepath"
	"strings"
)

// NormalizePath cleans p and removes any trailing separator (except for the root).
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// HasPrefix reports whether p equals prefix or lies below it.
func HasPrefix(p, prefix string) bool {
	p = NormalizePath(p)
	prefix = NormalizePath(prefix)
	if p == "" || prefix == "" {
		return false
	}
	if p == prefix {
		return true
	}
	if prefix == string(filepath.Separator) {
		return strings.HasPrefix(p, prefix)
	}
	return strings.HasPrefix(p, prefix+string(filepath.Separator))
}

// IsUnder reports whether p lies strictly below dir.
func IsUnder(p, dir string) bool {
	return HasPrefix(p, dir) && NormalizePath(p) != NormalizePath(dir)
}

// ReplacePrefix swaps oldPrefix for newPrefix on a segment boundary.
// The second return is false when p does not start with oldPrefix.
func ReplacePrefix(p, oldPrefix, newPrefix string) (string, bool) {
	if !HasPrefix(p, oldPrefix) {
		return p, false
	}
	rest := strings.TrimPrefix(NormalizePath(p), NormalizePath(oldPrefix))
	rest = strings.TrimPrefix(rest, string(filepath.Separator))
	if rest == "" {
		return NormalizePath(newPrefix), true
	}
	return filepath.Join(newPrefix, rest), true
}

// FirstSegment returns the first path element of p relative to root.
// ok is false when p is not below root.
func FirstSegment(p, root string) (segment string, ok bool) {
	if !IsUnder(p, root) {
		return "", false
	}
	rel, err := filepath.Rel(NormalizePath(root), NormalizePath(p))
	if err != nil {
		return "", false
	}
	segment, _, _ = strings.Cut(rel, string(filepath.Separator))
	return segment, true
}

// Segments splits the part of p below root into its elements.
func Segments(p, root string) []string {
	if !IsUnder(p, root) {
		return nil
	}
	rel, err := filepath.Rel(NormalizePath(root), NormalizePath(p))
	if err != nil {
		return nil
	}
	return strings.Split(rel, string(filepath.Separator))
}
