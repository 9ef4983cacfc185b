// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/pkg/pathcmp"
)

// PathMapper rewrites source paths between the form linkarr sees and the
// form the media server resolves link targets against.
type PathMapper struct {
	mappings []domain.PathMapping
}

func NewPathMapper(mappings []domain.PathMapping) *PathMapper {
	return &PathMapper{mappings: mappings}
}

// ToServed rewrites the longest matching raw prefix. Unmapped paths are returned unchanged.
func (m *PathMapper) ToServed(path string) string {
	return m.rewrite(path, func(pm domain.PathMapping) (string, string) { return pm.Raw, pm.Served })
}

// ToRaw is the inverse of ToServed.
func (m *PathMapper) ToRaw(path string) string {
	return m.rewrite(path, func(pm domain.PathMapping) (string, string) { return pm.Served, pm.Raw })
}

func (m *PathMapper) rewrite(path string, sides func(domain.PathMapping) (from, to string)) string {
	best, bestTo := "", ""
	for _, pm := range m.mappings {
		from, to := sides(pm)
		if from == "" || !pathcmp.HasPrefix(path, from) {
			continue
		}
		if len(pathcmp.NormalizePath(from)) > len(best) {
			best, bestTo = pathcmp.NormalizePath(from), to
		}
	}
	if best == "" {
		return path
	}
	out, _ := pathcmp.ReplacePrefix(path, best, bestTo)
	return out
}
