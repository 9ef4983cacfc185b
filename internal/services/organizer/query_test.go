// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSearchTerm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"[绝命毒师].Breaking.Bad.S01", "绝命毒师"},
		{"流浪地球.The.Wandering.Earth.2019.2160p", "流浪地球"},
		{"Gintama.S01E29.1080p.WEB-DL", "Gintama"},
		{"The.Matrix.1999.1080p.BluRay", "The Matrix"},
		{"Random_Movie_1_(2021)", "Random Movie 1"},
		{"[Sakurato] Spy x Family [01]", "Spy x Family"},
		{"Stranger.Things.S04.NF.WEB-DL", "Stranger Things"},
		{"Show.Name.Season 2.1080p", "Show Name"},
		{"黑镜 第四季", "黑镜"},
		{"My_Show_S01E01", "My Show"},
		// platform tags only end a title in their usual casing
		{"Max.Payne.2008", "Max Payne"},
		{"Mad.Max.MAX.2160p", "Mad Max"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanSearchTerm(tt.in))
		})
	}
}

func TestLeadingHan(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "绝命毒师", leadingHan("绝命毒师 Breaking Bad"))
	assert.Empty(t, leadingHan("黑 Mirror"))
	assert.Empty(t, leadingHan("Breaking Bad 绝命毒师"))
}
