// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
)

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		root  string
		files []string
		want  models.MediaType
	}{
		{
			name:  "single episode",
			root:  "/src/Show.S01E01.mkv",
			files: []string{"/src/Show.S01E01.mkv"},
			want:  models.MediaTypeTV,
		},
		{
			name:  "single movie",
			root:  "/src/Arrival.2016.mkv",
			files: []string{"/src/Arrival.2016.mkv"},
			want:  models.MediaTypeMovie,
		},
		{
			name:  "one episodic file among several videos",
			root:  "/src/Film",
			files: []string{"/src/Film/Film.mkv", "/src/Film/Film.Featurette.E01.mkv"},
			want:  models.MediaTypeMovie,
		},
		{
			name:  "several episodes",
			root:  "/src/Show",
			files: []string{"/src/Show/Show.E01.mkv", "/src/Show/Show.E02.mkv"},
			want:  models.MediaTypeTV,
		},
		{
			name:  "season folder without episode names",
			root:  "/src/Show",
			files: []string{"/src/Show/Season 1/a.mkv", "/src/Show/Season 1/b.mkv"},
			want:  models.MediaTypeTV,
		},
		{
			name:  "chinese season folder",
			root:  "/src/黑镜/第一季",
			files: []string{"/src/黑镜/第一季/一.mkv"},
			want:  models.MediaTypeTV,
		},
		{
			name:  "disc structure",
			root:  "/src/Film",
			files: []string{"/src/Film/BDMV/STREAM/00001.m2ts", "/src/Film/BDMV/STREAM/00002.m2ts"},
			want:  models.MediaTypeMovie,
		},
		{
			name:  "subtitles only",
			root:  "/src/Show.S01E01.srt",
			files: []string{"/src/Show.S01E01.srt"},
			want:  models.MediaTypeTV,
		},
		{
			name:  "plain subtitle",
			root:  "/src/Film.srt",
			files: []string{"/src/Film.srt"},
			want:  models.MediaTypeMovie,
		},
	}

	c := NewClassifier(renamerConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			item := newItem("item", tt.root, memFiles(tt.files...))

			c.Classify(item)
			assert.Equal(t, tt.want, item.MediaType)

			c.Classify(item)
			assert.Equal(t, tt.want, item.MediaType, "classification must be stable")
		})
	}
}

func TestClassifier_SourceRootNameIsIgnored(t *testing.T) {
	t.Parallel()

	cfg := domain.Defaults()
	cfg.SourceDir = "/media/Season 1"
	c := NewClassifier(&cfg)

	item := newItem("Movie", "/media/Season 1/Movie", memFiles("/media/Season 1/Movie/movie.mkv"))
	c.Classify(item)
	assert.Equal(t, models.MediaTypeMovie, item.MediaType)
}
