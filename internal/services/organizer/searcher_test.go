// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/tmdb"
)

func newTestSearcher(catalog *fakeCatalog) *Searcher {
	cfg := domain.Defaults()
	cfg.TMDBAltLanguage = ""
	return NewSearcher(catalog, &cfg, nil)
}

func movieItem(name string, paths ...string) *MediaItem {
	item := &MediaItem{Name: name, MediaType: models.MediaTypeMovie}
	for _, p := range paths {
		item.Files = append(item.Files, MediaFile{Path: p, Extension: ".mkv"})
	}
	if len(paths) > 0 {
		item.RootPath = paths[0]
	}
	return item
}

func TestSearcher_Search(t *testing.T) {
	t.Parallel()

	lowVotes := func(id int, title string) tmdb.Result {
		return tmdb.Result{ID: id, Title: title, ReleaseDate: "2019-01-01", VoteCount: 1}
	}

	tests := []struct {
		name        string
		setup       func(c *fakeCatalog)
		item        *MediaItem
		wantStatus  models.SearchStatus
		wantID      int
		wantType    models.MediaType
		wantName    string
		wantQueries []string
		wantYears   []int
		wantCalls   int
	}{
		{
			name: "plain id falls back to the other kind",
			setup: func(c *fakeCatalog) {
				c.addDetails(tmdb.KindTV, 1396, "zh-CN", tmdb.Result{Name: "绝命毒师", FirstAirDate: "2008-01-20"})
			},
			item:       movieItem("Breaking Bad", "/src/绝命毒师 {tmdb-1396}/Breaking.Bad.mkv"),
			wantStatus: models.SearchStatusFound,
			wantID:     1396,
			wantType:   models.MediaTypeTV,
			wantCalls:  2,
		},
		{
			name: "forced kind does not fall back",
			setup: func(c *fakeCatalog) {
				c.addDetails(tmdb.KindTV, 1396, "zh-CN", tmdb.Result{Name: "绝命毒师", FirstAirDate: "2008-01-20"})
			},
			item:       movieItem("Breaking Bad", "/src/绝命毒师 {tmdb-movie-1396}/Breaking.Bad.mkv"),
			wantStatus: models.SearchStatusNotFound,
			wantType:   models.MediaTypeMovie,
			wantCalls:  1,
		},
		{
			name: "blu-ray folder takes its title from above the disc level",
			setup: func(c *fakeCatalog) {
				c.addSearch("Film", tmdb.Result{ID: 7, Title: "Film", ReleaseDate: "2010-05-01", VoteCount: 900})
			},
			item:        movieItem("STREAM", "/src/Film (2010)/Disc 1/BDMV/STREAM/00001.m2ts"),
			wantStatus:  models.SearchStatusFound,
			wantID:      7,
			wantType:    models.MediaTypeMovie,
			wantName:    "Film (2010)",
			wantQueries: []string{"Film"},
			wantYears:   []int{2010},
		},
		{
			name: "year filter miss retries without the year",
			setup: func(c *fakeCatalog) {
				c.addUndatedSearch("Arrival", tmdb.Result{ID: 329865, Title: "降临", ReleaseDate: "2016-11-11", VoteCount: 15000})
			},
			item:        movieItem("Arrival (2016)", "/src/Arrival (2016)/Arrival.mkv"),
			wantStatus:  models.SearchStatusFound,
			wantID:      329865,
			wantType:    models.MediaTypeMovie,
			wantQueries: []string{"Arrival", "Arrival"},
			wantYears:   []int{2016, 0},
		},
		{
			name: "no result retries with the leading han title",
			setup: func(c *fakeCatalog) {
				c.addSearch("流浪地球", tmdb.Result{ID: 535167, Title: "流浪地球", ReleaseDate: "2019-02-05", VoteCount: 2000})
			},
			item:        movieItem("流浪地球 The Wandering Earth (2019)", "/src/x/movie.mkv"),
			wantStatus:  models.SearchStatusFound,
			wantID:      535167,
			wantType:    models.MediaTypeMovie,
			wantQueries: []string{"流浪地球 The Wandering Earth", "流浪地球 The Wandering Earth", "流浪地球"},
			wantYears:   []int{2019, 0, 0},
		},
		{
			name: "several low vote candidates are uncertain",
			setup: func(c *fakeCatalog) {
				c.addSearch("Obscure", lowVotes(1, "Obscure"), lowVotes(2, "Obscure II"))
			},
			item:       movieItem("Obscure", "/src/Obscure/Obscure.mkv"),
			wantStatus: models.SearchStatusUncertain,
			wantID:     1,
			wantType:   models.MediaTypeMovie,
		},
		{
			name: "a lone low vote candidate is found",
			setup: func(c *fakeCatalog) {
				c.addSearch("Obscure", lowVotes(1, "Obscure"))
			},
			item:       movieItem("Obscure", "/src/Obscure/Obscure.mkv"),
			wantStatus: models.SearchStatusFound,
			wantID:     1,
			wantType:   models.MediaTypeMovie,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			catalog := newFakeCatalog()
			tt.setup(catalog)
			item := tt.item

			require.NoError(t, newTestSearcher(catalog).Search(context.Background(), item))

			assert.Equal(t, tt.wantStatus, item.Status)
			assert.Equal(t, tt.wantType, item.MediaType)
			if tt.wantID > 0 {
				assert.Equal(t, tt.wantID, item.TMDBID)
			} else {
				assert.Zero(t, item.TMDBID)
			}
			if tt.wantName != "" {
				assert.Equal(t, tt.wantName, item.Name)
			}
			if tt.wantQueries != nil {
				assert.Equal(t, tt.wantQueries, catalog.queries)
				assert.Equal(t, tt.wantYears, catalog.years)
			}
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.wantCalls, catalog.Calls())
			}
		})
	}
}
