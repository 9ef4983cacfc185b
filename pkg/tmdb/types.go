// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tmdb

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound is returned for 404 responses. It is never retried.
var ErrNotFound = errors.New("tmdb: not found")

// Kind selects the movie or tv endpoints.
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

func (k Kind) Valid() bool {
	return k == KindMovie || k == KindTV
}

// Opposite returns the other catalog kind.
func (k Kind) Opposite() Kind {
	if k == KindTV {
		return KindMovie
	}
	return KindTV
}

// PosterBaseURL is prefixed to poster_path fragments.
const PosterBaseURL = "https://image.tmdb.org/t/p/w200"

// Result is one entry of a search response or a details response. Movies and
// tv shows use different field names for the title and date.
type Result struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	Name          string  `json:"name"`
	OriginalTitle string  `json:"original_title"`
	OriginalName  string  `json:"original_name"`
	Overview      string  `json:"overview"`
	PosterPath    string  `json:"poster_path"`
	VoteCount     int     `json:"vote_count"`
	VoteAverage   float64 `json:"vote_average"`
	ReleaseDate   string  `json:"release_date"`
	FirstAirDate  string  `json:"first_air_date"`
}

// LocalTitle is the title in the requested language.
func (r Result) LocalTitle(kind Kind) string {
	if kind == KindTV {
		return firstNonEmpty(r.Name, r.Title)
	}
	return firstNonEmpty(r.Title, r.Name)
}

func (r Result) OriginalTitleFor(kind Kind) string {
	if kind == KindTV {
		return firstNonEmpty(r.OriginalName, r.OriginalTitle)
	}
	return firstNonEmpty(r.OriginalTitle, r.OriginalName)
}

func (r Result) Date(kind Kind) string {
	if kind == KindTV {
		return firstNonEmpty(r.FirstAirDate, r.ReleaseDate)
	}
	return firstNonEmpty(r.ReleaseDate, r.FirstAirDate)
}

// Year is the first four characters of the release or air date, or 0.
func (r Result) Year(kind Kind) int {
	date := r.Date(kind)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// PosterURL returns the w200 poster url, or an empty string.
func (r Result) PosterURL() string {
	if r.PosterPath == "" {
		return ""
	}
	return PosterBaseURL + r.PosterPath
}

type searchResponse struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tmdb: unexpected status %d (%s) for %s", e.StatusCode, e.Status, e.URL)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
