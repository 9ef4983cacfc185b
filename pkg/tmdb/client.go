// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tmdb is a small client for the TMDB v3 search and details endpoints
// with response caching, request pacing and a retry policy that treats 429
// responses as free retries.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/autobrr/linkarr/pkg/redact"
	"github.com/autobrr/linkarr/pkg/retry"
)

const (
	DefaultBaseURL    = "https://api.themoviedb.org/3"
	defaultTimeout    = 10 * time.Second
	defaultCacheTTL   = time.Hour
	defaultRatePerSec = 20
	defaultUserAgent  = "linkarr"
	maxResponseBytes  = 4 << 20
)

// Request outcomes reported through Config.Observe.
const (
	OutcomeOK        = "ok"
	OutcomeCached    = "cached"
	OutcomeNotFound  = "not_found"
	OutcomeThrottled = "throttled"
	OutcomeRetry     = "retry"
	OutcomeError     = "error"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	UserAgent  string
	CacheTTL   time.Duration
	RatePerSec float64
	MaxRetries int
	HTTPClient *http.Client
	Clock      retry.Clock
	// Observe receives one of the Outcome* values per request attempt.
	Observe func(outcome string)
}

type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ttlcache.Cache[string, []byte]
	group      singleflight.Group
	policy     retry.Policy
	clock      retry.Clock
	observe    func(string)
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("tmdb: api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("tmdb: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = defaultRatePerSec
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = retry.DefaultMaxRetries
	}

	clock := cfg.Clock
	if clock == nil {
		clock = retry.RealClock
	}

	observe := cfg.Observe
	if observe == nil {
		observe = func(string) {}
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		cache:      ttlcache.New(ttlcache.Options[string, []byte]{}.SetDefaultTTL(ttl)),
		clock:      clock,
		observe:    observe,
	}
	c.policy = retry.Policy{
		MaxRetries: maxRetries,
		Classify:   Classify,
		Clock:      clock,
		OnRetry:    c.logRetry,
	}

	return c, nil
}

// Classify maps client errors onto retry decisions: 404 stops, 429 retries
// for free after Retry-After, anything else consumes the budget.
func Classify(err error) (retry.Decision, time.Duration) {
	if errors.Is(err, ErrNotFound) {
		return retry.Stop, 0
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return retry.RetryFree, httpErr.RetryAfter
	}
	return retry.Retry, 0
}

func (c *Client) logRetry(ev retry.Event) {
	switch ev.Decision {
	case retry.RetryFree:
		c.observe(OutcomeThrottled)
		log.Warn().Dur("wait", ev.Delay).Msg("tmdb: rate limited (429), waiting before retry")
	default:
		c.observe(OutcomeRetry)
		log.Warn().Err(ev.Err).Int("retry", ev.Retries).Dur("backoff", ev.Delay).Msg("tmdb: request failed, retrying")
	}
}

// Search runs /search/{kind}. A zero year sends no year filter.
func (c *Client) Search(ctx context.Context, kind Kind, query string, year int, lang string) ([]Result, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("tmdb: invalid kind %q", kind)
	}

	params := url.Values{}
	params.Set("query", query)
	if lang != "" {
		params.Set("language", lang)
	}
	if year > 0 {
		if kind == KindTV {
			params.Set("first_air_date_year", strconv.Itoa(year))
		} else {
			params.Set("year", strconv.Itoa(year))
		}
	}

	var resp searchResponse
	if err := c.get(ctx, "search/"+string(kind), params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Details runs /{kind}/{id}. Returns ErrNotFound on 404.
func (c *Client) Details(ctx context.Context, kind Kind, id int, lang string) (*Result, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("tmdb: invalid kind %q", kind)
	}
	if id <= 0 {
		return nil, fmt.Errorf("tmdb: invalid id %d", id)
	}

	params := url.Values{}
	if lang != "" {
		params.Set("language", lang)
	}

	var result Result
	if err := c.get(ctx, string(kind)+"/"+strconv.Itoa(id), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close stops the response cache janitor.
func (c *Client) Close() {
	c.cache.Close()
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return fmt.Errorf("tmdb: build url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	reqURL += "?" + params.Encode()

	if body, ok := c.cache.Get(reqURL); ok {
		c.observe(OutcomeCached)
		return decode(body, out)
	}

	v, err, _ := c.group.Do(reqURL, func() (any, error) {
		var body []byte
		err := c.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			body, err = c.fetch(ctx, reqURL)
			return err
		})
		if err != nil {
			return nil, err
		}
		c.cache.Set(reqURL, body, ttlcache.DefaultTTL)
		return body, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.observe(OutcomeNotFound)
			log.Debug().Str("endpoint", endpoint).Msg("tmdb: not found, not retrying")
		case errors.Is(err, retry.ErrExhausted):
			c.observe(OutcomeError)
			log.Error().Err(err).Str("endpoint", endpoint).Msg("tmdb: retries exhausted")
		}
		return err
	}

	return decode(v.([]byte), out)
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("tmdb: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, redact.URLError(err)
	}
	defer resp.Body.Close()

	c.waitForReset(ctx, resp.Header)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        redact.URL(reqURL),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("tmdb: read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, errors.New("tmdb: invalid json response")
	}

	c.observe(OutcomeOK)
	return body, nil
}

// waitForReset sleeps until X-RateLimit-Reset once the window is nearly spent.
func (c *Client) waitForReset(ctx context.Context, header http.Header) {
	remaining := header.Get("X-RateLimit-Remaining")
	reset := header.Get("X-RateLimit-Reset")
	if remaining == "" || reset == "" {
		return
	}
	left, err := strconv.Atoi(strings.TrimSpace(remaining))
	if err != nil || left > 1 {
		return
	}
	resetAt, err := strconv.ParseFloat(strings.TrimSpace(reset), 64)
	if err != nil {
		return
	}

	wait := time.Unix(0, int64(resetAt*float64(time.Second))).Sub(c.clock.Now())
	if wait <= 0 {
		return
	}
	log.Info().Dur("wait", wait).Msg("tmdb: rate limit window spent, waiting for reset")
	_ = c.clock.Sleep(ctx, wait+100*time.Millisecond)
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("tmdb: decode response: %w", err)
	}
	return nil
}
