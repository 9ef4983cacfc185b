// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases wraps rls release-name parsing behind a small cache.
package releases

import (
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/moistari/rls"
)

const defaultTTL = 5 * time.Minute

// Parser caches rls results keyed by the trimmed name.
type Parser struct {
	cache *ttlcache.Cache[string, *rls.Release]
}

func NewParser(ttl time.Duration) *Parser {
	cache := ttlcache.New(ttlcache.Options[string, *rls.Release]{}.
		SetDefaultTTL(ttl))

	return &Parser{cache: cache}
}

func NewDefaultParser() *Parser {
	return NewParser(defaultTTL)
}

// Parse never returns nil. A nil parser parses without caching.
func (p *Parser) Parse(name string) *rls.Release {
	name = strings.TrimSpace(name)
	if name == "" {
		return &rls.Release{}
	}
	if p == nil || p.cache == nil {
		release := rls.ParseString(name)
		return &release
	}

	if cached, ok := p.cache.Get(name); ok {
		return cached
	}

	release := rls.ParseString(name)
	p.cache.Set(name, &release, ttlcache.DefaultTTL)
	return &release
}

func (p *Parser) Clear(name string) {
	if p == nil || p.cache == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	p.cache.Delete(name)
}

// Title returns the parsed title with separators collapsed to single spaces.
func (p *Parser) Title(name string) string {
	release := p.Parse(name)
	return strings.Join(strings.Fields(release.Title), " ")
}
