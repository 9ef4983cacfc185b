// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils holds cached string transformations used when
// comparing titles and file stems.
package stringutils

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

// entryTTL bounds how long a folded title stays cached.
const entryTTL = 5 * time.Minute

// Folder memoizes a pure string transformation.
type Folder struct {
	fold  func(string) string
	cache *ttlcache.Cache[string, string]
}

// NewFolder returns a Folder caching fold results for ttl.
func NewFolder(ttl time.Duration, fold func(string) string) *Folder {
	return &Folder{
		fold:  fold,
		cache: ttlcache.New(ttlcache.Options[string, string]{}.SetDefaultTTL(ttl)),
	}
}

// Apply returns fold(s), computing it at most once per TTL.
func (f *Folder) Apply(s string) string {
	if s == "" {
		return ""
	}
	if v, ok := f.cache.Get(s); ok {
		return v
	}
	v := f.fold(s)
	f.cache.Set(s, v, ttlcache.DefaultTTL)
	return v
}

// Forget drops the cached result for s.
func (f *Folder) Forget(s string) {
	f.cache.Delete(s)
}
