// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var (
	DefaultVideoExtensions    = []string{".mkv", ".mp4", ".avi", ".mov", ".m4v", ".ts", ".m2ts", ".wmv", ".iso", ".rmvb", ".flv", ".webm"}
	DefaultSubtitleExtensions = []string{".srt", ".ass", ".ssa", ".sub", ".vtt"}
	DefaultBlacklist          = []string{"#recycle", "@eaDir", ".DS_Store"}
)

// PathMapping translates a source prefix as seen by linkarr (Raw) into the
// prefix the media server sees (Served). Link targets use the served form.
type PathMapping struct {
	Raw    string `toml:"raw" mapstructure:"raw"`
	Served string `toml:"served" mapstructure:"served"`
}

// Config represents the application configuration
type Config struct {
	Version string `toml:"-" mapstructure:"-"`

	SourceDir    string `toml:"sourceDir" mapstructure:"sourceDir"`
	TargetDir    string `toml:"targetDir" mapstructure:"targetDir"`
	DatabasePath string `toml:"databasePath" mapstructure:"databasePath"`

	VideoExtensions    []string      `toml:"videoExtensions" mapstructure:"videoExtensions"`
	SubtitleExtensions []string      `toml:"subtitleExtensions" mapstructure:"subtitleExtensions"`
	Blacklist          []string      `toml:"blacklist" mapstructure:"blacklist"`
	PathMappings       []PathMapping `toml:"pathMappings" mapstructure:"pathMappings"`

	// PollInterval and WatchDebounce are in seconds.
	PollInterval  int  `toml:"pollInterval" mapstructure:"pollInterval"`
	WatchEvents   bool `toml:"watchEvents" mapstructure:"watchEvents"`
	WatchDebounce int  `toml:"watchDebounce" mapstructure:"watchDebounce"`

	TMDBAPIKey      string  `toml:"tmdbApiKey" mapstructure:"tmdbApiKey"`
	TMDBBaseURL     string  `toml:"tmdbBaseUrl" mapstructure:"tmdbBaseUrl"`
	TMDBLanguage    string  `toml:"tmdbLanguage" mapstructure:"tmdbLanguage"`
	TMDBAltLanguage string  `toml:"tmdbAltLanguage" mapstructure:"tmdbAltLanguage"`
	TMDBRateLimit   float64 `toml:"tmdbRateLimit" mapstructure:"tmdbRateLimit"`
	TMDBMaxRetries  int     `toml:"tmdbMaxRetries" mapstructure:"tmdbMaxRetries"`
	TMDBCacheTTL    int     `toml:"tmdbCacheTtl" mapstructure:"tmdbCacheTtl"`

	// Match tuning. Subtitle scores rank how a subtitle stem relates to an
	// already matched video stem in the same folder.
	UncertainVoteThreshold int `toml:"uncertainVoteThreshold" mapstructure:"uncertainVoteThreshold"`
	EnrichLimit            int `toml:"enrichLimit" mapstructure:"enrichLimit"`
	SubtitleScoreExact     int `toml:"subtitleScoreExact" mapstructure:"subtitleScoreExact"`
	SubtitleScorePrefix    int `toml:"subtitleScorePrefix" mapstructure:"subtitleScorePrefix"`
	SubtitleScoreSubstring int `toml:"subtitleScoreSubstring" mapstructure:"subtitleScoreSubstring"`
	SubtitleMinScore       int `toml:"subtitleMinScore" mapstructure:"subtitleMinScore"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`
}

// Defaults returns a config populated with every default value. SourceDir,
// TargetDir and TMDBAPIKey have no defaults.
func Defaults() Config {
	return Config{
		VideoExtensions:        slices.Clone(DefaultVideoExtensions),
		SubtitleExtensions:     slices.Clone(DefaultSubtitleExtensions),
		Blacklist:              slices.Clone(DefaultBlacklist),
		PollInterval:           60,
		WatchEvents:            true,
		WatchDebounce:          30,
		TMDBBaseURL:            "https://api.themoviedb.org/3",
		TMDBLanguage:           "zh-CN",
		TMDBAltLanguage:        "en-US",
		TMDBRateLimit:          20,
		TMDBMaxRetries:         10,
		TMDBCacheTTL:           60,
		UncertainVoteThreshold: 5,
		EnrichLimit:            5,
		SubtitleScoreExact:     100,
		SubtitleScorePrefix:    80,
		SubtitleScoreSubstring: 60,
		SubtitleMinScore:       60,
		LogLevel:               "INFO",
		LogMaxSize:             50,
		LogMaxBackups:          3,
		MetricsHost:            "127.0.0.1",
		MetricsPort:            9074,
	}
}

func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

func (c *Config) WatchDebounceDuration() time.Duration {
	return time.Duration(c.WatchDebounce) * time.Second
}

func (c *Config) TMDBCacheTTLDuration() time.Duration {
	return time.Duration(c.TMDBCacheTTL) * time.Minute
}

// Validate checks the config and normalizes paths and extension lists in place.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	c.SourceDir = cleanDir(c.SourceDir)
	c.TargetDir = cleanDir(c.TargetDir)

	switch {
	case c.SourceDir == "":
		invalid("sourceDir is required")
	case !filepath.IsAbs(c.SourceDir):
		invalid("sourceDir must be absolute: %q", c.SourceDir)
	}
	switch {
	case c.TargetDir == "":
		invalid("targetDir is required")
	case !filepath.IsAbs(c.TargetDir):
		invalid("targetDir must be absolute: %q", c.TargetDir)
	case c.TargetDir == c.SourceDir:
		invalid("targetDir must differ from sourceDir")
	}

	c.VideoExtensions = normalizeExtensions(c.VideoExtensions)
	c.SubtitleExtensions = normalizeExtensions(c.SubtitleExtensions)
	if len(c.VideoExtensions) == 0 {
		invalid("videoExtensions must not be empty")
	}
	for _, ext := range c.SubtitleExtensions {
		if slices.Contains(c.VideoExtensions, ext) {
			invalid("extension %q is both video and subtitle", ext)
		}
	}

	blacklist := c.Blacklist[:0:0]
	for _, name := range c.Blacklist {
		if name = strings.TrimSpace(name); name != "" && !slices.Contains(blacklist, name) {
			blacklist = append(blacklist, name)
		}
	}
	c.Blacklist = blacklist

	for i := range c.PathMappings {
		m := &c.PathMappings[i]
		m.Raw = cleanDir(m.Raw)
		m.Served = cleanDir(m.Served)
		if m.Raw == "" || m.Served == "" {
			invalid("pathMappings[%d]: raw and served are required", i)
			continue
		}
		if !filepath.IsAbs(m.Raw) {
			invalid("pathMappings[%d]: raw must be absolute: %q", i, m.Raw)
		}
	}

	if c.PollInterval < 1 {
		invalid("pollInterval must be at least 1 second")
	}
	if c.WatchDebounce < 0 {
		invalid("watchDebounce must not be negative")
	}
	if c.TMDBMaxRetries < 0 {
		invalid("tmdbMaxRetries must not be negative")
	}
	if c.EnrichLimit < 0 || c.UncertainVoteThreshold < 0 || c.SubtitleMinScore < 0 {
		invalid("match tuning values must not be negative")
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		invalid("metricsPort out of range: %d", c.MetricsPort)
	}

	return errors.Join(errs...)
}

// IsVideo reports whether ext (lowercase, with dot) is a configured video extension.
func (c *Config) IsVideo(ext string) bool {
	return slices.Contains(c.VideoExtensions, strings.ToLower(ext))
}

func (c *Config) IsSubtitle(ext string) bool {
	return slices.Contains(c.SubtitleExtensions, strings.ToLower(ext))
}

// IsMedia covers video and subtitle extensions.
func (c *Config) IsMedia(ext string) bool {
	return c.IsVideo(ext) || c.IsSubtitle(ext)
}

func (c *Config) IsBlacklisted(name string) bool {
	return slices.Contains(c.Blacklist, name)
}

func cleanDir(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out
}
