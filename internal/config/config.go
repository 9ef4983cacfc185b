// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/linkarr/internal/buildinfo"
	"github.com/autobrr/linkarr/internal/domain"
)

const (
	envPrefix      = "LINKARR__"
	configFileName = "config.toml"
	databaseName   = "linkarr.db"
)

// AppConfig owns the loaded configuration. The current value is immutable;
// reloads validate a fresh copy and swap it in whole.
type AppConfig struct {
	viper      *viper.Viper
	configPath string
	current    atomic.Pointer[domain.Config]

	mu        sync.Mutex
	listeners []func(*domain.Config)
}

// New loads configPath, which may be a file or a directory holding
// config.toml. An empty path uses the default config directory. A missing
// file is written with defaults first.
func New(configPath string) (*AppConfig, error) {
	path, err := ResolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefaultConfig(path); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("config: wrote default config")
	} else if err != nil {
		return nil, errors.Wrap(err, "could not stat config file")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	bindDefaults(v, domain.Defaults())

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "could not read config file %s", path)
	}

	c := &AppConfig{viper: v, configPath: path}

	cfg, err := c.decode()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.current.Store(cfg)

	return c, nil
}

// Current returns the active configuration. Callers must not mutate it.
func (c *AppConfig) Current() *domain.Config {
	return c.current.Load()
}

func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// GetDatabasePath returns databasePath, or linkarr.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if p := c.Current().DatabasePath; p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.configPath), databaseName)
}

// OnChange registers fn to run after every successful reload.
func (c *AppConfig) OnChange(fn func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Watch starts watching the config file for edits.
func (c *AppConfig) Watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := c.Reload(); err != nil {
			log.Error().Err(err).Str("path", e.Name).Msg("config: reload rejected, keeping previous config")
		}
	})
	c.viper.WatchConfig()
}

// Reload re-reads the file, validates the result and swaps it in. On error
// the previous config stays active.
func (c *AppConfig) Reload() error {
	if err := c.viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, "could not re-read config file")
	}

	cfg, err := c.decode()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.current.Store(cfg)
	ApplyLogLevel(cfg.LogLevel)
	log.Info().Str("path", c.configPath).Msg("config: reloaded")

	c.mu.Lock()
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

func (c *AppConfig) decode() (*domain.Config, error) {
	// every key has a viper default, so decoding into a zero value is complete
	var cfg domain.Config
	if err := c.viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}
	cfg.Version = buildinfo.Version
	return &cfg, nil
}

// ResolveConfigPath maps a flag value (file, directory or empty) to the config file path.
func ResolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		configPath = getDefaultConfigDir()
		if configPath == "" {
			return "", errors.New("could not determine config directory")
		}
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", errors.Wrap(err, "could not resolve config path")
	}

	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return filepath.Join(abs, configFileName), nil
	}
	if filepath.Ext(abs) == "" {
		return filepath.Join(abs, configFileName), nil
	}
	return abs, nil
}

// getDefaultConfigDir honors XDG_CONFIG_HOME. A container mount at /config is
// used as is.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "linkarr")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "linkarr")
}

func bindDefaults(v *viper.Viper, d domain.Config) {
	defaults := map[string]any{
		"sourceDir":              d.SourceDir,
		"targetDir":              d.TargetDir,
		"databasePath":           d.DatabasePath,
		"videoExtensions":        d.VideoExtensions,
		"subtitleExtensions":     d.SubtitleExtensions,
		"blacklist":              d.Blacklist,
		"pollInterval":           d.PollInterval,
		"watchEvents":            d.WatchEvents,
		"watchDebounce":          d.WatchDebounce,
		"tmdbApiKey":             d.TMDBAPIKey,
		"tmdbBaseUrl":            d.TMDBBaseURL,
		"tmdbLanguage":           d.TMDBLanguage,
		"tmdbAltLanguage":        d.TMDBAltLanguage,
		"tmdbRateLimit":          d.TMDBRateLimit,
		"tmdbMaxRetries":         d.TMDBMaxRetries,
		"tmdbCacheTtl":           d.TMDBCacheTTL,
		"uncertainVoteThreshold": d.UncertainVoteThreshold,
		"enrichLimit":            d.EnrichLimit,
		"subtitleScoreExact":     d.SubtitleScoreExact,
		"subtitleScorePrefix":    d.SubtitleScorePrefix,
		"subtitleScoreSubstring": d.SubtitleScoreSubstring,
		"subtitleMinScore":       d.SubtitleMinScore,
		"logLevel":               d.LogLevel,
		"logPath":                d.LogPath,
		"logMaxSize":             d.LogMaxSize,
		"logMaxBackups":          d.LogMaxBackups,
		"metricsEnabled":         d.MetricsEnabled,
		"metricsHost":            d.MetricsHost,
		"metricsPort":            d.MetricsPort,
		"metricsBasicAuthUsers":  d.MetricsBasicAuthUsers,
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key, envPrefix+envName(key))
	}
}

// envName turns camelCase keys into SCREAMING_SNAKE: tmdbApiKey -> TMDB_API_KEY.
func envName(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
