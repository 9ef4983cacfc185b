// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const defaultConfigTemplate = `# config.toml - linkarr configuration

# Directory holding the downloaded media to organize
# Required
sourceDir = ""

# Directory the Movies/ and TV Shows/ link tree is created in
# Required
targetDir = ""

# Database location
# Default: linkarr.db next to this file
#databasePath = ""

# Extensions considered media
#videoExtensions = [".mkv", ".mp4", ".avi", ".mov", ".m4v", ".ts", ".m2ts", ".wmv", ".iso", ".rmvb", ".flv", ".webm"]
#subtitleExtensions = [".srt", ".ass", ".ssa", ".sub", ".vtt"]

# File and directory names that are never scanned
#blacklist = ["#recycle", "@eaDir", ".DS_Store"]

# Seconds between reconcile cycles
# Default: 60
#pollInterval = 60

# Wake the reconciler early on filesystem events
# Default: true
#watchEvents = true

# Seconds of quiet before filesystem events trigger a cycle
# Default: 30
#watchDebounce = 30

# TMDB
# Required, can also be set with LINKARR__TMDB_API_KEY
tmdbApiKey = ""
#tmdbBaseUrl = "https://api.themoviedb.org/3"
#tmdbLanguage = "zh-CN"
#tmdbAltLanguage = "en-US"
#tmdbRateLimit = 20
#tmdbMaxRetries = 10
# Minutes
#tmdbCacheTtl = 60

# Matching
#uncertainVoteThreshold = 5
#enrichLimit = 5
#subtitleScoreExact = 100
#subtitleScorePrefix = 80
#subtitleScoreSubstring = 60
#subtitleMinScore = 60

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Log file path
# If not defined, logs to stderr
#logPath = "log/linkarr.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Prometheus metrics
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
# Comma separated user:password pairs
#metricsBasicAuthUsers = ""

# Path mapping, applied to link targets. Use when the media server sees the
# source tree under a different prefix.
#[[pathMappings]]
#raw = "/downloads"
#served = "/mnt/nas/downloads"
`

// WriteDefaultConfig writes the commented default config. An existing file is
// left alone.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "could not create config directory")
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o600); err != nil {
		return errors.Wrap(err, "could not write config file")
	}
	return nil
}
