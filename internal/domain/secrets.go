// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// RedactedStr replaces secret values in printed config.
const RedactedStr = "<redacted>"

// RedactString returns RedactedStr for any non-empty value.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return RedactedStr
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	c.TMDBAPIKey = RedactString(c.TMDBAPIKey)
	if c.MetricsBasicAuthUsers != "" {
		var users []string
		for _, pair := range strings.Split(c.MetricsBasicAuthUsers, ",") {
			user, _, _ := strings.Cut(strings.TrimSpace(pair), ":")
			if user != "" {
				users = append(users, user+":"+RedactedStr)
			}
		}
		c.MetricsBasicAuthUsers = strings.Join(users, ",")
	}
	return c
}
