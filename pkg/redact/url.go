// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips credentials from URLs before they reach logs or errors.
package redact

import (
	"errors"
	"net/url"
	"strings"
)

const placeholder = "REDACTED"

var sensitiveParams = map[string]struct{}{
	"apikey":        {},
	"api_key":       {},
	"passkey":       {},
	"token":         {},
	"password":      {},
	"access_token":  {},
	"session_token": {},
}

// URL replaces sensitive query values and userinfo passwords. Unparseable
// input is returned unchanged.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), placeholder)
		}
	}

	if u.RawQuery != "" {
		query := u.Query()
		changed := false
		for key := range query {
			if _, ok := sensitiveParams[strings.ToLower(key)]; ok {
				query.Set(key, placeholder)
				changed = true
			}
		}
		if changed {
			u.RawQuery = query.Encode()
		}
	}

	return u.String()
}

// URLError redacts the URL of a *url.Error anywhere in the chain.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	redacted := &url.Error{Op: urlErr.Op, URL: URL(urlErr.URL), Err: urlErr.Err}
	if err == error(urlErr) {
		return redacted
	}

	return &wrapped{
		msg:   strings.ReplaceAll(err.Error(), urlErr.URL, redacted.URL),
		inner: redacted,
	}
}

type wrapped struct {
	msg   string
	inner error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.inner }
