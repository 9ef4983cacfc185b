// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb hands out migrated databases for tests.
package testdb

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/autobrr/linkarr/internal/database"
)

type template struct {
	once sync.Once
	path string
	err  error
}

var (
	templatesMu sync.Mutex
	templates   = make(map[string]*template)
)

// Open clones the package's migrated template database to path and opens
// it. The database is closed when the test ends.
func Open(t testing.TB, key, path string) *database.DB {
	t.Helper()

	tmpl := templateFor(key)
	tmpl.once.Do(func() {
		tmpl.path, tmpl.err = createTemplate(key)
	})
	if tmpl.err != nil {
		t.Fatalf("prepare template database %q: %v", key, tmpl.err)
	}

	if err := cloneDatabase(tmpl.path, path); err != nil {
		t.Fatalf("clone template database %q to %s: %v", key, path, err)
	}

	db, err := database.New(path)
	if err != nil {
		t.Fatalf("open database %s: %v", path, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database %s: %v", path, err)
		}
	})
	return db
}

func templateFor(key string) *template {
	templatesMu.Lock()
	defer templatesMu.Unlock()

	tmpl, ok := templates[key]
	if !ok {
		tmpl = &template{}
		templates[key] = tmpl
	}
	return tmpl
}

func createTemplate(key string) (string, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("linkarr-%s-template-", sanitizeKey(key)))
	if err != nil {
		return "", err
	}

	path := dir + string(os.PathSeparator) + "template.db"
	db, err := database.New(path)
	if err != nil {
		return "", err
	}
	if err := db.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "testdb"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, key)
}

func cloneDatabase(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(src + suffix); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src+suffix, dst+suffix); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
