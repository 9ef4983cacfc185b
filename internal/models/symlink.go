// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/linkarr/internal/dbinterface"
)

// Symlink maps a source file to the link currently materialized for it.
type Symlink struct {
	ID         int64     `json:"id"`
	SourcePath string    `json:"sourcePath"`
	LinkPath   string    `json:"linkPath"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SymlinkStore struct {
	db dbinterface.Querier
}

func NewSymlinkStore(db dbinterface.Querier) *SymlinkStore {
	return &SymlinkStore{db: db}
}

// Upsert records source -> link. A link path owned by another source is taken over.
func (s *SymlinkStore) Upsert(ctx context.Context, sourcePath, linkPath string) error {
	if sourcePath == "" || linkPath == "" {
		return errors.New("symlink paths must not be empty")
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM symlinks WHERE link_path = ? AND source_path != ?
	`, linkPath, sourcePath); err != nil {
		return fmt.Errorf("release link path: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO symlinks (source_path, link_path, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			link_path = excluded.link_path,
			created_at = excluded.created_at
	`, sourcePath, linkPath, time.Now().UTC())
	if err != nil {
		return wrapWriteErr("upsert symlink", err)
	}
	return nil
}

// GetBySource returns ErrRecordNotFound when no link is recorded for sourcePath.
func (s *SymlinkStore) GetBySource(ctx context.Context, sourcePath string) (*Symlink, error) {
	var link Symlink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_path, link_path, created_at
		FROM symlinks
		WHERE source_path = ?
	`, sourcePath).Scan(&link.ID, &link.SourcePath, &link.LinkPath, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get symlink: %w", err)
	}
	return &link, nil
}

func (s *SymlinkStore) List(ctx context.Context) ([]*Symlink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_path, link_path, created_at
		FROM symlinks
		ORDER BY source_path
	`)
	if err != nil {
		return nil, fmt.Errorf("query symlinks: %w", err)
	}
	defer rows.Close()

	var links []*Symlink
	for rows.Next() {
		var link Symlink
		if err := rows.Scan(&link.ID, &link.SourcePath, &link.LinkPath, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan symlink: %w", err)
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symlinks: %w", err)
	}
	return links, nil
}

func (s *SymlinkStore) DeleteBySource(ctx context.Context, sourcePath string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM symlinks WHERE source_path = ?`, sourcePath); err != nil {
		return fmt.Errorf("delete symlink by source: %w", err)
	}
	return nil
}

func (s *SymlinkStore) DeleteByLink(ctx context.Context, linkPath string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM symlinks WHERE link_path = ?`, linkPath); err != nil {
		return fmt.Errorf("delete symlink by link: %w", err)
	}
	return nil
}

// RenameSource re-keys a symlink record after its source moved. Missing rows are not an error.
func (s *SymlinkStore) RenameSource(ctx context.Context, oldSource, newSource string) error {
	if oldSource == newSource {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM symlinks WHERE source_path = ?`, newSource); err != nil {
		return fmt.Errorf("clear symlink destination: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE symlinks SET source_path = ? WHERE source_path = ?
	`, newSource, oldSource); err != nil {
		return wrapWriteErr("rename symlink source", err)
	}
	return nil
}

func (s *SymlinkStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM symlinks`); err != nil {
		return fmt.Errorf("delete all symlinks: %w", err)
	}
	return nil
}
