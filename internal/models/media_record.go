// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/linkarr/internal/dbinterface"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrPathConflict   = errors.New("path already taken")
)

// MediaType is the closed set of item kinds.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeTV      MediaType = "tv"
	MediaTypeUnknown MediaType = "unknown"
)

// ParseMediaType accepts the stored form and the display form, case-insensitively.
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return MediaTypeMovie, nil
	case "tv", "tv show", "tvshow", "show":
		return MediaTypeTV, nil
	case "unknown":
		return MediaTypeUnknown, nil
	default:
		return MediaTypeUnknown, fmt.Errorf("invalid media type %q", s)
	}
}

func (t MediaType) String() string {
	return string(t)
}

// DisplayName is the human facing label.
func (t MediaType) DisplayName() string {
	switch t {
	case MediaTypeMovie:
		return "Movie"
	case MediaTypeTV:
		return "TV Show"
	case MediaTypeUnknown:
		return "Unknown"
	default:
		return "Unknown"
	}
}

// Opposite returns the other catalog kind. Unknown has no opposite.
func (t MediaType) Opposite() MediaType {
	switch t {
	case MediaTypeMovie:
		return MediaTypeTV
	case MediaTypeTV:
		return MediaTypeMovie
	case MediaTypeUnknown:
		return MediaTypeUnknown
	default:
		return MediaTypeUnknown
	}
}

// SearchStatus is the resolution state of a record.
type SearchStatus string

const (
	SearchStatusPending   SearchStatus = "pending"
	SearchStatusFound     SearchStatus = "found"
	SearchStatusNotFound  SearchStatus = "not_found"
	SearchStatusUncertain SearchStatus = "uncertain"
	SearchStatusHidden    SearchStatus = "hidden"
)

// AllSearchStatuses lists every status in display order.
var AllSearchStatuses = []SearchStatus{
	SearchStatusPending,
	SearchStatusFound,
	SearchStatusNotFound,
	SearchStatusUncertain,
	SearchStatusHidden,
}

func ParseSearchStatus(s string) (SearchStatus, error) {
	for _, status := range AllSearchStatuses {
		if string(status) == strings.ToLower(strings.TrimSpace(s)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid search status %q", s)
}

// Unresolved reports whether the status is eligible for reprocessing.
func (s SearchStatus) Unresolved() bool {
	return s == SearchStatusPending || s == SearchStatusNotFound || s == SearchStatusUncertain
}

// MediaRecord is the durable state of one source file.
type MediaRecord struct {
	ID            int64        `json:"id"`
	OriginalPath  string       `json:"originalPath"`
	TargetPath    string       `json:"targetPath,omitempty"`
	MediaType     MediaType    `json:"mediaType"`
	TitleLocal    string       `json:"titleLocal,omitempty"`
	TitleAlt      string       `json:"titleAlt,omitempty"`
	TMDBID        int          `json:"tmdbId,omitempty"`
	Year          int          `json:"year,omitempty"`
	Alias         string       `json:"alias,omitempty"`
	Season        *int         `json:"season,omitempty"`
	Episode       *int         `json:"episode,omitempty"`
	FileSize      int64        `json:"fileSize"`
	FileHash      string       `json:"fileHash,omitempty"`
	Status        SearchStatus `json:"status"`
	LastScannedAt *time.Time   `json:"lastScannedAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// HasMatch reports whether the record carries a usable catalog match.
func (r *MediaRecord) HasMatch() bool {
	return r != nil && r.Status == SearchStatusFound && r.TMDBID > 0
}

type MediaRecordStore struct {
	db dbinterface.Querier
}

func NewMediaRecordStore(db dbinterface.Querier) *MediaRecordStore {
	return &MediaRecordStore{db: db}
}

const mediaRecordColumns = `id, original_path, target_path, media_type, title_local, title_alt, tmdb_id, year,
	alias, season, episode, file_size, file_hash, search_status, last_scanned_at, created_at, updated_at`

// Upsert inserts or overwrites the record keyed by OriginalPath.
func (s *MediaRecordStore) Upsert(ctx context.Context, record *MediaRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if record.OriginalPath == "" {
		return errors.New("record path is empty")
	}
	if record.MediaType == "" {
		record.MediaType = MediaTypeUnknown
	}
	if record.Status == "" {
		record.Status = SearchStatusPending
	}

	now := time.Now().UTC()
	scannedAt := now
	if record.LastScannedAt != nil {
		scannedAt = record.LastScannedAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_records
			(original_path, target_path, media_type, title_local, title_alt, tmdb_id, year,
			 alias, season, episode, file_size, file_hash, search_status, last_scanned_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(original_path) DO UPDATE SET
			target_path = excluded.target_path,
			media_type = excluded.media_type,
			title_local = excluded.title_local,
			title_alt = excluded.title_alt,
			tmdb_id = excluded.tmdb_id,
			year = excluded.year,
			alias = excluded.alias,
			season = excluded.season,
			episode = excluded.episode,
			file_size = excluded.file_size,
			file_hash = excluded.file_hash,
			search_status = excluded.search_status,
			last_scanned_at = excluded.last_scanned_at,
			updated_at = excluded.updated_at
	`, record.OriginalPath, nullString(record.TargetPath), record.MediaType, record.TitleLocal, record.TitleAlt,
		nullPositive(record.TMDBID), nullPositive(record.Year), record.Alias, nullIntPtr(record.Season),
		nullIntPtr(record.Episode), record.FileSize, record.FileHash, record.Status, scannedAt, now, now)
	if err != nil {
		return fmt.Errorf("upsert media record: %w", err)
	}

	return nil
}

// GetByPath returns ErrRecordNotFound when no record exists for path.
func (s *MediaRecordStore) GetByPath(ctx context.Context, path string) (*MediaRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaRecordColumns+` FROM media_records WHERE original_path = ?`, path)

	record, err := scanMediaRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return record, err
}

// List returns every record, optionally restricted to the given statuses.
func (s *MediaRecordStore) List(ctx context.Context, statuses ...SearchStatus) ([]*MediaRecord, error) {
	query := `SELECT ` + mediaRecordColumns + ` FROM media_records`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE search_status IN (` + dbinterface.InPlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY original_path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query media records: %w", err)
	}
	defer rows.Close()

	return scanMediaRecords(rows)
}

func (s *MediaRecordStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media_records WHERE original_path = ?`, path); err != nil {
		return fmt.Errorf("delete media record: %w", err)
	}
	return nil
}

// Rename moves a record to a new key without touching any other column.
func (s *MediaRecordStore) Rename(ctx context.Context, oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE media_records
		SET original_path = ?, updated_at = ?
		WHERE original_path = ?
	`, newPath, time.Now().UTC(), oldPath)
	if err != nil {
		return wrapWriteErr("rename media record "+oldPath, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MediaRecordStore) SetStatus(ctx context.Context, path string, status SearchStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE media_records
		SET search_status = ?, updated_at = ?
		WHERE original_path = ?
	`, status, time.Now().UTC(), path)
	if err != nil {
		return fmt.Errorf("set media record status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// dirRange returns the half-open key range covering every path below dir.
// '0' is the byte after '/', so the range stays index friendly without LIKE escaping.
func dirRange(dir string) (lower, upper string) {
	dir = strings.TrimRight(dir, "/")
	return dir + "/", dir + "0"
}

// ListFoundInDir returns found records with an id below dir, most recently updated first.
func (s *MediaRecordStore) ListFoundInDir(ctx context.Context, dir string, limit int) ([]*MediaRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	lower, upper := dirRange(dir)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaRecordColumns+`
		FROM media_records
		WHERE original_path >= ? AND original_path < ?
		  AND search_status = ? AND tmdb_id IS NOT NULL
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`, lower, upper, SearchStatusFound, limit)
	if err != nil {
		return nil, fmt.Errorf("query found records in dir: %w", err)
	}
	defer rows.Close()

	return scanMediaRecords(rows)
}

// GetFoundSibling returns the most recent found record with an id below dir.
func (s *MediaRecordStore) GetFoundSibling(ctx context.Context, dir string) (*MediaRecord, error) {
	records, err := s.ListFoundInDir(ctx, dir, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	return records[0], nil
}

func (s *MediaRecordStore) CountByStatus(ctx context.Context) (map[SearchStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT search_status, COUNT(*)
		FROM media_records
		GROUP BY search_status
	`)
	if err != nil {
		return nil, fmt.Errorf("query record counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[SearchStatus]int, len(AllSearchStatuses))
	for rows.Next() {
		var status SearchStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}

	return counts, nil
}

func (s *MediaRecordStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media_records`); err != nil {
		return fmt.Errorf("delete all media records: %w", err)
	}
	return nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanMediaRecord(scanner sqlScanner) (*MediaRecord, error) {
	var r MediaRecord
	var targetPath sql.NullString
	var tmdbID, year, season, episode sql.NullInt64
	var lastScannedAt sql.NullTime

	if err := scanner.Scan(
		&r.ID,
		&r.OriginalPath,
		&targetPath,
		&r.MediaType,
		&r.TitleLocal,
		&r.TitleAlt,
		&tmdbID,
		&year,
		&r.Alias,
		&season,
		&episode,
		&r.FileSize,
		&r.FileHash,
		&r.Status,
		&lastScannedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan media record columns: %w", err)
	}

	if targetPath.Valid {
		r.TargetPath = targetPath.String
	}
	if tmdbID.Valid {
		r.TMDBID = int(tmdbID.Int64)
	}
	if year.Valid {
		r.Year = int(year.Int64)
	}
	if season.Valid {
		v := int(season.Int64)
		r.Season = &v
	}
	if episode.Valid {
		v := int(episode.Int64)
		r.Episode = &v
	}
	if lastScannedAt.Valid {
		r.LastScannedAt = &lastScannedAt.Time
	}

	return &r, nil
}

func scanMediaRecords(rows *sql.Rows) ([]*MediaRecord, error) {
	var records []*MediaRecord
	for rows.Next() {
		record, err := scanMediaRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media records: %w", err)
	}
	return records, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullPositive(value int) any {
	if value <= 0 {
		return nil
	}
	return value
}

func nullIntPtr(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
