// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/dbinterface"
	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/hashutil"
	"github.com/autobrr/linkarr/pkg/releases"
)

var ErrUnsupportedFile = errors.New("file extension is not a configured video or subtitle extension")

// ProgressFunc receives a percentage and a short status line.
type ProgressFunc func(pct int, msg string)

func (p ProgressFunc) report(pct int, msg string) {
	if p != nil {
		p(pct, msg)
	}
}

// Summary counts what a pipeline run did.
type Summary struct {
	Files      int `json:"files"`
	Items      int `json:"items"`
	Found      int `json:"found"`
	Unresolved int `json:"unresolved"`
	Hidden     int `json:"hidden"`
	Linked     int `json:"linked"`
	Failed     int `json:"failed"`
}

// Service runs the scan, match and link pipeline.
type Service struct {
	cfg      *domain.Config
	db       dbinterface.TxRunner
	records  *models.MediaRecordStore
	symlinks *models.SymlinkStore
	logs     *models.OperationLogStore

	scanner    *Scanner
	aggregator *Aggregator
	classifier *Classifier
	searcher   *Searcher
	matcher    *Matcher
	renamer    *Renamer
	mapper     *PathMapper
	linker     *Linker
	recorder   Recorder
}

// NewService wires the pipeline. catalog and recorder may be nil.
func NewService(cfg *domain.Config, db dbinterface.TxRunner, catalog Catalog, recorder Recorder) *Service {
	if recorder == nil {
		recorder = NopRecorder{}
	}

	records := models.NewMediaRecordStore(db)
	symlinks := models.NewSymlinkStore(db)
	logs := models.NewOperationLogStore(db)
	mapper := NewPathMapper(cfg.PathMappings)
	searcher := NewSearcher(catalog, cfg, releases.NewDefaultParser())

	return &Service{
		cfg:        cfg,
		db:         db,
		records:    records,
		symlinks:   symlinks,
		logs:       logs,
		scanner:    NewScanner(cfg),
		aggregator: NewAggregator(cfg),
		classifier: NewClassifier(cfg),
		searcher:   searcher,
		matcher:    NewMatcher(cfg, records, logs, searcher),
		renamer:    NewRenamer(cfg),
		mapper:     mapper,
		linker:     NewLinker(cfg, mapper, symlinks, logs, recorder),
		recorder:   recorder,
	}
}

func (s *Service) Records() *models.MediaRecordStore { return s.records }
func (s *Service) Logs() *models.OperationLogStore { return s.logs }
func (s *Service) Config() *domain.Config { return s.cfg }

// ProcessFiles runs every file through classify, match, persist and link.
func (s *Service) ProcessFiles(ctx context.Context, files []MediaFile) (*Summary, error) {
	return s.processFiles(ctx, files, nil)
}

func (s *Service) processFiles(ctx context.Context, files []MediaFile, progress ProgressFunc) (*Summary, error) {
	summary := &Summary{}

	visible := make([]MediaFile, 0, len(files))
	for _, f := range files {
		rec, err := s.records.GetByPath(ctx, f.Path)
		if err == nil && rec.Status == models.SearchStatusHidden {
			summary.Hidden++
			continue
		}
		if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
			return summary, fmt.Errorf("load record %s: %w", f.Path, err)
		}
		visible = append(visible, f)
	}
	summary.Files = len(visible)

	items := s.aggregator.Aggregate(visible)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].EarliestModTime().Before(items[j].EarliestModTime())
	})
	summary.Items = len(items)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		progress.report(30+60*i/len(items), fmt.Sprintf("Processing %s", item.Name))

		if err := s.processItem(ctx, item, summary); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			log.Error().Err(err).Str("item", item.Name).Msg("organizer: failed to process item")
			s.addLog(ctx, models.ActionError, item.Name, err.Error())
		}
	}

	return summary, nil
}

// processItem confines a failing item so the rest of the batch continues.
func (s *Service) processItem(ctx context.Context, item *MediaItem, summary *Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Str("item", item.Name).Msg("organizer: recovered panic while processing item")
			err = fmt.Errorf("panic processing %s: %v", item.Name, r)
		}
	}()

	s.classifier.Classify(item)
	if err := s.matcher.Process(ctx, item); err != nil {
		return err
	}
	s.recorder.ItemProcessed(item.Status)

	switch item.Status {
	case models.SearchStatusHidden:
		summary.Hidden++
		return nil
	case models.SearchStatusFound:
		summary.Found++
		linked, err := s.saveAndLink(ctx, item)
		summary.Linked += linked
		summary.Failed += len(item.Files) - linked
		return err
	default:
		summary.Unresolved++
		return s.saveUnresolved(ctx, item)
	}
}

// plan computes the absolute link path of every file of item.
func (s *Service) plan(item *MediaItem) []LinkPlan {
	plans := make([]LinkPlan, 0, len(item.Files))
	for _, f := range item.Files {
		plans = append(plans, LinkPlan{
			File:   f,
			Target: filepath.Join(s.cfg.TargetDir, s.renamer.SuggestedPath(item, f)),
		})
	}
	return plans
}

func (s *Service) saveAndLink(ctx context.Context, item *MediaItem) (int, error) {
	plans := s.plan(item)
	failed := s.linker.LinkAll(ctx, item, plans)

	// a record only points at a link that was actually created
	for _, p := range plans {
		target := p.Target
		if _, bad := failed[p.File.Path]; bad {
			target = ""
		}
		if err := s.records.Upsert(ctx, s.recordFor(item, p.File, target)); err != nil {
			return 0, fmt.Errorf("save record %s: %w", p.File.Path, err)
		}
	}
	return len(plans) - len(failed), nil
}

func (s *Service) saveUnresolved(ctx context.Context, item *MediaItem) error {
	for _, f := range item.Files {
		if err := s.records.Upsert(ctx, s.recordFor(item, f, "")); err != nil {
			return fmt.Errorf("save record %s: %w", f.Path, err)
		}
	}
	return nil
}

func (s *Service) recordFor(item *MediaItem, f MediaFile, target string) *models.MediaRecord {
	season, episode := item.Season, item.Episode
	if o, ok := item.EpisodeOverrides[f.Path]; ok {
		if season == nil {
			season = o.Season
		}
		if episode == nil {
			episode = o.Episode
		}
	}

	hash, err := hashutil.Fingerprint(f.Path)
	if err != nil {
		log.Debug().Err(err).Str("path", f.Path).Msg("organizer: could not fingerprint file")
	}

	mediaType := item.MediaType
	if mediaType == "" {
		mediaType = models.MediaTypeUnknown
	}

	return &models.MediaRecord{
		OriginalPath: f.Path,
		TargetPath:   target,
		MediaType:    mediaType,
		TitleLocal:   item.TitleLocal,
		TitleAlt:     item.TitleAlt,
		TMDBID:       item.TMDBID,
		Year:         item.Year,
		Alias:        item.Alias,
		Season:       season,
		Episode:      episode,
		FileSize:     f.Size,
		FileHash:     hash,
		Status:       item.Status,
	}
}

// ProcessPaths processes explicit files and directories.
func (s *Service) ProcessPaths(ctx context.Context, paths []string) (*Summary, error) {
	var files []MediaFile
	for _, p := range paths {
		found, err := s.collect(ctx, p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return s.ProcessFiles(ctx, files)
}

// collect returns the media files at path. A file must have a media extension.
func (s *Service) collect(ctx context.Context, path string) ([]MediaFile, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return s.scanner.Scan(ctx, path)
	}
	if !s.cfg.IsMedia(filepath.Ext(path)) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}
	return []MediaFile{NewMediaFile(path, info)}, nil
}

// RunFullScan processes the whole source tree.
func (s *Service) RunFullScan(ctx context.Context, progress ProgressFunc) (*Summary, error) {
	return s.runScan(ctx, "full", progress, func(files []MediaFile) ([]MediaFile, error) {
		return files, nil
	})
}

// RunIncrementalScan processes only files without a record. Records stored
// under the served form of a path are renamed to the raw path first.
func (s *Service) RunIncrementalScan(ctx context.Context, progress ProgressFunc) (*Summary, error) {
	return s.runScan(ctx, "incremental", progress, func(files []MediaFile) ([]MediaFile, error) {
		records, err := s.records.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		known := make(map[string]struct{}, len(records))
		for _, r := range records {
			known[r.OriginalPath] = struct{}{}
		}

		var fresh []MediaFile
		for _, f := range files {
			if _, ok := known[f.Path]; ok {
				continue
			}
			if served := s.mapper.ToServed(f.Path); served != f.Path {
				if _, ok := known[served]; ok {
					s.heal(ctx, served, f.Path)
					continue
				}
			}
			fresh = append(fresh, f)
		}
		return fresh, nil
	})
}

func (s *Service) runScan(ctx context.Context, kind string, progress ProgressFunc, filter func([]MediaFile) ([]MediaFile, error)) (*Summary, error) {
	started := time.Now()
	root := s.cfg.SourceDir
	s.addLog(ctx, models.ActionScan, root, fmt.Sprintf("START %s scan", kind))
	progress.report(10, "Scanning source directory")

	fail := func(err error) (*Summary, error) {
		log.Error().Err(err).Str("kind", kind).Msg("organizer: scan failed")
		s.addLog(ctx, models.ActionError, "SCAN", err.Error())
		return nil, err
	}

	files, err := s.scanner.Scan(ctx, root)
	if err != nil {
		return fail(err)
	}
	if files, err = filter(files); err != nil {
		return fail(err)
	}
	progress.report(30, fmt.Sprintf("Found %d files", len(files)))

	summary, err := s.processFiles(ctx, files, progress)
	if err != nil {
		return fail(err)
	}

	progress.report(100, "Scan complete")
	log.Info().
		Str("kind", kind).
		Int("files", summary.Files).
		Int("items", summary.Items).
		Int("found", summary.Found).
		Int("linked", summary.Linked).
		Dur("took", time.Since(started)).
		Msg("organizer: scan complete")
	s.addLog(ctx, models.ActionScan, root, fmt.Sprintf("COMPLETE %s scan: %d items, %d linked", kind, summary.Items, summary.Linked))
	return summary, nil
}

// Reprocess retries every pending, not_found and uncertain record that still exists on disk.
func (s *Service) Reprocess(ctx context.Context, progress ProgressFunc) (*Summary, error) {
	progress.report(10, "Loading unresolved records")
	records, err := s.records.List(ctx, models.SearchStatusPending, models.SearchStatusNotFound, models.SearchStatusUncertain)
	if err != nil {
		return nil, fmt.Errorf("list unresolved records: %w", err)
	}

	files := make([]MediaFile, 0, len(records))
	for _, r := range records {
		info, err := os.Stat(r.OriginalPath)
		if err != nil || !info.Mode().IsRegular() {
			log.Debug().Str("path", r.OriginalPath).Msg("organizer: unresolved record no longer on disk")
			continue
		}
		files = append(files, NewMediaFile(r.OriginalPath, info))
	}
	progress.report(30, fmt.Sprintf("Reprocessing %d files", len(files)))

	summary, err := s.processFiles(ctx, files, progress)
	if err != nil {
		return summary, err
	}
	progress.report(100, "Reprocess complete")
	return summary, nil
}

// HandleDeletion forgets a source file that disappeared.
func (s *Service) HandleDeletion(ctx context.Context, path string) error {
	var target string
	if rec, err := s.records.GetByPath(ctx, path); err == nil {
		target = rec.TargetPath
	}

	if err := s.linker.RemoveLink(ctx, path, target); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("organizer: could not remove link of deleted file")
	}
	if err := s.records.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete record %s: %w", path, err)
	}

	s.addLog(ctx, models.ActionDelete, path, "File deleted from source")
	return nil
}

// Hide suppresses path until it is unhidden.
func (s *Service) Hide(ctx context.Context, path string) error {
	rec, err := s.records.GetByPath(ctx, path)
	if err != nil {
		return fmt.Errorf("hide %s: %w", path, err)
	}

	if err := s.linker.RemoveLink(ctx, path, rec.TargetPath); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("organizer: could not remove link of hidden file")
	}

	rec.Status = models.SearchStatusHidden
	rec.TargetPath = ""
	if err := s.records.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("hide %s: %w", path, err)
	}

	s.addLog(ctx, models.ActionHide, path, "User hidden item")
	return nil
}

// Unhide marks path pending again and reprocesses it.
func (s *Service) Unhide(ctx context.Context, path string) (*Summary, error) {
	if err := s.records.SetStatus(ctx, path, models.SearchStatusPending); err != nil {
		return nil, fmt.Errorf("unhide %s: %w", path, err)
	}
	s.addLog(ctx, models.ActionUnhide, path, "User unhidden item")

	files, err := s.collect(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("unhide %s: %w", path, err)
	}
	return s.ProcessFiles(ctx, files)
}

// ManualSearch lists candidates for name without touching any record.
func (s *Service) ManualSearch(ctx context.Context, name string, mediaType models.MediaType) ([]Candidate, error) {
	return s.searcher.SearchAll(ctx, name, mediaType)
}

// Reset clears every table and the target tree.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.records.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.symlinks.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.logs.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.linker.Purge(ctx); err != nil {
		return err
	}

	log.Info().Msg("organizer: database and link tree reset")
	s.addLog(ctx, models.ActionReset, s.cfg.TargetDir, "Database and link tree cleared")
	return nil
}

// PreviewFile is one planned link.
type PreviewFile struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// PreviewItem describes what processing an item would do.
type PreviewItem struct {
	Name       string              `json:"name"`
	MediaType  models.MediaType    `json:"mediaType"`
	Status     models.SearchStatus `json:"status"`
	TitleLocal string              `json:"titleLocal,omitempty"`
	TMDBID     int                 `json:"tmdbId,omitempty"`
	Files      []PreviewFile       `json:"files"`
}

// Preview scans, groups and classifies the source tree and optionally
// searches the catalog. Nothing is written.
func (s *Service) Preview(ctx context.Context, search bool) ([]PreviewItem, error) {
	files, err := s.scanner.Scan(ctx, s.cfg.SourceDir)
	if err != nil {
		return nil, err
	}

	items := s.aggregator.Aggregate(files)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].EarliestModTime().Before(items[j].EarliestModTime())
	})

	out := make([]PreviewItem, 0, len(items))
	for _, item := range items {
		s.classifier.Classify(item)
		if search {
			if err := s.searcher.Search(ctx, item); err != nil {
				return out, err
			}
		}

		preview := PreviewItem{
			Name:       item.Name,
			MediaType:  item.MediaType,
			Status:     item.Status,
			TitleLocal: item.TitleLocal,
			TMDBID:     item.TMDBID,
		}
		for _, f := range item.Files {
			preview.Files = append(preview.Files, PreviewFile{
				Source: f.Path,
				Target: filepath.Join(s.cfg.TargetDir, s.renamer.SuggestedPath(item, f)),
			})
		}
		out = append(out, preview)
	}
	return out, nil
}

// heal renames a record stored under its served path to the raw path.
func (s *Service) heal(ctx context.Context, stored, raw string) bool {
	if err := s.records.Rename(ctx, stored, raw); err != nil {
		log.Warn().Err(err).Str("stored", stored).Str("path", raw).Msg("organizer: could not heal record path")
		return false
	}
	if err := s.symlinks.RenameSource(ctx, stored, raw); err != nil {
		log.Warn().Err(err).Str("stored", stored).Msg("organizer: could not heal symlink source")
	}
	s.addLog(ctx, models.ActionHeal, raw, fmt.Sprintf("Record path healed from %s", stored))
	return true
}

func (s *Service) addLog(ctx context.Context, action models.ActionKind, target, details string) {
	if err := s.logs.Add(ctx, action, target, details); err != nil {
		log.Error().Err(err).Str("action", string(action)).Msg("organizer: failed to write operation log")
	}
}
