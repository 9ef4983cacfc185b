// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/dbinterface"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/pkg/hashutil"
)

type ReconcilerState string

const (
	StateIdle       ReconcilerState = "idle"
	StatePolling    ReconcilerState = "polling"
	StateProcessing ReconcilerState = "processing"
)

// PollResult counts what one reconcile cycle changed.
type PollResult struct {
	New     int `json:"new"`
	Deleted int `json:"deleted"`
	Moved   int `json:"moved"`
	Healed  int `json:"healed"`
	Kept    int `json:"kept"`
	// Unreachable records could not be stat'ed and are retried next cycle.
	Unreachable int      `json:"unreachable"`
	Duplicates  int      `json:"duplicates"`
	Summary     *Summary `json:"summary,omitempty"`
}

// Changed reports whether the cycle did anything.
func (p PollResult) Changed() bool {
	return p.New+p.Deleted+p.Moved+p.Healed+p.Duplicates > 0
}

// Reconciler keeps the database and link tree in step with the source tree.
type Reconciler struct {
	svc      *Service
	interval time.Duration
	trigger  chan struct{}
	stat     func(string) (fs.FileInfo, error)

	cycleMu sync.Mutex

	mu     sync.Mutex
	state  ReconcilerState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(svc *Service, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		svc:      svc,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stat:     os.Stat,
		state:    StateIdle,
	}
}

// Start runs the poll loop until Stop is called or ctx ends.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		log.Warn().Msg("reconciler: already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	log.Info().Dur("interval", r.interval).Msg("reconciler: started")
	go r.loop(ctx, r.done)
}

// Stop ends the loop and waits for the running cycle to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("reconciler: stopped")
}

// Trigger wakes the loop early. Triggers during a cycle collapse into one.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *Reconciler) State() ReconcilerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) setState(state ReconcilerState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

func (r *Reconciler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-r.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("reconciler: poll failed")
		}
		timer.Reset(r.interval)
	}
}

// Poll runs one reconcile cycle.
func (r *Reconciler) Poll(ctx context.Context) (PollResult, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()
	defer r.setState(StateIdle)

	r.setState(StatePolling)
	svc := r.svc
	svc.recorder.ReconcileCycle()

	var result PollResult
	root := svc.cfg.SourceDir
	if _, err := os.Stat(root); err != nil {
		log.Warn().Err(err).Str("source", root).Msg("reconciler: source directory not found")
		return result, nil
	}

	files, err := svc.scanner.Scan(ctx, root)
	if err != nil {
		return result, fmt.Errorf("scan source: %w", err)
	}
	disk := make(map[string]MediaFile, len(files))
	for _, f := range files {
		disk[f.Path] = f
	}

	records, err := svc.records.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list records: %w", err)
	}

	// normalized (raw) path -> record as stored
	known := make(map[string]*models.MediaRecord, len(records))
	for _, rec := range records {
		normalized := svc.mapper.ToRaw(rec.OriginalPath)
		existing, ok := known[normalized]
		if !ok {
			known[normalized] = rec
			continue
		}

		// a raw and a served record for one file: the raw one wins
		keep, dup := existing, rec
		if rec.OriginalPath == normalized && existing.OriginalPath != normalized {
			keep, dup = rec, existing
		}
		known[normalized] = keep
		log.Debug().Str("kept", keep.OriginalPath).Str("duplicate", dup.OriginalPath).Msg("reconciler: dropping duplicate record")
		if err := svc.records.Delete(ctx, dup.OriginalPath); err != nil && !errors.Is(err, models.ErrRecordNotFound) {
			log.Warn().Err(err).Str("path", dup.OriginalPath).Msg("reconciler: failed to delete duplicate record")
			continue
		}
		result.Duplicates++
	}

	for normalized, rec := range known {
		if rec.OriginalPath == normalized {
			continue
		}
		if _, onDisk := disk[normalized]; !onDisk {
			continue
		}
		if svc.heal(ctx, rec.OriginalPath, normalized) {
			rec.OriginalPath = normalized
			result.Healed++
		}
	}

	var added, missing []string
	for p := range disk {
		if _, ok := known[p]; !ok {
			added = append(added, p)
		}
	}
	for p := range known {
		if _, ok := disk[p]; ok {
			continue
		}
		// only a source that is confirmed gone counts as missing
		info, err := r.stat(p)
		switch {
		case err == nil && info.Mode().IsRegular():
			log.Debug().Str("path", p).Msg("reconciler: record not scanned but file still exists, keeping")
			result.Kept++
		case err == nil || errors.Is(err, fs.ErrNotExist):
			missing = append(missing, p)
		default:
			log.Warn().Err(err).Str("path", p).Msg("reconciler: cannot stat source, keeping record until next poll")
			result.Unreachable++
		}
	}
	sort.Strings(added)
	sort.Strings(missing)

	if len(added) > 0 || len(missing) > 0 {
		r.setState(StateProcessing)
	}

	added, missing = r.detectMoves(ctx, added, missing, disk, known, &result)

	for _, p := range missing {
		if err := svc.HandleDeletion(ctx, known[p].OriginalPath); err != nil {
			log.Error().Err(err).Str("path", p).Msg("reconciler: failed to handle deletion")
			continue
		}
		result.Deleted++
	}
	result.New = len(added)

	if result.New > 0 || result.Deleted > 0 {
		log.Info().Msgf("reconciler: poll detected changes: %d new, %d deleted", result.New, result.Deleted)
	}

	if len(added) > 0 {
		batch := make([]MediaFile, 0, len(added))
		for _, p := range added {
			batch = append(batch, disk[p])
		}
		summary, err := svc.ProcessFiles(ctx, batch)
		result.Summary = summary
		if err != nil {
			return result, fmt.Errorf("process new files: %w", err)
		}
	}

	svc.recorder.ReconcileChanges("new", result.New)
	svc.recorder.ReconcileChanges("deleted", result.Deleted)
	svc.recorder.ReconcileChanges("moved", result.Moved)
	svc.recorder.ReconcileChanges("healed", result.Healed)
	svc.recorder.ReconcileChanges("kept", result.Kept)
	svc.recorder.ReconcileChanges("unreachable", result.Unreachable)
	svc.recorder.ReconcileChanges("duplicates", result.Duplicates)
	if counts, err := svc.records.CountByStatus(ctx); err == nil {
		svc.recorder.RecordCounts(counts)
	}

	return result, nil
}

// detectMoves pairs a new path with the single missing record of the same
// file name. A recorded size or fingerprint that disagrees rules the pair out.
func (r *Reconciler) detectMoves(ctx context.Context, added, missing []string, disk map[string]MediaFile, known map[string]*models.MediaRecord, result *PollResult) (remainingAdded, remainingMissing []string) {
	byName := make(map[string][]string)
	for _, p := range missing {
		name := filepath.Base(p)
		byName[name] = append(byName[name], p)
	}

	moved := make(map[string]struct{})
	for _, p := range added {
		candidates := byName[filepath.Base(p)]
		if len(candidates) != 1 {
			remainingAdded = append(remainingAdded, p)
			continue
		}
		oldPath := candidates[0]
		rec := known[oldPath]
		if !sameContent(rec, disk[p]) {
			remainingAdded = append(remainingAdded, p)
			continue
		}

		if err := r.svc.moveRecord(ctx, rec, p); err != nil {
			log.Error().Err(err).Str("from", oldPath).Str("to", p).Msg("reconciler: failed to apply move")
			remainingAdded = append(remainingAdded, p)
			continue
		}
		delete(byName, filepath.Base(p))
		moved[oldPath] = struct{}{}
		result.Moved++
	}

	for _, p := range missing {
		if _, ok := moved[p]; !ok {
			remainingMissing = append(remainingMissing, p)
		}
	}
	return remainingAdded, remainingMissing
}

func sameContent(rec *models.MediaRecord, file MediaFile) bool {
	if rec.FileSize > 0 && file.Size > 0 && rec.FileSize != file.Size {
		return false
	}
	if rec.FileHash == "" {
		return true
	}
	hash, err := hashutil.Fingerprint(file.Path)
	if err != nil {
		return false
	}
	return hashutil.Equal(rec.FileHash, hash)
}

// moveRecord re-keys a record to its new source path and repoints its link.
func (s *Service) moveRecord(ctx context.Context, rec *models.MediaRecord, newPath string) error {
	oldPath := rec.OriginalPath
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx dbinterface.Querier) error {
		if err := models.NewMediaRecordStore(tx).Rename(ctx, oldPath, newPath); err != nil {
			return err
		}
		return models.NewSymlinkStore(tx).RenameSource(ctx, oldPath, newPath)
	})
	if err != nil {
		return err
	}
	rec.OriginalPath = newPath
	if rec.HasMatch() && rec.TargetPath != "" {
		if err := s.linker.Relink(ctx, newPath, rec.TargetPath); err != nil {
			log.Warn().Err(err).Str("path", newPath).Msg("reconciler: relink after move failed")
		}
	}

	log.Info().Str("from", oldPath).Str("to", newPath).Msg("reconciler: source file moved")
	s.addLog(ctx, models.ActionMove, newPath, fmt.Sprintf("Moved from %s", oldPath))
	return nil
}
