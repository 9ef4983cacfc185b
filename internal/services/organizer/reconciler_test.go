// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"io/fs"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
)

func scanArrival(t *testing.T, env *testEnv) string {
	t.Helper()

	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})
	summary, err := env.svc.RunFullScan(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Linked)
	return source
}

func TestReconciler_DetectsMove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := scanArrival(t, env)
	link := env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv")
	calls := env.catalog.Calls()

	moved := env.src("Moved", "Arrival.2016.1080p.mkv")
	require.NoError(t, os.MkdirAll(env.src("Moved"), 0o755))
	require.NoError(t, os.Rename(source, moved))

	result, err := NewReconciler(env.svc, time.Hour).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Moved)
	assert.Zero(t, result.New)
	assert.Zero(t, result.Deleted)

	rec, err := env.svc.Records().GetByPath(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, 329865, rec.TMDBID)
	assert.Equal(t, models.SearchStatusFound, rec.Status)

	_, err = env.svc.Records().GetByPath(ctx, source)
	require.ErrorIs(t, err, models.ErrRecordNotFound)

	requireLink(t, link, moved)
	assert.Equal(t, calls, env.catalog.Calls())
	assert.Contains(t, logDetails(t, env, models.ActionMove), "Moved from "+source)
}

func TestReconciler_DifferentContentIsNotAMove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := scanArrival(t, env)
	require.NoError(t, os.Remove(source))

	other := env.src("Other", "Arrival.2016.1080p.mkv")
	require.NoError(t, os.MkdirAll(env.src("Other"), 0o755))
	require.NoError(t, os.WriteFile(other, []byte("a different and longer payload"), 0o644))

	result, err := NewReconciler(env.svc, time.Hour).Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Moved)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.New)
	require.NotNil(t, result.Summary)
}

func TestReconciler_DeletionRemovesLink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := scanArrival(t, env)
	link := env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv")
	require.NoError(t, os.Remove(source))

	result, err := NewReconciler(env.svc, time.Hour).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	requireNoPath(t, link)
	_, err = env.svc.Records().GetByPath(ctx, source)
	require.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestReconciler_NewFilesThenNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})
	r := NewReconciler(env.svc, time.Hour)

	result, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 1, result.Summary.Linked)
	assert.True(t, result.Changed())

	calls := env.catalog.Calls()
	result, err = r.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Nil(t, result.Summary)
	assert.Equal(t, calls, env.catalog.Calls())
	assert.Equal(t, StateIdle, r.State())
}

func TestReconciler_HealsServedPaths(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil, func(cfg *domain.Config) {
		cfg.PathMappings = []domain.PathMapping{{Raw: cfg.SourceDir, Served: "/volume1/media"}}
	})

	raw := env.src("Film.mkv")
	writeMedia(t, raw, time.Time{})
	require.NoError(t, env.svc.Records().Upsert(ctx, &models.MediaRecord{
		OriginalPath: "/volume1/media/Film.mkv",
		MediaType:    models.MediaTypeMovie,
		Status:       models.SearchStatusNotFound,
	}))

	result, err := NewReconciler(env.svc, time.Hour).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Healed)
	assert.Zero(t, result.New)
	assert.Zero(t, result.Deleted)

	rec, err := env.svc.Records().GetByPath(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusNotFound, rec.Status)
	_, err = env.svc.Records().GetByPath(ctx, "/volume1/media/Film.mkv")
	require.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestReconciler_KeepsRecordsOfUnscannedFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil)
	hidden := env.src("@eaDir", "clip.mkv")
	writeMedia(t, hidden, time.Time{})
	require.NoError(t, env.svc.Records().Upsert(ctx, &models.MediaRecord{
		OriginalPath: hidden,
		Status:       models.SearchStatusNotFound,
	}))

	result, err := NewReconciler(env.svc, time.Hour).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Kept)
	assert.Zero(t, result.Deleted)

	_, err = env.svc.Records().GetByPath(ctx, hidden)
	require.NoError(t, err)
}

func TestReconciler_StatErrorKeepsRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := scanArrival(t, env)
	link := env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv")
	require.NoError(t, os.Remove(source))

	r := NewReconciler(env.svc, time.Hour)
	r.stat = func(p string) (fs.FileInfo, error) {
		if p == source {
			return nil, &fs.PathError{Op: "stat", Path: p, Err: syscall.EACCES}
		}
		return os.Stat(p)
	}

	result, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unreachable)
	assert.Zero(t, result.Deleted)

	rec, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusFound, rec.Status)
	_, err = os.Lstat(link)
	require.NoError(t, err, "link survives an unreadable source")

	// once the source is confirmed gone it is cleaned up
	r.stat = os.Stat
	result, err = r.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Zero(t, result.Unreachable)
	requireNoPath(t, link)
}

func TestReconciler_HiddenRecordsStayHidden(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := scanArrival(t, env)
	require.NoError(t, env.svc.Hide(ctx, source))

	before, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	calls := env.catalog.Calls()

	r := NewReconciler(env.svc, time.Hour)
	for range 2 {
		result, err := r.Poll(ctx)
		require.NoError(t, err)
		assert.False(t, result.Changed())
	}

	after, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusHidden, after.Status)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Empty(t, after.TargetPath)
	assert.Equal(t, calls, env.catalog.Calls())
	requireNoPath(t, env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv"))
}

func TestReconciler_DropsServedDuplicateOfRawRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil, func(cfg *domain.Config) {
		cfg.PathMappings = []domain.PathMapping{{Raw: cfg.SourceDir, Served: "/volume1/media"}}
	})

	raw := env.src("Film.mkv")
	writeMedia(t, raw, time.Time{})
	for _, p := range []string{"/volume1/media/Film.mkv", raw} {
		require.NoError(t, env.svc.Records().Upsert(ctx, &models.MediaRecord{
			OriginalPath: p,
			MediaType:    models.MediaTypeMovie,
			Status:       models.SearchStatusNotFound,
		}))
	}

	result, err := NewReconciler(env.svc, time.Hour).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Duplicates)
	assert.Zero(t, result.Healed)
	assert.Zero(t, result.New)
	assert.Zero(t, result.Deleted)

	_, err = env.svc.Records().GetByPath(ctx, raw)
	require.NoError(t, err)
	_, err = env.svc.Records().GetByPath(ctx, "/volume1/media/Film.mkv")
	require.ErrorIs(t, err, models.ErrRecordNotFound)

	records, err := env.svc.Records().List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestReconciler_FailedMoveLeavesNoHalfRenamedRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := scanArrival(t, env)

	_, err := env.db.ExecContext(ctx, `
		CREATE TRIGGER block_symlink_update BEFORE UPDATE ON symlinks
		BEGIN
			SELECT RAISE(ABORT, 'symlinks are read only');
		END
	`)
	require.NoError(t, err)

	moved := env.src("Moved", "Arrival.2016.1080p.mkv")
	require.NoError(t, os.MkdirAll(env.src("Moved"), 0o755))
	require.NoError(t, os.Rename(source, moved))

	result, err := NewReconciler(env.svc, time.Hour).Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Moved)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.New)
	assert.Empty(t, logDetails(t, env, models.ActionMove))

	_, err = env.svc.Records().GetByPath(ctx, source)
	require.ErrorIs(t, err, models.ErrRecordNotFound)
	_, err = env.svc.Records().GetByPath(ctx, moved)
	require.NoError(t, err)

	_, err = models.NewSymlinkStore(env.db).GetBySource(ctx, source)
	require.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestReconciler_MissingSourceIsNotAnError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	require.NoError(t, os.RemoveAll(env.cfg.SourceDir))

	result, err := NewReconciler(env.svc, time.Hour).Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Changed())
}

func TestReconciler_TriggerWakesLoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil)
	first := env.src("First.mkv")
	writeMedia(t, first, time.Time{})

	r := NewReconciler(env.svc, time.Hour)
	r.Start(ctx)
	t.Cleanup(r.Stop)

	recorded := func(path string) func() bool {
		return func() bool {
			_, err := env.svc.Records().GetByPath(ctx, path)
			return err == nil
		}
	}
	require.Eventually(t, recorded(first), 5*time.Second, 20*time.Millisecond)

	second := env.src("Second.mkv")
	writeMedia(t, second, time.Time{})
	r.Trigger()
	r.Trigger()
	require.Eventually(t, recorded(second), 5*time.Second, 20*time.Millisecond)

	r.Stop()
	assert.Equal(t, StateIdle, r.State())
}

type triggerCounter struct {
	n atomic.Int32
}

func (c *triggerCounter) Trigger() {
	c.n.Add(1)
}

func TestSourceWatcher_TriggersOnNewMedia(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	require.NoError(t, os.MkdirAll(cfg.SourceDir+"/@eaDir", 0o755))

	counter := &triggerCounter{}
	w, err := NewSourceWatcher(cfg, counter, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)

	assert.Equal(t, 1, w.Watched(), "blacklisted folders are not watched")

	dir := cfg.SourceDir + "/New Show"
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.Eventually(t, func() bool { return w.Watched() == 2 }, 5*time.Second, 20*time.Millisecond)

	writeMedia(t, dir+"/New.Show.S01E01.mkv", time.Time{})
	require.Eventually(t, func() bool { return counter.n.Load() > 0 }, 5*time.Second, 20*time.Millisecond)

	w.Stop()
	w.Stop()
}
