// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/linkarr/internal/database"
	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/internal/testdb"
	"github.com/autobrr/linkarr/pkg/tmdb"
)

// fakeCatalog answers searches by query and details by kind, id and language.
type fakeCatalog struct {
	mu       sync.Mutex
	searches map[string][]tmdb.Result
	undated  map[string]bool
	details  map[string]tmdb.Result
	err      error
	calls    int
	queries  []string
	years    []int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		searches: make(map[string][]tmdb.Result),
		undated:  make(map[string]bool),
		details:  make(map[string]tmdb.Result),
	}
}

func detailsKey(kind tmdb.Kind, id int, lang string) string {
	return fmt.Sprintf("%s/%d/%s", kind, id, lang)
}

func (f *fakeCatalog) addSearch(query string, results ...tmdb.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[query] = results
}

// addUndatedSearch registers results that only a search without a year finds.
func (f *fakeCatalog) addUndatedSearch(query string, results ...tmdb.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[query] = results
	f.undated[query] = true
}

func (f *fakeCatalog) addDetails(kind tmdb.Kind, id int, lang string, res tmdb.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res.ID = id
	f.details[detailsKey(kind, id, lang)] = res
}

func (f *fakeCatalog) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = make(map[string][]tmdb.Result)
	f.undated = make(map[string]bool)
	f.details = make(map[string]tmdb.Result)
}

func (f *fakeCatalog) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCatalog) Search(_ context.Context, _ tmdb.Kind, query string, year int, _ string) ([]tmdb.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	f.years = append(f.years, year)
	if f.err != nil {
		return nil, f.err
	}
	if year > 0 && f.undated[query] {
		return nil, nil
	}
	return f.searches[query], nil
}

func (f *fakeCatalog) Details(_ context.Context, kind tmdb.Kind, id int, lang string) (*tmdb.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.details[detailsKey(kind, id, lang)]
	if !ok {
		return nil, tmdb.ErrNotFound
	}
	return &res, nil
}

type testEnv struct {
	cfg     *domain.Config
	db      *database.DB
	catalog *fakeCatalog
	svc     *Service
}

func newTestConfig(t *testing.T) *domain.Config {
	t.Helper()

	root := t.TempDir()
	cfg := domain.Defaults()
	cfg.SourceDir = filepath.Join(root, "source")
	cfg.TargetDir = filepath.Join(root, "library")
	cfg.DatabasePath = filepath.Join(root, "linkarr.db")
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.TargetDir, 0o755))
	require.NoError(t, cfg.Validate())

	return &cfg
}

func openTestDB(t *testing.T, path string) *database.DB {
	t.Helper()
	return testdb.Open(t, "organizer", path)
}

// newTestEnv builds a service over temp trees. A nil catalog disables lookups.
func newTestEnv(t *testing.T, catalog *fakeCatalog, mutate ...func(*domain.Config)) *testEnv {
	t.Helper()

	cfg := newTestConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	db := openTestDB(t, cfg.DatabasePath)

	var c Catalog
	if catalog != nil {
		c = catalog
	}

	return &testEnv{
		cfg:     cfg,
		db:      db,
		catalog: catalog,
		svc:     NewService(cfg, db, c, nil),
	}
}

// src returns an absolute path below the source root.
func (e *testEnv) src(parts ...string) string {
	return filepath.Join(append([]string{e.cfg.SourceDir}, parts...)...)
}

func (e *testEnv) dst(parts ...string) string {
	return filepath.Join(append([]string{e.cfg.TargetDir}, parts...)...)
}

func writeMedia(t *testing.T, path string, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("media:"+filepath.Base(path)), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func requireLink(t *testing.T, link, wantSource string) {
	t.Helper()

	info, err := os.Lstat(link)
	require.NoError(t, err, "link %s", link)
	require.NotZero(t, info.Mode()&os.ModeSymlink, "%s is not a symlink", link)

	dest, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, wantSource, dest)
}

func requireNoPath(t *testing.T, path string) {
	t.Helper()

	_, err := os.Lstat(path)
	require.ErrorIs(t, err, os.ErrNotExist, "%s should not exist", path)
}

func logDetails(t *testing.T, env *testEnv, action models.ActionKind) []string {
	t.Helper()

	entries, err := env.svc.Logs().Recent(context.Background(), 500)
	require.NoError(t, err)

	var out []string
	for _, e := range entries {
		if e.Action == action {
			out = append(out, e.Details)
		}
	}
	return out
}

func arrivalCatalog() *fakeCatalog {
	catalog := newFakeCatalog()
	catalog.addSearch("Arrival", tmdb.Result{
		ID:            329865,
		Title:         "降临",
		OriginalTitle: "Arrival",
		ReleaseDate:   "2016-11-11",
		VoteCount:     15000,
	})
	return catalog
}

const arrivalFolder = "降临 (Arrival) (2016) {tmdb-329865}"

func TestService_ForcedIDInFolderName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	catalog := newFakeCatalog()
	catalog.addDetails(tmdb.KindTV, 1396, "zh-CN", tmdb.Result{Name: "绝命毒师", FirstAirDate: "2008-01-20"})
	catalog.addDetails(tmdb.KindTV, 1396, "en-US", tmdb.Result{Name: "Breaking Bad", FirstAirDate: "2008-01-20"})
	env := newTestEnv(t, catalog)

	source := env.src("绝命毒师 {tmdb-1396}", "Season 1", "Breaking Bad S01E01.mkv")
	writeMedia(t, source, time.Time{})

	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 1, summary.Linked)

	link := env.dst("TV Shows", "绝命毒师 (Breaking Bad) (2008) {tmdb-1396}", "Season 1", "Breaking Bad S01E01.mkv")
	requireLink(t, link, source)

	rec, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusFound, rec.Status)
	assert.Equal(t, models.MediaTypeTV, rec.MediaType)
	assert.Equal(t, 1396, rec.TMDBID)
	assert.Equal(t, "tmdb-1396", rec.Alias)
	assert.Equal(t, link, rec.TargetPath)
	assert.NotEmpty(t, rec.FileHash)

	assert.Contains(t, logDetails(t, env, models.ActionMatch), "Matched with TMDB ID: 1396")
}

func TestService_SecondScanUsesStoredMatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})

	_, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	link := env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv")
	requireLink(t, link, source)

	calls := env.catalog.Calls()
	require.Positive(t, calls)

	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, calls, env.catalog.Calls(), "found records must not be searched again")
	requireLink(t, link, source)
}

func TestService_ScanProgressAndLogs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil)
	writeMedia(t, env.src("Clip.mkv"), time.Time{})

	var (
		mu      sync.Mutex
		reports []int
	)
	summary, err := env.svc.RunFullScan(ctx, func(pct int, _ string) {
		mu.Lock()
		reports = append(reports, pct)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unresolved)

	require.NotEmpty(t, reports)
	assert.Equal(t, 10, reports[0])
	assert.Equal(t, 100, reports[len(reports)-1])

	scanLogs := logDetails(t, env, models.ActionScan)
	require.Len(t, scanLogs, 2)
	assert.Contains(t, scanLogs[0], "COMPLETE full scan")
	assert.Contains(t, scanLogs[1], "START full scan")
}

func TestService_NoCatalogLeavesRecordsUnresolved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil)
	source := env.src("Something.2020.mkv")
	writeMedia(t, source, time.Time{})

	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Zero(t, summary.Linked)

	rec, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusNotFound, rec.Status)
	assert.Empty(t, rec.TargetPath)
	assert.Contains(t, logDetails(t, env, models.ActionMatchFail), "Status: not_found")
}

func TestService_UncertainMatchIsNotLinked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	catalog := newFakeCatalog()
	catalog.addSearch("Ambiguous",
		tmdb.Result{ID: 1, Title: "Ambiguous", ReleaseDate: "2001-01-01", VoteCount: 2},
		tmdb.Result{ID: 2, Title: "Ambiguous", ReleaseDate: "2011-01-01", VoteCount: 1},
	)
	env := newTestEnv(t, catalog)
	source := env.src("Ambiguous.mkv")
	writeMedia(t, source, time.Time{})

	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unresolved)

	rec, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusUncertain, rec.Status)
	assert.Equal(t, 1, rec.TMDBID)
	requireNoPath(t, env.dst("Movies"))
}

func TestService_CatalogErrorDegradesToNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	catalog := newFakeCatalog()
	catalog.err = fmt.Errorf("connection refused")
	env := newTestEnv(t, catalog)
	writeMedia(t, env.src("Film.mkv"), time.Time{})
	writeMedia(t, env.src("Other.mkv"), time.Time{})

	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Items)
	assert.Equal(t, 2, summary.Unresolved)
}

func TestService_ItemsProcessedOldestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, nil)
	now := time.Now()
	writeMedia(t, env.src("Newer.mkv"), now.Add(-time.Hour))
	writeMedia(t, env.src("Older.mkv"), now.Add(-48*time.Hour))

	var names []string
	_, err := env.svc.RunFullScan(ctx, func(_ int, msg string) {
		if name, ok := strings.CutPrefix(msg, "Processing "); ok {
			names = append(names, name)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Older", "Newer"}, names)
}

func TestService_HideSuppressesUntilUnhidden(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})

	_, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	link := env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv")
	requireLink(t, link, source)

	require.NoError(t, env.svc.Hide(ctx, source))
	requireNoPath(t, link)
	requireNoPath(t, filepath.Dir(link))

	calls := env.catalog.Calls()
	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Hidden)
	assert.Zero(t, summary.Items)
	assert.Equal(t, calls, env.catalog.Calls())
	requireNoPath(t, link)

	rec, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusHidden, rec.Status)
	assert.Empty(t, rec.TargetPath)

	summary, err = env.svc.Unhide(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Linked)
	requireLink(t, link, source)

	assert.Len(t, logDetails(t, env, models.ActionHide), 1)
	assert.Len(t, logDetails(t, env, models.ActionUnhide), 1)
}

func TestService_HideUnknownPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	err := env.svc.Hide(context.Background(), env.src("missing.mkv"))
	require.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestService_SubtitleAdoptsVideoMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	video := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, video, time.Time{})

	_, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	calls := env.catalog.Calls()

	subtitle := env.src("Arrival (2016)", "Arrival.2016.1080p.chs.srt")
	writeMedia(t, subtitle, time.Time{})

	summary, err := env.svc.RunIncrementalScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.Linked)
	assert.Equal(t, calls, env.catalog.Calls(), "sibling match must not hit the catalog")

	requireLink(t, env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.chs.srt"), subtitle)
	assert.Contains(t, logDetails(t, env, models.ActionMatch), "Optimized match via sibling: 降临 (TMDB: 329865)")
}

func TestService_EpisodeAdoptsFolderSibling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	catalog := newFakeCatalog()
	catalog.addSearch("Show", tmdb.Result{ID: 4242, Name: "节目", OriginalName: "Show", FirstAirDate: "2020-05-01", VoteCount: 100})
	env := newTestEnv(t, catalog)

	first := env.src("Show", "Show.S01E01.mkv")
	writeMedia(t, first, time.Time{})
	_, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)

	catalog.clear()
	second := env.src("Show", "Show.S01E02.mkv")
	writeMedia(t, second, time.Time{})

	summary, err := env.svc.RunIncrementalScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Found)

	requireLink(t, env.dst("TV Shows", "节目 (Show) (2020) {tmdb-4242}", "Season 1", "Show S01E02.mkv"), second)
}

func TestService_RootFilesNeverShareSiblingMatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	catalog := newFakeCatalog()
	catalog.addSearch("Show", tmdb.Result{ID: 4242, Name: "Show", FirstAirDate: "2020-05-01", VoteCount: 100})
	env := newTestEnv(t, catalog)

	writeMedia(t, env.src("Show.S01E01.mkv"), time.Time{})
	_, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)

	catalog.clear()
	second := env.src("Show.S01E02.mkv")
	writeMedia(t, second, time.Time{})

	summary, err := env.svc.RunIncrementalScan(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Found)

	rec, err := env.svc.Records().GetByPath(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusNotFound, rec.Status)
	assert.Zero(t, rec.TMDBID)
}

func TestService_ReprocessRetriesUnresolved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	catalog := newFakeCatalog()
	env := newTestEnv(t, catalog)
	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})

	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unresolved)

	catalog.addSearch("Arrival", tmdb.Result{ID: 329865, Title: "降临", OriginalTitle: "Arrival", ReleaseDate: "2016-11-11", VoteCount: 15000})

	summary, err = env.svc.Reprocess(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Linked)
	requireLink(t, env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv"), source)
}

func TestService_HandleDeletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})
	_, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)

	link := env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv")
	requireLink(t, link, source)

	require.NoError(t, os.Remove(source))
	require.NoError(t, env.svc.HandleDeletion(ctx, source))

	requireNoPath(t, link)
	_, err = env.svc.Records().GetByPath(ctx, source)
	require.ErrorIs(t, err, models.ErrRecordNotFound)
	assert.DirExists(t, env.dst("Movies"))
	assert.Contains(t, logDetails(t, env, models.ActionDelete), "File deleted from source")
}

func TestService_ProcessPathsRejectsNonMedia(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	notes := env.src("notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hi"), 0o644))

	_, err := env.svc.ProcessPaths(context.Background(), []string{notes})
	require.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestService_ResetClearsEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	writeMedia(t, env.src("Arrival (2016)", "Arrival.2016.1080p.mkv"), time.Time{})
	_, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, env.svc.Reset(ctx))

	records, err := env.svc.Records().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	requireNoPath(t, env.dst("Movies", arrivalFolder))
	assert.DirExists(t, env.dst("Movies"))
	assert.DirExists(t, env.dst("TV Shows"))
	assert.FileExists(t, env.src("Arrival (2016)", "Arrival.2016.1080p.mkv"))

	entries, err := env.svc.Logs().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionReset, entries[0].Action)
}

func TestService_PreviewWritesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})

	preview, err := env.svc.Preview(ctx, true)
	require.NoError(t, err)
	require.Len(t, preview, 1)
	assert.Equal(t, models.MediaTypeMovie, preview[0].MediaType)
	assert.Equal(t, models.SearchStatusFound, preview[0].Status)
	require.Len(t, preview[0].Files, 1)
	assert.Equal(t, env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv"), preview[0].Files[0].Target)

	records, err := env.svc.Records().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	requireNoPath(t, env.dst("Movies"))
}

func TestService_ManualSearch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, arrivalCatalog())
	candidates, err := env.svc.ManualSearch(context.Background(), "Arrival.2016.1080p", models.MediaTypeMovie)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 329865, candidates[0].TMDBID)
	assert.Equal(t, "降临", candidates[0].TitleLocal)
	assert.Equal(t, "Arrival", candidates[0].TitleAlt)
	assert.Equal(t, 2016, candidates[0].Year)
}

func TestService_FailedLinkDoesNotRecordTarget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t, arrivalCatalog())
	source := env.src("Arrival (2016)", "Arrival.2016.1080p.mkv")
	writeMedia(t, source, time.Time{})

	link := env.dst("Movies", arrivalFolder, "Arrival.2016.1080p.mkv")
	require.NoError(t, os.MkdirAll(link, 0o755))

	summary, err := env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Found)
	assert.Zero(t, summary.Linked)
	assert.Equal(t, 1, summary.Failed)

	rec, err := env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusFound, rec.Status)
	assert.Equal(t, 329865, rec.TMDBID)
	assert.Empty(t, rec.TargetPath, "no target is stored for a link that was not created")

	// the next scan links once the obstruction is gone
	require.NoError(t, os.Remove(link))
	summary, err = env.svc.RunFullScan(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Linked)
	requireLink(t, link, source)

	rec, err = env.svc.Records().GetByPath(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, link, rec.TargetPath)
}
