// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/linkarr/internal/models"
)

func TestSymlinkStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := models.NewSymlinkStore(setupTestDB(t))

	require.NoError(t, store.Upsert(ctx, "/src/a.mkv", "/dst/Movies/A/a.mkv"))
	require.NoError(t, store.Upsert(ctx, "/src/a.mkv", "/dst/Movies/A (2020)/a.mkv"))

	link, err := store.GetBySource(ctx, "/src/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/dst/Movies/A (2020)/a.mkv", link.LinkPath)

	require.NoError(t, store.RenameSource(ctx, "/src/a.mkv", "/src/moved/a.mkv"))
	_, err = store.GetBySource(ctx, "/src/a.mkv")
	require.ErrorIs(t, err, models.ErrRecordNotFound)
	link, err = store.GetBySource(ctx, "/src/moved/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/dst/Movies/A (2020)/a.mkv", link.LinkPath)

	require.NoError(t, store.DeleteByLink(ctx, "/dst/Movies/A (2020)/a.mkv"))
	_, err = store.GetBySource(ctx, "/src/moved/a.mkv")
	require.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestSymlinkStore_LinkPathTakeover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := models.NewSymlinkStore(setupTestDB(t))

	require.NoError(t, store.Upsert(ctx, "/src/a.mkv", "/dst/x.mkv"))
	require.NoError(t, store.Upsert(ctx, "/src/b.mkv", "/dst/x.mkv"))

	_, err := store.GetBySource(ctx, "/src/a.mkv")
	require.ErrorIs(t, err, models.ErrRecordNotFound)

	links, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "/src/b.mkv", links[0].SourcePath)

	require.NoError(t, store.DeleteBySource(ctx, "/src/b.mkv"))
	require.NoError(t, store.DeleteAll(ctx))
}

func TestOperationLogStore_RecentNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := models.NewOperationLogStore(setupTestDB(t))

	require.NoError(t, store.Add(ctx, models.ActionScan, "/src", "full scan"))
	require.NoError(t, store.Add(ctx, models.ActionMatch, "Show", "tmdb 1"))
	require.NoError(t, store.Add(ctx, models.ActionLink, "Show", "2 links"))

	entries, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionLink, entries[0].Action)
	assert.Equal(t, models.ActionMatch, entries[1].Action)

	require.NoError(t, store.DeleteAll(ctx))
	entries, err = store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
