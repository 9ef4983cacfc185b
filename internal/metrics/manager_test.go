// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/linkarr/internal/models"
)

func TestNewManager(t *testing.T) {
	t.Parallel()

	manager := NewManager()

	require.NotNil(t, manager)
	assert.NotNil(t, manager.GetRegistry())
	assert.NotNil(t, manager.Organizer())

	families, err := manager.GetRegistry().Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "linkarr_links_created_total")
	assert.Contains(t, names, "linkarr_reconcile_cycles_total")
}

func TestOrganizerCollector_Counters(t *testing.T) {
	t.Parallel()

	c := NewOrganizerCollector()

	c.LinksCreated(3)
	c.LinksCreated(0)
	c.LinkFailures(1)
	c.ItemProcessed(models.SearchStatusFound)
	c.ItemProcessed(models.SearchStatusFound)
	c.ItemProcessed(models.SearchStatusNotFound)
	c.ReconcileCycle()
	c.ReconcileChanges("new", 4)
	c.ReconcileChanges("moved", 0)
	c.TMDBRequest("ok")

	assert.InDelta(t, 3, testutil.ToFloat64(c.linksCreated), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.linkFailures), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.itemsProcessed.WithLabelValues("found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.itemsProcessed.WithLabelValues("not_found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.reconcileCycles), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(c.reconcileChanges.WithLabelValues("new")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.reconcileChanges))
	assert.InDelta(t, 1, testutil.ToFloat64(c.tmdbRequests.WithLabelValues("ok")), 0)
}

func TestOrganizerCollector_RecordCounts(t *testing.T) {
	t.Parallel()

	c := NewOrganizerCollector()
	c.RecordCounts(map[models.SearchStatus]int{
		models.SearchStatusFound:  10,
		models.SearchStatusHidden: 2,
	})

	expected := `
# HELP linkarr_records Persisted media records by search status
# TYPE linkarr_records gauge
linkarr_records{status="found"} 10
linkarr_records{status="hidden"} 2
linkarr_records{status="not_found"} 0
linkarr_records{status="pending"} 0
linkarr_records{status="uncertain"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c.records, strings.NewReader(expected), "linkarr_records"))

	c.RecordCounts(map[models.SearchStatus]int{models.SearchStatusFound: 11})
	assert.InDelta(t, 11, testutil.ToFloat64(c.records.WithLabelValues("found")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.records.WithLabelValues("hidden")), 0)
}
