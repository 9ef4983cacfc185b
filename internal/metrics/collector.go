// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/linkarr/internal/models"
)

// OrganizerCollector holds the counters fed by the organizer pipeline and the
// reconciler. It is registered as a single collector.
type OrganizerCollector struct {
	linksCreated     prometheus.Counter
	linkFailures     prometheus.Counter
	itemsProcessed   *prometheus.CounterVec
	reconcileCycles  prometheus.Counter
	reconcileChanges *prometheus.CounterVec
	tmdbRequests     *prometheus.CounterVec
	records          *prometheus.GaugeVec
}

func NewOrganizerCollector() *OrganizerCollector {
	return &OrganizerCollector{
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkarr_links_created_total",
			Help: "Symlinks created in the target tree",
		}),
		linkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkarr_link_failures_total",
			Help: "Files that could not be linked",
		}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkarr_items_processed_total",
			Help: "Media items processed by resulting search status",
		}, []string{"status"}),
		reconcileCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkarr_reconcile_cycles_total",
			Help: "Completed reconcile cycles",
		}),
		reconcileChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkarr_reconcile_changes_total",
			Help: "Changes detected by the reconciler by kind",
		}, []string{"kind"}),
		tmdbRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkarr_tmdb_requests_total",
			Help: "TMDB requests by outcome",
		}, []string{"outcome"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "linkarr_records",
			Help: "Persisted media records by search status",
		}, []string{"status"}),
	}
}

func (c *OrganizerCollector) Describe(ch chan<- *prometheus.Desc) {
	c.linksCreated.Describe(ch)
	c.linkFailures.Describe(ch)
	c.itemsProcessed.Describe(ch)
	c.reconcileCycles.Describe(ch)
	c.reconcileChanges.Describe(ch)
	c.tmdbRequests.Describe(ch)
	c.records.Describe(ch)
}

func (c *OrganizerCollector) Collect(ch chan<- prometheus.Metric) {
	c.linksCreated.Collect(ch)
	c.linkFailures.Collect(ch)
	c.itemsProcessed.Collect(ch)
	c.reconcileCycles.Collect(ch)
	c.reconcileChanges.Collect(ch)
	c.tmdbRequests.Collect(ch)
	c.records.Collect(ch)
}

func (c *OrganizerCollector) LinksCreated(n int) {
	if n > 0 {
		c.linksCreated.Add(float64(n))
	}
}

func (c *OrganizerCollector) LinkFailures(n int) {
	if n > 0 {
		c.linkFailures.Add(float64(n))
	}
}

func (c *OrganizerCollector) ItemProcessed(status models.SearchStatus) {
	c.itemsProcessed.WithLabelValues(string(status)).Inc()
}

func (c *OrganizerCollector) ReconcileCycle() {
	c.reconcileCycles.Inc()
}

// ReconcileChanges counts n changes of kind, one of the PollResult counters.
func (c *OrganizerCollector) ReconcileChanges(kind string, n int) {
	if n > 0 {
		c.reconcileChanges.WithLabelValues(kind).Add(float64(n))
	}
}

func (c *OrganizerCollector) TMDBRequest(outcome string) {
	c.tmdbRequests.WithLabelValues(outcome).Inc()
}

// RecordCounts replaces the records gauge. Statuses without records report 0.
func (c *OrganizerCollector) RecordCounts(counts map[models.SearchStatus]int) {
	for _, status := range models.AllSearchStatuses {
		c.records.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
