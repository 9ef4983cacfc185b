// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package organizer

import "github.com/autobrr/linkarr/internal/models"

// Recorder receives pipeline counters. metrics.OrganizerCollector implements it.
type Recorder interface {
	LinksCreated(n int)
	LinkFailures(n int)
	ItemProcessed(status models.SearchStatus)
	ReconcileCycle()
	ReconcileChanges(kind string, n int)
	RecordCounts(counts map[models.SearchStatus]int)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) LinksCreated(int) {}
func (NopRecorder) LinkFailures(int) {}
func (NopRecorder) ItemProcessed(models.SearchStatus) {}
func (NopRecorder) ReconcileCycle() {}
func (NopRecorder) ReconcileChanges(string, int) {}
func (NopRecorder) RecordCounts(map[models.SearchStatus]int) {}
