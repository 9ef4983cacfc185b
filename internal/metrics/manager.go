// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Manager struct {
	registry  *prometheus.Registry
	organizer *OrganizerCollector
}

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	organizer := NewOrganizerCollector()
	registry.MustRegister(organizer)

	log.Debug().Msg("Metrics manager initialized with organizer collector")

	return &Manager{
		registry:  registry,
		organizer: organizer,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Organizer returns the collector the organizer service reports into.
func (m *Manager) Organizer() *OrganizerCollector {
	return m.organizer
}
