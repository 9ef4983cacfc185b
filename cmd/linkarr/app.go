// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/linkarr/internal/buildinfo"
	"github.com/autobrr/linkarr/internal/config"
	"github.com/autobrr/linkarr/internal/database"
	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/metrics"
	"github.com/autobrr/linkarr/internal/services/organizer"
	"github.com/autobrr/linkarr/internal/services/tasks"
	"github.com/autobrr/linkarr/pkg/tmdb"
)

// app holds everything a command needs. Close releases it in reverse order.
type app struct {
	config  *config.AppConfig
	cfg     *domain.Config
	db      *database.DB
	metrics *metrics.Manager
	tmdb    *tmdb.Client
	svc     *organizer.Service
	tasks   *tasks.Registry

	logCloser io.Closer
}

func openApp(configPath string) (*app, error) {
	appConfig, err := config.New(configPath)
	if err != nil {
		return nil, err
	}

	// the service keeps its own copy; reloads only change the log level
	cfg := *appConfig.Current()
	cfg.DatabasePath = appConfig.GetDatabasePath()

	logCloser, err := config.SetupLogger(&cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	manager := metrics.NewManager()
	collector := manager.Organizer()

	a := &app{
		config:    appConfig,
		cfg:       &cfg,
		db:        db,
		metrics:   manager,
		logCloser: logCloser,
	}

	var catalog organizer.Catalog
	if cfg.TMDBAPIKey != "" {
		client, err := tmdb.NewClient(tmdb.Config{
			BaseURL:    cfg.TMDBBaseURL,
			APIKey:     cfg.TMDBAPIKey,
			UserAgent:  buildinfo.UserAgent,
			CacheTTL:   cfg.TMDBCacheTTLDuration(),
			RatePerSec: cfg.TMDBRateLimit,
			MaxRetries: cfg.TMDBMaxRetries,
			Observe:    collector.TMDBRequest,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.tmdb = client
		catalog = client
	} else {
		log.Warn().Msg("tmdbApiKey is not set, items will stay unresolved until confirmed manually")
	}

	a.svc = organizer.NewService(&cfg, db, catalog, collector)
	a.tasks = tasks.NewRegistry(a.svc.Logs())

	log.Debug().Str("config", appConfig.ConfigPath()).Str("database", cfg.DatabasePath).Msg("linkarr initialized")
	return a, nil
}

func (a *app) Close() {
	if a.tmdb != nil {
		a.tmdb.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("could not close database")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

type summaryFunc func(ctx context.Context, progress organizer.ProgressFunc) (*organizer.Summary, error)

// runTask runs fn as a registry task, echoes its progress and waits for it.
func (a *app) runTask(cmd *cobra.Command, id string, fn summaryFunc) (*organizer.Summary, error) {
	var summary *organizer.Summary
	done, err := a.tasks.Go(cmd.Context(), id, func(ctx context.Context, progress tasks.ProgressFunc) (string, error) {
		s, err := fn(ctx, func(pct int, msg string) {
			progress(pct, msg)
			cmd.Printf("[%3d%%] %s\n", pct, msg)
		})
		summary = s
		if err != nil {
			return "", err
		}
		return formatSummary(s), nil
	})
	if err != nil {
		return nil, err
	}
	<-done

	task, err := a.tasks.Get(id)
	if err != nil {
		return nil, err
	}
	if task.State == tasks.StateFailed {
		return summary, errors.New(task.Message)
	}
	return summary, nil
}

func formatSummary(s *organizer.Summary) string {
	if s == nil {
		return "nothing processed"
	}
	return fmt.Sprintf("%d files, %d items: %d found, %d linked, %d unresolved, %d hidden, %d failed",
		s.Files, s.Items, s.Found, s.Linked, s.Unresolved, s.Hidden, s.Failed)
}
