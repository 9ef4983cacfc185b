// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/linkarr/internal/domain"
	"github.com/autobrr/linkarr/internal/metrics"
	"github.com/autobrr/linkarr/internal/services/organizer"
	"github.com/autobrr/linkarr/internal/services/tasks"
)

func RunServeCommand(configPath *string) *cobra.Command {
	var scanOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the link tree in sync with the source folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			cfg := a.cfg

			log.Info().Str("version", cfg.Version).Str("source", cfg.SourceDir).Str("target", cfg.TargetDir).Msg("Starting linkarr")

			a.config.OnChange(func(next *domain.Config) {
				if next.SourceDir != cfg.SourceDir || next.TargetDir != cfg.TargetDir {
					log.Warn().Msg("config: directory changes take effect after a restart")
				}
			})
			a.config.Watch()

			if cfg.MetricsEnabled {
				srv := metrics.NewMetricsServer(a.metrics, cfg.MetricsHost, cfg.MetricsPort, cfg.MetricsBasicAuthUsers)
				go func() {
					if err := srv.ListenAndServe(); err != nil {
						log.Error().Err(err).Msg("metrics server stopped")
					}
				}()
				defer func() {
					if err := srv.Stop(); err != nil {
						log.Error().Err(err).Msg("could not stop metrics server")
					}
				}()
			}

			if scanOnStart {
				// the reconciler waits so the two never process the same files
				done, err := a.tasks.Go(ctx, tasks.IDFullScan, func(ctx context.Context, progress tasks.ProgressFunc) (string, error) {
					summary, err := a.svc.RunFullScan(ctx, organizer.ProgressFunc(progress))
					if err != nil {
						return "", err
					}
					return formatSummary(summary), nil
				})
				if err != nil {
					return err
				}
				select {
				case <-done:
				case <-ctx.Done():
					<-done
					return nil
				}
			}

			reconciler := organizer.NewReconciler(a.svc, cfg.PollIntervalDuration())
			reconciler.Start(ctx)
			defer reconciler.Stop()

			if cfg.WatchEvents {
				watcher, err := organizer.NewSourceWatcher(cfg, reconciler, cfg.WatchDebounceDuration())
				if err != nil {
					log.Warn().Err(err).Msg("source watcher unavailable, relying on polling")
				} else if err := watcher.Start(); err != nil {
					log.Warn().Err(err).Msg("source watcher unavailable, relying on polling")
				} else {
					defer watcher.Stop()
				}
			}

			<-ctx.Done()
			log.Info().Msg("Shutting down linkarr")
			return nil
		},
	}

	cmd.Flags().BoolVar(&scanOnStart, "scan-on-start", false, "Run a full scan before the reconciler starts")
	return cmd
}
