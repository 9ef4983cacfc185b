// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "linkarr",
		Short: "Organize a download folder into a media server library of symlinks",
		Long: `linkarr identifies the movies and TV shows in a source folder through TMDB
and links them into a Movies/ and TV Shows/ tree a media server can read.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file or directory (default ~/.config/linkarr)")

	cmd.AddCommand(
		RunServeCommand(&configPath),
		RunScanCommand(&configPath),
		RunReprocessCommand(&configPath),
		RunListCommand(&configPath),
		RunRecordsCommand(&configPath),
		RunHideCommand(&configPath),
		RunUnhideCommand(&configPath),
		RunConfirmCommand(&configPath),
		RunSearchCommand(&configPath),
		RunLogsCommand(&configPath),
		RunResetCommand(&configPath),
		RunConfigCommand(&configPath),
		RunVersionCommand(),
	)
	return cmd
}
