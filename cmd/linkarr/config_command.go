// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/autobrr/linkarr/internal/buildinfo"
	"github.com/autobrr/linkarr/internal/config"
)

func RunConfigCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ResolveConfigPath(*configPath)
			if err != nil {
				return err
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\nSet sourceDir, targetDir and tmdbApiKey before running linkarr.\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appConfig, err := config.New(*configPath)
			if err != nil {
				return err
			}

			out, err := toml.Marshal(appConfig.Current().Redacted())
			if err != nil {
				return err
			}
			cmd.Printf("# %s\n%s", appConfig.ConfigPath(), out)
			return nil
		},
	})
	return cmd
}

func RunVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				out, err := buildinfo.JSON()
				if err != nil {
					return err
				}
				cmd.Println(string(out))
				return nil
			}
			cmd.Print(buildinfo.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
