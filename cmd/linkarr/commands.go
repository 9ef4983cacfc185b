// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/autobrr/linkarr/internal/models"
	"github.com/autobrr/linkarr/internal/services/organizer"
	"github.com/autobrr/linkarr/internal/services/tasks"
	"github.com/autobrr/linkarr/pkg/stringutils"
)

func RunScanCommand(configPath *string) *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the source folder and link everything that can be identified",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			id, run := tasks.IDFullScan, a.svc.RunFullScan
			if incremental {
				id, run = tasks.IDIncrementalScan, a.svc.RunIncrementalScan
			}

			summary, err := a.runTask(cmd, id, run)
			if err != nil {
				return err
			}
			cmd.Printf("Scan complete: %s\n", formatSummary(summary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "Only process files without a record")
	return cmd
}

func RunReprocessCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess [path]",
		Short: "Retry unresolved records, or a single source path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			id, run := tasks.IDReprocessUnknown, summaryFunc(a.svc.Reprocess)
			if len(args) == 1 {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				id = tasks.ReprocessID(path)
				run = func(ctx context.Context, _ organizer.ProgressFunc) (*organizer.Summary, error) {
					return a.svc.ProcessPaths(ctx, []string{path})
				}
			}

			summary, err := a.runTask(cmd, id, run)
			if err != nil {
				return err
			}
			cmd.Printf("Reprocess complete: %s\n", formatSummary(summary))
			return nil
		},
	}
}

func RunListCommand(configPath *string) *cobra.Command {
	var search bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show how the source folder would be organized without changing anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.svc.Preview(cmd.Context(), search)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tTYPE\tTMDB\tNAME")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.Status, item.MediaType.DisplayName(), tmdbColumn(item.TMDBID), previewName(item))
				for _, f := range item.Files {
					fmt.Fprintf(w, "\t\t\t  %s -> %s\n", f.Source, f.Target)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			cmd.Printf("%d items\n", len(items))
			return nil
		},
	}

	cmd.Flags().BoolVar(&search, "search", false, "Look up each item in TMDB")
	return cmd
}

func previewName(item organizer.PreviewItem) string {
	if item.TitleLocal != "" && item.TitleLocal != item.Name {
		return item.Name + " (" + item.TitleLocal + ")"
	}
	return item.Name
}

func tmdbColumn(id int) string {
	if id <= 0 {
		return "-"
	}
	return strconv.Itoa(id)
}

func RunRecordsCommand(configPath *string) *cobra.Command {
	var (
		statuses []string
		search   string
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List stored records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := make([]models.SearchStatus, 0, len(statuses))
			for _, s := range statuses {
				status, err := models.ParseSearchStatus(s)
				if err != nil {
					return err
				}
				filter = append(filter, status)
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.svc.Records().List(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			if search != "" {
				records = matchRecords(records, search)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tTYPE\tTMDB\tTITLE\tPATH")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rec.Status, rec.MediaType.DisplayName(), tmdbColumn(rec.TMDBID), rec.TitleLocal, rec.OriginalPath)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			cmd.Printf("%d records\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show records with these statuses (pending, found, not_found, uncertain, hidden)")
	cmd.Flags().StringVar(&search, "search", "", "Fuzzy filter on titles and file names")
	return cmd
}

func matchRecords(records []*models.MediaRecord, term string) []*models.MediaRecord {
	term = stringutils.NormalizeForMatching(term)
	var out []*models.MediaRecord
	for _, rec := range records {
		for _, candidate := range []string{rec.TitleLocal, rec.TitleAlt, rec.Alias, filepath.Base(rec.OriginalPath)} {
			if candidate != "" && fuzzy.Match(term, stringutils.NormalizeForMatching(candidate)) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func RunHideCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hide <path>",
		Short: "Hide a source file and remove its link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Hide(cmd.Context(), path); err != nil {
				return err
			}
			cmd.Printf("Hidden %s\n", path)
			return nil
		},
	}
}

func RunUnhideCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unhide <path>",
		Short: "Unhide a source file and process it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.svc.Unhide(cmd.Context(), path)
			if err != nil {
				return err
			}
			cmd.Printf("Unhidden %s: %s\n", path, formatSummary(summary))
			return nil
		},
	}
}

func RunConfirmCommand(configPath *string) *cobra.Command {
	var (
		tmdbID    int
		mediaType string
		title     string
		altTitle  string
		year      int
		alias     string
		season    int
		episode   int
		batch     bool
	)

	cmd := &cobra.Command{
		Use:   "confirm <path>",
		Short: "Match a source file, or its whole folder, to a TMDB entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			req := organizer.ConfirmRequest{
				Path:       path,
				TMDBID:     tmdbID,
				TitleLocal: title,
				TitleAlt:   altTitle,
				Year:       year,
				Alias:      alias,
				Batch:      batch,
			}
			if mediaType != "" {
				if req.MediaType, err = models.ParseMediaType(mediaType); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("season") {
				req.Season = &season
			}
			if cmd.Flags().Changed("episode") {
				req.Episode = &episode
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.svc.Confirm(cmd.Context(), req)
			if err != nil {
				return err
			}
			cmd.Printf("Confirmed TMDB %d: %d files, %d linked\n", tmdbID, result.Files, result.Linked)
			return nil
		},
	}

	cmd.Flags().IntVar(&tmdbID, "tmdb-id", 0, "TMDB id of the movie or show")
	cmd.Flags().StringVar(&mediaType, "type", "", "movie or tv (looked up from TMDB when empty)")
	cmd.Flags().StringVar(&title, "title", "", "Local title (looked up from TMDB when empty)")
	cmd.Flags().StringVar(&altTitle, "alt-title", "", "Alternate title")
	cmd.Flags().IntVar(&year, "year", 0, "Release year")
	cmd.Flags().StringVar(&alias, "alias", "", "Folder alias used instead of the titles")
	cmd.Flags().IntVar(&season, "season", 0, "Season number for TV files")
	cmd.Flags().IntVar(&episode, "episode", 0, "Episode number for a single TV file")
	cmd.Flags().BoolVar(&batch, "batch", false, "Apply the match to every media file in the same folder")
	_ = cmd.MarkFlagRequired("tmdb-id")

	return cmd
}

func RunSearchCommand(configPath *string) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Search TMDB for a name without changing any record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := models.MediaTypeMovie
			if mediaType != "" {
				var err error
				if kind, err = models.ParseMediaType(mediaType); err != nil {
					return err
				}
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.tmdb == nil {
				return errors.New("search needs tmdbApiKey to be set")
			}

			candidates, err := a.svc.ManualSearch(cmd.Context(), args[0], kind)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TMDB\tTYPE\tYEAR\tVOTES\tTITLE")
			for _, c := range candidates {
				title := c.TitleLocal
				if c.TitleAlt != "" && c.TitleAlt != c.TitleLocal {
					title += " / " + c.TitleAlt
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", c.TMDBID, c.MediaType.DisplayName(), c.Year, c.VoteCount, title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", "", "movie or tv (movie when empty)")
	return cmd
}

func RunLogsCommand(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.Logs().Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				cmd.Printf("%s  %-8s %s: %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.Target, e.Details)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Number of entries to show")
	return cmd
}

func RunResetCommand(configPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record and the whole link tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset removes all records and links, pass --yes to continue")
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Reset(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Reset %s\n", a.cfg.TargetDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
