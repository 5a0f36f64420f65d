package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/sqlite"
)

func newCellsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cells",
		Short: "Print how many participants each condition cell has",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			svc := assignment.NewService(sqlite.NewKVRepository(db), assignment.Options{
				StudyID: cfg.Study.ID,
				Topics:  cfg.Study.Topics,
				Cap:     cfg.Study.CellCap,
			}, logger)
			counts, err := svc.Counts(context.Background())
			if err != nil {
				return err
			}
			return printCells(cmd.OutOrStdout(), counts)
		},
	}
}

func printCells(w io.Writer, counts []assignment.CellCount) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TOPIC\tSYSTEM\tCOUNT")
	total := 0
	for _, c := range counts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Cell.Topic, c.Cell.System, c.Count)
		total += c.Count
	}
	_, _ = fmt.Fprintf(tw, "\t\t%d\n", total)
	return tw.Flush()
}

func newEventsCmd(configPath *string) *cobra.Command {
	var (
		participant string
		logType     string
		limit       int
		undelivered bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled interaction events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			opts := activity.ListOptions{ParticipantID: participant, Limit: limit}
			if logType != "" {
				t := activity.LogType(logType)
				opts.Type = &t
			}
			entries, err := sqlite.NewEventRepository(db).List(context.Background(), opts)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), entries, undelivered)
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "", "filter by participant id")
	cmd.Flags().StringVar(&logType, "type", "", "filter by log type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	cmd.Flags().BoolVar(&undelivered, "undelivered", false, "only show events the log sink did not accept")
	return cmd
}

func printEvents(w io.Writer, entries []activity.Entry, undeliveredOnly bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCREATED\tPARTICIPANT\tTYPE\tDELIVERED\tERROR")
	for _, e := range entries {
		if undeliveredOnly && e.Delivered {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.ParticipantID, e.Type, e.Delivered, e.Error)
	}
	return tw.Flush()
}
