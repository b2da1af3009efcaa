package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/siteops/cdnctl/pkg/journal"
)

var errNoJournal = errors.New("the release journal is not configured; set journal.dsn or pass --journal-dsn")

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit     int
		operation string
		outcome   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded releases, newest first",
		Long: `List the journal of mutating commands (release, update-path, invalidate-path).

Entries are filtered by the configured distribution when one is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			if a.store == nil {
				return errNoJournal
			}
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			entries, err := a.store.List(ctx, journal.ListFilter{
				DistributionID: a.settings.DistributionID,
				Operation:      journal.Operation(strings.TrimSpace(operation)),
				Outcome:        journal.Outcome(strings.TrimSpace(outcome)),
				Limit:          limit,
			})
			if err != nil {
				return err
			}
			if format != outputTable {
				return printStructured(a.out, format, entries)
			}
			return printHistory(a.out, entries)
		},
	}
	f := cmd.Flags()
	f.IntVar(&limit, "limit", 20, "Maximum number of entries")
	f.StringVar(&operation, "operation", "", "Only show this operation: release, update-path, invalidate")
	f.StringVar(&outcome, "outcome", "", "Only show this outcome: committed, dry-run, failed")
	cmd.AddCommand(newHistoryPruneCmd(a))
	return cmd
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return errNoJournal
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			cutoff := time.Now().Add(-olderThan)
			deleted, err := a.store.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			a.logger.Info("pruned journal", "deleted", deleted, "cutoff", cutoff.UTC().Format(time.RFC3339))
			fmt.Fprintf(a.out, "Deleted %d journal entries created before %s.\n", deleted, cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Retention period; older entries are deleted")
	return cmd
}

func printHistory(w io.Writer, entries []journal.Release) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Operation),
			string(e.Outcome),
			e.DistributionID,
			orDash(e.Version),
			orDash(e.NewPath),
			orDash(e.RequestedBy),
			truncate(orDash(e.Error), 60),
		})
	}
	return printTable(w, []string{"Time", "Operation", "Outcome", "Distribution", "Version", "New path", "By", "Error"}, rows)
}
