package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/siteops/cdnctl/pkg/build"
	"github.com/siteops/cdnctl/pkg/catalog"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "list",
		Aliases:     []string{"ls"},
		Short:       "List builds in the bucket, oldest first",
		Long:        "List every build under the site root, oldest first. The build the distribution currently serves is marked live.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{needsCatalog: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			entries, err := a.orch.Builds(ctx, "")
			if err != nil {
				return err
			}
			if format != outputTable {
				return printStructured(a.out, format, entries)
			}
			return printEntries(a.out, entries)
		},
	}
}

func printEntries(w io.Writer, entries []catalog.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No builds found.")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		live := ""
		if e.Live {
			live = "*"
		}
		rows = append(rows, []string{
			e.Build.Version,
			e.Build.ID,
			formatTime(e.Build.LastModified),
			truncate(orDash(e.Build.CommitHash), 12),
			e.Build.KeyPath,
			live,
		})
	}
	return printTable(w, []string{"Version", "Build ID", "Date", "Commit", "Key", "Live"}, rows)
}

func newLiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Show the build the CDN currently serves",
		Long:  "Fetch the build descriptor through the CDN URL, bypassing caches, and show the build it describes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			details, err := a.orch.LiveBuild(ctx)
			if err != nil {
				return err
			}
			if format != outputTable {
				return printStructured(a.out, format, details)
			}
			return printDetails(a.out, details)
		},
	}
}

func printDetails(w io.Writer, d *build.Details) error {
	manual := "no"
	if d.ManualBuild {
		manual = "yes"
	}
	return printFields(w, [][2]string{
		{"Version", d.Version},
		{"Build", d.ID},
		{"Build number", orDash(d.BuildNumber)},
		{"Commit", orDash(d.CommitHash)},
		{"Built", formatTime(d.BuildDate)},
		{"Manual", manual},
		{"Origin path", d.CDNPath},
		{"Store URI", d.StoreURI},
		{"Descriptor", orDash(d.DescriptorURI)},
	})
}
