package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siteops/cdnctl/pkg/cdn"
	"github.com/siteops/cdnctl/pkg/release"
)

func newConfigCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the distribution config",
		Long:  "Read the current config of the distribution together with its version token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			if asJSON {
				format = outputJSON
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			snap, err := a.orch.Config(ctx, "")
			if err != nil {
				return err
			}
			if format != outputTable {
				return printStructured(a.out, format, snap)
			}
			return printSnapshot(a.out, snap)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the config as JSON (same as -o json)")
	return cmd
}

func printSnapshot(w io.Writer, snap *cdn.Snapshot) error {
	aliases := "-"
	if len(snap.Aliases) > 0 {
		aliases = strings.Join(snap.Aliases, ", ")
	}
	if err := printFields(w, [][2]string{
		{"Distribution", snap.DistributionID},
		{"Version token", snap.VersionToken},
		{"Enabled", strconv.FormatBool(snap.Enabled)},
		{"Comment", orDash(snap.Comment)},
		{"Aliases", aliases},
	}); err != nil {
		return err
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(snap.Origins))
	for _, o := range snap.Origins {
		rows = append(rows, []string{o.ID, o.DomainName, orDash(o.Path)})
	}
	return printTable(w, []string{"Origin", "Domain", "Path"}, rows)
}

func newInvalidatePathCmd(a *app) *cobra.Command {
	var paths []string
	cmd := &cobra.Command{
		Use:   "invalidate-path",
		Short: "Invalidate cached paths",
		Long: `Request a cache invalidation for one or more paths without changing the origin.

Paths may end in a wildcard, e.g. --path '/*' or --path /assets/*.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			inv, err := a.orch.Invalidate(ctx, release.InvalidateRequest{Paths: paths})
			if err != nil {
				return err
			}
			if format != outputTable {
				return printStructured(a.out, format, inv)
			}
			return printInvalidation(a.out, inv)
		},
	}
	cmd.Flags().StringArrayVar(&paths, "path", nil, "Path to invalidate (repeatable)")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func printInvalidation(w io.Writer, inv *cdn.Invalidation) error {
	return printFields(w, [][2]string{
		{"Invalidation", inv.ID},
		{"Status", orDash(inv.Status)},
		{"Caller reference", inv.CallerReference},
		{"Paths", strings.Join(inv.Paths, ", ")},
		{"Created", formatTime(inv.CreateTime)},
	})
}
