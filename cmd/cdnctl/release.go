package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/siteops/cdnctl/pkg/release"
)

func newReleaseCmd(a *app) *cobra.Command {
	var (
		req   release.ReleaseRequest
		paths []string
	)
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Serve the build with the given version",
		Long: `Find the build whose descriptor lives under <site-root>/<version>/ and point the
distribution's origin at it.

With --dry-run the distribution is read and checked but not changed.`,
		Example: `  cdnctl release --version v42 --dry-run
  cdnctl release --version v42 --invalidate '/*' --stamp`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{needsCatalog: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			req.InvalidatePaths = paths
			res, err := a.orch.Release(ctx, req)
			return a.finish(format, res, err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Version, "version", "", "Build version to serve")
	f.BoolVar(&req.DryRun, "dry-run", false, "Check the update without applying it")
	f.StringSliceVar(&paths, "invalidate", nil, "Paths to invalidate after the update, e.g. '/*'")
	f.BoolVar(&req.StampMetadata, "stamp", false, "Record the commit hash and release date on the released descriptor")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func newUpdatePathCmd(a *app) *cobra.Command {
	var (
		req   release.UpdatePathRequest
		paths []string
	)
	cmd := &cobra.Command{
		Use:   "update-path",
		Short: "Serve the build stored under a bucket path",
		Long: `Point the distribution's origin at the build stored under --path.

The path may be a key (site/v42/Example-Site), an origin path
(/site/v42/Example-Site) or a full s3:// URI of the build or its descriptor.
The path must contain a build descriptor.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{needsCatalog: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			req.InvalidatePaths = paths
			res, err := a.orch.UpdatePath(ctx, req)
			return a.finish(format, res, err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Path, "path", "", "Bucket path of the build to serve")
	f.BoolVar(&req.DryRun, "dry-run", false, "Check the update without applying it")
	f.StringSliceVar(&paths, "invalidate", nil, "Paths to invalidate after the update, e.g. '/*'")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

// finish prints res, which may be set alongside err when the update was
// committed but a follow-up step failed.
func (a *app) finish(format outputFormat, res *release.Result, err error) error {
	if res == nil {
		return err
	}
	if format != outputTable {
		if perr := printStructured(a.out, format, res); perr != nil {
			return perr
		}
		return err
	}
	if perr := printResult(a.out, res); perr != nil {
		return perr
	}
	return err
}

func printResult(w io.Writer, res *release.Result) error {
	upd := res.Update
	if res.Outcome == release.OutcomeDryRun {
		fmt.Fprintf(w, "Dry run: distribution %s would serve %s (currently %s). No changes were made.\n\n",
			res.DistributionID, upd.NewPath, orDash(upd.PreviousPath))
	} else {
		fmt.Fprintf(w, "Distribution %s now serves %s (was %s).\n\n",
			res.DistributionID, upd.NewPath, orDash(upd.PreviousPath))
	}

	fields := [][2]string{{"Outcome", string(res.Outcome)}}
	if b := res.Build; b != nil {
		fields = append(fields,
			[2]string{"Version", b.Version},
			[2]string{"Build", b.ID},
			[2]string{"Commit", orDash(b.CommitHash)},
			[2]string{"Store URI", b.StoreURI},
		)
	}
	if upd.IfMatch != "" {
		fields = append(fields, [2]string{"Conditioned on", upd.IfMatch})
	}
	if upd.VersionToken != "" {
		fields = append(fields, [2]string{"Version token", upd.VersionToken})
	}
	if inv := res.Invalidation; inv != nil {
		fields = append(fields, [2]string{"Invalidation", fmt.Sprintf("%s (%s)", inv.ID, orDash(inv.Status))})
	}
	if len(res.Stamped) > 0 {
		keys := make([]string, 0, len(res.Stamped))
		for k := range res.Stamped {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, [2]string{"Stamped " + k, res.Stamped[k]})
		}
	}
	return printFields(w, fields)
}
