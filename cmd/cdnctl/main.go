package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/siteops/cdnctl/pkg/cdn"
	"github.com/siteops/cdnctl/pkg/release"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// glog writes AWS debug output; keep it on stderr rather than in files.
	_ = flag.Set("logtostderr", "true")

	a := newApp(os.Stdout, os.Stderr)
	root := newRootCmd(a)
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	err := root.Execute()
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	glog.Flush()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var empty *cdn.EmptyOriginError
	switch {
	case errors.As(err, &empty) && empty.Config != nil:
		fmt.Fprintln(w, "Invalid CloudFront distribution config returned:")
		_ = printJSON(w, empty.Config)
	case errors.Is(err, cdn.ErrVersionConflict):
		fmt.Fprintln(w, "The distribution changed since it was read. Re-run the command to apply the change to the current config.")
	case errors.Is(err, release.ErrNoDistribution):
		fmt.Fprintln(w, "Pass --dist, set distribution-id in the config file, or export CDNCTL_DISTRIBUTION_ID.")
	}
}
