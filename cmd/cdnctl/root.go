package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/service/cloudfront/cloudfrontiface"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/siteops/cdnctl/pkg/awsclient"
	"github.com/siteops/cdnctl/pkg/catalog"
	"github.com/siteops/cdnctl/pkg/cdn"
	"github.com/siteops/cdnctl/pkg/config"
	"github.com/siteops/cdnctl/pkg/journal"
	"github.com/siteops/cdnctl/pkg/logging"
	"github.com/siteops/cdnctl/pkg/release"
)

// needsCatalog marks commands that read builds from the bucket.
const needsCatalog = "cdnctl/catalog"

// app carries the state shared by every command. Clients that are already
// set when a command runs are used as-is; tests preset them with fakes.
type app struct {
	out    io.Writer
	errOut io.Writer

	v          *viper.Viper
	configFile string
	outputFlag string

	settings *config.Settings
	logger   *slog.Logger

	s3         s3iface.S3API
	cloudfront cloudfrontiface.CloudFrontAPI
	httpClient *http.Client
	store      *journal.Store
	ownsStore  bool

	orch *release.Orchestrator
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, v: config.NewViper()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cdnctl",
		Short: "Manage which site build a CloudFront distribution serves",
		Long: `cdnctl points a CloudFront distribution at one of the immutable site builds
stored in an S3 bucket.

Builds live under <site-root>/<version>/<project>/ and carry a small YAML
descriptor (build.yml by default). Updates to the distribution are conditional
on the config version that was read, so a concurrent change makes the command
fail instead of overwriting it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetGlobalNormalizationFunc(normalizeFlagName)

	d := config.Default()
	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default $HOME/"+config.DefaultFileName+")")
	pf.StringVarP(&a.outputFlag, "output", "o", "table", "Output format: table, json, yaml")
	pf.String("dist", "", "CloudFront distribution id (default from config or "+config.LegacyDistributionEnv+")")
	pf.String("bucket", "", "Bucket holding the builds, e.g. s3://my-site-builds")
	pf.String("cdn-url", "", "Public base URL of the distribution")
	pf.String("descriptor-file", d.DescriptorFile, "Name of the build descriptor file")
	pf.String("project-name", "", "Project directory name inside each build version")
	pf.String("site-root", d.SiteRoot, "Key prefix under which builds are stored")
	pf.String("region", d.Region, "AWS region")
	pf.String("log-level", d.LogLevel, "Log level: debug, info, error")
	pf.String("log-format", d.LogFormat, "Log format: console, json")
	pf.Bool("aws-debug", false, "Log AWS requests through glog")
	pf.Duration("timeout", d.Timeout, "Timeout for the whole command")
	pf.String("journal-driver", d.Journal.Driver, "Journal database driver: sqlite, mysql, postgres")
	pf.String("journal-dsn", "", "Journal database DSN (journal disabled when empty)")
	if err := config.BindFlags(a.v, pf); err != nil {
		panic(err)
	}

	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newReleaseCmd(a))
	root.AddCommand(newUpdatePathCmd(a))
	root.AddCommand(newInvalidatePathCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newLiveCmd(a))
	root.AddCommand(newHistoryCmd(a))
	return root
}

// normalizeFlagName accepts camel-case spellings such as --dryRun.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "dryRun":
		name = "dry-run"
	case "distId", "distID", "distribution-id":
		name = "dist"
	}
	return pflag.NormalizedName(name)
}

// setup assembles settings and clients. It runs before every command.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.ReadFile(a.v, a.configFile); err != nil {
		return err
	}
	settings, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if cmd.Annotations[needsCatalog] == "true" {
		if err := settings.ValidateCatalog(); err != nil {
			return err
		}
	}
	a.settings = settings

	if a.logger == nil {
		logger, err := logging.New(logging.Options{Level: settings.LogLevel, Format: settings.LogFormat, Output: a.errOut})
		if err != nil {
			return err
		}
		a.logger = logger
		slog.SetDefault(logger)
	}
	a.logger.Debug("loaded settings",
		"configFile", settings.ConfigFile,
		"distributionId", settings.DistributionID,
		"bucket", settings.Bucket,
		"region", settings.Region,
		"journal", settings.Journal.Enabled(),
	)

	if a.s3 == nil || a.cloudfront == nil {
		clientCfg := awsclient.DefaultConfig()
		clientCfg.Region = settings.Region
		clientCfg.Debug = settings.AWSDebug
		clients, err := awsclient.New(clientCfg)
		if err != nil {
			return err
		}
		if a.s3 == nil {
			a.s3 = clients.S3
		}
		if a.cloudfront == nil {
			a.cloudfront = clients.CloudFront
		}
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if a.store == nil && settings.Journal.Enabled() {
		db, err := journal.Open(settings.Journal)
		if err != nil {
			return err
		}
		store := journal.NewStore(db)
		if err := store.AutoMigrate(); err != nil {
			return fmt.Errorf("journal: migrate: %w", err)
		}
		a.store = store
		a.ownsStore = true
	}

	cat := catalog.New(a.s3, settings.BucketInfo(), settings.Layout(), a.logger)
	opts := release.Options{
		DefaultDistributionID: settings.DistributionID,
		RequestedBy:           currentUser(),
		HTTPClient:            a.httpClient,
		Logger:                a.logger,
	}
	if a.store != nil {
		opts.Journal = a.store
	}
	a.orch = release.New(cat, catalog.NewPathResolver(cat), cdn.NewGateway(a.cloudfront, a.logger), opts)
	return nil
}

// close releases a journal opened by setup. Cobra skips post-run hooks when a
// command fails, so callers invoke it after Execute.
func (a *app) close() error {
	if a.store == nil || !a.ownsStore {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// commandContext bounds a command by the configured timeout and SIGINT.
func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, a.settings.Timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func (a *app) format() (outputFormat, error) {
	return parseOutputFormat(a.outputFlag)
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(os.Getenv("USER"))
}
