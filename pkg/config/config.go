// Package config assembles cdnctl settings from flags, environment, an
// optional YAML file and defaults, in that order of precedence.
//
// Environment variables use the CDNCTL_ prefix with dashes and dots mapped to
// underscores, e.g. CDNCTL_JOURNAL_DSN. AWS_CLOUDFRONT_DIST_ID is accepted as
// a fallback for the default distribution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/siteops/cdnctl/pkg/build"
	"github.com/siteops/cdnctl/pkg/catalog"
	"github.com/siteops/cdnctl/pkg/journal"
)

// Setting keys.
const (
	KeyDistributionID = "distribution-id"
	KeyBucket         = "bucket"
	KeyCDNURL         = "cdn-url"
	KeyDescriptorFile = "descriptor-file"
	KeyProjectName    = "project-name"
	KeySiteRoot       = "site-root"
	KeyRegion         = "region"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyAWSDebug       = "aws-debug"
	KeyTimeout        = "timeout"
	KeyJournalDriver  = "journal.driver"
	KeyJournalDSN     = "journal.dsn"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "CDNCTL"

// LegacyDistributionEnv names the distribution when CDNCTL_DISTRIBUTION_ID is
// unset.
const LegacyDistributionEnv = "AWS_CLOUDFRONT_DIST_ID"

// DefaultFileName is looked up in the home directory when no config file is
// given.
const DefaultFileName = ".cdnctl.yaml"

// FlagKeys maps command-line flag names to setting keys.
var FlagKeys = map[string]string{
	"dist":            KeyDistributionID,
	"bucket":          KeyBucket,
	"cdn-url":         KeyCDNURL,
	"descriptor-file": KeyDescriptorFile,
	"project-name":    KeyProjectName,
	"site-root":       KeySiteRoot,
	"region":          KeyRegion,
	"log-level":       KeyLogLevel,
	"log-format":      KeyLogFormat,
	"aws-debug":       KeyAWSDebug,
	"timeout":         KeyTimeout,
	"journal-driver":  KeyJournalDriver,
	"journal-dsn":     KeyJournalDSN,
}

// Settings is the assembled configuration.
type Settings struct {
	DistributionID string         `json:"distributionId" yaml:"distributionId"`
	Bucket         string         `json:"bucket" yaml:"bucket"`
	CDNURL         string         `json:"cdnUrl" yaml:"cdnUrl"`
	DescriptorFile string         `json:"descriptorFile" yaml:"descriptorFile"`
	ProjectName    string         `json:"projectName" yaml:"projectName"`
	SiteRoot       string         `json:"siteRoot" yaml:"siteRoot"`
	Region         string         `json:"region" yaml:"region"`
	LogLevel       string         `json:"logLevel" yaml:"logLevel"`
	LogFormat      string         `json:"logFormat" yaml:"logFormat"`
	AWSDebug       bool           `json:"awsDebug" yaml:"awsDebug"`
	Timeout        time.Duration  `json:"timeout" yaml:"timeout"`
	Journal        journal.Config `json:"journal" yaml:"journal"`
	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `json:"configFile,omitempty" yaml:"configFile,omitempty"`
}

// Default returns the default settings.
func Default() *Settings {
	return &Settings{
		DescriptorFile: "build.yml",
		SiteRoot:       "site",
		Region:         "us-east-1",
		LogLevel:       "info",
		LogFormat:      "console",
		Timeout:        2 * time.Minute,
		Journal:        journal.DefaultConfig(),
	}
}

// NewViper returns a viper instance with defaults and environment bindings
// registered.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyDistributionID, d.DistributionID)
	v.SetDefault(KeyBucket, d.Bucket)
	v.SetDefault(KeyCDNURL, d.CDNURL)
	v.SetDefault(KeyDescriptorFile, d.DescriptorFile)
	v.SetDefault(KeyProjectName, d.ProjectName)
	v.SetDefault(KeySiteRoot, d.SiteRoot)
	v.SetDefault(KeyRegion, d.Region)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyAWSDebug, d.AWSDebug)
	v.SetDefault(KeyTimeout, d.Timeout.String())
	v.SetDefault(KeyJournalDriver, d.Journal.Driver)
	v.SetDefault(KeyJournalDSN, d.Journal.DSN)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// Explicit names disable the prefix for this key, so both are listed.
	_ = v.BindEnv(KeyDistributionID, EnvPrefix+"_DISTRIBUTION_ID", LegacyDistributionEnv)
	return v
}

// BindFlags binds every flag in fs that has an entry in FlagKeys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// ReadFile reads path into v. With an empty path, $HOME/.cdnctl.yaml is read
// when it exists.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.SetConfigType("yaml")
	v.SetConfigFile(filepath.Join(home, DefaultFileName))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
	}
	return nil
}

// Load assembles Settings from v. It does not validate; call Validate once
// the settings are complete.
func Load(v *viper.Viper) (*Settings, error) {
	timeout, err := durationValue(v, KeyTimeout)
	if err != nil {
		return nil, err
	}
	return &Settings{
		DistributionID: strings.TrimSpace(v.GetString(KeyDistributionID)),
		Bucket:         strings.TrimSpace(v.GetString(KeyBucket)),
		CDNURL:         strings.TrimSpace(v.GetString(KeyCDNURL)),
		DescriptorFile: strings.TrimSpace(v.GetString(KeyDescriptorFile)),
		ProjectName:    strings.TrimSpace(v.GetString(KeyProjectName)),
		SiteRoot:       strings.Trim(strings.TrimSpace(v.GetString(KeySiteRoot)), "/"),
		Region:         strings.TrimSpace(v.GetString(KeyRegion)),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		AWSDebug:       v.GetBool(KeyAWSDebug),
		Timeout:        timeout,
		Journal: journal.Config{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString(KeyJournalDriver))),
			DSN:    strings.TrimSpace(v.GetString(KeyJournalDSN)),
		},
		ConfigFile: v.ConfigFileUsed(),
	}, nil
}

// durationValue accepts Go durations ("90s") and bare seconds ("90").
func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, &catalog.ValidationError{Field: key, Code: key + ".invalid", Value: raw, Message: "not a duration"}
}

// Validate checks the settings every command needs.
func (s *Settings) Validate() error {
	switch s.LogLevel {
	case "debug", "info", "error":
	default:
		return &catalog.ValidationError{Field: KeyLogLevel, Code: KeyLogLevel + ".invalid", Value: s.LogLevel,
			Message: "must be debug, info or error"}
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		return &catalog.ValidationError{Field: KeyLogFormat, Code: KeyLogFormat + ".invalid", Value: s.LogFormat,
			Message: "must be console or json"}
	}
	if s.Region == "" {
		return &catalog.ValidationError{Field: KeyRegion, Code: KeyRegion + ".empty", Message: "region is required"}
	}
	if s.Timeout <= 0 {
		return &catalog.ValidationError{Field: KeyTimeout, Code: KeyTimeout + ".invalid", Value: s.Timeout.String(),
			Message: "must be positive"}
	}
	if err := s.Journal.Validate(); err != nil {
		return &catalog.ValidationError{Field: KeyJournalDriver, Code: KeyJournalDriver + ".invalid", Value: s.Journal.Driver,
			Message: "unsupported driver", Err: err}
	}
	return nil
}

// ValidateCatalog checks the settings needed to read builds from the bucket.
func (s *Settings) ValidateCatalog() error {
	if err := s.BucketInfo().Validate(); err != nil {
		return fmt.Errorf("config: %s: %w", KeyBucket, err)
	}
	if s.SiteRoot == "" {
		return &catalog.ValidationError{Field: KeySiteRoot, Code: KeySiteRoot + ".empty", Message: "site root is required"}
	}
	if s.DescriptorFile == "" || strings.Contains(s.DescriptorFile, "/") {
		return &catalog.ValidationError{Field: KeyDescriptorFile, Code: KeyDescriptorFile + ".invalid", Value: s.DescriptorFile,
			Message: "must be a plain file name"}
	}
	return nil
}

// BucketInfo parses the configured bucket URI.
func (s *Settings) BucketInfo() catalog.Bucket {
	return catalog.ParseBucket(s.Bucket)
}

// Layout returns the build layout described by the settings.
func (s *Settings) Layout() build.Layout {
	return build.Layout{
		SiteRoot:       s.SiteRoot,
		ProjectName:    s.ProjectName,
		DescriptorFile: s.DescriptorFile,
		BucketName:     s.BucketInfo().Name,
		CDNURL:         s.CDNURL,
	}
}
