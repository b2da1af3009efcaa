package cdn

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awsutil"
	"github.com/aws/aws-sdk-go/service/cloudfront"
)

// Origin is one origin of a distribution.
type Origin struct {
	ID         string `json:"id" yaml:"id"`
	DomainName string `json:"domainName" yaml:"domainName"`
	Path       string `json:"path" yaml:"path"`
}

// Snapshot is a distribution config as read at one point in time, together
// with the version token that must accompany an update derived from it.
// Snapshots are not cached; every update starts from a fresh read.
type Snapshot struct {
	DistributionID string   `json:"distributionId" yaml:"distributionId"`
	VersionToken   string   `json:"versionToken" yaml:"versionToken"`
	Comment        string   `json:"comment,omitempty" yaml:"comment,omitempty"`
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Aliases        []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Origins        []Origin `json:"origins" yaml:"origins"`

	// Config is the raw provider config. It is never mutated; see
	// WithOriginPath.
	Config *cloudfront.DistributionConfig `json:"config" yaml:"-"`
}

func newSnapshot(id, token string, cfg *cloudfront.DistributionConfig) *Snapshot {
	s := &Snapshot{
		DistributionID: id,
		VersionToken:   token,
		Config:         cfg,
	}
	if cfg == nil {
		return s
	}
	s.Comment = aws.StringValue(cfg.Comment)
	s.Enabled = aws.BoolValue(cfg.Enabled)
	if cfg.Aliases != nil {
		s.Aliases = aws.StringValueSlice(cfg.Aliases.Items)
	}
	if cfg.Origins != nil {
		for _, o := range cfg.Origins.Items {
			if o == nil {
				continue
			}
			s.Origins = append(s.Origins, Origin{
				ID:         aws.StringValue(o.Id),
				DomainName: aws.StringValue(o.DomainName),
				Path:       aws.StringValue(o.OriginPath),
			})
		}
	}
	return s
}

// HasOrigins reports whether the distribution has at least one origin.
func (s *Snapshot) HasOrigins() bool {
	return len(s.Origins) > 0
}

// FirstOriginPath returns the path of the first origin, or "" when there are
// no origins.
func (s *Snapshot) FirstOriginPath() string {
	if !s.HasOrigins() {
		return ""
	}
	return s.Origins[0].Path
}

// DeployedKey is the store key of the build the distribution serves: the
// first origin path without its leading slash.
func (s *Snapshot) DeployedKey() string {
	return strings.TrimPrefix(s.FirstOriginPath(), "/")
}

// WithOriginPath returns a deep copy of the raw config in which only the
// first origin's path is set to path. The snapshot itself is left unchanged.
func (s *Snapshot) WithOriginPath(path string) (*cloudfront.DistributionConfig, error) {
	if !s.HasOrigins() || s.Config == nil || s.Config.Origins == nil || len(s.Config.Origins.Items) == 0 {
		return nil, &EmptyOriginError{DistributionID: s.DistributionID, Config: s.Config}
	}

	cfg := awsutil.CopyOf(s.Config).(*cloudfront.DistributionConfig)
	for _, o := range cfg.Origins.Items {
		if o != nil {
			o.OriginPath = aws.String(path)
			break
		}
	}
	return cfg, nil
}
