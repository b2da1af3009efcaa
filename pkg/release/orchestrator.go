// Package release points a distribution at a build from the catalog.
//
// A release resolves a build, reads the distribution config fresh, validates
// that it has an origin, and then either stops (dry run) or writes the new
// origin path conditioned on the version token of that read. Cache
// invalidation and metadata stamping optionally follow a committed write.
// Every mutating command ends with a journal entry when a journal is
// configured.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/siteops/cdnctl/pkg/build"
	"github.com/siteops/cdnctl/pkg/catalog"
	"github.com/siteops/cdnctl/pkg/cdn"
	"github.com/siteops/cdnctl/pkg/journal"
)

// Metadata keys written by StampMetadata.
const (
	MetaGitHash     = "git-hash"
	MetaReleaseDate = "release-date"
)

// journalTimeout bounds a journal write once the command context is done.
const journalTimeout = 10 * time.Second

// Outcome is how a mutating command ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDryRun    Outcome = "dry-run"
)

// BuildCatalog is the part of *catalog.Catalog the orchestrator uses.
type BuildCatalog interface {
	Layout() build.Layout
	VersionRequest(version string) catalog.ListRequest
	DescriptorPredicate() catalog.Predicate
	Find(ctx context.Context, pred catalog.Predicate, tmpl catalog.ListRequest) (*catalog.ObjectSummary, error)
	BuildFromObject(ctx context.Context, obj catalog.ObjectSummary) (build.Details, error)
	FindAllBuildsAsEntries(ctx context.Context, sink func(*catalog.Entry)) ([]catalog.Entry, error)
	PatchMetadata(ctx context.Context, key string, meta map[string]string) error
}

// PathResolver is the part of *catalog.PathResolver the orchestrator uses.
type PathResolver interface {
	Resolve(userPath string) string
	Validate(ctx context.Context, key string) error
}

// Distributions is the part of *cdn.Gateway the orchestrator uses.
type Distributions interface {
	GetConfig(ctx context.Context, id string) (*cdn.Snapshot, error)
	UpdateOriginPath(ctx context.Context, id, newPath string, dryRun bool) (*cdn.UpdateResult, error)
	Invalidate(ctx context.Context, id string, paths []string, callerRef string) (*cdn.Invalidation, error)
}

// Recorder stores journal entries. *journal.Store implements it.
type Recorder interface {
	Record(ctx context.Context, entry *journal.Release) error
}

// Options configures an Orchestrator. Zero values are usable.
type Options struct {
	// DefaultDistributionID is used when a request names no distribution.
	DefaultDistributionID string
	// Journal receives an entry per mutating command. Nil disables it.
	Journal Recorder
	// RequestedBy is stored on journal entries.
	RequestedBy string
	HTTPClient  *http.Client
	Logger      *slog.Logger
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs release commands.
type Orchestrator struct {
	catalog   BuildCatalog
	resolver  PathResolver
	dists     Distributions
	journal   Recorder
	defaultID string
	user      string
	http      *http.Client
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New creates an Orchestrator.
func New(cat BuildCatalog, resolver PathResolver, dists Distributions, opts Options) *Orchestrator {
	o := &Orchestrator{
		catalog:   cat,
		resolver:  resolver,
		dists:     dists,
		journal:   opts.Journal,
		defaultID: strings.TrimSpace(opts.DefaultDistributionID),
		user:      opts.RequestedBy,
		http:      opts.HTTPClient,
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o
}

// ReleaseRequest selects a build by version.
type ReleaseRequest struct {
	DistributionID  string
	Version         string
	DryRun          bool
	InvalidatePaths []string
	// StampMetadata records the commit hash and release date on the
	// released descriptor object after a committed update.
	StampMetadata bool
}

// UpdatePathRequest selects a build by path.
type UpdatePathRequest struct {
	DistributionID  string
	Path            string
	DryRun          bool
	InvalidatePaths []string
}

// InvalidateRequest invalidates cached paths without changing the origin.
type InvalidateRequest struct {
	DistributionID string
	Paths          []string
}

// Result describes a release or path update.
type Result struct {
	DistributionID string            `json:"distributionId" yaml:"distributionId"`
	Operation      journal.Operation `json:"operation" yaml:"operation"`
	Key            string            `json:"key" yaml:"key"`
	Build          *build.Details    `json:"build,omitempty" yaml:"build,omitempty"`
	Update         *cdn.UpdateResult `json:"update" yaml:"update"`
	Invalidation   *cdn.Invalidation `json:"invalidation,omitempty" yaml:"invalidation,omitempty"`
	Stamped        map[string]string `json:"stamped,omitempty" yaml:"stamped,omitempty"`
	Outcome        Outcome           `json:"outcome" yaml:"outcome"`
}

// DistributionID returns requested, or the configured default when requested
// is empty.
func (o *Orchestrator) DistributionID(requested string) (string, error) {
	if id := strings.TrimSpace(requested); id != "" {
		return id, nil
	}
	if o.defaultID != "" {
		return o.defaultID, nil
	}
	return "", ErrNoDistribution
}

// Release points the distribution at the build with req.Version.
func (o *Orchestrator) Release(ctx context.Context, req ReleaseRequest) (*Result, error) {
	distID, err := o.DistributionID(req.DistributionID)
	if err != nil {
		return nil, err
	}
	entry := &journal.Release{DistributionID: distID, Operation: journal.OperationRelease, Version: req.Version}

	details, obj, err := o.findVersion(ctx, req.Version)
	if err != nil {
		return nil, o.fail(ctx, entry, err)
	}

	var stamp func(*Result) error
	if req.StampMetadata {
		stamp = func(res *Result) error {
			meta := map[string]string{
				MetaGitHash:     details.CommitHash,
				MetaReleaseDate: o.now().UTC().Format(time.RFC3339),
			}
			if err := o.catalog.PatchMetadata(ctx, obj.Key, meta); err != nil {
				return fmt.Errorf("release: %s committed but stamping metadata failed: %w", details.Version, err)
			}
			res.Stamped = meta
			return nil
		}
	}

	res, err := o.apply(ctx, entry, details.KeyPath, req.DryRun, req.InvalidatePaths, stamp)
	if res != nil {
		res.Build = &details
	}
	return res, err
}

// UpdatePath points the distribution at the build stored under req.Path. The
// path is resolved and checked for a build before the distribution is read.
func (o *Orchestrator) UpdatePath(ctx context.Context, req UpdatePathRequest) (*Result, error) {
	distID, err := o.DistributionID(req.DistributionID)
	if err != nil {
		return nil, err
	}
	key := o.resolver.Resolve(req.Path)
	entry := &journal.Release{DistributionID: distID, Operation: journal.OperationUpdatePath}

	if err := o.resolver.Validate(ctx, key); err != nil {
		entry.NewPath = "/" + key
		return nil, o.fail(ctx, entry, err)
	}
	return o.apply(ctx, entry, key, req.DryRun, req.InvalidatePaths, nil)
}

// Invalidate requests invalidation of req.Paths.
func (o *Orchestrator) Invalidate(ctx context.Context, req InvalidateRequest) (*cdn.Invalidation, error) {
	distID, err := o.DistributionID(req.DistributionID)
	if err != nil {
		return nil, err
	}
	entry := &journal.Release{DistributionID: distID, Operation: journal.OperationInvalidate}

	inv, err := o.dists.Invalidate(ctx, distID, req.Paths, o.CallerReference())
	if err != nil {
		return nil, o.fail(ctx, entry, err)
	}
	entry.InvalidationID = inv.ID
	entry.NewPath = strings.Join(inv.Paths, ",")
	entry.Outcome = journal.OutcomeCommitted
	o.record(ctx, entry)
	return inv, nil
}

// Config returns the current config of the distribution.
func (o *Orchestrator) Config(ctx context.Context, distributionID string) (*cdn.Snapshot, error) {
	distID, err := o.DistributionID(distributionID)
	if err != nil {
		return nil, err
	}
	return o.dists.GetConfig(ctx, distID)
}

// Builds lists every build, oldest first, marking the one the distribution
// currently serves.
func (o *Orchestrator) Builds(ctx context.Context, distributionID string) ([]catalog.Entry, error) {
	snap, err := o.Config(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	deployed := snap.DeployedKey()
	return o.catalog.FindAllBuildsAsEntries(ctx, func(e *catalog.Entry) {
		e.Live = catalog.IsLive(e.Build, deployed)
	})
}

// LiveBuild returns the build whose descriptor the CDN currently serves.
func (o *Orchestrator) LiveBuild(ctx context.Context) (*build.Details, error) {
	layout := o.catalog.Layout()
	if layout.CDNURL == "" {
		return nil, fmt.Errorf("release: no CDN URL configured")
	}
	u, err := url.JoinPath(layout.CDNURL, layout.DescriptorFile)
	if err != nil {
		return nil, fmt.Errorf("release: invalid CDN URL %q: %w", layout.CDNURL, err)
	}

	text, err := cdn.FetchLiveDescriptor(ctx, o.http, u)
	if err != nil {
		return nil, err
	}
	rec, err := build.ParseDescriptor(text)
	if err != nil {
		return nil, fmt.Errorf("release: %s: %w", u, err)
	}
	details, err := build.NewDetails(rec, build.Source{}, layout)
	if err != nil {
		return nil, fmt.Errorf("release: %s: %w", u, err)
	}
	return &details, nil
}

// CallerReference returns a new invalidation caller reference: the current
// UTC time followed by a random suffix.
func (o *Orchestrator) CallerReference() string {
	return fmt.Sprintf("cdnctl-%s-%s", o.now().UTC().Format("20060102T150405Z"), o.newID())
}

func (o *Orchestrator) findVersion(ctx context.Context, version string) (build.Details, catalog.ObjectSummary, error) {
	version = strings.TrimSpace(version)
	if version == "" || strings.Contains(version, "/") {
		return build.Details{}, catalog.ObjectSummary{}, fmt.Errorf("%w: %q", ErrInvalidBuildVersion, version)
	}

	obj, err := o.catalog.Find(ctx, o.catalog.DescriptorPredicate(), o.catalog.VersionRequest(version))
	if err != nil {
		return build.Details{}, catalog.ObjectSummary{}, err
	}
	if obj == nil {
		return build.Details{}, catalog.ObjectSummary{}, fmt.Errorf("%w: no build found for version %q", ErrInvalidBuildVersion, version)
	}

	details, err := o.catalog.BuildFromObject(ctx, *obj)
	if err != nil {
		return build.Details{}, catalog.ObjectSummary{}, err
	}
	o.logger.Info("resolved build version", "version", version, "key", details.KeyPath, "buildId", details.ID)
	return details, *obj, nil
}

// apply updates the origin path to "/"+key and runs the optional
// invalidation, then after when it is set. Neither runs on a dry run. entry is
// completed and recorded once, with the error of any step that failed after
// the commit.
func (o *Orchestrator) apply(ctx context.Context, entry *journal.Release, key string, dryRun bool, invalidate []string, after func(*Result) error) (*Result, error) {
	newPath := "/" + key
	entry.NewPath = newPath

	upd, err := o.dists.UpdateOriginPath(ctx, entry.DistributionID, newPath, dryRun)
	if err != nil {
		var empty *cdn.EmptyOriginError
		if errors.As(err, &empty) {
			err = fmt.Errorf("%w: %w", ErrInvalidDistributionConfig, err)
		}
		return nil, o.fail(ctx, entry, err)
	}

	res := &Result{
		DistributionID: entry.DistributionID,
		Operation:      entry.Operation,
		Key:            key,
		Update:         upd,
		Outcome:        OutcomeCommitted,
	}
	entry.PreviousPath = upd.PreviousPath
	entry.VersionToken = upd.VersionToken

	if dryRun {
		res.Outcome = OutcomeDryRun
		entry.Outcome = journal.OutcomeDryRun
		o.record(ctx, entry)
		return res, nil
	}
	entry.Outcome = journal.OutcomeCommitted

	if len(invalidate) > 0 {
		inv, err := o.dists.Invalidate(ctx, entry.DistributionID, invalidate, o.CallerReference())
		if err != nil {
			err = fmt.Errorf("release: origin updated to %s but invalidation failed: %w", newPath, err)
			entry.Error = err.Error()
			o.record(ctx, entry)
			return res, err
		}
		res.Invalidation = inv
		entry.InvalidationID = inv.ID
	}

	if after != nil {
		if err := after(res); err != nil {
			entry.Error = err.Error()
			o.record(ctx, entry)
			return res, err
		}
	}

	o.record(ctx, entry)
	return res, nil
}

func (o *Orchestrator) fail(ctx context.Context, entry *journal.Release, err error) error {
	entry.Outcome = journal.OutcomeFailed
	entry.Error = err.Error()
	o.record(ctx, entry)
	return err
}

// record writes entry even when ctx is already cancelled, so interrupted
// commands still leave a journal entry.
func (o *Orchestrator) record(ctx context.Context, entry *journal.Release) {
	if o.journal == nil {
		return
	}
	entry.RequestedBy = o.user
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := o.journal.Record(ctx, entry); err != nil {
		o.logger.Warn("failed to record journal entry",
			"operation", entry.Operation,
			"distributionId", entry.DistributionID,
			"outcome", entry.Outcome,
			"error", err,
		)
	}
}
