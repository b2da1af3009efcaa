package release

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/siteops/cdnctl/pkg/build"
	"github.com/siteops/cdnctl/pkg/catalog"
	"github.com/siteops/cdnctl/pkg/cdn"
	"github.com/siteops/cdnctl/pkg/journal"
)

const testDist = "E2EXAMPLE"

var testLayout = build.Layout{
	SiteRoot:       "site",
	ProjectName:    "Example-Site",
	DescriptorFile: "build.yml",
	BucketName:     "example-bucket",
	CDNURL:         "https://cdn.example.com",
}

// fakeCatalog serves descriptor objects from memory.
type fakeCatalog struct {
	layout  build.Layout
	objects []catalog.ObjectSummary
	records map[string]string
	findErr  error
	patchErr error
	patched  map[string]map[string]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		layout:  testLayout,
		records: map[string]string{},
		patched: map[string]map[string]string{},
	}
}

func (f *fakeCatalog) addBuild(version string, modified time.Time) {
	key := fmt.Sprintf("site/%s/Example-Site/build.yml", version)
	f.objects = append(f.objects, catalog.ObjectSummary{Bucket: "example-bucket", Key: key, LastModified: modified})
	f.records[key] = fmt.Sprintf("id: Example-Site:%s\ncommit-hash: hash-%s\n", version, version)
}

func (f *fakeCatalog) Layout() build.Layout { return f.layout }

func (f *fakeCatalog) VersionRequest(version string) catalog.ListRequest {
	return catalog.ListRequest{Bucket: "example-bucket", Prefix: "site/" + version + "/"}
}

func (f *fakeCatalog) DescriptorPredicate() catalog.Predicate {
	return catalog.KeySuffix("/build.yml")
}

func (f *fakeCatalog) Find(_ context.Context, pred catalog.Predicate, tmpl catalog.ListRequest) (*catalog.ObjectSummary, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var found []catalog.ObjectSummary
	for _, o := range f.objects {
		if strings.HasPrefix(o.Key, tmpl.Prefix) && pred(o) {
			found = append(found, o)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	default:
		return nil, &catalog.NonUniqueResultError{What: tmpl.Prefix, Count: len(found)}
	}
}

func (f *fakeCatalog) BuildFromObject(_ context.Context, obj catalog.ObjectSummary) (build.Details, error) {
	rec, err := build.ParseDescriptor(f.records[obj.Key])
	if err != nil {
		return build.Details{}, err
	}
	modified := obj.LastModified
	return build.NewDetails(rec, build.Source{Key: obj.Key, LastModified: &modified}, f.layout)
}

func (f *fakeCatalog) FindAllBuildsAsEntries(ctx context.Context, sink func(*catalog.Entry)) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	for _, o := range f.objects {
		d, err := f.BuildFromObject(ctx, o)
		if err != nil {
			return nil, err
		}
		entries = append(entries, catalog.Entry{Object: o, Build: d})
	}
	for i := range entries {
		sink(&entries[i])
	}
	return entries, nil
}

func (f *fakeCatalog) PatchMetadata(_ context.Context, key string, meta map[string]string) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patched[key] = meta
	return nil
}

// fakeResolver accepts the keys it was given.
type fakeResolver struct {
	keys map[string]bool
}

func (r *fakeResolver) Resolve(p string) string {
	return strings.TrimSuffix(strings.Trim(p, "/"), "/build.yml")
}

func (r *fakeResolver) Validate(_ context.Context, key string) error {
	if !r.keys[key] {
		return &catalog.ValidationError{Field: "path", Code: "path.not-found", Value: key, Err: catalog.ErrObjectNotFound}
	}
	return nil
}

// fakeDistributions records every call made to it.
type fakeDistributions struct {
	originPath string
	noOrigins  bool
	updateErr  error
	invErr     error

	getCalls      int
	updateCalls   []string
	dryRunCalls   int
	invalidations [][]string
	callerRefs    []string
}

func (d *fakeDistributions) GetConfig(_ context.Context, id string) (*cdn.Snapshot, error) {
	d.getCalls++
	snap := &cdn.Snapshot{DistributionID: id, VersionToken: "E1"}
	if !d.noOrigins {
		snap.Origins = []cdn.Origin{{ID: "site", Path: d.originPath}}
	}
	return snap, nil
}

func (d *fakeDistributions) UpdateOriginPath(ctx context.Context, id, newPath string, dryRun bool) (*cdn.UpdateResult, error) {
	snap, _ := d.GetConfig(ctx, id)
	if d.noOrigins {
		return nil, &cdn.EmptyOriginError{DistributionID: id}
	}
	res := &cdn.UpdateResult{DistributionID: id, PreviousPath: snap.FirstOriginPath(), NewPath: newPath, DryRun: dryRun}
	if dryRun {
		d.dryRunCalls++
		return res, nil
	}
	d.updateCalls = append(d.updateCalls, newPath)
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	d.originPath = newPath
	res.IfMatch = snap.VersionToken
	res.VersionToken = "E2"
	return res, nil
}

func (d *fakeDistributions) Invalidate(_ context.Context, _ string, paths []string, callerRef string) (*cdn.Invalidation, error) {
	d.invalidations = append(d.invalidations, paths)
	d.callerRefs = append(d.callerRefs, callerRef)
	if d.invErr != nil {
		return nil, d.invErr
	}
	return &cdn.Invalidation{ID: "I1", Status: "InProgress", CallerReference: callerRef, Paths: cdn.NormalizePaths(paths)}, nil
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, entry *journal.Release) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func outcomeIs(op journal.Operation, outcome journal.Outcome) any {
	return mock.MatchedBy(func(e *journal.Release) bool {
		return e.Operation == op && e.Outcome == outcome
	})
}
