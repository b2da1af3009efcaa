package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/siteops/cdnctl/pkg/build"
)

// Entry pairs a descriptor object with its parsed build and whether that
// build is the one the distribution currently serves.
type Entry struct {
	Object ObjectSummary `json:"object" yaml:"object"`
	Build  build.Details `json:"build" yaml:"build"`
	Live   bool          `json:"live" yaml:"live"`
}

// SiteRequest lists everything under the site root.
func (c *Catalog) SiteRequest() ListRequest {
	return c.Request(c.layout.SiteRoot + "/")
}

// VersionRequest lists everything under a single build version.
func (c *Catalog) VersionRequest(version string) ListRequest {
	return c.Request(c.layout.SiteRoot + "/" + version + "/")
}

// DescriptorPredicate matches descriptor objects.
func (c *Catalog) DescriptorPredicate() Predicate {
	return KeySuffix("/" + c.layout.DescriptorFile)
}

// BuildFromObject reads and parses the descriptor at obj.
func (c *Catalog) BuildFromObject(ctx context.Context, obj ObjectSummary) (build.Details, error) {
	text, modified, err := c.ReadObject(ctx, obj.Key)
	if err != nil {
		return build.Details{}, err
	}
	if !obj.LastModified.IsZero() {
		ts := obj.LastModified
		modified = &ts
	}

	rec, err := build.ParseDescriptor(text)
	if err != nil {
		return build.Details{}, fmt.Errorf("catalog: %s: %w", c.bucket.ObjectURI(obj.Key), err)
	}
	details, err := build.NewDetails(rec, build.Source{Key: obj.Key, LastModified: modified}, c.layout)
	if err != nil {
		return build.Details{}, fmt.Errorf("catalog: %s: %w", c.bucket.ObjectURI(obj.Key), err)
	}
	return details, nil
}

// EntryFromObject wraps the build described by obj as a non-live Entry.
func (c *Catalog) EntryFromObject(ctx context.Context, obj ObjectSummary) (Entry, error) {
	details, err := c.BuildFromObject(ctx, obj)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Object: obj, Build: details}, nil
}

// FindAllBuilds returns the details of every build under the site root, in
// listing order.
func (c *Catalog) FindAllBuilds(ctx context.Context) ([]build.Details, error) {
	objects, err := c.FindAll(ctx, c.DescriptorPredicate(), c.SiteRequest())
	if err != nil {
		return nil, err
	}

	builds := make([]build.Details, 0, len(objects))
	for _, obj := range objects {
		details, err := c.BuildFromObject(ctx, obj)
		if err != nil {
			return nil, err
		}
		builds = append(builds, details)
	}
	return builds, nil
}

// FindAllBuildsAsEntries returns every build as an Entry, sorted oldest first
// by last-modified time. When sink is non-nil it is applied to each entry
// after sorting.
func (c *Catalog) FindAllBuildsAsEntries(ctx context.Context, sink func(*Entry)) ([]Entry, error) {
	objects, err := c.FindAll(ctx, c.DescriptorPredicate(), c.SiteRequest())
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		entry, err := c.EntryFromObject(ctx, obj)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Build.LastModifiedTime().Before(entries[j].Build.LastModifiedTime())
	})

	if sink != nil {
		for i := range entries {
			sink(&entries[i])
		}
	}
	return entries, nil
}

// IsLive reports whether details is the build at deployedKey, the
// distribution's origin path without its leading slash.
func IsLive(details build.Details, deployedKey string) bool {
	return deployedKey != "" && deployedKey == details.KeyPath
}

// PatchMetadata merges meta into the user metadata of key by copying the
// object onto itself.
func (c *Catalog) PatchMetadata(ctx context.Context, key string, meta map[string]string) error {
	head, err := c.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket.Name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("catalog: %s: %w", c.bucket.ObjectURI(key), ErrObjectNotFound)
		}
		return fmt.Errorf("catalog: failed to head %s: %w", c.bucket.ObjectURI(key), err)
	}

	// HeadObject returns canonical header keys (Git-Hash) while callers pass
	// lowercase ones; both would be sent on the copy.
	merged := make(map[string]*string, len(head.Metadata)+len(meta))
	for k, v := range head.Metadata {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range meta {
		merged[strings.ToLower(k)] = aws.String(v)
	}

	// REPLACE drops every stored header that is not sent again.
	in := &s3.CopyObjectInput{
		Bucket:             aws.String(c.bucket.Name),
		Key:                aws.String(key),
		CopySource:         aws.String(copySource(c.bucket.Name, key)),
		Metadata:           merged,
		MetadataDirective:  aws.String(s3.MetadataDirectiveReplace),
		ContentType:        head.ContentType,
		CacheControl:       head.CacheControl,
		ContentDisposition: head.ContentDisposition,
		ContentEncoding:    head.ContentEncoding,
		ContentLanguage:    head.ContentLanguage,
	}
	if head.Expires != nil {
		if expires, err := http.ParseTime(*head.Expires); err == nil {
			in.Expires = aws.Time(expires)
		} else {
			c.logger.Debug("ignoring unparsable Expires header", "uri", c.bucket.ObjectURI(key), "expires", *head.Expires)
		}
	}
	if _, err := c.client.CopyObjectWithContext(ctx, in); err != nil {
		return fmt.Errorf("catalog: failed to update metadata of %s: %w", c.bucket.ObjectURI(key), err)
	}

	c.logger.Info("updated object metadata", "uri", c.bucket.ObjectURI(key), "keys", len(meta))
	return nil
}

// copySource is the URL-encoded bucket/key pair CopyObject expects.
func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}
