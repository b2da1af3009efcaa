// Package catalog discovers site builds in an S3 bucket.
//
// Listing is driven by ListObjectsV2 continuation tokens: every page is
// filtered by a caller predicate and handed to a consumer before the next page
// is requested. Find, FindAll and the build-level helpers are built on top of
// FindAllStreaming.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/siteops/cdnctl/pkg/build"
)

// ObjectSummary is one entry of a bucket listing.
type ObjectSummary struct {
	Bucket       string    `json:"bucket" yaml:"bucket"`
	Key          string    `json:"key" yaml:"key"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
	Size         int64     `json:"size" yaml:"size"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
}

// ListRequest is the template every page request is built from. Bucket and
// Prefix are carried unchanged across pages.
type ListRequest struct {
	Bucket  string
	Prefix  string
	MaxKeys int64
}

// Predicate selects objects from a listing.
type Predicate func(ObjectSummary) bool

// KeySuffix matches objects whose key ends with suffix.
func KeySuffix(suffix string) Predicate {
	return func(o ObjectSummary) bool { return strings.HasSuffix(o.Key, suffix) }
}

// KeyPrefix matches objects whose key starts with prefix.
func KeyPrefix(prefix string) Predicate {
	return func(o ObjectSummary) bool { return strings.HasPrefix(o.Key, prefix) }
}

// All matches objects accepted by every predicate.
func All(preds ...Predicate) Predicate {
	return func(o ObjectSummary) bool {
		for _, p := range preds {
			if !p(o) {
				return false
			}
		}
		return true
	}
}

// Catalog lists and reads build descriptors from a bucket.
type Catalog struct {
	client s3iface.S3API
	bucket Bucket
	layout build.Layout
	logger *slog.Logger
}

// New creates a Catalog for bucket. layout.BucketName is taken from bucket.
func New(client s3iface.S3API, bucket Bucket, layout build.Layout, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	layout.BucketName = bucket.Name
	return &Catalog{
		client: client,
		bucket: bucket,
		layout: layout,
		logger: logger,
	}
}

// Bucket returns the bucket the catalog reads from.
func (c *Catalog) Bucket() Bucket { return c.bucket }

// Layout returns the build layout used to derive build details.
func (c *Catalog) Layout() build.Layout { return c.layout }

// Request returns a ListRequest for prefix in the catalog's bucket.
func (c *Catalog) Request(prefix string) ListRequest {
	return ListRequest{Bucket: c.bucket.Name, Prefix: prefix}
}

// FindAllStreaming lists every page of tmpl, filters each page with pred and
// passes the matches to consume before requesting the next page. consume is
// called once per page, possibly with an empty slice. Listing ends when the
// store reports the result is no longer truncated; cancellation of ctx is
// honoured between pages.
func (c *Catalog) FindAllStreaming(ctx context.Context, pred Predicate, tmpl ListRequest, consume func([]ObjectSummary) error) error {
	var token string
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("catalog: listing %s/%s cancelled before page %d: %w", tmpl.Bucket, tmpl.Prefix, page, err)
		}

		out, err := c.client.ListObjectsV2WithContext(ctx, listInput(tmpl, token))
		if err != nil {
			return fmt.Errorf("catalog: failed to list %s/%s (page %d): %w", tmpl.Bucket, tmpl.Prefix, page, err)
		}

		matched := make([]ObjectSummary, 0, len(out.Contents))
		for _, obj := range out.Contents {
			summary := toSummary(tmpl.Bucket, obj)
			if pred == nil || pred(summary) {
				matched = append(matched, summary)
			}
		}
		if err := consume(matched); err != nil {
			return err
		}

		truncated := aws.BoolValue(out.IsTruncated)
		next := aws.StringValue(out.NextContinuationToken)
		c.logger.Debug("listed page",
			"bucket", tmpl.Bucket,
			"prefix", tmpl.Prefix,
			"page", page,
			"objects", len(out.Contents),
			"matched", len(matched),
			"truncated", truncated,
			"continuationToken", next,
		)

		if !truncated {
			return nil
		}
		if next == "" {
			return fmt.Errorf("catalog: listing %s/%s truncated at page %d without a continuation token", tmpl.Bucket, tmpl.Prefix, page)
		}
		token = next
	}
}

// FindAll returns every object in tmpl accepted by pred.
func (c *Catalog) FindAll(ctx context.Context, pred Predicate, tmpl ListRequest) ([]ObjectSummary, error) {
	var results []ObjectSummary
	err := c.FindAllStreaming(ctx, pred, tmpl, func(page []ObjectSummary) error {
		results = append(results, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Find returns the single object accepted by pred, or nil if there is none.
// All pages are listed; more than one match is a *NonUniqueResultError.
func (c *Catalog) Find(ctx context.Context, pred Predicate, tmpl ListRequest) (*ObjectSummary, error) {
	results, err := c.FindAll(ctx, pred, tmpl)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return &results[0], nil
	default:
		return nil, &NonUniqueResultError{What: "ObjectSummary " + tmpl.Bucket + "/" + tmpl.Prefix, Count: len(results)}
	}
}

// ReadObject returns the content and modification time of key.
func (c *Catalog) ReadObject(ctx context.Context, key string) (string, *time.Time, error) {
	out, err := c.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket.Name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", nil, fmt.Errorf("catalog: %s: %w", c.bucket.ObjectURI(key), ErrObjectNotFound)
		}
		return "", nil, fmt.Errorf("catalog: failed to get %s: %w", c.bucket.ObjectURI(key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", nil, fmt.Errorf("catalog: failed to read %s: %w", c.bucket.ObjectURI(key), err)
	}
	return string(data), out.LastModified, nil
}

// Exists reports whether key exists in the bucket.
func (c *Catalog) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket.Name),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("catalog: failed to head %s: %w", c.bucket.ObjectURI(key), err)
}

func listInput(tmpl ListRequest, token string) *s3.ListObjectsV2Input {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(tmpl.Bucket),
	}
	if tmpl.Prefix != "" {
		in.Prefix = aws.String(tmpl.Prefix)
	}
	if tmpl.MaxKeys > 0 {
		in.MaxKeys = aws.Int64(tmpl.MaxKeys)
	}
	if token != "" {
		in.ContinuationToken = aws.String(token)
	}
	return in
}

func toSummary(bucket string, obj *s3.Object) ObjectSummary {
	return ObjectSummary{
		Bucket:       bucket,
		Key:          aws.StringValue(obj.Key),
		LastModified: aws.TimeValue(obj.LastModified),
		Size:         aws.Int64Value(obj.Size),
		ETag:         strings.Trim(aws.StringValue(obj.ETag), `"`),
	}
}

// errIsCode reports whether err is an AWS error with one of codes.
func errIsCode(err error, codes ...string) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	for _, code := range codes {
		if aerr.Code() == code {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	// HeadObject has no body, so a missing key surfaces as a bare 404 "NotFound".
	return errIsCode(err, s3.ErrCodeNoSuchKey, "NotFound")
}
