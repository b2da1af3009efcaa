package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucket(t *testing.T) {
	b := ParseBucket(" s3://Example-Bucket/ ")
	assert.Equal(t, "s3://Example-Bucket", b.URI)
	assert.Equal(t, "example-bucket", b.Name)
	assert.Equal(t, "s3://example-bucket/site/v1", b.ObjectURI("/site/v1"))
	assert.Equal(t, Bucket{}, ParseBucket("   "))
}

func TestBucketValidate(t *testing.T) {
	tests := []struct {
		name     string
		bucket   Bucket
		wantCode string
	}{
		{name: "valid", bucket: ParseBucket("s3://example-bucket")},
		{name: "empty", bucket: ParseBucket(""), wantCode: "uri.empty"},
		{name: "scheme only", bucket: Bucket{URI: "s3://", Name: ""}, wantCode: "name.empty"},
		{name: "wrong scheme", bucket: ParseBucket("gs://example-bucket"), wantCode: "uri.scheme"},
		{name: "no scheme", bucket: ParseBucket("example-bucket"), wantCode: "uri.scheme"},
		{name: "nested path", bucket: ParseBucket("s3://example-bucket/site"), wantCode: "name.invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bucket.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantCode, verr.Code)
		})
	}
}

func TestPathResolver_Resolve(t *testing.T) {
	r := NewPathResolver(newTestCatalog(newFakeS3()))

	tests := []struct {
		in   string
		want string
	}{
		{"site/v1/Example-Site", "site/v1/Example-Site"},
		{"/site/v1/Example-Site", "site/v1/Example-Site"},
		{"/site/v1/Example-Site/", "site/v1/Example-Site"},
		{"site/v1/Example-Site/build.yml", "site/v1/Example-Site"},
		{"/site/v1/Example-Site/build.yml", "site/v1/Example-Site"},
		{"s3://example-bucket/site/v1/Example-Site", "site/v1/Example-Site"},
		{"S3://Example-Bucket/site/v1/Example-Site/", "site/v1/Example-Site"},
		{"s3://example-bucket/site/v1/Example-Site/build.yml", "site/v1/Example-Site"},
		{"s3://other-bucket/site/v1", "s3://other-bucket/site/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := r.Resolve(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, r.Resolve(got), "resolving twice is a no-op")
		})
	}
}

func TestPathResolver_Validate(t *testing.T) {
	s3c := newFakeS3()
	s3c.put("site/v1/Example-Site/build.yml", descriptor("v1", 1), time.Now())
	r := NewPathResolver(newTestCatalog(s3c))
	ctx := context.Background()

	require.NoError(t, r.Validate(ctx, "site/v1/Example-Site"))

	err := r.Validate(ctx, "site/v2/Example-Site")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "path", verr.Field)
	assert.Equal(t, "path.not-found", verr.Code)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Contains(t, err.Error(), "s3://example-bucket/site/v2/Example-Site/build.yml")

	err = r.Validate(ctx, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "path.empty", verr.Code)
}
