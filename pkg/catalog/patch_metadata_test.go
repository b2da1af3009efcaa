package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newS3Server serves HEAD with an already stamped descriptor and records
// the headers of the copy request.
func newS3Server(t *testing.T) (*httptest.Server, func() http.Header) {
	t.Helper()
	var (
		mu     sync.Mutex
		copied http.Header
	)
	r := chi.NewRouter()
	r.Head("/example-bucket/*", func(w http.ResponseWriter, _ *http.Request) {
		h := w.Header()
		h.Set("Content-Type", "application/x-yaml")
		h.Set("Cache-Control", "max-age=60")
		h.Set("Content-Encoding", "identity")
		h.Set("Content-Disposition", "inline")
		h.Set("Content-Language", "en")
		h.Set("Expires", "Wed, 15 May 2024 12:00:00 GMT")
		h.Set("X-Amz-Meta-Git-Hash", "OLDHASH")
		h.Set("X-Amz-Meta-Owner", "web")
		w.WriteHeader(http.StatusOK)
	})
	r.Put("/example-bucket/*", func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		copied = req.Header.Clone()
		mu.Unlock()
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<CopyObjectResult><ETag>"abc"</ETag><LastModified>2024-05-01T12:00:00.000Z</LastModified></CopyObjectResult>`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, func() http.Header {
		mu.Lock()
		defer mu.Unlock()
		return copied
	}
}

func newS3Client(t *testing.T, endpoint string) *s3.S3 {
	t.Helper()
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Endpoint:         aws.String(endpoint),
		S3ForcePathStyle: aws.Bool(true),
		DisableSSL:       aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials("AKID", "SECRET", ""),
		MaxRetries:       aws.Int(0),
	})
	require.NoError(t, err)
	return s3.New(sess)
}

func TestPatchMetadata_RestampKeepsObjectHeaders(t *testing.T) {
	srv, copied := newS3Server(t)
	c := New(newS3Client(t, srv.URL), ParseBucket("s3://example-bucket"), testLayout, nil)

	key := "site/v1/Example Site/build.yml"
	err := c.PatchMetadata(context.Background(), key, map[string]string{"git-hash": "NEWHASH"})
	require.NoError(t, err)

	h := copied()
	require.NotNil(t, h, "copy request was not sent")
	assert.Equal(t, []string{"NEWHASH"}, h.Values("X-Amz-Meta-Git-Hash"))
	assert.Equal(t, []string{"web"}, h.Values("X-Amz-Meta-Owner"))
	assert.Equal(t, "REPLACE", h.Get("X-Amz-Metadata-Directive"))
	assert.Equal(t, "example-bucket/site/v1/Example%20Site/build.yml", h.Get("X-Amz-Copy-Source"))

	assert.Equal(t, "application/x-yaml", h.Get("Content-Type"))
	assert.Equal(t, "max-age=60", h.Get("Cache-Control"))
	assert.Equal(t, "identity", h.Get("Content-Encoding"))
	assert.Equal(t, "inline", h.Get("Content-Disposition"))
	assert.Equal(t, "en", h.Get("Content-Language"))
	assert.Equal(t, "Wed, 15 May 2024 12:00:00 GMT", h.Get("Expires"))
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "b/site/v1/p/build.yml", copySource("b", "site/v1/p/build.yml"))
	assert.Equal(t, "b/site/v%231/p%3Fq/build.yml", copySource("b", "site/v#1/p?q/build.yml"))
}
