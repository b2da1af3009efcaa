package catalog

import (
	"strings"
)

// StoreScheme is the URI scheme of bucket URIs.
const StoreScheme = "s3://"

// Bucket identifies the bucket holding the site builds.
type Bucket struct {
	URI  string `json:"uri" yaml:"uri"`
	Name string `json:"name" yaml:"name"`
}

// ParseBucket derives a Bucket from a URI such as "s3://my-bucket/". It does
// not validate; call Validate once all configuration has been assembled.
func ParseBucket(uri string) Bucket {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Bucket{}
	}
	uri = strings.TrimSuffix(uri, "/")
	name := strings.TrimPrefix(strings.ToLower(uri), StoreScheme)
	return Bucket{URI: uri, Name: name}
}

// Validate checks the bucket in stages and reports the first failing one:
// emptiness, then scheme, then name shape.
func (b Bucket) Validate() error {
	if b.URI == "" {
		return &ValidationError{Field: "uri", Code: "uri.empty", Message: "bucket URI is required"}
	}
	if b.Name == "" {
		return &ValidationError{Field: "name", Code: "name.empty", Message: "bucket name is required"}
	}
	if !strings.HasPrefix(strings.ToLower(b.URI), StoreScheme) {
		return &ValidationError{Field: "uri", Code: "uri.scheme", Value: b.URI,
			Message: "invalid URI protocol, must be in the form s3://{bucketName}"}
	}
	if strings.Contains(b.Name, "/") {
		return &ValidationError{Field: "name", Code: "name.invalid", Value: b.Name,
			Message: "bucket name must not contain a path separator"}
	}
	return nil
}

// ObjectURI returns the s3:// URI of key inside the bucket.
func (b Bucket) ObjectURI(key string) string {
	return StoreScheme + b.Name + "/" + strings.TrimPrefix(key, "/")
}
