package catalog

import (
	"context"
	"strings"
)

// PathResolver turns user supplied build paths into canonical keys.
//
// A canonical key is store-relative and has no leading or trailing slash,
// e.g. "site/v1/Example-Site". The distribution origin path for a key is
// "/" + key.
type PathResolver struct {
	catalog *Catalog
}

// NewPathResolver creates a PathResolver for the catalog's bucket.
func NewPathResolver(c *Catalog) *PathResolver {
	return &PathResolver{catalog: c}
}

// Resolve normalizes userPath. Accepted forms:
//
//	s3://bucket/site/v1/Example-Site
//	/site/v1/Example-Site/
//	site/v1/Example-Site/build.yml
//
// All of the above resolve to "site/v1/Example-Site". Resolving a resolved
// key returns it unchanged.
func (r *PathResolver) Resolve(userPath string) string {
	key := strings.TrimSpace(userPath)

	bucket := r.catalog.bucket
	for _, prefix := range []string{bucket.URI + "/", StoreScheme + bucket.Name + "/"} {
		if len(key) >= len(prefix) && strings.EqualFold(key[:len(prefix)], prefix) {
			key = key[len(prefix):]
			break
		}
	}

	key = strings.TrimPrefix(key, "/")
	key = strings.TrimSuffix(key, "/")

	if descriptor := r.catalog.layout.DescriptorFile; descriptor != "" {
		if parent, ok := strings.CutSuffix(key, "/"+descriptor); ok {
			key = parent
		}
	}
	return key
}

// DescriptorKey returns the key of the descriptor object inside key.
func (r *PathResolver) DescriptorKey(key string) string {
	return key + "/" + r.catalog.layout.DescriptorFile
}

// Validate fails with a *ValidationError unless key holds a build, i.e. its
// descriptor object exists.
func (r *PathResolver) Validate(ctx context.Context, key string) error {
	if key == "" {
		return &ValidationError{Field: "path", Code: "path.empty", Message: "build path is required"}
	}

	descriptor := r.DescriptorKey(key)
	ok, err := r.catalog.Exists(ctx, descriptor)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationError{
			Field:   "path",
			Code:    "path.not-found",
			Value:   key,
			Message: "no build descriptor at " + r.catalog.bucket.ObjectURI(descriptor),
			Err:     ErrObjectNotFound,
		}
	}
	return nil
}
