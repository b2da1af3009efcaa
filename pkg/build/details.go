package build

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Layout describes where builds live in the bucket and how they are served.
type Layout struct {
	// SiteRoot is the first key segment under which every build lives.
	SiteRoot string
	// ProjectName is the last key segment of a build path.
	ProjectName string
	// DescriptorFile is the descriptor's object name inside a build path.
	DescriptorFile string
	// BucketName is used to build StoreURI.
	BucketName string
	// CDNURL is the public base URL of the distribution.
	CDNURL string
}

// Source identifies the store object a descriptor was read from. The zero
// value means the descriptor did not come from the store (e.g. it was
// fetched through the CDN).
type Source struct {
	Key          string
	LastModified *time.Time
}

// Details is a Record enriched with the paths derived from the bucket layout.
type Details struct {
	Record `yaml:",inline"`

	Project       string `json:"project" yaml:"project"`
	Version       string `json:"version" yaml:"version"`
	KeyPath       string `json:"keyPath" yaml:"keyPath"`
	CDNPath       string `json:"cdnPath" yaml:"cdnPath"`
	StoreURI      string `json:"storeUri" yaml:"storeUri"`
	DescriptorURI string `json:"descriptorUri,omitempty" yaml:"descriptorUri,omitempty"`
}

// NewDetails derives the Details of rec. When src names a store object the
// key path is that object's directory; otherwise it is rebuilt from the
// layout as <site-root>/<version>/<project>.
func NewDetails(rec Record, src Source, layout Layout) (Details, error) {
	version, err := Version(rec.ID)
	if err != nil {
		return Details{}, err
	}
	rec = rec.WithLastModified(src.LastModified)

	keyPath := fmt.Sprintf("%s/%s/%s", layout.SiteRoot, version, layout.ProjectName)
	if src.Key != "" {
		keyPath = strings.TrimSuffix(src.Key, "/"+layout.DescriptorFile)
	}

	if rec.ManualBuild {
		// Manual uploads reuse an existing id, so the directory is the
		// only trustworthy version.
		if v := versionFromKey(keyPath, layout.SiteRoot); v != "" {
			version = v
		}
	}

	d := Details{
		Record:   rec,
		Project:  layout.ProjectName,
		Version:  version,
		KeyPath:  keyPath,
		CDNPath:  "/" + keyPath,
		StoreURI: fmt.Sprintf("s3://%s/%s", layout.BucketName, keyPath),
	}
	if layout.CDNURL != "" {
		if u, err := url.JoinPath(layout.CDNURL, layout.DescriptorFile); err == nil {
			d.DescriptorURI = u
		}
	}
	return d, nil
}

// LastModifiedTime returns the timestamp used to order builds, or the zero time.
func (d Details) LastModifiedTime() time.Time {
	if d.LastModified == nil {
		return time.Time{}
	}
	return *d.LastModified
}

// versionFromKey returns the segment directly below siteRoot in key.
func versionFromKey(key, siteRoot string) string {
	rest, ok := strings.CutPrefix(key, siteRoot+"/")
	if !ok {
		return ""
	}
	v, _, _ := strings.Cut(rest, "/")
	return v
}
