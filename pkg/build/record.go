// Package build models the descriptor document that sits next to every
// deployed site build and converts it into typed records.
//
// A descriptor is a small YAML mapping:
//
//	id: Example-Site:b9ed4a9e-cc0f-4612-9f18-30f065a6543a
//	date: Wed May 17 01:22:33 PDT 2023
//	date-long: 1684311753
//	commit-hash: 31df8236bd2ee88ebad66601c48f7c895461af9a
//	build-number: b9ed4a9e-cc0f-4612-9f18-30f065a6543a
//	deploy-key: site/b9ed4a9e-cc0f-4612-9f18-30f065a6543a/31df8236
package build

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Descriptor field names.
const (
	FieldID          = "id"
	FieldDate        = "date"
	FieldDateLong    = "date-long"
	FieldCommitHash  = "commit-hash"
	FieldBuildNumber = "build-number"
	FieldDeployKey   = "deploy-key"
)

// ManualBuildNumber marks builds that were not produced by the build pipeline.
const ManualBuildNumber = "manual"

// Record is the typed form of a descriptor document. Optional fields that
// are absent from the document stay at their zero value (nil for times).
type Record struct {
	ID           string     `json:"id" yaml:"id"`
	Date         string     `json:"date,omitempty" yaml:"date,omitempty"`
	BuildDate    *time.Time `json:"buildDate,omitempty" yaml:"buildDate,omitempty"`
	CommitHash   string     `json:"commitHash,omitempty" yaml:"commitHash,omitempty"`
	BuildNumber  string     `json:"buildNumber,omitempty" yaml:"buildNumber,omitempty"`
	DeployKey    string     `json:"deployKey,omitempty" yaml:"deployKey,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty" yaml:"lastModified,omitempty"`
	ManualBuild  bool       `json:"manualBuild" yaml:"manualBuild"`
}

// ParseDescriptor converts descriptor text into a Record.
//
// LastModified is initialised to BuildDate; callers that know the store's
// modification time override it with WithLastModified.
func ParseDescriptor(text string) (Record, error) {
	if strings.TrimSpace(text) == "" {
		return Record{}, &ParseError{Reason: "empty descriptor document"}
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return Record{}, &ParseError{Reason: "invalid descriptor document", Err: err}
	}
	if doc == nil {
		return Record{}, &ParseError{Reason: "descriptor document is not a mapping"}
	}

	rec := Record{
		ID:          stringField(doc, FieldID),
		Date:        stringField(doc, FieldDate),
		CommitHash:  stringField(doc, FieldCommitHash),
		BuildNumber: stringField(doc, FieldBuildNumber),
		DeployKey:   stringField(doc, FieldDeployKey),
	}

	if rec.ID != "" {
		if _, err := Version(rec.ID); err != nil {
			return Record{}, err
		}
	}

	buildDate, err := epochField(doc, FieldDateLong)
	if err != nil {
		return Record{}, err
	}
	rec.BuildDate = buildDate
	rec.LastModified = buildDate
	rec.ManualBuild = strings.EqualFold(rec.BuildNumber, ManualBuildNumber)

	return rec, nil
}

// WithLastModified returns a copy of r whose LastModified is t. A nil t
// keeps the existing value.
func (r Record) WithLastModified(t *time.Time) Record {
	if t != nil {
		ts := *t
		r.LastModified = &ts
	}
	return r
}

// Version extracts the version token from a build id of the form
// "<project>:<version>".
func Version(id string) (string, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", &ParseError{Field: FieldID, Reason: fmt.Sprintf("invalid build id %q (want <project>:<version>)", id)}
	}
	return parts[1], nil
}

func stringField(doc map[string]any, key string) string {
	v, ok := doc[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// epochField reads a seconds-since-epoch value. YAML may hand us an int or a
// quoted string depending on how the descriptor was written.
func epochField(doc map[string]any, key string) (*time.Time, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, nil
	}

	var secs int64
	switch t := v.(type) {
	case int:
		secs = int64(t)
	case int64:
		secs = t
	case uint64:
		secs = int64(t)
	case float64:
		secs = int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, &ParseError{Field: key, Reason: fmt.Sprintf("not an epoch seconds value: %q", t), Err: err}
		}
		secs = n
	default:
		return nil, &ParseError{Field: key, Reason: fmt.Sprintf("unsupported value type %T", v)}
	}

	ts := time.Unix(secs, 0).UTC()
	return &ts, nil
}
