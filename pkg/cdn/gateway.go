// Package cdn reads and conditionally updates CloudFront distribution
// configs.
//
// Updates follow a read-modify-write cycle: the config is read together with
// its ETag, a modified copy is built, and the write is sent with If-Match set
// to that ETag. A concurrent modification makes the provider reject the write,
// which surfaces as ErrVersionConflict. Nothing is retried here.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/cloudfront/cloudfrontiface"
	mapset "github.com/deckarep/golang-set/v2"
)

// UpdateResult describes an origin path update.
type UpdateResult struct {
	DistributionID string `json:"distributionId" yaml:"distributionId"`
	PreviousPath   string `json:"previousPath" yaml:"previousPath"`
	NewPath        string `json:"newPath" yaml:"newPath"`
	// IfMatch is the token the write was conditioned on. Empty on dry-run.
	IfMatch string `json:"ifMatch,omitempty" yaml:"ifMatch,omitempty"`
	// VersionToken is the distribution's token after the write. Empty on
	// dry-run.
	VersionToken string `json:"versionToken,omitempty" yaml:"versionToken,omitempty"`
	DryRun       bool   `json:"dryRun" yaml:"dryRun"`
}

// Invalidation is an accepted cache invalidation request.
type Invalidation struct {
	ID              string     `json:"id" yaml:"id"`
	Status          string     `json:"status" yaml:"status"`
	CallerReference string     `json:"callerReference" yaml:"callerReference"`
	Paths           []string   `json:"paths" yaml:"paths"`
	CreateTime      *time.Time `json:"createTime,omitempty" yaml:"createTime,omitempty"`
}

// Gateway talks to the CDN provider.
type Gateway struct {
	client cloudfrontiface.CloudFrontAPI
	logger *slog.Logger
}

// NewGateway creates a Gateway using client.
func NewGateway(client cloudfrontiface.CloudFrontAPI, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

// GetConfig reads the current config of distribution id. Provider rejections
// are returned as *RemoteConfigError.
func (g *Gateway) GetConfig(ctx context.Context, id string) (*Snapshot, error) {
	out, err := g.client.GetDistributionConfigWithContext(ctx, &cloudfront.GetDistributionConfigInput{
		Id: aws.String(id),
	})
	if err != nil {
		return nil, remoteError(id, "read", err)
	}

	snap := newSnapshot(id, aws.StringValue(out.ETag), out.DistributionConfig)
	g.logger.Debug("read distribution config",
		"distributionId", id,
		"etag", snap.VersionToken,
		"origins", len(snap.Origins),
		"originPath", snap.FirstOriginPath(),
	)
	return snap, nil
}

// UpdateOriginPath points the first origin of distribution id at newPath.
//
// The config is read fresh and the write is conditioned on the token of that
// read. With dryRun set the new config is built but not written. A
// distribution without origins yields *EmptyOriginError.
func (g *Gateway) UpdateOriginPath(ctx context.Context, id, newPath string, dryRun bool) (*UpdateResult, error) {
	snap, err := g.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg, err := snap.WithOriginPath(newPath)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{
		DistributionID: id,
		PreviousPath:   snap.FirstOriginPath(),
		NewPath:        newPath,
		DryRun:         dryRun,
	}
	if dryRun {
		g.logger.Info("dry run: distribution not updated",
			"distributionId", id,
			"previousPath", result.PreviousPath,
			"newPath", newPath,
		)
		return result, nil
	}

	out, err := g.client.UpdateDistributionWithContext(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 aws.String(id),
		IfMatch:            aws.String(snap.VersionToken),
		DistributionConfig: cfg,
	})
	if err != nil {
		err = remoteError(id, "update", err)
		var rerr *RemoteConfigError
		if errors.As(err, &rerr) && rerr.Conflict() {
			g.logger.Warn("distribution changed since it was read",
				"distributionId", id,
				"ifMatch", snap.VersionToken,
				"code", rerr.Code,
			)
		}
		return nil, err
	}

	result.IfMatch = snap.VersionToken
	result.VersionToken = aws.StringValue(out.ETag)
	g.logger.Info("updated distribution origin path",
		"distributionId", id,
		"previousPath", result.PreviousPath,
		"newPath", newPath,
		"etag", result.VersionToken,
	)
	return result, nil
}

// Invalidate submits paths for invalidation as a single batch. Paths are
// de-duplicated and given a leading slash. callerRef must be unique per
// request; the provider treats a repeated reference as the same request.
func (g *Gateway) Invalidate(ctx context.Context, id string, paths []string, callerRef string) (*Invalidation, error) {
	items := NormalizePaths(paths)
	if len(items) == 0 {
		return nil, fmt.Errorf("cdn: invalidate %s: no paths given", id)
	}
	if callerRef == "" {
		return nil, fmt.Errorf("cdn: invalidate %s: caller reference is required", id)
	}

	out, err := g.client.CreateInvalidationWithContext(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(id),
		InvalidationBatch: &cloudfront.InvalidationBatch{
			CallerReference: aws.String(callerRef),
			Paths: &cloudfront.Paths{
				Quantity: aws.Int64(int64(len(items))),
				Items:    aws.StringSlice(items),
			},
		},
	})
	if err != nil {
		return nil, remoteError(id, "invalidate", err)
	}

	inv := &Invalidation{CallerReference: callerRef, Paths: items}
	if out.Invalidation != nil {
		inv.ID = aws.StringValue(out.Invalidation.Id)
		inv.Status = aws.StringValue(out.Invalidation.Status)
		inv.CreateTime = out.Invalidation.CreateTime
	}
	g.logger.Info("requested invalidation",
		"distributionId", id,
		"invalidationId", inv.ID,
		"callerReference", callerRef,
		"paths", items,
	)
	return inv, nil
}

// NormalizePaths trims paths, drops empty and repeated ones and ensures a
// leading slash. Order of first occurrence is kept.
func NormalizePaths(paths []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if seen.Add(p) {
			out = append(out, p)
		}
	}
	return out
}
