// Package awsclient creates the S3 and CloudFront clients used by cdnctl.
// Credentials come from the SDK's default chain.
package awsclient

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/golang/glog"
)

// Config configures the AWS session.
type Config struct {
	Region string
	// MaxRetries applies to throttling and transient failures only;
	// conditional-write conflicts are never retried by the SDK.
	MaxRetries int
	// Debug logs every request and response through glog.
	Debug bool
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{Region: "us-east-1", MaxRetries: 3}
}

// Clients holds the service clients.
type Clients struct {
	S3         *s3.S3
	CloudFront *cloudfront.CloudFront
}

// New creates a session and the service clients.
func New(cfg Config) (*Clients, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *AWSConfig(cfg),
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("awsclient: create session: %w", err)
	}
	return &Clients{
		S3:         s3.New(sess),
		CloudFront: cloudfront.New(sess),
	}, nil
}

// AWSConfig converts cfg into an SDK config.
func AWSConfig(cfg Config) *aws.Config {
	c := aws.NewConfig().
		WithRegion(cfg.Region).
		WithMaxRetries(cfg.MaxRetries).
		WithCredentialsChainVerboseErrors(true)
	if cfg.Debug {
		c = c.WithLogger(GlogLogger()).
			WithLogLevel(aws.LogDebugWithHTTPBody | aws.LogDebugWithRequestErrors)
	}
	return c
}

// GlogLogger adapts glog to aws.Logger.
func GlogLogger() aws.Logger {
	return aws.LoggerFunc(func(args ...interface{}) {
		glog.InfoDepth(2, args...)
	})
}
