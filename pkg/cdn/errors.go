package cdn

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudfront"
)

// ErrVersionConflict is matched by update failures caused by the
// distribution changing between read and write. Re-running the command reads
// a fresh version token.
var ErrVersionConflict = errors.New("distribution config version conflict: config was modified since it was read")

// RemoteConfigError is a rejection reported by the CDN provider.
type RemoteConfigError struct {
	DistributionID string
	// Code is the provider's error code, e.g. "NoSuchDistribution".
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteConfigError) Error() string {
	msg := fmt.Sprintf("cdn: distribution %s", e.DistributionID)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Code == "" && e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteConfigError) Unwrap() error { return e.Err }

// Is makes conditional-write rejections match ErrVersionConflict.
func (e *RemoteConfigError) Is(target error) bool {
	return target == ErrVersionConflict && e.Conflict()
}

// Conflict reports whether the provider rejected a write because the
// If-Match token was stale.
func (e *RemoteConfigError) Conflict() bool {
	switch e.Code {
	case cloudfront.ErrCodePreconditionFailed, cloudfront.ErrCodeInvalidIfMatchVersion:
		return true
	}
	return false
}

// EmptyOriginError is returned when a distribution has no origin whose path
// could be updated.
type EmptyOriginError struct {
	DistributionID string
	// Config is the raw config that was read, for diagnostics.
	Config *cloudfront.DistributionConfig
}

func (e *EmptyOriginError) Error() string {
	return fmt.Sprintf("cdn: distribution %s has no origins configured", e.DistributionID)
}

// clientSideCodes are SDK error codes raised before the provider answered.
var clientSideCodes = map[string]bool{
	request.CanceledErrorCode:      true,
	request.ErrCodeRequestError:    true,
	request.ErrCodeResponseTimeout: true,
	request.ErrCodeRead:            true,
}

// remoteError wraps err as a *RemoteConfigError when the provider rejected
// the request. Cancellations and transport failures are wrapped plainly.
func remoteError(id, action string, err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return fmt.Errorf("cdn: failed to %s distribution %s: %w", action, id, err)
	}
	if clientSideCodes[aerr.Code()] {
		// awserr errors do not unwrap; expose the cause to errors.Is.
		if cause := aerr.OrigErr(); cause != nil {
			return fmt.Errorf("cdn: failed to %s distribution %s: %s: %s: %w", action, id, aerr.Code(), aerr.Message(), cause)
		}
		return fmt.Errorf("cdn: failed to %s distribution %s: %w", action, id, err)
	}
	rerr := &RemoteConfigError{DistributionID: id, Err: err, Code: aerr.Code(), Message: aerr.Message()}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		rerr.StatusCode = reqErr.StatusCode()
	}
	return rerr
}
