package release

import "errors"

var (
	// ErrInvalidBuildVersion is returned when no build exists for the
	// requested version.
	ErrInvalidBuildVersion = errors.New("invalid build version")

	// ErrInvalidDistributionConfig is returned when the distribution config
	// cannot be updated, e.g. because it has no origins.
	ErrInvalidDistributionConfig = errors.New("invalid distribution config")

	// ErrNoDistribution is returned when neither the command nor the
	// configuration names a distribution.
	ErrNoDistribution = errors.New("no distribution id given and no default configured")
)
